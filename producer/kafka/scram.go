/*
Copyright © 2024, 2025 Fermi Calendar Notifier contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package kafka

import (
	"github.com/xdg/scram"
)

// SCRAMClient implementation of the SCRAM authentication mechanism used by
// the sarama library when SASL SCRAM-SHA-512 is configured
type SCRAMClient struct {
	*scram.Client
	*scram.ClientConversation
	scram.HashGeneratorFcn
}

// Begin prepares the client for the SCRAM exchange with the server with a
// user name and a password
func (c *SCRAMClient) Begin(userName, password, authzID string) (err error) {
	c.Client, err = c.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	c.ClientConversation = c.Client.NewConversation()
	return nil
}

// Step steps client through the SCRAM exchange. It is called repeatedly until
// it errors or `Done` returns true.
func (c *SCRAMClient) Step(challenge string) (response string, err error) {
	response, err = c.ClientConversation.Step(challenge)
	return
}

// Done should return true when the SCRAM conversation is over.
func (c *SCRAMClient) Done() bool {
	return c.ClientConversation.Done()
}
