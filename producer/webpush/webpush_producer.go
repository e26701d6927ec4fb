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

// Package webpush contains an implementation of Producer interface that can
// be used to send notification payloads to the web-push backend of the
// calendar website. The backend performs the actual Web Push delivery to the
// subscribed browsers.
package webpush

// Generated documentation is available at:
// https://pkg.go.dev/github.com/fermi-calendar/push-notifier-service/producer

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fermi-calendar/push-notifier-service/conf"
	"github.com/fermi-calendar/push-notifier-service/types"
	"github.com/fermi-calendar/push-notifier-service/utils"
)

// Producer is an implementation of Producer interface for the web-push backend
type Producer struct {
	Configuration conf.PushServiceConfiguration
	notifyURL     string
}

// New constructs a new instance of Producer implementation
func New(config conf.PushServiceConfiguration) (*Producer, error) {
	if config.Server == "" {
		return nil, fmt.Errorf("push service server address not configured")
	}

	return &Producer{
		Configuration: config,
		notifyURL:     utils.SetHTTPPrefix(config.Server + config.Endpoint),
	}, nil
}

// ProduceMessage sends the given message to the web-push backend. The message
// is expected to be a JSON-encoded PushMessage. Transient failures are
// retried with a fixed delay up to the configured number of attempts.
func (producer *Producer) ProduceMessage(msg types.ProducerMessage) (partitionID int32, offset int64, err error) {
	attemptsLeft := producer.Configuration.Retries
	if attemptsLeft < 0 {
		attemptsLeft = 0
	}

	for {
		err = producer.post(msg)
		if err == nil {
			return 0, 0, nil
		}
		if attemptsLeft == 0 {
			return -1, -1, err
		}
		log.Warn().
			Err(err).
			Int("attempts left", attemptsLeft).
			Dur("delay", producer.Configuration.RetryAfter).
			Msg("Notify request failed. Retrying...")
		time.Sleep(producer.Configuration.RetryAfter)
		attemptsLeft--
	}
}

// post performs a single HTTP POST of the payload to the notify endpoint
func (producer *Producer) post(msg types.ProducerMessage) error {
	client := &http.Client{
		Timeout: producer.Configuration.Timeout,
	}

	req, err := http.NewRequest(http.MethodPost, producer.notifyURL, bytes.NewBuffer(msg))
	if err != nil {
		log.Error().Err(err).Str("url", producer.notifyURL).Msg("Error setting up HTTP POST request")
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if producer.Configuration.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+producer.Configuration.APIToken)
	}

	response, err := client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("Error making the HTTP request")
		return err
	}
	defer func() {
		if closeErr := response.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Unable to close response body")
		}
	}()

	if response.StatusCode != http.StatusOK {
		err = fmt.Errorf("received unexpected response status code - %s", response.Status)
		log.Error().Err(err).Msg("Got unexpected response status code")
		return err
	}

	log.Debug().Str("url", producer.notifyURL).Msg("Notify POST succeeded")
	return nil
}

// Close closes Producer (in case of web-push implementation, it does not do anything)
func (producer *Producer) Close() error {
	return nil
}
