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

package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fermi-calendar/push-notifier-service/types"
)

// TestNotificationKindString checks the string representation of all
// notification kinds
func TestNotificationKindString(t *testing.T) {
	assert.Equal(t, "daily-digest", types.DailyDigestKind.String())
	assert.Equal(t, "last-minute", types.LastMinuteKind.String())
}

// TestEventTargetValues checks the values stored in the event_target column
func TestEventTargetValues(t *testing.T) {
	assert.Equal(t, types.EventTarget(1), types.PushBackendTarget)
	assert.Equal(t, types.EventTarget(2), types.KafkaTarget)
}
