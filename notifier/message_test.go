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

package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fermi-calendar/push-notifier-service/conf"
	"github.com/fermi-calendar/push-notifier-service/types"
)

var messageTestNow = time.Date(2025, 9, 15, 7, 30, 0, 0, time.UTC)

var notificationsConfig = conf.NotificationsConfiguration{
	Timezone:          "UTC",
	DailyWindowLength: 15 * time.Minute,
	DashboardURL:      "/dashboard",
}

func TestEventDayDescriptor(t *testing.T) {
	today := time.Date(2025, 9, 15, 22, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2025, 9, 16, 8, 0, 0, 0, time.UTC)
	later := time.Date(2025, 9, 20, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, "Oggi", eventDayDescriptor(today, messageTestNow))
	assert.Equal(t, "Domani", eventDayDescriptor(tomorrow, messageTestNow))
	assert.Equal(t, "20/09/2025", eventDayDescriptor(later, messageTestNow))
}

func TestEventClockTime(t *testing.T) {
	timed := types.Event{UID: "e1", StartDateTime: "2025-09-15T10:30:00"}
	allDay := types.Event{UID: "e2", StartDate: "2025-09-15"}

	assert.Equal(t, "10:30", eventClockTime(timed, time.UTC))
	assert.Equal(t, "", eventClockTime(allDay, time.UTC))
}

func TestBuildEventBody(t *testing.T) {
	timed := types.Event{UID: "e1", Summary: "Assemblea", StartDateTime: "2025-09-15T10:30:00"}
	allDay := types.Event{UID: "e2", Summary: "Chiusura scuola", StartDate: "2025-09-16"}
	bare := types.Event{UID: "e3", Summary: "Avviso"}

	assert.Equal(t, "Oggi alle 10:30: Assemblea", buildEventBody(timed, time.UTC, messageTestNow))
	assert.Equal(t, "Domani Chiusura scuola", buildEventBody(allDay, time.UTC, messageTestNow))
	assert.Equal(t, "Avviso", buildEventBody(bare, time.UTC, messageTestNow))
}

func TestEventURL(t *testing.T) {
	linked := types.Event{UID: "e1", HTMLLink: "https://calendar.example.com/event/e1"}
	plain := types.Event{UID: "e2"}

	assert.Equal(t, "https://calendar.example.com/event/e1", eventURL(linked, "/dashboard"))
	assert.Equal(t, "/dashboard?id=e2", eventURL(plain, "/dashboard"))
}

func TestCollectEventUIDs(t *testing.T) {
	events := []types.Event{
		{UID: "e1"},
		{UID: ""},
		{UID: "e2"},
	}

	assert.Equal(t, []types.EventUID{"e1", "e2"}, collectEventUIDs(events))
}

func TestBuildNotificationsNoEvents(t *testing.T) {
	subscriber := types.Subscriber{ID: 1, Endpoint: "https://push.example.com/sub/1"}

	notifications := buildNotifications(
		types.DailyDigestKind, nil, subscriber, notificationsConfig, time.UTC, messageTestNow)
	assert.Nil(t, notifications)
}

// A digest covering several events is one message with the event count only.
func TestBuildNotificationsDigestSeveralEvents(t *testing.T) {
	subscriber := types.Subscriber{ID: 1, Endpoint: "https://push.example.com/sub/1"}
	events := []types.Event{
		{UID: "e1", Summary: "Assemblea", StartDateTime: "2025-09-15T10:30:00"},
		{UID: "e2", Summary: "Chiusura scuola", StartDate: "2025-09-16"},
	}

	notifications := buildNotifications(
		types.DailyDigestKind, events, subscriber, notificationsConfig, time.UTC, messageTestNow)

	assert.Len(t, notifications, 1)
	notification := notifications[0]
	assert.Equal(t, types.DailyDigestKind, notification.Kind)
	assert.Equal(t, "Daily Notification (2 eventi)", notification.Message.Title)
	assert.Equal(t, "Sono previsti 2 eventi.", notification.Message.Body)
	assert.Equal(t, "/dashboard", notification.Message.URL)
	assert.Equal(t, "https://push.example.com/sub/1", notification.Message.Endpoint)
	assert.Equal(t, []types.EventUID{"e1", "e2"}, notification.EventUIDs)
}

// A digest covering exactly one event describes the event itself.
func TestBuildNotificationsDigestSingleEvent(t *testing.T) {
	subscriber := types.Subscriber{ID: 1, Endpoint: "https://push.example.com/sub/1"}
	events := []types.Event{
		{UID: "e1", Summary: "Assemblea", StartDateTime: "2025-09-15T10:30:00"},
	}

	notifications := buildNotifications(
		types.DailyDigestKind, events, subscriber, notificationsConfig, time.UTC, messageTestNow)

	assert.Len(t, notifications, 1)
	notification := notifications[0]
	assert.Equal(t, "Daily Notification (1 evento)", notification.Message.Title)
	assert.Equal(t, "Oggi alle 10:30: Assemblea", notification.Message.Body)
	assert.Equal(t, "/dashboard?id=e1", notification.Message.URL)
	assert.Equal(t, []types.EventUID{"e1"}, notification.EventUIDs)
}

// Last-minute events are delivered one message per event.
func TestBuildNotificationsLastMinute(t *testing.T) {
	subscriber := types.Subscriber{ID: 1, Endpoint: "https://push.example.com/sub/1"}
	events := []types.Event{
		{UID: "e1", Summary: "Assemblea", StartDateTime: "2025-09-15T10:30:00"},
		{UID: "e2", Summary: "Chiusura scuola", StartDate: "2025-09-16"},
	}

	notifications := buildNotifications(
		types.LastMinuteKind, events, subscriber, notificationsConfig, time.UTC, messageTestNow)

	assert.Len(t, notifications, 2)
	for _, notification := range notifications {
		assert.Equal(t, types.LastMinuteKind, notification.Kind)
		assert.Equal(t, "Nuova variazione dell'orario!", notification.Message.Title)
		assert.Equal(t, "https://push.example.com/sub/1", notification.Message.Endpoint)
		assert.Len(t, notification.EventUIDs, 1)
	}
	assert.Equal(t, "Oggi alle 10:30: Assemblea", notifications[0].Message.Body)
	assert.Equal(t, "Domani Chiusura scuola", notifications[1].Message.Body)
}
