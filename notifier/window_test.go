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

	"github.com/fermi-calendar/push-notifier-service/types"
)

func TestEventStartTimeFullTimestamp(t *testing.T) {
	event := types.Event{UID: "e1", StartDateTime: "2025-09-15T10:30:00+02:00"}

	start, ok := eventStartTime(event, time.UTC)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 9, 15, 8, 30, 0, 0, time.UTC), start)
}

func TestEventStartTimeNaiveTimestamp(t *testing.T) {
	event := types.Event{UID: "e1", StartDateTime: "2025-09-15T10:30:00"}

	start, ok := eventStartTime(event, time.UTC)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 9, 15, 10, 30, 0, 0, time.UTC), start)
}

func TestEventStartTimeAllDay(t *testing.T) {
	event := types.Event{UID: "e1", StartDate: "2025-09-15"}

	start, ok := eventStartTime(event, time.UTC)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC), start)
}

func TestEventStartTimeAllDaySlashedLayout(t *testing.T) {
	event := types.Event{UID: "e1", StartDate: "15/09/2025"}

	start, ok := eventStartTime(event, time.UTC)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC), start)
}

func TestEventStartTimeUnparseable(t *testing.T) {
	for _, event := range []types.Event{
		{UID: "e1"},
		{UID: "e2", StartDate: "not a date"},
		{UID: "e3", StartDateTime: "not a timestamp"},
	} {
		_, ok := eventStartTime(event, time.UTC)
		assert.False(t, ok, "no start expected for event %s", event.UID)
	}
}

func TestSplitEventsByDay(t *testing.T) {
	now := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)

	events := []types.Event{
		{UID: "today-morning", StartDateTime: "2025-09-15T08:00:00"},
		{UID: "today-evening", StartDateTime: "2025-09-15T22:00:00"},
		{UID: "tomorrow", StartDate: "2025-09-16"},
		{UID: "day-after", StartDate: "2025-09-17"},
		{UID: "yesterday", StartDate: "2025-09-14"},
		{UID: "broken", StartDate: "???"},
	}

	today, tomorrow := splitEventsByDay(events, now)

	assert.Len(t, today, 2)
	assert.Equal(t, types.EventUID("today-morning"), today[0].UID)
	assert.Equal(t, types.EventUID("today-evening"), today[1].UID)

	assert.Len(t, tomorrow, 1)
	assert.Equal(t, types.EventUID("tomorrow"), tomorrow[0].UID)
}

func TestParseClockTime(t *testing.T) {
	offset, err := parseClockTime("07:30:00")
	assert.NoError(t, err)
	assert.Equal(t, 7*time.Hour+30*time.Minute, offset)

	offset, err = parseClockTime("07:30")
	assert.NoError(t, err)
	assert.Equal(t, 7*time.Hour+30*time.Minute, offset)

	_, err = parseClockTime("")
	assert.Error(t, err)

	_, err = parseClockTime("25:99")
	assert.Error(t, err)
}

// subscriber helper for the decideNotification tests
func digestSubscriber(dayBefore bool) types.Subscriber {
	return types.Subscriber{
		ID:                    1,
		Email:                 "subscriber@example.com",
		NotificationTime:      "07:30:00",
		NotificationDayBefore: dayBefore,
		PushWithNotifications: true,
	}
}

var (
	eventToday    = types.Event{UID: "today", StartDateTime: "2025-09-15T10:00:00"}
	eventTomorrow = types.Event{UID: "tomorrow", StartDateTime: "2025-09-16T10:00:00"}
)

func TestDecideNotificationWithoutDigestOption(t *testing.T) {
	subscriber := digestSubscriber(false)
	subscriber.PushWithNotifications = false
	now := time.Date(2025, 9, 15, 6, 0, 0, 0, time.UTC)

	kind, events, due := decideNotification(subscriber,
		[]types.Event{eventToday}, []types.Event{eventTomorrow}, now, 15*time.Minute)

	assert.True(t, due)
	assert.Equal(t, types.LastMinuteKind, kind)
	assert.Len(t, events, 2)
}

func TestDecideNotificationWithoutDigestOptionNoEvents(t *testing.T) {
	subscriber := digestSubscriber(false)
	subscriber.PushWithNotifications = false
	now := time.Date(2025, 9, 15, 6, 0, 0, 0, time.UTC)

	_, _, due := decideNotification(subscriber, nil, nil, now, 15*time.Minute)
	assert.False(t, due)
}

func TestDecideNotificationInsideWindow(t *testing.T) {
	subscriber := digestSubscriber(false)
	now := time.Date(2025, 9, 15, 7, 35, 0, 0, time.UTC)

	kind, events, due := decideNotification(subscriber,
		[]types.Event{eventToday}, []types.Event{eventTomorrow}, now, 15*time.Minute)

	assert.True(t, due)
	assert.Equal(t, types.DailyDigestKind, kind)
	assert.Len(t, events, 1)
	assert.Equal(t, types.EventUID("today"), events[0].UID)
}

func TestDecideNotificationInsideWindowDayBefore(t *testing.T) {
	subscriber := digestSubscriber(true)
	now := time.Date(2025, 9, 15, 7, 35, 0, 0, time.UTC)

	kind, events, due := decideNotification(subscriber,
		[]types.Event{eventToday}, []types.Event{eventTomorrow}, now, 15*time.Minute)

	assert.True(t, due)
	assert.Equal(t, types.DailyDigestKind, kind)
	assert.Len(t, events, 2)
}

// Both window boundary instants belong to the window.
func TestDecideNotificationWindowBoundaries(t *testing.T) {
	subscriber := digestSubscriber(false)

	for _, now := range []time.Time{
		time.Date(2025, 9, 15, 7, 30, 0, 0, time.UTC),
		time.Date(2025, 9, 15, 7, 45, 0, 0, time.UTC),
	} {
		kind, _, due := decideNotification(subscriber,
			[]types.Event{eventToday}, nil, now, 15*time.Minute)
		assert.True(t, due, "digest expected at %s", now)
		assert.Equal(t, types.DailyDigestKind, kind)
	}
}

func TestDecideNotificationInsideWindowNoEvents(t *testing.T) {
	subscriber := digestSubscriber(true)
	now := time.Date(2025, 9, 15, 7, 35, 0, 0, time.UTC)

	_, _, due := decideNotification(subscriber, nil, nil, now, 15*time.Minute)
	assert.False(t, due, "an empty digest must not be sent")
}

func TestDecideNotificationAfterWindow(t *testing.T) {
	subscriber := digestSubscriber(false)
	now := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)

	kind, events, due := decideNotification(subscriber,
		[]types.Event{eventToday}, []types.Event{eventTomorrow}, now, 15*time.Minute)

	assert.True(t, due)
	assert.Equal(t, types.LastMinuteKind, kind)
	assert.Len(t, events, 1)
	assert.Equal(t, types.EventUID("today"), events[0].UID)
}

func TestDecideNotificationAfterWindowDayBefore(t *testing.T) {
	subscriber := digestSubscriber(true)
	now := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)

	kind, events, due := decideNotification(subscriber,
		[]types.Event{eventToday}, []types.Event{eventTomorrow}, now, 15*time.Minute)

	assert.True(t, due)
	assert.Equal(t, types.LastMinuteKind, kind)
	assert.Len(t, events, 2)
}

// Before the window, events are left for the upcoming digest. Only today's
// events of day-before subscribers go out immediately: their digest already
// covered today yesterday evening.
func TestDecideNotificationBeforeWindow(t *testing.T) {
	now := time.Date(2025, 9, 15, 6, 0, 0, 0, time.UTC)

	_, _, due := decideNotification(digestSubscriber(false),
		[]types.Event{eventToday}, []types.Event{eventTomorrow}, now, 15*time.Minute)
	assert.False(t, due)

	kind, events, due := decideNotification(digestSubscriber(true),
		[]types.Event{eventToday}, []types.Event{eventTomorrow}, now, 15*time.Minute)
	assert.True(t, due)
	assert.Equal(t, types.LastMinuteKind, kind)
	assert.Len(t, events, 1)
	assert.Equal(t, types.EventUID("today"), events[0].UID)
}

// An invalid notification time must not lose today's events.
func TestDecideNotificationInvalidTime(t *testing.T) {
	subscriber := digestSubscriber(false)
	subscriber.NotificationTime = "not a time"
	now := time.Date(2025, 9, 15, 6, 0, 0, 0, time.UTC)

	kind, events, due := decideNotification(subscriber,
		[]types.Event{eventToday}, []types.Event{eventTomorrow}, now, 15*time.Minute)

	assert.True(t, due)
	assert.Equal(t, types.LastMinuteKind, kind)
	assert.Len(t, events, 1)
}
