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

// Generated documentation is available at:
// https://pkg.go.dev/github.com/fermi-calendar/push-notifier-service/notifier

// Day window and daily notification window computations. All computations
// happen in the configured timezone: the school calendar is maintained in
// local time, so "today" must mean the local day, not the UTC one.

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fermi-calendar/push-notifier-service/types"
)

// Accepted layouts for textual event start/end values
const (
	dateLayout         = "2006-01-02"
	dateLayoutSlashed  = "02/01/2006"
	naiveDateTimLayout = "2006-01-02T15:04:05"
	clockLayout        = "15:04:05"
	clockLayoutShort   = "15:04"
)

// eventStartTime returns the start instant of given event in the provided
// location. The second return value is false when the event carries no
// parseable start: such events never match a day window.
func eventStartTime(event types.Event, location *time.Location) (time.Time, bool) {
	if event.StartDateTime != "" {
		// full ISO-8601 timestamp with numeric offset
		if t, err := time.Parse(time.RFC3339, event.StartDateTime); err == nil {
			return t.In(location), true
		}
		// timestamp without offset is assumed to be local calendar time
		if t, err := time.ParseInLocation(naiveDateTimLayout, event.StartDateTime, location); err == nil {
			return t, true
		}
		log.Debug().
			Str("start.dateTime", event.StartDateTime).
			Str("uid", string(event.UID)).
			Msg("Unable to parse event start timestamp")
	}

	if event.StartDate != "" {
		// all-day events start at local midnight
		if t, err := time.ParseInLocation(dateLayout, event.StartDate, location); err == nil {
			return t, true
		}
		if t, err := time.ParseInLocation(dateLayoutSlashed, event.StartDate, location); err == nil {
			return t, true
		}
		log.Debug().
			Str("start.date", event.StartDate).
			Str("uid", string(event.UID)).
			Msg("Unable to parse event start date")
	}

	return time.Time{}, false
}

// localMidnight returns the beginning of the day that contains given instant
func localMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// inDay checks whether the event starts inside the 24h window beginning at
// dayStart
func inDay(event types.Event, dayStart time.Time) bool {
	start, ok := eventStartTime(event, dayStart.Location())
	if !ok {
		return false
	}
	return !start.Before(dayStart) && start.Before(dayStart.Add(24*time.Hour))
}

// splitEventsByDay splits events into events starting today and events
// starting tomorrow, relative to the day containing the now instant. Events
// on other days (or without a parseable start) are dropped.
func splitEventsByDay(events []types.Event, now time.Time) (today, tomorrow []types.Event) {
	todayStart := localMidnight(now)
	tomorrowStart := todayStart.Add(24 * time.Hour)

	today = []types.Event{}
	tomorrow = []types.Event{}
	for _, event := range events {
		switch {
		case inDay(event, todayStart):
			today = append(today, event)
		case inDay(event, tomorrowStart):
			tomorrow = append(tomorrow, event)
		}
	}
	return today, tomorrow
}

// parseClockTime parses a subscriber's daily notification time, given as
// "HH:MM" or "HH:MM:SS", into an offset from local midnight
func parseClockTime(value string) (time.Duration, error) {
	t, err := time.Parse(clockLayout, value)
	if err != nil {
		t, err = time.Parse(clockLayoutShort, value)
	}
	if err != nil {
		return 0, fmt.Errorf("not a valid notification time: %q", value)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

// decideNotification selects the notification kind and events due for one
// subscriber device at the moment the run happens.
//
// Subscribers that opted into the daily digest get it once per day: when the
// run falls into the window [notification time, notification time + window
// length], today's events are bundled into one digest; the day-before flag
// additionally bundles tomorrow's events. Outside the window events are
// delivered individually as last-minute notifications, although events for
// tomorrow wait until the digest window has passed so they are not leaked
// before the digest.
//
// Subscribers without the digest option get last-minute notifications for
// anything starting today or tomorrow.
func decideNotification(
	subscriber types.Subscriber,
	eventsToday, eventsTomorrow []types.Event,
	now time.Time,
	windowLength time.Duration,
) (types.NotificationKind, []types.Event, bool) {
	if !subscriber.PushWithNotifications {
		combined := append(append([]types.Event{}, eventsToday...), eventsTomorrow...)
		if len(combined) > 0 {
			return types.LastMinuteKind, combined, true
		}
		return types.LastMinuteKind, nil, false
	}

	offset, err := parseClockTime(subscriber.NotificationTime)
	if err != nil {
		log.Error().
			Err(err).
			Int(subscriberIDAttribute, int(subscriber.ID)).
			Msg("Invalid daily notification time, falling back to last-minute delivery")
		if len(eventsToday) > 0 {
			return types.LastMinuteKind, eventsToday, true
		}
		return types.LastMinuteKind, nil, false
	}

	windowStart := localMidnight(now).Add(offset)
	windowEnd := windowStart.Add(windowLength)

	switch {
	case !now.Before(windowStart) && !now.After(windowEnd):
		// inside the daily digest window
		if subscriber.NotificationDayBefore {
			combined := append(append([]types.Event{}, eventsToday...), eventsTomorrow...)
			if len(combined) > 0 {
				return types.DailyDigestKind, combined, true
			}
			return types.DailyDigestKind, nil, false
		}
		if len(eventsToday) > 0 {
			return types.DailyDigestKind, eventsToday, true
		}
		return types.DailyDigestKind, nil, false

	case now.After(windowEnd):
		// the digest window already passed, anything new goes out
		// immediately
		if subscriber.NotificationDayBefore {
			combined := append(append([]types.Event{}, eventsToday...), eventsTomorrow...)
			if len(combined) > 0 {
				return types.LastMinuteKind, combined, true
			}
			return types.LastMinuteKind, nil, false
		}
		if len(eventsToday) > 0 {
			return types.LastMinuteKind, eventsToday, true
		}
		return types.LastMinuteKind, nil, false

	default:
		// before the digest window: today's events may not wait for
		// subscribers whose digest covers tomorrow, everything else
		// is left for the upcoming digest
		if subscriber.NotificationDayBefore && len(eventsToday) > 0 {
			return types.LastMinuteKind, eventsToday, true
		}
		return types.LastMinuteKind, nil, false
	}
}
