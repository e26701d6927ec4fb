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

// Construction of the push notification payloads. The user-facing strings are
// Italian because the calendar website is.

import (
	"fmt"
	"time"

	"github.com/fermi-calendar/push-notifier-service/conf"
	"github.com/fermi-calendar/push-notifier-service/types"
)

// User-facing message fragments
const (
	lastMinuteTitle  = "Nuova variazione dell'orario!"
	dailyDigestTitle = "Daily Notification (%d %s)"
	dailyDigestBody  = "Sono previsti %d eventi."
	wordToday        = "Oggi"
	wordTomorrow     = "Domani"
)

// OutgoingNotification is one push message ready for delivery together with
// the UIDs of events it covers. The UIDs are recorded in the push_sent table
// once delivery succeeds.
type OutgoingNotification struct {
	Kind      types.NotificationKind
	Message   types.PushMessage
	EventUIDs []types.EventUID
}

// eventDayDescriptor returns the human readable day part of a notification
// body: "Oggi", "Domani" or an explicit date
func eventDayDescriptor(start time.Time, now time.Time) string {
	todayStart := localMidnight(now)
	switch {
	case !start.Before(todayStart) && start.Before(todayStart.Add(24*time.Hour)):
		return wordToday
	case !start.Before(todayStart.Add(24*time.Hour)) && start.Before(todayStart.Add(48*time.Hour)):
		return wordTomorrow
	default:
		return start.Format(dateLayoutSlashed)
	}
}

// eventClockTime returns the "HH:MM" start time of an event, or empty string
// for all-day events
func eventClockTime(event types.Event, location *time.Location) string {
	if event.StartDateTime == "" {
		return ""
	}
	start, ok := eventStartTime(event, location)
	if !ok {
		// value is already a plain clock string in some exports
		return event.StartDateTime
	}
	return start.Format(clockLayoutShort)
}

// buildEventBody produces the notification body for a single event, for
// example "Oggi alle 15:00: Assemblea di istituto"
func buildEventBody(event types.Event, location *time.Location, now time.Time) string {
	clock := eventClockTime(event, location)

	when := ""
	if start, ok := eventStartTime(event, location); ok {
		when = eventDayDescriptor(start, now)
	}

	switch {
	case when != "" && clock != "":
		return fmt.Sprintf("%s alle %s: %s", when, clock, event.Summary)
	case clock != "":
		return fmt.Sprintf("Alle %s %s", clock, event.Summary)
	case when != "":
		return fmt.Sprintf("%s %s", when, event.Summary)
	default:
		return event.Summary
	}
}

// eventURL returns the landing page for one event: the calendar link when the
// export provides one, the dashboard with the event preselected otherwise
func eventURL(event types.Event, dashboardURL string) string {
	if event.HTMLLink != "" {
		return event.HTMLLink
	}
	return fmt.Sprintf("%s?id=%s", dashboardURL, event.UID)
}

// collectEventUIDs gathers non-empty UIDs of given events
func collectEventUIDs(events []types.Event) []types.EventUID {
	uids := make([]types.EventUID, 0, len(events))
	for _, event := range events {
		if event.UID != "" {
			uids = append(uids, event.UID)
		}
	}
	return uids
}

// buildNotifications turns the events selected for one subscriber device into
// push messages. A daily digest is always a single message: detailed for one
// event, a plain count for several. Last-minute events are delivered as one
// message each.
func buildNotifications(
	kind types.NotificationKind,
	events []types.Event,
	subscriber types.Subscriber,
	config conf.NotificationsConfiguration,
	location *time.Location,
	now time.Time,
) []OutgoingNotification {
	if len(events) == 0 {
		return nil
	}

	if kind == types.DailyDigestKind {
		count := len(events)
		noun := "eventi"
		if count == 1 {
			noun = "evento"
		}
		title := fmt.Sprintf(dailyDigestTitle, count, noun)

		if count > 1 {
			return []OutgoingNotification{{
				Kind: kind,
				Message: types.PushMessage{
					Title:    title,
					Body:     fmt.Sprintf(dailyDigestBody, count),
					URL:      config.DashboardURL,
					Endpoint: subscriber.Endpoint,
				},
				EventUIDs: collectEventUIDs(events),
			}}
		}

		event := events[0]
		return []OutgoingNotification{{
			Kind: kind,
			Message: types.PushMessage{
				Title:    title,
				Body:     buildEventBody(event, location, now),
				URL:      eventURL(event, config.DashboardURL),
				Endpoint: subscriber.Endpoint,
			},
			EventUIDs: collectEventUIDs(events[:1]),
		}}
	}

	notifications := make([]OutgoingNotification, 0, len(events))
	for _, event := range events {
		notifications = append(notifications, OutgoingNotification{
			Kind: kind,
			Message: types.PushMessage{
				Title:    lastMinuteTitle,
				Body:     buildEventBody(event, location, now),
				URL:      eventURL(event, config.DashboardURL),
				Endpoint: subscriber.Endpoint,
			},
			EventUIDs: collectEventUIDs([]types.Event{event}),
		})
	}
	return notifications
}
