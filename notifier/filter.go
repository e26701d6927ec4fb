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

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fermi-calendar/push-notifier-service/conf"
	"github.com/fermi-calendar/push-notifier-service/types"
)

// nonAlphanumericPattern matches every run of characters that is neither a
// letter nor a digit. Event summaries are normalised with it before keyword
// matching so punctuation never hides a keyword.
var nonAlphanumericPattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// normalizeSummary strips punctuation from an event summary and collapses
// whitespace, returning the lowercased result used for keyword matching
func normalizeSummary(summary string) string {
	normalized := nonAlphanumericPattern.ReplaceAllString(summary, " ")
	return strings.ToLower(strings.TrimSpace(normalized))
}

// filterEventsByKeywords selects events whose summary contains at least one
// of the subscriber's keywords as a whole word, case-insensitively. A
// subscriber without keywords matches no events.
func filterEventsByKeywords(events []types.Event, keywords []string) []types.Event {
	filtered := []types.Event{}

	if len(keywords) == 0 {
		return filtered
	}

	patterns := make([]*regexp.Regexp, 0, len(keywords))
	for _, keyword := range keywords {
		pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(keyword)) + `\b`)
		if err != nil {
			log.Error().Err(err).Str("keyword", keyword).Msg("Unable to compile keyword pattern")
			continue
		}
		patterns = append(patterns, pattern)
	}

	for _, event := range events {
		summary := normalizeSummary(event.Summary)
		for _, pattern := range patterns {
			if pattern.MatchString(summary) {
				filtered = append(filtered, event)
				break
			}
		}
	}

	return filtered
}

// removeSentEvents drops events whose UID has already been notified to the
// subscriber device
func removeSentEvents(events []types.Event, sentUIDs map[types.EventUID]bool) []types.Event {
	remaining := []types.Event{}
	for _, event := range events {
		if !sentUIDs[event.UID] {
			remaining = append(remaining, event)
		}
	}
	return remaining
}

// SubscriberFilterStatistic is a structure containing elementary statistic
// about subscribers being filtered by filterSubscriberList function. It can
// be used for logging and debugging purposes.
type SubscriberFilterStatistic struct {
	Input    int
	Allowed  int
	Blocked  int
	Filtered int
}

// stringInSlice checks if a string is present in the given slice
func stringInSlice(str string, list []string) bool {
	for _, item := range list {
		if item == str {
			return true
		}
	}
	return false
}

// filterSubscriberList function filters subscribers according to given allow
// list and block list of subscriber emails
func filterSubscriberList(subscribers []types.Subscriber, configuration conf.ProcessingConfiguration) ([]types.Subscriber, SubscriberFilterStatistic) {
	// initialize structure with statistic
	stat := SubscriberFilterStatistic{
		Input:    0,
		Allowed:  0,
		Blocked:  0,
		Filtered: 0,
	}

	// optimization phase - don't process/filter subscribers if filtering
	// is completely disabled (this includes both allowed subscribers
	// filter and blocked subscribers filter)
	if !configuration.FilterAllowedSubscribers && !configuration.FilterBlockedSubscribers {
		// just update the statistic
		stat.Input = len(subscribers)
		stat.Filtered = len(subscribers)

		// and return original subscriber list
		return subscribers, stat
	}

	// list of filtered subscribers
	filtered := []types.Subscriber{}

	for _, subscriber := range subscribers {
		// update statistic
		stat.Input++

		// subscriber might be explicitly allowed if "filter allowed
		// subscribers" configuration option is enabled
		if configuration.FilterAllowedSubscribers {
			// if subscriber is in list of allowed subscribers
			// -> put it into the output list
			// -> skip rest of the loop
			if stringInSlice(subscriber.Email, configuration.AllowedSubscribers) {
				stat.Allowed++
				stat.Filtered++
				filtered = append(filtered, subscriber)
			}
			// don't do anything else with the subscriber
			continue
		}

		// subscriber might be blocked if "filter blocked subscribers"
		// configuration option is enabled
		if configuration.FilterBlockedSubscribers {
			// if subscriber is in list of blocked subscribers
			// -> ignore it
			// -> skip rest of the loop
			if stringInSlice(subscriber.Email, configuration.BlockedSubscribers) {
				stat.Blocked++
				// don't do anything else with the subscriber
				continue
			}
			// not blocked
			// -> put it into the output list
			stat.Filtered++
			filtered = append(filtered, subscriber)
		}
	}

	// return filtered list of subscribers
	return filtered, stat
}
