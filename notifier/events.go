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

// The calendar is published as a CSV document: a Google Apps Script exports
// the school calendar into a spreadsheet that is retrieved here over HTTP.
// Rows older than one day are removed by the exporter itself, so the
// retrieved document is always small.

import (
	"bytes"
	"encoding/csv"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fermi-calendar/push-notifier-service/conf"
	"github.com/fermi-calendar/push-notifier-service/types"
	"github.com/fermi-calendar/push-notifier-service/utils"
)

// Column names used in the exported CSV document
const (
	columnUID           = "uid"
	columnSummary       = "summary"
	columnStartDate     = "start.date"
	columnStartDateTime = "start.dateTime"
	columnEndDate       = "end.date"
	columnEndDateTime   = "end.dateTime"
	columnHTMLLink      = "htmlLink"
)

// fetchCalendarEvents retrieves the current calendar events from the
// configured CSV export endpoint
func fetchCalendarEvents(config conf.CalendarConfiguration) ([]types.Event, error) {
	calendarURL := utils.SetHTTPPrefix(config.Server + config.Endpoint)

	log.Info().Msgf("Fetching calendar events from %s", calendarURL)

	req, err := http.NewRequest(http.MethodGet, calendarURL, http.NoBody)
	if err != nil {
		log.Error().Msgf("Got error while setting up HTTP request for calendar export - %s", err.Error())
		return nil, err
	}

	body, err := utils.SendRequest(req, config.Timeout)
	if err != nil {
		log.Error().Msgf("Got error while processing HTTP request - %s", err.Error())
		return nil, err
	}

	events, err := parseCalendarCSV(body)
	if err != nil {
		log.Error().Err(err).Msg("Error trying to decode calendar events from received answer")
		return nil, err
	}

	log.Info().Msgf("Retrieved %d events from calendar export", len(events))

	return events, nil
}

// parseCalendarCSV parses the exported CSV document into a list of events.
// The first row is the header; columns may appear in any order and unknown
// columns are ignored.
func parseCalendarCSV(data []byte) ([]types.Event, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	// exported rows are allowed to miss trailing columns
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []types.Event{}, nil
	}
	if err != nil {
		return nil, err
	}

	columns := make(map[string]int, len(header))
	for index, name := range header {
		columns[name] = index
	}

	field := func(record []string, name string) string {
		index, found := columns[name]
		if !found || index >= len(record) {
			return ""
		}
		return record[index]
	}

	events := make([]types.Event, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		events = append(events, types.Event{
			UID:           types.EventUID(field(record, columnUID)),
			Summary:       field(record, columnSummary),
			StartDate:     field(record, columnStartDate),
			StartDateTime: field(record, columnStartDateTime),
			EndDate:       field(record, columnEndDate),
			EndDateTime:   field(record, columnEndDateTime),
			HTMLLink:      field(record, columnHTMLLink),
		})
	}

	return events, nil
}
