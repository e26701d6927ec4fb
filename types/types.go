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

package types

// Generated documentation is available at:
// https://pkg.go.dev/github.com/fermi-calendar/push-notifier-service/types

import (
	"time"
)

// Timestamp represents any timestamp in a form gathered from database
type Timestamp time.Time

// KafkaOffset is a data type representing offset in Kafka topic.
type KafkaOffset int64

// SubscriberID data type represents ID of one subscriber as stored in the
// `subscribers` table.
type SubscriberID int32

// DeviceID data type represents the browser/device identifier of one push
// subscription. A subscriber may have several devices registered.
type DeviceID string

// EventUID data type represents unique ID of one calendar event.
type EventUID string

// DBDriver type for db driver enum
type DBDriver int

const (
	// DBDriverSQLite3 shows that db driver is sqlite
	DBDriverSQLite3 DBDriver = iota
	// DBDriverPostgres shows that db driver is postgres
	DBDriverPostgres
	// DBDriverGeneral general sql(used for mock now)
	DBDriverGeneral
)

// EventTarget matches the value stored in the event_target column of the
// push_sent table, which says which destination a record was delivered to.
type EventTarget int8

const (
	// PushBackendTarget is the web-push backend of the calendar website
	PushBackendTarget EventTarget = iota + 1
	// KafkaTarget is the notification event stream topic
	KafkaTarget
)

// NotificationKind represents the allowed kinds of push notification
type NotificationKind int

// Notification kinds as enum
const (
	DailyDigestKind NotificationKind = iota
	LastMinuteKind
)

// Notification kinds string representation
const (
	notificationKindDaily      = "daily-digest"
	notificationKindLastMinute = "last-minute"
)

// String function returns string representation of given notification kind
func (k NotificationKind) String() string {
	return [...]string{notificationKindDaily, notificationKindLastMinute}[k]
}

// Subscriber represents one subscriber device as retrieved from the DB. It is
// the result of joining the `subscribers` and `push` tables, so one
// subscriber with several registered devices yields several entries.
type Subscriber struct {
	ID                    SubscriberID
	Email                 string
	Tags                  []string
	NotificationTime      string
	NotificationDayBefore bool
	Endpoint              string
	DeviceID              DeviceID
	PushWithNotifications bool
}

// Event represents one calendar event parsed from the exported CSV document.
// Start and end are kept in their textual form: either an ISO-8601 date-time
// (start.dateTime column) or a plain date (start.date column) is filled,
// never both.
type Event struct {
	UID           EventUID
	Summary       string
	StartDate     string
	StartDateTime string
	EndDate       string
	EndDateTime   string
	HTMLLink      string
}

// PushMessage represents the payload sent to the web-push backend for one
// notification. Endpoint selects the receiving device subscription.
type PushMessage struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	URL      string `json:"url"`
	Endpoint string `json:"endpoint"`
}

// NotificationEvent represents content of messages mirrored to the
// notification event stream topic in Kafka.
type NotificationEvent struct {
	Kind         string       `json:"kind"`
	SubscriberID SubscriberID `json:"subscriber_id"`
	DeviceID     DeviceID     `json:"device_id"`
	EventUIDs    []EventUID   `json:"event_uids"`
	Title        string       `json:"title"`
	Body         string       `json:"body"`
	Environment  string       `json:"environment"`
	Timestamp    string       `json:"timestamp"`
}

// SentRecord structure represents one record stored in `push_sent` table.
type SentRecord struct {
	SubscriberID SubscriberID
	DeviceID     DeviceID
	EventUID     EventUID
	EventTarget  EventTarget
	NotifiedAt   Timestamp
}

// NotifierLogEntry represents one record stored in the notifier log table.
type NotifierLogEntry struct {
	Type      string
	Message   string
	Timestamp Timestamp
}

// ProducerMessage is a byte array that can be sent by any producer
type ProducerMessage []byte

// CliFlags represents structure holding all command line arguments/flags.
type CliFlags struct {
	ShowVersion                bool
	ShowAuthors                bool
	ShowConfiguration          bool
	PrintSentRecordsForCleanup bool
	PerformSentRecordsCleanup  bool
	PerformNotifierLogCleanup  bool
	CleanupOnStartup           bool
	Verbose                    bool
	MaxAge                     string
}
