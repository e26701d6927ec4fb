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

// File metrics contains all metrics that needs to be exposed to Prometheus
// and indirectly to Grafana. As the service is a short-lived batch job, the
// metrics are pushed to a Prometheus push gateway at the end of each run.

// Generated documentation is available at:
// https://pkg.go.dev/github.com/fermi-calendar/push-notifier-service/notifier

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog/log"

	"github.com/fermi-calendar/push-notifier-service/conf"
)

// Metrics names
const (
	FetchEventsErrorsName        = "fetch_events_errors"
	ReadSubscriberListErrorsName = "read_subscriber_list_errors"
	ProducerSetupErrorsName      = "producer_setup_errors"
	StorageSetupErrorsName       = "storage_setup_errors"
	ReadSentRecordsErrorsName    = "read_sent_records_errors"
	SentRecordWriteErrorsName    = "sent_record_write_errors"
	NotificationSentName         = "notification_sent"
	NotificationNotSentErrorName = "notification_not_sent_error_state"
	EventsRetrievedName          = "events_retrieved"
	SubscribersProcessedName     = "subscribers_processed"
)

// Metrics helps
const (
	FetchEventsErrorsHelp        = "The total number of errors during fetch from the calendar export"
	ReadSubscriberListErrorsHelp = "The total number of errors when reading subscriber list from database"
	ProducerSetupErrorsHelp      = "The total number of errors when setting up a notification producer"
	StorageSetupErrorsHelp       = "The total number of errors when setting up storage connection"
	ReadSentRecordsErrorsHelp    = "The total number of errors when reading already notified event UIDs"
	SentRecordWriteErrorsHelp    = "The total number of errors when recording a delivered notification"
	NotificationSentHelp         = "The total number of notifications sent"
	NotificationNotSentErrorHelp = "The total number of notifications not sent because of a producer error"
	EventsRetrievedHelp          = "The total number of events retrieved from the calendar export"
	SubscribersProcessedHelp     = "The total number of subscriber devices processed"
)

// counterSpec ties one counter variable to its name and help so that the
// whole set can be re-registered under a namespace in one pass
type counterSpec struct {
	counter *prometheus.Counter
	name    string
	help    string
}

// FetchEventsErrors shows number of errors during fetch from the calendar export
var FetchEventsErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: FetchEventsErrorsName,
	Help: FetchEventsErrorsHelp,
})

// ReadSubscriberListErrors shows number of errors when reading subscriber list from database
var ReadSubscriberListErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: ReadSubscriberListErrorsName,
	Help: ReadSubscriberListErrorsHelp,
})

// ProducerSetupErrors shows number of errors when setting up a notification producer
var ProducerSetupErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: ProducerSetupErrorsName,
	Help: ProducerSetupErrorsHelp,
})

// StorageSetupErrors shows number of errors when setting up storage
var StorageSetupErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: StorageSetupErrorsName,
	Help: StorageSetupErrorsHelp,
})

// ReadSentRecordsErrors shows number of errors when reading already notified event UIDs
var ReadSentRecordsErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: ReadSentRecordsErrorsName,
	Help: ReadSentRecordsErrorsHelp,
})

// SentRecordWriteErrors shows number of errors when recording a delivered notification
var SentRecordWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: SentRecordWriteErrorsName,
	Help: SentRecordWriteErrorsHelp,
})

// NotificationSent shows number of notifications sent to the web-push backend
var NotificationSent = promauto.NewCounter(prometheus.CounterOpts{
	Name: NotificationSentName,
	Help: NotificationSentHelp,
})

// NotificationNotSentErrorState shows number of notifications not sent because of a producer error
var NotificationNotSentErrorState = promauto.NewCounter(prometheus.CounterOpts{
	Name: NotificationNotSentErrorName,
	Help: NotificationNotSentErrorHelp,
})

// EventsRetrieved shows number of events retrieved from the calendar export
var EventsRetrieved = promauto.NewCounter(prometheus.CounterOpts{
	Name: EventsRetrievedName,
	Help: EventsRetrievedHelp,
})

// SubscribersProcessed shows number of subscriber devices processed
var SubscribersProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: SubscribersProcessedName,
	Help: SubscribersProcessedHelp,
})

// allCounterSpecs lists every counter exposed by the service
func allCounterSpecs() []counterSpec {
	return []counterSpec{
		{&FetchEventsErrors, FetchEventsErrorsName, FetchEventsErrorsHelp},
		{&ReadSubscriberListErrors, ReadSubscriberListErrorsName, ReadSubscriberListErrorsHelp},
		{&ProducerSetupErrors, ProducerSetupErrorsName, ProducerSetupErrorsHelp},
		{&StorageSetupErrors, StorageSetupErrorsName, StorageSetupErrorsHelp},
		{&ReadSentRecordsErrors, ReadSentRecordsErrorsName, ReadSentRecordsErrorsHelp},
		{&SentRecordWriteErrors, SentRecordWriteErrorsName, SentRecordWriteErrorsHelp},
		{&NotificationSent, NotificationSentName, NotificationSentHelp},
		{&NotificationNotSentErrorState, NotificationNotSentErrorName, NotificationNotSentErrorHelp},
		{&EventsRetrieved, EventsRetrievedName, EventsRetrievedHelp},
		{&SubscribersProcessed, SubscribersProcessedName, SubscribersProcessedHelp},
	}
}

// AddMetricsWithNamespaceAndSubsystem registers the desired metrics using a
// given namespace and subsystem. Any previous registration is replaced.
func AddMetricsWithNamespaceAndSubsystem(namespace, subsystem string) {
	for _, spec := range allCounterSpecs() {
		// unregister the counter and register it again with the
		// namespace and subsystem set
		prometheus.Unregister(*spec.counter)
		*spec.counter = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      spec.name,
			Help:      spec.help,
		})
	}
}

// PushGatewayClient is a simple wrapper over http.Client so that prometheus
// can do HTTP requests with the given authentication header
type PushGatewayClient struct {
	AuthToken string

	httpClient http.Client
}

// Do is a simple wrapper over http.Client.Do method that includes
// the authentication header configured in the PushGatewayClient instance
func (pgc *PushGatewayClient) Do(request *http.Request) (*http.Response, error) {
	if pgc.AuthToken != "" {
		log.Debug().Msg("Adding authorization header to HTTP request")
		request.Header.Set("Authorization", "Basic "+pgc.AuthToken)
	} else {
		log.Debug().Msg("No authorization token provided. Making HTTP request without credentials.")
	}
	log.Debug().Str("request", request.URL.String()).Str("method", request.Method).Msg("Pushing metrics to Prometheus push gateway")
	resp, err := pgc.httpClient.Do(request)
	if resp != nil {
		log.Debug().Int("code", resp.StatusCode).Msg("Returned status code")
	}
	return resp, err
}

// PushCollectedMetrics function pushes the metrics to the configured
// prometheus push gateway
func PushCollectedMetrics(metricsConf conf.MetricsConfiguration) error {
	client := PushGatewayClient{metricsConf.GatewayAuthToken, http.Client{}}

	// Creates a pusher to the gateway "$PUSHGW_URL/metrics/job/$(job_name)
	pusher := push.New(metricsConf.GatewayURL, metricsConf.Job).Client(&client)
	for _, spec := range allCounterSpecs() {
		pusher = pusher.Collector(*spec.counter)
	}
	return pusher.Push()
}
