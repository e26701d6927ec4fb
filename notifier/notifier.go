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

// Package notifier implements one run of the push notification service. The
// run is started by cron: it retrieves the exported school calendar, reads
// the list of subscriber devices from the database, selects the events each
// device should hear about, delivers the push messages through the web-push
// backend and records every delivered event so the next run does not repeat
// it.
package notifier

// Generated documentation is available at:
// https://pkg.go.dev/github.com/fermi-calendar/push-notifier-service/notifier

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fermi-calendar/push-notifier-service/conf"
	"github.com/fermi-calendar/push-notifier-service/producer"
	"github.com/fermi-calendar/push-notifier-service/producer/disabled"
	"github.com/fermi-calendar/push-notifier-service/producer/kafka"
	"github.com/fermi-calendar/push-notifier-service/producer/webpush"
	"github.com/fermi-calendar/push-notifier-service/types"
)

// Exit codes
const (
	// ExitStatusOK means that the tool finished with success
	ExitStatusOK = iota
	// ExitStatusConfiguration is an error code related to program configuration
	ExitStatusConfiguration
	// ExitStatusError is a general error code
	ExitStatusError
	// ExitStatusStorageError is returned in case of any storage-related error
	ExitStatusStorageError
	// ExitStatusFetchEventsError is returned in case calendar events cannot be fetched correctly
	ExitStatusFetchEventsError
	// ExitStatusKafkaBrokerError is for kafka broker connection establishment errors
	ExitStatusKafkaBrokerError
	// ExitStatusPushServiceError is raised when the web-push backend producer cannot be initialized
	ExitStatusPushServiceError
	// ExitStatusCleanerError is raised when clean operation is not successful
	ExitStatusCleanerError
	// ExitStatusMetricsError is raised when prometheus metrics cannot be pushed
	ExitStatusMetricsError
)

// Messages
const (
	serviceName              = "Fermi Calendar Push Notification Service"
	separator                = "------------------------------------------------------------"
	operationFailedMessage   = "Operation failed"
	metricsPushFailedMessage = "Couldn't push prometheus metrics"
	destinationNotSet        = "No known notification destination configured. Aborting."
	invalidJSONContent       = "The provided content cannot be encoded as JSON."
	kafkaMirrorFailedMessage = "Mirroring notification event to Kafka failed"
	runStartedMessage        = "notifier run started"
	runFinishedMessage       = "notifier run finished"
)

// Log message attributes
const (
	subscriberIDAttribute  = "subscriber id"
	deviceIDAttribute      = "device id"
	kindAttribute          = "kind"
	eventsAttribute        = "events"
	subscribersAttribute   = "subscribers"
	notificationsAttribute = "notifications"
	timezoneAttribute      = "timezone"
)

// Record types written into the notifier run log table. Only success and
// error records survive the log compaction performed after a successful run.
const (
	runLogTypeStartup = "startup"
	runLogTypeSuccess = "success"
	runLogTypeError   = "error"
)

var (
	pushNotifier  producer.Producer
	kafkaNotifier producer.Producer
)

// registerMetrics registers metrics using the provided namespace, if any
func registerMetrics(metricsConfig conf.MetricsConfiguration) {
	if metricsConfig.Namespace != "" {
		log.Info().Str("namespace", metricsConfig.Namespace).Msg("Setting metrics namespace")
		AddMetricsWithNamespaceAndSubsystem(
			metricsConfig.Namespace,
			metricsConfig.Subsystem)
	}
}

func closeStorage(storage Storage) error {
	err := storage.Close()
	if err != nil {
		log.Err(err).Msg(operationFailedMessage)
		return err
	}
	return nil
}

func closeNotifier(notifier producer.Producer) error {
	err := notifier.Close()
	if err != nil {
		log.Err(err).Msg(operationFailedMessage)
		return err
	}
	return nil
}

// pushMetrics sends the collected counters to the Prometheus push gateway.
// Push failures are retried according to the metrics configuration.
func pushMetrics(metricsConf conf.MetricsConfiguration) int {
	if metricsConf.GatewayURL == "" {
		log.Info().Msg("Metrics push gateway not configured, skipping metrics push")
		return ExitStatusOK
	}
	err := PushCollectedMetrics(metricsConf)
	if err != nil {
		log.Err(err).Msg(metricsPushFailedMessage)
		if metricsConf.RetryAfter == 0 || metricsConf.Retries == 0 {
			return ExitStatusMetricsError
		}
		for i := metricsConf.Retries; i > 0; i-- {
			time.Sleep(metricsConf.RetryAfter)
			log.Info().Msgf("Push metrics. Retrying (%d/%d attempts left)", i, metricsConf.Retries)
			err = PushCollectedMetrics(metricsConf)
			if err == nil {
				log.Info().Msg("Metrics pushed successfully. Terminating notification service successfully.")
				return ExitStatusOK
			}
			log.Err(err).Msg(metricsPushFailedMessage)
		}
		return ExitStatusMetricsError
	}
	log.Info().Msg("Metrics pushed successfully. Terminating notification service successfully.")
	return ExitStatusOK
}

func deleteOperationSpecified(cliFlags types.CliFlags) bool {
	return cliFlags.PrintSentRecordsForCleanup ||
		cliFlags.PerformSentRecordsCleanup ||
		cliFlags.PerformNotifierLogCleanup
}

func assertNotificationDestination(config *conf.ConfigStruct) int {
	if !conf.GetPushServiceConfiguration(config).Enabled && !conf.GetKafkaBrokerConfiguration(config).Enabled {
		log.Error().Msg(destinationNotSet)
		return ExitStatusConfiguration
	}
	return ExitStatusOK
}

// setupPushServiceProducer function creates a web-push backend producer using
// the provided configuration
func setupPushServiceProducer(config *conf.ConfigStruct) int {
	// push service enable/disable is very important information, let's
	// inform admins about the state
	pushConfig := conf.GetPushServiceConfiguration(config)
	if !pushConfig.Enabled {
		pushNotifier = &disabled.Producer{}
		log.Info().Msg("Push service config for Notification Service is disabled")
		return ExitStatusOK
	}
	log.Info().Msg("Push service config for Notification Service is enabled")

	pushProducer, err := webpush.New(pushConfig)
	if err != nil {
		ProducerSetupErrors.Inc()
		log.Error().
			Err(err).
			Msg("Couldn't initialize push service producer with the provided config.")
		return ExitStatusPushServiceError
	}
	pushNotifier = pushProducer
	log.Info().Msg("Push service producer ready")
	return ExitStatusOK
}

// setupKafkaProducer function creates a Kafka producer using the provided
// configuration
func setupKafkaProducer(config *conf.ConfigStruct) int {
	// broker enable/disable is very important information, let's inform
	// admins about the state
	if !conf.GetKafkaBrokerConfiguration(config).Enabled {
		kafkaNotifier = &disabled.Producer{}
		log.Info().Msg("Broker config for Notification Service is disabled")
		return ExitStatusOK
	}
	log.Info().Msg("Broker config for Notification Service is enabled")

	kafkaProducer, err := kafka.New(config)
	if err != nil {
		ProducerSetupErrors.Inc()
		log.Error().
			Err(err).
			Msg("Couldn't initialize Kafka producer with the provided config.")
		return ExitStatusKafkaBrokerError
	}
	kafkaNotifier = kafkaProducer
	log.Info().Msg("Kafka producer ready")
	return ExitStatusOK
}

// writeRunLogRecord stores one record in the notifier run log table. Failures
// are only logged: a missing log row must never abort the run itself.
func writeRunLogRecord(storage Storage, logType, message string, timestamp time.Time) {
	err := storage.WriteNotifierLogRecord(logType, message, timestamp)
	if err != nil {
		log.Err(err).Str("type", logType).Msg("Unable to write notifier run log record")
	}
}

// mirrorToKafka publishes an audit copy of one delivered notification to the
// configured Kafka topic. The mirror is fire and forget: a broker failure
// does not undo nor retry the push delivery.
func mirrorToKafka(subscriber types.Subscriber, notification OutgoingNotification, environment string, now time.Time) {
	event := types.NotificationEvent{
		Kind:         notification.Kind.String(),
		SubscriberID: subscriber.ID,
		DeviceID:     subscriber.DeviceID,
		EventUIDs:    notification.EventUIDs,
		Title:        notification.Message.Title,
		Body:         notification.Message.Body,
		Environment:  environment,
		Timestamp:    now.UTC().Format(time.RFC3339),
	}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg(invalidJSONContent)
		return
	}

	_, _, err = kafkaNotifier.ProduceMessage(msgBytes)
	if err != nil {
		log.Err(err).
			Int(subscriberIDAttribute, int(subscriber.ID)).
			Msg(kafkaMirrorFailedMessage)
	}
}

// sendNotification delivers one push message to one subscriber device and,
// when the delivery succeeded, records the covered event UIDs in the
// push_sent table and mirrors the notification to Kafka.
func sendNotification(
	storage Storage,
	subscriber types.Subscriber,
	notification OutgoingNotification,
	environment string,
	now time.Time,
) {
	msgBytes, err := json.Marshal(notification.Message)
	if err != nil {
		NotificationNotSentErrorState.Inc()
		log.Error().Err(err).Msg(invalidJSONContent)
		return
	}

	_, offset, err := pushNotifier.ProduceMessage(msgBytes)
	if err != nil {
		NotificationNotSentErrorState.Inc()
		log.Err(err).
			Int(subscriberIDAttribute, int(subscriber.ID)).
			Str(deviceIDAttribute, string(subscriber.DeviceID)).
			Msg("Unable to deliver the notification to the push service")
		return
	}
	if offset == -1 {
		// delivery is disabled, nothing has actually been sent
		return
	}

	NotificationSent.Inc()
	log.Info().
		Int(subscriberIDAttribute, int(subscriber.ID)).
		Str(kindAttribute, notification.Kind.String()).
		Int(eventsAttribute, len(notification.EventUIDs)).
		Msg("Notification sent")

	for _, uid := range notification.EventUIDs {
		if uid == "" {
			continue
		}
		err := storage.WriteSentRecord(types.SentRecord{
			SubscriberID: subscriber.ID,
			DeviceID:     subscriber.DeviceID,
			EventUID:     uid,
			EventTarget:  types.PushBackendTarget,
			NotifiedAt:   types.Timestamp(now),
		})
		if err != nil {
			SentRecordWriteErrors.Inc()
			log.Err(err).
				Int(subscriberIDAttribute, int(subscriber.ID)).
				Str("event uid", string(uid)).
				Msg("Unable to record delivered notification")
		}
	}

	mirrorToKafka(subscriber, notification, environment, now)
}

// processSubscribers walks over all subscriber devices, selects the events
// each of them should be notified about and delivers the resulting push
// messages. A failure for one subscriber never aborts the whole run.
func processSubscribers(
	config *conf.ConfigStruct,
	storage Storage,
	subscribers []types.Subscriber,
	events []types.Event,
	location *time.Location,
	now time.Time,
) {
	notifConfig := conf.GetNotificationsConfiguration(config)
	environment := conf.GetLoggingConfiguration(config).Environment
	subscribersCount := len(subscribers)

	for i, subscriber := range subscribers {
		log.Debug().
			Int("#", i).
			Int("of", subscribersCount).
			Int(subscriberIDAttribute, int(subscriber.ID)).
			Str(deviceIDAttribute, string(subscriber.DeviceID)).
			Msg("subscriber entry")
		SubscribersProcessed.Inc()

		sentUIDs, err := storage.ReadSentEventUIDs(subscriber.ID, subscriber.DeviceID, types.PushBackendTarget)
		if err != nil {
			ReadSentRecordsErrors.Inc()
			log.Err(err).
				Int(subscriberIDAttribute, int(subscriber.ID)).
				Msg(operationFailedMessage)
			continue
		}

		relevant := filterEventsByKeywords(events, subscriber.Tags)
		relevant = removeSentEvents(relevant, sentUIDs)
		if len(relevant) == 0 {
			continue
		}

		eventsToday, eventsTomorrow := splitEventsByDay(relevant, now)
		kind, selected, due := decideNotification(subscriber, eventsToday, eventsTomorrow, now, notifConfig.DailyWindowLength)
		if !due || len(selected) == 0 {
			continue
		}

		notifications := buildNotifications(kind, selected, subscriber, notifConfig, location, now)
		for _, notification := range notifications {
			sendNotification(storage, subscriber, notification, environment, now)
		}
	}
}

func closeResources(storage Storage) int {
	log.Info().Msg(separator)
	exitStatus := ExitStatusOK
	if closeStorage(storage) != nil {
		exitStatus = ExitStatusStorageError
	}
	if closeNotifier(pushNotifier) != nil {
		exitStatus = ExitStatusPushServiceError
	}
	if closeNotifier(kafkaNotifier) != nil {
		exitStatus = ExitStatusKafkaBrokerError
	}
	log.Info().Msg(separator)
	return exitStatus
}

// startNotifier performs one complete run of the notification service
func startNotifier(config *conf.ConfigStruct, storage Storage) int {
	log.Info().Msg("Notifier started")
	log.Info().Msg(separator)

	if exitStatus := assertNotificationDestination(config); exitStatus != ExitStatusOK {
		return exitStatus
	}
	registerMetrics(conf.GetMetricsConfiguration(config))

	notifConfig := conf.GetNotificationsConfiguration(config)
	location, err := time.LoadLocation(notifConfig.Timezone)
	if err != nil {
		log.Err(err).
			Str(timezoneAttribute, notifConfig.Timezone).
			Msg(operationFailedMessage)
		return ExitStatusConfiguration
	}
	now := time.Now().In(location)

	writeRunLogRecord(storage, runLogTypeStartup, runStartedMessage, now)

	log.Info().Msg(separator)
	log.Info().Msg("Getting events from the calendar export")

	events, err := fetchCalendarEvents(conf.GetCalendarConfiguration(config))
	if err != nil {
		FetchEventsErrors.Inc()
		log.Err(err).Msg(operationFailedMessage)
		writeRunLogRecord(storage, runLogTypeError, "fetching calendar events failed: "+err.Error(), time.Now())
		return ExitStatusFetchEventsError
	}
	EventsRetrieved.Add(float64(len(events)))
	log.Info().Int(eventsAttribute, len(events)).Msg("Getting events from the calendar export: done")

	log.Info().Msg(separator)
	log.Info().Msg("Read subscriber list")

	subscribers, err := storage.ReadSubscriberList()
	if err != nil {
		ReadSubscriberListErrors.Inc()
		log.Err(err).Msg(operationFailedMessage)
		writeRunLogRecord(storage, runLogTypeError, "reading subscriber list failed: "+err.Error(), time.Now())
		return ExitStatusStorageError
	}

	// filter subscribers according to allow list and block list
	subscribers, statistic := filterSubscriberList(subscribers, conf.GetProcessingConfiguration(config))
	log.Info().
		Int("On input", statistic.Input).
		Int("Allowed", statistic.Allowed).
		Int("Blocked", statistic.Blocked).
		Int("Filtered", statistic.Filtered).
		Msg("Filter subscriber list")

	entries := len(subscribers)
	if entries == 0 {
		writeRunLogRecord(storage, runLogTypeSuccess, runFinishedMessage, time.Now())
		log.Info().Msg("Notifier finished")
		return ExitStatusOK
	}
	log.Info().Int(subscribersAttribute, entries).Msg("Read subscriber list: done")

	log.Info().Msg(separator)
	log.Info().Msg("Preparing push service producer")
	if exitStatus := setupPushServiceProducer(config); exitStatus != ExitStatusOK {
		writeRunLogRecord(storage, runLogTypeError, "push service producer setup failed", time.Now())
		return exitStatus
	}
	log.Info().Msg(separator)
	log.Info().Msg("Preparing Kafka producer")
	if exitStatus := setupKafkaProducer(config); exitStatus != ExitStatusOK {
		writeRunLogRecord(storage, runLogTypeError, "kafka producer setup failed", time.Now())
		return exitStatus
	}
	log.Info().Msg(separator)

	log.Info().Msg("Checking notifications for all subscriber devices")
	processSubscribers(config, storage, subscribers, events, location, now)
	log.Info().Int(subscribersAttribute, entries).Msg("Process subscriber entries: done")

	writeRunLogRecord(storage, runLogTypeSuccess, runFinishedMessage, time.Now())

	// after a successful run only the success and error records of past
	// runs are worth keeping
	deleted, err := storage.CleanupNotifierLog()
	if err != nil {
		log.Err(err).Msg(databaseCleanupNotifierLogFailedMessage)
	} else if deleted > 0 {
		log.Info().Int(rowsDeletedMessage, deleted).Msg("Notifier run log compacted")
	}

	exitStatus := closeResources(storage)

	log.Info().Msg("Notifier finished. Pushing metrics to the configured prometheus gateway.")
	if metricsStatus := pushMetrics(conf.GetMetricsConfiguration(config)); metricsStatus != ExitStatusOK {
		return metricsStatus
	}
	log.Info().Msg(separator)
	return exitStatus
}

// Run function is entry point to the notifier. It returns the process exit
// code so the caller can pass it to os.Exit.
func Run(config conf.ConfigStruct, cliFlags types.CliFlags) int {
	// override default value by one read from configuration file
	if cliFlags.MaxAge == "" {
		cliFlags.MaxAge = config.Cleaner.MaxAge
	}

	// prepare the storage
	storageConfiguration := conf.GetStorageConfiguration(&config)
	environment := conf.GetLoggingConfiguration(&config).Environment
	storage, err := NewStorage(&storageConfiguration, environment)
	if err != nil {
		StorageSetupErrors.Inc()
		log.Err(err).Msg(operationFailedMessage)
		return ExitStatusStorageError
	}

	if deleteOperationSpecified(cliFlags) {
		defer func() {
			_ = closeStorage(storage)
		}()
		if err := PerformCleanupOperation(storage, cliFlags); err != nil {
			return ExitStatusCleanerError
		}
		return ExitStatusOK
	}

	// perform database cleanup on startup if specified on command line
	if cliFlags.CleanupOnStartup {
		if err := PerformCleanupOnStartup(storage, cliFlags); err != nil {
			_ = closeStorage(storage)
			return ExitStatusCleanerError
		}
		// if previous operation is correct, just continue
	}

	return startNotifier(&config, storage)
}
