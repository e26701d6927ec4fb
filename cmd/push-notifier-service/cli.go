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

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fermi-calendar/push-notifier-service/conf"
	"github.com/fermi-calendar/push-notifier-service/notifier"
	"github.com/fermi-calendar/push-notifier-service/types"
)

const (
	versionMessage = "Push notification service version 1.0"
	authorsMessage = "Fermi Calendar Notifier contributors"
)

// showVersion function displays version information.
func showVersion() {
	fmt.Println(versionMessage)
}

// showAuthors function displays information about authors.
func showAuthors() {
	fmt.Println(authorsMessage)
}

// setupCliFlags defines and parses all command line options
func setupCliFlags() types.CliFlags {
	var cliFlags types.CliFlags
	flag.BoolVar(&cliFlags.ShowVersion, "show-version", false, "show version and exit")
	flag.BoolVar(&cliFlags.ShowAuthors, "show-authors", false, "show authors and exit")
	flag.BoolVar(&cliFlags.ShowConfiguration, "show-configuration", false, "show configuration and exit")
	flag.BoolVar(&cliFlags.PrintSentRecordsForCleanup, "print-sent-records-for-cleanup", false, "print sent records to be cleaned up")
	flag.BoolVar(&cliFlags.PerformSentRecordsCleanup, "sent-records-cleanup", false, "perform sent records clean up")
	flag.BoolVar(&cliFlags.PerformNotifierLogCleanup, "notifier-log-cleanup", false, "perform notifier run log clean up")
	flag.BoolVar(&cliFlags.CleanupOnStartup, "cleanup-on-startup", false, "perform database clean up on startup")
	flag.BoolVar(&cliFlags.Verbose, "verbose", false, "verbose logs")
	flag.StringVar(&cliFlags.MaxAge, "max-age", "", "max age for displaying/cleaning old records")
	flag.Parse()
	return cliFlags
}

// checkArgs function handles command line options passed to the process
func checkArgs(args *types.CliFlags) {
	switch {
	case args.ShowVersion:
		showVersion()
		os.Exit(notifier.ExitStatusOK)
	case args.ShowAuthors:
		showAuthors()
		os.Exit(notifier.ExitStatusOK)
	default:
	}
}

// showConfiguration function displays actual configuration.
func showConfiguration(config *conf.ConfigStruct) {
	calendarConfig := conf.GetCalendarConfiguration(config)
	log.Info().
		Str("Server", calendarConfig.Server).
		Str("Endpoint", calendarConfig.Endpoint).
		Str("Timeout", calendarConfig.Timeout.String()).
		Msg("Calendar configuration")

	pushConfig := conf.GetPushServiceConfiguration(config)

	// API token is omitted on purpose
	log.Info().
		Bool("Enabled", pushConfig.Enabled).
		Str("Server", pushConfig.Server).
		Str("Endpoint", pushConfig.Endpoint).
		Str("Timeout", pushConfig.Timeout.String()).
		Int("Retries", pushConfig.Retries).
		Str("Retry after", pushConfig.RetryAfter.String()).
		Msg("Push service configuration")

	brokerConfig := conf.GetKafkaBrokerConfiguration(config)
	log.Info().
		Bool("Enabled", brokerConfig.Enabled).
		Str("Address", brokerConfig.Address).
		Str("SecurityProtocol", brokerConfig.SecurityProtocol).
		Str("SaslMechanism", brokerConfig.SaslMechanism).
		Str("Topic", brokerConfig.Topic).
		Str("Timeout", brokerConfig.Timeout.String()).
		Msg("Broker configuration")

	storageConfig := conf.GetStorageConfiguration(config)
	log.Info().
		Str("Driver", storageConfig.Driver).
		Str("DB Name", storageConfig.PGDBName).
		Str("Username", storageConfig.PGUsername). // password is omitted on purpose
		Str("Host", storageConfig.PGHost).
		Int("Port", storageConfig.PGPort).
		Bool("LogSQLQueries", storageConfig.LogSQLQueries).
		Str("Parameters", storageConfig.PGParams).
		Msg("Storage configuration")

	loggingConfig := conf.GetLoggingConfiguration(config)
	log.Info().
		Str("Level", loggingConfig.LogLevel).
		Str("Log file", loggingConfig.LogFile).
		Str("Environment", loggingConfig.Environment).
		Bool("Pretty colored debug logging", loggingConfig.Debug).
		Msg("Logging configuration")

	notificationConfig := conf.GetNotificationsConfiguration(config)
	log.Info().
		Str("Timezone", notificationConfig.Timezone).
		Str("Daily window length", notificationConfig.DailyWindowLength.String()).
		Str("Dashboard URL", notificationConfig.DashboardURL).
		Msg("Notifications configuration")

	metricsConfig := conf.GetMetricsConfiguration(config)

	// Authentication token value is omitted on purpose
	log.Info().
		Str("Job", metricsConfig.Job).
		Str("Namespace", metricsConfig.Namespace).
		Str("Subsystem", metricsConfig.Subsystem).
		Str("Push Gateway", metricsConfig.GatewayURL).
		Int("Retries", metricsConfig.Retries).
		Str("Retry after", metricsConfig.RetryAfter.String()).
		Msg("Metrics configuration")

	cleanerConfig := conf.GetCleanerConfiguration(config)
	log.Info().
		Str("Max age", cleanerConfig.MaxAge).
		Msg("Cleaner configuration")

	processingConfig := conf.GetProcessingConfiguration(config)
	log.Info().
		Bool("Filter allowed subscribers", processingConfig.FilterAllowedSubscribers).
		Strs("List of allowed subscribers", processingConfig.AllowedSubscribers).
		Bool("Filter blocked subscribers", processingConfig.FilterBlockedSubscribers).
		Strs("List of blocked subscribers", processingConfig.BlockedSubscribers).
		Msg("Processing configuration")
}

func convertLogLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	}

	return zerolog.DebugLevel
}
