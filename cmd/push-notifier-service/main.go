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

// Entry point to the push notification service.
//
// The purpose of this service is to notify subscribed users about changes in
// the published school calendar. The service runs as a cronjob: on every run
// it downloads the exported calendar, compares it against the notifications
// already delivered to each subscriber device and sends the outstanding ones
// through the web-push backend. Subscribers with the daily digest option
// enabled receive a single summary message inside their configured time
// window, everybody else is notified about each relevant event as soon as it
// appears.
//
// Additionally this service exposes several metrics about processed
// subscribers and delivered messages. These metrics can be pushed to a
// Prometheus push gateway and displayed by Grafana tools.
package main

// Generated documentation is available at:
// https://pkg.go.dev/github.com/fermi-calendar/push-notifier-service/

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fermi-calendar/push-notifier-service/conf"
	"github.com/fermi-calendar/push-notifier-service/notifier"
)

// Configuration-related constants
const (
	loadConfigurationMessage = "Load configuration"
)

// Log file rotation limits
const (
	logFileMaxSizeMB  = 100
	logFileMaxBackups = 5
	logFileMaxAgeDays = 30
)

// setupLogging configures the global zerolog logger according to the logging
// configuration: log level, optional pretty printing for interactive runs and
// optional rotated log file. Every record carries the identifier of this run
// so overlapping cron invocations can be told apart.
func setupLogging(loggingConf conf.LoggingConfiguration) {
	logLevel := convertLogLevel(loggingConf.LogLevel)
	zerolog.SetGlobalLevel(logLevel)

	var consoleOut io.Writer = os.Stderr
	if loggingConf.Debug {
		consoleOut = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	if loggingConf.LogFile != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   loggingConf.LogFile,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
			MaxAge:     logFileMaxAgeDays,
		}
		log.Logger = log.Output(zerolog.MultiLevelWriter(consoleOut, fileWriter))
	} else {
		log.Logger = log.Output(consoleOut)
	}

	log.Logger = log.Logger.With().Str("run_id", uuid.New().String()).Logger()

	log.Info().
		Str("configured", loggingConf.LogLevel).
		Int("internal", int(logLevel)).
		Msg("Log level")
}

func main() {
	cliFlags := setupCliFlags()
	checkArgs(&cliFlags)

	// config has exactly the same structure as *.toml file
	config, err := conf.LoadConfiguration(conf.ConfigFileEnvVariableName, conf.DefaultConfigFileName)
	if err != nil {
		log.Err(err).Msg(loadConfigurationMessage)
		os.Exit(notifier.ExitStatusConfiguration)
	}

	setupLogging(conf.GetLoggingConfiguration(&config))

	// configuration is loaded, so it would be possible to display it if
	// asked by user
	if cliFlags.ShowConfiguration {
		showConfiguration(&config)
		os.Exit(notifier.ExitStatusOK)
	}

	if cliFlags.Verbose {
		showConfiguration(&config)
	}

	os.Exit(notifier.Run(config, cliFlags))
}
