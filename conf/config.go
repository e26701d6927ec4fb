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

package conf

// This source file contains definition of data type named ConfigStruct that
// represents configuration of the push notifier service. This source file
// also contains function named LoadConfiguration that can be used to load
// configuration from provided configuration file and/or from environment
// variables. Additionally several specific functions named
// GetStorageConfiguration, GetLoggingConfiguration, GetCalendarConfiguration,
// GetPushServiceConfiguration, GetKafkaBrokerConfiguration,
// GetNotificationsConfiguration and GetMetricsConfiguration are to be used to
// return specific configuration options.

// Generated documentation is available at:
// https://pkg.go.dev/github.com/fermi-calendar/push-notifier-service/conf

// Default name of configuration file is config.toml
// It can be changed via environment variable PUSH_NOTIFIER_SERVICE_CONFIG_FILE

// An example of configuration file that can be used in devel environment:
//
// [storage]
// db_driver = "postgres"
// pg_username = "user"
// pg_password = "password"
// pg_host = "localhost"
// pg_port = 5432
// pg_db_name = "notifier"
// pg_params = "sslmode=disable"
// log_sql_queries = true
//
// [logging]
// debug = true
// log_level = "info"
//
// Legacy environment variables understood by the original deployment keep
// working and take precedence over the configuration file:
// DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD, ENVIRONMENT, LOG_LEVEL, TZ

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Configuration-related constants
const (
	// ConfigFileEnvVariableName is name of environment variable that
	// points to the configuration file to use
	ConfigFileEnvVariableName = "PUSH_NOTIFIER_SERVICE_CONFIG_FILE"

	// DefaultConfigFileName is name of the configuration file used when
	// the environment variable above is not set
	DefaultConfigFileName = "config"
)

// Configuration defaults applied when neither the configuration file nor the
// environment say otherwise
const (
	DefaultTimezone          = "Europe/Rome"
	DefaultDailyWindowLength = 15 * time.Minute
)

// ConfigStruct is a structure holding the whole notification service
// configuration
type ConfigStruct struct {
	Logging       LoggingConfiguration       `mapstructure:"logging" toml:"logging"`
	Storage       StorageConfiguration       `mapstructure:"storage" toml:"storage"`
	Calendar      CalendarConfiguration      `mapstructure:"calendar" toml:"calendar"`
	PushService   PushServiceConfiguration   `mapstructure:"push_service" toml:"push_service"`
	Kafka         KafkaConfiguration         `mapstructure:"kafka_broker" toml:"kafka_broker"`
	Notifications NotificationsConfiguration `mapstructure:"notifications" toml:"notifications"`
	Metrics       MetricsConfiguration       `mapstructure:"metrics" toml:"metrics"`
	Cleaner       CleanerConfiguration       `mapstructure:"cleaner" toml:"cleaner"`
	Processing    ProcessingConfiguration    `mapstructure:"processing" toml:"processing"`
}

// LoggingConfiguration represents configuration for logging in general
type LoggingConfiguration struct {
	// Debug enables pretty colored logging
	Debug bool `mapstructure:"debug" toml:"debug"`

	// LogLevel sets logging level to show. Possible values are:
	// "debug"
	// "info"
	// "warn", "warning"
	// "error"
	// "fatal"
	//
	// logging level won't be changed if value is not one of listed above
	LogLevel string `mapstructure:"log_level" toml:"log_level"`

	// LogFile, when set, makes the service write log output also into
	// given file with size-based rotation
	LogFile string `mapstructure:"log_file" toml:"log_file"`

	// Environment is a deployment environment tag. The value "backup"
	// switches the notifier run log into the backup table.
	Environment string `mapstructure:"environment" toml:"environment"`
}

// StorageConfiguration represents configuration of postgresQSL data storage
type StorageConfiguration struct {
	Driver        string `mapstructure:"db_driver"       toml:"db_driver"`
	PGUsername    string `mapstructure:"pg_username"     toml:"pg_username"`
	PGPassword    string `mapstructure:"pg_password"     toml:"pg_password"`
	PGHost        string `mapstructure:"pg_host"         toml:"pg_host"`
	PGPort        int    `mapstructure:"pg_port"         toml:"pg_port"`
	PGDBName      string `mapstructure:"pg_db_name"      toml:"pg_db_name"`
	PGParams      string `mapstructure:"pg_params"       toml:"pg_params"`
	LogSQLQueries bool   `mapstructure:"log_sql_queries" toml:"log_sql_queries"`
}

// CalendarConfiguration represents configuration of the calendar events
// source. The calendar is exported as a CSV document retrieved over HTTP.
type CalendarConfiguration struct {
	Server   string        `mapstructure:"server"   toml:"server"`
	Endpoint string        `mapstructure:"endpoint" toml:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"  toml:"timeout"`
}

// PushServiceConfiguration represents configuration of the web-push backend
// that performs the actual delivery to the subscribed browsers
type PushServiceConfiguration struct {
	Enabled    bool          `mapstructure:"enabled"     toml:"enabled"`
	Server     string        `mapstructure:"server"      toml:"server"`
	Endpoint   string        `mapstructure:"endpoint"    toml:"endpoint"`
	APIToken   string        `mapstructure:"api_token"   toml:"api_token"`
	Timeout    time.Duration `mapstructure:"timeout"     toml:"timeout"`
	Retries    int           `mapstructure:"retries"     toml:"retries"`
	RetryAfter time.Duration `mapstructure:"retry_after" toml:"retry_after"`
}

// KafkaConfiguration represents configuration of Kafka brokers and topics
type KafkaConfiguration struct {
	Enabled          bool          `mapstructure:"enabled"           toml:"enabled"`
	Address          string        `mapstructure:"address"           toml:"address"`
	SecurityProtocol string        `mapstructure:"security_protocol" toml:"security_protocol"`
	CertPath         string        `mapstructure:"cert_path"         toml:"cert_path"`
	SaslMechanism    string        `mapstructure:"sasl_mechanism"    toml:"sasl_mechanism"`
	SaslUsername     string        `mapstructure:"sasl_username"     toml:"sasl_username"`
	SaslPassword     string        `mapstructure:"sasl_password"     toml:"sasl_password"`
	Topic            string        `mapstructure:"topic"             toml:"topic"`
	Timeout          time.Duration `mapstructure:"timeout"           toml:"timeout"`
}

// NotificationsConfiguration represents the configuration specific to the
// content and timing of notifications
type NotificationsConfiguration struct {
	// Timezone in which day windows and daily notification times are
	// computed, for example "Europe/Rome"
	Timezone string `mapstructure:"timezone" toml:"timezone"`

	// DailyWindowLength is how long after the subscriber's configured
	// notification time the daily digest is still considered due
	DailyWindowLength time.Duration `mapstructure:"daily_window_length" toml:"daily_window_length"`

	// DashboardURL is the landing page linked from digest notifications
	DashboardURL string `mapstructure:"dashboard_url" toml:"dashboard_url"`
}

// MetricsConfiguration holds metrics related configuration
type MetricsConfiguration struct {
	Job              string        `mapstructure:"job_name" toml:"job_name"`
	Namespace        string        `mapstructure:"namespace" toml:"namespace"`
	Subsystem        string        `mapstructure:"subsystem" toml:"subsystem"`
	GatewayURL       string        `mapstructure:"gateway_url" toml:"gateway_url"`
	GatewayAuthToken string        `mapstructure:"gateway_auth_token" toml:"gateway_auth_token"`
	Retries          int           `mapstructure:"retries" toml:"retries"`
	RetryAfter       time.Duration `mapstructure:"retry_after" toml:"retry_after"`
}

// CleanerConfiguration represents configuration for the main cleaner
type CleanerConfiguration struct {
	// MaxAge is specification of max age for records to be cleaned
	MaxAge string `mapstructure:"max_age" toml:"max_age"`
}

// ProcessingConfiguration represents configuration for processing subsystem
type ProcessingConfiguration struct {
	// FilterAllowedSubscribers enables filtering subscribers by allow list
	FilterAllowedSubscribers bool `mapstructure:"filter_allowed_subscribers" toml:"filter_allowed_subscribers"`
	// AllowedSubscribers is a list of subscriber emails that are allowed
	AllowedSubscribers []string `mapstructure:"allowed_subscribers" toml:"allowed_subscribers"`
	// FilterBlockedSubscribers enables filtering subscribers by block list
	FilterBlockedSubscribers bool `mapstructure:"filter_blocked_subscribers" toml:"filter_blocked_subscribers"`
	// BlockedSubscribers is a list of subscriber emails to be ignored
	BlockedSubscribers []string `mapstructure:"blocked_subscribers" toml:"blocked_subscribers"`
}

// LoadConfiguration loads configuration from defaultConfigFile, file set in
// configFileEnvVariableName or from env
func LoadConfiguration(configFileEnvVariableName, defaultConfigFile string) (ConfigStruct, error) {
	var config ConfigStruct

	// optional .env file keeps compatibility with the original
	// dotenv-based deployment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	// env. variable holding name of configuration file
	configFile, specified := os.LookupEnv(configFileEnvVariableName)
	if specified {
		// we need to separate the directory name and filename without
		// extension
		directory, basename := filepath.Split(configFile)
		file := strings.TrimSuffix(basename, filepath.Ext(basename))
		// parse the configuration
		viper.SetConfigName(file)
		viper.AddConfigPath(directory)
	} else {
		log.Info().Str("filename", defaultConfigFile).Msg("Parsing configuration file")
		// parse the configuration
		viper.SetConfigName(defaultConfigFile)
		viper.AddConfigPath(".")
	}

	// try to read the whole configuration
	err := viper.ReadInConfig()
	if _, isNotFoundError := err.(viper.ConfigFileNotFoundError); !specified && isNotFoundError {
		// If config file is not present (which might be correct in
		// some environment) we need to read configuration from
		// environment variables. The problem is that Viper is not
		// smart enough to understand the structure of config by
		// itself, so we need to read fake config file
		fakeTomlConfigWriter := new(bytes.Buffer)

		err := toml.NewEncoder(fakeTomlConfigWriter).Encode(config)
		if err != nil {
			return config, err
		}

		fakeTomlConfig := fakeTomlConfigWriter.String()

		viper.SetConfigType("toml")

		err = viper.ReadConfig(strings.NewReader(fakeTomlConfig))
		if err != nil {
			return config, err
		}
	} else if err != nil {
		// error is processed on caller side
		return config, fmt.Errorf("fatal error config file: %s", err)
	}

	// override config from env if there's variable in env

	const envPrefix = "PUSH_NOTIFIER_SERVICE_"

	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "__"))

	err = viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	applyLegacyEnvironmentOverrides(&config)
	applyDefaults(&config)

	// everything's should be ok
	return config, nil
}

// applyLegacyEnvironmentOverrides applies the flat environment variables used
// by the original deployment on top of the values read from the configuration
// file. They always win when set.
func applyLegacyEnvironmentOverrides(config *ConfigStruct) {
	if value, set := os.LookupEnv("DB_HOST"); set {
		config.Storage.PGHost = value
	}
	if value, set := os.LookupEnv("DB_PORT"); set {
		port, err := strconv.Atoi(value)
		if err != nil {
			log.Error().Str("DB_PORT", value).Msg("Not a valid port number, keeping configured value")
		} else {
			config.Storage.PGPort = port
		}
	}
	if value, set := os.LookupEnv("DB_NAME"); set {
		config.Storage.PGDBName = value
	}
	if value, set := os.LookupEnv("DB_USER"); set {
		config.Storage.PGUsername = value
	}
	if value, set := os.LookupEnv("DB_PASSWORD"); set {
		config.Storage.PGPassword = value
	}
	if value, set := os.LookupEnv("ENVIRONMENT"); set {
		config.Logging.Environment = value
	}
	if value, set := os.LookupEnv("LOG_LEVEL"); set {
		config.Logging.LogLevel = value
	}
	if value, set := os.LookupEnv("TZ"); set {
		config.Notifications.Timezone = value
	}
}

// applyDefaults fills configuration options that have sensible non-zero
// defaults and were not set explicitly.
func applyDefaults(config *ConfigStruct) {
	if config.Notifications.Timezone == "" {
		config.Notifications.Timezone = DefaultTimezone
	}
	if config.Notifications.DailyWindowLength == 0 {
		config.Notifications.DailyWindowLength = DefaultDailyWindowLength
	}
	if config.Notifications.DashboardURL == "" {
		config.Notifications.DashboardURL = "/dashboard"
	}
}

// GetStorageConfiguration returns storage configuration
func GetStorageConfiguration(config *ConfigStruct) StorageConfiguration {
	return config.Storage
}

// GetLoggingConfiguration returns logging configuration
func GetLoggingConfiguration(config *ConfigStruct) LoggingConfiguration {
	return config.Logging
}

// GetCalendarConfiguration returns configuration of the calendar events source
func GetCalendarConfiguration(config *ConfigStruct) CalendarConfiguration {
	return config.Calendar
}

// GetPushServiceConfiguration returns configuration of the web-push backend
func GetPushServiceConfiguration(config *ConfigStruct) PushServiceConfiguration {
	return config.PushService
}

// GetKafkaBrokerConfiguration returns kafka broker configuration
func GetKafkaBrokerConfiguration(config *ConfigStruct) KafkaConfiguration {
	return config.Kafka
}

// GetNotificationsConfiguration returns configuration related with
// notification content and timing
func GetNotificationsConfiguration(config *ConfigStruct) NotificationsConfiguration {
	return config.Notifications
}

// GetMetricsConfiguration returns metrics configuration
func GetMetricsConfiguration(config *ConfigStruct) MetricsConfiguration {
	return config.Metrics
}

// GetCleanerConfiguration returns cleaner configuration
func GetCleanerConfiguration(config *ConfigStruct) CleanerConfiguration {
	return config.Cleaner
}

// GetProcessingConfiguration returns processing configuration
func GetProcessingConfiguration(config *ConfigStruct) ProcessingConfiguration {
	return config.Processing
}
