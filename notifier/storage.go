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

// This source file contains an implementation of interface between Go code and
// (almost any) SQL database like PostgreSQL or SQLite.
//
// It is possible to configure connection to selected database by using
// StorageConfiguration structure. Currently that structure contains two
// configurable parameter:
//
// Driver - a SQL driver, like "sqlite3", "postgres" etc.
// DataSource - specification of data source. The content of this parameter depends on the database used.

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL database driver
	_ "github.com/mattn/go-sqlite3" // SQLite database driver

	"github.com/rs/zerolog/log"

	"github.com/fermi-calendar/push-notifier-service/conf"
	"github.com/fermi-calendar/push-notifier-service/types"
)

// Storage represents an interface to almost any database or storage system
type Storage interface {
	Close() error
	ReadSubscriberList() ([]types.Subscriber, error)
	ReadSentEventUIDs(
		subscriberID types.SubscriberID,
		deviceID types.DeviceID,
		eventTarget types.EventTarget) (map[types.EventUID]bool, error)
	WriteSentRecord(record types.SentRecord) error
	WriteNotifierLogRecord(logType, message string, timestamp time.Time) error
	CleanupNotifierLog() (int, error)
	PrintSentRecordsForCleanup(maxAge string) error
	CleanupSentRecords(maxAge string) (int, error)
}

// DBStorage is an implementation of Storage interface that use selected SQL like database
// like SQLite, PostgreSQL, MariaDB, RDS etc. That implementation is based on the standard
// sql package. It is possible to configure connection via Configuration structure.
// SQLQueriesLog is log for sql queries, default is nil which means nothing is logged
type DBStorage struct {
	connection   *sql.DB
	dbDriverType types.DBDriver
	logTable     string
}

// Tables for the notifier run log. The backup deployment writes into its own
// table so both environments can share one database.
const (
	notifierLogTable       = "logs_notifier"
	notifierLogBackupTable = "logs_backup_notifier"

	backupEnvironment = "backup"
)

// error messages
const (
	unableToCloseDBRowsHandle = "Unable to close DB rows handle"
)

// other messages
const (
	SubscriberIDMessage = "Subscriber ID"
	DeviceIDMessage     = "Device ID"
	EventUIDMessage     = "Event UID"
	NotifiedAtMessage   = "Notified at"
	AgeMessage          = "Age"
	MaxAgeAttribute     = "max age"
	DeleteStatement     = "delete statement"
)

// SQL statements
const (
	// Select all subscribers together with their push device subscriptions
	readSubscriberListQuery = `
		SELECT p.sub_id, s.email, s.tags, s.notification_day_before, s.notification_time,
		       p.endpoint, p.device_id, p.send_push_with_notifications
		  FROM push AS p
		  JOIN subscribers AS s ON p.sub_id = s.id
		 ORDER BY p.sub_id
`

	// Select UIDs of all events already notified to one device
	readSentEventUIDsQuery = `
		SELECT uid
		  FROM push_sent
		 WHERE sub_id = $1
		   AND device_id = $2
		   AND event_target = $3
`

	// Record one delivered event for one device
	insertSentRecordStatement = `
		INSERT INTO push_sent
		(sub_id, uid, device_id, event_target, notified_at)
		VALUES
		($1, $2, $3, $4, $5)
`

	// Display older records from push_sent table
	displayOldRecordsFromPushSentTable = `
		SELECT sub_id, uid, device_id, event_target, notified_at
		  FROM push_sent
		 WHERE notified_at < NOW() - $1::INTERVAL
		 ORDER BY notified_at
`

	// Delete older records from push_sent table
	deleteOldRecordsFromPushSentTable = `
		DELETE
		  FROM push_sent
		 WHERE notified_at < NOW() - $1::INTERVAL
`
)

// NewStorage function creates and initializes a new instance of Storage
// interface. The environment tag selects the notifier run log table.
func NewStorage(configuration *conf.StorageConfiguration, environment string) (*DBStorage, error) {
	driverType, driverName, dataSource, err := initAndGetDriver(configuration)
	if err != nil {
		return nil, err
	}

	log.Info().Msgf(
		"Making connection to data storage, driver=%s datasource=%s",
		driverName, dataSource,
	)

	connection, err := sql.Open(driverName, dataSource)
	if err != nil {
		log.Error().Err(err).Msg("Can not connect to data storage")
		return nil, err
	}

	return NewFromConnection(connection, driverType, environment), nil
}

// NewFromConnection function creates and initializes a new instance of Storage interface from prepared connection
func NewFromConnection(connection *sql.DB, dbDriverType types.DBDriver, environment string) *DBStorage {
	logTable := notifierLogTable
	if environment == backupEnvironment {
		logTable = notifierLogBackupTable
	}
	return &DBStorage{
		connection:   connection,
		dbDriverType: dbDriverType,
		logTable:     logTable,
	}
}

// initAndGetDriver initializes driver(with logs if logSQLQueries is true),
// checks if it's supported and returns driver type, driver name, dataSource and error
func initAndGetDriver(configuration *conf.StorageConfiguration) (driverType types.DBDriver, driverName, dataSource string, err error) {
	driverName = configuration.Driver

	switch driverName {
	case "sqlite3":
		driverType = types.DBDriverSQLite3
		dataSource = configuration.PGDBName
	case "postgres":
		driverType = types.DBDriverPostgres
		dataSource = fmt.Sprintf(
			"postgresql://%v:%v@%v:%v/%v?%v",
			configuration.PGUsername,
			configuration.PGPassword,
			configuration.PGHost,
			configuration.PGPort,
			configuration.PGDBName,
			configuration.PGParams,
		)
	default:
		err = fmt.Errorf("driver %v is not supported", driverName)
		return
	}

	return
}

// Close method closes the connection to database. Needs to be called at the end of application lifecycle.
func (storage DBStorage) Close() error {
	log.Info().Msg("Closing connection to data storage")
	if storage.connection != nil {
		err := storage.connection.Close()
		if err != nil {
			log.Error().Err(err).Msg("Can not close connection to data storage")
			return err
		}
	}
	return nil
}

// ReadSubscriberList method reads all subscribers with at least one push
// device subscription from the database. One row is returned per device.
func (storage DBStorage) ReadSubscriberList() ([]types.Subscriber, error) {
	var subscribers = make([]types.Subscriber, 0)

	rows, err := storage.connection.Query(readSubscriberListQuery)
	if err != nil {
		return subscribers, err
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			log.Error().Err(err).Msg(unableToCloseDBRowsHandle)
		}
	}()

	for rows.Next() {
		var (
			subscriberID          types.SubscriberID
			email                 string
			tags                  sql.NullString
			notificationDayBefore bool
			notificationTime      sql.NullString
			endpoint              string
			deviceID              types.DeviceID
			pushWithNotifications bool
		)

		if err := rows.Scan(
			&subscriberID, &email, &tags, &notificationDayBefore,
			&notificationTime, &endpoint, &deviceID,
			&pushWithNotifications); err != nil {
			if closeErr := rows.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg(unableToCloseDBRowsHandle)
			}
			return subscribers, err
		}
		subscribers = append(subscribers, types.Subscriber{
			ID:                    subscriberID,
			Email:                 email,
			Tags:                  parseTags(tags.String),
			NotificationTime:      notificationTime.String,
			NotificationDayBefore: notificationDayBefore,
			Endpoint:              endpoint,
			DeviceID:              deviceID,
			PushWithNotifications: pushWithNotifications,
		})
	}

	return subscribers, nil
}

// parseTags splits the comma-separated tags column into a list of keywords.
// Surrounding whitespace and empty items are dropped.
func parseTags(tags string) []string {
	parsed := []string{}
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			parsed = append(parsed, tag)
		}
	}
	return parsed
}

// ReadSentEventUIDs method reads UIDs of all events that have already been
// notified to given subscriber device for given event target.
func (storage DBStorage) ReadSentEventUIDs(
	subscriberID types.SubscriberID,
	deviceID types.DeviceID,
	eventTarget types.EventTarget,
) (map[types.EventUID]bool, error) {
	sentUIDs := make(map[types.EventUID]bool)

	rows, err := storage.connection.Query(readSentEventUIDsQuery, subscriberID, deviceID, eventTarget)
	if err != nil {
		return sentUIDs, err
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			log.Error().Err(err).Msg(unableToCloseDBRowsHandle)
		}
	}()

	for rows.Next() {
		var uid types.EventUID

		if err := rows.Scan(&uid); err != nil {
			if closeErr := rows.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg(unableToCloseDBRowsHandle)
			}
			return sentUIDs, err
		}
		sentUIDs[uid] = true
	}

	return sentUIDs, nil
}

// WriteSentRecord method writes one delivered event into the database table
// `push_sent` so the same event is never delivered twice to the same device.
func (storage DBStorage) WriteSentRecord(record types.SentRecord) error {
	_, err := storage.connection.Exec(insertSentRecordStatement,
		record.SubscriberID, record.EventUID, record.DeviceID,
		record.EventTarget, time.Time(record.NotifiedAt))
	if err != nil {
		log.Err(err).
			Int(SubscriberIDMessage, int(record.SubscriberID)).
			Str(DeviceIDMessage, string(record.DeviceID)).
			Str(EventUIDMessage, string(record.EventUID)).
			Msg("Unable to write record into push_sent table")
		return err
	}
	return nil
}

// WriteNotifierLogRecord method writes one record into the notifier run log
// table. The table is selected by the environment tag given to NewStorage.
func (storage DBStorage) WriteNotifierLogRecord(logType, message string, timestamp time.Time) error {
	// log table name is one of two compile-time constants, never user input
	statement := fmt.Sprintf(
		"INSERT INTO %s (type, message, timestamp) VALUES ($1, $2, $3)",
		storage.logTable)

	_, err := storage.connection.Exec(statement, logType, message, timestamp)
	if err != nil {
		log.Err(err).
			Str("type", logType).
			Str("table", storage.logTable).
			Msg("Unable to write record into notifier log table")
		return err
	}
	return nil
}

// CleanupNotifierLog method deletes all non-success and non-error records
// from the notifier run log table, but only when the most recent record
// reports a successful run. Number of deleted rows is returned.
func (storage DBStorage) CleanupNotifierLog() (int, error) {
	selectStatement := fmt.Sprintf(
		"SELECT type FROM %s ORDER BY timestamp DESC LIMIT 1",
		storage.logTable)

	var lastType string
	err := storage.connection.QueryRow(selectStatement).Scan(&lastType)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if lastType != runLogTypeSuccess {
		log.Debug().Str("last type", lastType).Msg("Last run not successful, keeping notifier log")
		return 0, nil
	}

	deleteStatement := fmt.Sprintf(
		"DELETE FROM %s WHERE type != 'success' AND type != 'error'",
		storage.logTable)

	result, err := storage.connection.Exec(deleteStatement)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// getPrintableStatement returns SQL statement in form prepared for logging
func getPrintableStatement(sqlStatement string) string {
	s := strings.ReplaceAll(sqlStatement, "\n", " ")
	s = strings.ReplaceAll(s, "\t", "")
	return strings.Trim(s, " ")
}

// PrintSentRecordsForCleanup method prints all records from `push_sent` table
// older than specified relative time
func (storage DBStorage) PrintSentRecordsForCleanup(maxAge string) error {
	query := displayOldRecordsFromPushSentTable

	log.Info().
		Str(MaxAgeAttribute, maxAge).
		Str("select statement", getPrintableStatement(query)).
		Msg("PrintSentRecordsForCleanup operation")

	rows, err := storage.connection.Query(query, maxAge)
	if err != nil {
		return err
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			log.Error().Err(err).Msg(unableToCloseDBRowsHandle)
		}
	}()

	// used to compute a real record age
	now := time.Now()

	// iterate over all old records
	for rows.Next() {
		var (
			subscriberID int
			uid          string
			deviceID     string
			eventTarget  int
			notifiedAt   time.Time
		)

		// read one old record from the push_sent table
		if err := rows.Scan(&subscriberID, &uid, &deviceID, &eventTarget, &notifiedAt); err != nil {
			// close the result set in case of any error
			if closeErr := rows.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg(unableToCloseDBRowsHandle)
			}
			return err
		}

		// compute the real record age
		age := int(math.Ceil(now.Sub(notifiedAt).Hours() / 24)) // in days

		// just print the record
		log.Info().
			Int(SubscriberIDMessage, subscriberID).
			Str(EventUIDMessage, uid).
			Str(DeviceIDMessage, deviceID).
			Int("Event target", eventTarget).
			Str(NotifiedAtMessage, notifiedAt.Format(time.RFC3339)).
			Int(AgeMessage, age).
			Msg("Old record from `push_sent` table")
	}
	return nil
}

// CleanupSentRecords method deletes all records from `push_sent` table older
// than specified relative time
func (storage DBStorage) CleanupSentRecords(maxAge string) (int, error) {
	statement := deleteOldRecordsFromPushSentTable

	log.Info().
		Str(MaxAgeAttribute, maxAge).
		Str(DeleteStatement, getPrintableStatement(statement)).
		Msg("Cleanup operation for all subscribers")

	// perform the SQL statement
	result, err := storage.connection.Exec(statement, maxAge)
	if err != nil {
		return 0, err
	}

	// read number of affected (deleted) rows
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
