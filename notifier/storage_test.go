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

package notifier_test

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/fermi-calendar/push-notifier-service/conf"
	"github.com/fermi-calendar/push-notifier-service/notifier"
	"github.com/fermi-calendar/push-notifier-service/types"
)

// mustCreateMockConnection function tries to create a new mock connection and
// checks if the operation was finished without problems.
func mustCreateMockConnection(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	// try to initialize new mock connection
	connection, mock, err := sqlmock.New()

	// check the status
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}

	return connection, mock
}

// checkConnectionClose function perform mocked DB closing operation and checks
// if the connection is properly closed from unit tests.
func checkConnectionClose(t *testing.T, connection *sql.DB) {
	// connection to mocked DB needs to be closed properly
	err := connection.Close()

	// check the error status
	if err != nil {
		t.Fatalf("error during closing connection: %v", err)
	}
}

// checkAllExpectations function checks if all database-related operations have
// been really met.
func checkAllExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	// check if all expectations were met
	err := mock.ExpectationsWereMet()

	// check the error status
	if err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestReadSubscriberList(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	rows := sqlmock.NewRows([]string{
		"sub_id", "email", "tags", "notification_day_before", "notification_time",
		"endpoint", "device_id", "send_push_with_notifications"})
	rows.AddRow(1, "first@example.com", "orario, variazioni", true, "07:30:00",
		"https://push.example.com/sub/1", "device-1", true)
	rows.AddRow(2, "second@example.com", nil, false, nil,
		"https://push.example.com/sub/2", "device-2", false)

	mock.ExpectQuery("SELECT p.sub_id, s.email, s.tags").WillReturnRows(rows)
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "")

	subscribers, err := storage.ReadSubscriberList()
	assert.NoError(t, err, "error not expected while reading subscriber list")

	assert.Len(t, subscribers, 2, "two subscriber devices expected")

	assert.Equal(t, types.SubscriberID(1), subscribers[0].ID)
	assert.Equal(t, "first@example.com", subscribers[0].Email)
	assert.Equal(t, []string{"orario", "variazioni"}, subscribers[0].Tags)
	assert.True(t, subscribers[0].NotificationDayBefore)
	assert.Equal(t, "07:30:00", subscribers[0].NotificationTime)
	assert.Equal(t, types.DeviceID("device-1"), subscribers[0].DeviceID)
	assert.True(t, subscribers[0].PushWithNotifications)

	// NULL tags and NULL notification time must not break the reader
	assert.Equal(t, types.SubscriberID(2), subscribers[1].ID)
	assert.Empty(t, subscribers[1].Tags)
	assert.Equal(t, "", subscribers[1].NotificationTime)
	assert.False(t, subscribers[1].PushWithNotifications)

	checkConnectionClose(t, connection)
	checkAllExpectations(t, mock)
}

func TestReadSubscriberListOnError(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	mockedError := errors.New("mocked error")
	mock.ExpectQuery("SELECT p.sub_id, s.email, s.tags").WillReturnError(mockedError)
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "")

	subscribers, err := storage.ReadSubscriberList()
	assert.Equal(t, mockedError, err)
	assert.Empty(t, subscribers)

	checkConnectionClose(t, connection)
	checkAllExpectations(t, mock)
}

func TestReadSentEventUIDs(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	rows := sqlmock.NewRows([]string{"uid"})
	rows.AddRow("event-1")
	rows.AddRow("event-2")

	mock.ExpectQuery("SELECT uid").
		WithArgs(1, "device-1", int8(types.PushBackendTarget)).
		WillReturnRows(rows)
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "")

	sentUIDs, err := storage.ReadSentEventUIDs(
		types.SubscriberID(1), types.DeviceID("device-1"), types.PushBackendTarget)
	assert.NoError(t, err, "error not expected while reading sent event UIDs")

	assert.Len(t, sentUIDs, 2)
	assert.True(t, sentUIDs["event-1"])
	assert.True(t, sentUIDs["event-2"])
	assert.False(t, sentUIDs["event-3"])

	checkConnectionClose(t, connection)
	checkAllExpectations(t, mock)
}

func TestReadSentEventUIDsOnError(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	mockedError := errors.New("mocked error")
	mock.ExpectQuery("SELECT uid").WillReturnError(mockedError)
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "")

	sentUIDs, err := storage.ReadSentEventUIDs(
		types.SubscriberID(1), types.DeviceID("device-1"), types.PushBackendTarget)
	assert.Equal(t, mockedError, err)
	assert.Empty(t, sentUIDs)

	checkConnectionClose(t, connection)
	checkAllExpectations(t, mock)
}

func TestWriteSentRecord(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	mock.ExpectExec("INSERT INTO push_sent").
		WithArgs(1, "event-1", "device-1", int8(types.PushBackendTarget), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "")

	err := storage.WriteSentRecord(types.SentRecord{
		SubscriberID: 1,
		DeviceID:     "device-1",
		EventUID:     "event-1",
		EventTarget:  types.PushBackendTarget,
		NotifiedAt:   types.Timestamp(time.Now()),
	})
	assert.NoError(t, err, "error not expected while writing sent record")

	checkConnectionClose(t, connection)
	checkAllExpectations(t, mock)
}

func TestWriteSentRecordOnError(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	mockedError := errors.New("mocked error")
	mock.ExpectExec("INSERT INTO push_sent").WillReturnError(mockedError)
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "")

	err := storage.WriteSentRecord(types.SentRecord{
		SubscriberID: 1,
		DeviceID:     "device-1",
		EventUID:     "event-1",
		EventTarget:  types.PushBackendTarget,
		NotifiedAt:   types.Timestamp(time.Now()),
	})
	assert.Equal(t, mockedError, err)

	checkConnectionClose(t, connection)
	checkAllExpectations(t, mock)
}

func TestWriteNotifierLogRecord(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	mock.ExpectExec("INSERT INTO logs_notifier").
		WithArgs("success", "notifier run finished", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "")

	err := storage.WriteNotifierLogRecord("success", "notifier run finished", time.Now())
	assert.NoError(t, err, "error not expected while writing notifier log record")

	checkConnectionClose(t, connection)
	checkAllExpectations(t, mock)
}

// The backup deployment must write into its dedicated log table.
func TestWriteNotifierLogRecordBackupEnvironment(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	mock.ExpectExec("INSERT INTO logs_backup_notifier").
		WithArgs("error", "something failed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "backup")

	err := storage.WriteNotifierLogRecord("error", "something failed", time.Now())
	assert.NoError(t, err, "error not expected while writing notifier log record")

	checkConnectionClose(t, connection)
	checkAllExpectations(t, mock)
}

func TestCleanupNotifierLogAfterSuccessfulRun(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	rows := sqlmock.NewRows([]string{"type"}).AddRow("success")
	mock.ExpectQuery("SELECT type FROM logs_notifier").WillReturnRows(rows)
	mock.ExpectExec("DELETE FROM logs_notifier").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "")

	deleted, err := storage.CleanupNotifierLog()
	assert.NoError(t, err, "error not expected while cleaning up notifier log")
	assert.Equal(t, 3, deleted)

	checkConnectionClose(t, connection)
	checkAllExpectations(t, mock)
}

// When the most recent run failed the log must be kept for investigation.
func TestCleanupNotifierLogAfterFailedRun(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	rows := sqlmock.NewRows([]string{"type"}).AddRow("error")
	mock.ExpectQuery("SELECT type FROM logs_notifier").WillReturnRows(rows)
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "")

	deleted, err := storage.CleanupNotifierLog()
	assert.NoError(t, err, "error not expected while cleaning up notifier log")
	assert.Equal(t, 0, deleted)

	checkConnectionClose(t, connection)
	checkAllExpectations(t, mock)
}

func TestCleanupNotifierLogEmptyTable(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	mock.ExpectQuery("SELECT type FROM logs_notifier").WillReturnError(sql.ErrNoRows)
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "")

	deleted, err := storage.CleanupNotifierLog()
	assert.NoError(t, err, "empty notifier log is not an error")
	assert.Equal(t, 0, deleted)

	checkConnectionClose(t, connection)
	checkAllExpectations(t, mock)
}

func TestCleanupSentRecords(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	mock.ExpectExec("DELETE\\s+FROM push_sent").
		WithArgs("90 days").
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "")

	deleted, err := storage.CleanupSentRecords("90 days")
	assert.NoError(t, err, "error not expected while cleaning up sent records")
	assert.Equal(t, 5, deleted)

	checkConnectionClose(t, connection)
	checkAllExpectations(t, mock)
}

func TestCleanupSentRecordsOnError(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	mockedError := errors.New("mocked error")
	mock.ExpectExec("DELETE\\s+FROM push_sent").WillReturnError(mockedError)
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "")

	deleted, err := storage.CleanupSentRecords("90 days")
	assert.Equal(t, mockedError, err)
	assert.Equal(t, 0, deleted)

	checkConnectionClose(t, connection)
	checkAllExpectations(t, mock)
}

func TestPrintSentRecordsForCleanup(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)

	rows := sqlmock.NewRows([]string{"sub_id", "uid", "device_id", "event_target", "notified_at"})
	rows.AddRow(1, "event-1", "device-1", 1, time.Now().Add(-100*24*time.Hour))

	mock.ExpectQuery("SELECT sub_id, uid, device_id, event_target, notified_at").
		WithArgs("90 days").
		WillReturnRows(rows)
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "")

	err := storage.PrintSentRecordsForCleanup("90 days")
	assert.NoError(t, err, "error not expected while printing old sent records")

	checkConnectionClose(t, connection)
	checkAllExpectations(t, mock)
}

func TestNewStorageWithUnsupportedDriver(t *testing.T) {
	storage, err := notifier.NewStorage(&conf.StorageConfiguration{
		Driver: "non existing driver",
	}, "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "is not supported")
	assert.Nil(t, storage)
}

func TestNewStoragePostgres(t *testing.T) {
	storage, err := notifier.NewStorage(&conf.StorageConfiguration{
		Driver:     "postgres",
		PGUsername: "user",
		PGPassword: "password",
		PGHost:     "localhost",
		PGPort:     5432,
		PGDBName:   "fermi",
		PGParams:   "",
	}, "")
	assert.NoError(t, err, "connection is opened lazily, no error expected")
	assert.NotNil(t, storage)
}

func TestNewStorageSQLite3(t *testing.T) {
	storage, err := notifier.NewStorage(&conf.StorageConfiguration{
		Driver:   "sqlite3",
		PGDBName: ":memory:",
	}, "")
	assert.NoError(t, err, "connection is opened lazily, no error expected")
	assert.NotNil(t, storage)
}

func TestClose(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	mock.ExpectClose()

	storage := notifier.NewFromConnection(connection, types.DBDriverPostgres, "")

	err := storage.Close()
	assert.NoError(t, err, "error not expected while closing storage")

	checkAllExpectations(t, mock)
}
