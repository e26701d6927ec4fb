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

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/fermi-calendar/push-notifier-service/types"
)

// Messages
const (
	databasePrintSentRecordsForCleanupFailedMessage = "Print records from `push_sent` table prepared for cleanup failed"
	databaseCleanupSentRecordsFailedMessage         = "Cleanup records from `push_sent` table failed"
	databaseCleanupNotifierLogFailedMessage         = "Cleanup records from notifier log table failed"
	rowsDeletedMessage                              = "Rows deleted"
)

// PerformCleanupOperation function performs selected cleanup operation
func PerformCleanupOperation(storage Storage, cliFlags types.CliFlags) error {
	switch {
	case cliFlags.PrintSentRecordsForCleanup:
		return printSentRecordsForCleanup(storage, cliFlags)
	case cliFlags.PerformSentRecordsCleanup:
		return performSentRecordsCleanup(storage, cliFlags)
	case cliFlags.PerformNotifierLogCleanup:
		return performNotifierLogCleanup(storage)
	default:
		return errors.New("Unknown operation selected")
	}
}

// PerformCleanupOnStartup function cleans up old records in the `push_sent`
// table before the notifier run itself is started.
func PerformCleanupOnStartup(storage Storage, cliFlags types.CliFlags) error {
	return performSentRecordsCleanup(storage, cliFlags)
}

// printSentRecordsForCleanup function prints all records from the `push_sent`
// table that are older than specified max age.
func printSentRecordsForCleanup(storage Storage, cliFlags types.CliFlags) error {
	err := storage.PrintSentRecordsForCleanup(cliFlags.MaxAge)
	if err != nil {
		log.Error().Err(err).Msg(databasePrintSentRecordsForCleanupFailedMessage)
		return err
	}

	return nil
}

// performSentRecordsCleanup function deletes all records from the `push_sent`
// table that are older than specified max age.
func performSentRecordsCleanup(storage Storage, cliFlags types.CliFlags) error {
	affected, err := storage.CleanupSentRecords(cliFlags.MaxAge)
	if err != nil {
		log.Error().Err(err).Msg(databaseCleanupSentRecordsFailedMessage)
		return err
	}
	log.Info().Int(rowsDeletedMessage, affected).Msg("Cleanup `push_sent` finished")

	return nil
}

// performNotifierLogCleanup function compacts the notifier log table, keeping
// only the run summary records of past runs.
func performNotifierLogCleanup(storage Storage) error {
	affected, err := storage.CleanupNotifierLog()
	if err != nil {
		log.Error().Err(err).Msg(databaseCleanupNotifierLogFailedMessage)
		return err
	}
	log.Info().Int(rowsDeletedMessage, affected).Msg("Cleanup notifier log finished")

	return nil
}
