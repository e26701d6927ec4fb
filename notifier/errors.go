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

// FetchEventsError occurs when the calendar export cannot be retrieved
type FetchEventsError struct{}

func (e *FetchEventsError) Error() string {
	return "FetchEventsError"
}

// StatusStorageError is related to any storage error
type StatusStorageError struct{}

func (e *StatusStorageError) Error() string {
	return "StatusStorageError"
}

// KafkaBrokerError represents an error related to Kafka initialization
type KafkaBrokerError struct{}

func (e *KafkaBrokerError) Error() string {
	return "KafkaBrokerError"
}

// PushServiceError represents an error when creating the push service connection
type PushServiceError struct {
	Msg string
}

func (e *PushServiceError) Error() string {
	return e.Msg
}

// StatusMetricsError is related to any metrics push error
type StatusMetricsError struct{}

func (e *StatusMetricsError) Error() string {
	return "StatusMetricsError"
}

// StatusConfigurationError is related to any configuration error
type StatusConfigurationError struct{}

func (e *StatusConfigurationError) Error() string {
	return "StatusConfigurationError"
}
