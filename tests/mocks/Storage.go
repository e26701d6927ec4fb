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

package mocks

import (
	time "time"

	mock "github.com/stretchr/testify/mock"

	types "github.com/fermi-calendar/push-notifier-service/types"
)

// Storage is a mock type for the Storage type
type Storage struct {
	mock.Mock
}

// Close provides a mock function with given fields:
func (_m *Storage) Close() error {
	ret := _m.Called()

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// ReadSubscriberList provides a mock function with given fields:
func (_m *Storage) ReadSubscriberList() ([]types.Subscriber, error) {
	ret := _m.Called()

	var r0 []types.Subscriber
	if rf, ok := ret.Get(0).(func() []types.Subscriber); ok {
		r0 = rf()
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]types.Subscriber)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func() error); ok {
		r1 = rf()
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ReadSentEventUIDs provides a mock function with given fields: subscriberID, deviceID, eventTarget
func (_m *Storage) ReadSentEventUIDs(subscriberID types.SubscriberID, deviceID types.DeviceID, eventTarget types.EventTarget) (map[types.EventUID]bool, error) {
	ret := _m.Called(subscriberID, deviceID, eventTarget)

	var r0 map[types.EventUID]bool
	if rf, ok := ret.Get(0).(func(types.SubscriberID, types.DeviceID, types.EventTarget) map[types.EventUID]bool); ok {
		r0 = rf(subscriberID, deviceID, eventTarget)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(map[types.EventUID]bool)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(types.SubscriberID, types.DeviceID, types.EventTarget) error); ok {
		r1 = rf(subscriberID, deviceID, eventTarget)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// WriteSentRecord provides a mock function with given fields: record
func (_m *Storage) WriteSentRecord(record types.SentRecord) error {
	ret := _m.Called(record)

	var r0 error
	if rf, ok := ret.Get(0).(func(types.SentRecord) error); ok {
		r0 = rf(record)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// WriteNotifierLogRecord provides a mock function with given fields: logType, message, timestamp
func (_m *Storage) WriteNotifierLogRecord(logType string, message string, timestamp time.Time) error {
	ret := _m.Called(logType, message, timestamp)

	var r0 error
	if rf, ok := ret.Get(0).(func(string, string, time.Time) error); ok {
		r0 = rf(logType, message, timestamp)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// CleanupNotifierLog provides a mock function with given fields:
func (_m *Storage) CleanupNotifierLog() (int, error) {
	ret := _m.Called()

	var r0 int
	if rf, ok := ret.Get(0).(func() int); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(int)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func() error); ok {
		r1 = rf()
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// PrintSentRecordsForCleanup provides a mock function with given fields: maxAge
func (_m *Storage) PrintSentRecordsForCleanup(maxAge string) error {
	ret := _m.Called(maxAge)

	var r0 error
	if rf, ok := ret.Get(0).(func(string) error); ok {
		r0 = rf(maxAge)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// CleanupSentRecords provides a mock function with given fields: maxAge
func (_m *Storage) CleanupSentRecords(maxAge string) (int, error) {
	ret := _m.Called(maxAge)

	var r0 int
	if rf, ok := ret.Get(0).(func(string) int); ok {
		r0 = rf(maxAge)
	} else {
		r0 = ret.Get(0).(int)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(string) error); ok {
		r1 = rf(maxAge)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}
