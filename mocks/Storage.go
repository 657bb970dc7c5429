package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/skipor/kvserver/protocol"
)

// Storage is mock of kvserver.Storage.
type Storage struct {
	mock.Mock
}

func (_m *Storage) Add(key protocol.Value, value protocol.Value) error {
	ret := _m.Called(key, value)

	var r0 error
	if rf, ok := ret.Get(0).(func(protocol.Value, protocol.Value) error); ok {
		r0 = rf(key, value)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

func (_m *Storage) Get(key protocol.Value) protocol.Value {
	ret := _m.Called(key)

	var r0 protocol.Value
	if rf, ok := ret.Get(0).(func(protocol.Value) protocol.Value); ok {
		r0 = rf(key)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(protocol.Value)
	}

	return r0
}

func (_m *Storage) Delete(key protocol.Value) error {
	ret := _m.Called(key)

	var r0 error
	if rf, ok := ret.Get(0).(func(protocol.Value) error); ok {
		r0 = rf(key)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

func (_m *Storage) Ping() protocol.Value {
	ret := _m.Called()

	var r0 protocol.Value
	if rf, ok := ret.Get(0).(func() protocol.Value); ok {
		r0 = rf()
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(protocol.Value)
	}

	return r0
}
