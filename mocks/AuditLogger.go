package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/skipor/kvserver/protocol"
)

// AuditLogger is mock of store.AuditLogger.
type AuditLogger struct {
	mock.Mock
}

func (_m *AuditLogger) Log(op protocol.Op, key protocol.Value, value protocol.Value) error {
	ret := _m.Called(op, key, value)

	var r0 error
	if rf, ok := ret.Get(0).(func(protocol.Op, protocol.Value, protocol.Value) error); ok {
		r0 = rf(op, key, value)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}
