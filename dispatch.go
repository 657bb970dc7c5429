package kvserver

import (
	"github.com/skipor/kvserver/log"
	"github.com/skipor/kvserver/protocol"
)

// Storage is key value storage requests are dispatched to.
// *store.Store implements it.
type Storage interface {
	Add(key, value protocol.Value) error
	Get(key protocol.Value) protocol.Value
	Delete(key protocol.Value) error
	Ping() protocol.Value
}

const (
	KeyNotProvidedMessage       = "Key is not provided"
	ValueNotProvidedMessage     = "Value is not provided"
	AddFailedMessage            = "Error while adding"
	DeleteFailedMessage         = "Error while deleting"
	UnsupportedOperationMessage = "Unsupported operation"
)

// Dispatch applies request to storage and returns response value.
// It never fails: missing fields and storage errors are reported as Error values.
// Storage error details are logged, not returned to client.
func Dispatch(l log.Logger, s Storage, r protocol.Request) protocol.Value {
	switch r.Op {
	case protocol.OpAdd:
		if r.Key == nil {
			return protocol.Error(KeyNotProvidedMessage)
		}
		if r.Value == nil {
			return protocol.Error(ValueNotProvidedMessage)
		}
		err := s.Add(r.Key, r.Value)
		if err != nil {
			l.Error("Add failed: ", err)
			return protocol.Error(AddFailedMessage)
		}
		return protocol.Ok{}
	case protocol.OpGet:
		if r.Key == nil {
			return protocol.Error(KeyNotProvidedMessage)
		}
		v := s.Get(r.Key)
		if v == nil {
			return protocol.Null{}
		}
		return v
	case protocol.OpDelete:
		if r.Key == nil {
			return protocol.Error(KeyNotProvidedMessage)
		}
		err := s.Delete(r.Key)
		if err != nil {
			l.Error("Delete failed: ", err)
			return protocol.Error(DeleteFailedMessage)
		}
		return protocol.Ok{}
	case protocol.OpPing:
		return s.Ping()
	}
	return protocol.Error(UnsupportedOperationMessage)
}
