package store

import (
	"fmt"
	"sync"

	"github.com/facebookgo/stackerr"
	"github.com/pkg/errors"

	"github.com/skipor/kvserver/log"
	"github.com/skipor/kvserver/protocol"
)

const DefaultCapacity = 10000

var (
	ErrInvariantViolated = errors.New("store invariant violated")
	ErrNonPositiveCap    = errors.New("capacity should be positive")
)

// AuditLogger is called by Store before operation applied.
// Nil key or value means it is absent for operation.
// Implementations are called under store lock, so they see operations
// in the order they applied, and should not call Store back.
type AuditLogger interface {
	Log(op protocol.Op, key, value protocol.Value) error
}

type AuditLoggerFunc func(op protocol.Op, key, value protocol.Value) error

func (f AuditLoggerFunc) Log(op protocol.Op, key, value protocol.Value) error {
	return f(op, key, value)
}

type Config struct {
	Capacity int
}

// Store is capacity bounded map from protocol.Value to protocol.Value.
// Store is safe for concurrent use.
type Store struct {
	audit AuditLogger
	log   log.Logger

	mu       sync.Mutex
	table    map[string]*node
	queue    *queue
	capacity int
}

func New(l log.Logger, audit AuditLogger, conf Config) (*Store, error) {
	if conf.Capacity <= 0 {
		return nil, stackerr.Wrap(ErrNonPositiveCap)
	}
	if audit == nil {
		audit = NewLogAuditor(l)
	}
	return &Store{
		audit:    audit,
		log:      l,
		table:    make(map[string]*node),
		queue:    newQueue(),
		capacity: conf.Capacity,
	}, nil
}

// Add inserts or overwrites key value. If store is over capacity after that,
// earliest added key is evicted.
func (s *Store) Add(key, value protocol.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.checkInvariants()
	err := s.audit.Log(protocol.OpAdd, key, value)
	if err != nil {
		return errors.Wrap(err, "add audit failed")
	}
	k := protocol.Key(key)
	if n, ok := s.table[k]; ok {
		s.log.Debugf("Overwrite %v.", key)
		n.Value = value
		s.queue.moveToTail(n)
		return nil
	}
	n := &node{key: k, Key: key, Value: value}
	s.table[k] = n
	s.queue.push(n)
	if s.queue.len > s.capacity {
		return s.evict()
	}
	return nil
}

func (s *Store) evict() error {
	n := s.queue.pop()
	if n == nil {
		return stackerr.Wrap(errors.Wrap(ErrInvariantViolated, "eviction from empty queue"))
	}
	if s.table[n.key] != n {
		return stackerr.Wrap(errors.Wrapf(ErrInvariantViolated, "evicted key %v is not in table", n.Key))
	}
	s.log.Debugf("Evict %v.", n.Key)
	delete(s.table, n.key)
	return nil
}

// Get returns stored value or Null, if there is no such key.
// Audit failure is logged but doesn't fail read.
func (s *Store) Get(key protocol.Value) protocol.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.audit.Log(protocol.OpGet, key, nil)
	if err != nil {
		s.log.Warn("Get audit failed: ", err)
	}
	if n, ok := s.table[protocol.Key(key)]; ok {
		return n.Value
	}
	return protocol.Null{}
}

// Delete removes key if it is present. Absent key is not an error.
func (s *Store) Delete(key protocol.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.checkInvariants()
	err := s.audit.Log(protocol.OpDelete, key, nil)
	if err != nil {
		return errors.Wrap(err, "delete audit failed")
	}
	k := protocol.Key(key)
	n, ok := s.table[k]
	if !ok {
		return nil
	}
	s.queue.remove(n)
	delete(s.table, k)
	return nil
}

// Ping never logs and never touches data.
func (s *Store) Ping() protocol.Value {
	return protocol.String(protocol.PongResponse)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.table)
}

func (s *Store) Capacity() int { return s.capacity }

// Keys returns stored keys in eviction order: earliest added first.
func (s *Store) Keys() []protocol.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]protocol.Value, 0, s.queue.len)
	for n := s.queue.head(); !s.queue.end(n); n = n.next {
		keys = append(keys, n.Key)
	}
	return keys
}

// LogAuditor is default AuditLogger. It writes operation into log and never fails.
type LogAuditor struct {
	log log.Logger
}

func NewLogAuditor(l log.Logger) *LogAuditor {
	return &LogAuditor{l.WithFields(log.Fields{"component": "audit"})}
}

func (a *LogAuditor) Log(op protocol.Op, key, value protocol.Value) error {
	a.log.WithFields(log.Fields{
		"op":    op.String(),
		"key":   valueField(key),
		"value": valueField(value),
	}).Info("Audit.")
	return nil
}

func valueField(v protocol.Value) interface{} {
	if v == nil {
		return nil
	}
	return fmt.Sprint(v)
}
