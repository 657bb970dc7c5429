// Package kvserver implements in memory key value server.
// Every accepted connection is served by one worker of fixed size pool
// for the whole connection life, so pool size limits served connections number.
package kvserver

import (
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/facebookgo/stackerr"
	"github.com/pkg/errors"

	"github.com/skipor/kvserver/audit"
	"github.com/skipor/kvserver/log"
	"github.com/skipor/kvserver/recycle"
	"github.com/skipor/kvserver/store"
	"github.com/skipor/kvserver/workerpool"
)

const (
	DefaultAddr    = ":6379"
	DefaultWorkers = 4
)

var ErrServerClosed = errors.New("server closed")

type Server struct {
	Addr string
	ConnMeta
	Workers int
	Log     log.Logger

	mu          sync.Mutex
	pool        *workerpool.Pool
	listener    net.Listener
	closed      bool
	closers     []io.Closer
	connCounter int64
}

// ConnMeta is data shared between connections.
type ConnMeta struct {
	Storage        Storage
	Pool           *recycle.Pool
	ReadBufferSize int
	Metrics        *Metrics
}

// NewServer creates server with store and optional audit file described by conf.
func NewServer(l log.Logger, conf Config) (*Server, error) {
	s := &Server{
		Addr:    conf.Addr,
		Workers: conf.Workers,
		Log:     l,
		ConnMeta: ConnMeta{
			ReadBufferSize: conf.ReadBufferSize,
		},
	}
	var auditor store.AuditLogger
	if conf.Audit.Name != "" {
		f, err := audit.Open(l, conf.Audit)
		if err != nil {
			return nil, errors.Wrap(err, "audit file open failed")
		}
		auditor = f
		s.closers = append(s.closers, f)
	}
	st, err := store.New(l, auditor, store.Config{Capacity: conf.Capacity})
	if err != nil {
		s.closeAll()
		return nil, err
	}
	s.Storage = st
	return s, nil
}

func (s *Server) ListenAndServe() error {
	if s.Addr == "" {
		s.Addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return stackerr.Wrap(err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on l and submits them to worker pool.
// Serve returns ErrServerClosed after Close.
func (s *Server) Serve(l net.Listener) error {
	err := s.start(l)
	if err != nil {
		l.Close()
		return err
	}
	var tempDelay time.Duration // How long to sleep on accept failure.
	for {
		c, err := l.Accept()
		if err != nil {
			if s.isClosed() {
				return stackerr.Wrap(ErrServerClosed)
			}
			if ne, ok := err.(net.Error); !(ok && ne.Temporary()) {
				return stackerr.Wrap(err)
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if max := 1 * time.Second; tempDelay > max {
				tempDelay = max
			}
			s.Log.Errorf("kvserver: Accept error: %v; retrying in %v", err, tempDelay)
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0
		s.Metrics.Accepted.Inc(1)
		conn := s.newConn(c)
		err = s.pool.Submit(conn.serve)
		if err != nil {
			conn.log.Error("Connection submit failed: ", err)
			c.Close()
		}
	}
}

func (s *Server) newConn(c net.Conn) *conn {
	conn := newConn(s.Log.WithFields(log.Fields{"conn": s.connCounter}), &s.ConnMeta, c)
	s.connCounter++
	return conn
}

// Close stops accepting connections and terminates worker pool.
// It blocks until all connections being served are closed by clients.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return stackerr.Wrap(ErrServerClosed)
	}
	s.closed = true
	ln, pool := s.listener, s.pool
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = stackerr.Wrap(ln.Close())
	}
	if pool != nil {
		s.Log.Info("Waiting for served connections close.")
		if perr := pool.Terminate(); err == nil {
			err = perr
		}
	}
	if cerr := s.closeAll(); err == nil {
		err = cerr
	}
	return err
}

func (s *Server) closeAll() (err error) {
	for _, c := range s.closers {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	s.closers = nil
	return
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) start(l net.Listener) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stackerr.Wrap(ErrServerClosed)
	}
	if s.listener != nil {
		return stackerr.Newf("server is already serving on %v", s.listener.Addr())
	}
	s.init()
	s.pool, err = workerpool.New(s.Log.WithFields(log.Fields{"component": "workerpool"}), s.Workers)
	if err != nil {
		return err
	}
	s.Metrics.registerPool(s.pool.Busy, s.pool.Pending)
	s.listener = l
	s.Log.Infof("Serve on %v with %v workers.", l.Addr(), s.Workers)
	return nil
}

func (s *Server) init() {
	if s.Log == nil {
		s.Log = log.NewLogger(log.ErrorLevel, os.Stderr)
	}
	if s.Workers == 0 {
		s.Workers = DefaultWorkers
	}
	s.ConnMeta.init()
	if s.ReadBufferSize > s.Pool.MaxChunkSize() {
		s.Log.Warnf("Read buffer size %v is larger than max pooled chunk size. Buffers will not be reused.", s.ReadBufferSize)
	}
}

func (m *ConnMeta) init() {
	if m.Storage == nil {
		panic("nil storage")
	}
	if m.Pool == nil {
		m.Pool = recycle.NewPool()
	}
	if m.ReadBufferSize == 0 {
		m.ReadBufferSize = DefaultReadBufferSize
	}
	if m.Metrics == nil {
		m.Metrics = NewMetrics(nil)
	}
}
