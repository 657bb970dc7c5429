// Package audit implements append only audit trail of store operations.
// Records are never read back by server: they are for humans and external tools.
package audit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/facebookgo/stackerr"
	"github.com/pkg/errors"

	"github.com/skipor/kvserver/log"
	"github.com/skipor/kvserver/protocol"
)

const MinSyncPeriod = 100 * time.Millisecond
const Perm = 0664

var ErrClosed = errors.New("audit file is closed")

type Config struct {
	Name       string
	SyncPeriod time.Duration
	RotateSize int64 // File size, after which file is rotated. 0 if no rotation.
	BufSize    int   // 0 if no buffering.
}

// File is audit file. It is store.AuditLogger.
// Record format is tab separated line: time, operation, key and value.
// Key and value are quoted wire encodings, "-" if absent.
type File struct {
	config Config
	log    log.Logger

	// lock protects fields bellow.
	lock sync.Mutex
	// writer is current proxy io.Writer to write file.
	// It can be file or *bufio.Writer.
	writer io.Writer
	// If buffering is on, flusher.Flush() flushes buffer into file.
	flusher flusher
	file    file
	// closed is set by Close. File can be nil while not closed, if reopen
	// after rotation failed: reopen is retried on next record.
	closed bool
	// Current file size.
	size int64
	buf  []byte
	now  func() time.Time
	open func(name string, flag int, perm os.FileMode) (*os.File, error)
}

func Open(l log.Logger, conf Config) (f *File, err error) {
	f = &File{
		log:    l.WithFields(log.Fields{"audit": conf.Name}),
		config: conf,
		now:    time.Now,
		open:   os.OpenFile,
	}
	err = f.init()
	if err != nil {
		return nil, err
	}
	if !f.isSyncEveryRecord() {
		f.startSync()
	}
	return
}

func (f *File) init() (err error) {
	var file *os.File
	file, err = f.open(f.config.Name, os.O_WRONLY|os.O_APPEND|os.O_CREATE, Perm|os.ModeAppend)
	if err != nil {
		return stackerr.Wrap(err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return stackerr.Wrap(err)
	}
	f.size = stat.Size()
	f.file = file

	if f.config.BufSize == 0 {
		f.writer = file
		f.flusher = nopFlusher{}
		return
	}
	bufWriter := bufio.NewWriterSize(f.file, f.config.BufSize)
	f.writer = bufWriter
	f.flusher = bufWriter
	f.log.Debug("Audit file opened.")
	return
}

// Log appends operation record.
func (f *File) Log(op protocol.Op, key, value protocol.Value) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.closed {
		return stackerr.Wrap(ErrClosed)
	}
	if f.file == nil {
		err := f.init()
		if err != nil {
			return errors.Wrap(err, "audit file reopen failed")
		}
		f.log.Info("Audit file reopened.")
	}
	f.buf = appendRecord(f.buf[:0], f.now(), op, key, value)
	n, err := f.writer.Write(f.buf)
	f.size += int64(n)
	if err != nil {
		return stackerr.Wrap(err)
	}
	if f.isSyncEveryRecord() {
		err = f.sync()
		if err != nil {
			return err
		}
	}
	if f.config.RotateSize > 0 && f.size > f.config.RotateSize {
		return f.rotate()
	}
	return nil
}

func appendRecord(dst []byte, t time.Time, op protocol.Op, key, value protocol.Value) []byte {
	dst = t.UTC().AppendFormat(dst, time.RFC3339Nano)
	dst = append(dst, '\t')
	dst = append(dst, op.String()...)
	for _, v := range []protocol.Value{key, value} {
		dst = append(dst, '\t')
		if v == nil {
			dst = append(dst, '-')
			continue
		}
		dst = strconv.AppendQuote(dst, string(protocol.Serialize(v)))
	}
	return append(dst, '\n')
}

func (f *File) isSyncEveryRecord() bool {
	return f.config.SyncPeriod < MinSyncPeriod
}

func (f *File) sync() (err error) {
	err = f.flusher.Flush()
	if err != nil {
		return stackerr.Wrap(err)
	}
	err = f.file.Sync()
	return stackerr.Wrap(err)
}

func (f *File) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.closed {
		return stackerr.Wrap(ErrClosed)
	}
	f.closed = true
	if f.file == nil {
		return nil
	}
	return f.close()
}

// close flushes and closes current file. Buffered records are lost if flush failed.
func (f *File) close() error {
	ferr := f.flusher.Flush()
	err := f.file.Close()
	f.file = nil
	if ferr != nil {
		return stackerr.Wrap(ferr)
	}
	return stackerr.Wrap(err)
}

// rotate renames current file into archive and opens new one with the same name.
// Requires lock be acquired.
func (f *File) rotate() error {
	archive := fmt.Sprintf("%s.%v", f.config.Name, f.now().UnixNano())
	f.log.Infof("Audit file rotation into %s.", archive)
	closeErr := f.close()
	if closeErr != nil {
		f.log.Error("Audit file close before rotation failed: ", closeErr)
	}
	err := os.Rename(f.config.Name, archive) // Atomic.
	if err != nil {
		f.log.Error("Audit file rename failed: ", err)
	}
	err = f.init()
	if err != nil {
		// Record is already written. Next record retries open.
		f.log.Error("Audit file reopen after rotation failed: ", err)
	}
	return closeErr
}

func (f *File) startSync() {
	go func() {
		ticker := time.NewTicker(f.config.SyncPeriod)
		defer ticker.Stop()
		var prevSize int64
		for {
			_ = <-ticker.C
			f.lock.Lock()
			if f.closed {
				f.lock.Unlock()
				return
			}
			if f.file != nil && f.size != prevSize {
				prevSize = f.size
				err := f.sync()
				if err != nil {
					f.log.Error("Audit file sync failed: ", err)
				}
			}
			f.lock.Unlock()
		}
	}()
}
