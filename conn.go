package kvserver

import (
	"bufio"
	"io"
	"time"

	"github.com/facebookgo/stackerr"

	"github.com/skipor/kvserver/internal/util"
	"github.com/skipor/kvserver/log"
	"github.com/skipor/kvserver/protocol"
)

const (
	DefaultReadBufferSize = 256
	MinReadBufferSize     = 16
	OutBufferSize         = 1 << 10
)

// conn serves one client. Every read is one message: framing is not supported,
// so client should not send next request before response to previous received.
type conn struct {
	*ConnMeta
	log    log.Logger
	reader io.Reader
	writer *bufio.Writer
	closer io.Closer
	buf    []byte
}

func newConn(l log.Logger, m *ConnMeta, rwc io.ReadWriteCloser) *conn {
	return &conn{
		ConnMeta: m,
		log:      l,
		reader:   rwc,
		writer:   bufio.NewWriterSize(rwc, OutBufferSize),
		closer:   rwc,
	}
}

// serve runs until client disconnects or I/O fails.
// Panic is passed to worker after connection close.
func (c *conn) serve() {
	c.log.Debug("Serve connection.")
	c.Metrics.Active.Inc(1)
	c.buf = c.Pool.Chunk(c.ReadBufferSize)
	defer func() {
		c.Metrics.Active.Dec(1)
		c.Pool.Recycle(c.buf)
		c.buf = nil
		c.closer.Close()
		c.log.Debug("Connection closed.")
	}()

	err := c.loop()
	if err != nil {
		c.log.Error("Serve error: ", err)
	}
}

func (c *conn) loop() error {
	for {
		n, err := c.reader.Read(c.buf)
		if n > 0 {
			werr := c.handle(c.buf[:n])
			if werr != nil {
				return werr
			}
		}
		if err != nil {
			if err == io.EOF {
				// Just client disconnect. Ok.
				return nil
			}
			return stackerr.Wrap(err)
		}
	}
}

func (c *conn) handle(message []byte) error {
	start := time.Now()
	var res protocol.Value
	req, err := protocol.ParseRequest(message)
	if err != nil {
		c.log.Warn("Request parse error: ", err)
		c.Metrics.ParseErrors.Inc(1)
		res = protocol.Error(util.Unwrap(err).Error())
	} else {
		c.log.Debugf("Request: %v.", req)
		res = Dispatch(c.log, c.Storage, req)
	}
	err = protocol.WriteValue(c.writer, res)
	if err == nil {
		err = stackerr.Wrap(c.writer.Flush())
	}
	c.Metrics.request(start)
	return err
}
