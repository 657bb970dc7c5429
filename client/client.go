// Package client implements kvserver protocol client.
// Client sends one request at a time and waits for response, because server
// reads every request with one read.
package client

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/facebookgo/stackerr"
	"github.com/pkg/errors"

	"github.com/skipor/kvserver/protocol"
)

var (
	ErrUnexpectedResponse = errors.New("unexpected response")
	ErrInvalidArrayLen    = errors.New("invalid array length")
)

// ServerError is Error value returned by server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return "server error: " + e.Message }

type Client struct {
	lock   sync.Mutex
	rwc    io.ReadWriteCloser
	reader *bufio.Reader
}

func Dial(addr string) (*Client, error) {
	return DialTimeout(addr, 0)
}

func DialTimeout(addr string, timeout time.Duration) (*Client, error) {
	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, stackerr.Wrap(err)
	}
	return New(c), nil
}

// New creates client over established connection.
func New(rwc io.ReadWriteCloser) *Client {
	return &Client{
		rwc:    rwc,
		reader: bufio.NewReader(rwc),
	}
}

func (c *Client) Close() error {
	return stackerr.Wrap(c.rwc.Close())
}

// Raw sends message as is and returns raw encoding of response value.
func (c *Client) Raw(message []byte) ([]byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	_, err := c.rwc.Write(message)
	if err != nil {
		return nil, stackerr.Wrap(err)
	}
	return readValue(c.reader, nil)
}

// Do sends request and returns parsed response.
// Error response is returned as value, not as ServerError.
func (c *Client) Do(r protocol.Request) (protocol.Value, error) {
	raw, err := c.Raw(protocol.AppendRequest(nil, r))
	if err != nil {
		return nil, err
	}
	return protocol.Parse(string(raw))
}

func (c *Client) Add(key, value protocol.Value) error {
	_, err := c.do(protocol.Request{Op: protocol.OpAdd, Key: key, Value: value})
	return err
}

// Get returns protocol.Null if there is no such key.
func (c *Client) Get(key protocol.Value) (protocol.Value, error) {
	return c.do(protocol.Request{Op: protocol.OpGet, Key: key})
}

func (c *Client) Delete(key protocol.Value) error {
	_, err := c.do(protocol.Request{Op: protocol.OpDelete, Key: key})
	return err
}

func (c *Client) Ping() error {
	res, err := c.do(protocol.Request{Op: protocol.OpPing})
	if err != nil {
		return err
	}
	if !protocol.Equal(res, protocol.String(protocol.PongResponse)) {
		return stackerr.Wrap(errors.Wrapf(ErrUnexpectedResponse, "%v", res))
	}
	return nil
}

func (c *Client) do(r protocol.Request) (protocol.Value, error) {
	res, err := c.Do(r)
	if err != nil {
		return nil, err
	}
	if e, ok := res.(protocol.Error); ok {
		return nil, stackerr.Wrap(&ServerError{string(e)})
	}
	return res, nil
}

// readValue reads one value encoding. Array elements are followed by
// empty line, which is read too. Lines are CRLF terminated: text values can
// contain LF or CR alone.
func readValue(r *bufio.Reader, dst []byte) ([]byte, error) {
	start := len(dst)
	dst, err := readLine(r, dst)
	if err != nil {
		return dst, err
	}
	line := dst[start:]
	if line[0] != protocol.ArrayPrefix {
		return dst, nil
	}
	count := string(bytes.TrimSuffix(line[1:], separator))
	n, err := strconv.Atoi(count)
	if err != nil || n < 0 {
		return dst, stackerr.Wrap(errors.Wrapf(ErrInvalidArrayLen, "%q", line))
	}
	for i := 0; i < n; i++ {
		dst, err = readValue(r, dst)
		if err != nil {
			return dst, err
		}
		dst, err = readLine(r, dst)
		if err != nil {
			return dst, err
		}
	}
	return dst, nil
}

var separator = []byte(protocol.Separator)

// readLine appends line with CRLF terminator to dst.
func readLine(r *bufio.Reader, dst []byte) ([]byte, error) {
	start := len(dst)
	for {
		chunk, err := r.ReadBytes('\n')
		dst = append(dst, chunk...)
		if err != nil {
			return dst, stackerr.Wrap(err)
		}
		if bytes.HasSuffix(dst[start:], separator) {
			return dst, nil
		}
	}
}
