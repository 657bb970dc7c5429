// Package protocol implements simplified RESP-like wire protocol:
// tagged values, their line encoding and request framing.
//
// Every value is encoded as one or more CRLF terminated lines:
//
//	String   +text
//	Integer  :decimal
//	Array    *len, then every element encoding followed by extra CRLF
//	Error    -text
//	Null     $-1
//	Ok       +OK
//
// Request is one message of CRLF separated fields: verb, then optional key and
// value fields in value encoding. For example "ADD\r\n+key\r\n:42".
package protocol

import (
	"github.com/pkg/errors"
)

const (
	Separator = "\r\n"

	StringPrefix  = '+'
	IntegerPrefix = ':'
	ArrayPrefix   = '*'
	ErrorPrefix   = '-'
	NullLine      = "$-1"
	OkLine        = "+OK"

	AddCommand    = "ADD"
	GetCommand    = "GET"
	DeleteCommand = "DELETE"
	PingCommand   = "PING"

	PongResponse = "PONG"

	UnknownCommandMessage = "Unknown command"
	UnknownTypeMessage    = "Unknown type: "
)

var (
	ErrEmptyLine       = errors.New("empty line")
	ErrInvalidInteger  = errors.New("invalid integer")
	ErrIntegerOverflow = errors.New("integer overflows 128 bits")

	separatorBytes = []byte(Separator)
)
