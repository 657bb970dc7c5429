package protocol

import (
	"bytes"
	"strconv"
	"strings"
)

type Op uint8

const (
	OpAdd Op = iota
	OpGet
	OpDelete
	OpPing
	// OpError is operation of request with unknown verb.
	OpError
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "Add"
	case OpGet:
		return "Get"
	case OpDelete:
		return "Delete"
	case OpPing:
		return "Ping"
	case OpError:
		return "Error"
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

var verbs = map[string]Op{
	AddCommand:    OpAdd,
	GetCommand:    OpGet,
	DeleteCommand: OpDelete,
	PingCommand:   OpPing,
}

// Verb returns command verb of operation, or false for OpError.
func (o Op) Verb() (string, bool) {
	for verb, op := range verbs {
		if op == o {
			return verb, true
		}
	}
	return "", false
}

// Request is parsed client message. Nil Key or Value means that field was not provided.
type Request struct {
	Op    Op
	Key   Value
	Value Value
}

func (r Request) String() string {
	return r.Op.String() + "(" + stringOf(r.Key) + ", " + stringOf(r.Value) + ")"
}

// ParseRequest parses raw message. Message is exactly one request.
// Verb is case sensitive. Unknown verb is not an error: request with OpError
// and Error("Unknown command") key is returned. Fields after value are ignored.
func ParseRequest(raw []byte) (r Request, err error) {
	// Unused tail of fixed size read buffer can be zeroed.
	raw = bytes.ReplaceAll(raw, []byte{0}, nil)
	raw = bytes.TrimSuffix(raw, separatorBytes)
	fields := strings.Split(string(raw), Separator)
	op, ok := verbs[fields[0]]
	if !ok {
		r = Request{Op: OpError, Key: Error(UnknownCommandMessage)}
		return
	}
	r.Op = op
	if len(fields) > 1 {
		r.Key, err = parseLine(fields[1])
		if err != nil {
			return Request{}, err
		}
	}
	if len(fields) > 2 {
		r.Value, err = parseLine(fields[2])
		if err != nil {
			return Request{}, err
		}
	}
	return
}

// AppendRequest appends r message encoding to dst. Key and value should not be arrays:
// their element lines would be read as request fields.
func AppendRequest(dst []byte, r Request) []byte {
	verb, ok := r.Op.Verb()
	if !ok {
		verb = r.Op.String()
	}
	dst = append(dst, verb...)
	for _, v := range []Value{r.Key, r.Value} {
		if v == nil {
			break
		}
		dst = append(dst, Separator...)
		dst = bytes.TrimSuffix(AppendValue(dst, v), separatorBytes)
	}
	return dst
}
