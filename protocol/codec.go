package protocol

import (
	"bufio"
	"math/big"
	"strconv"
	"strings"

	"github.com/facebookgo/stackerr"
	"github.com/pkg/errors"
)

// AppendValue appends v wire encoding to dst.
// Array element encoding is followed by extra separator, so every element
// ends with doubled CRLF. Wire compatible clients expect exactly that.
func AppendValue(dst []byte, v Value) []byte {
	switch v := v.(type) {
	case String:
		dst = append(dst, StringPrefix)
		dst = append(dst, string(v)...)
	case Integer:
		dst = append(dst, IntegerPrefix)
		dst = append(dst, v.decimal()...)
	case Array:
		dst = append(dst, ArrayPrefix)
		dst = strconv.AppendInt(dst, int64(len(v)), 10)
		dst = append(dst, Separator...)
		for _, elem := range v {
			dst = AppendValue(dst, elem)
			dst = append(dst, Separator...)
		}
		return dst
	case Error:
		dst = append(dst, ErrorPrefix)
		dst = append(dst, string(v)...)
	case Null:
		dst = append(dst, NullLine...)
	case Ok, EventChannel:
		dst = append(dst, OkLine...)
	default:
		panic("unexpected value: " + stringOf(v))
	}
	return append(dst, Separator...)
}

func Serialize(v Value) []byte {
	return AppendValue(nil, v)
}

// WriteValue writes v encoding into w. Caller should flush w.
func WriteValue(w *bufio.Writer, v Value) error {
	buf := AppendValue(w.AvailableBuffer(), v)
	_, err := w.Write(buf)
	return stackerr.Wrap(err)
}

// Parse parses single value. Input is one value encoding, trailing separator is optional.
// Non array value is the whole input after type prefix, so it can contain LF or CR.
// Array input is split into CRLF separated lines.
// Line of unknown type is not an error: it is parsed as Error value.
func Parse(s string) (Value, error) {
	s = strings.TrimSuffix(s, Separator)
	if s == "" {
		return nil, stackerr.Wrap(ErrEmptyLine)
	}
	if s[0] != ArrayPrefix {
		return parseLine(s)
	}
	p := &parser{lines: strings.Split(s, Separator)}
	p.next() // Count line.
	// Top level array count is advisory: all lines left are elements.
	return p.array(-1)
}

type parser struct {
	lines []string
	pos   int
}

func (p *parser) next() string {
	line := p.lines[p.pos]
	p.pos++
	return line
}

// nextElement skips blank lines, which are element terminators.
func (p *parser) nextElement() (line string, ok bool) {
	for p.pos < len(p.lines) {
		line = p.next()
		if line != "" {
			return line, true
		}
	}
	return "", false
}

// array parses array elements after count line. Negative limit means all left lines.
// Nested arrays consume no more elements than their count line declares.
func (p *parser) array(limit int) (Value, error) {
	arr := Array{}
	for limit < 0 || len(arr) < limit {
		line, ok := p.nextElement()
		if !ok {
			break
		}
		var elem Value
		var err error
		if line[0] == ArrayPrefix {
			var n int
			n, err = strconv.Atoi(line[1:])
			if err != nil || n < 0 {
				n = 0
			}
			elem, err = p.array(n)
		} else {
			elem, err = parseLine(line)
		}
		if err != nil {
			return nil, err
		}
		arr = append(arr, elem)
	}
	return arr, nil
}

func parseLine(line string) (Value, error) {
	if line == "" {
		return nil, stackerr.Wrap(ErrEmptyLine)
	}
	if line == NullLine {
		return Null{}, nil
	}
	rest := line[1:]
	switch line[0] {
	case StringPrefix:
		return String(rest), nil
	case IntegerPrefix:
		return parseInteger(rest)
	case ArrayPrefix:
		// Count line only.
		return Array{}, nil
	case ErrorPrefix:
		return Error(rest), nil
	}
	return Error(UnknownTypeMessage + line), nil
}

func parseInteger(s string) (Value, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, stackerr.Wrap(errors.Wrapf(ErrInvalidInteger, "%q", s))
	}
	i, ok := IntegerFromBig(b)
	if !ok {
		return nil, stackerr.Wrap(errors.Wrapf(ErrIntegerOverflow, "%q", s))
	}
	return i, nil
}
