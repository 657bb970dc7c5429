package protocol

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

type Kind uint8

const (
	StringKind Kind = iota
	IntegerKind
	ArrayKind
	EventChannelKind
	ErrorKind
	NullKind
	OkKind
)

func (k Kind) String() string {
	switch k {
	case StringKind:
		return "String"
	case IntegerKind:
		return "Integer"
	case ArrayKind:
		return "Array"
	case EventChannelKind:
		return "EventChannel"
	case ErrorKind:
		return "Error"
	case NullKind:
		return "Null"
	case OkKind:
		return "Ok"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is tagged union of wire types. Concrete types are
// String, Integer, Array, EventChannel, Error, Null and Ok.
// Nil Value means absent value.
type Value interface {
	Kind() Kind
	fmt.Stringer
}

type String string

// Integer is 128-bit signed integer. Zero value is 0.
type Integer struct {
	i *big.Int
}

type Array []Value

type EventChannel struct{}

// Error is error message sent on wire. It is a value, not Go error.
type Error string

type Null struct{}

type Ok struct{}

func (String) Kind() Kind       { return StringKind }
func (Integer) Kind() Kind      { return IntegerKind }
func (Array) Kind() Kind        { return ArrayKind }
func (EventChannel) Kind() Kind { return EventChannelKind }
func (Error) Kind() Kind        { return ErrorKind }
func (Null) Kind() Kind         { return NullKind }
func (Ok) Kind() Kind           { return OkKind }

var (
	minInteger = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxInteger = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
)

func Int(i int64) Integer { return Integer{big.NewInt(i)} }

// IntegerFromBig returns Integer equal to b, or false if b doesn't fit in 128 bits.
func IntegerFromBig(b *big.Int) (Integer, bool) {
	if b.Cmp(minInteger) < 0 || b.Cmp(maxInteger) > 0 {
		return Integer{}, false
	}
	return Integer{new(big.Int).Set(b)}, true
}

// Big returns copy of integer value.
func (i Integer) Big() *big.Int {
	if i.i == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(i.i)
}

func (i Integer) Int64() (v int64, ok bool) {
	if i.i == nil {
		return 0, true
	}
	return i.i.Int64(), i.i.IsInt64()
}

func (i Integer) decimal() string {
	if i.i == nil {
		return "0"
	}
	return i.i.String()
}

func (s String) String() string     { return fmt.Sprintf("String(%q)", string(s)) }
func (i Integer) String() string    { return "Integer(" + i.decimal() + ")" }
func (EventChannel) String() string { return "EventChannel" }
func (e Error) String() string      { return fmt.Sprintf("Error(%q)", string(e)) }
func (Null) String() string         { return "Null" }
func (Ok) String() string           { return "Ok" }
func (a Array) String() string {
	elems := make([]string, len(a))
	for i, v := range a {
		elems[i] = stringOf(v)
	}
	return "Array[" + strings.Join(elems, ", ") + "]"
}

func stringOf(v Value) string {
	if v == nil {
		return "<none>"
	}
	return v.String()
}

// Equal reports structural equality of values. Nil values are equal only to nil.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case Integer:
		return a.Big().Cmp(b.(Integer).Big()) == 0
	case Array:
		return slices.EqualFunc(a, b.(Array), Equal)
	case String:
		return a == b.(String)
	case Error:
		return a == b.(Error)
	}
	// Unit kinds.
	return true
}

// Key returns string which is equal for structurally equal values and
// different for different ones. Used to index values in maps.
func Key(v Value) string {
	var b strings.Builder
	appendKey(&b, v)
	return b.String()
}

func appendKey(b *strings.Builder, v Value) {
	if v == nil {
		b.WriteByte('_')
		return
	}
	b.WriteByte(byte('a' + v.Kind()))
	switch v := v.(type) {
	case String:
		writeLenPrefixed(b, string(v))
	case Error:
		writeLenPrefixed(b, string(v))
	case Integer:
		writeLenPrefixed(b, v.decimal())
	case Array:
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte('[')
		for _, elem := range v {
			appendKey(b, elem)
		}
		b.WriteByte(']')
	}
}

func writeLenPrefixed(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}
