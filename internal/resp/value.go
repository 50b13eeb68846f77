// Package resp implements the RESP wire protocol: a streaming decoder for
// client requests (the fully-framed array-of-bulk-strings form and the
// legacy inline form) and an encoder for the five reply shapes in §4.1 of
// the spec. Binary safety is total — bulk payloads are opaque byte slices,
// never strings, so a key or value containing "\r\n" round-trips exactly.
package resp

import "fmt"

// Type tags the kind of a decoded/encoded RESP value.
type Type byte

const (
	SimpleString Type = '+'
	Error        Type = '-'
	Integer      Type = ':'
	BulkString   Type = '$'
	Array        Type = '*'
)

// Value is a RESP reply or a decoded request element. Exactly one of the
// fields below is meaningful, selected by Type; the zero Value has no
// Type and encodes as an error reply, so "key not found" uses NullBulk.
type Value struct {
	Str      string
	Bulk     []byte
	Array    []Value
	Int      int64
	Type     Type
	Null     bool // for BulkString/Array: true means $-1 / *-1
}

// Str builds a simple-string reply ("+OK\r\n" style).
func Str(s string) Value { return Value{Type: SimpleString, Str: s} }

// Err builds an error reply. msg should already start with an uppercase
// error code token per §4.1 (e.g. "WRONGTYPE ...").
func Err(msg string) Value { return Value{Type: Error, Str: msg} }

// Errf builds an error reply with fmt.Sprintf-style formatting.
func Errf(format string, args ...interface{}) Value {
	return Err(fmt.Sprintf(format, args...))
}

// Int builds an integer reply.
func Int(n int64) Value { return Value{Type: Integer, Int: n} }

// Bulk builds a bulk-string reply from a byte slice. A nil slice produces
// a *present* empty bulk string ("$0\r\n\r\n"); use NullBulk for $-1.
func Bulk(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{Type: BulkString, Bulk: b}
}

// BulkStr builds a bulk-string reply from a Go string.
func BulkStr(s string) Value { return Bulk([]byte(s)) }

// NullBulk builds the null bulk-string reply ("$-1\r\n").
func NullBulk() Value { return Value{Type: BulkString, Null: true} }

// Arr builds an array reply.
func Arr(items ...Value) Value { return Value{Type: Array, Array: items} }

// ArrSlice builds an array reply from a slice.
func ArrSlice(items []Value) Value { return Value{Type: Array, Array: items} }

// NullArray builds the null array reply ("*-1\r\n"), used for e.g. an
// aborted MULTI/EXEC or a timed-out blocking pop.
func NullArray() Value { return Value{Type: Array, Null: true} }

// OK is the canonical "+OK\r\n" reply.
func OK() Value { return Str("OK") }

// IsNil reports whether v is a null bulk string or null array.
func (v Value) IsNil() bool {
	return (v.Type == BulkString || v.Type == Array) && v.Null
}
