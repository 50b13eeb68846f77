package resp

import (
	"strconv"
)

// Encode appends the wire representation of v to buf and returns the
// extended buffer, recursing for nested arrays.
func Encode(buf []byte, v Value) []byte {
	switch v.Type {
	case SimpleString:
		buf = append(buf, '+')
		buf = append(buf, v.Str...)
		return append(buf, '\r', '\n')

	case Error:
		buf = append(buf, '-')
		buf = append(buf, v.Str...)
		return append(buf, '\r', '\n')

	case Integer:
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, v.Int, 10)
		return append(buf, '\r', '\n')

	case BulkString:
		if v.Null {
			return append(buf, '$', '-', '1', '\r', '\n')
		}
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(v.Bulk)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, v.Bulk...)
		return append(buf, '\r', '\n')

	case Array:
		if v.Null {
			return append(buf, '*', '-', '1', '\r', '\n')
		}
		buf = append(buf, '*')
		buf = strconv.AppendInt(buf, int64(len(v.Array)), 10)
		buf = append(buf, '\r', '\n')
		for _, item := range v.Array {
			buf = Encode(buf, item)
		}
		return buf

	default:
		// Total handler contract (§7): never panic on an internal bug,
		// degrade to a generic error instead.
		return Encode(buf, Err("ERR internal encoding error"))
	}
}

// Marshal is a convenience wrapper around Encode for a single value.
func Marshal(v Value) []byte {
	return Encode(nil, v)
}

// MarshalCommand encodes a command as the RESP array-of-bulk-strings form
// used both on the wire and in the append log (§6.3).
func MarshalCommand(args [][]byte) []byte {
	items := make([]Value, len(args))
	for i, a := range args {
		items[i] = Bulk(a)
	}
	return Marshal(ArrSlice(items))
}

// MarshalCommandStrings is MarshalCommand for string arguments.
func MarshalCommandStrings(args ...string) []byte {
	raw := make([][]byte, len(args))
	for i, a := range args {
		raw[i] = []byte(a)
	}
	return MarshalCommand(raw)
}
