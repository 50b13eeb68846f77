package resp

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeReplies(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want string
	}{
		{"simple", Str("OK"), "+OK\r\n"},
		{"error", Err("WRONGTYPE bad"), "-WRONGTYPE bad\r\n"},
		{"integer", Int(42), ":42\r\n"},
		{"bulk", BulkStr("hello"), "$5\r\nhello\r\n"},
		{"null bulk", NullBulk(), "$-1\r\n"},
		{"null array", NullArray(), "*-1\r\n"},
		{"empty array", ArrSlice(nil), "*0\r\n"},
		{"nested array", Arr(BulkStr("a"), Int(1)), "*2\r\n$1\r\na\r\n:1\r\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, string(Marshal(tc.v)))
		})
	}
}

func TestDecodeMultibulk(t *testing.T) {
	raw := "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"
	d := NewDecoder(bufio.NewReader(bytes.NewBufferString(raw)))
	args, err := d.ReadCommand()
	require.NoError(t, err)
	require.Len(t, args, 3)
	assert.Equal(t, "SET", string(args[0]))
	assert.Equal(t, "k", string(args[1]))
	assert.Equal(t, "v", string(args[2]))
}

func TestDecodeBinarySafe(t *testing.T) {
	payload := "a\r\nb\x00c"
	raw := "*2\r\n$3\r\nSET\r\n$7\r\n" + payload + "\r\n"
	d := NewDecoder(bufio.NewReader(bytes.NewBufferString(raw)))
	args, err := d.ReadCommand()
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, payload, string(args[1]))
}

func TestDecodeInline(t *testing.T) {
	raw := "PING hello\r\n"
	d := NewDecoder(bufio.NewReader(bytes.NewBufferString(raw)))
	args, err := d.ReadCommand()
	require.NoError(t, err)
	require.Equal(t, []string{"PING", "hello"}, toStrings(args))
}

func TestDecodeRejectsOversizeBulk(t *testing.T) {
	raw := "*1\r\n$999999999999\r\n"
	d := NewDecoder(bufio.NewReader(bytes.NewBufferString(raw)))
	d.MaxBulkLen = 1024
	_, err := d.ReadCommand()
	require.ErrorIs(t, err, ErrProtocol)
}

func TestDecodeMultipleCommandsOnOneConnection(t *testing.T) {
	raw := "*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n"
	d := NewDecoder(bufio.NewReader(bytes.NewBufferString(raw)))
	for i := 0; i < 2; i++ {
		args, err := d.ReadCommand()
		require.NoError(t, err)
		assert.Equal(t, "PING", string(args[0]))
	}
}

func toStrings(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = string(a)
	}
	return out
}
