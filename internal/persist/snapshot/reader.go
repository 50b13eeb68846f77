package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc64"
	"io"
	"math"

	"github.com/klauspost/compress/s2"
	"github.com/spf13/afero"

	"github.com/dreamware/torudis/internal/store"
	"github.com/dreamware/torudis/internal/values"
)

// ErrBadMagic marks a file that doesn't open with the expected header.
var ErrBadMagic = fmt.Errorf("snapshot: bad magic header")

// ErrChecksumMismatch marks a file whose trailing CRC64 doesn't match
// its contents; the caller decides whether that is fatal.
var ErrChecksumMismatch = fmt.Errorf("snapshot: checksum mismatch")

func readVarint(r io.ByteReader) (uint64, error) {
	return binary.ReadUvarint(r)
}

func readBulk(r *bufio.Reader) ([]byte, error) {
	n, err := readVarint(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readU32BE(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func readU64BE(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// Load reads a snapshot file written by Save and repopulates st.
// Metadata items the reader does not recognize are skipped, per §6.2's
// forward-compatibility contract.
func Load(fs afero.Fs, st *store.Store, path string) error {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return err
	}

	headerLen := len(magic) + len(formatVersion)
	if len(raw) < headerLen+1+8 {
		return ErrBadMagic
	}
	if string(raw[:len(magic)]) != magic {
		return ErrBadMagic
	}

	body := raw[headerLen : len(raw)-9] // strip header and [EOF byte][8-byte CRC]
	trailer := raw[len(raw)-9:]
	if trailer[0] != opEOF {
		return fmt.Errorf("snapshot: missing EOF marker")
	}
	wantCRC := binary.LittleEndian.Uint64(trailer[1:])

	cr := crc64.New(crcTable)
	cr.Write(raw[:len(raw)-8]) // header, body and EOF byte, as Save checksums them
	if cr.Sum64() != wantCRC {
		return ErrChecksumMismatch
	}

	// Metadata items precede the S2 stream uncompressed.
	hdr := bufio.NewReader(bytes.NewReader(body))
	for {
		next, err := hdr.Peek(1)
		if err != nil || next[0] != opMetadata {
			break
		}
		_, _ = hdr.ReadByte()
		if _, err := readBulk(hdr); err != nil {
			return err
		}
		if _, err := readBulk(hdr); err != nil {
			return err
		}
	}

	decompressed, err := io.ReadAll(s2.NewReader(hdr))
	if err != nil {
		return err
	}

	sbr := bufio.NewReader(bytes.NewReader(decompressed))
	currentDB := -1
	for {
		op, err := sbr.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch op {
		case opMetadata:
			if _, err := readBulk(sbr); err != nil {
				return err
			}
			if _, err := readBulk(sbr); err != nil {
				return err
			}

		case opSelectDB:
			idx, err := readVarint(sbr)
			if err != nil {
				return err
			}
			currentDB = int(idx)

		case opResizeDB:
			if _, err := readVarint(sbr); err != nil {
				return err
			}
			if _, err := readVarint(sbr); err != nil {
				return err
			}

		default:
			if err := readOneRecord(sbr, st, currentDB, op); err != nil {
				return err
			}
		}
	}
	return nil
}

// readOneRecord handles one [optional expire][type byte][key][value]
// record. op is either an expire opcode (in which case the type byte
// follows) or already the type byte itself.
func readOneRecord(r *bufio.Reader, st *store.Store, db int, op byte) error {
	var deadline int64
	typeByteVal := op
	switch op {
	case opExpireMillis:
		ms, err := readU64BE(r)
		if err != nil {
			return err
		}
		deadline = int64(ms)
		tb, err := r.ReadByte()
		if err != nil {
			return err
		}
		typeByteVal = tb

	case opExpireSecs:
		secs, err := readU32BE(r)
		if err != nil {
			return err
		}
		deadline = int64(secs) * 1000
		tb, err := r.ReadByte()
		if err != nil {
			return err
		}
		typeByteVal = tb
	}

	key, err := readBulk(r)
	if err != nil {
		return err
	}

	entry, err := readValue(r, typeByteVal)
	if err != nil {
		return err
	}
	entry.Deadline = deadline

	if db < 0 || db >= st.DatabaseCount() {
		return fmt.Errorf("snapshot: record references invalid database %d", db)
	}
	st.DB(db).Set(string(key), entry)
	return nil
}

func readValue(r *bufio.Reader, typeByteVal byte) (*store.Entry, error) {
	switch typeByteVal {
	case typeString:
		b, err := readBulk(r)
		if err != nil {
			return nil, err
		}
		return store.NewEntry(values.KindString, b), nil

	case typeList:
		n, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		l := values.NewList()
		for i := uint64(0); i < n; i++ {
			b, err := readBulk(r)
			if err != nil {
				return nil, err
			}
			l.PushRight(b)
		}
		return store.NewEntry(values.KindList, l), nil

	case typeSet:
		n, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		s := values.NewSet()
		for i := uint64(0); i < n; i++ {
			b, err := readBulk(r)
			if err != nil {
				return nil, err
			}
			s.Add(b)
		}
		return store.NewEntry(values.KindSet, s), nil

	case typeHash:
		n, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		h := values.NewHash()
		for i := uint64(0); i < n; i++ {
			f, err := readBulk(r)
			if err != nil {
				return nil, err
			}
			v, err := readBulk(r)
			if err != nil {
				return nil, err
			}
			h.Set(f, v)
		}
		return store.NewEntry(values.KindHash, h), nil

	case typeZSet:
		n, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		z := values.NewZSet()
		for i := uint64(0); i < n; i++ {
			m, err := readBulk(r)
			if err != nil {
				return nil, err
			}
			bits, err := readU64BE(r)
			if err != nil {
				return nil, err
			}
			z.Set(string(m), math.Float64frombits(bits))
		}
		return store.NewEntry(values.KindZSet, z), nil

	case typeStream:
		n, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		s := values.NewStream()
		for i := uint64(0); i < n; i++ {
			ms, err := readU64BE(r)
			if err != nil {
				return nil, err
			}
			seq, err := readU32BE(r)
			if err != nil {
				return nil, err
			}
			fieldCount, err := readVarint(r)
			if err != nil {
				return nil, err
			}
			fields := make([]values.StreamField, 0, fieldCount)
			for j := uint64(0); j < fieldCount; j++ {
				f, err := readBulk(r)
				if err != nil {
					return nil, err
				}
				v, err := readBulk(r)
				if err != nil {
					return nil, err
				}
				fields = append(fields, values.StreamField{Field: f, Value: v})
			}
			if err := s.Append(values.StreamID{Ms: ms, Seq: seq}, fields); err != nil {
				return nil, err
			}
		}
		return store.NewEntry(values.KindStream, s), nil

	default:
		return nil, fmt.Errorf("snapshot: unknown type byte 0x%02x", typeByteVal)
	}
}
