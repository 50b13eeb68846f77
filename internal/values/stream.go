package values

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StreamID is the reference stream's 96-bit entry identifier: a 64-bit
// millisecond timestamp and a 32-bit sequence number disambiguating
// entries added within the same millisecond (§3.2).
type StreamID struct {
	Ms  uint64
	Seq uint32
}

// Compare returns -1, 0 or 1 as id sorts before, equal to, or after other.
func (id StreamID) Compare(other StreamID) int {
	switch {
	case id.Ms < other.Ms:
		return -1
	case id.Ms > other.Ms:
		return 1
	case id.Seq < other.Seq:
		return -1
	case id.Seq > other.Seq:
		return 1
	default:
		return 0
	}
}

// String renders the canonical "ms-seq" textual form.
func (id StreamID) String() string {
	return fmt.Sprintf("%d-%d", id.Ms, id.Seq)
}

// Next returns the smallest id strictly greater than id.
func (id StreamID) Next() StreamID {
	if id.Seq == ^uint32(0) {
		return StreamID{Ms: id.Ms + 1, Seq: 0}
	}
	return StreamID{Ms: id.Ms, Seq: id.Seq + 1}
}

// ErrInvalidStreamID marks a malformed "ms-seq" literal.
var ErrInvalidStreamID = errors.New("invalid stream ID specified as stream command argument")

// ParseStreamID parses a fully or partially specified id. seqDefault
// fills in the sequence when the caller wrote only the ms part (the
// reference command set uses 0 as the default for range starts and
// MaxUint32 for range ends).
func ParseStreamID(s string, seqDefault uint32) (StreamID, error) {
	parts := strings.SplitN(s, "-", 2)
	ms, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return StreamID{}, ErrInvalidStreamID
	}
	if len(parts) == 1 {
		return StreamID{Ms: ms, Seq: seqDefault}, nil
	}
	seq, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return StreamID{}, ErrInvalidStreamID
	}
	return StreamID{Ms: ms, Seq: uint32(seq)}, nil
}

// StreamField is one field/value pair of an entry, order-preserving per
// entry (unlike Hash, a stream entry's field order is part of its
// identity for XRANGE replies).
type StreamField struct {
	Field []byte
	Value []byte
}

// StreamEntry is one immutable, appended record.
type StreamEntry struct {
	ID     StreamID
	Fields []StreamField
}

// PendingEntry tracks one message delivered to a consumer group but not
// yet acknowledged (XACK), per the data-model-only consumer group scope.
type PendingEntry struct {
	Consumer      string
	DeliveryCount int64
	DeliveryTime  int64 // unix millis of last delivery
}

// ConsumerGroup is the structural, non-executing representation of a
// stream consumer group: a cursor (LastDelivered) and a pending entries
// list. The reference command surface for XREADGROUP/XACK/XCLAIM/XPENDING
// mutates this bookkeeping; actual blocking delivery is handled by the
// blocking coordinator, not here.
type ConsumerGroup struct {
	Name          string
	LastDelivered StreamID
	Consumers     map[string]bool
	Pending       map[StreamID]*PendingEntry
}

// Stream is an append-only log of entries ordered by StreamID (§3.2).
type Stream struct {
	entries      []StreamEntry
	lastID       StreamID
	maxDeletedID StreamID
	entriesAdded uint64
	groups       map[string]*ConsumerGroup
}

// NewStream returns an empty stream.
func NewStream() *Stream {
	return &Stream{groups: make(map[string]*ConsumerGroup)}
}

// Len returns the number of entries currently retained (post-trim).
func (s *Stream) Len() int { return len(s.entries) }

// LastID returns the most recently assigned id.
func (s *Stream) LastID() StreamID { return s.lastID }

// ErrStreamIDNotIncreasing is returned when an explicit XADD id does not
// exceed the stream's current last id.
var ErrStreamIDNotIncreasing = errors.New("the ID specified in XADD is equal or smaller than the target stream top item")

// NextAutoID returns the id XADD would assign for an unqualified "*",
// given the current wall-clock milliseconds nowMs.
func (s *Stream) NextAutoID(nowMs uint64) StreamID {
	if nowMs > s.lastID.Ms {
		return StreamID{Ms: nowMs, Seq: 0}
	}
	return s.lastID.Next()
}

// Append adds entry to the stream. The caller must have already resolved
// "*"/partial ids to a concrete StreamID (e.g. via NextAutoID); Append
// only enforces monotonicity.
func (s *Stream) Append(id StreamID, fields []StreamField) error {
	if len(s.entries) > 0 || s.entriesAdded > 0 {
		if id.Compare(s.lastID) <= 0 {
			return ErrStreamIDNotIncreasing
		}
	}
	s.entries = append(s.entries, StreamEntry{ID: id, Fields: fields})
	s.lastID = id
	s.entriesAdded++
	return nil
}

// Range returns entries with ids in [from, to] inclusive, ascending, up
// to limit entries (limit <= 0 means unbounded).
func (s *Stream) Range(from, to StreamID, limit int) []StreamEntry {
	var out []StreamEntry
	for _, e := range s.entries {
		if e.ID.Compare(from) < 0 {
			continue
		}
		if e.ID.Compare(to) > 0 {
			break
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// RevRange returns entries with ids in [from, to] inclusive, descending.
func (s *Stream) RevRange(from, to StreamID, limit int) []StreamEntry {
	fwd := s.Range(from, to, 0)
	out := make([]StreamEntry, 0, len(fwd))
	for i := len(fwd) - 1; i >= 0; i-- {
		out = append(out, fwd[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// After returns entries strictly greater than after, ascending, up to
// count entries (count <= 0 means unbounded). Used by XREAD.
func (s *Stream) After(after StreamID, count int) []StreamEntry {
	var out []StreamEntry
	for _, e := range s.entries {
		if e.ID.Compare(after) <= 0 {
			continue
		}
		out = append(out, e)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out
}

// Delete removes entries by id, returning how many were present. Unlike
// XTRIM this never advances maxDeletedID below an id lower than an
// already-trimmed boundary.
func (s *Stream) Delete(ids ...StreamID) int {
	removed := 0
	for _, id := range ids {
		for i, e := range s.entries {
			if e.ID.Compare(id) == 0 {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				if id.Compare(s.maxDeletedID) > 0 {
					s.maxDeletedID = id
				}
				removed++
				break
			}
		}
	}
	return removed
}

// TrimMaxLen discards the oldest entries until at most maxLen remain,
// returning the number discarded.
func (s *Stream) TrimMaxLen(maxLen int) int {
	if len(s.entries) <= maxLen {
		return 0
	}
	discard := len(s.entries) - maxLen
	for i := 0; i < discard; i++ {
		if s.entries[i].ID.Compare(s.maxDeletedID) > 0 {
			s.maxDeletedID = s.entries[i].ID
		}
	}
	s.entries = s.entries[discard:]
	return discard
}

// TrimMinID discards entries with an id strictly smaller than minID.
func (s *Stream) TrimMinID(minID StreamID) int {
	cut := 0
	for cut < len(s.entries) && s.entries[cut].ID.Compare(minID) < 0 {
		if s.entries[cut].ID.Compare(s.maxDeletedID) > 0 {
			s.maxDeletedID = s.entries[cut].ID
		}
		cut++
	}
	s.entries = s.entries[cut:]
	return cut
}

// Group returns (creating if needed) the named consumer group, seeded at
// startID when newly created.
func (s *Stream) Group(name string, startID StreamID) *ConsumerGroup {
	g, ok := s.groups[name]
	if ok {
		return g
	}
	g = &ConsumerGroup{
		Name:          name,
		LastDelivered: startID,
		Consumers:     make(map[string]bool),
		Pending:       make(map[StreamID]*PendingEntry),
	}
	s.groups[name] = g
	return g
}

// DeleteGroup removes a consumer group, returning whether it existed.
func (s *Stream) DeleteGroup(name string) bool {
	if _, ok := s.groups[name]; !ok {
		return false
	}
	delete(s.groups, name)
	return true
}
