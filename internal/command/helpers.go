package command

import (
	"math"
	"strconv"
	"strings"

	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
	"github.com/dreamware/torudis/internal/store"
	"github.com/dreamware/torudis/internal/values"
)

func wrongType() resp.Value {
	return resp.Err("WRONGTYPE Operation against a key holding the wrong kind of value")
}

func wrongArgs(name string) resp.Value {
	return resp.Errf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))
}

func notInteger() resp.Value {
	return resp.Err("ERR value is not an integer or out of range")
}

func notFloat() resp.Value {
	return resp.Err("ERR value is not a valid float")
}

func syntaxError() resp.Value {
	return resp.Err("ERR syntax error")
}

// getEntry fetches key from db, returning (nil, true) for "absent"
// (distinguished from a WRONGTYPE mismatch by the caller checking Kind).
func getEntry(db *store.Database, key string) (*store.Entry, bool) {
	return db.Get(key)
}

// requireKind fetches key and verifies it either doesn't exist or
// matches kind, returning a WRONGTYPE reply via ok=false when it
// exists under a different kind.
func requireKind(db *store.Database, key string, kind values.Kind) (e *store.Entry, present bool, ok bool) {
	e, present = db.Get(key)
	if !present {
		return nil, false, true
	}
	if e.Kind != kind {
		return e, true, false
	}
	return e, true, true
}

func parseInt(b []byte) (int64, bool) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	return n, err == nil
}

func parseIntArg(b []byte) (int, bool) {
	n, err := strconv.Atoi(string(b))
	return n, err == nil
}

func parseFloat(b []byte) (float64, bool) {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func bulkArray(items [][]byte) resp.Value {
	out := make([]resp.Value, len(items))
	for i, it := range items {
		out[i] = resp.Bulk(it)
	}
	return resp.ArrSlice(out)
}

func strArray(items []string) resp.Value {
	out := make([]resp.Value, len(items))
	for i, it := range items {
		out[i] = resp.BulkStr(it)
	}
	return resp.ArrSlice(out)
}

// db resolves the session's currently selected database.
func db(ctx *ExecContext, sess *session.Session) *store.Database {
	return ctx.Store.DB(sess.CurrentDB())
}

// approxEntrySizeBytes is the average footprint a single aggregate
// element (list/set/hash/zset/stream entry) is charged at — exact
// accounting would mean walking every member on every write, so the
// maxmemory budget this feeds is deliberately approximate, matching
// Store's own "approximate-LRU" framing.
const approxEntrySizeBytes = 48

// approxEntrySize estimates key's stored footprint for the maxmemory
// write-admission check (§4.2/§5): exact for strings, element-count
// based for the five aggregate kinds.
func approxEntrySize(key string, e *store.Entry) int64 {
	size := int64(len(key))
	switch e.Kind {
	case values.KindString:
		size += int64(len(e.Data.([]byte)))
	case values.KindList:
		size += int64(e.Data.(*values.List).Len()) * approxEntrySizeBytes
	case values.KindSet:
		size += int64(e.Data.(*values.Set).Len()) * approxEntrySizeBytes
	case values.KindHash:
		size += int64(e.Data.(*values.Hash).Len()) * approxEntrySizeBytes
	case values.KindZSet:
		size += int64(e.Data.(*values.ZSet).Len()) * approxEntrySizeBytes
	case values.KindStream:
		size += int64(e.Data.(*values.Stream).Len()) * approxEntrySizeBytes
	default:
		size += approxEntrySizeBytes
	}
	return size
}
