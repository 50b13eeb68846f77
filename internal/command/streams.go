package command

import (
	"errors"
	"math"
	"time"

	"github.com/dreamware/torudis/internal/blocking"
	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
	"github.com/dreamware/torudis/internal/store"
	"github.com/dreamware/torudis/internal/values"
)

// errBadTrimStrategy marks an unrecognized XADD/XTRIM trim strategy
// token (anything other than MAXLEN/MINID).
var errBadTrimStrategy = errors.New("syntax error")

func registerStreams(r *Registry) {
	r.Register(&Command{Name: "XADD", Arity: -5, Flags: FlagWrite, Handler: cmdXAdd})
	r.Register(&Command{Name: "XLEN", Arity: 2, Flags: FlagReadOnly, Handler: cmdXLen})
	r.Register(&Command{Name: "XRANGE", Arity: -4, Flags: FlagReadOnly, Handler: cmdXRange})
	r.Register(&Command{Name: "XREVRANGE", Arity: -4, Flags: FlagReadOnly, Handler: cmdXRevRange})
	r.Register(&Command{Name: "XDEL", Arity: -3, Flags: FlagWrite, Handler: cmdXDel})
	r.Register(&Command{Name: "XTRIM", Arity: -4, Flags: FlagWrite, Handler: cmdXTrim})
	r.Register(&Command{Name: "XREAD", Arity: -4, Flags: FlagReadOnly | FlagNotInTx, Handler: cmdXRead})
}

func getStreamLocked(d *store.Database, key string) (*values.Stream, bool, bool) {
	e, present := d.GetLocked(key)
	if !present {
		return nil, false, true
	}
	if e.Kind != values.KindStream {
		return nil, true, false
	}
	return e.Data.(*values.Stream), true, true
}

func getStream(d *store.Database, key string) (*values.Stream, bool, bool) {
	e, present, ok := requireKind(d, key, values.KindStream)
	if !present || !ok {
		return nil, present, ok
	}
	return e.Data.(*values.Stream), true, true
}

func entryReply(e values.StreamEntry) resp.Value {
	fields := make([]resp.Value, 0, len(e.Fields)*2)
	for _, f := range e.Fields {
		fields = append(fields, resp.Bulk(f.Field), resp.Bulk(f.Value))
	}
	return resp.Arr(resp.BulkStr(e.ID.String()), resp.ArrSlice(fields))
}

func entriesReply(entries []values.StreamEntry) resp.Value {
	out := make([]resp.Value, len(entries))
	for i, e := range entries {
		out[i] = entryReply(e)
	}
	return resp.ArrSlice(out)
}

// applyTrim runs a MAXLEN/MINID trim (invoked by both XADD's inline trim
// option and XTRIM itself) and returns the number of entries discarded.
// The leading "=" or "~" qualifier is accepted and ignored: exact
// trimming is all this implementation performs (§4.3.6's "approximate
// trimming may round to a batch boundary" is trivially satisfied by
// always rounding to zero slack).
func applyTrim(s *values.Stream, strategy string, threshold []byte) (int, error) {
	switch strategy {
	case "MAXLEN":
		n, ok := parseIntArg(threshold)
		if !ok || n < 0 {
			return 0, values.ErrNotInteger
		}
		return s.TrimMaxLen(n), nil
	case "MINID":
		id, err := values.ParseStreamID(string(threshold), 0)
		if err != nil {
			return 0, err
		}
		return s.TrimMinID(id), nil
	default:
		return 0, errBadTrimStrategy
	}
}

// cmdXAdd implements XADD key [NOMKSTREAM] [MAXLEN|MINID [=|~] threshold
// [LIMIT n]] id|* field value [field value …] (§4.3.6).
func cmdXAdd(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	i := 2
	noMkStream := false
	var trimStrategy string
	var trimThreshold []byte
	hasTrim := false
	for i < len(args) {
		switch string(bytesUpper(args[i])) {
		case "NOMKSTREAM":
			noMkStream = true
			i++
		case "MAXLEN", "MINID":
			hasTrim = true
			trimStrategy = string(bytesUpper(args[i]))
			i++
			if i < len(args) && (string(args[i]) == "=" || string(args[i]) == "~") {
				i++
			}
			if i >= len(args) {
				return syntaxError()
			}
			trimThreshold = args[i]
			i++
			if i < len(args) && string(bytesUpper(args[i])) == "LIMIT" {
				i += 2
			}
		default:
			goto idField
		}
	}
idField:
	if i >= len(args) {
		return wrongArgs("XADD")
	}
	idArg := string(args[i])
	i++
	fieldArgs := args[i:]
	if len(fieldArgs) == 0 || len(fieldArgs)%2 != 0 {
		return wrongArgs("XADD")
	}
	fields := make([]values.StreamField, len(fieldArgs)/2)
	for j := 0; j < len(fieldArgs); j += 2 {
		fields[j/2] = values.StreamField{Field: fieldArgs[j], Value: fieldArgs[j+1]}
	}

	d := db(ctx, sess)
	var reply resp.Value
	var wrote, wasPresent, emptied bool
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		var s *values.Stream
		if present {
			if existing.Kind != values.KindStream {
				reply = wrongType()
				return
			}
			s = existing.Data.(*values.Stream)
		} else {
			if noMkStream {
				reply = resp.NullBulk()
				return
			}
			s = values.NewStream()
			d.SetLocked(key, store.NewEntry(values.KindStream, s))
		}

		var id values.StreamID
		if idArg == "*" {
			id = s.NextAutoID(uint64(nowMsFrom(ctx)))
		} else {
			parsedID, err := values.ParseStreamID(idArg, 0)
			if err != nil {
				reply = resp.Err("ERR " + err.Error())
				return
			}
			id = parsedID
		}
		if err := s.Append(id, fields); err != nil {
			reply = resp.Err("ERR " + err.Error())
			return
		}
		if hasTrim {
			if _, err := applyTrim(s, trimStrategy, trimThreshold); err != nil {
				reply = resp.Err("ERR " + err.Error())
				return
			}
			if s.Len() == 0 {
				d.DeleteLocked(key)
				emptied = true
			}
		}
		wasPresent = present
		wrote = true
		reply = resp.BulkStr(id.String())
	})
	if wrote {
		if emptied {
			d.EmitDelete(key)
		} else if wasPresent {
			d.EmitTouch(key)
		} else {
			d.EmitSet(key)
		}
	}
	return reply
}

func cmdXLen(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	s, present, ok := getStream(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.Int(0)
	}
	return resp.Int(int64(s.Len()))
}

// parseRangeID parses an XRANGE/XREVRANGE endpoint: "-"/"+" sentinels or
// a full/partial "ms[-seq]" id, defaulting the missing sequence to
// seqDefault.
func parseRangeID(b []byte, seqDefault uint32) (values.StreamID, bool) {
	switch string(b) {
	case "-":
		return values.StreamID{Ms: 0, Seq: 0}, true
	case "+":
		return values.StreamID{Ms: math.MaxUint64, Seq: math.MaxUint32}, true
	}
	id, err := values.ParseStreamID(string(b), seqDefault)
	if err != nil {
		return values.StreamID{}, false
	}
	return id, true
}

func cmdXRange(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return xRangeGeneric(ctx, sess, args, false)
}

func cmdXRevRange(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return xRangeGeneric(ctx, sess, args, true)
}

func xRangeGeneric(ctx *ExecContext, sess *session.Session, args [][]byte, rev bool) resp.Value {
	startArg, endArg := args[2], args[3]
	if rev {
		startArg, endArg = args[3], args[2]
	}
	from, ok1 := parseRangeID(startArg, 0)
	to, ok2 := parseRangeID(endArg, math.MaxUint32)
	if !ok1 || !ok2 {
		return resp.Err("ERR Invalid stream ID specified as stream command argument")
	}
	count := 0
	if len(args) >= 6 && string(bytesUpper(args[4])) == "COUNT" {
		n, ok := parseIntArg(args[5])
		if !ok {
			return notInteger()
		}
		count = n
	}
	s, present, ok := getStream(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.ArrSlice(nil)
	}
	if rev {
		return entriesReply(s.RevRange(from, to, count))
	}
	return entriesReply(s.Range(from, to, count))
}

func cmdXDel(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	ids := make([]values.StreamID, len(args)-2)
	for i, a := range args[2:] {
		id, err := values.ParseStreamID(string(a), 0)
		if err != nil {
			return resp.Err("ERR " + err.Error())
		}
		ids[i] = id
	}
	d := db(ctx, sess)
	var reply resp.Value
	var touched bool
	d.WithKeysLocked([]string{key}, func() {
		s, present, ok := getStreamLocked(d, key)
		if !ok {
			reply = wrongType()
			return
		}
		if !present {
			reply = resp.Int(0)
			return
		}
		removed := s.Delete(ids...)
		if removed > 0 {
			touched = true
		}
		reply = resp.Int(int64(removed))
	})
	if touched {
		d.EmitTouch(key)
	}
	return reply
}

func cmdXTrim(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	strategy := string(bytesUpper(args[2]))
	i := 3
	if i < len(args) && (string(args[i]) == "=" || string(args[i]) == "~") {
		i++
	}
	if i >= len(args) {
		return syntaxError()
	}
	threshold := args[i]
	d := db(ctx, sess)
	var reply resp.Value
	var touched, emptied bool
	d.WithKeysLocked([]string{key}, func() {
		s, present, ok := getStreamLocked(d, key)
		if !ok {
			reply = wrongType()
			return
		}
		if !present {
			reply = resp.Int(0)
			return
		}
		n, err := applyTrim(s, strategy, threshold)
		if err != nil {
			if err == errBadTrimStrategy {
				reply = syntaxError()
			} else {
				reply = resp.Err("ERR " + err.Error())
			}
			return
		}
		if n > 0 {
			touched = true
			if s.Len() == 0 {
				d.DeleteLocked(key)
				emptied = true
			}
		}
		reply = resp.Int(int64(n))
	})
	if emptied {
		d.EmitDelete(key)
	} else if touched {
		d.EmitTouch(key)
	}
	return reply
}

// cmdXRead implements XREAD [COUNT n] [BLOCK ms] STREAMS k1 k2 … id1 id2
// … (§4.3.6, §4.7): entries strictly after each given id, parking on the
// blocking coordinator when BLOCK is given and nothing is yet available.
func cmdXRead(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	count := 0
	var blockMs int64 = -1
	i := 1
	for i < len(args) {
		switch string(bytesUpper(args[i])) {
		case "COUNT":
			if i+1 >= len(args) {
				return syntaxError()
			}
			n, ok := parseIntArg(args[i+1])
			if !ok {
				return notInteger()
			}
			count = n
			i += 2
		case "BLOCK":
			if i+1 >= len(args) {
				return syntaxError()
			}
			ms, ok := parseInt(args[i+1])
			if !ok {
				return notInteger()
			}
			blockMs = ms
			i += 2
		case "STREAMS":
			i++
			goto streams
		default:
			return syntaxError()
		}
	}
	return syntaxError()
streams:
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return resp.Err("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
	}
	n := len(rest) / 2
	keys := rest[:n]
	ids := rest[n:]

	dbIdx := sess.CurrentDB()
	d := ctx.Store.DB(dbIdx)

	resolved := make([]values.StreamID, n)
	for idx, idArg := range ids {
		if string(idArg) == "$" {
			s, present, ok := getStream(d, string(keys[idx]))
			if !ok {
				return wrongType()
			}
			if present {
				resolved[idx] = s.LastID()
			}
			continue
		}
		id, err := values.ParseStreamID(string(idArg), math.MaxUint32)
		if err != nil {
			return resp.Err("ERR " + err.Error())
		}
		resolved[idx] = id
	}

	// tryRead returns (reply, true) once any listed stream has entries
	// after its resolved id, or (errReply, true) on WRONGTYPE, or
	// (_, false) when nothing is yet available (the BLOCK case).
	tryRead := func() (resp.Value, bool) {
		var perStream []resp.Value
		for idx, k := range keys {
			s, present, ok := getStream(d, string(k))
			if !ok {
				return wrongType(), true
			}
			if !present {
				continue
			}
			entries := s.After(resolved[idx], count)
			if len(entries) == 0 {
				continue
			}
			perStream = append(perStream, resp.Arr(resp.BulkStr(string(k)), entriesReply(entries)))
		}
		if len(perStream) == 0 {
			return resp.Value{}, false
		}
		return resp.ArrSlice(perStream), true
	}

	if reply, found := tryRead(); found {
		return reply
	}
	if blockMs < 0 {
		return resp.NullArray()
	}

	targets := make([]blocking.Target, n)
	for idx, k := range keys {
		targets[idx] = blocking.Target{DB: dbIdx, Key: string(k)}
	}
	w := &blocking.Waiter{
		Keys:   targets,
		Result: make(chan resp.Value, 1),
		TryAcquire: func(t blocking.Target) (resp.Value, bool) {
			return tryRead()
		},
	}
	ctx.Blocking.Register(w)
	var timeout time.Duration
	if blockMs > 0 {
		timeout = time.Duration(blockMs) * time.Millisecond
	}
	return blocking.WaitTimeout(ctx.Blocking, w, timeout, resp.NullArray())
}
