package command

import (
	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
	"github.com/dreamware/torudis/internal/store"
	"github.com/dreamware/torudis/internal/values"
)

func registerHashes(r *Registry) {
	r.Register(&Command{Name: "HSET", Arity: -4, Flags: FlagWrite, Handler: cmdHSet})
	r.Register(&Command{Name: "HSETNX", Arity: 4, Flags: FlagWrite, Handler: cmdHSetNX})
	r.Register(&Command{Name: "HGET", Arity: 3, Flags: FlagReadOnly, Handler: cmdHGet})
	r.Register(&Command{Name: "HMGET", Arity: -3, Flags: FlagReadOnly, Handler: cmdHMGet})
	r.Register(&Command{Name: "HMSET", Arity: -4, Flags: FlagWrite, Handler: cmdHMSet})
	r.Register(&Command{Name: "HDEL", Arity: -3, Flags: FlagWrite, Handler: cmdHDel})
	r.Register(&Command{Name: "HGETALL", Arity: 2, Flags: FlagReadOnly, Handler: cmdHGetAll})
	r.Register(&Command{Name: "HKEYS", Arity: 2, Flags: FlagReadOnly, Handler: cmdHKeys})
	r.Register(&Command{Name: "HVALS", Arity: 2, Flags: FlagReadOnly, Handler: cmdHVals})
	r.Register(&Command{Name: "HLEN", Arity: 2, Flags: FlagReadOnly, Handler: cmdHLen})
	r.Register(&Command{Name: "HEXISTS", Arity: 3, Flags: FlagReadOnly, Handler: cmdHExists})
	r.Register(&Command{Name: "HINCRBY", Arity: 4, Flags: FlagWrite, Handler: cmdHIncrBy})
	r.Register(&Command{Name: "HINCRBYFLOAT", Arity: 4, Flags: FlagWrite, Handler: cmdHIncrByFloat})
}

func getHashLocked(d *store.Database, key string) (*values.Hash, bool, bool) {
	e, present := d.GetLocked(key)
	if !present {
		return nil, false, true
	}
	if e.Kind != values.KindHash {
		return nil, true, false
	}
	return e.Data.(*values.Hash), true, true
}

func getHash(d *store.Database, key string) (*values.Hash, bool, bool) {
	e, present, ok := requireKind(d, key, values.KindHash)
	if !present || !ok {
		return nil, present, ok
	}
	return e.Data.(*values.Hash), true, true
}

func hsetGeneric(ctx *ExecContext, sess *session.Session, args [][]byte) (int64, resp.Value, bool) {
	if len(args[2:])%2 != 0 {
		return 0, wrongArgs(string(args[0])), false
	}
	key := string(args[1])
	d := db(ctx, sess)
	var reply resp.Value
	var wrote, wasPresent bool
	var added int64
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		var h *values.Hash
		if present {
			if existing.Kind != values.KindHash {
				reply = wrongType()
				return
			}
			h = existing.Data.(*values.Hash)
		} else {
			h = values.NewHash()
			d.SetLocked(key, store.NewEntry(values.KindHash, h))
		}
		pairs := args[2:]
		for i := 0; i < len(pairs); i += 2 {
			if h.Set(pairs[i], pairs[i+1]) {
				added++
			}
		}
		wasPresent = present
		wrote = true
	})
	if wrote {
		if wasPresent {
			d.EmitTouch(key)
		} else {
			d.EmitSet(key)
		}
	}
	return added, reply, wrote
}

func cmdHSet(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	added, reply, wrote := hsetGeneric(ctx, sess, args)
	if !wrote {
		return reply
	}
	return resp.Int(added)
}

func cmdHMSet(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	_, reply, wrote := hsetGeneric(ctx, sess, args)
	if !wrote {
		return reply
	}
	return resp.OK()
}

func cmdHSetNX(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	d := db(ctx, sess)
	var reply resp.Value
	var wrote, wasPresent bool
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		var h *values.Hash
		if present {
			if existing.Kind != values.KindHash {
				reply = wrongType()
				return
			}
			h = existing.Data.(*values.Hash)
		} else {
			h = values.NewHash()
			d.SetLocked(key, store.NewEntry(values.KindHash, h))
		}
		if h.SetNX(args[2], args[3]) {
			wrote = true
			wasPresent = present
			reply = resp.Int(1)
		} else {
			reply = resp.Int(0)
		}
	})
	if wrote {
		if wasPresent {
			d.EmitTouch(key)
		} else {
			d.EmitSet(key)
		}
	}
	return reply
}

func cmdHGet(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	h, present, ok := getHash(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.NullBulk()
	}
	v, found := h.Get(args[2])
	if !found {
		return resp.NullBulk()
	}
	return resp.Bulk(v)
}

func cmdHMGet(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	h, present, ok := getHash(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	out := make([]resp.Value, len(args)-2)
	for i, f := range args[2:] {
		if present {
			if v, found := h.Get(f); found {
				out[i] = resp.Bulk(v)
				continue
			}
		}
		out[i] = resp.NullBulk()
	}
	return resp.ArrSlice(out)
}

func cmdHDel(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	d := db(ctx, sess)
	var reply resp.Value
	var emptied, touched bool
	d.WithKeysLocked([]string{key}, func() {
		h, present, ok := getHashLocked(d, key)
		if !ok {
			reply = wrongType()
			return
		}
		if !present {
			reply = resp.Int(0)
			return
		}
		removed := h.Delete(args[2:]...)
		if h.Len() == 0 {
			d.DeleteLocked(key)
			emptied = true
		} else if removed > 0 {
			touched = true
		}
		reply = resp.Int(int64(removed))
	})
	if emptied {
		d.EmitDelete(key)
	} else if touched {
		d.EmitTouch(key)
	}
	return reply
}

func cmdHGetAll(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	h, present, ok := getHash(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.ArrSlice(nil)
	}
	all := h.All()
	out := make([]resp.Value, 0, len(all)*2)
	for f, v := range all {
		out = append(out, resp.BulkStr(f), resp.Bulk(v))
	}
	return resp.ArrSlice(out)
}

func cmdHKeys(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	h, present, ok := getHash(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.ArrSlice(nil)
	}
	return bulkArray(h.Fields())
}

func cmdHVals(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	h, present, ok := getHash(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.ArrSlice(nil)
	}
	return bulkArray(h.Values())
}

func cmdHLen(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	h, present, ok := getHash(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.Int(0)
	}
	return resp.Int(int64(h.Len()))
}

func cmdHExists(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	h, present, ok := getHash(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.Int(0)
	}
	if _, found := h.Get(args[2]); found {
		return resp.Int(1)
	}
	return resp.Int(0)
}

func cmdHIncrBy(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	delta, ok := parseInt(args[3])
	if !ok {
		return notInteger()
	}
	key := string(args[1])
	d := db(ctx, sess)
	var reply resp.Value
	var wrote, wasPresent bool
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		var h *values.Hash
		if present {
			if existing.Kind != values.KindHash {
				reply = wrongType()
				return
			}
			h = existing.Data.(*values.Hash)
		} else {
			h = values.NewHash()
			d.SetLocked(key, store.NewEntry(values.KindHash, h))
		}
		n, err := h.IncrBy(args[2], delta)
		if err != nil {
			reply = notInteger()
			return
		}
		wasPresent = present
		wrote = true
		reply = resp.Int(n)
	})
	if wrote {
		if wasPresent {
			d.EmitTouch(key)
		} else {
			d.EmitSet(key)
		}
	}
	return reply
}

func cmdHIncrByFloat(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	delta, ok := parseFloat(args[3])
	if !ok {
		return notFloat()
	}
	key := string(args[1])
	d := db(ctx, sess)
	var reply resp.Value
	var wrote, wasPresent bool
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		var h *values.Hash
		if present {
			if existing.Kind != values.KindHash {
				reply = wrongType()
				return
			}
			h = existing.Data.(*values.Hash)
		} else {
			h = values.NewHash()
			d.SetLocked(key, store.NewEntry(values.KindHash, h))
		}
		f, err := h.IncrByFloat(args[2], delta)
		if err != nil {
			reply = notFloat()
			return
		}
		wasPresent = present
		wrote = true
		reply = resp.Bulk(values.FormatFloat(f))
	})
	if wrote {
		if wasPresent {
			d.EmitTouch(key)
		} else {
			d.EmitSet(key)
		}
	}
	return reply
}
