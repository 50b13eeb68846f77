package command

import (
	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
	"github.com/dreamware/torudis/internal/store"
	"github.com/dreamware/torudis/internal/values"
)

func registerStrings(r *Registry) {
	r.Register(&Command{Name: "GET", Arity: 2, Flags: FlagReadOnly, Handler: cmdGet})
	r.Register(&Command{Name: "SET", Arity: -3, Flags: FlagWrite, Handler: cmdSet})
	r.Register(&Command{Name: "GETSET", Arity: 3, Flags: FlagWrite, Handler: cmdGetSet})
	r.Register(&Command{Name: "APPEND", Arity: 3, Flags: FlagWrite, Handler: cmdAppend})
	r.Register(&Command{Name: "STRLEN", Arity: 2, Flags: FlagReadOnly, Handler: cmdStrlen})
	r.Register(&Command{Name: "GETRANGE", Arity: 4, Flags: FlagReadOnly, Handler: cmdGetRange})
	r.Register(&Command{Name: "SETRANGE", Arity: 4, Flags: FlagWrite, Handler: cmdSetRange})
	r.Register(&Command{Name: "INCR", Arity: 2, Flags: FlagWrite, Handler: cmdIncr})
	r.Register(&Command{Name: "DECR", Arity: 2, Flags: FlagWrite, Handler: cmdDecr})
	r.Register(&Command{Name: "INCRBY", Arity: 3, Flags: FlagWrite, Handler: cmdIncrBy})
	r.Register(&Command{Name: "DECRBY", Arity: 3, Flags: FlagWrite, Handler: cmdDecrBy})
	r.Register(&Command{Name: "INCRBYFLOAT", Arity: 3, Flags: FlagWrite, Handler: cmdIncrByFloat})
	r.Register(&Command{Name: "MSET", Arity: -3, Flags: FlagWrite, Handler: cmdMSet})
	r.Register(&Command{Name: "MGET", Arity: -2, Flags: FlagReadOnly, Handler: cmdMGet})
	r.Register(&Command{Name: "MSETNX", Arity: -3, Flags: FlagWrite, Handler: cmdMSetNX})
}

func getString(d *store.Database, key string) ([]byte, bool, bool) {
	e, present, ok := requireKind(d, key, values.KindString)
	if !present || !ok {
		return nil, present, ok
	}
	return e.Data.([]byte), true, true
}

func cmdGet(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	b, present, ok := getString(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.NullBulk()
	}
	return resp.Bulk(b)
}

// cmdSet implements SET's option matrix: NX/XX existence guards,
// KEEPTTL/EX/PX/EXAT/PXAT expiry control, and GET to return the old
// value atomically (§4.3.1).
func cmdSet(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if len(args) < 3 {
		return wrongArgs("SET")
	}
	key, value := string(args[1]), args[2]

	var nx, xx, keepttl, get bool
	var deadline int64
	haveExpiry := false

	rest := args[3:]
	for i := 0; i < len(rest); i++ {
		switch string(bytesUpper(rest[i])) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "KEEPTTL":
			keepttl = true
		case "GET":
			get = true
		case "EX", "PX", "EXAT", "PXAT":
			opt := string(bytesUpper(rest[i]))
			if i+1 >= len(rest) {
				return syntaxError()
			}
			n, ok := parseInt(rest[i+1])
			if !ok {
				return notInteger()
			}
			i++
			switch opt {
			case "EX":
				deadline = nowMsFrom(ctx) + n*1000
			case "PX":
				deadline = nowMsFrom(ctx) + n
			case "EXAT":
				deadline = n * 1000
			case "PXAT":
				deadline = n
			}
			haveExpiry = true
		default:
			return syntaxError()
		}
	}
	if nx && xx {
		return syntaxError()
	}
	if keepttl && haveExpiry {
		return syntaxError()
	}

	d := db(ctx, sess)
	var reply resp.Value
	wrote := false
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		var oldReply resp.Value
		if get {
			if present && existing.Kind != values.KindString {
				reply = wrongType()
				return
			}
			if present {
				oldReply = resp.Bulk(existing.Data.([]byte))
			} else {
				oldReply = resp.NullBulk()
			}
		}
		if nx && present {
			reply = finishSet(get, oldReply, false)
			return
		}
		if xx && !present {
			reply = finishSet(get, oldReply, false)
			return
		}
		e := store.NewEntry(values.KindString, append([]byte(nil), value...))
		if keepttl && present {
			e.Deadline = existing.Deadline
		}
		if haveExpiry {
			e.Deadline = deadline
		}
		d.SetLocked(key, e)
		wrote = true
		reply = finishSet(get, oldReply, true)
	})
	if wrote {
		d.EmitSet(key)
	}
	return reply
}

func finishSet(get bool, oldReply resp.Value, didSet bool) resp.Value {
	if get {
		return oldReply
	}
	if !didSet {
		return resp.NullBulk()
	}
	return resp.OK()
}

func cmdGetSet(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	d := db(ctx, sess)
	key := string(args[1])
	var reply resp.Value
	wrote := false
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		if present && existing.Kind != values.KindString {
			reply = wrongType()
			return
		}
		if present {
			reply = resp.Bulk(existing.Data.([]byte))
		} else {
			reply = resp.NullBulk()
		}
		d.SetLocked(key, store.NewEntry(values.KindString, append([]byte(nil), args[2]...)))
		wrote = true
	})
	if wrote {
		d.EmitSet(key)
	}
	return reply
}

func cmdAppend(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	d := db(ctx, sess)
	key := string(args[1])
	var reply resp.Value
	wrote := false
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		var cur []byte
		if present {
			if existing.Kind != values.KindString {
				reply = wrongType()
				return
			}
			cur = existing.Data.([]byte)
		}
		next := append(append([]byte(nil), cur...), args[2]...)
		if len(next) > values.MaxStringLen {
			reply = resp.Err("ERR string exceeds maximum allowed size (proto-max-bulk-len)")
			return
		}
		e := store.NewEntry(values.KindString, next)
		if present {
			e.Deadline = existing.Deadline
		}
		d.SetLocked(key, e)
		wrote = true
		reply = resp.Int(int64(len(next)))
	})
	if wrote {
		d.EmitSet(key)
	}
	return reply
}

func cmdStrlen(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	b, present, ok := getString(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.Int(0)
	}
	return resp.Int(int64(len(b)))
}

func cmdGetRange(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	b, present, ok := getString(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.Bulk(nil)
	}
	start, ok1 := parseIntArg(args[2])
	end, ok2 := parseIntArg(args[3])
	if !ok1 || !ok2 {
		return notInteger()
	}
	return resp.Bulk(values.GetRange(b, start, end))
}

func cmdSetRange(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	offset, ok := parseIntArg(args[2])
	if !ok || offset < 0 {
		return resp.Err("ERR offset is out of range")
	}
	d := db(ctx, sess)
	key := string(args[1])
	var reply resp.Value
	wrote := false
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		var cur []byte
		if present {
			if existing.Kind != values.KindString {
				reply = wrongType()
				return
			}
			cur = existing.Data.([]byte)
		}
		next, err := values.SetRange(cur, offset, args[3])
		if err != nil {
			reply = resp.Errf("ERR %s", err.Error())
			return
		}
		e := store.NewEntry(values.KindString, next)
		if present {
			e.Deadline = existing.Deadline
		}
		d.SetLocked(key, e)
		wrote = true
		reply = resp.Int(int64(len(next)))
	})
	if wrote {
		d.EmitSet(key)
	}
	return reply
}

func cmdIncr(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return incrByGeneric(ctx, sess, string(args[1]), 1)
}

func cmdDecr(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return incrByGeneric(ctx, sess, string(args[1]), -1)
}

func cmdIncrBy(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	n, ok := parseInt(args[2])
	if !ok {
		return notInteger()
	}
	return incrByGeneric(ctx, sess, string(args[1]), n)
}

func cmdDecrBy(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	n, ok := parseInt(args[2])
	if !ok {
		return notInteger()
	}
	return incrByGeneric(ctx, sess, string(args[1]), -n)
}

func incrByGeneric(ctx *ExecContext, sess *session.Session, key string, delta int64) resp.Value {
	d := db(ctx, sess)
	var reply resp.Value
	wrote := false
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		var cur []byte
		if present {
			if existing.Kind != values.KindString {
				reply = wrongType()
				return
			}
			cur = existing.Data.([]byte)
		}
		encoded, n, err := values.IncrInt(cur, delta)
		if err != nil {
			reply = notInteger()
			return
		}
		e := store.NewEntry(values.KindString, encoded)
		if present {
			e.Deadline = existing.Deadline
		}
		d.SetLocked(key, e)
		wrote = true
		reply = resp.Int(n)
	})
	if wrote {
		d.EmitSet(key)
	}
	return reply
}

func cmdIncrByFloat(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	delta, ok := parseFloat(args[2])
	if !ok {
		return notFloat()
	}
	d := db(ctx, sess)
	key := string(args[1])
	var reply resp.Value
	wrote := false
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		var cur []byte
		if present {
			if existing.Kind != values.KindString {
				reply = wrongType()
				return
			}
			cur = existing.Data.([]byte)
		}
		encoded, _, err := values.IncrFloat(cur, delta)
		if err != nil {
			reply = notFloat()
			return
		}
		e := store.NewEntry(values.KindString, encoded)
		if present {
			e.Deadline = existing.Deadline
		}
		d.SetLocked(key, e)
		wrote = true
		reply = resp.Bulk(encoded)
	})
	if wrote {
		d.EmitSet(key)
	}
	return reply
}

func cmdMSet(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if len(args[1:])%2 != 0 {
		return wrongArgs("MSET")
	}
	pairs := args[1:]
	keys := make([]string, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		keys = append(keys, string(pairs[i]))
	}
	d := db(ctx, sess)
	d.WithKeysLocked(keys, func() {
		for i := 0; i < len(pairs); i += 2 {
			d.SetLocked(string(pairs[i]), store.NewEntry(values.KindString, append([]byte(nil), pairs[i+1]...)))
		}
	})
	for _, k := range keys {
		d.EmitSet(k)
	}
	return resp.OK()
}

func cmdMSetNX(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if len(args[1:])%2 != 0 {
		return wrongArgs("MSETNX")
	}
	pairs := args[1:]
	keys := make([]string, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		keys = append(keys, string(pairs[i]))
	}
	d := db(ctx, sess)
	var set int64
	d.WithKeysLocked(keys, func() {
		for _, k := range keys {
			if _, present := d.GetLocked(k); present {
				set = 0
				return
			}
		}
		for i := 0; i < len(pairs); i += 2 {
			d.SetLocked(string(pairs[i]), store.NewEntry(values.KindString, append([]byte(nil), pairs[i+1]...)))
		}
		set = 1
	})
	if set == 1 {
		for _, k := range keys {
			d.EmitSet(k)
		}
	}
	return resp.Int(set)
}

func cmdMGet(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	d := db(ctx, sess)
	out := make([]resp.Value, len(args)-1)
	for i, a := range args[1:] {
		e, present := d.Get(string(a))
		if !present || e.Kind != values.KindString {
			out[i] = resp.NullBulk()
			continue
		}
		out[i] = resp.Bulk(e.Data.([]byte))
	}
	return resp.ArrSlice(out)
}
