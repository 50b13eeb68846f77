package command

import (
	"time"

	"github.com/dreamware/torudis/internal/blocking"
	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
	"github.com/dreamware/torudis/internal/store"
	"github.com/dreamware/torudis/internal/values"
)

func registerLists(r *Registry) {
	r.Register(&Command{Name: "LPUSH", Arity: -3, Flags: FlagWrite, Handler: cmdLPush})
	r.Register(&Command{Name: "RPUSH", Arity: -3, Flags: FlagWrite, Handler: cmdRPush})
	r.Register(&Command{Name: "LPOP", Arity: -2, Flags: FlagWrite, Handler: cmdLPop})
	r.Register(&Command{Name: "RPOP", Arity: -2, Flags: FlagWrite, Handler: cmdRPop})
	r.Register(&Command{Name: "LLEN", Arity: 2, Flags: FlagReadOnly, Handler: cmdLLen})
	r.Register(&Command{Name: "LRANGE", Arity: 4, Flags: FlagReadOnly, Handler: cmdLRange})
	r.Register(&Command{Name: "LINDEX", Arity: 3, Flags: FlagReadOnly, Handler: cmdLIndex})
	r.Register(&Command{Name: "LSET", Arity: 4, Flags: FlagWrite, Handler: cmdLSet})
	r.Register(&Command{Name: "LREM", Arity: 4, Flags: FlagWrite, Handler: cmdLRem})
	r.Register(&Command{Name: "LTRIM", Arity: 4, Flags: FlagWrite, Handler: cmdLTrim})
	r.Register(&Command{Name: "LINSERT", Arity: 5, Flags: FlagWrite, Handler: cmdLInsert})
	r.Register(&Command{Name: "BLPOP", Arity: -3, Flags: FlagWrite | FlagNotInTx, Handler: cmdBLPop})
	r.Register(&Command{Name: "BRPOP", Arity: -3, Flags: FlagWrite | FlagNotInTx, Handler: cmdBRPop})
}

func getList(d *store.Database, key string) (*values.List, bool, bool) {
	e, present, ok := requireKind(d, key, values.KindList)
	if !present || !ok {
		return nil, present, ok
	}
	return e.Data.(*values.List), true, true
}

func pushGeneric(ctx *ExecContext, sess *session.Session, args [][]byte, left bool) resp.Value {
	key := string(args[1])
	d := db(ctx, sess)
	var reply resp.Value
	var wrote, wasPresent bool
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		var lst *values.List
		if present {
			if existing.Kind != values.KindList {
				reply = wrongType()
				return
			}
			lst = existing.Data.(*values.List)
		} else {
			lst = values.NewList()
			e := store.NewEntry(values.KindList, lst)
			d.SetLocked(key, e)
		}
		if left {
			lst.PushLeft(args[2:]...)
		} else {
			lst.PushRight(args[2:]...)
		}
		wasPresent = present
		wrote = true
		reply = resp.Int(int64(lst.Len()))
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

func cmdLPush(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return pushGeneric(ctx, sess, args, true)
}

func cmdRPush(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return pushGeneric(ctx, sess, args, false)
}

func popGeneric(ctx *ExecContext, sess *session.Session, args [][]byte, left bool) resp.Value {
	count := 1
	hasCount := false
	if len(args) >= 3 {
		n, ok := parseIntArg(args[2])
		if !ok || n < 0 {
			return resp.Err("ERR value is out of range, must be positive")
		}
		count = n
		hasCount = true
	}
	key := string(args[1])
	d := db(ctx, sess)
	var reply resp.Value
	var emptied, touched bool
	d.WithKeysLocked([]string{key}, func() {
		lst, present, ok := getListLocked(d, key)
		if !ok {
			reply = wrongType()
			return
		}
		if !present {
			if hasCount {
				reply = resp.NullArray()
			} else {
				reply = resp.NullBulk()
			}
			return
		}
		var popped [][]byte
		if left {
			popped = lst.PopLeft(count)
		} else {
			popped = lst.PopRight(count)
		}
		if lst.Len() == 0 {
			d.DeleteLocked(key)
			emptied = true
		} else if len(popped) > 0 {
			touched = true
		}
		if hasCount {
			if len(popped) == 0 {
				reply = resp.NullArray()
			} else {
				reply = bulkArray(popped)
			}
			return
		}
		if len(popped) == 0 {
			reply = resp.NullBulk()
			return
		}
		reply = resp.Bulk(popped[0])
	})
	if emptied {
		d.EmitDelete(key)
	} else if touched {
		d.EmitTouch(key)
	}
	return reply
}

func getListLocked(d *store.Database, key string) (*values.List, bool, bool) {
	e, present := d.GetLocked(key)
	if !present {
		return nil, false, true
	}
	if e.Kind != values.KindList {
		return nil, true, false
	}
	return e.Data.(*values.List), true, true
}

func cmdLPop(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return popGeneric(ctx, sess, args, true)
}

func cmdRPop(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return popGeneric(ctx, sess, args, false)
}

func cmdLLen(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	lst, present, ok := getList(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.Int(0)
	}
	return resp.Int(int64(lst.Len()))
}

func cmdLRange(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	lst, present, ok := getList(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.ArrSlice(nil)
	}
	start, ok1 := parseIntArg(args[2])
	stop, ok2 := parseIntArg(args[3])
	if !ok1 || !ok2 {
		return notInteger()
	}
	return bulkArray(lst.Range(start, stop))
}

func cmdLIndex(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	lst, present, ok := getList(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.NullBulk()
	}
	idx, ok1 := parseIntArg(args[2])
	if !ok1 {
		return notInteger()
	}
	v, found := lst.Index(idx)
	if !found {
		return resp.NullBulk()
	}
	return resp.Bulk(v)
}

func cmdLSet(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	d := db(ctx, sess)
	var reply resp.Value
	var touched bool
	d.WithKeysLocked([]string{key}, func() {
		lst, present, ok := getListLocked(d, key)
		if !ok {
			reply = wrongType()
			return
		}
		if !present {
			reply = resp.Err("ERR no such key")
			return
		}
		idx, ok1 := parseIntArg(args[2])
		if !ok1 {
			reply = notInteger()
			return
		}
		if !lst.SetIndex(idx, args[3]) {
			reply = resp.Err("ERR index out of range")
			return
		}
		touched = true
		reply = resp.OK()
	})
	if touched {
		d.EmitTouch(key)
	}
	return reply
}

func cmdLRem(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	count, ok := parseIntArg(args[2])
	if !ok {
		return notInteger()
	}
	d := db(ctx, sess)
	var reply resp.Value
	var emptied, touched bool
	d.WithKeysLocked([]string{key}, func() {
		lst, present, ok := getListLocked(d, key)
		if !ok {
			reply = wrongType()
			return
		}
		if !present {
			reply = resp.Int(0)
			return
		}
		removed := lst.RemoveMatching(count, args[3])
		if lst.Len() == 0 {
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

func cmdLTrim(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	start, ok1 := parseIntArg(args[2])
	stop, ok2 := parseIntArg(args[3])
	if !ok1 || !ok2 {
		return notInteger()
	}
	d := db(ctx, sess)
	var reply resp.Value
	var emptied, touched bool
	d.WithKeysLocked([]string{key}, func() {
		lst, present, ok := getListLocked(d, key)
		if !ok {
			reply = wrongType()
			return
		}
		if !present {
			reply = resp.OK()
			return
		}
		lst.Trim(start, stop)
		if lst.Len() == 0 {
			d.DeleteLocked(key)
			emptied = true
		} else {
			touched = true
		}
		reply = resp.OK()
	})
	if emptied {
		d.EmitDelete(key)
	} else if touched {
		d.EmitTouch(key)
	}
	return reply
}

func cmdLInsert(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	var before bool
	switch string(bytesUpper(args[2])) {
	case "BEFORE":
		before = true
	case "AFTER":
		before = false
	default:
		return syntaxError()
	}
	d := db(ctx, sess)
	var reply resp.Value
	var touched bool
	d.WithKeysLocked([]string{key}, func() {
		lst, present, ok := getListLocked(d, key)
		if !ok {
			reply = wrongType()
			return
		}
		if !present {
			reply = resp.Int(0)
			return
		}
		if !lst.InsertRelative(before, args[3], args[4]) {
			reply = resp.Int(-1)
			return
		}
		touched = true
		reply = resp.Int(int64(lst.Len()))
	})
	if touched {
		d.EmitTouch(key)
	}
	return reply
}

// cmdBLPop/cmdBRPop park the connection on the blocking coordinator
// until one of the listed keys yields an element or the timeout
// expires (§4.3.2, §4.7). The handler itself runs Dispatch-free: it is
// invoked directly from the dispatcher with FlagNotInTx, since a
// blocking wait inside a queued MULTI/EXEC would deadlock the server.
func cmdBLPop(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return blockingPopGeneric(ctx, sess, args, true)
}

func cmdBRPop(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return blockingPopGeneric(ctx, sess, args, false)
}

func blockingPopGeneric(ctx *ExecContext, sess *session.Session, args [][]byte, left bool) resp.Value {
	keys := args[1 : len(args)-1]
	timeoutSecs, ok := parseFloat(args[len(args)-1])
	if !ok || timeoutSecs < 0 {
		return resp.Err("ERR timeout is not a float or out of range")
	}

	dbIdx := sess.CurrentDB()
	d := ctx.Store.DB(dbIdx)

	tryOne := func(key string) (resp.Value, bool) {
		var reply resp.Value
		found := false
		var emptied, touched bool
		d.WithKeysLocked([]string{key}, func() {
			lst, present, ok := getListLocked(d, key)
			if !ok || !present {
				return
			}
			var popped [][]byte
			if left {
				popped = lst.PopLeft(1)
			} else {
				popped = lst.PopRight(1)
			}
			if len(popped) == 0 {
				return
			}
			if lst.Len() == 0 {
				d.DeleteLocked(key)
				emptied = true
			} else {
				touched = true
			}
			reply = resp.Arr(resp.BulkStr(key), resp.Bulk(popped[0]))
			found = true
		})
		if emptied {
			d.EmitDelete(key)
		} else if touched {
			d.EmitTouch(key)
		}
		return reply, found
	}

	for _, k := range keys {
		if reply, ok := tryOne(string(k)); ok {
			return reply
		}
	}

	targets := make([]blocking.Target, len(keys))
	for i, k := range keys {
		targets[i] = blocking.Target{DB: dbIdx, Key: string(k)}
	}
	w := &blocking.Waiter{
		Keys:   targets,
		Result: make(chan resp.Value, 1),
		TryAcquire: func(t blocking.Target) (resp.Value, bool) {
			return tryOne(t.Key)
		},
	}
	ctx.Blocking.Register(w)

	var timeout time.Duration
	if timeoutSecs > 0 {
		timeout = time.Duration(timeoutSecs * float64(time.Second))
	}
	return blocking.WaitTimeout(ctx.Blocking, w, timeout, resp.NullArray())
}
