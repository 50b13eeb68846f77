package command

import (
	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
	"github.com/dreamware/torudis/internal/store"
	"github.com/dreamware/torudis/internal/values"
)

func registerSets(r *Registry) {
	r.Register(&Command{Name: "SADD", Arity: -3, Flags: FlagWrite, Handler: cmdSAdd})
	r.Register(&Command{Name: "SREM", Arity: -3, Flags: FlagWrite, Handler: cmdSRem})
	r.Register(&Command{Name: "SMEMBERS", Arity: 2, Flags: FlagReadOnly, Handler: cmdSMembers})
	r.Register(&Command{Name: "SISMEMBER", Arity: 3, Flags: FlagReadOnly, Handler: cmdSIsMember})
	r.Register(&Command{Name: "SMISMEMBER", Arity: -3, Flags: FlagReadOnly, Handler: cmdSMIsMember})
	r.Register(&Command{Name: "SCARD", Arity: 2, Flags: FlagReadOnly, Handler: cmdSCard})
	r.Register(&Command{Name: "SINTER", Arity: -2, Flags: FlagReadOnly, Handler: cmdSInter})
	r.Register(&Command{Name: "SUNION", Arity: -2, Flags: FlagReadOnly, Handler: cmdSUnion})
	r.Register(&Command{Name: "SDIFF", Arity: -2, Flags: FlagReadOnly, Handler: cmdSDiff})
	r.Register(&Command{Name: "SINTERSTORE", Arity: -3, Flags: FlagWrite, Handler: cmdSInterStore})
	r.Register(&Command{Name: "SUNIONSTORE", Arity: -3, Flags: FlagWrite, Handler: cmdSUnionStore})
	r.Register(&Command{Name: "SDIFFSTORE", Arity: -3, Flags: FlagWrite, Handler: cmdSDiffStore})
	r.Register(&Command{Name: "SPOP", Arity: -2, Flags: FlagWrite, Handler: cmdSPop})
	r.Register(&Command{Name: "SRANDMEMBER", Arity: -2, Flags: FlagReadOnly, Handler: cmdSRandMember})
	r.Register(&Command{Name: "SMOVE", Arity: 4, Flags: FlagWrite, Handler: cmdSMove})
}

func getSetLocked(d *store.Database, key string) (*values.Set, bool, bool) {
	e, present := d.GetLocked(key)
	if !present {
		return nil, false, true
	}
	if e.Kind != values.KindSet {
		return nil, true, false
	}
	return e.Data.(*values.Set), true, true
}

func getSet(d *store.Database, key string) (*values.Set, bool, bool) {
	e, present, ok := requireKind(d, key, values.KindSet)
	if !present || !ok {
		return nil, present, ok
	}
	return e.Data.(*values.Set), true, true
}

func cmdSAdd(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	d := db(ctx, sess)
	var reply resp.Value
	var wrote, wasPresent bool
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		var s *values.Set
		if present {
			if existing.Kind != values.KindSet {
				reply = wrongType()
				return
			}
			s = existing.Data.(*values.Set)
		} else {
			s = values.NewSet()
			d.SetLocked(key, store.NewEntry(values.KindSet, s))
		}
		added := s.Add(args[2:]...)
		wasPresent = present
		wrote = true
		reply = resp.Int(int64(added))
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

func cmdSRem(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	d := db(ctx, sess)
	var reply resp.Value
	var emptied, touched bool
	d.WithKeysLocked([]string{key}, func() {
		s, present, ok := getSetLocked(d, key)
		if !ok {
			reply = wrongType()
			return
		}
		if !present {
			reply = resp.Int(0)
			return
		}
		removed := s.Remove(args[2:]...)
		if s.Len() == 0 {
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

func cmdSMembers(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	s, present, ok := getSet(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.ArrSlice(nil)
	}
	return bulkArray(s.Members())
}

func cmdSIsMember(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	s, present, ok := getSet(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present || !s.Has(args[2]) {
		return resp.Int(0)
	}
	return resp.Int(1)
}

func cmdSMIsMember(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	s, present, ok := getSet(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	out := make([]resp.Value, len(args)-2)
	for i, m := range args[2:] {
		if present && s.Has(m) {
			out[i] = resp.Int(1)
		} else {
			out[i] = resp.Int(0)
		}
	}
	return resp.ArrSlice(out)
}

func cmdSCard(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	s, present, ok := getSet(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.Int(0)
	}
	return resp.Int(int64(s.Len()))
}

// fetchSets resolves every key to a *values.Set, treating an absent key
// as an empty set per SINTER/SUNION/SDIFF's contract (§4.3.3).
func fetchSets(d *store.Database, keys [][]byte) ([]*values.Set, bool) {
	sets := make([]*values.Set, len(keys))
	for i, k := range keys {
		s, _, ok := getSet(d, string(k))
		if !ok {
			return nil, false
		}
		if s == nil {
			s = values.NewSet()
		}
		sets[i] = s
	}
	return sets, true
}

func cmdSInter(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	d := db(ctx, sess)
	sets, ok := fetchSets(d, args[1:])
	if !ok {
		return wrongType()
	}
	return bulkArray(values.Inter(sets...).Members())
}

func cmdSUnion(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	d := db(ctx, sess)
	sets, ok := fetchSets(d, args[1:])
	if !ok {
		return wrongType()
	}
	return bulkArray(values.Union(sets...).Members())
}

func cmdSDiff(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	d := db(ctx, sess)
	sets, ok := fetchSets(d, args[1:])
	if !ok {
		return wrongType()
	}
	return bulkArray(values.Diff(sets...).Members())
}

// storeSetGeneric implements SINTERSTORE/SUNIONSTORE/SDIFFSTORE: compute
// combine over the source keys, then store (or delete, if empty) under
// dest, all under a single multi-key lock spanning dest and every
// source key so the store is never observed half-written.
func storeSetGeneric(ctx *ExecContext, sess *session.Session, args [][]byte, combine func(...*values.Set) *values.Set) resp.Value {
	dest := string(args[1])
	d := db(ctx, sess)
	keys := append([]string{dest}, bytesToStrings(args[2:])...)
	var reply resp.Value
	var emptied, stored bool
	d.WithKeysLocked(keys, func() {
		srcSets := make([]*values.Set, len(args)-2)
		for i, k := range args[2:] {
			s, present, ok := getSetLocked(d, string(k))
			if !ok {
				reply = wrongType()
				return
			}
			if !present {
				s = values.NewSet()
			}
			srcSets[i] = s
		}
		result := combine(srcSets...)
		if result.Len() == 0 {
			if d.DeleteLocked(dest) {
				emptied = true
			}
		} else {
			d.SetLocked(dest, store.NewEntry(values.KindSet, result))
			stored = true
		}
		reply = resp.Int(int64(result.Len()))
	})
	if emptied {
		d.EmitDelete(dest)
	} else if stored {
		d.EmitSet(dest)
	}
	return reply
}

func cmdSInterStore(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return storeSetGeneric(ctx, sess, args, values.Inter)
}

func cmdSUnionStore(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return storeSetGeneric(ctx, sess, args, values.Union)
}

func cmdSDiffStore(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return storeSetGeneric(ctx, sess, args, values.Diff)
}

func cmdSPop(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	hasCount := len(args) >= 3
	count := 1
	if hasCount {
		n, ok := parseIntArg(args[2])
		if !ok || n < 0 {
			return resp.Err("ERR value is out of range, must be positive")
		}
		count = n
	}
	d := db(ctx, sess)
	var reply resp.Value
	var emptied, touched bool
	d.WithKeysLocked([]string{key}, func() {
		s, present, ok := getSetLocked(d, key)
		if !ok {
			reply = wrongType()
			return
		}
		if !present {
			if hasCount {
				reply = resp.ArrSlice(nil)
			} else {
				reply = resp.NullBulk()
			}
			return
		}
		popped := s.Pop(count)
		if s.Len() == 0 {
			d.DeleteLocked(key)
			emptied = true
		} else if len(popped) > 0 {
			touched = true
		}
		if hasCount {
			reply = bulkArray(popped)
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

func cmdSRandMember(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	hasCount := len(args) >= 3
	count := 1
	if hasCount {
		n, ok := parseIntArg(args[2])
		if !ok {
			return notInteger()
		}
		count = n
	}
	s, present, ok := getSet(db(ctx, sess), key)
	if !ok {
		return wrongType()
	}
	if !present {
		if hasCount {
			return resp.ArrSlice(nil)
		}
		return resp.NullBulk()
	}
	members := s.Random(count)
	if hasCount {
		return bulkArray(members)
	}
	if len(members) == 0 {
		return resp.NullBulk()
	}
	return resp.Bulk(members[0])
}

func cmdSMove(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	src, dst, member := string(args[1]), string(args[2]), args[3]
	d := db(ctx, sess)
	var reply resp.Value
	var srcEmptied, srcTouched, dstTouched bool
	d.WithKeysLocked([]string{src, dst}, func() {
		srcSet, present, ok := getSetLocked(d, src)
		if !ok {
			reply = wrongType()
			return
		}
		if !present || !srcSet.Has(member) {
			reply = resp.Int(0)
			return
		}
		dstEntry, dstPresent := d.GetLocked(dst)
		var dstSet *values.Set
		if dstPresent {
			if dstEntry.Kind != values.KindSet {
				reply = wrongType()
				return
			}
			dstSet = dstEntry.Data.(*values.Set)
		} else {
			dstSet = values.NewSet()
			d.SetLocked(dst, store.NewEntry(values.KindSet, dstSet))
		}
		srcSet.Remove(member)
		dstSet.Add(member)
		dstTouched = true
		if srcSet.Len() == 0 {
			d.DeleteLocked(src)
			srcEmptied = true
		} else {
			srcTouched = true
		}
		reply = resp.Int(1)
	})
	if srcEmptied {
		d.EmitDelete(src)
	} else if srcTouched {
		d.EmitTouch(src)
	}
	if dstTouched {
		d.EmitTouch(dst)
	}
	return reply
}

func bytesToStrings(bs [][]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}
