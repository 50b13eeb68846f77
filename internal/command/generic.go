package command

import (
	"github.com/dreamware/torudis/internal/pubsub"
	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
)

func registerGeneric(r *Registry) {
	r.Register(&Command{Name: "PING", Arity: -1, Flags: FlagReadOnly | FlagPubSub | FlagNotInTx, Handler: cmdPing})
	r.Register(&Command{Name: "ECHO", Arity: 2, Flags: FlagReadOnly, Handler: cmdEcho})
	r.Register(&Command{Name: "SELECT", Arity: 2, Flags: FlagReadOnly | FlagNotInTx, Handler: cmdSelect})
	r.Register(&Command{Name: "AUTH", Arity: -2, Flags: FlagReadOnly | FlagNotInTx, Handler: cmdAuth})
	r.Register(&Command{Name: "QUIT", Arity: 1, Flags: FlagReadOnly | FlagPubSub | FlagNotInTx, Handler: cmdQuit})
	r.Register(&Command{Name: "RESET", Arity: 1, Flags: FlagReadOnly | FlagPubSub | FlagNotInTx, Handler: cmdReset})
	r.Register(&Command{Name: "DBSIZE", Arity: 1, Flags: FlagReadOnly, Handler: cmdDBSize})
	r.Register(&Command{Name: "FLUSHDB", Arity: -1, Flags: FlagWrite | FlagAdmin, Handler: cmdFlushDB})
	r.Register(&Command{Name: "FLUSHALL", Arity: -1, Flags: FlagWrite | FlagAdmin, Handler: cmdFlushAll})
	r.Register(&Command{Name: "DEL", Arity: -2, Flags: FlagWrite, Handler: cmdDel})
	r.Register(&Command{Name: "UNLINK", Arity: -2, Flags: FlagWrite, Handler: cmdDel})
	r.Register(&Command{Name: "EXISTS", Arity: -2, Flags: FlagReadOnly, Handler: cmdExists})
	r.Register(&Command{Name: "TYPE", Arity: 2, Flags: FlagReadOnly, Handler: cmdType})
	r.Register(&Command{Name: "KEYS", Arity: 2, Flags: FlagReadOnly, Handler: cmdKeys})
	r.Register(&Command{Name: "EXPIRE", Arity: -3, Flags: FlagWrite, Handler: cmdExpire})
	r.Register(&Command{Name: "PEXPIRE", Arity: -3, Flags: FlagWrite, Handler: cmdPExpire})
	r.Register(&Command{Name: "EXPIREAT", Arity: -3, Flags: FlagWrite, Handler: cmdExpireAt})
	r.Register(&Command{Name: "PEXPIREAT", Arity: -3, Flags: FlagWrite, Handler: cmdPExpireAt})
	r.Register(&Command{Name: "TTL", Arity: 2, Flags: FlagReadOnly, Handler: cmdTTL})
	r.Register(&Command{Name: "PTTL", Arity: 2, Flags: FlagReadOnly, Handler: cmdPTTL})
	r.Register(&Command{Name: "PERSIST", Arity: 2, Flags: FlagWrite, Handler: cmdPersist})
	r.Register(&Command{Name: "RENAME", Arity: 3, Flags: FlagWrite, Handler: cmdRename})
}

func cmdPing(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if len(args) == 2 {
		return resp.Bulk(args[1])
	}
	return resp.Str("PONG")
}

func cmdEcho(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return resp.Bulk(args[1])
}

func cmdSelect(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	n, ok := parseIntArg(args[1])
	if !ok || n < 0 || n >= ctx.Store.DatabaseCount() {
		return resp.Err("ERR DB index is out of range")
	}
	sess.Select(n)
	return resp.OK()
}

func cmdAuth(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if len(args) > 3 {
		return wrongArgs("AUTH")
	}
	password := string(args[len(args)-1])
	required := ctx.Config.RequirePassword()
	if required == "" {
		return resp.Err("ERR Client sent AUTH, but no password is set. Did you mean AUTH <username> <password>?")
	}
	if password != required {
		return resp.Err("WRONGPASS invalid username-password pair or user is disabled.")
	}
	sess.Authenticated = true
	return resp.OK()
}

func cmdQuit(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return resp.OK()
}

func cmdReset(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if sub := ctx.SubscriberOf; sub != nil {
		if s := sub(sess); s != nil {
			ctx.PubSub.RemoveAll(s)
		}
	}
	ctx.TxEngine.Disconnect(sess)
	sess.Reset()
	return resp.Str("RESET")
}

func cmdDBSize(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return resp.Int(int64(db(ctx, sess).Len()))
}

func cmdFlushDB(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	db(ctx, sess).Flush()
	return resp.OK()
}

func cmdFlushAll(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	for i := 0; i < ctx.Store.DatabaseCount(); i++ {
		ctx.Store.DB(i).Flush()
	}
	return resp.OK()
}

func cmdDel(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	d := db(ctx, sess)
	keys := make([]string, len(args)-1)
	for i, a := range args[1:] {
		keys[i] = string(a)
	}
	removed := int64(0)
	var deleted []string
	d.WithKeysLocked(keys, func() {
		for _, k := range keys {
			if d.DeleteLocked(k) {
				removed++
				deleted = append(deleted, k)
			}
		}
	})
	for _, k := range deleted {
		d.EmitDelete(k)
	}
	return resp.Int(removed)
}

func cmdExists(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	d := db(ctx, sess)
	count := int64(0)
	for _, a := range args[1:] {
		if d.Exists(string(a)) {
			count++
		}
	}
	return resp.Int(count)
}

func cmdType(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	e, ok := db(ctx, sess).Get(string(args[1]))
	if !ok {
		return resp.Str("none")
	}
	return resp.Str(e.Kind.String())
}

func cmdKeys(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	pattern := string(args[1])
	keys := db(ctx, sess).Keys(func(k string) bool { return pubsub.Match(pattern, k) })
	return strArray(keys)
}

func cmdExpire(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return expireGeneric(ctx, sess, args, 1000, false)
}

func cmdPExpire(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return expireGeneric(ctx, sess, args, 1, false)
}

func cmdExpireAt(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return expireGeneric(ctx, sess, args, 1000, true)
}

func cmdPExpireAt(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return expireGeneric(ctx, sess, args, 1, true)
}

// expireGeneric implements EXPIRE/PEXPIRE/EXPIREAT/PEXPIREAT, which
// share the same shape: a relative-or-absolute time value in seconds or
// milliseconds, plus the NX/XX/GT/LT option a caller may append (§4.3's
// generic-command family).
func expireGeneric(ctx *ExecContext, sess *session.Session, args [][]byte, unitMs int64, absolute bool) resp.Value {
	if len(args) < 3 {
		return wrongArgs(string(args[0]))
	}
	n, ok := parseInt(args[2])
	if !ok {
		return notInteger()
	}
	var deadline int64
	if absolute {
		deadline = n * unitMs
	} else {
		deadline = nowMsFrom(ctx) + n*unitMs
	}

	var nx, xx, gt, lt bool
	for _, a := range args[3:] {
		switch string(bytesUpper(a)) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "GT":
			gt = true
		case "LT":
			lt = true
		default:
			return syntaxError()
		}
	}

	d := db(ctx, sess)
	key := string(args[1])
	e, ok := d.Get(key)
	if !ok {
		return resp.Int(0)
	}
	if nx && e.HasExpiry() {
		return resp.Int(0)
	}
	if xx && !e.HasExpiry() {
		return resp.Int(0)
	}
	if gt && e.HasExpiry() && deadline <= e.Deadline {
		return resp.Int(0)
	}
	if lt && e.HasExpiry() && deadline >= e.Deadline {
		return resp.Int(0)
	}
	if !d.Expire(key, deadline) {
		return resp.Int(0)
	}
	return resp.Int(1)
}

func cmdTTL(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return ttlGeneric(ctx, sess, args, 1000)
}

func cmdPTTL(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return ttlGeneric(ctx, sess, args, 1)
}

func ttlGeneric(ctx *ExecContext, sess *session.Session, args [][]byte, unitMs int64) resp.Value {
	e, ok := db(ctx, sess).Get(string(args[1]))
	if !ok {
		return resp.Int(-2)
	}
	if !e.HasExpiry() {
		return resp.Int(-1)
	}
	remain := e.Deadline - nowMsFrom(ctx)
	if remain < 0 {
		remain = 0
	}
	return resp.Int(remain / unitMs)
}

func cmdPersist(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	d := db(ctx, sess)
	key := string(args[1])
	e, ok := d.Get(key)
	if !ok || !e.HasExpiry() {
		return resp.Int(0)
	}
	d.Expire(key, 0)
	return resp.Int(1)
}

func cmdRename(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	d := db(ctx, sess)
	src, dst := string(args[1]), string(args[2])
	var reply resp.Value
	var renamed bool
	d.WithKeysLocked([]string{src, dst}, func() {
		e, ok := d.GetLocked(src)
		if !ok {
			reply = resp.Err("ERR no such key")
			return
		}
		d.SetLocked(dst, e)
		d.DeleteLocked(src)
		renamed = true
		reply = resp.OK()
	})
	if renamed {
		d.EmitDelete(src)
		d.EmitSet(dst)
	}
	return reply
}

func bytesUpper(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return out
}
