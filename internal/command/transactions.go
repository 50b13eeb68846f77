package command

import (
	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
)

func registerTransactions(r *Registry) {
	r.Register(&Command{Name: "MULTI", Arity: 1, Flags: FlagNotInTx, Handler: cmdMulti})
	r.Register(&Command{Name: "EXEC", Arity: 1, Flags: FlagNotInTx, Handler: cmdExec})
	r.Register(&Command{Name: "DISCARD", Arity: 1, Flags: FlagNotInTx, Handler: cmdDiscard})
	r.Register(&Command{Name: "WATCH", Arity: -2, Flags: FlagNotInTx, Handler: cmdWatch})
	r.Register(&Command{Name: "UNWATCH", Arity: 1, Flags: FlagNotInTx, Handler: cmdUnwatch})
}

func cmdMulti(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if !sess.BeginMulti() {
		return resp.Err("ERR MULTI calls can not be nested")
	}
	return resp.OK()
}

// cmdExec replays the session's buffered commands through Execute,
// bypassing queueing and the subscribed-mode whitelist, per §4.6.
func cmdExec(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if !sess.InTransaction() {
		return resp.Err("ERR EXEC without MULTI")
	}
	dispatch := func(s *session.Session, cmdArgs [][]byte) resp.Value {
		return Execute(ctx, s, cmdArgs)
	}
	return ctx.TxEngine.Exec(sess, dispatch)
}

func cmdDiscard(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if !sess.InTransaction() {
		return resp.Err("ERR DISCARD without MULTI")
	}
	ctx.TxEngine.Discard(sess)
	return resp.OK()
}

// cmdWatch records the current modification counter for each key so the
// session's watch-invalidation hook can detect an intervening write
// before EXEC. Per §4.6, WATCH issued after MULTI has already begun is
// an error, since the reference protocol can't meaningfully roll a
// watch into an in-flight transaction.
func cmdWatch(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if sess.InTransaction() {
		return resp.Err("ERR WATCH inside MULTI is not allowed")
	}
	d := db(ctx, sess)
	dbIdx := sess.CurrentDB()
	for _, keyArg := range args[1:] {
		key := string(keyArg)
		modCount, _ := d.ModCount(key)
		ctx.TxEngine.Watch(sess, dbIdx, key, modCount)
	}
	return resp.OK()
}

func cmdUnwatch(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	ctx.TxEngine.Disconnect(sess)
	return resp.OK()
}
