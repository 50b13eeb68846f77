package command

import (
	"strings"

	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
)

// subscribedModeAllowed is the whitelist of commands a connection may
// still issue while in subscribed mode (§4.5): the pub/sub commands
// themselves, plus the handful of connection-housekeeping commands the
// reference protocol still accepts.
var subscribedModeAllowed = map[string]bool{
	"SUBSCRIBE": true, "UNSUBSCRIBE": true,
	"PSUBSCRIBE": true, "PUNSUBSCRIBE": true,
	"PING": true, "QUIT": true, "RESET": true,
}

// Dispatch runs one command through the full §4.4 sequence: unknown
// command / arity check, auth gate, transaction queueing, the
// subscribed-mode whitelist, and finally execution — followed by
// automatic AOF/replication propagation for any write that succeeded.
// This is the single entry point cmd/torudis-server's connection loop
// calls for every parsed request.
func Dispatch(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if len(args) == 0 {
		return resp.Err("ERR empty command")
	}
	name := strings.ToUpper(string(args[0]))

	cmd, ok := ctx.Registry.Lookup(name)
	if !ok {
		return resp.Errf("ERR unknown command '%s'", args[0])
	}
	if !cmd.checkArity(len(args)) {
		return resp.Errf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))
	}

	if requirePass := ctx.Config.RequirePassword(); requirePass != "" && !sess.Authenticated && name != "AUTH" && name != "QUIT" && name != "HELLO" {
		return resp.Err("NOAUTH Authentication required.")
	}

	// Queue-time buffering: every command except the small set that
	// must run immediately (MULTI/EXEC/DISCARD/WATCH/RESET and the
	// like) gets appended to the transaction buffer instead of
	// executing, once a MULTI is open (§4.5/§4.6). An unknown-command
	// or bad-arity error above already short-circuited; a queue-time
	// error from here on (e.g. wrong command inside MULTI in the
	// reference protocol) would dirty the transaction, but since those
	// two checks already ran, queueing itself cannot fail.
	if sess.InTransaction() && cmd.Flags&FlagNotInTx == 0 {
		sess.Queue(args)
		return resp.Str("QUEUED")
	}

	if sess.IsSubscribed() && cmd.Flags&FlagPubSub == 0 && !subscribedModeAllowed[name] {
		return resp.Errf("ERR Can't execute '%s': only (P)SUBSCRIBE / (P)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context", strings.ToLower(name))
	}

	if cmd.Flags&FlagWrite != 0 && ctx.IsReplica() && !sess.IsReplicaLink {
		return resp.Err("READONLY You can't write against a read only replica.")
	}

	reply := cmd.Handler(ctx, sess, args)

	if cmd.Flags&FlagWrite != 0 && !isErrorReply(reply) {
		ctx.propagateWrite(sess.CurrentDB(), args)
	}

	return reply
}

// Execute runs a command bypassing transaction queueing and the
// subscribed-mode whitelist, used for EXEC's buffered replay and for a
// script's nested redis_call (§4.6, §4.12) — both contexts where the
// command must run now regardless of connection mode.
func Execute(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if len(args) == 0 {
		return resp.Err("ERR empty command")
	}
	name := strings.ToUpper(string(args[0]))
	cmd, ok := ctx.Registry.Lookup(name)
	if !ok {
		return resp.Errf("ERR unknown command '%s'", args[0])
	}
	if !cmd.checkArity(len(args)) {
		return resp.Errf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))
	}
	if cmd.Flags&FlagWrite != 0 && ctx.IsReplica() && !sess.IsReplicaLink {
		return resp.Err("READONLY You can't write against a read only replica.")
	}

	reply := cmd.Handler(ctx, sess, args)
	if cmd.Flags&FlagWrite != 0 && !isErrorReply(reply) {
		ctx.propagateWrite(sess.CurrentDB(), args)
	}
	return reply
}

func isErrorReply(v resp.Value) bool { return v.Type == resp.Error }
