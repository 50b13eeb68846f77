package txn

import (
	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
)

// Dispatch executes one already-parsed command and returns its reply.
// The command package supplies this so txn never depends on it (which
// would create an import cycle, since command depends on txn).
type Dispatch func(sess *session.Session, args [][]byte) resp.Value

// Engine runs EXEC against a session's queued commands and the watch
// registry's dirty bit.
type Engine struct {
	watches *Registry
}

// NewEngine returns a transaction engine bound to reg.
func NewEngine(reg *Registry) *Engine {
	return &Engine{watches: reg}
}

// Exec implements §4.5/§4.6's EXEC semantics: abort on a dirty watch set
// (null array reply), EXECABORT on a dirty queue, otherwise run every
// queued command in order through dispatch and reply with the array of
// their individual replies. Watches are dropped either way.
func (e *Engine) Exec(sess *session.Session, dispatch Dispatch) resp.Value {
	if sess.IsDirty() {
		e.watches.Unwatch(sess, sess.Watching())
		sess.EndTransaction()
		return resp.Err("EXECABORT Transaction discarded because of previous errors.")
	}

	if sess.WatchInvalidated() {
		e.watches.Unwatch(sess, sess.Watching())
		sess.EndTransaction()
		return resp.NullArray()
	}

	watching := sess.Watching()
	buf := sess.EndTransaction()
	e.watches.Unwatch(sess, watching)

	replies := make([]resp.Value, len(buf))
	for i, cmd := range buf {
		replies[i] = dispatch(sess, cmd.Args)
	}
	return resp.ArrSlice(replies)
}

// Discard implements DISCARD: clear the buffer and watches, back to
// normal mode.
func (e *Engine) Discard(sess *session.Session) {
	watching := sess.Watching()
	sess.EndTransaction()
	e.watches.Unwatch(sess, watching)
}

// Watch implements WATCH for one key, recording modCount as observed
// under the owning shard's lock by the caller.
func (e *Engine) Watch(sess *session.Session, db int, key string, modCount uint64) {
	e.watches.Watch(sess, db, key, modCount)
}

// Disconnect drops every watch a departing session held.
func (e *Engine) Disconnect(sess *session.Session) {
	e.watches.Unwatch(sess, sess.Watching())
	sess.ClearWatches()
}
