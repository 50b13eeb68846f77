package command

import (
	"testing"

	"github.com/dreamware/torudis/internal/config"
	"github.com/dreamware/torudis/internal/pubsub"
	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
	"github.com/dreamware/torudis/internal/store"
)

// newTestContext builds an ExecContext over a small in-memory store, with
// no persistence or replication peers attached — enough for every
// handler that doesn't specifically exercise SAVE/REPLICAOF/scripting.
// SubscriberOf is wired to a simple per-session map, mirroring what
// cmd/torudis-server's connection layer does for real sockets.
func newTestContext(t *testing.T) *ExecContext {
	t.Helper()
	cfg := config.Defaults()
	cfg.Databases = 4
	cfg.Shards = 4
	st := store.New(store.Options{Databases: cfg.Databases, Shards: cfg.Shards})
	ctx := NewExecContext(st, cfg, nil)

	subs := map[uint64]*pubsub.Subscriber{}
	ctx.SubscriberOf = func(sess *session.Session) *pubsub.Subscriber {
		if sub, ok := subs[sess.ID]; ok {
			return sub
		}
		sub := pubsub.NewSubscriber(sess.ID, 64, 1000)
		subs[sess.ID] = sub
		return sub
	}
	return ctx
}

func newTestSession() *session.Session {
	return session.New(1)
}

func mustRun(ctx *ExecContext, sess *session.Session, args ...string) resp.Value {
	raw := make([][]byte, len(args))
	for i, a := range args {
		raw[i] = []byte(a)
	}
	return Dispatch(ctx, sess, raw)
}
