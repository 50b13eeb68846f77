package command

import (
	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
)

func registerPubSub(r *Registry) {
	r.Register(&Command{Name: "SUBSCRIBE", Arity: -2, Flags: FlagPubSub | FlagNotInTx, Handler: cmdSubscribe})
	r.Register(&Command{Name: "UNSUBSCRIBE", Arity: -1, Flags: FlagPubSub | FlagNotInTx, Handler: cmdUnsubscribe})
	r.Register(&Command{Name: "PSUBSCRIBE", Arity: -2, Flags: FlagPubSub | FlagNotInTx, Handler: cmdPSubscribe})
	r.Register(&Command{Name: "PUNSUBSCRIBE", Arity: -1, Flags: FlagPubSub | FlagNotInTx, Handler: cmdPUnsubscribe})
	r.Register(&Command{Name: "PUBLISH", Arity: 3, Flags: FlagPubSub, Handler: cmdPublish})
}

func confirmationReplies(kind string, names []string, countAfter func(i int) int) []resp.Value {
	out := make([]resp.Value, 0, len(names))
	for i, name := range names {
		out = append(out, resp.Arr(
			resp.BulkStr(kind),
			resp.BulkStr(name),
			resp.Int(int64(countAfter(i))),
		))
	}
	return out
}

func cmdSubscribe(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	sub := ctx.SubscriberOf(sess)
	channels := bytesToStrings(args[1:])
	ctx.PubSub.Subscribe(sub, channels...)
	n := sess.Subscribe(channels...)
	replies := confirmationReplies("subscribe", channels, func(i int) int { return n - len(channels) + i + 1 })
	return resp.ArrSlice(replies)
}

func cmdUnsubscribe(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	sub := ctx.SubscriberOf(sess)
	requested := bytesToStrings(args[1:])
	removed, remaining := sess.Unsubscribe(requested...)
	ctx.PubSub.Unsubscribe(sub, removed...)
	if len(removed) == 0 {
		return resp.ArrSlice([]resp.Value{resp.Arr(resp.BulkStr("unsubscribe"), resp.NullBulk(), resp.Int(int64(remaining)))})
	}
	replies := confirmationReplies("unsubscribe", removed, func(i int) int { return remaining + len(removed) - i - 1 })
	return resp.ArrSlice(replies)
}

func cmdPSubscribe(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	sub := ctx.SubscriberOf(sess)
	patterns := bytesToStrings(args[1:])
	ctx.PubSub.PSubscribe(sub, patterns...)
	n := sess.PSubscribe(patterns...)
	replies := confirmationReplies("psubscribe", patterns, func(i int) int { return n - len(patterns) + i + 1 })
	return resp.ArrSlice(replies)
}

func cmdPUnsubscribe(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	sub := ctx.SubscriberOf(sess)
	requested := bytesToStrings(args[1:])
	removed, remaining := sess.PUnsubscribe(requested...)
	ctx.PubSub.PUnsubscribe(sub, removed...)
	if len(removed) == 0 {
		return resp.ArrSlice([]resp.Value{resp.Arr(resp.BulkStr("punsubscribe"), resp.NullBulk(), resp.Int(int64(remaining)))})
	}
	replies := confirmationReplies("punsubscribe", removed, func(i int) int { return remaining + len(removed) - i - 1 })
	return resp.ArrSlice(replies)
}

// cmdPublish delivers to every exact and pattern subscriber of the
// channel. A subscriber whose outbox hard limit is breached is
// unsubscribed from everything and has its outbox closed, the signal
// the connection layer's writer loop uses to tear the link down
// (§4.8's "slow subscribers are disconnected").
func cmdPublish(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	channel := string(args[1])
	delivered, overflowed := ctx.PubSub.Publish(channel, args[2])
	for _, sub := range overflowed {
		ctx.PubSub.RemoveAll(sub)
		close(sub.Outbox)
	}
	return resp.Int(int64(delivered))
}
