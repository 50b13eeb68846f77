package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/torudis/internal/resp"
)

func TestSubscribeUnsubscribeConfirmations(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	reply := mustRun(ctx, sess, "SUBSCRIBE", "news", "sports")
	require.Equal(t, resp.Array, reply.Type)
	require.Len(t, reply.Array, 2)
	assert.Equal(t, []byte("subscribe"), reply.Array[0].Array[0].Bulk)
	assert.Equal(t, int64(1), reply.Array[0].Array[2].Int)
	assert.Equal(t, int64(2), reply.Array[1].Array[2].Int)
	assert.True(t, sess.IsSubscribed())

	reply = mustRun(ctx, sess, "UNSUBSCRIBE", "news")
	require.Len(t, reply.Array, 1)
	assert.Equal(t, int64(1), reply.Array[0].Array[2].Int)

	reply = mustRun(ctx, sess, "UNSUBSCRIBE")
	assert.False(t, sess.IsSubscribed())
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	ctx := newTestContext(t)
	subSess := newTestSession()
	mustRun(ctx, subSess, "SUBSCRIBE", "chan")
	sub := ctx.SubscriberOf(subSess)

	pubSess := newTestSession()
	pubSess.ID = 2
	delivered := mustRun(ctx, pubSess, "PUBLISH", "chan", "hello")
	assert.Equal(t, resp.Int(1), delivered)

	select {
	case msg := <-sub.Outbox:
		assert.Equal(t, "chan", msg.Channel)
		assert.Equal(t, []byte("hello"), msg.Payload)
	default:
		t.Fatal("expected a delivered message in the subscriber outbox")
	}
}

func TestPublishToChannelWithNoSubscribersReturnsZero(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()
	assert.Equal(t, resp.Int(0), mustRun(ctx, sess, "PUBLISH", "nobody", "hi"))
}

func TestPSubscribePMatchesPublish(t *testing.T) {
	ctx := newTestContext(t)
	subSess := newTestSession()
	mustRun(ctx, subSess, "PSUBSCRIBE", "news.*")
	sub := ctx.SubscriberOf(subSess)

	pubSess := newTestSession()
	pubSess.ID = 2
	assert.Equal(t, resp.Int(1), mustRun(ctx, pubSess, "PUBLISH", "news.sports", "go!"))

	select {
	case msg := <-sub.Outbox:
		assert.Equal(t, "news.*", msg.Pattern)
		assert.Equal(t, "news.sports", msg.Channel)
	default:
		t.Fatal("expected a delivered pattern message")
	}
}
