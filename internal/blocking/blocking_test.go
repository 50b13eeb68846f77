package blocking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/torudis/internal/resp"
)

func TestNotifyWakesEarliestWaiter(t *testing.T) {
	c := NewCoordinator()
	target := Target{DB: 0, Key: "q"}

	var order []int
	newWaiter := func(id int, satisfy bool) *Waiter {
		return &Waiter{
			ID:   uint64(id),
			Keys: []Target{target},
			TryAcquire: func(Target) (resp.Value, bool) {
				if !satisfy {
					return resp.Value{}, false
				}
				order = append(order, id)
				return resp.Int(int64(id)), true
			},
			Result: make(chan resp.Value, 1),
		}
	}

	w1 := newWaiter(1, true)
	w2 := newWaiter(2, true)
	c.Register(w1)
	c.Register(w2)

	c.Notify(target)
	select {
	case v := <-w1.Result:
		assert.Equal(t, int64(1), v.Int)
	default:
		t.Fatal("expected w1 to be woken first")
	}

	c.Notify(target)
	select {
	case v := <-w2.Result:
		assert.Equal(t, int64(2), v.Int)
	default:
		t.Fatal("expected w2 to be woken second")
	}
}

func TestNotifyLeavesUnsatisfiableWaiterParked(t *testing.T) {
	c := NewCoordinator()
	target := Target{DB: 0, Key: "q"}
	w := &Waiter{
		Keys:       []Target{target},
		TryAcquire: func(Target) (resp.Value, bool) { return resp.Value{}, false },
		Result:     make(chan resp.Value, 1),
	}
	c.Register(w)
	c.Notify(target)

	select {
	case <-w.Result:
		t.Fatal("waiter should remain parked when TryAcquire fails")
	default:
	}
}

func TestWaitTimeoutExpires(t *testing.T) {
	c := NewCoordinator()
	target := Target{DB: 0, Key: "q"}
	w := &Waiter{
		Keys:       []Target{target},
		TryAcquire: func(Target) (resp.Value, bool) { return resp.Value{}, false },
		Result:     make(chan resp.Value, 1),
	}
	c.Register(w)

	reply := WaitTimeout(c, w, 20*time.Millisecond, resp.NullArray())
	assert.True(t, reply.IsNil())
}

func TestPurgeRemovesWaiterFromQueue(t *testing.T) {
	c := NewCoordinator()
	target := Target{DB: 0, Key: "q"}
	w := &Waiter{
		Keys:       []Target{target},
		TryAcquire: func(Target) (resp.Value, bool) { return resp.Int(1), true },
		Result:     make(chan resp.Value, 1),
	}
	c.Register(w)
	Purge(c, w)

	c.Notify(target) // must not find w, must not panic
	require.Len(t, w.Result, 0)
}
