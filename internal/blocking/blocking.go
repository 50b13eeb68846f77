// Package blocking implements the park/wake coordinator for list-pop and
// stream-read waiters (§4.7): BLPOP/BRPOP/BLMOVE and XREAD BLOCK all
// register a Waiter against one or more (db, key) targets, and the
// storage engine's mutation hook calls Notify so the earliest parked
// waiter on that key gets a chance to retry its operation.
package blocking

import (
	"sync"
	"time"

	"github.com/dreamware/torudis/internal/resp"
)

// Target identifies one (database, key) a waiter is parked on.
type Target struct {
	DB  int
	Key string
}

// Waiter is one parked blocking request. TryAcquire attempts the
// underlying operation (e.g. LPOP) under the caller's own locking and
// returns (reply, true) if it produced a result, or (zero, false) if
// the data still isn't there. Result receives at most one value: the
// successful TryAcquire reply that Notify sends. On timeout WaitTimeout
// returns the null reply itself, and Purge sends nothing.
type Waiter struct {
	ID         uint64
	Keys       []Target
	TryAcquire func(Target) (resp.Value, bool)
	Result     chan resp.Value

	mu   sync.Mutex
	done bool
}

func (w *Waiter) markDone() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return false
	}
	w.done = true
	return true
}

// Coordinator holds the FIFO wait queues, one per Target.
type Coordinator struct {
	mu     sync.Mutex
	queues map[Target][]*Waiter
}

// NewCoordinator returns an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{queues: make(map[Target][]*Waiter)}
}

// Register parks w on every one of its target keys' FIFO queues.
func (c *Coordinator) Register(w *Waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range w.Keys {
		c.queues[t] = append(c.queues[t], w)
	}
}

// cancelLocked removes w from every queue it might still be in. Caller
// holds c.mu.
func (c *Coordinator) cancelLocked(w *Waiter) {
	for _, t := range w.Keys {
		q := c.queues[t]
		for i, other := range q {
			if other == w {
				c.queues[t] = append(q[:i], q[i+1:]...)
				break
			}
		}
		if len(c.queues[t]) == 0 {
			delete(c.queues, t)
		}
	}
}

// Cancel removes w from every wait queue without signaling a result;
// used by the timeout and disconnect purge paths (Notify removes a
// waiter it satisfied itself).
func (c *Coordinator) Cancel(w *Waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked(w)
}

// Notify is called by the storage mutation hook whenever target may now
// satisfy a parked waiter. It serves that key's queue strictly in FIFO
// order: waiters already done are skipped, and if the earliest pending
// waiter's TryAcquire fails, Notify returns and every waiter on the key
// stays parked, so a later waiter is never woken ahead of an earlier one.
func (c *Coordinator) Notify(target Target) {
	for {
		c.mu.Lock()
		q := c.queues[target]
		var w *Waiter
		idx := -1
		for i, candidate := range q {
			candidate.mu.Lock()
			alreadyDone := candidate.done
			candidate.mu.Unlock()
			if alreadyDone {
				continue
			}
			w = candidate
			idx = i
			break
		}
		if w == nil {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		reply, ok := w.TryAcquire(target)
		if !ok {
			// The front (non-done) waiter can't be satisfied yet by this
			// mutation; later waiters on this same key are behind it in
			// FIFO order and must wait their turn too.
			return
		}
		if !w.markDone() {
			// Someone else (another Notify racing on a different target
			// this waiter also listens on) already satisfied it; retry
			// the loop to find the next eligible waiter.
			continue
		}
		c.mu.Lock()
		c.cancelLocked(w)
		c.mu.Unlock()
		_ = idx
		w.Result <- reply
		return
	}
}

// WaitTimeout blocks until w receives a result or timeout elapses
// (timeout <= 0 means wait forever), purging w from the coordinator and
// returning a null reply on expiry.
func WaitTimeout(c *Coordinator, w *Waiter, timeout time.Duration, nullReply resp.Value) resp.Value {
	if timeout <= 0 {
		return <-w.Result
	}
	select {
	case v := <-w.Result:
		return v
	case <-time.After(timeout):
		if w.markDone() {
			c.Cancel(w)
			return nullReply
		}
		// A Notify raced the timer and already sent a result.
		return <-w.Result
	}
}

// Purge cancels w unconditionally, used when its owning connection
// disconnects while parked.
func Purge(c *Coordinator, w *Waiter) {
	if w.markDone() {
		c.Cancel(w)
	}
}
