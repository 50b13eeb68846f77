// Package pubsub implements the channel and glob-pattern subscription
// bus (§4.8): a per-server (not per-database) pair of routing tables and
// per-subscriber outbound backpressure.
package pubsub

import (
	"sync"

	"golang.org/x/time/rate"
)

// Message is one delivered publication.
type Message struct {
	Channel string
	Pattern string // empty for an exact-match delivery
	Payload []byte
}

// Subscriber is anything that can receive pub/sub messages. Deliver
// must not block the publisher: a full outbox signals backpressure by
// returning false, which the caller treats as a hard-limit breach and
// disconnects the subscriber.
type Subscriber struct {
	ID      uint64
	Outbox  chan Message
	limiter *rate.Limiter

	mu      sync.Mutex
	dropped int
}

// NewSubscriber returns a subscriber with a bounded outbox of capacity
// hardLimit messages and a soft-limit delivery rate of ratePerSec
// messages/second (burst equal to hardLimit), matching the
// soft/hard-limit backpressure contract in §4.8.
func NewSubscriber(id uint64, hardLimit int, ratePerSec float64) *Subscriber {
	return &Subscriber{
		ID:      id,
		Outbox:  make(chan Message, hardLimit),
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), hardLimit),
	}
}

// Deliver attempts to enqueue msg. It returns false once the hard limit
// is breached (outbox full), at which point the bus disconnects this
// subscriber entirely, per §4.8's "slow subscribers ... disconnected".
func (s *Subscriber) Deliver(msg Message) bool {
	if len(s.Outbox) == cap(s.Outbox) {
		return false
	}
	if !s.limiter.Allow() {
		// Soft-limit breach: the message is dropped but the connection
		// survives, giving a slow-but-not-stalled subscriber a grace
		// window before a hard disconnect.
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		return true
	}
	select {
	case s.Outbox <- msg:
		return true
	default:
		return false
	}
}

// Dropped returns how many messages were rate-limited away rather than
// enqueued.
func (s *Subscriber) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Bus routes PUBLISH traffic to exact-channel and pattern subscribers.
type Bus struct {
	mu       sync.RWMutex
	exact    map[string]map[*Subscriber]bool
	patterns map[string]map[*Subscriber]bool
}

// NewBus returns an empty pub/sub bus.
func NewBus() *Bus {
	return &Bus{
		exact:    make(map[string]map[*Subscriber]bool),
		patterns: make(map[string]map[*Subscriber]bool),
	}
}

// Subscribe adds sub to each channel's exact-match set.
func (b *Bus) Subscribe(sub *Subscriber, channels ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range channels {
		set, ok := b.exact[c]
		if !ok {
			set = make(map[*Subscriber]bool)
			b.exact[c] = set
		}
		set[sub] = true
	}
}

// Unsubscribe removes sub from each channel's exact-match set.
func (b *Bus) Unsubscribe(sub *Subscriber, channels ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range channels {
		if set, ok := b.exact[c]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.exact, c)
			}
		}
	}
}

// PSubscribe adds sub to each pattern's subscriber set.
func (b *Bus) PSubscribe(sub *Subscriber, patterns ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range patterns {
		set, ok := b.patterns[p]
		if !ok {
			set = make(map[*Subscriber]bool)
			b.patterns[p] = set
		}
		set[sub] = true
	}
}

// PUnsubscribe removes sub from each pattern's subscriber set.
func (b *Bus) PUnsubscribe(sub *Subscriber, patterns ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range patterns {
		if set, ok := b.patterns[p]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.patterns, p)
			}
		}
	}
}

// RemoveAll drops sub from every channel and pattern it was subscribed
// to, used on disconnect.
func (b *Bus) RemoveAll(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c, set := range b.exact {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.exact, c)
		}
	}
	for p, set := range b.patterns {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.patterns, p)
		}
	}
}

// Publish delivers payload to every exact subscriber of channel and
// every subscriber of a pattern matching channel, returning the total
// delivery count and the set of subscribers that breached their hard
// limit (the caller must disconnect them).
func (b *Bus) Publish(channel string, payload []byte) (delivered int, overflowed []*Subscriber) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.exact[channel] {
		if sub.Deliver(Message{Channel: channel, Payload: payload}) {
			delivered++
		} else {
			overflowed = append(overflowed, sub)
		}
	}
	for pattern, set := range b.patterns {
		if !Match(pattern, channel) {
			continue
		}
		for sub := range set {
			if sub.Deliver(Message{Channel: channel, Pattern: pattern, Payload: payload}) {
				delivered++
			} else {
				overflowed = append(overflowed, sub)
			}
		}
	}
	return delivered, overflowed
}
