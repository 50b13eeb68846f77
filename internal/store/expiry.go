package store

import "container/heap"

// expiryItem is one scheduled expiration, keyed by key so the active
// entry can be removed or re-pushed when TTLs are changed or cleared.
type expiryItem struct {
	key      string
	deadline int64
	index    int
}

// expiryHeap is a min-heap over deadlines, giving the periodic sweep
// (§4.2's "active expiration cycle") the next key due to expire without
// scanning the whole shard.
type expiryHeap []*expiryItem

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap) Push(x interface{}) {
	item := x.(*expiryItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *expiryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// expiryTracker maintains the heap plus a key->item index so an
// expiration can be updated or cancelled in O(log n) instead of forcing
// a linear scan.
type expiryTracker struct {
	heap  expiryHeap
	byKey map[string]*expiryItem
}

func newExpiryTracker() *expiryTracker {
	return &expiryTracker{byKey: make(map[string]*expiryItem)}
}

// Set schedules (or reschedules) key's expiration at deadline.
func (t *expiryTracker) Set(key string, deadline int64) {
	if item, ok := t.byKey[key]; ok {
		item.deadline = deadline
		heap.Fix(&t.heap, item.index)
		return
	}
	item := &expiryItem{key: key, deadline: deadline}
	heap.Push(&t.heap, item)
	t.byKey[key] = item
}

// Clear cancels key's scheduled expiration, if any.
func (t *expiryTracker) Clear(key string) {
	item, ok := t.byKey[key]
	if !ok {
		return
	}
	heap.Remove(&t.heap, item.index)
	delete(t.byKey, key)
}

// PopExpired removes and returns every key whose deadline is <= nowMs.
func (t *expiryTracker) PopExpired(nowMs int64) []string {
	var out []string
	for t.heap.Len() > 0 && t.heap[0].deadline <= nowMs {
		item := heap.Pop(&t.heap).(*expiryItem)
		delete(t.byKey, item.key)
		out = append(out, item.key)
	}
	return out
}

// Len returns how many keys carry a scheduled expiration.
func (t *expiryTracker) Len() int { return len(t.byKey) }
