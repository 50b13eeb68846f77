package values

import "container/list"

// List is a doubly-linked sequence of byte strings, backed by
// container/list so LPUSH/RPUSH/LPOP/RPOP and index access by either
// end are O(1), matching the reference list's access pattern (§3.2).
type List struct {
	l *list.List
}

// NewList returns an empty list.
func NewList() *List {
	return &List{l: list.New()}
}

// Len returns the number of elements.
func (lst *List) Len() int { return lst.l.Len() }

// PushLeft prepends values, left to right, so the last argument ends up
// closest to the head (matching LPUSH's multi-value semantics).
func (lst *List) PushLeft(values ...[]byte) {
	for _, v := range values {
		lst.l.PushFront(v)
	}
}

// PushRight appends values, left to right.
func (lst *List) PushRight(values ...[]byte) {
	for _, v := range values {
		lst.l.PushBack(v)
	}
}

// PopLeft removes and returns up to count elements from the head.
func (lst *List) PopLeft(count int) [][]byte {
	var out [][]byte
	for i := 0; i < count; i++ {
		e := lst.l.Front()
		if e == nil {
			break
		}
		out = append(out, e.Value.([]byte))
		lst.l.Remove(e)
	}
	return out
}

// PopRight removes and returns up to count elements from the tail.
func (lst *List) PopRight(count int) [][]byte {
	var out [][]byte
	for i := 0; i < count; i++ {
		e := lst.l.Back()
		if e == nil {
			break
		}
		out = append(out, e.Value.([]byte))
		lst.l.Remove(e)
	}
	return out
}

// Index returns the element at i (negative indices count from the
// tail), or (nil, false) if out of range.
func (lst *List) Index(i int) ([]byte, bool) {
	n := lst.l.Len()
	if i < 0 {
		i = n + i
	}
	if i < 0 || i >= n {
		return nil, false
	}
	e := lst.elementAt(i)
	return e.Value.([]byte), true
}

func (lst *List) elementAt(i int) *list.Element {
	if i <= lst.l.Len()/2 {
		e := lst.l.Front()
		for j := 0; j < i; j++ {
			e = e.Next()
		}
		return e
	}
	e := lst.l.Back()
	for j := lst.l.Len() - 1; j > i; j-- {
		e = e.Prev()
	}
	return e
}

// SetIndex overwrites the element at i, returning false if out of range.
func (lst *List) SetIndex(i int, value []byte) bool {
	n := lst.l.Len()
	if i < 0 {
		i = n + i
	}
	if i < 0 || i >= n {
		return false
	}
	lst.elementAt(i).Value = value
	return true
}

// Range returns elements with indices in [start, stop] inclusive,
// applying negative-index and clamping rules shared with GETRANGE.
func (lst *List) Range(start, stop int) [][]byte {
	n := lst.l.Len()
	start = clampIndex(start, n)
	stop = clampIndex(stop, n)
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		return nil
	}
	out := make([][]byte, 0, stop-start+1)
	e := lst.elementAt(start)
	for i := start; i <= stop; i++ {
		out = append(out, e.Value.([]byte))
		e = e.Next()
	}
	return out
}

// Trim keeps only the elements with indices in [start, stop] inclusive,
// discarding the rest.
func (lst *List) Trim(start, stop int) {
	kept := lst.Range(start, stop)
	lst.l = list.New()
	lst.PushRight(kept...)
}

// RemoveMatching deletes up to count occurrences of value. count > 0
// scans head to tail, count < 0 scans tail to head, count == 0 removes
// all occurrences. Returns the number removed.
func (lst *List) RemoveMatching(count int, value []byte) int {
	removed := 0
	if count >= 0 {
		limit := count
		e := lst.l.Front()
		for e != nil {
			next := e.Next()
			if bytesEqual(e.Value.([]byte), value) {
				lst.l.Remove(e)
				removed++
				if limit > 0 && removed >= limit {
					break
				}
			}
			e = next
		}
		return removed
	}

	limit := -count
	e := lst.l.Back()
	for e != nil {
		prev := e.Prev()
		if bytesEqual(e.Value.([]byte), value) {
			lst.l.Remove(e)
			removed++
			if removed >= limit {
				break
			}
		}
		e = prev
	}
	return removed
}

// InsertRelative inserts value before (or after) the first element equal
// to pivot. Returns false if pivot was not found.
func (lst *List) InsertRelative(before bool, pivot, value []byte) bool {
	for e := lst.l.Front(); e != nil; e = e.Next() {
		if bytesEqual(e.Value.([]byte), pivot) {
			if before {
				lst.l.InsertBefore(value, e)
			} else {
				lst.l.InsertAfter(value, e)
			}
			return true
		}
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
