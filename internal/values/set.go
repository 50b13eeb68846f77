package values

import (
	"math/rand"

	"golang.org/x/exp/maps"
)

// Set is an unordered collection of unique byte strings (§3.2). Members
// are stored as string map keys since Go map keys must be comparable;
// callers that need []byte back get a defensive copy implicitly, since
// converting a string back to []byte always allocates.
type Set struct {
	m map[string]struct{}
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{m: make(map[string]struct{})}
}

// Len returns the member count.
func (s *Set) Len() int { return len(s.m) }

// Add inserts members, returning how many were newly added.
func (s *Set) Add(members ...[]byte) int {
	added := 0
	for _, m := range members {
		k := string(m)
		if _, ok := s.m[k]; !ok {
			s.m[k] = struct{}{}
			added++
		}
	}
	return added
}

// Remove deletes members, returning how many were actually present.
func (s *Set) Remove(members ...[]byte) int {
	removed := 0
	for _, m := range members {
		k := string(m)
		if _, ok := s.m[k]; ok {
			delete(s.m, k)
			removed++
		}
	}
	return removed
}

// Has reports whether member is present.
func (s *Set) Has(member []byte) bool {
	_, ok := s.m[string(member)]
	return ok
}

// Members returns every member, order unspecified.
func (s *Set) Members() [][]byte {
	keys := maps.Keys(s.m)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out
}

// Random returns up to count distinct random members. A negative count
// allows repeats and returns exactly -count members (SRANDMEMBER's
// dual-mode contract).
func (s *Set) Random(count int) [][]byte {
	keys := maps.Keys(s.m)
	if len(keys) == 0 {
		return nil
	}
	if count < 0 {
		n := -count
		out := make([][]byte, n)
		for i := 0; i < n; i++ {
			out[i] = []byte(keys[rand.Intn(len(keys))])
		}
		return out
	}
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	if count > len(keys) {
		count = len(keys)
	}
	out := make([][]byte, count)
	for i := 0; i < count; i++ {
		out[i] = []byte(keys[i])
	}
	return out
}

// Pop removes and returns up to count random members.
func (s *Set) Pop(count int) [][]byte {
	members := s.Random(count)
	for _, m := range members {
		delete(s.m, string(m))
	}
	return members
}

func setOf(sets ...*Set) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range sets {
		for k := range s.m {
			out[k] = struct{}{}
		}
	}
	return out
}

// Union returns the union of sets.
func Union(sets ...*Set) *Set {
	out := NewSet()
	out.m = setOf(sets...)
	return out
}

// Inter returns the intersection of sets (empty if sets is empty).
func Inter(sets ...*Set) *Set {
	out := NewSet()
	if len(sets) == 0 {
		return out
	}
	for k := range sets[0].m {
		inAll := true
		for _, s := range sets[1:] {
			if !s.Has([]byte(k)) {
				inAll = false
				break
			}
		}
		if inAll {
			out.m[k] = struct{}{}
		}
	}
	return out
}

// Diff returns the members of sets[0] absent from every other set.
func Diff(sets ...*Set) *Set {
	out := NewSet()
	if len(sets) == 0 {
		return out
	}
	for k := range sets[0].m {
		out.m[k] = struct{}{}
	}
	for _, s := range sets[1:] {
		for k := range s.m {
			delete(out.m, k)
		}
	}
	return out
}
