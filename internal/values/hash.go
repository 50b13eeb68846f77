package values

import "golang.org/x/exp/maps"

// Hash is a field-to-value map (§3.2). Field encoding shares the integer
// parsing rules of String, so HINCRBY/HINCRBYFLOAT reuse IncrInt/IncrFloat.
type Hash struct {
	m map[string][]byte
}

// NewHash returns an empty hash.
func NewHash() *Hash {
	return &Hash{m: make(map[string][]byte)}
}

// Len returns the field count.
func (h *Hash) Len() int { return len(h.m) }

// Get returns the value for field, if present.
func (h *Hash) Get(field []byte) ([]byte, bool) {
	v, ok := h.m[string(field)]
	return v, ok
}

// Set stores field=value, returning true if field is new.
func (h *Hash) Set(field, value []byte) bool {
	_, existed := h.m[string(field)]
	h.m[string(field)] = value
	return !existed
}

// SetNX stores field=value only if field is absent, returning whether it
// was set.
func (h *Hash) SetNX(field, value []byte) bool {
	if _, ok := h.m[string(field)]; ok {
		return false
	}
	h.m[string(field)] = value
	return true
}

// Delete removes fields, returning how many were present.
func (h *Hash) Delete(fields ...[]byte) int {
	removed := 0
	for _, f := range fields {
		if _, ok := h.m[string(f)]; ok {
			delete(h.m, string(f))
			removed++
		}
	}
	return removed
}

// Fields returns all field names, order unspecified.
func (h *Hash) Fields() [][]byte {
	keys := maps.Keys(h.m)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out
}

// Values returns all field values in unspecified order; the order is not
// tied to that of a separate Fields() call.
func (h *Hash) Values() [][]byte {
	keys := maps.Keys(h.m)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = h.m[k]
	}
	return out
}

// All returns a defensive copy of the field/value map.
func (h *Hash) All() map[string][]byte {
	return maps.Clone(h.m)
}

// IncrBy applies an integer delta to field (creating it as "0" if
// absent) and returns the new value.
func (h *Hash) IncrBy(field []byte, delta int64) (int64, error) {
	cur := h.m[string(field)]
	encoded, n, err := IncrInt(cur, delta)
	if err != nil {
		return 0, err
	}
	h.m[string(field)] = encoded
	return n, nil
}

// IncrByFloat applies a float delta to field (creating it as "0" if
// absent) and returns the new value.
func (h *Hash) IncrByFloat(field []byte, delta float64) (float64, error) {
	cur := h.m[string(field)]
	encoded, f, err := IncrFloat(cur, delta)
	if err != nil {
		return 0, err
	}
	h.m[string(field)] = encoded
	return f, nil
}
