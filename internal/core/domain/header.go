package domain

import "strings"

// Header is a case-insensitive, order-preserving multi-map used by both the
// HTTP codec (request/status line + header parsing) and the Request/Response
// records. Keys are normalised to lowercase on insert; Values() preserves
// insertion order for serialisation, per spec.md §9.
type Header struct {
	order []string
	values map[string][]string
	// canonical retains the first-seen casing of a key, purely for
	// serialisation back to the wire in a form upstreams recognise.
	canonical map[string]string
}

// NewHeader returns an empty header container.
func NewHeader() *Header {
	return &Header{
		values:    make(map[string][]string),
		canonical: make(map[string]string),
	}
}

func normaliseKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Add appends a value for key, preserving any existing values.
func (h *Header) Add(key, value string) {
	lk := normaliseKey(key)
	if _, exists := h.values[lk]; !exists {
		h.order = append(h.order, lk)
		h.canonical[lk] = key
	}
	h.values[lk] = append(h.values[lk], strings.TrimSpace(value))
}

// Set replaces all existing values for key with a single value.
func (h *Header) Set(key, value string) {
	lk := normaliseKey(key)
	if _, exists := h.values[lk]; !exists {
		h.order = append(h.order, lk)
		h.canonical[lk] = key
	}
	h.values[lk] = []string{strings.TrimSpace(value)}
}

// Get returns the first value for key, or "" if absent.
func (h *Header) Get(key string) string {
	vs := h.values[normaliseKey(key)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns all values for key in insertion order.
func (h *Header) Values(key string) []string {
	return h.values[normaliseKey(key)]
}

// Has reports whether key is present, regardless of value.
func (h *Header) Has(key string) bool {
	_, ok := h.values[normaliseKey(key)]
	return ok
}

// Del removes all values for key.
func (h *Header) Del(key string) {
	lk := normaliseKey(key)
	if _, ok := h.values[lk]; !ok {
		return
	}
	delete(h.values, lk)
	delete(h.canonical, lk)
	for i, k := range h.order {
		if k == lk {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Keys returns header names in insertion order, using the first-seen casing.
func (h *Header) Keys() []string {
	keys := make([]string, 0, len(h.order))
	for _, lk := range h.order {
		keys = append(keys, h.canonical[lk])
	}
	return keys
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	clone := NewHeader()
	for _, lk := range h.order {
		clone.order = append(clone.order, lk)
		clone.canonical[lk] = h.canonical[lk]
		vs := make([]string, len(h.values[lk]))
		copy(vs, h.values[lk])
		clone.values[lk] = vs
	}
	return clone
}

// Len returns the number of distinct header names.
func (h *Header) Len() int {
	return len(h.order)
}
