package bsid

import "sort"

// PropDict is an ordered-insertion-irrelevant mapping from string to
// Property, with transparent string lookup (no separate key type).
// It backs both event payloads and transaction result info.
type PropDict struct {
	m map[string]Property
}

// NewPropDict returns an empty dictionary ready to use.
func NewPropDict() *PropDict {
	return &PropDict{m: make(map[string]Property)}
}

// Set stores a property under key, overwriting any previous value.
func (d *PropDict) Set(key string, p Property) *PropDict {
	if d.m == nil {
		d.m = make(map[string]Property)
	}
	d.m[key] = p
	return d
}

// Get returns the property stored at key, or the zero (KindNone)
// Property with ok=false if key is absent.
func (d *PropDict) Get(key string) (Property, bool) {
	if d == nil || d.m == nil {
		return None(), false
	}
	p, ok := d.m[key]
	return p, ok
}

// Has reports whether key is present.
func (d *PropDict) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Delete removes key, if present.
func (d *PropDict) Delete(key string) {
	if d.m != nil {
		delete(d.m, key)
	}
}

// Keys returns the dictionary's keys in sorted order, for deterministic
// iteration (logging, serialization, tests).
func (d *PropDict) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.m))
	for k := range d.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *PropDict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.m)
}

// GetTyped extracts a typed value from key using extract, returning
// ok=false if the key is absent or extract itself fails.
func GetTyped[T any](d *PropDict, key string, extract func(Property) (T, bool)) (T, bool) {
	var zero T
	p, ok := d.Get(key)
	if !ok {
		return zero, false
	}
	return extract(p)
}

// Clone returns a shallow copy of d, safe to hand to a goroutine that
// must not observe later mutations (used when delivering event acks to
// multiple subscribers).
func (d *PropDict) Clone() *PropDict {
	out := NewPropDict()
	if d == nil {
		return out
	}
	for k, v := range d.m {
		out.m[k] = v
	}
	return out
}
