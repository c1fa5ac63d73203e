package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OrderedMap keeps entries in first-insertion order and encodes them as a JSON
// object in that order.
type OrderedMap[K comparable, V any] struct {
	keys   []K
	values map[K]*V
}

// NewOrderedMap returns an empty map.
func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{values: make(map[K]*V)}
}

// Get returns the entry for key.
func (m *OrderedMap[K, V]) Get(key K) (V, bool) {
	if m == nil {
		var zero V
		return zero, false
	}
	v, ok := m.values[key]
	if !ok {
		var zero V
		return zero, false
	}
	return *v, true
}

// Upsert returns a pointer to the entry for key, creating it with init on first use.
func (m *OrderedMap[K, V]) Upsert(key K, init func() V) *V {
	if v, ok := m.values[key]; ok {
		return v
	}
	v := init()
	m.keys = append(m.keys, key)
	m.values[key] = &v
	return &v
}

// Len returns the number of entries.
func (m *OrderedMap[K, V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns keys in insertion order.
func (m *OrderedMap[K, V]) Keys() []K {
	if m == nil {
		return nil
	}
	out := make([]K, len(m.keys))
	copy(out, m.keys)
	return out
}

// Values returns values in insertion order.
func (m *OrderedMap[K, V]) Values() []V {
	if m == nil {
		return nil
	}
	out := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, *m.values[k])
	}
	return out
}

// Head returns a new map holding the first n entries.
func (m *OrderedMap[K, V]) Head(n int) *OrderedMap[K, V] {
	out := NewOrderedMap[K, V]()
	if m == nil {
		return out
	}
	for i, k := range m.keys {
		if i >= n {
			break
		}
		v := *m.values[k]
		out.keys = append(out.keys, k)
		out.values[k] = &v
	}
	return out
}

// MarshalJSON encodes the map as an object with keys in insertion order.
func (m *OrderedMap[K, V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if m != nil {
		for i, k := range m.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(fmt.Sprint(k))
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(m.values[k])
			if err != nil {
				return nil, fmt.Errorf("failed to encode %v: %w", k, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
