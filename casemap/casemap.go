// Package casemap provides an insertion-ordered associative container whose
// string keys are matched case-insensitively. It backs flow action tables,
// where condition outcomes (often free-form model replies such as "YES" or
// "yes") must select the same action regardless of letter case.
package casemap

import (
	"fmt"
	"iter"
	"reflect"
	"strings"
)

// KeyError is returned when a key is absent from the map.
type KeyError struct {
	Key any
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("key not found: %v", e.Key)
}

type entry[K comparable, V any] struct {
	key   K // original casing as last inserted
	value V
}

// Map stores key/value pairs. Keys whose kind is string, including named
// string types, are indexed by their lower-case form while the originally
// inserted casing is preserved for iteration. Keys of other types compare
// by ==.
//
// The zero value is not usable; construct with New. A nil *Map reads as
// empty. A Map is not safe for concurrent mutation.
type Map[K comparable, V any] struct {
	index map[K]int // folded key -> position in entries
	order []entry[K, V]
}

// New returns an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{index: make(map[K]int)}
}

// FromEntries builds a Map from pairs, inserted in slice order.
func FromEntries[K comparable, V any](keys []K, values []V) *Map[K, V] {
	m := New[K, V]()
	for i := range keys {
		m.Set(keys[i], values[i])
	}
	return m
}

// fold normalizes string-kinded keys to lower case; other keys pass through.
func fold[K comparable](k K) K {
	if s, ok := any(k).(string); ok {
		if folded, ok := any(strings.ToLower(s)).(K); ok {
			return folded
		}
	}
	v := reflect.ValueOf(k)
	if v.Kind() != reflect.String {
		return k
	}
	folded := reflect.New(v.Type()).Elem()
	folded.SetString(strings.ToLower(v.String()))
	if fk, ok := folded.Interface().(K); ok {
		return fk
	}
	return k
}

// Set inserts or replaces the value for k. Replacing a case-insensitively
// equal key adopts the casing of k but keeps the original position.
func (m *Map[K, V]) Set(k K, v V) {
	fk := fold(k)
	if i, ok := m.index[fk]; ok {
		m.order[i] = entry[K, V]{key: k, value: v}
		return
	}
	m.index[fk] = len(m.order)
	m.order = append(m.order, entry[K, V]{key: k, value: v})
}

// Get returns the value stored for k and whether it was present.
func (m *Map[K, V]) Get(k K) (V, bool) {
	if m == nil {
		var zero V
		return zero, false
	}
	if i, ok := m.index[fold(k)]; ok {
		return m.order[i].value, true
	}
	var zero V
	return zero, false
}

// GetOr returns the value for k or def when absent. It never fails.
func (m *Map[K, V]) GetOr(k K, def V) V {
	if v, ok := m.Get(k); ok {
		return v
	}
	return def
}

// MustGet is the indexed-access form of Get: a missing key is a *KeyError.
func (m *Map[K, V]) MustGet(k K) (V, error) {
	v, ok := m.Get(k)
	if !ok {
		return v, &KeyError{Key: k}
	}
	return v, nil
}

// Has reports whether k is present.
func (m *Map[K, V]) Has(k K) bool {
	if m == nil {
		return false
	}
	_, ok := m.index[fold(k)]
	return ok
}

// Delete removes k. A missing key is a *KeyError.
func (m *Map[K, V]) Delete(k K) error {
	if m == nil {
		return &KeyError{Key: k}
	}
	fk := fold(k)
	i, ok := m.index[fk]
	if !ok {
		return &KeyError{Key: k}
	}
	delete(m.index, fk)
	m.order = append(m.order[:i], m.order[i+1:]...)
	for j := i; j < len(m.order); j++ {
		m.index[fold(m.order[j].key)] = j
	}
	return nil
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Keys returns the keys in insertion order with their original casing.
func (m *Map[K, V]) Keys() []K {
	if m == nil {
		return []K{}
	}
	keys := make([]K, len(m.order))
	for i, e := range m.order {
		keys[i] = e.key
	}
	return keys
}

// Values returns the values in insertion order.
func (m *Map[K, V]) Values() []V {
	if m == nil {
		return []V{}
	}
	values := make([]V, len(m.order))
	for i, e := range m.order {
		values[i] = e.value
	}
	return values
}

// All iterates over the entries in insertion order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if m == nil {
			return
		}
		for _, e := range m.order {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// Clone returns a shallow copy; values are shared with m.
func (m *Map[K, V]) Clone() *Map[K, V] {
	return m.CloneFunc(func(v V) V { return v })
}

// CloneFunc returns a copy of m with every value passed through fn.
func (m *Map[K, V]) CloneFunc(fn func(V) V) *Map[K, V] {
	if m == nil {
		return New[K, V]()
	}
	c := &Map[K, V]{
		index: make(map[K]int, len(m.index)),
		order: make([]entry[K, V], len(m.order)),
	}
	for i, e := range m.order {
		c.order[i] = entry[K, V]{key: e.key, value: fn(e.value)}
		c.index[fold(e.key)] = i
	}
	return c
}

// String renders the map with original key casing, e.g. Map{Yes:1 no:2}.
func (m *Map[K, V]) String() string {
	var b strings.Builder
	b.WriteString("Map{")
	if m == nil {
		b.WriteByte('}')
		return b.String()
	}
	for i, e := range m.order {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v:%v", e.key, e.value)
	}
	b.WriteByte('}')
	return b.String()
}
