package sip

import (
	"slices"
	"sort"
)

// CodeMap is module-level code keyed by type signature, kept in insertion
// order. Keys are unique.
type CodeMap struct {
	keys   []string
	values map[string]string
}

// NewCodeMap returns an empty map.
func NewCodeMap() *CodeMap {
	return &CodeMap{values: map[string]string{}}
}

// Set stores value under key, replacing any previous value in place.
func (m *CodeMap) Set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}

	m.values[key] = value
}

// Get returns the value for key.
func (m *CodeMap) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}

	v, ok := m.values[key]

	return v, ok
}

// Delete removes key.
func (m *CodeMap) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}

	delete(m.values, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
}

// Len is the number of keys.
func (m *CodeMap) Len() int {
	if m == nil {
		return 0
	}

	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *CodeMap) Keys() []string {
	if m == nil {
		return nil
	}

	return slices.Clone(m.keys)
}

// SortedKeys returns the keys in lexical order.
func (m *CodeMap) SortedKeys() []string {
	keys := m.Keys()
	sort.Strings(keys)

	return keys
}

// Update copies every entry of other into m, replacing values of existing
// keys. This is how one file's constructs contribute module code.
func (m *CodeMap) Update(other *CodeMap) {
	for _, k := range other.Keys() {
		m.Set(k, other.values[k])
	}
}

// Merge folds the module code of another file into m. A value differing from
// the one already held is appended to it, so the result is the
// concatenation in discovery order; identical values collapse.
func (m *CodeMap) Merge(other *CodeMap) {
	for _, k := range other.Keys() {
		v := other.values[k]

		existing, ok := m.values[k]
		if !ok {
			m.Set(k, v)

			continue
		}

		if existing != v {
			m.values[k] = existing + v
		}
	}
}

// Clone copies the map.
func (m *CodeMap) Clone() *CodeMap {
	c := NewCodeMap()
	if m != nil {
		c.Update(m)
	}

	return c
}
