package vfs

import "sort"

// Key identifies a piece of user data attached to a file.
//
// Keys compare by identity: two keys created with the same name are different
// keys. Create them once, at package level, with NewKey.
type Key struct {
	name string
}

// NewKey creates a new user data key.
func NewKey(name string) *Key {
	return &Key{name: name}
}

func (k *Key) String() string { return k.name }

// UserMap is an immutable map of user data. Every modification returns a new
// map so that the cache can publish it with a single compare-and-swap.
//
// A nil *UserMap behaves like EmptyUserMap.
type UserMap struct {
	entries map[*Key]any
}

// EmptyUserMap is the shared empty map.
var EmptyUserMap = &UserMap{}

// Get returns the value stored under key.
func (m *UserMap) Get(key *Key) (any, bool) {
	if m == nil || m.entries == nil {
		return nil, false
	}
	v, ok := m.entries[key]
	return v, ok
}

// With returns a copy of m with key set to value. A nil value removes the key.
func (m *UserMap) With(key *Key, value any) *UserMap {
	if value == nil {
		return m.Without(key)
	}
	next := make(map[*Key]any, m.Len()+1)
	if m != nil {
		for k, v := range m.entries {
			next[k] = v
		}
	}
	next[key] = value
	return &UserMap{entries: next}
}

// Without returns a copy of m with key removed. If key is absent, m itself is
// returned.
func (m *UserMap) Without(key *Key) *UserMap {
	if _, ok := m.Get(key); !ok {
		if m == nil {
			return EmptyUserMap
		}
		return m
	}
	if m.Len() == 1 {
		return EmptyUserMap
	}
	next := make(map[*Key]any, m.Len()-1)
	for k, v := range m.entries {
		if k != key {
			next[k] = v
		}
	}
	return &UserMap{entries: next}
}

// Len returns the number of entries.
func (m *UserMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Keys returns the keys sorted by name.
func (m *UserMap) Keys() []*Key {
	if m.Len() == 0 {
		return nil
	}
	keys := make([]*Key, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].name < keys[j].name })
	return keys
}
