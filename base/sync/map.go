// Package sync provides typed wrappers over the standard sync package.
package sync

import (
	"iter"
	"sync"
)

// Map is a generic synchronized map over the standard sync.Map.
// The zero Map is empty and ready for use.
type Map[K comparable, V any] struct {
	m sync.Map
}

func cast[V any](vAny any, ok bool) (V, bool) {
	if !ok {
		var zero V
		return zero, false
	}
	return vAny.(V), true
}

// Store a key,value pair.
func (sm *Map[K, V]) Store(k K, v V) {
	sm.m.Store(k, v)
}

// Load returns a value given a key and true if the key was present.
func (sm *Map[K, V]) Load(k K) (V, bool) {
	return cast[V](sm.m.Load(k))
}

// LoadAndDelete deletes the value of a key. It returns the previous value
// and true if the key was present.
func (sm *Map[K, V]) LoadAndDelete(k K) (V, bool) {
	return cast[V](sm.m.LoadAndDelete(k))
}

// Delete removes a pair given a key.
func (sm *Map[K, V]) Delete(k K) {
	sm.m.Delete(k)
}

// Size returns the number of elements in the map. This takes O(n) time.
func (sm *Map[K, V]) Size() int {
	n := 0
	for range sm.Iter() {
		n++
	}
	return n
}

// Iter returns an iterator to range over the elements of the map.
func (sm *Map[K, V]) Iter() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		sm.m.Range(func(k, v any) bool {
			return yield(k.(K), v.(V))
		})
	}
}
