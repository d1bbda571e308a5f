package containers

import "sync"

// AtomicMap is a map guarded by a mutex. Unlike sync.Map it does not allocate per element,
// which suits registries that are written rarely and read on every message.
type AtomicMap[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// Load returns the value stored under key.
func (m *AtomicMap[K, V]) Load(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.m[key]
	return v, ok
}

// LoadOrStore stores value under key unless the key is present. It returns the value under
// key afterwards and whether it was already there.
func (m *AtomicMap[K, V]) LoadOrStore(key K, value V) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.m == nil {
		m.m = make(map[K]V)
	}
	if v, ok := m.m[key]; ok {
		return v, true
	}
	m.m[key] = value
	return value, false
}

// Len returns the number of entries.
func (m *AtomicMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.m)
}

// Snapshot returns a copy of the map.
func (m *AtomicMap[K, V]) Snapshot() map[K]V {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[K]V, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
