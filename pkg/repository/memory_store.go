package repository

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

const memorySweepEvery = 1000

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// memoryStore is the single-instance keyed store. State is lost on restart.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
	writes  int
}

func NewMemoryStore(now func() time.Time) *memoryStore {
	if now == nil {
		now = time.Now
	}
	return &memoryStore{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.lookup(key)
	if !ok {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *memoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(key, value, ttl)
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.put(key, value, ttl)
	return true, nil
}

func (m *memoryStore) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.lookup(key)
	if !ok {
		m.entries[key] = memoryEntry{value: "1"}
		m.afterWrite()
		return 1, nil
	}

	n, err := strconv.ParseInt(entry.value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("incrementing %q: value is not an integer", key)
	}
	n++
	entry.value = strconv.FormatInt(n, 10)
	m.entries[key] = entry
	m.afterWrite()

	return n, nil
}

func (m *memoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.lookup(key)
	if !ok {
		return nil
	}
	entry.expiresAt = m.expiry(ttl)
	m.entries[key] = entry
	return nil
}

func (m *memoryStore) CompareAndSwap(_ context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.lookup(key)
	if !ok || entry.value != old {
		return false, nil
	}
	m.put(key, value, ttl)
	return true, nil
}

// lookup must be called with mu held. Expired entries are dropped on access.
func (m *memoryStore) lookup(key string) (memoryEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if entry.expired(m.now()) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (m *memoryStore) put(key, value string, ttl time.Duration) {
	m.entries[key] = memoryEntry{value: value, expiresAt: m.expiry(ttl)}
	m.afterWrite()
}

func (m *memoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

// afterWrite sweeps expired entries every memorySweepEvery writes to bound memory.
func (m *memoryStore) afterWrite() {
	m.writes++
	if m.writes < memorySweepEvery {
		return
	}
	m.writes = 0

	now := m.now()
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
		}
	}
}
