package store

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value       string
	count       int64
	expiresAt   time.Time
	lastRequest time.Time
}

// Memory is the default in-process Store: a mutex-guarded map plus a
// background sweeper that removes expired entries at a fixed interval.
// The sweep is the only garbage collection mechanism; there is no
// per-entry timer.  State is per-instance and not shared across
// replicas — swap in the Redis backend for that.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	done    chan struct{}
	once    sync.Once
}

// NewMemory creates a Memory store and starts its sweeper.  The
// sweeper runs every sweepEvery until Stop is called.
func NewMemory(sweepEvery time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]*memEntry),
		done:    make(chan struct{}),
	}
	go m.sweepLoop(sweepEvery)
	return m
}

func (m *Memory) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.Sweep()
		case <-m.done:
			return
		}
	}
}

// Sweep removes every entry past its expiry.
func (m *Memory) Sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// Stop terminates the background sweeper.
func (m *Memory) Stop() {
	m.once.Do(func() { close(m.done) })
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) SetEX(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &memEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) IncrWindow(_ context.Context, key string, window time.Duration) (Window, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || now.After(e.expiresAt) {
		e = &memEntry{expiresAt: now.Add(window)}
		m.entries[key] = e
	}
	e.count++
	e.lastRequest = now
	return Window{Count: e.count, ResetAt: e.expiresAt, LastRequest: e.lastRequest}, nil
}

func (m *Memory) GetWindow(_ context.Context, key string) (Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return Window{}, ErrNotFound
	}
	return Window{Count: e.count, ResetAt: e.expiresAt, LastRequest: e.lastRequest}, nil
}

// WindowEntry is a snapshot row returned by Entries.
type WindowEntry struct {
	Key         string
	Count       int64
	ResetAt     time.Time
	LastRequest time.Time
}

// Entries returns a snapshot of all live counters.  Used by the admin
// security views; only the in-memory backend supports enumeration.
func (m *Memory) Entries() []WindowEntry {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WindowEntry, 0, len(m.entries))
	for k, e := range m.entries {
		if now.After(e.expiresAt) || e.count == 0 {
			continue
		}
		out = append(out, WindowEntry{Key: k, Count: e.count, ResetAt: e.expiresAt, LastRequest: e.lastRequest})
	}
	return out
}
