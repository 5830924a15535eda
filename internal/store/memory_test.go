package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory(time.Hour) // sweeper effectively off; tests call Sweep directly
	t.Cleanup(m.Stop)
	return m
}

func TestMemoryGetSetDelete(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	if err := m.SetEX(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("SetEX: %v", err)
	}
	v, err := m.Get(ctx, "k")
	if err != nil || v != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}

	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	if err := m.SetEX(ctx, "k", "v", -time.Second); err != nil {
		t.Fatalf("SetEX: %v", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired entry still readable: %v", err)
	}
}

func TestMemoryIncrWindow(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	var last Window
	for i := int64(1); i <= 3; i++ {
		w, err := m.IncrWindow(ctx, "counter", time.Minute)
		if err != nil {
			t.Fatalf("IncrWindow: %v", err)
		}
		if w.Count != i {
			t.Fatalf("count = %d, want %d", w.Count, i)
		}
		last = w
	}
	if last.ResetAt.Before(time.Now()) {
		t.Fatal("reset instant already passed")
	}

	w, err := m.GetWindow(ctx, "counter")
	if err != nil {
		t.Fatalf("GetWindow: %v", err)
	}
	if w.Count != 3 {
		t.Fatalf("GetWindow count = %d, want 3", w.Count)
	}
	// Reads must not count as requests.
	if w2, _ := m.GetWindow(ctx, "counter"); w2.Count != 3 {
		t.Fatalf("GetWindow incremented the counter: %d", w2.Count)
	}
}

func TestMemoryIncrWindowRestartsAfterExpiry(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	if _, err := m.IncrWindow(ctx, "counter", -time.Second); err != nil {
		t.Fatalf("IncrWindow: %v", err)
	}
	w, err := m.IncrWindow(ctx, "counter", time.Minute)
	if err != nil {
		t.Fatalf("IncrWindow: %v", err)
	}
	if w.Count != 1 {
		t.Fatalf("count after window elapsed = %d, want 1", w.Count)
	}
}

func TestMemorySweepRemovesExpired(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	_ = m.SetEX(ctx, "dead", "v", -time.Second)
	_ = m.SetEX(ctx, "live", "v", time.Minute)
	m.Sweep()

	m.mu.Lock()
	_, dead := m.entries["dead"]
	_, live := m.entries["live"]
	m.mu.Unlock()
	if dead {
		t.Fatal("expired entry survived sweep")
	}
	if !live {
		t.Fatal("live entry removed by sweep")
	}
}

func TestMemoryEntriesSnapshot(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	_, _ = m.IncrWindow(ctx, "a", time.Minute)
	_, _ = m.IncrWindow(ctx, "a", time.Minute)
	_, _ = m.IncrWindow(ctx, "b", time.Minute)
	_ = m.SetEX(ctx, "value-only", "v", time.Minute) // no count, not a counter

	entries := m.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	counts := map[string]int64{}
	for _, e := range entries {
		counts[e.Key] = e.Count
	}
	if counts["a"] != 2 || counts["b"] != 1 {
		t.Fatalf("unexpected snapshot: %+v", counts)
	}
}
