package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
)

// Entry is a report together with the time it was last received.
type Entry struct {
	Report    *traffic.Report
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory report store, keyed by report name.
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores or replaces the report for rep.Name.
// Callers must not modify rep after calling Put.
func (s *Store) Put(rep *traffic.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rep.Name] = &Entry{
		Report:    rep,
		UpdatedAt: s.now(),
	}
}

// Get returns the live Entry for the given report name.
func (s *Store) Get(name string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[name]
	if !ok || !e.UpdatedAt.After(s.now().Add(-s.ttl)) {
		return nil, false
	}
	return e, true
}

// List returns all entries updated within the TTL, ordered by report name.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Report.Name < out[j].Report.Name })
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for name, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, name)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. Run blocks until ctx is
// cancelled.
func (s *Store) Run(ctx context.Context) {
	runEvictor(ctx, s.ttl, s.Evict, "reports")
}

// runEvictor calls evict every ttl/2 (minimum 1 second) until ctx is done.
func runEvictor(ctx context.Context, ttl time.Duration, evict func(time.Time) int, what string) {
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := evict(now); n > 0 {
				slog.Debug("store: evicted stale entries", "kind", what, "count", n)
			}
		}
	}
}
