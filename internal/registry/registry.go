// Package registry tracks recently-active client identifiers to feed
// liveness displays. It is deliberately protocol-agnostic: both the HTTP
// router and the WebSocket manager record activity here, and entries
// outlive the connections that created them until they age out.
package registry

import (
	"sync"
	"time"
)

// DefaultRetention is how long an entry counts as recent activity.
const DefaultRetention = 300 * time.Second

// Summary is a point-in-time liveness view.
type Summary struct {
	ActiveClients int        `json:"activeClients"`
	LastSeen      *time.Time `json:"lastSeen"`
}

// Registry maps client identifiers to their last successful activity.
// Entries older than the retention window are pruned on every access.
// Safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	retention time.Duration
	entries   map[string]time.Time

	now func() time.Time // injectable for deterministic tests
}

// New creates a Registry. A non-positive retention falls back to
// DefaultRetention.
func New(retention time.Duration) *Registry {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Registry{
		retention: retention,
		entries:   make(map[string]time.Time),
		now:       time.Now,
	}
}

// Touch records activity for id at the current time.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)
	r.entries[id] = now
}

// Summary prunes expired entries and reports how many clients were active
// within the retention window, along with the most recent activity time.
// LastSeen is nil when no entry survives.
func (r *Registry) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(r.now())

	s := Summary{ActiveClients: len(r.entries)}
	for _, seen := range r.entries {
		if s.LastSeen == nil || seen.After(*s.LastSeen) {
			t := seen
			s.LastSeen = &t
		}
	}
	return s
}

// prune removes entries older than the retention window. Callers hold mu.
func (r *Registry) prune(now time.Time) {
	cutoff := now.Add(-r.retention)
	for id, seen := range r.entries {
		if seen.Before(cutoff) {
			delete(r.entries, id)
		}
	}
}
