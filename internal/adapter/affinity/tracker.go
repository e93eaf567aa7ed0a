// Package affinity implements the C10 sticky-session and failover tracker
// (spec.md §4.10): a session-key -> server-id map for cookie/IP affinity,
// and a per-server sliding-window failure tracker that marks a server down
// after too many failures within a window, clearing it again after a
// cooldown.
package affinity

import (
	"sync"
	"time"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

// groupKey scopes both the session map and the failure map by group id,
// since the same session key or server id may appear in more than one
// group.
type groupKey struct {
	group string
	id    string
}

// Tracker is the shipped ports.AffinityTracker. One instance serves every
// group; sessions and failures are both keyed by (group id, key/server id)
// under a single mutex per map, the same per-key-map-plus-mutex shape the
// teacher's CircuitBreaker and RateLimitValidator use for their own
// per-endpoint/per-IP state.
type Tracker struct {
	mu       sync.Mutex
	sessions map[groupKey]*domain.SessionMapping

	failMu   sync.Mutex
	failures map[groupKey]*domain.FailureState
}

var _ ports.AffinityTracker = (*Tracker)(nil)

func New() *Tracker {
	return &Tracker{
		sessions: make(map[groupKey]*domain.SessionMapping),
		failures: make(map[groupKey]*domain.FailureState),
	}
}

func (t *Tracker) Resolve(group *domain.UpstreamGroup, selectionKey string) (string, bool, bool) {
	if group.Affinity == nil || selectionKey == "" {
		return "", false, false
	}

	key := groupKey{group: group.ID, id: selectionKey}

	t.mu.Lock()
	mapping, ok := t.sessions[key]
	if ok {
		mapping.Touch(time.Now())
	}
	t.mu.Unlock()

	if !ok {
		return "", false, false
	}

	return mapping.ServerID, t.Available(group, mapping.ServerID), true
}

func (t *Tracker) Bind(group *domain.UpstreamGroup, selectionKey, serverID string) {
	if group.Affinity == nil || selectionKey == "" {
		return
	}

	key := groupKey{group: group.ID, id: selectionKey}
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if mapping, ok := t.sessions[key]; ok {
		mapping.ServerID = serverID
		mapping.Touch(now)
		return
	}
	t.sessions[key] = &domain.SessionMapping{
		SessionKey: selectionKey,
		ServerID:   serverID,
		CreatedAt:  now,
		LastUsedAt: now,
	}
}

func (t *Tracker) Available(group *domain.UpstreamGroup, serverID string) bool {
	if group.Failover == nil {
		return true
	}

	key := groupKey{group: group.ID, id: serverID}

	t.failMu.Lock()
	defer t.failMu.Unlock()
	state, ok := t.failures[key]
	if !ok {
		return true
	}
	return state.Available(time.Now(), group.Failover.Cooldown)
}

func (t *Tracker) RecordFailure(group *domain.UpstreamGroup, serverID string) {
	if group.Failover == nil {
		return
	}

	key := groupKey{group: group.ID, id: serverID}
	now := time.Now()

	t.failMu.Lock()
	defer t.failMu.Unlock()
	state, ok := t.failures[key]
	if !ok {
		state = &domain.FailureState{}
		t.failures[key] = state
	}
	state.RecordFailure(now, group.Failover.WindowDuration, group.Failover.MaxFailures)
}

// Sweep evicts session mappings in every group that have been idle longer
// than a fixed 30-minute window. A SessionMapping has no back-reference to
// its group, so Sweep does not apply any group's own affinity max-age;
// SweepGroup does.
func (t *Tracker) Sweep(now time.Time) {
	const fallbackMaxAge = 30 * time.Minute
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, mapping := range t.sessions {
		if mapping.Expired(now, fallbackMaxAge) {
			delete(t.sessions, key)
		}
	}
}

// SweepGroup evicts only group's idle mappings, using its own configured
// affinity max-age. The runtime's once-a-minute cleanup timer calls it for
// every configured group (spec.md §4.10).
func (t *Tracker) SweepGroup(group *domain.UpstreamGroup, now time.Time) {
	if group.Affinity == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, mapping := range t.sessions {
		if key.group != group.ID {
			continue
		}
		if mapping.Expired(now, group.Affinity.MaxAge) {
			delete(t.sessions, key)
		}
	}
}
