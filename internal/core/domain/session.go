package domain

import "time"

// SessionMapping binds a session key to a server for sticky-session
// affinity (spec.md §3, §4.10). Evicted when LastUsedAt + maxAge < now.
type SessionMapping struct {
	CreatedAt  time.Time
	LastUsedAt time.Time
	SessionKey string
	ServerID   string
}

// Expired reports whether this mapping should be evicted given maxAge.
func (m *SessionMapping) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(m.LastUsedAt) > maxAge
}

// Touch refreshes LastUsedAt to now — called on every request that hits
// this mapping (spec.md §4.10).
func (m *SessionMapping) Touch(now time.Time) {
	m.LastUsedAt = now
}
