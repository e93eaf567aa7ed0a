// Package portmgr implements the single port-management collaborator
// SPEC_FULL.md §4.15 resolves spec.md §9's "two overlapping port-management
// components" ambiguity into: one reservation tracker, Reserve/Release,
// that every listener goes through before binding. It does not bind
// sockets or allocate ports itself.
package portmgr

import (
	"fmt"
	"net"
	"sync"
)

// Manager tracks which (host, port) pairs are currently claimed by this
// process, so two gateways configured onto the same address collide at
// validation time rather than racing each other at net.Listen.
type Manager struct {
	mu       sync.Mutex
	reserved map[string]struct{}
}

// New builds an empty Manager.
func New() *Manager {
	return &Manager{reserved: make(map[string]struct{})}
}

func addrKey(host string, port int) string {
	return net.JoinHostPort(host, fmt.Sprintf("%d", port))
}

// Reserve claims (host, port) for the caller, returning an error if it is
// already reserved by an earlier caller in this process.
func (m *Manager) Reserve(host string, port int) error {
	key := addrKey(host, port)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.reserved[key]; taken {
		return fmt.Errorf("portmgr: %s is already reserved", key)
	}
	m.reserved[key] = struct{}{}
	return nil
}

// Release frees a previously reserved (host, port), so the same address
// can be reused (e.g. a listener restart during config reload validation).
func (m *Manager) Release(host string, port int) {
	key := addrKey(host, port)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reserved, key)
}

// Reserved reports whether (host, port) is currently claimed.
func (m *Manager) Reserved(host string, port int) bool {
	key := addrKey(host, port)

	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.reserved[key]
	return ok
}
