package application

import (
	"fmt"
	"slices"
	"sync"

	"github.com/bnema/relayd/internal/domain"
	"github.com/bnema/relayd/internal/ports"
)

// Registry maps identities to their live connection. At most one connection
// is registered per identity.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.Identity]ports.Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: map[domain.Identity]ports.Conn{}}
}

func (r *Registry) Get(id domain.Identity) (ports.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	return conn, ok
}

// Put registers conn for id. Registering the same conn twice is a no-op; a
// different conn for an occupied identity is rejected.
func (r *Registry) Put(id domain.Identity, conn ports.Conn) error {
	if conn == nil {
		return fmt.Errorf("register %s: connection is nil", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.conns[id]; ok {
		if existing == conn {
			return nil
		}
		return fmt.Errorf("register %s: %w", id, domain.ErrSessionExists)
	}

	r.conns[id] = conn
	return nil
}

func (r *Registry) Remove(id domain.Identity) (ports.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	delete(r.conns, id)
	return conn, ok
}

// RemoveIf unregisters id only while it still maps to conn.
func (r *Registry) RemoveIf(id domain.Identity, conn ports.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.conns[id]; !ok || existing != conn {
		return false
	}

	delete(r.conns, id)
	return true
}

func (r *Registry) List() []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]domain.Identity, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

// First returns the registered identity that sorts lowest.
func (r *Registry) First() (domain.Identity, ports.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		firstID   domain.Identity
		firstConn ports.Conn
	)
	for id, conn := range r.conns {
		if firstConn == nil || id < firstID {
			firstID, firstConn = id, conn
		}
	}

	return firstID, firstConn, firstConn != nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}

func (r *Registry) IsEmpty() bool {
	return r.Len() == 0
}
