// Package session tracks in-flight download sessions and their cancellation
// state. State is process-local and never persisted.
package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Registry maps session ids to their cancellation flag and task handle.
type Registry interface {
	Create() string
	Attach(id string, cancel context.CancelFunc) bool
	Cancel(id string) bool
	IsCancelled(id string) bool
	Dispose(id string)
	Len() int
	Owns(name string) bool
}

type entry struct {
	cancelled atomic.Bool

	mu     sync.Mutex
	handle context.CancelFunc
}

type registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	newID    func() string
}

// NewRegistry returns an empty in-memory registry issuing UUID session ids.
func NewRegistry() Registry {
	return &registry{
		sessions: make(map[string]*entry),
		newID:    uuid.NewString,
	}
}

func (r *registry) Create() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		id := r.newID()
		if _, exists := r.sessions[id]; exists {
			continue
		}
		r.sessions[id] = &entry{}
		return id
	}
}

// Attach binds the cancel function of the running task to the session. If the
// session was already cancelled the handle is invoked immediately.
func (r *registry) Attach(id string, cancel context.CancelFunc) bool {
	e, ok := r.get(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	e.handle = cancel
	e.mu.Unlock()
	if e.cancelled.Load() && cancel != nil {
		cancel()
	}
	return true
}

func (r *registry) Cancel(id string) bool {
	e, ok := r.get(id)
	if !ok {
		return false
	}
	if !e.cancelled.CompareAndSwap(false, true) {
		return true
	}
	e.mu.Lock()
	handle := e.handle
	e.mu.Unlock()
	if handle != nil {
		handle()
	}
	return true
}

func (r *registry) IsCancelled(id string) bool {
	e, ok := r.get(id)
	return ok && e.cancelled.Load()
}

func (r *registry) Dispose(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Owns reports whether name carries the id of a live session.
func (r *registry) Owns(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := range r.sessions {
		if strings.Contains(name, id) {
			return true
		}
	}
	return false
}

func (r *registry) get(id string) (*entry, bool) {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	return e, ok
}

var _ Registry = (*registry)(nil)
