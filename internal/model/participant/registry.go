package participant

import (
	"errors"
	"sync"
)

var (
	ErrDuplicateParticipant = errors.New("participant already registered")
	ErrParticipantNotFound  = errors.New("participant not found")
)

// Registry exposes participant storage to the matchmaking engine.
type Registry interface {
	Register(p Participant) error
	Lookup(id string) (Participant, error)
	Len() int
}

// MemoryRegistry implements Registry with an in-memory map. Records live
// until process shutdown.
type MemoryRegistry struct {
	mu    sync.RWMutex
	items map[string]Participant
}

// NewMemoryRegistry returns an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{items: make(map[string]Participant)}
}

// Register stores a newly classified participant.
func (r *MemoryRegistry) Register(p Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[p.ID]; exists {
		return ErrDuplicateParticipant
	}
	r.items[p.ID] = p
	return nil
}

// Lookup returns the participant record by identifier.
func (r *MemoryRegistry) Lookup(id string) (Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]
	if !ok {
		return Participant{}, ErrParticipantNotFound
	}
	return p, nil
}

// Len returns the number of registered participants.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
