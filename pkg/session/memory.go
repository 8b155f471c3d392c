package session

import (
	"context"
	"sync"
	"time"

	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

type memoryEntry struct {
	state     *models.ConversationState
	expiresAt time.Time
}

// MemoryStore keeps conversation state in process memory with TTL expiry.
// Suitable for single-replica deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	// locks is keyed separately from entries so that deleting a
	// conversation (end intent, TTL sweep) never recreates the mutex a
	// concurrent turn is still holding.
	locks    map[string]*sync.Mutex
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a MemoryStore and starts its expiry sweeper.
// A ttl of zero disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		locks:   make(map[string]*sync.Mutex),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	if ttl > 0 {
		go s.sweep()
	}
	return s
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, e := range s.entries {
				if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.state == nil {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		return nil, ErrNotFound
	}
	cloned := *e.state
	return &cloned, nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, id string, state *models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cloned := *state
	e, ok := s.entries[id]
	if !ok {
		e = &memoryEntry{}
		s.entries[id] = e
	}
	e.state = &cloned
	if s.ttl > 0 {
		e.expiresAt = time.Now().Add(s.ttl)
	}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Lock implements Store with a per-conversation mutex. The mutex outlives
// the state entry, so an end-intent turn can delete the state while still
// holding the lock without handing the key to a concurrent caller.
func (s *MemoryStore) Lock(ctx context.Context, id string) (func(), error) {
	s.mu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock, nil
}

// Close stops the expiry sweeper.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}
