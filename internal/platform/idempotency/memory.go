package idempotency

import (
	"context"
	"sync"
	"time"
)

// sweepAt is the entry count past which Begin reclaims expired entries
// inline. The store backs an in-process fake, so a background janitor would
// be more machinery than the job needs.
const sweepAt = 512

type entry struct {
	fingerprint string
	completed   bool
	response    Response
	expiresAt   time.Time
}

// MemoryStore keeps claims in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry)}
}

// Begin implements Store. An expired entry counts as unclaimed.
func (s *MemoryStore) Begin(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= sweepAt {
		s.sweepLocked(now)
	}

	e, ok := s.entries[key]
	if !ok || now.After(e.expiresAt) {
		s.entries[key] = &entry{fingerprint: fingerprint, expiresAt: now.Add(ttl)}
		return Claim{Outcome: Proceed}, nil
	}
	if e.fingerprint != fingerprint {
		return Claim{}, ErrKeyReused
	}
	if e.completed {
		return Claim{Outcome: Replay, Response: cloneResponse(e.response)}, nil
	}
	return Claim{Outcome: InFlight}, nil
}

// Complete implements Store.
func (s *MemoryStore) Complete(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if ok && e.fingerprint != fingerprint {
		return ErrKeyReused
	}
	if !ok {
		e = &entry{fingerprint: fingerprint}
		s.entries[key] = e
	}
	e.completed = true
	e.response = cloneResponse(resp)
	e.expiresAt = now.Add(ttl)
	return nil
}

// Abandon implements Store.
func (s *MemoryStore) Abandon(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}
