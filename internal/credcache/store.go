// Package credcache is a process-wide in-memory cache mapping a presented
// remember-cookie value to its resolved identity. A hit lets remember-cookie
// validation skip the token ledger entirely; a miss always falls back to it.
package credcache

import "sync"

// Identity is the resolved owner of a cached cookie value.
type Identity struct {
	UserID string
	Email  string
}

// Store is the credential cache consumed by the authenticators. Entries are
// inserted after a successful ledger rotation (keyed by the new cookie value)
// and removed on logout or when their token is rotated away. The cache is
// never the source of truth for rotation.
type Store interface {
	// Put caches identity under the exact cookie value the client will present.
	Put(cookieValue string, identity Identity)
	// Get returns the cached identity for cookieValue. ok is false on a miss.
	Get(cookieValue string) (identity Identity, ok bool)
	// Delete evicts cookieValue. Deleting an absent key is a no-op.
	Delete(cookieValue string)
	// DeleteUser evicts every entry resolving to userID. Called when a theft
	// response or logout tears down all of the user's lineages, so no cached
	// cookie can outlive the ledger rows backing it.
	DeleteUser(userID string)
}

// MemoryStore is an in-memory Store implementation, safe for concurrent use.
// It is constructed at startup and injected into the authenticators.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]Identity
}

// NewMemoryStore returns a new empty in-memory credential cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]Identity)}
}

// Put caches identity under cookieValue.
func (s *MemoryStore) Put(cookieValue string, identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[cookieValue] = identity
}

// Get returns the cached identity for cookieValue.
func (s *MemoryStore) Get(cookieValue string) (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.m[cookieValue]
	return identity, ok
}

// Delete evicts cookieValue.
func (s *MemoryStore) Delete(cookieValue string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, cookieValue)
}

// DeleteUser evicts every entry resolving to userID.
func (s *MemoryStore) DeleteUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cookieValue, identity := range s.m {
		if identity.UserID == userID {
			delete(s.m, cookieValue)
		}
	}
}
