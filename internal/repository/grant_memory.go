package repository

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/secure-file-share/internal/model"
)

// MemoryGrantStore is an in-process GrantStore used in development and
// tests, and as the fallback when neither Redis nor MySQL is wanted. A
// single mutex guards the map, which gives TryConsume the same
// linearizable consume-once behavior the Lua script and the conditional
// UPDATE provide in the other stores.
type MemoryGrantStore struct {
	mu     sync.Mutex
	grants map[string]model.DownloadGrant

	// Now supplies the current time and exists so tests can move the
	// clock past a grant's expiry. Nil means time.Now.
	Now func() time.Time
}

func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{grants: make(map[string]model.DownloadGrant)}
}

func (s *MemoryGrantStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Put stores a grant, rejecting token hash collisions.
func (s *MemoryGrantStore) Put(ctx context.Context, g model.DownloadGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.grants[g.TokenHash]; exists {
		return ErrTokenExists
	}
	g.Consumed = false
	s.grants[g.TokenHash] = g
	return nil
}

// TryConsume checks expiry and flips the consumed flag under one lock
// acquisition, so exactly one of any set of concurrent callers wins.
func (s *MemoryGrantStore) TryConsume(ctx context.Context, tokenHash string) (model.DownloadGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, exists := s.grants[tokenHash]
	if !exists {
		return model.DownloadGrant{}, ErrGrantNotFound
	}
	if g.Consumed {
		return model.DownloadGrant{}, ErrGrantConsumed
	}
	if !s.now().Before(g.ExpiresAt) {
		return model.DownloadGrant{}, ErrGrantExpired
	}
	g.Consumed = true
	s.grants[tokenHash] = g
	return g, nil
}

// DeleteExpired sweeps grants past expiry plus retention.
func (s *MemoryGrantStore) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for hash, g := range s.grants {
		if !g.ExpiresAt.After(cutoff) {
			delete(s.grants, hash)
			removed++
		}
	}
	return removed, nil
}
