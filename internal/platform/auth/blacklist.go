package auth

import (
	"context"
	"sync"
	"time"
)

// Blacklist records refresh-token JTIs that were invalidated by logout.
// Adding a JTI that is already present is not an error.
type Blacklist interface {
	Add(ctx context.Context, jti string, userID int64, expiresAt time.Time) error
	Contains(ctx context.Context, jti string) (bool, error)
}

type blacklistEntry struct {
	ExpiresAt time.Time
	UserID    int64
}

// MemoryBlacklist keeps blacklisted JTIs in memory. Entries are dropped
// once the token they describe would have expired anyway.
type MemoryBlacklist struct {
	mu      sync.RWMutex
	entries map[string]blacklistEntry // JTI -> entry
	now     func() time.Time
	done    chan struct{}
}

// NewMemoryBlacklist creates a store and starts a goroutine that removes
// expired entries every interval. Call Close to stop it.
func NewMemoryBlacklist(interval time.Duration) *MemoryBlacklist {
	if interval <= 0 {
		interval = time.Minute
	}
	s := &MemoryBlacklist{
		entries: make(map[string]blacklistEntry),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go s.cleanupLoop(interval)
	return s
}

func (s *MemoryBlacklist) Add(_ context.Context, jti string, userID int64, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[jti]; ok {
		return nil
	}
	s.entries[jti] = blacklistEntry{ExpiresAt: expiresAt, UserID: userID}
	return nil
}

func (s *MemoryBlacklist) Contains(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[jti]
	return ok, nil
}

// Count returns the number of blacklisted tokens still tracked.
func (s *MemoryBlacklist) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *MemoryBlacklist) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *MemoryBlacklist) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemoryBlacklist) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, jti)
		}
	}
}
