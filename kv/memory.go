package kv

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore implements Store with an in-process map. Expired entries are
// invisible to readers immediately and swept periodically.
// It is meant for tests and single-process deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time

	stopCleanup chan struct{}
	closeOnce   sync.Once
}

// NewMemoryStore creates a store and starts the background sweeper when
// cleanupInterval is positive.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries:     make(map[string]memoryEntry),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.cleanupLoop(cleanupInterval)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, unavailable("get", err)
	}
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || !s.live(e) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return unavailable("set", err)
	}
	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, expiresAt: s.expiry(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Replace(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("replace", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !s.live(e) {
		return false, nil
	}
	s.entries[key] = memoryEntry{value: value, expiresAt: s.expiry(ttl)}
	return true, nil
}

// Incr treats a missing, expired or non-numeric value as zero.
func (s *MemoryStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("incr", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !s.live(e) {
		e = memoryEntry{expiresAt: s.expiry(ttl)}
	}
	n, _ := strconv.ParseInt(e.value, 10, 64)
	n++
	e.value = strconv.FormatInt(n, 10)
	s.entries[key] = e
	return n, nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, key := range keys {
		e, ok := s.entries[key]
		if !ok {
			continue
		}
		delete(s.entries, key)
		if s.live(e) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("keys", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for key, e := range s.entries {
		if strings.HasPrefix(key, prefix) && s.live(e) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Len reports the number of stored entries, including ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the background sweeper. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopCleanup) })
	return nil
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if !s.live(e) {
			delete(s.entries, key)
		}
	}
}

func (s *MemoryStore) live(e memoryEntry) bool {
	return e.expiresAt.IsZero() || s.now().Before(e.expiresAt)
}

func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}
