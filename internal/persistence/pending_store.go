package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryPendingStore keeps pending ticket channels in process memory.
type MemoryPendingStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]pendingEntry
}

type pendingEntry struct {
	channelID string
	expires   time.Time
}

// NewMemoryPendingStore builds a store whose entries expire after ttl.
func NewMemoryPendingStore(ttl time.Duration) *MemoryPendingStore {
	return &MemoryPendingStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]pendingEntry),
	}
}

// Get returns the pending channel of userID.
func (s *MemoryPendingStore) Get(_ context.Context, userID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[userID]
	if !ok {
		return "", false, nil
	}
	if !s.now().Before(entry.expires) {
		delete(s.entries, userID)
		return "", false, nil
	}
	return entry.channelID, true, nil
}

// Put records channelID as the pending channel of userID.
func (s *MemoryPendingStore) Put(_ context.Context, userID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, entry := range s.entries {
		if !now.Before(entry.expires) {
			delete(s.entries, id)
		}
	}
	s.entries[userID] = pendingEntry{channelID: channelID, expires: now.Add(s.ttl)}
	return nil
}

// Delete forgets userID.
func (s *MemoryPendingStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

// RedisPendingStore keeps pending ticket channels in Redis so every process sees them.
type RedisPendingStore struct {
	redis *Redis
	ttl   time.Duration
}

// NewRedisPendingStore builds a store whose entries expire after ttl.
func NewRedisPendingStore(r *Redis, ttl time.Duration) *RedisPendingStore {
	return &RedisPendingStore{redis: r, ttl: ttl}
}

// Get returns the pending channel of userID.
func (s *RedisPendingStore) Get(ctx context.Context, userID string) (string, bool, error) {
	channelID, err := s.redis.Client.Get(ctx, s.redis.Key("pending", userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return channelID, true, nil
}

// Put records channelID as the pending channel of userID.
func (s *RedisPendingStore) Put(ctx context.Context, userID, channelID string) error {
	return s.redis.Client.Set(ctx, s.redis.Key("pending", userID), channelID, s.ttl).Err()
}

// Delete forgets userID.
func (s *RedisPendingStore) Delete(ctx context.Context, userID string) error {
	return s.redis.Client.Del(ctx, s.redis.Key("pending", userID)).Err()
}
