package session

import (
	"context"
	"time"

	"github.com/geocoder89/memberhub/internal/cache"
)

// MemoryStore keeps sessions in process. Sessions do not survive a restart
// and are not shared between replicas.
type MemoryStore struct {
	c *cache.Cache
}

func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	return &MemoryStore{c: cache.New(defaultTTL)}
}

// NewMemoryStoreWithCache is used by tests that control the clock.
func NewMemoryStoreWithCache(c *cache.Cache) *MemoryStore {
	return &MemoryStore{c: c}
}

func (s *MemoryStore) Put(_ context.Context, id, userID string, ttl time.Duration) error {
	s.c.SetWithTTL(id, userID, ttl)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (string, error) {
	v, ok := s.c.Get(id)
	if !ok {
		return "", ErrNotFound
	}

	userID, ok := v.(string)
	if !ok || userID == "" {
		return "", ErrNotFound
	}
	return userID, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.c.Delete(id)
	return nil
}

// Sweep drops expired sessions.
func (s *MemoryStore) Sweep() int {
	return s.c.Sweep()
}
