package session

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps the token for the lifetime of the process only.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore() *MemoryStore {
	// No expiration and no janitor: the guard decides when a token is gone.
	c := cache.New(cache.NoExpiration, 0)
	return &MemoryStore{
		cache: c,
	}
}

func (s *MemoryStore) Load(_ context.Context, key string) (string, bool, error) {
	if x, found := s.cache.Get(key); found {
		return x.(string), true, nil
	}
	return "", false, nil
}

func (s *MemoryStore) Save(_ context.Context, key, value string) error {
	s.cache.Set(key, value, cache.NoExpiration)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}
