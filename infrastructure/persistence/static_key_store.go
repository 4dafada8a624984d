package persistence

import (
	"context"
	"sync"

	"yt-fetcher/domain/model"
	"yt-fetcher/domain/repository"
)

// StaticKeyStore serves keys from configuration. Enable/Disable only live for the process.
type StaticKeyStore struct {
	mu   sync.RWMutex
	keys []model.APIKey
}

func NewStaticKeyStore(keys []string) *StaticKeyStore {
	s := &StaticKeyStore{}
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		s.keys = append(s.keys, model.APIKey{Key: k, Active: true})
	}
	return s
}

func (s *StaticKeyStore) ListKeys(_ context.Context) ([]model.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.APIKey, len(s.keys))
	copy(out, s.keys)
	return out, nil
}

func (s *StaticKeyStore) Disable(_ context.Context, key string, _ map[string]interface{}) error {
	return s.setActive(key, false)
}

func (s *StaticKeyStore) Enable(_ context.Context, key string) error {
	return s.setActive(key, true)
}

func (s *StaticKeyStore) setActive(key string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.keys {
		if s.keys[i].Key == key {
			s.keys[i].Active = active
			return nil
		}
	}
	return repository.ErrKeyNotFound
}
