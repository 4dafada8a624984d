package persistence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"yt-fetcher/domain/model"
	"yt-fetcher/domain/repository"
	"yt-fetcher/infrastructure/logger"
)

const keyListCacheKey = "keys:list"

// CachedKeyStore keeps the key list in a cache store and drops it whenever a key is enabled or
// disabled through it. Registered notifiers hear about every change.
type CachedKeyStore struct {
	inner repository.IKeyStore
	cache repository.ICacheStore
	ttl   time.Duration

	mu        sync.RWMutex
	notifiers []repository.IKeyChangeNotifier
	now       func() time.Time
}

func NewCachedKeyStore(inner repository.IKeyStore, cache repository.ICacheStore, ttl time.Duration) *CachedKeyStore {
	return &CachedKeyStore{inner: inner, cache: cache, ttl: ttl, now: time.Now}
}

// OnChange registers a notifier.
func (s *CachedKeyStore) OnChange(n repository.IKeyChangeNotifier) {
	s.mu.Lock()
	s.notifiers = append(s.notifiers, n)
	s.mu.Unlock()
}

// ListKeys serves the cached list when present. Cache failures fall through to the inner store.
func (s *CachedKeyStore) ListKeys(ctx context.Context) ([]model.APIKey, error) {
	if raw, ok, err := s.cache.Get(ctx, keyListCacheKey); err != nil {
		logger.GetLogger().WithField("error", err).Warn("key list cache read failed")
	} else if ok {
		var keys []model.APIKey
		if err := json.Unmarshal(raw, &keys); err == nil {
			return keys, nil
		}
	}

	keys, err := s.inner.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(keys); err == nil {
		if err := s.cache.Set(ctx, keyListCacheKey, raw, s.ttl); err != nil {
			logger.GetLogger().WithField("error", err).Warn("key list cache write failed")
		}
	}
	return keys, nil
}

func (s *CachedKeyStore) Disable(ctx context.Context, key string, reason map[string]interface{}) error {
	if err := s.inner.Disable(ctx, key, reason); err != nil {
		return err
	}
	s.changed(ctx, model.KeyChange{Key: key, Active: false, Reason: reason, ChangedAt: s.now().UTC()})
	return nil
}

func (s *CachedKeyStore) Enable(ctx context.Context, key string) error {
	if err := s.inner.Enable(ctx, key); err != nil {
		return err
	}
	s.changed(ctx, model.KeyChange{Key: key, Active: true, ChangedAt: s.now().UTC()})
	return nil
}

// Invalidate drops the cached key list.
func (s *CachedKeyStore) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, keyListCacheKey)
}

func (s *CachedKeyStore) changed(ctx context.Context, change model.KeyChange) {
	if err := s.Invalidate(ctx); err != nil {
		logger.GetLogger().WithField("error", err).Warn("key list cache invalidation failed")
	}

	s.mu.RLock()
	notifiers := append([]repository.IKeyChangeNotifier(nil), s.notifiers...)
	s.mu.RUnlock()
	for _, n := range notifiers {
		if err := n.NotifyKeyChange(ctx, change); err != nil {
			logger.GetLogger().WithField("error", err).Warn("key change notification failed")
		}
	}
}
