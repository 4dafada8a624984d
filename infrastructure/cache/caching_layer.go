// Package cache fronts a repository.ICacheStore with request fingerprinting and JSON encoding.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/go-querystring/query"

	"yt-fetcher/domain/repository"
	"yt-fetcher/infrastructure/logger"
)

const fingerprintPrefix = "yt:"

// Stats is a snapshot of the layer's hit and miss counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Layer is the caching strategy used by the request executor.
type Layer struct {
	store repository.ICacheStore
	ttl   time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewLayer(store repository.ICacheStore, ttl time.Duration) *Layer {
	return &Layer{store: store, ttl: ttl}
}

// TTL is the expiry applied when Set is called without one.
func (l *Layer) TTL() time.Duration {
	return l.ttl
}

// Fingerprint derives a stable key from an operation name and its parameters. Params may be nil,
// url.Values, or a struct with `url` tags. Field order never affects the result.
func (l *Layer) Fingerprint(op string, params interface{}) (string, error) {
	canonical, err := canonicalParams(params)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", op, err)
	}
	sum := sha1.Sum([]byte(op + "?" + canonical))
	return fingerprintPrefix + hex.EncodeToString(sum[:]), nil
}

func canonicalParams(params interface{}) (string, error) {
	switch p := params.(type) {
	case nil:
		return "", nil
	case url.Values:
		return p.Encode(), nil
	case map[string]string:
		values := url.Values{}
		for k, v := range p {
			values.Set(k, v)
		}
		return values.Encode(), nil
	default:
		values, err := query.Values(params)
		if err != nil {
			return "", err
		}
		return values.Encode(), nil
	}
}

// Get decodes a cached value into out. It never writes to the store: a payload that no longer
// decodes is reported as a miss and replaced by the next Set or expired by its TTL.
func (l *Layer) Get(ctx context.Context, fingerprint string, out interface{}) (bool, error) {
	data, ok, err := l.store.Get(ctx, fingerprint)
	if err != nil {
		l.misses.Add(1)
		return false, fmt.Errorf("cache get: %w", err)
	}
	if !ok {
		l.misses.Add(1)
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		l.misses.Add(1)
		logger.GetLogger().WithField("fingerprint", fingerprint).WithField("error", err).Warn("undecodable cache entry")
		return false, nil
	}
	l.hits.Add(1)
	return true, nil
}

// Set encodes value and stores it. A ttl of zero or less uses the layer default.
func (l *Layer) Set(ctx context.Context, fingerprint string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = l.ttl
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := l.store.Set(ctx, fingerprint, data, ttl); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (l *Layer) Invalidate(ctx context.Context, fingerprint string) error {
	if err := l.store.Delete(ctx, fingerprint); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

func (l *Layer) Clear(ctx context.Context) error {
	if err := l.store.Clear(ctx); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

func (l *Layer) Stats() Stats {
	return Stats{Hits: l.hits.Load(), Misses: l.misses.Load()}
}
