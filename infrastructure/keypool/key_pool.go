// Package keypool keeps the rotation state of the API keys shared by every in-flight call.
package keypool

import (
	"sync"
	"time"

	"yt-fetcher/domain/apperror"
	"yt-fetcher/domain/model"
)

type keyState struct {
	key         string
	active      bool
	exhaustedAt time.Time // zero when the key has quota; ignored once older than the cooldown
}

// KeyStatus is a read-only view of one pool member.
type KeyStatus struct {
	Key       string `json:"key"`
	Active    bool   `json:"active"`
	Exhausted bool   `json:"exhausted"`
	Current   bool   `json:"current"`
}

// KeyPool is a bounded circular index over keys with per-key exhaustion tracking.
// All state sits behind one mutex that is never held across a network call.
type KeyPool struct {
	mu       sync.Mutex
	keys     []keyState
	index    map[string]int
	cursor   int
	cooldown time.Duration
	now      func() time.Time
}

// Option customizes a KeyPool.
type Option func(*KeyPool)

// WithCooldown makes an exhausted key usable again once d has elapsed. Zero disables it.
func WithCooldown(d time.Duration) Option {
	return func(p *KeyPool) { p.cooldown = d }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *KeyPool) { p.now = now }
}

// New builds a pool in the given order. Duplicate keys keep their first position.
func New(keys []model.APIKey, opts ...Option) (*KeyPool, error) {
	p := &KeyPool{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	states, index := buildStates(keys)
	if len(states) == 0 {
		return nil, apperror.ErrEmptyKeyPool
	}
	p.keys = states
	p.index = index
	return p, nil
}

// FromStrings builds a pool of active keys.
func FromStrings(keys []string, opts ...Option) (*KeyPool, error) {
	apiKeys := make([]model.APIKey, 0, len(keys))
	for _, k := range keys {
		apiKeys = append(apiKeys, model.APIKey{Key: k, Active: true})
	}
	return New(apiKeys, opts...)
}

func buildStates(keys []model.APIKey) ([]keyState, map[string]int) {
	states := make([]keyState, 0, len(keys))
	index := make(map[string]int, len(keys))
	for _, k := range keys {
		if k.Key == "" {
			continue
		}
		if _, dup := index[k.Key]; dup {
			continue
		}
		index[k.Key] = len(states)
		states = append(states, keyState{key: k.Key, active: k.Active})
	}
	return states, index
}

// usable must be called with p.mu held. An expired exhaustion mark is ignored, not cleared.
func (p *KeyPool) usable(i int, now time.Time) bool {
	s := p.keys[i]
	if !s.active {
		return false
	}
	if s.exhaustedAt.IsZero() {
		return true
	}
	return p.cooldown > 0 && now.Sub(s.exhaustedAt) >= p.cooldown
}

// resolve returns the index of the first usable key at or after the cursor, or -1.
func (p *KeyPool) resolve() int {
	now := p.now()
	n := len(p.keys)
	for i := 0; i < n; i++ {
		j := (p.cursor + i) % n
		if p.usable(j, now) {
			return j
		}
	}
	return -1
}

// Current returns the first usable key starting at the cursor. It never moves the cursor.
// ok is false when no key is usable.
func (p *KeyPool) Current() (key string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.resolve()
	if i < 0 {
		return "", false
	}
	return p.keys[i].key, true
}

// Cursor returns the key the cursor points at, usable or not.
func (p *KeyPool) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keys[p.cursor].key
}

// Rotate moves the cursor one position in insertion order, wrapping at the end, and returns
// the key now under the cursor. It does not check exhaustion.
func (p *KeyPool) Rotate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = (p.cursor + 1) % len(p.keys)
	return p.keys[p.cursor].key
}

// RotateFrom moves the cursor past key only if key is still the current one. Concurrent callers
// that saw the same quota signal therefore advance the cursor once.
func (p *KeyPool) RotateFrom(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, known := p.index[key]
	if !known {
		return false
	}
	if cur := p.resolve(); cur >= 0 && cur != idx {
		return false
	}
	p.cursor = (idx + 1) % len(p.keys)
	return true
}

// MarkExhausted flags key as out of quota. Exhausted keys keep their rotation slot.
func (p *KeyPool) MarkExhausted(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, known := p.index[key]
	if !known {
		return false
	}
	p.keys[idx].exhaustedAt = p.now()
	return true
}

// MarkActive clears the exhaustion flag of key.
func (p *KeyPool) MarkActive(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, known := p.index[key]
	if !known {
		return false
	}
	p.keys[idx].exhaustedAt = time.Time{}
	return true
}

// AllExhausted reports whether no key is both active and within quota.
func (p *KeyPool) AllExhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolve() < 0
}

// Reload replaces the membership. Exhaustion marks and the cursor follow keys by identity;
// if the key under the cursor is gone the cursor goes back to the first key.
func (p *KeyPool) Reload(keys []model.APIKey) error {
	states, index := buildStates(keys)
	if len(states) == 0 {
		return apperror.ErrEmptyKeyPool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range states {
		// Re-enabling a key clears its mark.
		if old, ok := p.index[states[i].key]; ok && p.keys[old].active {
			states[i].exhaustedAt = p.keys[old].exhaustedAt
		}
	}
	cursorKey := p.keys[p.cursor].key
	p.keys = states
	p.index = index
	if idx, ok := index[cursorKey]; ok {
		p.cursor = idx
	} else {
		p.cursor = 0
	}
	return nil
}

// Len returns the number of keys, usable or not.
func (p *KeyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Snapshot returns the state of every key in rotation order. It does not modify the pool.
func (p *KeyPool) Snapshot() []KeyStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.resolve()
	now := p.now()
	out := make([]KeyStatus, len(p.keys))
	for i := range p.keys {
		out[i] = KeyStatus{
			Key:       p.keys[i].key,
			Active:    p.keys[i].active,
			Exhausted: p.keys[i].active && !p.usable(i, now),
			Current:   i == cur,
		}
	}
	return out
}
