package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog/log"
)

// sharedWriteBudget bounds how long a Set may wait on the shared backend
// before giving up; the local write has already happened by then.
const sharedWriteBudget = 50 * time.Millisecond

// localEntry is what the in-process tier stores: the encoded value plus its
// own expiry, since ristretto TTLs are best-effort under memory pressure.
type localEntry struct {
	data      []byte
	expiresAt time.Time
}

// Tier is the two-level cache: an in-process LRU in front of an optional
// shared backend. A shared hit populates the local tier; writes go to both.
type Tier struct {
	local  *ristretto.Cache[string, localEntry]
	shared Cache
}

// NewTier builds a Tier with a local LRU of roughly localSize entries.
// shared may be nil, in which case the Tier is purely in-process.
func NewTier(localSize int64, shared Cache) (*Tier, error) {
	if localSize <= 0 {
		localSize = 10_000
	}

	local, err := ristretto.NewCache(&ristretto.Config[string, localEntry]{
		NumCounters: localSize * 10,
		MaxCost:     localSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Tier{local: local, shared: shared}, nil
}

// Get consults the local tier first, then the shared backend. A shared hit
// is written back to the local tier before returning.
func (t *Tier) Get(ctx context.Context, key string, value any) error {
	if t == nil {
		return ErrCacheNil
	}

	if entry, ok := t.local.Get(key); ok {
		if time.Now().Before(entry.expiresAt) {
			return json.Unmarshal(entry.data, value)
		}
		t.local.Del(key)
	}

	if t.shared == nil {
		return ErrCacheMiss
	}

	var raw json.RawMessage
	if err := t.shared.Get(ctx, key, &raw); err != nil {
		return err
	}

	// Backfill the local tier; the shared backend owns the authoritative
	// TTL, so the local copy gets a short one.
	t.local.SetWithTTL(key, localEntry{data: raw, expiresAt: time.Now().Add(5 * time.Minute)}, 1, 5*time.Minute)

	return json.Unmarshal(raw, value)
}

// Set writes to the local tier, then to the shared backend within the hard
// 50 ms budget. A shared-backend timeout leaves the local entry in place.
func (t *Tier) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if t == nil {
		return ErrCacheNil
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	t.local.SetWithTTL(key, localEntry{data: data, expiresAt: time.Now().Add(ttl)}, 1, ttl)

	if t.shared == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), sharedWriteBudget)
		defer cancel()
		done <- t.shared.Set(writeCtx, key, json.RawMessage(data), ttl)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("shared cache write failed, local entry kept")
		}
	case <-time.After(sharedWriteBudget):
		log.Warn().Str("key", key).Msg("shared cache write exceeded budget, local entry kept")
	}

	return nil
}

// Delete removes keys from both tiers.
func (t *Tier) Delete(ctx context.Context, keys ...string) error {
	if t == nil {
		return ErrCacheNil
	}
	for _, key := range keys {
		t.local.Del(key)
	}
	if t.shared != nil {
		return t.shared.Delete(ctx, keys...)
	}
	return nil
}

// DeletePattern removes matching keys from the shared backend. The local
// tier cannot be iterated, so stale local entries age out via TTL.
func (t *Tier) DeletePattern(ctx context.Context, pattern string) error {
	if t == nil {
		return ErrCacheNil
	}
	if t.shared != nil {
		return t.shared.DeletePattern(ctx, pattern)
	}
	return nil
}

// Exists reports whether key is present in either tier.
func (t *Tier) Exists(ctx context.Context, key string) (bool, error) {
	if t == nil {
		return false, ErrCacheNil
	}
	if entry, ok := t.local.Get(key); ok && time.Now().Before(entry.expiresAt) {
		return true, nil
	}
	if t.shared != nil {
		return t.shared.Exists(ctx, key)
	}
	return false, nil
}

// Wait blocks until pending local writes are visible. Ristretto applies
// sets asynchronously; tests call this before asserting on Get.
func (t *Tier) Wait() {
	t.local.Wait()
}

// Close shuts down both tiers.
func (t *Tier) Close() error {
	t.local.Close()
	if t.shared != nil {
		return t.shared.Close()
	}
	return nil
}
