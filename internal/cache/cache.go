/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// Deduper remembers which webhook deliveries have already been applied.
// It is a fast path only: the conditional order update stays the source of
// truth, so a miss here never causes a double side effect.
type Deduper interface {
	// Seen reports whether fingerprint was remembered for notifier.
	Seen(ctx context.Context, notifier, fingerprint string) (bool, error)

	// Remember records fingerprint for notifier. Callers remember only after
	// the event was persisted, so a failed delivery can be retried.
	Remember(ctx context.Context, notifier, fingerprint string) error
}

const (
	// cacheSize defines the size of the local cache (in number of entries).
	cacheSize = 128000

	// DefaultTTL bounds how long a fingerprint is kept in Redis.
	DefaultTTL = 7 * 24 * time.Hour

	localTTL = 24 * time.Hour
)

// FingerprintStore keeps fingerprints in a TinyLFU local cache and, when a
// Redis client is given, in Redis so every instance shares them.
type FingerprintStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewFingerprintStore builds a store. A nil client keeps fingerprints for the
// process lifetime only.
func NewFingerprintStore(client redis.UniversalClient, ttl time.Duration) *FingerprintStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	opts := &cache.Options{
		LocalCache: cache.NewTinyLFU(cacheSize, localTTL),
	}
	if client != nil {
		opts.Redis = client
	}
	return &FingerprintStore{cache: cache.New(opts), ttl: ttl}
}

func key(notifier, fingerprint string) string {
	return "dedup:" + notifier + ":" + fingerprint
}

func (s *FingerprintStore) Seen(ctx context.Context, notifier, fingerprint string) (bool, error) {
	var seen bool
	err := s.cache.Get(ctx, key(notifier, fingerprint), &seen)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return seen, nil
}

func (s *FingerprintStore) Remember(ctx context.Context, notifier, fingerprint string) error {
	return s.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key(notifier, fingerprint),
		Value: true,
		TTL:   s.ttl,
	})
}
