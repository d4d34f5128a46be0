// Copyright 2025 NewsAnalyzer, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kb

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SearchCache stores search results for one knowledge base client. Entries
// expire from their store time (touch-on-hit is disabled) and the oldest
// entries are evicted once capacity is reached. Concurrent identical misses
// are collapsed into a single fetch.
type SearchCache struct {
	source  Source
	cache   *ttlcache.Cache[string, *SearchResult]
	sfGroup *singleflight.Group
	logger  *zap.Logger
	cancel  context.CancelFunc

	// Metrics
	hits   atomic.Uint64
	misses atomic.Uint64
	sfHits atomic.Uint64
}

// NewSearchCache creates a search cache bounded by ttl and capacity.
func NewSearchCache(source Source, ttl time.Duration, capacity uint64, logger *zap.Logger) *SearchCache {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *SearchResult](ttl),
		ttlcache.WithCapacity[string, *SearchResult](capacity),
		ttlcache.WithDisableTouchOnHit[string, *SearchResult](),
	)
	go cache.Start()

	ctx, cancel := context.WithCancel(context.Background())
	sc := &SearchCache{
		source:  source,
		cache:   cache,
		sfGroup: &singleflight.Group{},
		logger:  logger,
		cancel:  cancel,
	}

	// Log cache stats periodically
	go sc.logStats(ctx)

	return sc
}

// Resolve returns the stored result for key, or runs fetch exactly once
// across concurrent callers of the same key and stores whatever it returns.
// bypass skips the read but still stores the fresh result. Results served
// from the cache come back as copies with FromCache set.
func (sc *SearchCache) Resolve(key string, bypass bool, fetch func() (*SearchResult, error)) (*SearchResult, error) {
	if !bypass {
		if item := sc.cache.Get(key); item != nil {
			sc.hits.Add(1)
			RecordCacheHit(string(sc.source))
			cached := *item.Value()
			cached.FromCache = true
			return &cached, nil
		}
	}

	result, err, shared := sc.sfGroup.Do(key, func() (any, error) {
		sc.misses.Add(1)
		RecordCacheMiss(string(sc.source))

		res, err := fetch()
		if err != nil {
			return nil, err
		}

		sc.cache.Set(key, res, ttlcache.DefaultTTL)
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		sc.sfHits.Add(1)
		sc.logger.Debug("Singleflight hit for lookup",
			zap.String("source", string(sc.source)))
	}

	return result.(*SearchResult), nil
}

// Len reports how many results are currently stored.
func (sc *SearchCache) Len() int {
	return sc.cache.Len()
}

// Close stops the cache's expiry and stats workers.
func (sc *SearchCache) Close() {
	sc.cancel()
	sc.cache.Stop()
}

// Stats returns cache effectiveness counters.
func (sc *SearchCache) Stats() CacheStats {
	return CacheStats{
		Source:           string(sc.source),
		Hits:             sc.hits.Load(),
		Misses:           sc.misses.Load(),
		SingleflightHits: sc.sfHits.Load(),
		Items:            sc.cache.Len(),
	}
}

// CacheStats holds hit counters for one client's cache.
type CacheStats struct {
	Source           string `json:"source"`
	Hits             uint64 `json:"hits"`
	Misses           uint64 `json:"misses"`
	SingleflightHits uint64 `json:"singleflight_hits"`
	Items            int    `json:"items"`
}

// logStats logs cache statistics periodically
func (sc *SearchCache) logStats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hits := sc.hits.Load()
			misses := sc.misses.Load()
			if hits > 0 || misses > 0 {
				hitRate := float64(0)
				if total := hits + misses; total > 0 {
					hitRate = float64(hits) / float64(total) * 100
				}
				sc.logger.Info("Lookup cache stats",
					zap.String("source", string(sc.source)),
					zap.Uint64("hits", hits),
					zap.Uint64("misses", misses),
					zap.Float64("hit_rate_pct", hitRate),
					zap.Int("items", sc.cache.Len()))
			}
		}
	}
}
