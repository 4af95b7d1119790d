package cache

/*
 Copyright 2019 - 2025 Crunchy Data Solutions, Inc.
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

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tobilg/raster-tileserver/internal/conf"
)

// Backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// TileCache stores rendered tiles for a limited time
type TileCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte) error
	// Clear removes all tiles
	Clear(ctx context.Context) error
	// ClearLayer removes all tiles of a layer and returns how many were removed
	ClearLayer(ctx context.Context, layer string) (int, error)
	Stats() Stats
	Enabled() bool
	Close() error
}

// Stats represents cache statistics
type Stats struct {
	Backend     string  `json:"backend"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Size        int     `json:"size"` // Number of items
	MemoryBytes int64   `json:"memory_bytes"`
	HitRate     float64 `json:"hit_rate"` // Percentage
}

// New creates the tile cache selected by the configuration.
// An inactive configuration gives a disabled cache.
func New(ctx context.Context, cfg conf.Cache) (TileCache, error) {
	if !cfg.IsCacheActive() {
		log.Info("Tile cache disabled")
		return NewDisabledCache(), nil
	}
	ttl := time.Duration(cfg.Timeout) * time.Second

	switch strings.ToLower(cfg.Backend) {
	case "", BackendMemory:
		return NewMemoryCache(cfg.MaxItems, cfg.MaxMemoryMB, ttl)
	case BackendRedis:
		return NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisDB, ttl)
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// counters tracks hit and miss statistics
type counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func (c *counters) hit(key string) {
	c.hits.Add(1)
	log.Debugf("Cache HIT: %s", key)
}

func (c *counters) miss(key string) {
	c.misses.Add(1)
	log.Debugf("Cache MISS: %s", key)
}

func (c *counters) stats(backend string) Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100.0
	}
	return Stats{
		Backend:   backend,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   hitRate,
	}
}

type disabledCache struct{}

// NewDisabledCache returns a cache that's disabled (always misses)
func NewDisabledCache() TileCache {
	return disabledCache{}
}

func (disabledCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }

func (disabledCache) Set(ctx context.Context, key string, data []byte) error { return nil }

func (disabledCache) Clear(ctx context.Context) error { return nil }

func (disabledCache) ClearLayer(ctx context.Context, layer string) (int, error) { return 0, nil }

func (disabledCache) Stats() Stats { return Stats{} }

func (disabledCache) Enabled() bool { return false }

func (disabledCache) Close() error { return nil }
