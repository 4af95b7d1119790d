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

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
)

// MemoryCache keeps tiles in process memory, evicting the least
// recently used ones and expiring all after the TTL
type MemoryCache struct {
	cache    *expirable.LRU[string, []byte]
	maxBytes int64
	counters

	currentBytes atomic.Int64
}

// NewMemoryCache creates an in-process tile cache
func NewMemoryCache(maxItems int, maxMemoryMB int, ttl time.Duration) (*MemoryCache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("maxItems must be positive, got %d", maxItems)
	}

	mc := &MemoryCache{maxBytes: int64(maxMemoryMB) * 1024 * 1024}
	mc.cache = expirable.NewLRU[string, []byte](maxItems, mc.onEvict, ttl)

	log.Infof("Initialized memory tile cache: max_items=%d max_memory=%dMB ttl=%v", maxItems, maxMemoryMB, ttl)
	return mc, nil
}

func (mc *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	tile, ok := mc.cache.Get(key)
	if ok {
		mc.hit(key)
		return tile, true
	}
	mc.miss(key)
	return nil, false
}

func (mc *MemoryCache) Set(ctx context.Context, key string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	size := int64(len(data))
	if mc.maxBytes > 0 && size > mc.maxBytes {
		log.Debugf("Cache SKIP: %s (%d bytes over the memory limit)", key, size)
		return nil
	}

	// Make a copy to avoid referencing request data
	tileCopy := make([]byte, len(data))
	copy(tileCopy, data)

	// replacing a value does not call onEvict
	if old, ok := mc.cache.Peek(key); ok {
		mc.currentBytes.Add(-int64(len(old)))
	}
	mc.cache.Add(key, tileCopy)
	mc.currentBytes.Add(size)

	for mc.maxBytes > 0 && mc.currentBytes.Load() > mc.maxBytes {
		if _, _, ok := mc.cache.RemoveOldest(); !ok {
			break
		}
	}
	log.Debugf("Cache SET: %s (%d bytes)", key, size)
	return nil
}

// onEvict is called when an item leaves the cache for any reason
func (mc *MemoryCache) onEvict(key string, value []byte) {
	mc.evictions.Add(1)
	mc.currentBytes.Add(-int64(len(value)))
	log.Debugf("Cache EVICT: %s", key)
}

func (mc *MemoryCache) Clear(ctx context.Context) error {
	mc.cache.Purge()
	mc.currentBytes.Store(0)
	log.Info("Cache cleared")
	return nil
}

func (mc *MemoryCache) ClearLayer(ctx context.Context, layer string) (int, error) {
	removed := 0
	prefix := LayerPrefix(layer)
	for _, key := range mc.cache.Keys() {
		if strings.HasPrefix(key, prefix) && mc.cache.Remove(key) {
			removed++
		}
	}
	log.Infof("Cleared %d tiles for layer %s", removed, layer)
	return removed, nil
}

func (mc *MemoryCache) Stats() Stats {
	s := mc.stats(BackendMemory)
	s.Size = mc.cache.Len()
	s.MemoryBytes = mc.currentBytes.Load()
	return s
}

func (mc *MemoryCache) Enabled() bool {
	return true
}

func (mc *MemoryCache) Close() error {
	return nil
}
