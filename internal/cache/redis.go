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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
	log "github.com/sirupsen/logrus"
)

// redisKeyPrefix namespaces tile keys in a shared Redis database
const redisKeyPrefix = "rasterts:tile:"

const scanCount = 500

// RedisCache keeps tiles in Redis so that several server instances share them
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
	counters
}

// NewRedisCache connects to Redis and checks the connection
func NewRedisCache(ctx context.Context, addr string, db int, ttl time.Duration) (*RedisCache, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		PoolSize:     32,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	log.Infof("Initialized redis tile cache: addr=%s db=%d ttl=%v", addr, db, ttl)
	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := rc.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("Cache GET %s failed: %v", key, err)
		}
		rc.miss(key)
		return nil, false
	}
	rc.hit(key)
	return b, true
}

func (rc *RedisCache) Set(ctx context.Context, key string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := rc.rdb.Set(ctx, redisKeyPrefix+key, data, rc.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %q: %w", key, err)
	}
	log.Debugf("Cache SET: %s (%d bytes)", key, len(data))
	return nil
}

func (rc *RedisCache) Clear(ctx context.Context) error {
	n, err := rc.deleteMatching(ctx, redisKeyPrefix+"*")
	if err != nil {
		return err
	}
	log.Infof("Cache cleared (%d tiles)", n)
	return nil
}

func (rc *RedisCache) ClearLayer(ctx context.Context, layer string) (int, error) {
	n, err := rc.deleteMatching(ctx, redisKeyPrefix+escapePattern(LayerPrefix(layer))+"*")
	if err != nil {
		return n, err
	}
	log.Infof("Cleared %d tiles for layer %s", n, layer)
	return n, nil
}

func (rc *RedisCache) deleteMatching(ctx context.Context, pattern string) (int, error) {
	removed := 0
	iter := rc.rdb.Scan(ctx, 0, pattern, scanCount).Iterator()
	batch := make([]string, 0, scanCount)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := rc.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis DEL %d keys: %w", len(batch), err)
		}
		removed += int(n)
		rc.evictions.Add(n)
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanCount {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis SCAN %s: %w", pattern, err)
	}
	return removed, flush()
}

func (rc *RedisCache) Stats() Stats {
	s := rc.stats(BackendRedis)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	iter := rc.rdb.Scan(ctx, 0, redisKeyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		s.Size++
	}
	if err := iter.Err(); err != nil {
		log.Warnf("Counting cached tiles failed: %v", err)
	}
	return s
}

func (rc *RedisCache) Enabled() bool {
	return true
}

func (rc *RedisCache) Close() error {
	if err := rc.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}

// escapePattern quotes the glob characters of a SCAN pattern
func escapePattern(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
