// Copyright (c) 2026 John Earle
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

// Package dedup remembers which keys (conversation ids, notification ids)
// have already been handled in this session so repeated triggers do not
// repeat Graph calls.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long a seen key is remembered in Redis.
	DefaultTTL = 24 * time.Hour

	// keyPrefix namespaces dedup keys in Redis.
	keyPrefix = "rfqdesk:seen:"
)

// Filter reports whether a key is seen for the first time.
type Filter interface {
	// IsNew returns true if key has NOT been seen before and marks it seen.
	IsNew(ctx context.Context, key string) (bool, error)
}

// RedisFilter tracks seen keys in Redis with a TTL, scoped to a session so
// that a restarted watcher with the same session id does not redo work.
type RedisFilter struct {
	rdb     *redis.Client
	ttl     time.Duration
	session string
}

// NewRedisFilter creates a dedup filter backed by Redis.
func NewRedisFilter(rdb *redis.Client, session string) *RedisFilter {
	return &RedisFilter{
		rdb:     rdb,
		ttl:     DefaultTTL,
		session: session,
	}
}

// IsNew marks key as seen atomically (SETNX).
func (f *RedisFilter) IsNew(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s%s:%s", keyPrefix, f.session, key)

	// SET NX = set only if key does not exist. Returns true if the key was set.
	set, err := f.rdb.SetNX(ctx, redisKey, 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}
	return set, nil
}

// MemoryFilter is a process-lifetime Filter.
type MemoryFilter struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryFilter creates an empty in-memory filter.
func NewMemoryFilter() *MemoryFilter {
	return &MemoryFilter{seen: make(map[string]struct{})}
}

func (f *MemoryFilter) IsNew(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[key]; ok {
		return false, nil
	}
	f.seen[key] = struct{}{}
	return true, nil
}
