// Package cache holds an optional Redis-backed read cache for assembled
// subtrees. Entries are stamped with a tree version counter; any tree
// mutation bumps the counter, so stale assemblies are never served and no
// per-key invalidation is needed.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const versionKey = "tree:ver"

type TreeCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New returns a cache over rdb. A nil client yields a disabled cache whose
// methods are safe no-ops.
func New(rdb *redis.Client, ttl time.Duration) *TreeCache {
	return &TreeCache{rdb: rdb, ttl: ttl}
}

func (c *TreeCache) enabled() bool { return c != nil && c.rdb != nil }

// GetSubtree returns the cached JSON for rootID at the current tree version.
func (c *TreeCache) GetSubtree(ctx context.Context, rootID string) ([]byte, bool) {
	if !c.enabled() {
		return nil, false
	}
	ver, err := c.rdb.Get(ctx, versionKey).Int64()
	if err != nil && err != redis.Nil {
		return nil, false
	}
	payload, err := c.rdb.Get(ctx, subtreeKey(ver, rootID)).Bytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

func (c *TreeCache) PutSubtree(ctx context.Context, rootID string, payload []byte) {
	if !c.enabled() {
		return
	}
	ver, err := c.rdb.Get(ctx, versionKey).Int64()
	if err != nil && err != redis.Nil {
		return
	}
	c.rdb.Set(ctx, subtreeKey(ver, rootID), payload, c.ttl)
}

// Invalidate bumps the tree version so every cached assembly goes stale.
// Old entries age out via TTL.
func (c *TreeCache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	c.rdb.Incr(ctx, versionKey)
}

func subtreeKey(ver int64, rootID string) string {
	return fmt.Sprintf("tree:%d:subtree:%s", ver, rootID)
}
