package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache implements Cache in process with go-cache. It backs
// single-instance deployments (CACHE_DRIVER=memory) and tests.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates a cache that sweeps expired entries every cleanupInterval.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (c *MemoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	val, ok := c.store.Get(key)
	if !ok {
		return false, nil
	}
	raw, ok := val.([]byte)
	if !ok {
		return false, fmt.Errorf("cached %s has unexpected type %T", key, val)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.store.Set(key, raw, ttl)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		c.store.Delete(key)
	}
	return nil
}

// DeletePattern removes keys matching a Redis glob. Like Redis, * and ?
// match any character, '/' included.
func (c *MemoryCache) DeletePattern(_ context.Context, pattern string) error {
	g, err := compileRedisGlob(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	for key := range c.store.Items() {
		if g.Match(key) {
			c.store.Delete(key)
		}
	}
	return nil
}

// compileRedisGlob rewrites the Redis dialect for gobwas/glob: [^x] becomes
// [!x] and braces, which Redis treats literally, are escaped.
func compileRedisGlob(pattern string) (glob.Glob, error) {
	var b strings.Builder
	inClass := false
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '\\' && i+1 < len(pattern):
			b.WriteByte(ch)
			i++
			b.WriteByte(pattern[i])
		case ch == '[' && !inClass:
			inClass = true
			b.WriteByte(ch)
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				b.WriteByte('!')
				i++
			}
		case ch == ']' && inClass:
			inClass = false
			b.WriteByte(ch)
		case (ch == '{' || ch == '}' || ch == ',') && !inClass:
			b.WriteByte('\\')
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}
	return glob.Compile(b.String())
}
