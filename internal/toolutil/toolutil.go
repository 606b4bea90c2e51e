// Package toolutil provides shared helper functions for go_tube MCP tools.
package toolutil

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// ParseLangs splits a comma-separated language preference list.
// Empty input defaults to English.
func ParseLangs(s string) []string {
	var langs []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			langs = append(langs, part)
		}
	}
	if len(langs) == 0 {
		return []string{"en"}
	}
	return langs
}

// CacheLoadJSON tries to load a cached value of type T from the engine cache.
// Returns the decoded value and true on hit; zero value and false on miss or decode error.
func CacheLoadJSON[T any](ctx context.Context, key string) (T, bool) {
	var zero T
	c := engine.Cfg.Cache
	if c == nil {
		return zero, false
	}
	raw, ok := c.Get(ctx, key, true)
	if !ok {
		return zero, false
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, false
	}
	return out, true
}

// CacheStoreJSON stores v in the engine cache under key with the given TTL.
func CacheStoreJSON[T any](ctx context.Context, key string, v T, ttl time.Duration) {
	if c := engine.Cfg.Cache; c != nil {
		c.Set(ctx, key, v, ttl)
	}
}
