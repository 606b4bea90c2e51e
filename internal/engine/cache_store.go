package engine

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// openStore connects to Redis, falling back to the in-process store when
// the URL is empty or the server does not answer a ping in time.
func openStore(redisURL string) store {
	if redisURL == "" {
		slog.Info("cache: no redis URL, using in-process store")
		return newMemStore()
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Warn("cache: invalid redis URL, using in-process store", slog.Any("error", err))
		return newMemStore()
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("cache: redis unreachable, using in-process store", slog.Any("error", err))
		_ = rdb.Close()
		return newMemStore()
	}
	slog.Info("cache: connected to redis", slog.String("addr", opt.Addr))
	return &redisStore{rdb: rdb}
}

// --- Redis backend ---

type redisStore struct {
	rdb *redis.Client
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *redisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, "*", 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (s *redisStore) Len(ctx context.Context) (int, error) {
	n, err := s.rdb.DBSize(ctx).Result()
	return int(n), err
}

// MemoryUsage parses used_memory and maxmemory out of INFO memory.
// maxmemory 0 means the server has no limit; key-count enforcement
// applies instead.
func (s *redisStore) MemoryUsage(ctx context.Context) (int64, int64, error) {
	info, err := s.rdb.Info(ctx, "memory").Result()
	if err != nil {
		return 0, 0, err
	}
	var used, max int64
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "used_memory:"); ok {
			used, _ = strconv.ParseInt(v, 10, 64)
		} else if v, ok := strings.CutPrefix(line, "maxmemory:"); ok {
			max, _ = strconv.ParseInt(v, 10, 64)
		}
	}
	return used, max, nil
}

func (s *redisStore) FlushAll(ctx context.Context) error {
	return s.rdb.FlushDB(ctx).Err()
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}

// --- In-process backend ---

// memStore is a map-backed store for tests and redis-less deployments.
// Expiry is checked lazily on read.
type memStore struct {
	mu sync.RWMutex
	m  map[string]memEntry
}

type memEntry struct {
	value     string
	expiresAt time.Time
}

func newMemStore() *memStore {
	return &memStore{m: make(map[string]memEntry)}
}

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.m, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *memStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.m[key] = e
	s.mu.Unlock()
	return nil
}

func (s *memStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.m, k)
	}
	s.mu.Unlock()
	return nil
}

func (s *memStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *memStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m), nil
}

func (s *memStore) MemoryUsage(context.Context) (int64, int64, error) {
	return 0, 0, nil
}

func (s *memStore) FlushAll(context.Context) error {
	s.mu.Lock()
	s.m = make(map[string]memEntry)
	s.mu.Unlock()
	return nil
}

func (s *memStore) Close() error { return nil }
