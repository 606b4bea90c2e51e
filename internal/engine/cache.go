package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// Response cache. Keys are namespaced "prefix:video_id"; values are JSON
// documents carrying their own access metadata so eviction needs no
// secondary index. Backed by Redis when available, an in-process map
// otherwise. Every cache failure is a miss, never an error surfaced to
// the caller.

// Key namespaces.
const (
	PrefixTranscript = "transcript"
	PrefixVideoInfo  = "video_info"
	PrefixLanguages  = "languages"
	PrefixSummary    = "summary"
)

// Metadata fields injected into stored JSON objects.
const (
	metaCachedAt     = "_cached_at"
	metaLastAccessed = "_last_accessed"
	metaAccessCount  = "_access_count"
)

// Default TTLs per namespace.
const (
	TTLTranscript = 24 * time.Hour
	TTLVideoInfo  = 12 * time.Hour
	TTLLanguages  = 24 * time.Hour
	TTLSummary    = 6 * time.Hour
)

// TranscriptKey returns the cache key for a video transcript.
func TranscriptKey(videoID string) string { return PrefixTranscript + ":" + videoID }

// VideoInfoKey returns the cache key for video metadata.
func VideoInfoKey(videoID string) string { return PrefixVideoInfo + ":" + videoID }

// LanguagesKey returns the cache key for available caption languages.
func LanguagesKey(videoID string) string { return PrefixLanguages + ":" + videoID }

// SummaryKey returns the cache key for a summary. Different type/length
// combinations cache independently.
func SummaryKey(videoID, summaryType, summaryLength string) string {
	return PrefixSummary + ":" + videoID + ":" + summaryType + ":" + summaryLength
}

// store is the minimal key-value surface the cache needs from a backend.
// Values are JSON text. MemoryUsage returns (0, 0, nil) when the backend
// cannot report memory, which shifts capacity enforcement to key count.
type store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) ([]string, error)
	Len(ctx context.Context) (int, error)
	MemoryUsage(ctx context.Context) (used, max int64, err error)
	FlushAll(ctx context.Context) error
	Close() error
}

// Cache is the namespaced response cache with capacity enforcement.
type Cache struct {
	st               store
	maxMemoryPercent float64
	maxKeys          int

	hits         atomic.Int64
	misses       atomic.Int64
	evictionRuns atomic.Int64
	evictedKeys  atomic.Int64
}

// NewCache connects to Redis at redisURL and falls back to an in-process
// store when the URL is empty or the server is unreachable.
func NewCache(redisURL string, maxMemoryPercent float64, maxKeys int) *Cache {
	st := openStore(redisURL)
	return NewCacheWithStore(st, maxMemoryPercent, maxKeys)
}

// NewCacheWithStore builds a cache over an explicit backend.
func NewCacheWithStore(st store, maxMemoryPercent float64, maxKeys int) *Cache {
	if maxMemoryPercent <= 0 {
		maxMemoryPercent = 90
	}
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &Cache{st: st, maxMemoryPercent: maxMemoryPercent, maxKeys: maxKeys}
}

// Set stores value under key after stamping access metadata, evicting
// first if the backend is over capacity. Returns false on any failure.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	c.evictIfNeeded(ctx)

	doc, err := stampMetadata(value)
	if err != nil {
		slog.Warn("cache: value not serializable, skipping", slog.String("key", key), slog.Any("error", err))
		return false
	}
	if err := c.st.Set(ctx, key, doc, ttl); err != nil {
		slog.Warn("cache: set failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

// Get returns the raw JSON stored under key. With updateStats the access
// metadata is bumped and written back asynchronously; the read path
// never waits on it.
func (c *Cache) Get(ctx context.Context, key string, updateStats bool) (json.RawMessage, bool) {
	raw, ok, err := c.st.Get(ctx, key)
	if err != nil {
		slog.Warn("cache: get failed", slog.String("key", key), slog.Any("error", err))
	}
	if !ok || err != nil {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)

	if updateStats {
		if bumped, ok := bumpAccessStats(raw); ok {
			go c.writeBack(context.WithoutCancel(ctx), key, bumped)
		}
	}
	return json.RawMessage(raw), true
}

// Delete removes key. Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	if err := c.st.Delete(ctx, key); err != nil {
		slog.Warn("cache: delete failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

// Clear flushes the entire cache.
func (c *Cache) Clear(ctx context.Context) bool {
	if err := c.st.FlushAll(ctx); err != nil {
		slog.Warn("cache: clear failed", slog.Any("error", err))
		return false
	}
	slog.Info("cache: cleared")
	return true
}

// Close releases the backend connection.
func (c *Cache) Close() error {
	return c.st.Close()
}

func (c *Cache) writeBack(ctx context.Context, key, doc string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.st.Set(ctx, key, doc, 0); err != nil {
		slog.Debug("cache: stats write-back failed", slog.String("key", key), slog.Any("error", err))
	}
}

// stampMetadata marshals value and, when it is a JSON object, injects
// access metadata: _cached_at is set once, _last_accessed refreshed,
// _access_count preserved (0 for new entries). Non-object values are
// stored as-is.
func stampMetadata(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return string(raw), nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if _, ok := doc[metaCachedAt]; !ok {
		doc[metaCachedAt] = now
	}
	doc[metaLastAccessed] = now
	if _, ok := doc[metaAccessCount]; !ok {
		doc[metaAccessCount] = 0
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// bumpAccessStats increments _access_count and refreshes _last_accessed
// in a stored document. Non-object documents are left alone.
func bumpAccessStats(raw string) (string, bool) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", false
	}
	count := int64(0)
	if n, ok := doc[metaAccessCount].(float64); ok {
		count = int64(n)
	}
	doc[metaAccessCount] = count + 1
	doc[metaLastAccessed] = time.Now().UTC().Format(time.RFC3339)
	out, err := json.Marshal(doc)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// --- Eviction ---

// evictCandidate is one key's ranking data. Corrupt or metadata-less
// entries get the zero time and count, ranking them first for removal.
type evictCandidate struct {
	key          string
	lastAccessed time.Time
	accessCount  int64
}

// evictIfNeeded enforces capacity before a write. Memory percentage is
// checked when the backend reports it, key count otherwise.
func (c *Cache) evictIfNeeded(ctx context.Context) {
	used, max, err := c.st.MemoryUsage(ctx)
	if err == nil && max > 0 {
		pct := float64(used) / float64(max) * 100
		if pct <= c.maxMemoryPercent {
			return
		}
		slog.Info("cache: memory over limit, evicting", slog.String("used", formatPercent(pct)))
		c.evict(ctx)
		return
	}
	n, err := c.st.Len(ctx)
	if err != nil || n <= c.maxKeys {
		return
	}
	slog.Info("cache: key count over limit, evicting", slog.Int("keys", n), slog.Int("max_keys", c.maxKeys))
	c.evict(ctx)
}

// evict removes the coldest 20% of entries (at least one), ranked by
// (last_accessed, access_count) ascending.
func (c *Cache) evict(ctx context.Context) {
	keys, err := c.st.Keys(ctx)
	if err != nil || len(keys) == 0 {
		return
	}

	candidates := make([]evictCandidate, 0, len(keys))
	for _, key := range keys {
		cand := evictCandidate{key: key}
		if raw, ok, err := c.st.Get(ctx, key); ok && err == nil {
			var doc map[string]any
			if json.Unmarshal([]byte(raw), &doc) == nil {
				// _cached_at stands in for entries never read since the stamp.
				for _, field := range []string{metaLastAccessed, metaCachedAt} {
					if s, ok := doc[field].(string); ok {
						if ts, err := time.Parse(time.RFC3339, s); err == nil {
							cand.lastAccessed = ts
							break
						}
					}
				}
				if n, ok := doc[metaAccessCount].(float64); ok {
					cand.accessCount = int64(n)
				}
			}
		}
		candidates = append(candidates, cand)
	}

	victims := rankForEviction(candidates)
	if len(victims) == 0 {
		return
	}
	if err := c.st.Delete(ctx, victims...); err != nil {
		slog.Warn("cache: eviction delete failed", slog.Any("error", err))
		return
	}
	c.evictionRuns.Add(1)
	c.evictedKeys.Add(int64(len(victims)))

	byPrefix := map[string]int{}
	for _, k := range victims {
		byPrefix[keyPrefix(k)]++
	}
	slog.Info("cache: evicted entries",
		slog.Int("removed", len(victims)),
		slog.Int("remaining", len(candidates)-len(victims)),
		slog.Any("by_prefix", byPrefix),
	)
}

// rankForEviction sorts candidates coldest-first and returns the keys of
// the 20% to remove, never fewer than one.
func rankForEviction(candidates []evictCandidate) []string {
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.lastAccessed.Equal(b.lastAccessed) {
			return a.lastAccessed.Before(b.lastAccessed)
		}
		return a.accessCount < b.accessCount
	})
	n := len(candidates) / 5
	if n < 1 {
		n = 1
	}
	victims := make([]string, n)
	for i := 0; i < n; i++ {
		victims[i] = candidates[i].key
	}
	return victims
}

func keyPrefix(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// --- Stats ---

// CacheStats is a point-in-time snapshot for the cache_stats tool.
type CacheStats struct {
	Backend          string         `json:"backend"`
	TotalKeys        int            `json:"total_keys"`
	KeysByPrefix     map[string]int `json:"keys_by_prefix,omitempty"`
	MemoryPercent    float64        `json:"memory_percent,omitempty"`
	MaxMemoryPercent float64        `json:"max_memory_percent"`
	MaxKeys          int            `json:"max_keys"`
	Hits             int64          `json:"hits"`
	Misses           int64          `json:"misses"`
	EvictionRuns     int64          `json:"eviction_runs"`
	EvictedKeys      int64          `json:"evicted_keys"`
}

// Stats reports cache occupancy and hit counters.
func (c *Cache) Stats(ctx context.Context) CacheStats {
	s := CacheStats{
		Backend:          c.backendName(),
		MaxMemoryPercent: c.maxMemoryPercent,
		MaxKeys:          c.maxKeys,
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		EvictionRuns:     c.evictionRuns.Load(),
		EvictedKeys:      c.evictedKeys.Load(),
	}
	if keys, err := c.st.Keys(ctx); err == nil {
		s.TotalKeys = len(keys)
		s.KeysByPrefix = map[string]int{}
		for _, k := range keys {
			s.KeysByPrefix[keyPrefix(k)]++
		}
	}
	if used, max, err := c.st.MemoryUsage(ctx); err == nil && max > 0 {
		s.MemoryPercent = float64(used) / float64(max) * 100
	}
	return s
}

func (c *Cache) backendName() string {
	if _, ok := c.st.(*redisStore); ok {
		return "redis"
	}
	return "memory"
}

// CacheHits returns the process-lifetime hit counter.
func (c *Cache) CacheHits() int64 { return c.hits.Load() }

// CacheMisses returns the process-lifetime miss counter.
func (c *Cache) CacheMisses() int64 { return c.misses.Load() }
