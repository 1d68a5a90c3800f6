package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/logsentinel/logsentinel/internal/domain"
)

// Cache is a two-level read-through cache in front of
// QueryResultByTraceID: an in-process LRU (L1) backed optionally by Redis
// (L2) for sharing across replicas. Misses at both levels fall through to
// SQLite; a hit at L2 is promoted into L1.
type Cache struct {
	l1     *lru.Cache[string, domain.LogAnalysisResult]
	l2     redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// CacheConfig tunes a Cache. L2 may be nil to run L1-only.
type CacheConfig struct {
	L1Size int
	L2     redis.Cmdable
	L2TTL  time.Duration
}

// NewCache builds a Cache. L1Size defaults to 1024 if zero or negative.
func NewCache(cfg CacheConfig, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.L1Size
	if size <= 0 {
		size = 1024
	}
	l1, err := lru.New[string, domain.LogAnalysisResult](size)
	if err != nil {
		return nil, err
	}
	ttl := cfg.L2TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{l1: l1, l2: cfg.L2, ttl: ttl, logger: logger}, nil
}

// Get looks up traceID in L1 then L2, promoting an L2 hit into L1.
func (c *Cache) Get(ctx context.Context, traceID string) (domain.LogAnalysisResult, bool) {
	if result, ok := c.l1.Get(traceID); ok {
		return result, true
	}
	if c.l2 == nil {
		return domain.LogAnalysisResult{}, false
	}

	raw, err := c.l2.Get(ctx, cacheKey(traceID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache: redis get failed", "trace_id", traceID, "error", err)
		}
		return domain.LogAnalysisResult{}, false
	}

	var result domain.LogAnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Warn("cache: corrupt redis value", "trace_id", traceID, "error", err)
		return domain.LogAnalysisResult{}, false
	}

	c.l1.Add(traceID, result)
	return result, true
}

// Set writes to both levels. A Redis write failure is logged, never
// returned: the cache is a performance optimization, not a source of
// truth, so a write failure must not fail the caller's request.
func (c *Cache) Set(ctx context.Context, traceID string, result domain.LogAnalysisResult) {
	c.l1.Add(traceID, result)
	if c.l2 == nil {
		return
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("cache: failed to encode for redis", "trace_id", traceID, "error", err)
		return
	}
	if err := c.l2.Set(ctx, cacheKey(traceID), encoded, c.ttl).Err(); err != nil {
		c.logger.Warn("cache: redis set failed", "trace_id", traceID, "error", err)
	}
}

// Invalidate removes traceID from both levels, used after a fresh write
// to analysis_results so a stale classification never outlives it.
func (c *Cache) Invalidate(traceID string) {
	c.l1.Remove(traceID)
	if c.l2 == nil {
		return
	}
	if err := c.l2.Del(context.Background(), cacheKey(traceID)).Err(); err != nil {
		c.logger.Warn("cache: redis invalidate failed", "trace_id", traceID, "error", err)
	}
}

func cacheKey(traceID string) string {
	return "logsentinel:result:" + traceID
}
