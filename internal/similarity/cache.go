package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	redis "github.com/redis/go-redis/v9"

	"honeytrail/internal/logger"
	"honeytrail/internal/metrics"
)

// Cache stores search results by query key.
type Cache interface {
	Get(ctx context.Context, key string) ([]Match, bool)
	Set(ctx context.Context, key string, matches []Match)
}

// CachedSearcher memoizes a Searcher. Only successful results are cached.
type CachedSearcher struct {
	next  Searcher
	cache Cache
}

// NewCachedSearcher wraps next with cache.
func NewCachedSearcher(next Searcher, cache Cache) *CachedSearcher {
	return &CachedSearcher{next: next, cache: cache}
}

// Search returns cached matches when present, otherwise queries next.
func (c *CachedSearcher) Search(ctx context.Context, corpus, text string, k int) ([]Match, error) {
	key := QueryKey(corpus, text, k)
	if matches, ok := c.cache.Get(ctx, key); ok {
		metrics.SimilarityCache.WithLabelValues("hit").Inc()
		return matches, nil
	}
	metrics.SimilarityCache.WithLabelValues("miss").Inc()

	matches, err := c.next.Search(ctx, corpus, text, k)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, key, matches)
	return matches, nil
}

// QueryKey hashes a search request into a stable cache key.
func QueryKey(corpus, text string, k int) string {
	h := xxhash.New()
	_, _ = h.WriteString(corpus)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(strconv.Itoa(k))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(text)
	return corpus + ":" + strconv.FormatUint(h.Sum64(), 16)
}

// LRUCache is an in-process cache bounded by entry count.
type LRUCache struct {
	entries *lru.Cache[string, []Match]
}

// NewLRUCache creates an in-process cache holding up to size entries.
func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = 1024
	}
	entries, err := lru.New[string, []Match](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &LRUCache{entries: entries}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) ([]Match, bool) {
	return c.entries.Get(key)
}

func (c *LRUCache) Set(_ context.Context, key string, matches []Match) {
	c.entries.Add(key, matches)
}

// RedisCacheConfig configures the shared Redis result cache.
type RedisCacheConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisCache shares search results between pipeline processes.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache constructs a Redis-backed result cache.
func NewRedisCache(cfg RedisCacheConfig) (*RedisCache, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "honeytrail:similarity"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis similarity cache: %w", err)
	}

	return &RedisCache{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix), ttl: cfg.TTL}, nil
}

// Get loads a cached result. Redis errors are treated as misses.
func (c *RedisCache) Get(ctx context.Context, key string) ([]Match, bool) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warnf("similarity cache get failed: %v", err)
		}
		return nil, false
	}
	var matches []Match
	if err := json.Unmarshal(data, &matches); err != nil {
		logger.Warnf("similarity cache entry %s is corrupt: %v", key, err)
		return nil, false
	}
	return matches, true
}

// Set stores a result with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, matches []Match) {
	data, err := json.Marshal(matches)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		logger.Warnf("similarity cache set failed: %v", err)
	}
}

// Close closes Redis resources.
func (c *RedisCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *RedisCache) key(k string) string {
	return c.prefix + ":" + k
}
