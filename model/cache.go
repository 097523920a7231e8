package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"nutriplan/logger"

	goredis "github.com/redis/go-redis/v9"
)

// Cache stores query embeddings keyed by model and text.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

type RedisCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, vec []float32) error {
	raw, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// MapCache is a process-local Cache.
type MapCache struct {
	mu sync.RWMutex
	m  map[string][]float32
}

var _ Cache = (*MapCache)(nil)

func NewMapCache() *MapCache {
	return &MapCache{m: make(map[string][]float32)}
}

func (c *MapCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *MapCache) Set(ctx context.Context, key string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = vec
	return nil
}

// CachedEmbedder memoizes EmbedQuery. Cache failures are logged and fall
// through to the wrapped embedder.
type CachedEmbedder struct {
	next      Embedder
	cache     Cache
	namespace string
	log       *logger.Logger
}

var _ Embedder = (*CachedEmbedder)(nil)

func NewCachedEmbedder(next Embedder, cache Cache, namespace string, log *logger.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		next:      next,
		cache:     cache,
		namespace: namespace,
		log:       logger.OrNop(log).With("component", "embed_cache"),
	}
}

func (c *CachedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedDocuments(ctx, texts)
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if vec, ok, err := c.cache.Get(ctx, key); err != nil {
		c.log.Warn("[EMBEDDER] cache read failed", "error", err)
	} else if ok {
		return vec, nil
	}

	vec, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, vec); err != nil {
		c.log.Warn("[EMBEDDER] cache write failed", "error", err)
	}
	return vec, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.namespace + ":" + hex.EncodeToString(sum[:])
}
