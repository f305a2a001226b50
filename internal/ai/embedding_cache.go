package ai

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "emb:"

// Cache tiers reported on hits.
const (
	TierLocal = "local"
	TierRedis = "redis"
)

// EmbeddingCache is a two-level vector cache: a bounded in-process LRU in
// front of an optional shared Redis. Vectors are keyed by a digest of the
// model, dimensionality and exact input text.
type EmbeddingCache struct {
	local *lru.Cache[string, []float32]
	rdb   *redis.Client
	ttl   time.Duration
}

// NewEmbeddingCache creates a cache holding up to size vectors locally. rdb
// may be nil, in which case only the local tier is used.
func NewEmbeddingCache(size int, rdb *redis.Client, ttl time.Duration) (*EmbeddingCache, error) {
	if size <= 0 {
		size = 1024
	}
	local, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &EmbeddingCache{local: local, rdb: rdb, ttl: ttl}, nil
}

// CacheKey derives the cache key for one embedding request.
func CacheKey(model string, dimensions int, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(dimensions)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached vector and the tier that served it.
func (c *EmbeddingCache) Get(ctx context.Context, key string) ([]float32, string, bool) {
	if c == nil {
		return nil, "", false
	}
	if vec, ok := c.local.Get(key); ok {
		return vec, TierLocal, true
	}
	if c.rdb == nil {
		return nil, "", false
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, "", false
	}
	vec, err := decodeVector(raw)
	if err != nil {
		return nil, "", false
	}
	c.local.Add(key, vec)
	return vec, TierRedis, true
}

// Set stores vec in both tiers. A Redis failure is returned but the local
// tier is always written.
func (c *EmbeddingCache) Set(ctx context.Context, key string, vec []float32) error {
	if c == nil || len(vec) == 0 {
		return nil
	}
	c.local.Add(key, vec)
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Set(ctx, key, encodeVector(vec), c.ttl).Err()
}

// Len reports the number of locally cached vectors.
func (c *EmbeddingCache) Len() int {
	if c == nil {
		return 0
	}
	return c.local.Len()
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, errors.New("invalid vector encoding")
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
