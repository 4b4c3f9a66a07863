// Package embcache memoizes embeddings in the key-value store, keyed by the
// model, its dimensions and the SHA-256 of the exact text sent to the provider.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simproj/internal/db"
	"github.com/kailas-cloud/simproj/internal/domain"
)

type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Space scopes cache entries to the model that produced them, so switching
// models or dimensions never serves a stale vector.
type Space struct {
	Model      string
	Dimensions int
}

func (s Space) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return domain.KeyPrefix + "emb_cache:" + s.Model + ":" + strconv.Itoa(s.Dimensions) + ":" +
		hex.EncodeToString(sum[:])
}

// CachedEmbedder wraps an embedder with a read-through cache.
// Hits report zero tokens since nothing was billed.
type CachedEmbedder struct {
	inner   domain.Embedder
	kv      kv
	space   Space
	ttl     time.Duration
	lookups *prometheus.CounterVec
	logger  *zap.Logger
}

// New creates the decorator. ttl <= 0 keeps entries until evicted.
// lookups, when set, is incremented with result="hit" or "miss".
func New(
	inner domain.Embedder,
	store kv,
	space Space,
	ttl time.Duration,
	lookups *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, kv: store, space: space, ttl: ttl, lookups: lookups, logger: logger}
}

// Embed implements domain.Embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.space.key(text)
	if vec, ok := c.load(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.save(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed implements domain.BatchEmbedder. Only the misses reach the inner
// embedder, in one batch, and results keep the input order.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	var (
		misses   []int
		pending  []string
		missKeys []string
	)
	for i, text := range texts {
		key := c.space.key(text)
		if vec, ok := c.load(ctx, key); ok {
			out.Embeddings[i] = vec
			continue
		}
		misses = append(misses, i)
		pending = append(pending, text)
		missKeys = append(missKeys, key)
	}
	if len(pending) == 0 {
		return out, nil
	}

	res, err := domain.EmbedMany(ctx, c.inner, pending)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d uncached texts: %w", len(pending), err)
	}
	if len(res.Embeddings) != len(pending) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d uncached texts: got %d vectors: %w",
			len(pending), len(res.Embeddings), domain.ErrEmbeddingProviderError)
	}

	for j, i := range misses {
		out.Embeddings[i] = res.Embeddings[j]
		c.save(ctx, missKeys[j], res.Embeddings[j])
	}
	out.PromptTokens = res.PromptTokens
	out.TotalTokens = res.TotalTokens
	return out, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// load returns the cached vector. Store failures and corrupt entries count as misses.
func (c *CachedEmbedder) load(ctx context.Context, key string) ([]float32, bool) {
	raw, err := c.kv.Get(ctx, key)
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
	}

	var vec []float32
	if err == nil && len(raw) > 0 {
		vec, err = db.DecodeVector(string(raw))
		if err != nil {
			c.logger.Warn("Dropping corrupt embedding cache entry", zap.String("key", key), zap.Error(err))
			vec = nil
		}
	}

	hit := len(vec) > 0
	c.count(hit)
	return vec, hit
}

func (c *CachedEmbedder) save(ctx context.Context, key string, vec []float32) {
	if err := c.kv.Put(ctx, key, []byte(db.EncodeVector(vec)), c.ttl); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(hit bool) {
	if c.lookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.lookups.WithLabelValues(result).Inc()
}
