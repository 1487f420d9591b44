// Package cache implements the two-tier (exact + semantic) response cache.
package cache

import (
	"context"

	"agentgw/internal/config"
	"agentgw/internal/logging"
	"agentgw/internal/vectordb"
)

// Cache is the façade over Tier A (exact) and Tier B (semantic).
type Cache struct {
	enabled  bool
	exact    *exactTier
	semantic *semanticTier
}

// New constructs the cache façade. When cfg.Enabled is false, Cache
// degrades every operation to a permanent miss/no-op, matching the original
// system's "caching disabled" behavior.
func New(cfg config.CacheConfig, vstore *vectordb.Store, embeddingDim int) (*Cache, error) {
	if !cfg.Enabled {
		return &Cache{enabled: false}, nil
	}
	exact, err := newExactTier(cfg.RedisURL, cfg.RedisTTLSeconds)
	if err != nil {
		return nil, err
	}
	semantic, err := newSemanticTier(vstore, cfg.QdrantCollection, embeddingDim, "cosine", cfg.SimilarityThreshold)
	if err != nil {
		return nil, err
	}
	return &Cache{enabled: true, exact: exact, semantic: semantic}, nil
}

// Hit is the result of a successful Check: the cached response and, when
// Tier B was consulted (i.e. Tier A missed), the query embedding so the
// caller can reuse it on a subsequent Update without re-embedding.
type Hit struct {
	Response  string
	Embedding []float32
}

// Check looks up normalized in Tier A first, then Tier B. Errors in either
// tier degrade to a miss; they are never surfaced to the caller.
func (c *Cache) Check(ctx context.Context, normalized string, embedFn func(context.Context, string) ([]float32, error)) (Hit, bool) {
	if !c.enabled {
		return Hit{}, false
	}
	log := logging.Component("cache")

	if resp, ok := c.exact.get(ctx, normalized); ok {
		return Hit{Response: resp}, true
	}

	if c.semantic.store == nil {
		return Hit{}, false
	}
	embedding, err := embedFn(ctx, normalized)
	if err != nil {
		log.Warn().Err(err).Msg("semantic_embed_failed")
		return Hit{}, false
	}
	resp, hit := c.semantic.get(ctx, embedding)
	if !hit {
		return Hit{Embedding: embedding}, false
	}
	return Hit{Response: resp, Embedding: embedding}, true
}

// Update writes response to both tiers for the given normalized prompt. The
// embedding must be supplied by the caller (reused from Check on a miss, or
// computed fresh); it may be empty only when Tier B is disabled. Only
// non-empty responses should ever reach Update — callers must check before
// calling.
func (c *Cache) Update(ctx context.Context, normalized, response string, embedding []float32) {
	if !c.enabled || response == "" {
		return
	}
	log := logging.Component("cache")

	if err := c.exact.set(ctx, normalized, response); err != nil {
		log.Warn().Err(err).Msg("exact_tier_write_failed")
	}
	if err := c.semantic.set(ctx, normalized, response, embedding); err != nil {
		log.Warn().Err(err).Msg("semantic_tier_write_failed")
	}
}
