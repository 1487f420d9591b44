package history

import (
	"context"
	"fmt"

	"agentgw/internal/config"
	"agentgw/internal/llm/embedder"
	"agentgw/internal/vectordb"
)

// Build constructs the configured history Store: "redis" (keyed-list,
// default) or "vector" (Qdrant-backed).
func Build(ctx context.Context, cfg config.HistoryConfig, vstore *vectordb.Store, emb embedder.Embedder) (Store, error) {
	switch cfg.Backend {
	case "", "redis":
		return NewRedisStore(cfg.RedisURL, cfg.RedisPrefix)
	case "vector":
		if vstore == nil {
			return nil, fmt.Errorf("history: vector backend requires a vector store")
		}
		return NewVectorStore(ctx, vstore, emb, cfg.Collection, "cosine")
	default:
		return nil, fmt.Errorf("history: unknown backend %q", cfg.Backend)
	}
}
