package cache

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"agentgw/internal/vectordb"
)

const (
	fieldNormalizedPrompt = "normalized_prompt"
	fieldResponse         = "response"
)

// semanticTier is the Tier B vector-similarity cache. A hit requires
// score >= threshold and a successfully extracted response field.
type semanticTier struct {
	store      *vectordb.Store
	collection string
	dimension  int
	metric     string
	threshold  float32
}

func newSemanticTier(store *vectordb.Store, collection string, dimension int, metric string, threshold float64) (*semanticTier, error) {
	if store == nil {
		return &semanticTier{}, nil
	}
	if err := store.EnsureCollection(context.Background(), collection, dimension, metric); err != nil {
		return nil, err
	}
	return &semanticTier{
		store:      store,
		collection: collection,
		dimension:  dimension,
		metric:     metric,
		threshold:  float32(threshold),
	}, nil
}

// get runs a top-1 similarity search for embedding and returns the cached
// response on a hit. The embedding itself is not returned; Cache.Check keeps
// it and hands it back in Hit.
func (t *semanticTier) get(ctx context.Context, embedding []float32) (response string, hit bool) {
	if t.store == nil {
		return "", false
	}
	hits, err := t.store.Search(ctx, t.collection, embedding, 1, &t.threshold, nil)
	if err != nil || len(hits) == 0 {
		return "", false
	}
	raw, ok := hits[0].Payload[fieldResponse].(string)
	if !ok || raw == "" {
		return "", false
	}
	return unwrapEnvelope(raw), true
}

func (t *semanticTier) set(ctx context.Context, normalized, response string, embedding []float32) error {
	if t.store == nil || len(embedding) == 0 {
		return nil
	}
	id := uuid.NewString()
	return t.store.Upsert(ctx, t.collection, id, embedding, map[string]any{
		fieldNormalizedPrompt: normalized,
		fieldResponse:         response,
	})
}

// unwrapEnvelope strips one level of the legacy JSON envelope some entries
// were stored with, e.g. {"response":"...","thinking":"..."}. Fresh writes
// use a flat response string and pass through unchanged.
func unwrapEnvelope(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !strings.Contains(trimmed, `"response"`) {
		return raw
	}
	var envelope struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return raw
	}
	return envelope.Response
}
