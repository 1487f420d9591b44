// Package embedder converts text into embedding vectors for the cache,
// history, and RAG components.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"strings"
	"time"
)

// Embedder is the single-text embedding contract shared by the cache,
// history, and RAG packages — each only ever embeds one string at a time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// clientEmbedder calls an OpenAI-compatible /embeddings endpoint. It serves
// ollama, openai, groq, xai, and deepseek alike (all accept this payload
// shape for their embedding models).
type clientEmbedder struct {
	httpc   *http.Client
	baseURL string
	apiKey  string
	model   string
	dim     int
}

// NewClient constructs an Embedder against an OpenAI-compatible embeddings
// endpoint.
func NewClient(baseURL, apiKey, model string, dim int) Embedder {
	return &clientEmbedder{
		httpc:   &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		dim:     dim,
	}
}

func (c *clientEmbedder) Dimension() int { return c.dim }

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *clientEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"input": text,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedder: status %d", resp.StatusCode)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("embedder: decode: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedder: empty response")
	}
	return parsed.Data[0].Embedding, nil
}

// deterministicEmbedder hashes byte 3-grams into a fixed-size vector,
// suitable for tests that need stable, reproducible vectors without a live
// embedding backend.
type deterministicEmbedder struct {
	dim       int
	normalize bool
}

// NewDeterministic constructs a deterministic Embedder of the given
// dimension. If normalize is true, vectors are L2-normalized.
func NewDeterministic(dim int, normalize bool) Embedder {
	if dim <= 0 {
		dim = 64
	}
	return &deterministicEmbedder{dim: dim, normalize: normalize}
}

func (d *deterministicEmbedder) Dimension() int { return d.dim }

func (d *deterministicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, d.dim)
	b := []byte(text)
	if len(b) == 0 {
		return v, nil
	}
	if len(b) < 3 {
		add(b, v)
	} else {
		for i := 0; i <= len(b)-3; i++ {
			add(b[i:i+3], v)
		}
	}
	if d.normalize {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if sum > 0 {
			inv := float32(1.0 / math.Sqrt(sum))
			for i := range v {
				v[i] *= inv
			}
		}
	}
	return v, nil
}

func add(gram []byte, v []float32) {
	h := fnv.New64a()
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}
