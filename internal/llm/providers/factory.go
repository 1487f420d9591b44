// Package providers dispatches to a concrete llm.Provider implementation
// based on a backend discriminant.
package providers

import (
	"context"
	"fmt"

	"agentgw/internal/config"
	"agentgw/internal/llm"
	"agentgw/internal/llm/anthropic"
	"agentgw/internal/llm/gemini"
	"agentgw/internal/llm/ollama"
	"agentgw/internal/llm/openaicompat"
)

// Build constructs the provider named by cfg.Type, configured with model,
// API key and (for self-hosted/compatible backends) base URL.
func Build(ctx context.Context, cfg config.RoleLLMConfig) (llm.Provider, error) {
	switch cfg.Type {
	case "", "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return openaicompat.New(baseURL, cfg.APIKey, cfg.Model), nil
	case "groq":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.groq.com/openai/v1"
		}
		return openaicompat.New(baseURL, cfg.APIKey, cfg.Model), nil
	case "xai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.x.ai/v1"
		}
		return openaicompat.New(baseURL, cfg.APIKey, cfg.Model), nil
	case "deepseek":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.deepseek.com/v1"
		}
		return openaicompat.New(baseURL, cfg.APIKey, cfg.Model), nil
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.New(baseURL, cfg.Model), nil
	case "anthropic":
		return anthropic.New(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case "gemini":
		return gemini.New(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("providers: unsupported llm type %q", cfg.Type)
	}
}
