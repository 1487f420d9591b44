// Package gemini implements the LLM adapter contract over the Google genai
// SDK for Gemini models.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"agentgw/internal/llm"
	"agentgw/internal/logging"
)

// Client wraps the genai SDK behind the llm.Provider contract.
type Client struct {
	sdk   *genai.Client
	model string
}

// New constructs a Client for the given API key and model.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Client{sdk: c, model: model}, nil
}

func (c *Client) SupportsNativeStreaming() bool { return true }

// Complete performs a unary GenerateContent call.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.sdk.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini: complete: %w", err)
	}
	return extractText(resp), nil
}

// StreamCompletion consumes the SDK's native streaming iterator. The wire
// format underneath is an array-wrapped sequence of JSON response objects
// (tolerating leading "[", trailing "]", and inter-object ","); the SDK
// already performs that parsing, so this adapter only needs to forward each
// decoded response's first candidate text.
func (c *Client) StreamCompletion(ctx context.Context, prompt string) (<-chan llm.Fragment, error) {
	out := make(chan llm.Fragment)
	go func() {
		defer close(out)
		log := logging.Component("llm.gemini")

		for resp, err := range c.sdk.Models.GenerateContentStream(ctx, c.model, genai.Text(prompt), nil) {
			if err != nil {
				log.Warn().Err(err).Msg("stream_error")
				out <- llm.Fragment{Err: fmt.Errorf("gemini: stream: %w", err)}
				return
			}
			if text := extractText(resp); text != "" {
				out <- llm.Fragment{Content: text}
			}
		}
	}()
	return out, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		out += part.Text
	}
	return out
}
