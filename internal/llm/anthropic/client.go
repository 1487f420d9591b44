// Package anthropic implements the LLM adapter contract over the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"agentgw/internal/llm"
	"agentgw/internal/logging"
)

const defaultMaxTokens int64 = 1024

// Client wraps the Anthropic SDK behind the llm.Provider contract.
type Client struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
}

// New constructs a Client for the given API key and model. baseURL overrides
// the SDK's default endpoint when non-empty, letting this adapter target a
// self-hosted proxy or (in tests) an httptest server.
func New(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(baseURL, "/")))
	}
	return &Client{
		sdk:       anthropic.NewClient(opts...),
		model:     model,
		maxTokens: defaultMaxTokens,
	}
}

func (c *Client) SupportsNativeStreaming() bool { return true }

// Complete performs a unary message call.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: complete: %w", err)
	}
	var out string
	for _, block := range resp.Content {
		if text := block.AsAny(); text != nil {
			if tb, ok := text.(anthropic.TextBlock); ok {
				out += tb.Text
			}
		}
	}
	return out, nil
}

// StreamCompletion consumes the SDK's native event stream and forwards text
// deltas as they arrive.
func (c *Client) StreamCompletion(ctx context.Context, prompt string) (<-chan llm.Fragment, error) {
	stream := c.sdk.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})

	out := make(chan llm.Fragment)
	go func() {
		defer close(out)
		defer func() { _ = stream.Close() }()
		log := logging.Component("llm.anthropic")

		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					out <- llm.Fragment{Content: delta.Text}
				}
			}
		}
		if err := stream.Err(); err != nil {
			log.Warn().Err(err).Msg("stream_error")
			out <- llm.Fragment{Err: fmt.Errorf("anthropic: stream: %w", err)}
		}
	}()
	return out, nil
}
