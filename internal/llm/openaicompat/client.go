// Package openaicompat implements the LLM adapter contract for OpenAI and
// the OpenAI-compatible SSE backends (groq, xai, deepseek), which all emit
// "data: {...}" lines terminated by "data: [DONE]".
package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"agentgw/internal/llm"
	"agentgw/internal/logging"
)

// Client drives a chat-completions endpoint that speaks the OpenAI wire
// format, using the real openai-go/v2 SDK for unary completions and a
// tolerant manual SSE reader for streaming — mirroring the teacher's
// chatStreamSSEFallback approach for self-hosted/compatible servers.
type Client struct {
	sdk     openai.Client
	httpc   *http.Client
	baseURL string
	apiKey  string
	model   string
}

// New constructs a Client. baseURL is the API root (e.g.
// "https://api.openai.com/v1", "https://api.groq.com/openai/v1",
// "https://api.x.ai/v1", "https://api.deepseek.com/v1"); model is the
// default chat model for this backend.
func New(baseURL, apiKey, model string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(baseURL, "/")))
	}
	return &Client{
		sdk:     openai.NewClient(opts...),
		httpc:   &http.Client{Timeout: 2 * time.Minute},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

func (c *Client) SupportsNativeStreaming() bool { return true }

// Complete performs a unary chat completion via the SDK.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.sdk.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openaicompat: complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

type sseDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// StreamCompletion issues a raw streaming request and parses SSE lines per
// spec: skip blanks and "data: [DONE]"; strip "data: "; parse JSON; extract
// choices[].delta.content; terminate on finish_reason == "stop".
func (c *Client) StreamCompletion(ctx context.Context, prompt string) (<-chan llm.Fragment, error) {
	body, err := json.Marshal(map[string]any{
		"model":  c.model,
		"stream": true,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openaicompat: stream request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("openaicompat: stream status %d", resp.StatusCode)
	}

	out := make(chan llm.Fragment)
	go func() {
		defer resp.Body.Close()
		defer close(out)
		log := logging.Component("llm.openaicompat")

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "data: [DONE]" {
				return
			}
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			var chunk sseDelta
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if content := chunk.Choices[0].Delta.Content; content != "" {
				out <- llm.Fragment{Content: content}
			}
			if chunk.Choices[0].FinishReason == "stop" {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Warn().Err(err).Msg("stream_scan_error")
			out <- llm.Fragment{Err: err}
		}
	}()
	return out, nil
}
