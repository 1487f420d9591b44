package openaicompat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"agentgw/internal/llm"
)

func TestStreamCompletionParsesSSEDeltasAndStopsOnFinishReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range []string{
			`data: {"choices":[{"delta":{"content":"hel"}}]}`,
			`data: {"choices":[{"delta":{"content":"lo"}}]}`,
			`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
			`data: [DONE]`,
		} {
			_, _ = w.Write([]byte(line + "\n\n"))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "m")
	frags, err := c.StreamCompletion(context.Background(), "hi")
	require.NoError(t, err)

	var got []string
	for f := range frags {
		require.NoError(t, f.Err)
		got = append(got, f.Content)
	}
	require.Equal(t, []string{"hel", "lo"}, got)
}

func TestStreamCompletionIgnoresBlankLinesAndUnparsableChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range []string{
			"",
			`data: not-json`,
			`data: {"choices":[{"delta":{"content":"ok"}}]}`,
			`data: [DONE]`,
		} {
			_, _ = w.Write([]byte(line + "\n\n"))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "m")
	frags, err := c.StreamCompletion(context.Background(), "hi")
	require.NoError(t, err)

	var got []llm.Fragment
	for f := range frags {
		got = append(got, f)
	}
	require.Len(t, got, 1)
	require.NoError(t, got[0].Err)
	require.Equal(t, "ok", got[0].Content)
}

func TestStreamCompletionReturnsErrorOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "bad-key", "m")
	_, err := c.StreamCompletion(context.Background(), "hi")
	require.Error(t, err)
}
