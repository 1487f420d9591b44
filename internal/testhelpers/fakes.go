// Package testhelpers collects small fakes shared across package tests.
package testhelpers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"

	"agentgw/internal/history"
	"agentgw/internal/llm"
)

// FakeHistoryStore is an in-memory history.Store for tests that don't need
// a real Redis/Qdrant backing.
type FakeHistoryStore struct {
	mu       sync.Mutex
	messages []history.Message
}

func (f *FakeHistoryStore) Append(_ context.Context, msg history.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *FakeHistoryStore) GetConversation(_ context.Context, conversationID string, n int) ([]history.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []history.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			matched = append(matched, m)
		}
	}
	if len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	return matched, nil
}

// FakeProvider is a fixed-response llm.Provider. StreamDeltas, when set,
// drives StreamCompletion instead of synthesizing from Resp.
type FakeProvider struct {
	Resp         string
	Err          error
	StreamDeltas []string
	Native       bool
}

func (f *FakeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return f.Resp, nil
}

func (f *FakeProvider) SupportsNativeStreaming() bool { return f.Native }

func (f *FakeProvider) StreamCompletion(ctx context.Context, prompt string) (<-chan llm.Fragment, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.StreamDeltas) == 0 {
		return llm.SyntheticStream(ctx, f, prompt)
	}
	ch := make(chan llm.Fragment, len(f.StreamDeltas))
	for _, d := range f.StreamDeltas {
		ch <- llm.Fragment{Content: d}
	}
	close(ch)
	return ch, nil
}

// FakeEmbedder returns a fixed-dimension zero vector for any input, enough
// to satisfy callers that only need an embedder present, not meaningful.
type FakeEmbedder struct {
	Dim int
}

func (f *FakeEmbedder) Dimension() int { return f.Dim }

func (f *FakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, f.Dim), nil
}

// NewTestServer starts an httptest.Server running handler. No cleanup is
// registered; the caller closes it via the returned server's Close.
func NewTestServer(handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(handler))
}

// WaitGroupDoneOnce returns a func that calls wg.Done() at most once, safe
// to defer alongside an early-return Done() in the same scope.
func WaitGroupDoneOnce(wg *sync.WaitGroup) func() {
	var once sync.Once
	return func() { once.Do(wg.Done) }
}
