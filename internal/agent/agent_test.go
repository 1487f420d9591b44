package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"agentgw/internal/cache"
	"agentgw/internal/config"
	"agentgw/internal/prompts"
	"agentgw/internal/testhelpers"
)

const testPromptConfig = `{
  "intents": {
    "chat": {"description": "general conversation", "action": "general_llm_call"}
  },
  "query_templates": {
    "intent_classification": "{message} {intent_descriptions}",
    "rag_topic_inference": "x",
    "rag_dynamic_query_generation": "x",
    "fallback_topic_resolver": "x"
  },
  "response_templates": {
    "rag_final_answer": "x"
  }
}`

func newTestStore(t *testing.T) *prompts.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompts.json")
	require.NoError(t, os.WriteFile(path, []byte(testPromptConfig), 0o600))
	store, err := prompts.Open(path, nil)
	require.NoError(t, err)
	return store
}

func newDisabledCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New(config.CacheConfig{Enabled: false}, nil, 0)
	require.NoError(t, err)
	return c
}

func TestProcessMessageDispatchesGeneralChat(t *testing.T) {
	provider := &testhelpers.FakeProvider{Resp: "chat"}
	history := &testhelpers.FakeHistoryStore{}
	ag := &Agent{
		Prompts:  newTestStore(t),
		Cache:    newDisabledCache(t),
		History:  history,
		Chat:     provider,
		Embedder: &testhelpers.FakeEmbedder{Dim: 4},
	}

	reply, err := ag.ProcessMessage(context.Background(), "conv-1", "hello there")
	require.NoError(t, err)
	require.Equal(t, "chat", reply)

	msgs, err := history.GetConversation(context.Background(), "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "user", msgs[0].Role)
	require.Equal(t, "assistant", msgs[1].Role)
	require.Equal(t, "chat", msgs[1].Content)
}

func TestProcessMessageUnknownIntentFails(t *testing.T) {
	provider := &testhelpers.FakeProvider{Resp: "nonexistent_intent"}
	ag := &Agent{
		Prompts:  newTestStore(t),
		Cache:    newDisabledCache(t),
		History:  &testhelpers.FakeHistoryStore{},
		Chat:     provider,
		Embedder: &testhelpers.FakeEmbedder{Dim: 4},
	}

	_, err := ag.ProcessMessage(context.Background(), "conv-1", "hello")
	require.ErrorIs(t, err, ErrIntentNotFound)
}

func TestProcessMessageStreamForwardsRawFragmentsAndCleansFinal(t *testing.T) {
	provider := &testhelpers.FakeProvider{Resp: "chat", StreamDeltas: []string{"<think>XYZ</think>answer"}}
	ag := &Agent{
		Prompts:  newTestStore(t),
		Cache:    newDisabledCache(t),
		History:  &testhelpers.FakeHistoryStore{},
		Chat:     provider,
		Embedder: &testhelpers.FakeEmbedder{Dim: 4},
	}

	frags, err := ag.ProcessMessageStream(context.Background(), "conv-2", "hello")
	require.NoError(t, err)

	var content []string
	var final string
	for f := range frags {
		require.NoError(t, f.Err)
		if f.Done {
			final = f.Final
			continue
		}
		content = append(content, f.Content)
	}
	require.Equal(t, []string{"<think>XYZ</think>answer"}, content)
	// Stored history/cache value is post-demux: the <think> tags never
	// reach the cache or the transport's final-answer bookkeeping.
	require.Equal(t, "answer", final)
}

func TestProcessMessageStreamStripsThinkTagsBeforeHistoryAppend(t *testing.T) {
	provider := &testhelpers.FakeProvider{Resp: "chat", StreamDeltas: []string{"<think>reasoning</think>", "final answer"}}
	history := &testhelpers.FakeHistoryStore{}
	ag := &Agent{
		Prompts:  newTestStore(t),
		Cache:    newDisabledCache(t),
		History:  history,
		Chat:     provider,
		Embedder: &testhelpers.FakeEmbedder{Dim: 4},
	}

	frags, err := ag.ProcessMessageStream(context.Background(), "conv-3", "hello")
	require.NoError(t, err)
	for f := range frags {
		require.NoError(t, f.Err)
	}

	msgs, err := history.GetConversation(context.Background(), "conv-3", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "final answer", msgs[1].Content)
}
