package prompts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const validPromptJSON = `{
  "intents": {"greeting": {"description": "say hello", "action": "general_llm_call"}},
  "query_templates": {
    "intent_classification": "classify {message}",
    "rag_topic_inference": "topic {schema_json} {user_question}",
    "rag_dynamic_query_generation": "query",
    "fallback_topic_resolver": "fallback {schema_summary} {user_question}"
  },
  "response_templates": {"rag_final_answer": "answer {topic}"}
}`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompts.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestOpenLocalValid(t *testing.T) {
	path := writeTemp(t, validPromptJSON)
	store, err := Open(path, nil)
	require.NoError(t, err)
	snap := store.Snapshot()
	require.Contains(t, snap.QueryTemplates, "intent_classification")
	require.False(t, snap.LastLoaded.IsZero())
}

func TestOpenRejectsMissingRequiredTemplate(t *testing.T) {
	path := writeTemp(t, `{"intents":{},"query_templates":{},"response_templates":{}}`)
	_, err := Open(path, nil)
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestReloadIfLocalChanged(t *testing.T) {
	path := writeTemp(t, validPromptJSON)
	store, err := Open(path, nil)
	require.NoError(t, err)

	changed, err := store.ReloadIfLocalChanged()
	require.NoError(t, err)
	require.False(t, changed)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(path, []byte(validPromptJSON), 0o644))
	require.NoError(t, os.Chtimes(path, future, future))

	changed, err = store.ReloadIfLocalChanged()
	require.NoError(t, err)
	require.True(t, changed)
}

func TestIntentDescriptions(t *testing.T) {
	path := writeTemp(t, validPromptJSON)
	store, err := Open(path, nil)
	require.NoError(t, err)
	require.Equal(t, "- greeting: say hello", store.Snapshot().IntentDescriptions())
}
