package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "SERVER_ADDR", "ENABLE_CACHE", "LLM_TYPE", "ENABLE_REMOTE_PROMPTS",
		"CACHE_SIMILARITY_THRESHOLD", "HISTORY_RECENT_LENGTH")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8443", cfg.Server.Addr)
	require.False(t, cfg.Cache.Enabled)
	require.Equal(t, "openai", cfg.LLM.Type)
	require.Equal(t, 0.5, cfg.Cache.SimilarityThreshold)
	require.Equal(t, 6, cfg.History.RecentLength)
	require.Equal(t, "rag_schemas.json", cfg.RAG.SchemaPath)
	require.True(t, cfg.RAG.UseLLMFieldSel)
}

func TestLoadRejectsIncompleteRemotePrompts(t *testing.T) {
	clearEnv(t, "ENABLE_REMOTE_PROMPTS", "REMOTE_PROMPTS_PROJECT_ID", "REMOTE_PROMPTS_SA_KEY_PATH")
	os.Setenv("ENABLE_REMOTE_PROMPTS", "true")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRole(t *testing.T) {
	clearEnv(t, "CHAT_TYPE", "CHAT_MODEL", "CHAT_API_KEY")
	os.Setenv("CHAT_TYPE", "anthropic")
	os.Setenv("CHAT_MODEL", "claude-3-7-sonnet-latest")

	role := loadRole("CHAT")
	require.Equal(t, "anthropic", role.Type)
	require.Equal(t, "claude-3-7-sonnet-latest", role.Model)
}
