package httpapi

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"agentgw/internal/prompts"
)

const minimalPromptConfig = `{
  "intents": {},
  "query_templates": {
    "intent_classification": "x",
    "rag_topic_inference": "x",
    "rag_dynamic_query_generation": "x",
    "fallback_topic_resolver": "x"
  },
  "response_templates": {
    "rag_final_answer": "x"
  }
}`

func openTestStore(t *testing.T) (*prompts.Store, string) {
	t.Helper()
	path := t.TempDir() + "/prompts.json"
	require.NoError(t, os.WriteFile(path, []byte(minimalPromptConfig), 0o600))
	store, err := prompts.Open(path, nil)
	require.NoError(t, err)
	return store, path
}

func TestReloadPromptsLocalUnchanged(t *testing.T) {
	store, _ := openTestStore(t)
	srv := NewServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/reload-prompts?source=local", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"Local prompts unchanged"`)
}

func TestReloadPromptsLocalChanged(t *testing.T) {
	store, path := openTestStore(t)
	srv := NewServer(store)

	// mtime granularity on some filesystems is coarse; back-date the
	// snapshot's LastLoaded by sleeping past it isn't reliable in CI, so
	// instead force a touch with a definitely-later mtime.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(path, []byte(minimalPromptConfig), 0o600))
	require.NoError(t, os.Chtimes(path, future, future))

	req := httptest.NewRequest(http.MethodGet, "/api/reload-prompts?source=local", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"Local prompts reloaded"`)
}

func TestReloadPromptsRemoteNotEnabled(t *testing.T) {
	store, _ := openTestStore(t)
	srv := NewServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/reload-prompts?source=remote", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), `"Remote reload failed`)
}

func TestReloadPromptsRejectsUnknownSource(t *testing.T) {
	store, _ := openTestStore(t)
	srv := NewServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/reload-prompts?source=bogus", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReloadPromptsConcurrentRequestGets503(t *testing.T) {
	store, _ := openTestStore(t)
	srv := NewServer(store)
	srv.adminMu.Lock()
	defer srv.adminMu.Unlock()

	req := httptest.NewRequest(http.MethodGet, "/api/reload-prompts?source=local", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
