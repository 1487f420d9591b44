package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompleteReturnsResponseField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		_, _ = w.Write([]byte(`{"response":"hello there","done":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "llama3")
	reply, err := c.Complete(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "hello there", reply)
}

func TestCompleteReturnsErrorOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "llama3")
	_, err := c.Complete(context.Background(), "hi")
	require.Error(t, err)
}

func TestStreamCompletionJoinsNDJSONChunksUntilDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, line := range []string{
			`{"response":"foo","done":false}`,
			`{"response":"bar","done":false}`,
			`{"response":"","done":true}`,
		} {
			_, _ = w.Write([]byte(line + "\n"))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "llama3")
	frags, err := c.StreamCompletion(context.Background(), "hi")
	require.NoError(t, err)

	var got []string
	for f := range frags {
		require.NoError(t, f.Err)
		got = append(got, f.Content)
	}
	require.Equal(t, []string{"foo", "bar"}, got)
}
