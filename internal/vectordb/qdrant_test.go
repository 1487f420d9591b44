package vectordb

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/require"
)

func TestPayloadToMapPreservesZeroAndFalseValues(t *testing.T) {
	raw := qdrant.NewValueMap(map[string]any{
		"count":   0,
		"score":   0.0,
		"flag":    false,
		"name":    "",
		"present": "yes",
	})

	out := payloadToMap(raw)
	require.Equal(t, int64(0), out["count"])
	require.Equal(t, 0.0, out["score"])
	require.Equal(t, false, out["flag"])
	require.Equal(t, "", out["name"])
	require.Equal(t, "yes", out["present"])
}

func TestPayloadToMapConvertsListsAndStructs(t *testing.T) {
	raw := qdrant.NewValueMap(map[string]any{
		"tags": []any{"a", "b"},
		"meta": map[string]any{"nested": int64(3)},
	})

	out := payloadToMap(raw)
	require.Equal(t, []any{"a", "b"}, out["tags"])
	require.Equal(t, map[string]any{"nested": int64(3)}, out["meta"])
}
