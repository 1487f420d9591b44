package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeterministicEmbedIsStable(t *testing.T) {
	e := NewDeterministic(32, true)
	a, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 32)
}

func TestDeterministicEmbedDiffers(t *testing.T) {
	e := NewDeterministic(32, false)
	a, _ := e.Embed(context.Background(), "alpha")
	b, _ := e.Embed(context.Background(), "beta")
	require.NotEqual(t, a, b)
}

func TestDeterministicEmbedNormalizes(t *testing.T) {
	e := NewDeterministic(16, true)
	v, err := e.Embed(context.Background(), "normalize me please")
	require.NoError(t, err)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	require.InDelta(t, 1.0, sum, 1e-4)
}
