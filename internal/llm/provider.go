// Package llm defines the unified completion/streaming surface implemented
// by each of the seven backend adapters.
package llm

import "context"

// Fragment is one piece of a streaming completion. Err is set on the final
// item of a failed stream and the fragment channel is closed immediately
// after.
type Fragment struct {
	Content string
	Err     error
}

// Provider is the capability surface an Agent drives. Implementations are
// selected by a discriminant string at construction time (see providers.Build).
type Provider interface {
	// Complete performs a one-shot completion.
	Complete(ctx context.Context, prompt string) (string, error)

	// StreamCompletion returns a channel of fragments. The channel is closed
	// when the stream ends, normally or with a terminal error fragment.
	StreamCompletion(ctx context.Context, prompt string) (<-chan Fragment, error)

	// SupportsNativeStreaming reports whether StreamCompletion streams
	// incrementally from the backend, versus synthesizing a single fragment
	// from Complete.
	SupportsNativeStreaming() bool
}

// SyntheticStream wraps a unary Complete call as a single-fragment stream,
// the fallback behavior for backends without native streaming support.
func SyntheticStream(ctx context.Context, p Provider, prompt string) (<-chan Fragment, error) {
	ch := make(chan Fragment, 1)
	go func() {
		defer close(ch)
		text, err := p.Complete(ctx, prompt)
		if err != nil {
			ch <- Fragment{Err: err}
			return
		}
		ch <- Fragment{Content: text}
	}()
	return ch, nil
}
