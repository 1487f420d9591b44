// Package thinkdemux implements the thinking-channel demultiplexer: the
// state machine that separates a model's hidden <think>...</think>
// reasoning from its user-visible answer, across arbitrary chunk
// boundaries. Shared by the WebSocket transport (incremental, per-chunk use
// for live streaming) and the Agent (single-shot use to compute the final
// cached/stored user-visible text).
package thinkdemux

import "strings"

const (
	openTag  = "<think>"
	closeTag = "</think>"

	// flushThreshold triggers a size-bound flush of the demux buffer when no
	// tag match is in progress, bounding per-fragment latency.
	flushThreshold = 20
)

// demuxState is the thinking-channel state machine's current mode.
type demuxState int

const (
	stateOutside demuxState = iota
	stateInside
)

// FrameKind discriminates the outbound frames a Demux can emit.
type FrameKind int

const (
	FrameThinking FrameKind = iota
	FramePartial
)

// Frame is one piece of demultiplexed output, ready to become a
// thinking_fragment or partial protocol frame (see §4.7).
type Frame struct {
	Kind    FrameKind
	Content string
}

// Demux parses a streamed model output into thinking and partial segments,
// spanning <think>/</think> tags across arbitrary chunk boundaries. Not
// goroutine-safe; owned by a single connection's turn.
//
// A candidate tag prefix at the end of the buffer is held whole (nothing
// split off) until it either completes into a real tag or is invalidated by
// later bytes; this means a stray "<" that never becomes a real tag is not
// lost, it is simply flushed later with the rest of the buffer. Only a
// *confirmed* <think> match discards the OUTSIDE text preceding it (models
// using the think-tag convention never emit real user-visible preamble
// ahead of the tag); a confirmed </think> match always surfaces its
// preceding INSIDE text as thinking_fragment, per §4.7.
type Demux struct {
	state   demuxState
	buf     strings.Builder
	rawFull strings.Builder
}

// NewDemux constructs a Demux starting in the OUTSIDE state.
func NewDemux() *Demux {
	return &Demux{}
}

// Raw returns the full, unmodified model output observed so far.
func (d *Demux) Raw() string {
	return d.rawFull.String()
}

// Feed appends chunk and returns zero or more frames to deliver immediately.
// Call Flush once the upstream stream ends to drain any residual buffer.
func (d *Demux) Feed(chunk string) []Frame {
	d.rawFull.WriteString(chunk)
	d.buf.WriteString(chunk)
	return d.drain(false)
}

// Flush drains any remaining buffered text verbatim in the current mode.
func (d *Demux) Flush() []Frame {
	return d.drain(true)
}

func (d *Demux) drain(final bool) []Frame {
	var frames []Frame
	for {
		s := d.buf.String()
		if s == "" {
			return frames
		}
		switch d.state {
		case stateOutside:
			if idx := strings.Index(s, openTag); idx >= 0 {
				after := s[idx+len(openTag):]
				d.buf.Reset()
				d.buf.WriteString(after)
				d.state = stateInside
				continue
			}
			if !final {
				if _, ok := partialTagSuffix(s, openTag); ok {
					return frames
				}
				if len(s) <= flushThreshold {
					return frames
				}
			}
			frames = append(frames, Frame{Kind: FramePartial, Content: s})
			d.buf.Reset()
			return frames

		case stateInside:
			if idx := strings.Index(s, closeTag); idx >= 0 {
				before := s[:idx]
				after := s[idx+len(closeTag):]
				if before != "" {
					frames = append(frames, Frame{Kind: FrameThinking, Content: before})
				}
				d.buf.Reset()
				d.buf.WriteString(after)
				d.state = stateOutside
				continue
			}
			if !final {
				if _, ok := partialTagSuffix(s, closeTag); ok {
					return frames
				}
				if len(s) <= flushThreshold {
					return frames
				}
			}
			frames = append(frames, Frame{Kind: FrameThinking, Content: s})
			d.buf.Reset()
			return frames
		}
	}
}

// SplitFinal runs raw (a complete, already-concatenated model output)
// through a fresh Demux in one shot and returns the cleaned user-visible
// text and the concatenated thinking text. Used where only the final
// result matters (cache writes, history append), not the live per-chunk
// frames a streaming turn forwards to the transport.
func SplitFinal(raw string) (visible, thinking string) {
	d := NewDemux()
	frames := append(d.Feed(raw), d.Flush()...)
	var visibleBuf, thinkingBuf strings.Builder
	for _, f := range frames {
		switch f.Kind {
		case FramePartial:
			visibleBuf.WriteString(f.Content)
		case FrameThinking:
			thinkingBuf.WriteString(f.Content)
		}
	}
	return CleanupText(visibleBuf.String()), thinkingBuf.String()
}

// partialTagSuffix reports whether s ends with a non-empty proper prefix of
// tag (a tag opening that might complete on the next chunk), returning that
// held suffix.
func partialTagSuffix(s, tag string) (string, bool) {
	max := len(tag) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return s[len(s)-n:], true
		}
	}
	return "", false
}
