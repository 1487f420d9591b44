package thinkdemux

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestChunkBoundaryDemux exercises the exact three-chunk scenario from the
// specification: "abc<thi", "nk>XY", "Z</think>answer" must yield
// thinking_fragment "XYZ" then partial "answer".
func TestChunkBoundaryDemux(t *testing.T) {
	d := NewDemux()
	var frames []Frame

	frames = append(frames, d.Feed("abc<thi")...)
	frames = append(frames, d.Feed("nk>XY")...)
	frames = append(frames, d.Feed("Z</think>answer")...)
	frames = append(frames, d.Flush()...)

	require.Len(t, frames, 2)
	require.Equal(t, FrameThinking, frames[0].Kind)
	require.Equal(t, "XYZ", frames[0].Content)
	require.Equal(t, FramePartial, frames[1].Kind)
	require.Equal(t, "answer", frames[1].Content)
}

func TestNoTagsStreamsAsPartial(t *testing.T) {
	d := NewDemux()
	var frames []Frame
	frames = append(frames, d.Feed("just a plain answer with no thinking tags at all, long enough to trip the flush threshold")...)
	frames = append(frames, d.Flush()...)
	require.NotEmpty(t, frames)
	for _, f := range frames {
		require.Equal(t, FramePartial, f.Kind)
	}
}

func TestFalsePositiveAngleBracketNotLost(t *testing.T) {
	d := NewDemux()
	var frames []Frame
	frames = append(frames, d.Feed("score < 3 is a fail")...)
	frames = append(frames, d.Flush()...)
	var got string
	for _, f := range frames {
		got += f.Content
	}
	require.Equal(t, "score < 3 is a fail", got)
}

func TestSizeTriggeredFlushBoundsLatency(t *testing.T) {
	d := NewDemux()
	frames := d.Feed("this single chunk is definitely longer than twenty bytes")
	require.NotEmpty(t, frames)
}

func TestSplitFinalSeparatesChannels(t *testing.T) {
	visible, thinking := SplitFinal("<think>reasoning here</think>**Final Answer:** the answer")
	require.Equal(t, " the answer", visible)
	require.Equal(t, "reasoning here", thinking)
}

func TestCleanupTextStripsMarkersAndMetaPrefix(t *testing.T) {
	require.Equal(t, "the answer}", CleanupText(`\boxed{the answer}`))
	require.Equal(t, "real answer", CleanupText("The user's input is unclear.\n\nreal answer"))
	require.Equal(t, "a\n\nb", CleanupText("a\n\n\n\nb   \n"))
}
