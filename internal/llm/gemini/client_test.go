package gemini

import (
	"testing"

	"google.golang.org/genai"

	"github.com/stretchr/testify/require"
)

func TestExtractTextJoinsPartsOfFirstCandidate(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: "hel"},
						{Text: "lo"},
					},
				},
			},
		},
	}
	require.Equal(t, "hello", extractText(resp))
}

func TestExtractTextHandlesEmptyResponse(t *testing.T) {
	require.Equal(t, "", extractText(nil))
	require.Equal(t, "", extractText(&genai.GenerateContentResponse{}))
	require.Equal(t, "", extractText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: nil}},
	}))
}
