package inference

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memecoin-signal-lab/internal/domain"
)

func TestParseResponse_WellFormed(t *testing.T) {
	text := "NAMES: [PEANUT, SQUIRRELRESCUE, NUTPUMP]\n" +
		"REASONING: Peanut is a beloved squirrel.\n" +
		"CONFIDENCE: 85\n" +
		"CATEGORY: animal_incident"

	resp, err := ParseResponse(text)
	require.NoError(t, err)

	assert.Equal(t, []string{"PEANUT", "SQUIRRELRESCUE", "NUTPUMP"}, resp.Names)
	assert.Equal(t, "Peanut is a beloved squirrel.", resp.Reasoning)
	assert.Equal(t, 85.0, resp.Confidence)
	assert.Equal(t, domain.CategoryAnimalIncident, resp.Category)
}

func TestParseResponse_Tolerant(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		names      []string
		reasoning  string
		confidence float64
		category   domain.Category
	}{
		{
			name:     "names only",
			text:     "NAMES: [DOGE]",
			names:    []string{"DOGE"},
			category: domain.CategoryOther,
		},
		{
			name:       "no brackets and lower-case markers",
			text:       "names: pepe, wif\nconfidence: 40\ncategory: viral_moment",
			names:      []string{"pepe", "wif"},
			confidence: 40,
			category:   domain.CategoryViralMoment,
		},
		{
			name:       "markdown bold and percent",
			text:       "**NAMES:** [MUSKPUP]\n**REASONING:** multi\nline\n**CONFIDENCE:** 72%\n**CATEGORY:** vip_related",
			names:      []string{"MUSKPUP"},
			reasoning:  "multi\nline",
			confidence: 72,
			category:   domain.CategoryVIPRelated,
		},
		{
			name:       "confidence above range is clamped",
			text:       "CONFIDENCE: 250",
			confidence: 100,
			category:   domain.CategoryOther,
		},
		{
			name:       "negative confidence is clamped",
			text:       "CONFIDENCE: -5",
			confidence: 0,
			category:   domain.CategoryOther,
		},
		{
			name:       "unparsable confidence",
			text:       "CONFIDENCE: high",
			confidence: 0,
			category:   domain.CategoryOther,
		},
		{
			name:     "unknown category",
			text:     "CATEGORY: moonshot",
			category: domain.CategoryOther,
		},
		{
			name:     "no sections at all",
			text:     "I cannot help with that.",
			category: domain.CategoryOther,
		},
		{
			name:     "empty brackets",
			text:     "NAMES: []\nCATEGORY: other",
			category: domain.CategoryOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseResponse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.names, resp.Names)
			assert.Equal(t, tt.reasoning, resp.Reasoning)
			assert.Equal(t, tt.confidence, resp.Confidence)
			assert.Equal(t, tt.category, resp.Category)
		})
	}
}

func TestParseResponse_Empty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		_, err := ParseResponse(text)
		assert.True(t, errors.Is(err, ErrEmptyResponse), "input %q", text)
	}
}

func TestError_MatchesErrInference(t *testing.T) {
	err := Wrap("parse", ErrEmptyResponse)

	assert.ErrorIs(t, err, ErrInference)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Same(t, err, Wrap("complete", err))
	assert.Nil(t, Wrap("complete", nil))
}

func TestBuildPrompt(t *testing.T) {
	post := domain.Post{Content: "Peanut the squirrel", Author: "elonmusk"}

	prompt := BuildPrompt(post, nil)
	assert.Contains(t, prompt, "Post Content: Peanut the squirrel")
	assert.Contains(t, prompt, "Author: elonmusk")
	assert.Contains(t, prompt, "NAMES: [")
	assert.NotContains(t, prompt, "Image Analysis:")

	prompt = BuildPrompt(post, &domain.ImageAnalysis{Description: "a squirrel", MemecoinContext: "PNUT"})
	assert.Contains(t, prompt, "Image Analysis: a squirrel")
	assert.Contains(t, prompt, "Image Context: PNUT")
}
