package emotion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseFor_Pure(t *testing.T) {
	first := ResponseFor("positive", 3)
	second := ResponseFor("positive", 3)
	assert.Equal(t, first, second)
	assert.Equal(t, "主人心情很好呢，要一直保持下去哦~", first)
}

func TestResponseFor_Table(t *testing.T) {
	emotions := []string{"positive", "negative", "neutral", "angry", "sad", "love", "anxiety"}
	for _, e := range emotions {
		for i := 1; i <= 5; i++ {
			resp := ResponseFor(e, i)
			assert.NotEmpty(t, resp, "emotion %s intensity %d", e, i)
			assert.NotEqual(t, GenericResponse, resp, "emotion %s intensity %d should have a dedicated template", e, i)
		}
	}
}

func TestResponseFor_Fallback(t *testing.T) {
	assert.Equal(t, GenericResponse, ResponseFor("happy", 3))
	assert.Equal(t, GenericResponse, ResponseFor("unknown", 1))
	assert.Equal(t, GenericResponse, ResponseFor("positive", 0))
	assert.Equal(t, GenericResponse, ResponseFor("positive", 6))
}

func TestSentiment(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"今天好开心，太棒了", "positive"},
		{"我真的很难过，好痛苦", "negative"},
		{"今天是星期三", "neutral"},
		{"", "neutral"},
	}
	for _, tt := range tests {
		label, score := Sentiment(tt.text)
		assert.Equal(t, tt.want, label, "text %q", tt.text)
		assert.Greater(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

type stubStructuredClient struct {
	out string
	err error
}

func (s *stubStructuredClient) Structured(_ context.Context, _, _, _ string, _ map[string]interface{}) (string, error) {
	return s.out, s.err
}

func TestClassify_HappyPath(t *testing.T) {
	client := &stubStructuredClient{
		out: `{"dominant_emotion": "positive", "intensity": 4, "secondary_emotions": ["happy"], "suggested_response": "一起开心"}`,
	}
	a := NewAnalyzer(client)

	j := a.Classify(context.Background(), "开心")

	assert.Equal(t, "positive", j.Sentiment)
	assert.Equal(t, "positive", j.DominantEmotion)
	assert.Equal(t, 4, j.Intensity)
	assert.Equal(t, []string{"happy"}, j.SecondaryEmotions)
	assert.Equal(t, "一起开心", j.SuggestedResponse)
}

func TestClassify_FallsBackOnError(t *testing.T) {
	a := NewAnalyzer(&stubStructuredClient{err: errors.New("quota exceeded")})

	j := a.Classify(context.Background(), "随便说点什么")

	assert.Equal(t, "neutral", j.DominantEmotion)
	assert.Equal(t, 3, j.Intensity)
	assert.Empty(t, j.SecondaryEmotions)
	assert.Equal(t, fallbackSuggestion, j.SuggestedResponse)
}

func TestClassify_FallsBackOnMalformedOutput(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"not json", "I feel like the user is happy!"},
		{"missing emotion", `{"intensity": 3, "secondary_emotions": [], "suggested_response": "x"}`},
		{"intensity too low", `{"dominant_emotion": "sad", "intensity": 0, "secondary_emotions": [], "suggested_response": "x"}`},
		{"intensity too high", `{"dominant_emotion": "sad", "intensity": 9, "secondary_emotions": [], "suggested_response": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(&stubStructuredClient{out: tt.out})
			j := a.Classify(context.Background(), "text")
			assert.Equal(t, "neutral", j.DominantEmotion)
			assert.Equal(t, 3, j.Intensity)
		})
	}
}

func TestClassify_NilClient(t *testing.T) {
	a := NewAnalyzer(nil)
	j := a.Classify(context.Background(), "开心")

	// Sentiment still runs locally; the structured judgment falls back.
	assert.Equal(t, "positive", j.Sentiment)
	assert.Equal(t, "neutral", j.DominantEmotion)
	assert.Equal(t, 3, j.Intensity)
}
