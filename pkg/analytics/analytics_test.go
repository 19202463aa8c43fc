package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"go", "programming", "language"}, Terms("The Go (programming) language!"))
	assert.Empty(t, Terms("the and of"))
}

func TestWordFrequency(t *testing.T) {
	got := WordFrequency("Gophers like Go. Go gophers, go!")
	assert.Equal(t, map[string]int{"gophers": 2, "go": 3}, got)
}

func TestTopNWords(t *testing.T) {
	text := "alpha beta beta gamma gamma gamma delta"
	assert.Equal(t, []string{"gamma", "beta"}, TopNWords(text, 2))
	assert.Equal(t, []string{"gamma", "beta", "alpha", "delta"}, TopNWords(text, 10))
	assert.Empty(t, TopNWords("", 3))
}

func TestScore(t *testing.T) {
	tests := []struct {
		query string
		text  string
		want  float64
	}{
		{query: "go language", text: "Go (programming language)", want: 1},
		{query: "go rust", text: "Go", want: 0.5},
		{query: "python", text: "A/Go_(programming_language)", want: 0},
		{query: "programming", text: "A/Go_(programming_language)", want: 1},
		{query: "the", text: "anything", want: 1},
		{query: "pyth", text: "Python A/Python", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.query, tt.text), 1e-9)
		})
	}
}

func TestIsStopword(t *testing.T) {
	assert.True(t, IsStopword("The"))
	assert.False(t, IsStopword("gopher"))
}
