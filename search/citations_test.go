package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCitations(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   []string
	}{
		{
			name:   "single citation",
			answer: "The seal was replaced [#PLC-1042].",
			want:   []string{"PLC-1042"},
		},
		{
			name:   "duplicates deduplicated in first-seen order",
			answer: "[#A] then [#B] and again [#A]",
			want:   []string{"A", "B"},
		},
		{
			name:   "ids with punctuation but no whitespace",
			answer: "See [#ops:2026-03-14/7].",
			want:   []string{"ops:2026-03-14/7"},
		},
		{
			name:   "whitespace inside brackets is not a citation",
			answer: "this [#broken id] is not one",
			want:   nil,
		},
		{
			name:   "plain brackets are ignored",
			answer: "array[0] and [note] are not citations",
			want:   nil,
		},
		{
			name:   "no citations",
			answer: "nothing cited here",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCitations(tt.answer))
		})
	}
}

func TestExtractCitationsIdempotent(t *testing.T) {
	answer := "[#A] ... [#B] ... [#A]"
	first := ExtractCitations(answer)

	rendered := "[#" + strings.Join(first, "] [#") + "]"
	assert.Equal(t, first, ExtractCitations(rendered))
}
