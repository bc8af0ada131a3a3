package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDOI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain DOI lowercased",
			input:    "10.1234/ABC.567",
			expected: "10.1234/abc.567",
		},
		{
			name:     "https prefix stripped",
			input:    "https://doi.org/10.1234/abc.567",
			expected: "10.1234/abc.567",
		},
		{
			name:     "http prefix stripped",
			input:    "http://doi.org/10.1234/abc",
			expected: "10.1234/abc",
		},
		{
			name:     "doi scheme stripped",
			input:    "doi:10.1234/abc",
			expected: "10.1234/abc",
		},
		{
			name:     "whitespace trimmed",
			input:    "  10.1234/abc  ",
			expected: "10.1234/abc",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, NormalizeDOI(tt.input))
		})
	}
}

func TestSourceDedupKey(t *testing.T) {
	t.Parallel()

	withDOI := Source{Title: "Some Title", DOI: "10.1/X"}
	assert.Equal(t, "10.1/x", withDOI.DedupKey())

	withoutDOI := Source{Title: "Some Title"}
	assert.Equal(t, "some title", withoutDOI.DedupKey())
}

func TestEstimatedPages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		req      ThesisRequest
		expected int
	}{
		{
			name:     "words rounded up",
			req:      ThesisRequest{TargetLength: 10001, LengthUnit: LengthUnitWords},
			expected: 41,
		},
		{
			name:     "words exact",
			req:      ThesisRequest{TargetLength: 10000, LengthUnit: LengthUnitWords},
			expected: 40,
		},
		{
			name:     "pages passthrough",
			req:      ThesisRequest{TargetLength: 30, LengthUnit: LengthUnitPages},
			expected: 30,
		},
		{
			name:     "zero target",
			req:      ThesisRequest{TargetLength: 0, LengthUnit: LengthUnitWords},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.req.EstimatedPages())
		})
	}
}

func TestChapterQueryAllQueries(t *testing.T) {
	t.Parallel()

	q := ChapterQuery{
		ChapterNumber: "1",
		Primary:       LanguageQueries{"a", "b"},
		Secondary:     LanguageQueries{"c", ""},
	}
	assert.Equal(t, []string{"a", "b", "c"}, q.AllQueries())
}
