package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "bare array",
			input: `[1, 2, 3]`,
			want:  `[1, 2, 3]`,
		},
		{
			name:  "markdown fenced",
			input: "```json\n{\"score\": 85}\n```",
			want:  `{"score": 85}`,
		},
		{
			name:  "prose around array",
			input: `Here are the results: [{"index": 0}] hope that helps`,
			want:  `[{"index": 0}]`,
		},
		{
			name:  "nested structures",
			input: `{"queries": [{"primary": "a", "secondary": "b"}]}`,
			want:  `{"queries": [{"primary": "a", "secondary": "b"}]}`,
		},
		{
			name:  "braces inside strings ignored",
			input: `{"text": "a } tricky { value"}`,
			want:  `{"text": "a } tricky { value"}`,
		},
		{
			name:  "escaped quote inside string",
			input: `{"text": "she said \"}\""}`,
			want:  `{"text": "she said \"}\""}`,
		},
		{
			name:    "no json at all",
			input:   "sorry, I cannot help with that",
			wantErr: true,
		},
		{
			name:    "unterminated object",
			input:   `{"a": 1`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, json.Valid([]byte(got)), "extracted text must be valid JSON")
		})
	}
}
