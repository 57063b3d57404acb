package generator

import "testing"

func TestCleanJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare json untouched",
			input: `{"a":1}`,
			want:  `{"a":1}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "anonymous fence",
			input: "```\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "surrounding whitespace",
			input: "  \n{\"a\":1}\n  ",
			want:  `{"a":1}`,
		},
		{
			name:  "fence with trailing newline",
			input: "```json\n{\"a\":1}\n```\n",
			want:  `{"a":1}`,
		},
		{
			name:  "fence without newline after marker",
			input: "```json{\"a\":1}```",
			want:  `{"a":1}`,
		},
		{
			name:  "anonymous fence without newline",
			input: "```{\"a\":1}```",
			want:  `{"a":1}`,
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := string(cleanJSON([]byte(tt.input))); got != tt.want {
				t.Fatalf("cleanJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
