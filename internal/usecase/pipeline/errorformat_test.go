package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPipelineError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain message",
			raw:  "connection refused",
			want: "connection refused",
		},
		{
			name: "strips error prefix",
			raw:  "Error: upload timed out",
			want: "upload timed out",
		},
		{
			name: "strips uncaught prefix",
			raw:  "Uncaught TypeError: something broke",
			want: "something broke",
		},
		{
			name: "drops stack frames",
			raw:  "Error: boom\n    at handler (server.go:12)\n    at main (main.go:3)",
			want: "boom",
		},
		{
			name: "extracts embedded api message",
			raw:  "request failed: {\"error\":{\"code\":429,\"message\":\"Resource exhausted\"}}",
			want: "Resource exhausted",
		},
		{
			name: "ignores message inside stack frames",
			raw:  "Error: outer\n    at x ({\"message\":\"inner\"})",
			want: "outer",
		},
		{
			name: "caps at 200 characters",
			raw:  strings.Repeat("x", 500),
			want: strings.Repeat("x", 200),
		},
		{
			name: "skips leading blank lines",
			raw:  "\n\n  \nreal failure",
			want: "real failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPipelineError(tt.raw))
		})
	}
}
