package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAIMention(t *testing.T) {
	cases := []struct {
		content   string
		addressed bool
		malformed bool
	}{
		{"@AI hello", true, false},
		{"@ai hello", true, false},
		{"@IA hola", true, false},
		{"@iA hola", true, false},
		{"@AI", false, true},
		{"@AIhello", false, true},
		{"@ai-help", false, true},
		{"hello @AI", false, false},
		{"plain message", false, false},
		{"@A", false, false},
		{"", false, false},
	}

	for _, tc := range cases {
		addressed, malformed := AIMention(tc.content)
		assert.Equal(t, tc.addressed, addressed, "addressed for %q", tc.content)
		assert.Equal(t, tc.malformed, malformed, "malformed for %q", tc.content)
	}
}
