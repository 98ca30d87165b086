package casemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Alice", "alice"},
		{"#GoLang", "#golang"},
		{"[Bot]", "{bot}"},
		{"a\\b~", "a|b^"},
		{"  Padded ", "padded"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, Fold(tc.in), tc.in)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("ALICE", "alice"))
	assert.True(t, Equal("[x]", "{X}"))
	assert.False(t, Equal("alice", "alicia"))
}
