package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectMentions(t *testing.T) {
	nicks := []string{"alice", "bob", "[bot]"}

	tests := []struct {
		text string
		want []string
	}{
		{"hello alice", []string{"alice"}},
		{"Alice: ping", []string{"alice"}},
		{"ALICE, bob, look", []string{"alice", "bob"}},
		{"malice aforethought", nil},
		{"alice_ is not alice?", []string{"alice"}},
		{"alice_ only", nil},
		{"thanks [bot]!", []string{"[bot]"}},
		{"thanks {BOT}!", []string{"[bot]"}},
		{"x{bot}", nil},
		{"bobby tables", nil},
		{"", nil},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, DetectMentions(tc.text, nicks), tc.text)
	}
}

func TestDetectMentions_Dedupes(t *testing.T) {
	assert.Equal(t, []string{"alice"}, DetectMentions("alice alice", []string{"alice", "ALICE"}))
}

func TestDetectMentions_RFC1459Folding(t *testing.T) {
	assert.Equal(t, []string{"foo["}, DetectMentions("hey FOO{ there", []string{"foo["}))
	assert.Equal(t, []string{`a\b`}, DetectMentions("ping A|B", []string{`a\b`}))
	assert.Equal(t, []string{"x~"}, DetectMentions("X^: hi", []string{"x~"}))
	assert.Nil(t, DetectMentions("hey FOO{{ there", []string{"foo["}))
}
