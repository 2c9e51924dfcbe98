package nsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnescape(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`a\.b`, "a.b"},
		{`x\065y`, "xAy"},
		{`z\\`, `z\`},
	}
	for _, tc := range cases {
		got := Unescape(tc.in, nil)
		assert.Equal(t, tc.want, got)
	}
}

func TestUnescape_TruncatedLogsAndStops(t *testing.T) {
	var logged bool
	got := Unescape(`abc\`, func(string, ...any) { logged = true })
	assert.Equal(t, "abc", got)
	assert.True(t, logged)
}

func TestSplitFirstUnescapedLabel(t *testing.T) {
	label, rest, found := splitFirstUnescapedLabel(`My\.Thing._foo._tcp.local`)
	assert.True(t, found)
	assert.Equal(t, `My\.Thing`, label)
	assert.Equal(t, "_foo._tcp.local", rest)
}
