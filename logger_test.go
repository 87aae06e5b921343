package callrtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugEnabled(t *testing.T) {
	cases := []struct {
		debug, scope string
		enabled      bool
	}{
		{"", "ConnectionFSM", false},
		{"*", "ConnectionFSM", true},
		{"Connection*", "ConnectionFSM", true},
		{"PeerConnection", "ConnectionFSM", false},
		{"*, -ConnectionFSM", "ConnectionFSM", false},
		{"*, -ConnectionFSM", "PeerConnection", true},
		{"-ConnectionFSM, *", "ConnectionFSM", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.enabled, debugEnabled(c.debug, c.scope), "DEBUG=%q scope=%q", c.debug, c.scope)
	}
}

func TestNewLogger(t *testing.T) {
	t.Setenv("DEBUG", "ConnectionFSM")

	assert.True(t, NewLogger("ConnectionFSM").V(1).Enabled())
	assert.False(t, NewLogger("PeerConnection").V(1).Enabled())
	assert.True(t, NewLogger("PeerConnection").Enabled())
}
