package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahenroid/ptptl-0.2/identity"
)

func TestChallengeRespondVerifyRoundTrip(t *testing.T) {
	local, err := identity.New("Local")
	require.NoError(t, err)
	a := New(local)

	chal, err := a.Challenge(local, 60, 0x2)
	require.NoError(t, err)
	assert.Len(t, chal, ChallengeSize)

	resp, err := a.Respond(chal)
	require.NoError(t, err)
	assert.Len(t, resp, ResponseSize)

	ctx, ok := a.Verify(resp)
	require.True(t, ok)
	assert.Equal(t, 0x2, ctx)

	_, ok = a.Verify(resp)
	assert.False(t, ok, "Verify must be single-use")
}

func TestVerifyWithUnknownResponseReturnsFalse(t *testing.T) {
	local, err := identity.New("Local")
	require.NoError(t, err)
	a := New(local)

	_, err = a.Challenge(local, 60, "ctx")
	require.NoError(t, err)

	_, ok := a.Verify(make([]byte, ResponseSize))
	assert.False(t, ok)
}

func TestVerifySweepsExpiredChallenges(t *testing.T) {
	local, err := identity.New("Local")
	require.NoError(t, err)
	a := New(local)

	chal, err := a.Challenge(local, -1, "stale")
	require.NoError(t, err)
	resp, err := a.Respond(chal)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	_, ok := a.Verify(resp)
	assert.False(t, ok, "expired entries must not match")
	assert.Equal(t, 0, a.Pending())
}

func TestMultiplePeersChallengeIndependently(t *testing.T) {
	local, err := identity.New("Local")
	require.NoError(t, err)
	a := New(local)

	remote, err := identity.New("Remote")
	require.NoError(t, err)

	chal, err := a.Challenge(remote, 60, "remote-ctx")
	require.NoError(t, err)

	// Only "remote" can answer this challenge — local cannot decrypt it.
	_, err = a.Respond(chal)
	assert.Error(t, err)
}
