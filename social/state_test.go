package social

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateManager(t *testing.T, ttl time.Duration) *EncryptedStateManager {
	t.Helper()
	sm, err := NewStateManagerFromSecret([]byte("test-signing-secret"), ttl)
	require.NoError(t, err)
	return sm
}

func TestStateManager_EncryptDecrypt(t *testing.T) {
	sm := newTestStateManager(t, 10*time.Minute)

	state := &OAuthState{
		Provider:     "google",
		CallbackURL:  "/profile",
		CodeVerifier: "test-verifier",
	}

	encoded, err := sm.Encode(state)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "test-verifier")

	decoded, err := sm.Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, state.Provider, decoded.Provider)
	assert.Equal(t, state.CallbackURL, decoded.CallbackURL)
	assert.Equal(t, state.CodeVerifier, decoded.CodeVerifier)
	assert.NotEmpty(t, decoded.Nonce)
}

func TestStateManager_ExpiredState(t *testing.T) {
	sm := newTestStateManager(t, -1*time.Minute)

	encoded, err := sm.Encode(&OAuthState{Provider: "google"})
	require.NoError(t, err)

	_, err = sm.Decode(encoded)
	assert.ErrorIs(t, err, ErrStateExpired)
}

func TestStateManager_TamperedState(t *testing.T) {
	sm := newTestStateManager(t, time.Minute)

	encoded, err := sm.Encode(&OAuthState{Provider: "google"})
	require.NoError(t, err)

	mid := len(encoded) / 2
	replacement := "A"
	if encoded[mid] == 'A' {
		replacement = "B"
	}
	_, err = sm.Decode(encoded[:mid] + replacement + encoded[mid+1:])
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = sm.Decode(strings.Repeat("x", 10))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStateManager_KeysDependOnSecret(t *testing.T) {
	a := newTestStateManager(t, time.Minute)
	b, err := NewStateManagerFromSecret([]byte("another-secret"), time.Minute)
	require.NoError(t, err)

	encoded, err := a.Encode(&OAuthState{Provider: "google"})
	require.NoError(t, err)

	_, err = b.Decode(encoded)
	assert.ErrorIs(t, err, ErrInvalidState)
}
