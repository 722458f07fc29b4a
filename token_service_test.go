package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/holymark/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentity = &auth.Identity{
	ID:       "u-1",
	Name:     "Ada Lovelace",
	Email:    "ada@x.com",
	Username: "ada",
	Image:    "https://x.com/ada.png",
}

func newTokenService(now time.Time) *auth.TokenService {
	return auth.NewTokenService([]byte("test-signing-key"), time.Hour, "test-issuer", jwt.ClaimStrings{"web"}, nopLogger{}).
		WithClock(func() time.Time { return now })
}

func TestTokenServiceRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	ts := newTokenService(now)

	token, minted, err := ts.Generate(testIdentity)
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(token, ".")))
	assert.NotEmpty(t, minted.ID)
	assert.True(t, minted.Expires().Equal(now.Add(time.Hour)))

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "ada", claims.Username)
	assert.Equal(t, "Ada Lovelace", claims.Name)
	assert.Equal(t, "ada@x.com", claims.Email)
	assert.Equal(t, "https://x.com/ada.png", claims.Picture)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"web"}, claims.Audience)
	assert.True(t, claims.IssuedAt().Equal(now))
}

func TestTokenServiceUniqueTokenIDs(t *testing.T) {
	ts := newTokenService(time.Now())

	_, a, err := ts.Generate(testIdentity)
	require.NoError(t, err)
	_, b, err := ts.Generate(testIdentity)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestTokenServiceExpired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	token, _, err := newTokenService(issued).Generate(testIdentity)
	require.NoError(t, err)

	_, err = newTokenService(time.Now()).Validate(token)

	assert.True(t, auth.IsTokenExpiredError(err))
	assert.False(t, auth.IsMalformedError(err))
}

func TestTokenServiceRejects(t *testing.T) {
	now := time.Now()
	ts := newTokenService(now)
	valid, _, err := ts.Generate(testIdentity)
	require.NoError(t, err)

	otherKey := auth.NewTokenService([]byte("other-key"), time.Hour, "test-issuer", jwt.ClaimStrings{"web"}, nil)
	forged, _, err := otherKey.Generate(testIdentity)
	require.NoError(t, err)

	otherIssuer := auth.NewTokenService([]byte("test-signing-key"), time.Hour, "someone-else", jwt.ClaimStrings{"web"}, nil)
	wrongIssuer, _, err := otherIssuer.Generate(testIdentity)
	require.NoError(t, err)

	otherAudience := auth.NewTokenService([]byte("test-signing-key"), time.Hour, "test-issuer", jwt.ClaimStrings{"mobile"}, nil)
	wrongAudience, _, err := otherAudience.Generate(testIdentity)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: "test-issuer"},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":        "not.a.token",
		"empty":          "",
		"wrong key":      forged,
		"wrong issuer":   wrongIssuer,
		"wrong audience": wrongAudience,
		"alg none":       unsigned,
		"truncated":      valid[:len(valid)-4],
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			claims, err := ts.Validate(token)
			assert.Nil(t, claims)
			assert.True(t, auth.IsMalformedError(err), "got %v", err)
		})
	}
}

func TestTokenServiceGenerateRequiresIdentity(t *testing.T) {
	_, _, err := newTokenService(time.Now()).Generate(nil)
	assert.Error(t, err)
}

func TestTokenServiceDefaultTTL(t *testing.T) {
	ts := auth.NewTokenService([]byte("k"), 0, "", nil, nil)
	assert.Equal(t, auth.DefaultTokenTTL, ts.TTL())
}

func TestTokenServiceMultipleAudiences(t *testing.T) {
	multi := auth.NewTokenService([]byte("test-signing-key"), time.Hour, "test-issuer", jwt.ClaimStrings{"web", "mobile"}, nopLogger{})

	token, _, err := multi.Generate(testIdentity)
	require.NoError(t, err)

	claims, err := multi.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, jwt.ClaimStrings{"web", "mobile"}, claims.Audience)

	mobileOnly := auth.NewTokenService([]byte("test-signing-key"), time.Hour, "test-issuer", jwt.ClaimStrings{"mobile"}, nopLogger{})
	foreign, _, err := mobileOnly.Generate(testIdentity)
	require.NoError(t, err)

	_, err = multi.Validate(foreign)
	assert.True(t, auth.IsMalformedError(err))
}
