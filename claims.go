package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims are the claims carried by a session token. Name, Email and
// Picture are the base profile claims; Username is added by MintClaims.
type JWTClaims struct {
	jwt.RegisteredClaims
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Username string `json:"username,omitempty"`
}

// NewBaseClaims seeds the profile claims the issuer carries for identity
func NewBaseClaims(identity *Identity) *JWTClaims {
	claims := &JWTClaims{}
	if identity == nil {
		return claims
	}
	claims.Name = identity.Name
	claims.Email = identity.Email
	claims.Picture = identity.Image
	return claims
}

// MintClaims copies the stored user id into the subject and the username
// into its own claim. A nil identity means the token is being refreshed and
// the claims pass through untouched.
func MintClaims(claims *JWTClaims, identity *Identity) *JWTClaims {
	if claims == nil {
		claims = &JWTClaims{}
	}
	if identity == nil {
		return claims
	}
	claims.Subject = identity.ID
	claims.Username = identity.Username
	return claims
}

// UserID returns the subject claim
func (c *JWTClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c == nil || c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}
