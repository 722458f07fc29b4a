package auth

import (
	"strings"
	"time"
)

// SessionUser is the user part of the session exposed to consumers
type SessionUser struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Image    string `json:"image,omitempty"`
}

// SessionView is the session reconstructed from a validated token
type SessionView struct {
	User    SessionUser `json:"user"`
	Expires *time.Time  `json:"expires,omitempty"`
}

// ReconstructSession maps validated claims back into a SessionView.
// Missing subject or username claims leave the fields empty.
func ReconstructSession(claims *JWTClaims) *SessionView {
	session := &SessionView{}
	if claims == nil {
		return session
	}

	session.User = SessionUser{
		ID:       claims.Subject,
		Name:     claims.Name,
		Email:    claims.Email,
		Username: claims.Username,
		Image:    claims.Picture,
	}

	if exp := claims.Expires(); !exp.IsZero() {
		session.Expires = &exp
	}

	return session
}

// IsAuthenticated reports whether the session belongs to a user
func (s *SessionView) IsAuthenticated() bool {
	return s != nil && s.User.ID != ""
}

// DisplayUsername is the handle shown on the profile page, falling back to
// the email local part.
func (s *SessionView) DisplayUsername() string {
	if s == nil {
		return ""
	}
	if s.User.Username != "" {
		return s.User.Username
	}
	return UsernameFromEmail(s.User.Email)
}

// UsernameFromEmail returns the substring before the first "@"
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
