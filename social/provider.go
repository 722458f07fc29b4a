package social

import (
	"context"

	"github.com/holymark/auth"
	"golang.org/x/oauth2"
)

// SocialProvider defines the interface for OAuth2 social login providers.
type SocialProvider interface {
	// Name returns the provider identifier (e.g., "google").
	Name() string

	// AuthCodeURL returns the URL to redirect users for authorization.
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string

	// Exchange trades an authorization code for an access token.
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)

	// UserInfo fetches the user's profile using the access token.
	UserInfo(ctx context.Context, token *oauth2.Token) (*SocialProfile, error)
}

// SocialProfile represents normalized user information from a social provider.
type SocialProfile struct {
	ProviderUserID string
	Provider       string
	Email          string
	EmailVerified  bool
	Name           string
	AvatarURL      string
	Raw            map[string]any
}

// ExternalProfile returns the fields sign-in cares about
func (p *SocialProfile) ExternalProfile() auth.ExternalProfile {
	if p == nil {
		return auth.ExternalProfile{}
	}
	return auth.ExternalProfile{
		Email: p.Email,
		Name:  p.Name,
		Image: p.AvatarURL,
	}
}
