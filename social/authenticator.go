package social

import (
	"context"
	"sort"
	"strings"

	"github.com/holymark/auth"
	"golang.org/x/oauth2"
)

// SocialAuthenticator runs the provider side of the OAuth flow and yields
// a verified profile. Turning the profile into a session is left to
// auth.RouteAuthenticator.
type SocialAuthenticator struct {
	providers            map[string]SocialProvider
	stateManager         StateManager
	requireVerifiedEmail bool
	logger               auth.Logger
}

// SocialAuthOption configures the social authenticator.
type SocialAuthOption func(*SocialAuthenticator)

// NewSocialAuthenticator creates a new social authenticator.
func NewSocialAuthenticator(states StateManager, opts ...SocialAuthOption) *SocialAuthenticator {
	sa := &SocialAuthenticator{
		providers:            map[string]SocialProvider{},
		stateManager:         states,
		requireVerifiedEmail: true,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sa)
		}
	}

	return sa
}

// WithProvider registers a social provider.
func WithProvider(provider SocialProvider) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if provider == nil {
			return
		}
		sa.providers[provider.Name()] = provider
	}
}

// WithRequireVerifiedEmail rejects profiles whose email the provider has
// not verified. Enabled by default.
func WithRequireVerifiedEmail(required bool) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.requireVerifiedEmail = required
	}
}

func WithLogger(logger auth.Logger) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.logger = logger
	}
}

// ListProviders returns the registered provider names, sorted
func (sa *SocialAuthenticator) ListProviders() []string {
	names := make([]string, 0, len(sa.providers))
	for name := range sa.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider returns the named provider or ErrProviderNotFound
func (sa *SocialAuthenticator) Provider(name string) (SocialProvider, error) {
	provider, ok := sa.providers[strings.ToLower(name)]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return provider, nil
}

// AuthRedirect is where the browser goes to start the flow
type AuthRedirect struct {
	URL   string
	Nonce string
}

// BeginAuth builds the provider authorization URL. The PKCE verifier and
// callbackURL travel inside the encrypted state.
func (sa *SocialAuthenticator) BeginAuth(_ context.Context, providerName, callbackURL string) (*AuthRedirect, error) {
	provider, err := sa.Provider(providerName)
	if err != nil {
		return nil, err
	}

	verifier := oauth2.GenerateVerifier()
	state := &OAuthState{
		Provider:     provider.Name(),
		CodeVerifier: verifier,
		CallbackURL:  callbackURL,
	}

	token, err := sa.stateManager.Encode(state)
	if err != nil {
		return nil, err
	}

	return &AuthRedirect{
		URL:   provider.AuthCodeURL(token, oauth2.S256ChallengeOption(verifier)),
		Nonce: state.Nonce,
	}, nil
}

// AuthResult is the outcome of a completed provider round trip
type AuthResult struct {
	Profile     *SocialProfile
	CallbackURL string
	Nonce       string
}

// CompleteAuth verifies the state, exchanges the code and fetches the
// profile.
func (sa *SocialAuthenticator) CompleteAuth(ctx context.Context, providerName, code, stateToken string) (*AuthResult, error) {
	provider, err := sa.Provider(providerName)
	if err != nil {
		return nil, err
	}

	state, err := sa.stateManager.Decode(stateToken)
	if err != nil {
		return nil, err
	}
	if state.Provider != provider.Name() {
		return nil, ErrInvalidState
	}

	token, err := provider.Exchange(ctx, code, oauth2.VerifierOption(state.CodeVerifier))
	if err != nil {
		sa.logError("token exchange failed", provider.Name(), err)
		return nil, WrapProviderError(ErrTokenExchangeFailed, provider.Name(), "exchange", err)
	}

	profile, err := provider.UserInfo(ctx, token)
	if err != nil {
		sa.logError("user info failed", provider.Name(), err)
		return nil, WrapProviderError(ErrUserInfoFailed, provider.Name(), "userinfo", err)
	}

	if strings.TrimSpace(profile.Email) == "" {
		return nil, auth.ErrMissingIdentity
	}
	if sa.requireVerifiedEmail && !profile.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return &AuthResult{
		Profile:     profile,
		CallbackURL: state.CallbackURL,
		Nonce:       state.Nonce,
	}, nil
}

func (sa *SocialAuthenticator) logError(msg, provider string, err error) {
	if sa.logger != nil {
		sa.logger.Error(msg, "provider", provider, "error", err)
	}
}
