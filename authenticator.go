package auth

import (
	"context"
	"time"
)

// LoginResult is a signed session token and the identity it was minted for
type LoginResult struct {
	Token    string
	Identity *Identity
	Expires  time.Time
}

type Auther struct {
	provider     IdentityProvider
	tokenService *TokenService
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, tokenService *TokenService) *Auther {
	return &Auther{
		provider:     provider,
		tokenService: tokenService,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() *TokenService {
	return s.tokenService
}

// Login verifies credentials and returns a signed session token
func (s *Auther) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Debug("login verify identity error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, "", "credentials", map[string]any{
			"identifier": NormalizeIdentifier(identifier),
			"error":      err.Error(),
		})
		return nil, err
	}

	res, err := s.issue(identity)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, identity.ID, "credentials", map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, identity.ID, "credentials", nil)
	return res, nil
}

// LoginWithProfile signs in with a verified OAuth profile, provisioning
// the account when the email is new.
func (s *Auther) LoginWithProfile(ctx context.Context, provider string, profile ExternalProfile) (*LoginResult, error) {
	identity, err := s.provider.VerifyExternalProfile(ctx, provider, profile)
	if err != nil {
		s.logger.Error("login with profile failed", "provider", provider, "error", err)
		s.emitAuthEvent(ctx, ActivityEventSocialLoginFailure, "", provider, map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	res, err := s.issue(identity)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventSocialLoginFailure, identity.ID, provider, map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventSocialLogin, identity.ID, provider, nil)
	return res, nil
}

// SessionFromToken validates raw and rebuilds the session it carries
func (s *Auther) SessionFromToken(raw string) (*SessionView, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		s.logger.Debug("session from token validation failed", "error", err)
		return nil, err
	}
	return ReconstructSession(claims), nil
}

func (s *Auther) issue(identity *Identity) (*LoginResult, error) {
	if identity == nil || identity.ID == "" {
		return nil, ErrInvalidCredentials
	}

	token, claims, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("failed to sign session token", "error", err)
		return nil, err
	}

	return &LoginResult{
		Token:    token,
		Identity: identity,
		Expires:  claims.Expires(),
	}, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID, provider string, metadata map[string]any) {
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: eventType,
		UserID:    userID,
		Provider:  provider,
		Metadata:  metadata,
	})
}
