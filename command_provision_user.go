package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type ProvisionUserMessage struct {
	Provider string
	Profile  ExternalProfile
}

func (e ProvisionUserMessage) Type() string { return "user.provision" }

// ProvisionUserHandler creates accounts for first time OAuth sign-ins.
// The username is derived from the email local part and is not checked
// before insert; a collision surfaces as ErrUsernameTaken from the store.
type ProvisionUserHandler struct {
	store  UserStore
	logger Logger
	now    func() time.Time
}

// NewProvisionUserHandler returns a handler backed by store
func NewProvisionUserHandler(store UserStore) *ProvisionUserHandler {
	return &ProvisionUserHandler{
		store:  store,
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger sets the logger
func (h *ProvisionUserHandler) WithLogger(logger Logger) *ProvisionUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

// WithClock overrides the time source used for CreatedAt and EmailVerified
func (h *ProvisionUserHandler) WithClock(now func() time.Time) *ProvisionUserHandler {
	if now != nil {
		h.now = now
	}
	return h
}

// Execute provisions the user and discards the created identity
func (h *ProvisionUserHandler) Execute(ctx context.Context, event ProvisionUserMessage) error {
	_, err := h.Provision(ctx, event.Profile)
	return err
}

// Provision persists a password-less user for profile
func (h *ProvisionUserHandler) Provision(ctx context.Context, profile ExternalProfile) (*Identity, error) {
	email := NormalizeEmail(profile.Email)
	if email == "" {
		return nil, ErrMissingIdentity
	}

	username := NormalizeUsername(UsernameFromEmail(email))
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = username
	}

	now := h.now()
	user := &User{
		Name:          name,
		Email:         email,
		Username:      username,
		Image:         strings.TrimSpace(profile.Image),
		EmailVerified: &now,
		CreatedAt:     now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	created, err := h.store.Create(ctx, user)
	if err != nil {
		if IsConflictError(err) {
			return nil, err
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create provisioned user")
	}

	h.logger.Info("user provisioned", "user_id", created.ID, "username", created.Username)

	return created.Identity(), nil
}
