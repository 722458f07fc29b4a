package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type RegisterUserMessage struct {
	Name     string `json:"name" form:"name"`
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

func (e RegisterUserMessage) hasMissingFields() bool {
	return strings.TrimSpace(e.Name) == "" ||
		strings.TrimSpace(e.Username) == "" ||
		strings.TrimSpace(e.Email) == "" ||
		e.Password == ""
}

// RegisterUserHandler creates password accounts
type RegisterUserHandler struct {
	store  UserStore
	hasher PasswordAuthenticator
	logger Logger
	sink   ActivitySink
	now    func() time.Time
}

// NewRegisterUserHandler returns a handler backed by store
func NewRegisterUserHandler(store UserStore) *RegisterUserHandler {
	return &RegisterUserHandler{
		store:  store,
		hasher: BcryptHasher{},
		logger: defLogger{},
		sink:   noopActivitySink{},
		now:    time.Now,
	}
}

// WithActivitySink records a user.registered event for each new account
func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

// WithLogger sets the logger
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

// WithPasswordAuthenticator replaces the bcrypt hasher
func (h *RegisterUserHandler) WithPasswordAuthenticator(hasher PasswordAuthenticator) *RegisterUserHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

// Execute runs the registration and discards the created identity
func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	_, err := h.Register(ctx, event)
	return err
}

// Register validates event, enforces uniqueness and persists the account.
// Validation and conflict errors are returned as is; anything else is
// wrapped as an internal error.
func (h *RegisterUserHandler) Register(ctx context.Context, event RegisterUserMessage) (*Identity, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.register(ctx, event)
	}
}

func (h *RegisterUserHandler) register(ctx context.Context, event RegisterUserMessage) (*Identity, error) {
	if event.hasMissingFields() {
		return nil, ErrMissingFields
	}

	if PasswordTooShort(event.Password) {
		return nil, ErrWeakPassword
	}

	email := NormalizeEmail(event.Email)
	username := NormalizeUsername(event.Username)

	matches, err := h.store.FindByEmailOrUsername(ctx, email, username)
	if err != nil {
		h.logger.Error("register user lookup failed", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing users")
	}

	if err := uniquenessError(matches, email, username); err != nil {
		return nil, err
	}

	user := &User{
		Name:      strings.TrimSpace(event.Name),
		Email:     email,
		Username:  username,
		CreatedAt: h.now(),
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	user.PasswordHash = hash

	created, err := h.store.Create(ctx, user)
	if err != nil {
		if IsConflictError(err) {
			return nil, err
		}
		h.logger.Error("register user create failed", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	h.logger.Info("user registered", "user_id", created.ID, "username", created.Username)
	recordActivity(ctx, h.sink, h.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		UserID:    created.ID,
		Provider:  "credentials",
	})

	return created.Identity(), nil
}

// uniquenessError applies the email-first tie break over existing records
func uniquenessError(matches []*User, email, username string) error {
	var usernameTaken bool
	for _, m := range matches {
		if m == nil {
			continue
		}
		if m.Email == email {
			return ErrEmailTaken
		}
		if m.Username == username {
			usernameTaken = true
		}
	}
	if usernameTaken {
		return ErrUsernameTaken
	}
	return nil
}
