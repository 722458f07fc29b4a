package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holymark/auth"
	"github.com/holymark/auth/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProvisionUser(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	users := repository.NewMemoryUsers()
	handler := auth.NewProvisionUserHandler(users).
		WithLogger(nopLogger{}).
		WithClock(func() time.Time { return now })

	identity, err := handler.Provision(ctx, auth.ExternalProfile{
		Email: " Linus.T@Example.org ",
		Image: "https://example.org/linus.png",
	})
	require.NoError(t, err)

	assert.Equal(t, "linus.t@example.org", identity.Email)
	assert.Equal(t, "linus.t", identity.Username)
	// no name from the provider falls back to the derived username
	assert.Equal(t, "linus.t", identity.Name)

	stored, err := users.FindByEmail(ctx, "linus.t@example.org")
	require.NoError(t, err)
	require.NotNil(t, stored.EmailVerified)
	assert.True(t, stored.EmailVerified.Equal(now))
	assert.True(t, stored.CreatedAt.Equal(now))
	assert.Empty(t, stored.PasswordHash)
}

func TestProvisionUserErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing email", func(t *testing.T) {
		_, err := auth.NewProvisionUserHandler(new(MockUserStore)).Provision(ctx, auth.ExternalProfile{})
		assert.ErrorIs(t, err, auth.ErrMissingIdentity)
	})

	t.Run("local part too short for a username", func(t *testing.T) {
		store := new(MockUserStore)
		_, err := auth.NewProvisionUserHandler(store).WithLogger(nopLogger{}).
			Provision(ctx, auth.ExternalProfile{Email: "jo@example.com"})

		assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidRecord))
		store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("username collision passes through", func(t *testing.T) {
		store := new(MockUserStore)
		store.On("Create", ctx, mock.AnythingOfType("*auth.User")).Return(nil, auth.ErrUsernameTaken).Once()

		_, err := auth.NewProvisionUserHandler(store).WithLogger(nopLogger{}).
			Provision(ctx, auth.ExternalProfile{Email: "taken@example.com"})

		assert.ErrorIs(t, err, auth.ErrUsernameTaken)
	})

	t.Run("store failure", func(t *testing.T) {
		store := new(MockUserStore)
		store.On("Create", ctx, mock.AnythingOfType("*auth.User")).Return(nil, errors.New("write concern")).Once()

		err := auth.NewProvisionUserHandler(store).WithLogger(nopLogger{}).
			Execute(ctx, auth.ProvisionUserMessage{
				Provider: "google",
				Profile:  auth.ExternalProfile{Email: "broken@example.com"},
			})

		require.Error(t, err)
		assert.False(t, auth.IsConflictError(err))
	})
}
