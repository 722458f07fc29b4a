package auth_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/holymark/auth"
	"github.com/holymark/auth/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUserProviderVerifyIdentity(t *testing.T) {
	ctx := context.Background()
	store := new(MockUserStore)
	provider := auth.NewUserProvider(store).
		WithLogger(nopLogger{}).
		WithPasswordAuthenticator(fastHasher{})

	user := &auth.User{
		ID:           "u-1",
		Name:         "Test User",
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: "hashed:password123",
	}

	t.Run("Successful verification by email", func(t *testing.T) {
		store.On("FindByIdentifier", ctx, "test@example.com").Return(user, nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "Test@Example.com", "password123")

		require.NoError(t, err)
		assert.Equal(t, "u-1", identity.ID)
		assert.Equal(t, "testuser", identity.Username)
		assert.Equal(t, "test@example.com", identity.Email)
		assert.Equal(t, "Test User", identity.Name)
		store.AssertExpectations(t)
	})

	t.Run("Successful verification by username", func(t *testing.T) {
		store.On("FindByIdentifier", ctx, "testuser").Return(user, nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "TestUser", "password123")

		require.NoError(t, err)
		assert.Equal(t, "u-1", identity.ID)
		store.AssertExpectations(t)
	})

	t.Run("Invalid password", func(t *testing.T) {
		store.On("FindByIdentifier", ctx, "test@example.com").Return(user, nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "wrong_password")

		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		assert.Nil(t, identity)
		store.AssertExpectations(t)
	})

	t.Run("User not found", func(t *testing.T) {
		store.On("FindByIdentifier", ctx, "nonexistent@example.com").Return(nil, auth.ErrRecordNotFound).Once()

		identity, err := provider.VerifyIdentity(ctx, "nonexistent@example.com", "password123")

		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		assert.Nil(t, identity)
		store.AssertExpectations(t)
	})

	t.Run("OAuth only account", func(t *testing.T) {
		oauthUser := &auth.User{ID: "u-2", Email: "oauth@example.com", Username: "oauth"}
		store.On("FindByIdentifier", ctx, "oauth@example.com").Return(oauthUser, nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "oauth@example.com", "anything")

		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		assert.Nil(t, identity)
		store.AssertExpectations(t)
	})

	t.Run("Empty input never reaches the store", func(t *testing.T) {
		_, err := provider.VerifyIdentity(ctx, "  ", "password123")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

		_, err = provider.VerifyIdentity(ctx, "test@example.com", "")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("Store failure is not reported as bad credentials", func(t *testing.T) {
		store.On("FindByIdentifier", ctx, "test@example.com").Return(nil, errors.New("connection reset")).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		require.Error(t, err)
		assert.Nil(t, identity)
		assert.False(t, errors.Is(err, auth.ErrInvalidCredentials))

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, goerrors.CategoryInternal, richErr.Category)
		store.AssertExpectations(t)
	})
}

func TestUserProviderUnknownAndWrongPasswordIndistinguishable(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUsers()
	provider := auth.NewUserProvider(users).WithLogger(nopLogger{}).WithPasswordAuthenticator(fastHasher{})

	_, err := users.Create(ctx, &auth.User{
		Name: "Ada", Email: "ada@x.com", Username: "ada", PasswordHash: "hashed:secret1",
	})
	require.NoError(t, err)

	_, wrongPassword := provider.VerifyIdentity(ctx, "ada", "secret2")
	_, unknown := provider.VerifyIdentity(ctx, "bob", "secret1")

	require.Error(t, wrongPassword)
	require.Error(t, unknown)
	assert.Equal(t, wrongPassword, unknown)
	assert.Equal(t, wrongPassword.Error(), unknown.Error())
}

type countingHasher struct {
	fastHasher
	hashes   atomic.Int32
	compares atomic.Int32
}

func (h *countingHasher) HashPassword(password string) (string, error) {
	h.hashes.Add(1)
	return h.fastHasher.HashPassword(password)
}

func (h *countingHasher) ComparePasswordAndHash(password, hash string) error {
	h.compares.Add(1)
	return h.fastHasher.ComparePasswordAndHash(password, hash)
}

func TestUserProviderComparesOnEveryRejection(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUsers()
	hasher := &countingHasher{}
	provider := auth.NewUserProvider(users).WithLogger(nopLogger{}).WithPasswordAuthenticator(hasher)

	_, err := users.Create(ctx, &auth.User{
		Name: "Ada", Email: "ada@x.com", Username: "ada", PasswordHash: "hashed:secret1",
	})
	require.NoError(t, err)
	_, err = users.Create(ctx, &auth.User{
		Name: "Grace", Email: "grace@x.com", Username: "grace",
	})
	require.NoError(t, err)

	_, err = provider.VerifyIdentity(ctx, "ada", "secret2")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Equal(t, int32(1), hasher.compares.Load())

	_, err = provider.VerifyIdentity(ctx, "bob", "secret1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Equal(t, int32(2), hasher.compares.Load())

	_, err = provider.VerifyIdentity(ctx, "grace", "secret1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Equal(t, int32(3), hasher.compares.Load())

	// the decoy hash is computed once
	_, _ = provider.VerifyIdentity(ctx, "nobody", "secret1")
	assert.Equal(t, int32(1), hasher.hashes.Load())
	assert.Equal(t, int32(4), hasher.compares.Load())
}

func TestUserProviderVerifyExternalProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("new email provisions once", func(t *testing.T) {
		users := repository.NewMemoryUsers()
		provider := auth.NewUserProvider(users).WithLogger(nopLogger{})
		profile := auth.ExternalProfile{
			Email: "Grace@Example.com",
			Name:  "Grace Hopper",
			Image: "https://example.com/g.png",
		}

		first, err := provider.VerifyExternalProfile(ctx, "google", profile)
		require.NoError(t, err)
		assert.Equal(t, "grace@example.com", first.Email)
		assert.Equal(t, "grace", first.Username)
		assert.Equal(t, "https://example.com/g.png", first.Image)

		second, err := provider.VerifyExternalProfile(ctx, "google", profile)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, users.Count())

		stored, err := users.FindByEmail(ctx, "grace@example.com")
		require.NoError(t, err)
		assert.NotNil(t, stored.EmailVerified)
		assert.False(t, stored.HasPassword())
	})

	t.Run("existing password account is signed in", func(t *testing.T) {
		users := repository.NewMemoryUsers()
		provider := auth.NewUserProvider(users).WithLogger(nopLogger{})

		existing, err := users.Create(ctx, &auth.User{
			Name: "Ada", Email: "ada@x.com", Username: "ada", PasswordHash: "hash",
		})
		require.NoError(t, err)

		identity, err := provider.VerifyExternalProfile(ctx, "google", auth.ExternalProfile{Email: "ADA@x.com"})
		require.NoError(t, err)
		assert.Equal(t, existing.ID, identity.ID)
		assert.Equal(t, 1, users.Count())
	})

	t.Run("missing email", func(t *testing.T) {
		store := new(MockUserStore)
		provider := auth.NewUserProvider(store).WithLogger(nopLogger{})

		_, err := provider.VerifyExternalProfile(ctx, "google", auth.ExternalProfile{Name: "No Email"})

		assert.ErrorIs(t, err, auth.ErrMissingIdentity)
		store.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	})

	t.Run("derived username collision", func(t *testing.T) {
		users := repository.NewMemoryUsers()
		provider := auth.NewUserProvider(users).WithLogger(nopLogger{})

		_, err := users.Create(ctx, &auth.User{Name: "Sam", Email: "sam@first.com", Username: "sam"})
		require.NoError(t, err)

		_, err = provider.VerifyExternalProfile(ctx, "google", auth.ExternalProfile{Email: "sam@second.com"})

		require.Error(t, err)
		assert.True(t, auth.HasTextCode(err, auth.TextCodeProvisioningFailed))
		assert.True(t, auth.HasTextCode(err, auth.TextCodeUsernameTaken))
		assert.Equal(t, 1, users.Count())
	})

	t.Run("lookup failure", func(t *testing.T) {
		store := new(MockUserStore)
		provider := auth.NewUserProvider(store).WithLogger(nopLogger{})
		store.On("FindByEmail", ctx, "x@y.com").Return(nil, errors.New("timeout")).Once()

		_, err := provider.VerifyExternalProfile(ctx, "google", auth.ExternalProfile{Email: "x@y.com"})

		assert.True(t, auth.HasTextCode(err, auth.TextCodeProvisioningFailed))
		store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}
