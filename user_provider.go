package auth

import (
	"context"
	"errors"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// UserProvider verifies sign-in attempts against a UserStore
type UserProvider struct {
	store     UserStore
	hasher    PasswordAuthenticator
	provision *ProvisionUserHandler
	logger    Logger
	decoy     *decoyHash
}

// decoyHash is compared against when there is no stored hash
type decoyHash struct {
	once sync.Once
	hash string
}

const decoyPassword = "decoy-password-never-stored"

var _ IdentityProvider = (*UserProvider)(nil)

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserStore) *UserProvider {
	return &UserProvider{
		store:     store,
		hasher:    BcryptHasher{},
		provision: NewProvisionUserHandler(store),
		logger:    defLogger{},
		decoy:     &decoyHash{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l)
	u.provision.WithLogger(l)
	return u
}

// WithPasswordAuthenticator replaces the bcrypt comparator
func (u *UserProvider) WithPasswordAuthenticator(hasher PasswordAuthenticator) *UserProvider {
	if hasher != nil {
		u.hasher = hasher
		u.decoy = &decoyHash{}
	}
	return u
}

// WithProvisioner replaces the handler used for unseen OAuth emails
func (u *UserProvider) WithProvisioner(p *ProvisionUserHandler) *UserProvider {
	if p != nil {
		u.provision = p
	}
	return u
}

// VerifyIdentity will find the user, compare to the password, and return identity.
// Unknown identifiers, password-less accounts and wrong passwords all return
// ErrInvalidCredentials.
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (*Identity, error) {
	identifier = NormalizeIdentifier(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := u.store.FindByIdentifier(ctx, identifier)
	if err != nil {
		if IsNotFoundError(err) {
			u.compareDecoy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during verification")
	}

	if !user.HasPassword() {
		u.compareDecoy(password)
		return nil, ErrInvalidCredentials
	}

	if err := u.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if !errors.Is(err, ErrMismatchedHashAndPassword) {
			u.logger.Warn("password comparison failed", "user_id", user.ID, "error", err)
		}
		return nil, ErrInvalidCredentials
	}

	return user.Identity(), nil
}

// compareDecoy pays the same hashing cost as a wrong password, so unknown
// identifiers and password-less accounts take as long to reject.
func (u *UserProvider) compareDecoy(password string) {
	u.decoy.once.Do(func() {
		hash, err := u.hasher.HashPassword(decoyPassword)
		if err != nil {
			u.logger.Warn("decoy hash failed", "error", err)
			return
		}
		u.decoy.hash = hash
	})
	if u.decoy.hash != "" {
		_ = u.hasher.ComparePasswordAndHash(password, u.decoy.hash)
	}
}

// VerifyExternalProfile authenticates a verified OAuth profile. An existing
// account with the same email is returned as is, otherwise a new account is
// provisioned.
func (u *UserProvider) VerifyExternalProfile(ctx context.Context, provider string, profile ExternalProfile) (*Identity, error) {
	email := NormalizeEmail(profile.Email)
	if email == "" {
		return nil, ErrMissingIdentity
	}

	user, err := u.store.FindByEmail(ctx, email)
	if err == nil {
		return user.Identity(), nil
	}

	if !IsNotFoundError(err) {
		u.logger.Error("external profile lookup failed", "provider", provider, "error", err)
		return nil, wrapSentinel(ErrProvisioningFailed, err, map[string]any{"provider": provider})
	}

	profile.Email = email
	identity, err := u.provision.Provision(ctx, profile)
	if err != nil {
		u.logger.Error("external profile provisioning failed", "provider", provider, "error", err)
		return nil, wrapSentinel(ErrProvisioningFailed, err, map[string]any{"provider": provider})
	}

	return identity, nil
}
