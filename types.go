package auth

import (
	"context"
	"fmt"
	"strings"
)

// Logger is satisfied by *slog.Logger
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity is the canonical record returned by a successful sign-in
type Identity struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Image    string `json:"image,omitempty"`
}

// ExternalProfile is what an OAuth provider tells us about the user
type ExternalProfile struct {
	Email string
	Name  string
	Image string
}

// UserStore persists user records. Emails and usernames reach the store
// already normalized.
type UserStore interface {
	// FindByIdentifier returns the record whose email or username equals
	// identifier, or ErrRecordNotFound.
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	// FindByEmail returns the record with the given email, or ErrRecordNotFound.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByEmailOrUsername returns every record matching either value.
	FindByEmailOrUsername(ctx context.Context, email, username string) ([]*User, error)
	// Create persists the record, assigns its ID and reports unique
	// violations as ErrEmailTaken or ErrUsernameTaken.
	Create(ctx context.Context, user *User) (*User, error)
}

// IdentityProvider resolves sign-in attempts to identities
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (*Identity, error)
	VerifyExternalProfile(ctx context.Context, provider string, profile ExternalProfile) (*Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args) }
func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args) }

func (d defLogger) print(level, msg string, args []any) {
	var b strings.Builder
	b.WriteString("[" + level + "] AUTH " + msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	fmt.Println(b.String())
}

func normalizeLogger(logger Logger) Logger {
	if logger == nil {
		return defLogger{}
	}
	return logger
}
