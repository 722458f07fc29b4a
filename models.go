package auth

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const (
	// MaxNameLength is the longest display name we store
	MaxNameLength = 60
	// MinUsernameLength is the shortest username we store
	MinUsernameLength = 3
	// MaxUsernameLength is the longest username we store
	MaxUsernameLength = 30
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr" json:"-"`
	ID            string     `bun:"id,pk" json:"id,omitempty"`
	Name          string     `bun:"name,notnull" json:"name"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	Username      string     `bun:"username,notnull,unique" json:"username"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	Image         string     `bun:"image" json:"image,omitempty"`
	EmailVerified *time.Time `bun:"email_verified,nullzero" json:"email_verified,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// HasPassword reports whether the account can sign in with credentials.
// OAuth provisioned accounts have no hash.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// Identity returns the canonical identity for the record
func (u *User) Identity() *Identity {
	if u == nil {
		return nil
	}
	return &Identity{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Username: u.Username,
		Image:    u.Image,
	}
}

// Validate checks the record constraints before it is persisted
func (u User) Validate() error {
	err := validation.ValidateStruct(&u,
		validation.Field(&u.Name, validation.Required, validation.RuneLength(1, MaxNameLength)),
		validation.Field(&u.Email, validation.Required, is.Email),
		validation.Field(&u.Username, validation.Required, validation.RuneLength(MinUsernameLength, MaxUsernameLength)),
		validation.Field(&u.Image, is.URL),
	)
	if err == nil {
		return nil
	}

	return goerrors.Wrap(err, goerrors.CategoryValidation, validationMessage(err)).
		WithTextCode(TextCodeInvalidRecord).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"fields": FormatValidationErrorToMap(err),
		})
}

// FormatValidationErrorToMap flattens ozzo errors into field -> message
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	verrs, ok := err.(validation.Errors)
	if !ok {
		if err != nil {
			out["form"] = err.Error()
		}
		return out
	}
	for field, ferr := range verrs {
		if ferr != nil {
			out[field] = ferr.Error()
		}
	}
	return out
}

func validationMessage(err error) string {
	verrs, ok := err.(validation.Errors)
	if !ok || len(verrs) == 0 {
		return "invalid user record"
	}

	// ozzo orders field names alphabetically in Error()
	msg := verrs.Error()
	if i := strings.Index(msg, ";"); i > 0 {
		msg = msg[:i]
	}
	return strings.TrimSuffix(msg, ".")
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername lowercases and trims a username
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NormalizeIdentifier prepares a sign-in identifier for lookup against
// either the email or the username column.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
