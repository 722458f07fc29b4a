package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeMissingFields      = "MISSING_FIELDS"
	TextCodeWeakPassword       = "WEAK_PASSWORD"
	TextCodePasswordTooLong    = "PASSWORD_TOO_LONG"
	TextCodeEmailTaken         = "EMAIL_TAKEN"
	TextCodeUsernameTaken      = "USERNAME_TAKEN"
	TextCodeInvalidRecord      = "INVALID_USER_RECORD"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeMissingIdentity    = "MISSING_IDENTITY"
	TextCodeProvisioningFailed = "PROVISIONING_FAILED"
	TextCodeRecordNotFound     = "RECORD_NOT_FOUND"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeSessionNotFound    = "SESSION_NOT_FOUND"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeStoreUnavailable   = "STORE_UNAVAILABLE"
)

// MessageRegistrationFailed is the generic message for unexpected
// registration failures. Causes are logged, never returned to the client.
const MessageRegistrationFailed = "An error occurred during registration"

// MessageRegistrationSucceeded is returned when an account is created
const MessageRegistrationSucceeded = "Account created successfully"

// ErrMissingFields one of name, username, email or password is empty
var ErrMissingFields = goerrors.New("All fields are required", goerrors.CategoryValidation).
	WithTextCode(TextCodeMissingFields).
	WithCode(goerrors.CodeBadRequest)

// ErrWeakPassword password is shorter than MinPasswordLength
var ErrWeakPassword = goerrors.New("Password must be at least 6 characters", goerrors.CategoryValidation).
	WithTextCode(TextCodeWeakPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordTooLong bcrypt only reads the first 72 bytes
var ErrPasswordTooLong = goerrors.New("Password must be at most 72 bytes", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordTooLong).
	WithCode(goerrors.CodeBadRequest)

// ErrEmailTaken an account already uses the email
var ErrEmailTaken = goerrors.New("Email already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrUsernameTaken an account already uses the username
var ErrUsernameTaken = goerrors.New("Username already taken", goerrors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials covers unknown identifiers, password-less accounts
// and wrong passwords alike.
var ErrInvalidCredentials = goerrors.New("Invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingIdentity the OAuth profile did not carry an email
var ErrMissingIdentity = goerrors.New("external profile has no email", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingIdentity).
	WithCode(goerrors.CodeBadRequest)

// ErrProvisioningFailed lookup or creation failed during OAuth sign-in
var ErrProvisioningFailed = goerrors.New("unable to provision user", goerrors.CategoryOperation).
	WithTextCode(TextCodeProvisioningFailed).
	WithCode(goerrors.CodeInternal)

// ErrRecordNotFound is returned by stores when no record matches
var ErrRecordNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTokenExpired the session token is past its expiry
var ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed the session token could not be parsed or verified
var ErrTokenMalformed = goerrors.New("token malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToFindSession the request carries no session token
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString the password is empty
var ErrNoEmptyString = goerrors.New("password can't be an empty string", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrStoreUnavailable the user store could not be reached
var ErrStoreUnavailable = goerrors.New("user store unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable).
	WithCode(goerrors.CodeInternal)

// wrapSentinel clones base and attaches cause as its source
func wrapSentinel(base *goerrors.Error, cause error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if cause != nil {
		clone.Source = cause
		if meta == nil {
			meta = map[string]any{}
		}
		meta["cause"] = cause.Error()
	}
	if len(meta) > 0 {
		clone = clone.WithMetadata(meta)
	}
	return clone
}

// HasTextCode reports whether err or anything it wraps is a rich error with
// the given text code.
func HasTextCode(err error, code string) bool {
	for err != nil {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			return false
		}
		if richErr.TextCode == code {
			return true
		}
		err = richErr.Source
	}
	return false
}

// IsConflictError reports whether err is a uniqueness violation
func IsConflictError(err error) bool {
	return errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrUsernameTaken) ||
		HasTextCode(err, TextCodeEmailTaken) ||
		HasTextCode(err, TextCodeUsernameTaken)
}

// IsNotFoundError reports whether a store lookup came back empty
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || HasTextCode(err, TextCodeRecordNotFound)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return errors.Is(err, ErrTokenExpired) || HasTextCode(err, TextCodeTokenExpired)
}

// IsMalformedError will check for tokens that fail verification
func IsMalformedError(err error) bool {
	return errors.Is(err, ErrTokenMalformed) || HasTextCode(err, TextCodeTokenMalformed)
}

// RegistrationResult is the payload returned by the registration endpoint
type RegistrationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RegistrationResponse maps the outcome of a registration to the message
// shown to the client.
func RegistrationResponse(err error) RegistrationResult {
	if err == nil {
		return RegistrationResult{Success: true, Message: MessageRegistrationSucceeded}
	}

	for _, known := range []*goerrors.Error{
		ErrMissingFields,
		ErrWeakPassword,
		ErrPasswordTooLong,
		ErrEmailTaken,
		ErrUsernameTaken,
	} {
		if errors.Is(err, known) || HasTextCode(err, known.TextCode) {
			return RegistrationResult{Message: known.Message}
		}
	}

	if HasTextCode(err, TextCodeInvalidRecord) {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Message != "" {
			return RegistrationResult{Message: richErr.Message}
		}
	}

	return RegistrationResult{Message: MessageRegistrationFailed}
}
