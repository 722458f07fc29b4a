package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// SessionContextKey is the fiber Locals key holding the *SessionView
const SessionContextKey = "auth.session"

type RouteAuthenticator struct {
	auth             *Auther
	cfg              *Config
	Logger           Logger
	AuthErrorHandler func(c *fiber.Ctx, err error) error
}

func NewHTTPAuthenticator(auther *Auther, cfg *Config) *RouteAuthenticator {
	if cfg == nil {
		cfg = &Config{}
	}
	a := &RouteAuthenticator{
		auth:   auther,
		cfg:    cfg,
		Logger: defLogger{},
	}
	a.AuthErrorHandler = a.defaultAuthErrHandler
	return a
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(logger)
	return a
}

// CookieName is the cookie carrying the session token
func (a *RouteAuthenticator) CookieName() string {
	if a.cfg.CookieName == "" {
		return DefaultCookieName
	}
	return a.cfg.CookieName
}

// Origin is the public origin used to resolve redirects
func (a *RouteAuthenticator) Origin(c *fiber.Ctx) string {
	if a.cfg.AppOrigin != "" {
		return strings.TrimSuffix(a.cfg.AppOrigin, "/")
	}
	return c.BaseURL()
}

// Login verifies credentials and sets the session cookie
func (a *RouteAuthenticator) Login(c *fiber.Ctx, identifier, password string) (*LoginResult, error) {
	res, err := a.auth.Login(c.UserContext(), identifier, password)
	if err != nil {
		return nil, err
	}
	a.setCookieToken(c, res.Token, res.Expires)
	return res, nil
}

// LoginWithProfile signs in with a verified OAuth profile and sets the
// session cookie
func (a *RouteAuthenticator) LoginWithProfile(c *fiber.Ctx, provider string, profile ExternalProfile) (*LoginResult, error) {
	res, err := a.auth.LoginWithProfile(c.UserContext(), provider, profile)
	if err != nil {
		return nil, err
	}
	a.setCookieToken(c, res.Token, res.Expires)
	return res, nil
}

func (a *RouteAuthenticator) Logout(c *fiber.Ctx) {
	a.cookieDel(c, a.CookieName())
}

// SessionFromRequest reads the token from the session cookie or a bearer
// Authorization header.
func (a *RouteAuthenticator) SessionFromRequest(c *fiber.Ctx) (*SessionView, error) {
	raw := c.Cookies(a.CookieName())
	if raw == "" {
		if h := c.Get(fiber.HeaderAuthorization); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			raw = strings.TrimSpace(h[7:])
		}
	}
	if raw == "" {
		return nil, ErrUnableToFindSession
	}
	return a.auth.SessionFromToken(raw)
}

// ProtectedRoute rejects requests without a valid session. A nil
// errorHandler uses AuthErrorHandler.
func (a *RouteAuthenticator) ProtectedRoute(errorHandler func(*fiber.Ctx, error) error) fiber.Handler {
	if errorHandler == nil {
		errorHandler = a.AuthErrorHandler
	}
	return func(c *fiber.Ctx) error {
		session, err := a.SessionFromRequest(c)
		if err != nil {
			return errorHandler(c, err)
		}
		a.storeSession(c, session)
		return c.Next()
	}
}

// OptionalSession loads the session when one is present and always
// continues.
func (a *RouteAuthenticator) OptionalSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := a.SessionFromRequest(c)
		if err == nil {
			a.storeSession(c, session)
		} else if IsTokenExpiredError(err) || IsMalformedError(err) {
			a.Logger.Debug("optional auth failed, proceeding", "error", err)
			a.Logout(c)
		}
		return c.Next()
	}
}

func (a *RouteAuthenticator) storeSession(c *fiber.Ctx, session *SessionView) {
	c.Locals(SessionContextKey, session)
	c.SetUserContext(WithSessionContext(c.UserContext(), session))
}

// GetSession returns the session loaded by ProtectedRoute or OptionalSession
func GetSession(c *fiber.Ctx) (*SessionView, error) {
	session, ok := c.Locals(SessionContextKey).(*SessionView)
	if !ok || session == nil {
		return nil, ErrUnableToFindSession
	}
	return session, nil
}

func (a *RouteAuthenticator) setCookieToken(c *fiber.Ctx, val string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     a.CookieName(),
		Value:    val,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *RouteAuthenticator) cookieDel(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// defaultAuthErrHandler sends browsers back to the home page and answers
// API calls with 401
func (a *RouteAuthenticator) defaultAuthErrHandler(c *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryAuth, "invalid authentication token").
			WithCode(goerrors.CodeUnauthorized)
	}

	a.Logger.Debug(
		"authentication error",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	if IsTokenExpiredError(err) || IsMalformedError(err) {
		a.Logout(c)
	}

	if wantsJSON(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": richErr.Message,
		})
	}
	return c.Redirect("/", fiber.StatusFound)
}

func wantsJSON(c *fiber.Ctx) bool {
	if strings.HasPrefix(c.Path(), "/api/") {
		return true
	}
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON) ||
		strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)
}
