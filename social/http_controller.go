package social

import (
	"crypto/subtle"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/holymark/auth"
)

// Error codes appended to the error redirect
const (
	ErrorCodeAccessDenied = "access_denied"
	ErrorCodeInvalidState = "invalid_state"
	ErrorCodeAuthFailed   = "auth_failed"
	ErrorCodeAccountTaken = "account_unavailable"
)

// HTTPController handles social auth HTTP routes.
type HTTPController struct {
	authenticator *SocialAuthenticator
	routes        *auth.RouteAuthenticator
	config        HTTPConfig
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// PathPrefix for routes (default: "/auth/social")
	PathPrefix string

	// NonceCookieName binds the state to the browser that started the flow
	// (default: "oauth_nonce")
	NonceCookieName string
	NonceTTL        time.Duration
	CookieSecure    bool

	// ErrorRedirect is the page that receives ?error=<code> (default: "/")
	ErrorRedirect string

	Logger auth.Logger
}

// NewHTTPController creates a new social auth HTTP controller.
func NewHTTPController(sa *SocialAuthenticator, routes *auth.RouteAuthenticator, cfg HTTPConfig) *HTTPController {
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/auth/social"
	}
	if cfg.NonceCookieName == "" {
		cfg.NonceCookieName = "oauth_nonce"
	}
	if cfg.NonceTTL <= 0 {
		cfg.NonceTTL = DefaultStateTTL
	}
	if cfg.ErrorRedirect == "" {
		cfg.ErrorRedirect = "/"
	}

	return &HTTPController{
		authenticator: sa,
		routes:        routes,
		config:        cfg,
	}
}

// RegisterRoutes mounts the begin and callback handlers
func (h *HTTPController) RegisterRoutes(r fiber.Router) {
	r.Get(h.config.PathPrefix+"/:provider", h.Begin).
		Name("social.begin")
	r.Get(h.config.PathPrefix+"/:provider/callback", h.Callback).
		Name("social.callback")
}

// Begin redirects the browser to the provider consent screen
func (h *HTTPController) Begin(c *fiber.Ctx) error {
	provider := c.Params("provider")
	callbackURL := c.Query("callbackUrl")

	redirect, err := h.authenticator.BeginAuth(c.UserContext(), provider, callbackURL)
	if err != nil {
		return h.fail(c, provider, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.config.NonceCookieName,
		Value:    redirect.Nonce,
		Path:     h.config.PathPrefix,
		Expires:  time.Now().Add(h.config.NonceTTL),
		HTTPOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.Redirect(redirect.URL, fiber.StatusFound)
}

// Callback completes the flow, signs the user in and redirects to the
// callback URL captured in Begin.
func (h *HTTPController) Callback(c *fiber.Ctx) error {
	provider := c.Params("provider")
	defer h.clearNonce(c)

	if providerErr := c.Query("error"); providerErr != "" {
		return h.fail(c, provider, WrapProviderError(ErrAccessDenied, provider, "authorize", nil))
	}

	result, err := h.authenticator.CompleteAuth(c.UserContext(), provider, c.Query("code"), c.Query("state"))
	if err != nil {
		return h.fail(c, provider, err)
	}

	nonce := c.Cookies(h.config.NonceCookieName)
	if nonce == "" || subtle.ConstantTimeCompare([]byte(nonce), []byte(result.Nonce)) != 1 {
		return h.fail(c, provider, ErrInvalidState)
	}

	if _, err := h.routes.LoginWithProfile(c, provider, result.Profile.ExternalProfile()); err != nil {
		return h.fail(c, provider, err)
	}

	return c.Redirect(auth.ResolveRedirect(result.CallbackURL, h.routes.Origin(c)), fiber.StatusFound)
}

func (h *HTTPController) fail(c *fiber.Ctx, provider string, err error) error {
	code := ErrorCode(err)
	if h.config.Logger != nil {
		h.config.Logger.Warn("social auth failed", "provider", provider, "code", code, "error", err)
	}
	return c.Redirect(h.config.ErrorRedirect+"?error="+url.QueryEscape(code), fiber.StatusFound)
}

func (h *HTTPController) clearNonce(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.config.NonceCookieName,
		Value:    "",
		Path:     h.config.PathPrefix,
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ErrorCode maps a social auth failure to the short code shown on the
// sign-in page. Causes are never exposed.
func ErrorCode(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ErrorCodeAuthFailed
	}
	switch {
	case richErr.TextCode == TextCodeAccessDenied:
		return ErrorCodeAccessDenied
	case richErr.TextCode == TextCodeInvalidState, richErr.TextCode == TextCodeStateExpired:
		return ErrorCodeInvalidState
	case auth.HasTextCode(err, auth.TextCodeUsernameTaken), auth.HasTextCode(err, auth.TextCodeEmailTaken):
		return ErrorCodeAccountTaken
	}
	return ErrorCodeAuthFailed
}
