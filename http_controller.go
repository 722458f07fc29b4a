package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// MessageInvalidCredentials is the only message a failed sign-in shows
const MessageInvalidCredentials = "Invalid credentials"

// MessageSignInFailed is shown when sign-in fails for reasons other than
// the credentials
const MessageSignInFailed = "Something went wrong, please try again"

// RegisterAuthRoutes mounts the pages and API endpoints on app
func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)
	auther := controller.Auther

	app.Get(controller.Routes.Home, auther.OptionalSession(), controller.HomeShow).
		Name("home.get")
	app.Get(controller.Routes.Profile, auther.ProtectedRoute(nil), controller.ProfileShow).
		Name("profile.get")
	app.Get(controller.Routes.Logout, controller.LogOut).
		Name("sign-out.get")

	app.Post(controller.Routes.Login, controller.LoginPost).
		Name("sign-in.post")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		Name("register.post")
	app.Get(controller.Routes.Session, auther.OptionalSession(), controller.SessionShow).
		Name("session.get")

	return controller
}

type AuthControllerRoutes struct {
	Home     string
	Profile  string
	Logout   string
	Login    string
	Register string
	Session  string
}

type AuthControllerViews struct {
	Home    string
	Profile string
}

type AuthController struct {
	Debug           bool
	Logger          Logger
	Auther          *RouteAuthenticator
	Registrar       *RegisterUserHandler
	Routes          *AuthControllerRoutes
	Views           *AuthControllerViews
	SocialProviders []string
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

// WithDebug prints incoming payloads, passwords redacted
func WithDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func WithHTTPAuthenticator(a *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = a
		return c
	}
}

func WithRegistrar(r *RegisterUserHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Registrar = r
		return c
	}
}

// WithSocialProviders lists the providers offered on the sign-in page
func WithSocialProviders(names ...string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.SocialProviders = append(c.SocialProviders, names...)
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Home:     "/",
			Profile:  "/profile",
			Logout:   "/logout",
			Login:    "/api/login",
			Register: "/api/register",
			Session:  "/api/session",
		},
		Views: &AuthControllerViews{
			Home:    "index",
			Profile: "profile",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	if c.Registrar == nil {
		panic("Missing RegisterUserHandler in auth controller...")
	}

	return c
}

// HomeShow renders the sign-in and sign-up forms. Signed in users go
// straight to their profile.
func (a *AuthController) HomeShow(c *fiber.Ctx) error {
	if session, err := GetSession(c); err == nil && session.IsAuthenticated() {
		return c.Redirect(a.Routes.Profile, fiber.StatusFound)
	}

	return c.Render(a.Views.Home, fiber.Map{
		"view":      c.Query("view", "signin"),
		"error":     c.Query("error"),
		"providers": a.SocialProviders,
		"routes":    a.Routes,
	})
}

func (a *AuthController) ProfileShow(c *fiber.Ctx) error {
	session, err := GetSession(c)
	if err != nil || !session.IsAuthenticated() {
		return c.Redirect(a.Routes.Home, fiber.StatusFound)
	}

	return c.Render(a.Views.Profile, fiber.Map{
		"user": fiber.Map{
			"id":       session.User.ID,
			"name":     session.User.Name,
			"email":    session.User.Email,
			"username": session.User.Username,
			"image":    session.User.Image,
		},
		"handle": session.DisplayUsername(),
		"routes": a.Routes,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier  string `form:"identifier" json:"identifier"`
	Password    string `form:"password" json:"password"`
	CallbackURL string `form:"callbackUrl" json:"callbackUrl"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (r LoginRequest) redacted() LoginRequest {
	r.Password = redact(r.Password)
	return r
}

// LoginPost answers {ok, url} on success and a generic 401 otherwise
func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Warn("login parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok":    false,
			"error": MessageInvalidCredentials,
		})
	}

	if a.Debug {
		a.Logger.Debug("login payload", "payload", print.MaybePrettyJSON(payload.redacted()))
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"ok":    false,
			"error": MessageInvalidCredentials,
		})
	}

	if _, err := a.Auther.Login(c, payload.Identifier, payload.Password); err != nil {
		if HasTextCode(err, TextCodeInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": MessageInvalidCredentials,
			})
		}
		a.Logger.Error("login failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":    false,
			"error": MessageSignInFailed,
		})
	}

	callback := payload.CallbackURL
	if callback == "" {
		callback = a.Routes.Profile
	}

	return c.JSON(fiber.Map{
		"ok":  true,
		"url": ResolveRedirect(callback, a.Auther.Origin(c)),
	})
}

func (a *AuthController) LogOut(c *fiber.Ctx) error {
	a.Auther.Logout(c)
	return c.Redirect(a.Routes.Home, fiber.StatusFound)
}

// RegistrationCreate creates the account and signs the new user in.
// The body is always {success, message}; failures never expose causes.
func (a *AuthController) RegistrationCreate(c *fiber.Ctx) error {
	payload := new(RegisterUserMessage)
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Warn("register user parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(RegistrationResponse(ErrMissingFields))
	}

	if a.Debug {
		redacted := *payload
		redacted.Password = redact(redacted.Password)
		a.Logger.Debug("register payload", "payload", print.MaybePrettyJSON(redacted))
	}

	identity, err := a.Registrar.Register(c.UserContext(), *payload)
	res := RegistrationResponse(err)
	if err != nil {
		status := registrationStatus(err)
		if status == fiber.StatusInternalServerError {
			a.Logger.Error("register user failed", "error", err)
		}
		return c.Status(status).JSON(res)
	}

	if _, err := a.Auther.Login(c, identity.Email, payload.Password); err != nil {
		a.Logger.Error("sign in after registration failed", "user_id", identity.ID, "error", err)
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

// SessionShow returns the current session or an empty object
func (a *AuthController) SessionShow(c *fiber.Ctx) error {
	session, err := GetSession(c)
	if err != nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(session)
}

func registrationStatus(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return fiber.StatusInternalServerError
	}
	switch richErr.Category {
	case goerrors.CategoryValidation:
		return fiber.StatusBadRequest
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}
