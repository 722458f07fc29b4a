package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultDatabaseName = "auth"
	DefaultIssuer       = "holymark-auth"
	DefaultCookieName   = "session"
	DefaultHTTPAddr     = ":3000"
	DefaultAppOrigin    = "http://localhost:3000"
)

// Config holds the process configuration, read from the environment
type Config struct {
	DatabaseURL        string        `env:"DATABASE_URL" json:"database_url"`
	MongoURI           string        `env:"MONGODB_URI" json:"mongodb_uri,omitempty"`
	DatabaseName       string        `env:"DATABASE_NAME" envDefault:"auth" json:"database_name"`
	SigningKey         string        `env:"AUTH_SECRET" json:"auth_secret"`
	Issuer             string        `env:"AUTH_ISSUER" envDefault:"holymark-auth" json:"issuer"`
	Audience           []string      `env:"AUTH_AUDIENCE" envSeparator:"," json:"audience,omitempty"`
	TokenTTL           time.Duration `env:"TOKEN_TTL" envDefault:"720h" json:"token_ttl"`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID" json:"google_client_id,omitempty"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET" json:"google_client_secret,omitempty"`
	AppOrigin          string        `env:"APP_ORIGIN" envDefault:"http://localhost:3000" json:"app_origin"`
	HTTPAddr           string        `env:"HTTP_ADDR" envDefault:":3000" json:"http_addr"`
	CookieName         string        `env:"COOKIE_NAME" envDefault:"session" json:"cookie_name"`
	CookieSecure       bool          `env:"COOKIE_SECURE" envDefault:"true" json:"cookie_secure"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info" json:"log_level"`
}

// LoadConfig reads Config from the environment and validates it. A missing
// connection string or signing secret is an error.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse environment")
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = cfg.MongoURI
	}
	cfg.AppOrigin = strings.TrimSuffix(cfg.AppOrigin, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required settings
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.DatabaseURL, validation.Required.Error("DATABASE_URL is required")),
		validation.Field(&c.SigningKey, validation.Required.Error("AUTH_SECRET is required")),
		validation.Field(&c.AppOrigin, validation.Required, is.URL),
		validation.Field(&c.CookieName, validation.Required),
		validation.Field(&c.TokenTTL, validation.Min(time.Minute)),
	)
	if err == nil && c.GoogleClientID != "" && c.GoogleClientSecret == "" {
		err = validation.Errors{"google_client_secret": errors.New("cannot be blank")}
	}
	if err == nil {
		return nil
	}

	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration").
		WithMetadata(map[string]any{
			"fields": FormatValidationErrorToMap(err),
		})
}

// GoogleEnabled reports whether Google sign-in is configured
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Redacted returns a copy safe to print
func (c Config) Redacted() Config {
	c.DatabaseURL = redactURL(c.DatabaseURL)
	c.MongoURI = redactURL(c.MongoURI)
	c.SigningKey = redact(c.SigningKey)
	c.GoogleClientSecret = redact(c.GoogleClientSecret)
	return c
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// redactURL hides the userinfo part of a connection string
func redactURL(s string) string {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return s
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return s
	}
	return scheme + "://********@" + rest[at+1:]
}

// GetSigningKey returns the token signing secret
func (c Config) GetSigningKey() string { return c.SigningKey }

// GetIssuer returns the token issuer
func (c Config) GetIssuer() string { return c.Issuer }

// GetAudience returns the token audience
func (c Config) GetAudience() []string { return c.Audience }

// GetTokenTTL returns the session lifetime
func (c Config) GetTokenTTL() time.Duration { return c.TokenTTL }
