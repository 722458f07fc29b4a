package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/holymark/auth"
	"github.com/holymark/auth/activitymap"
	"github.com/holymark/auth/repository"
	"github.com/holymark/auth/social"
	"github.com/holymark/auth/social/providers/google"
)

type App struct {
	config *auth.Config
	logger *slog.Logger
	repo   *repository.Manager
	auther *auth.RouteAuthenticator
	srv    *fiber.App
}

func main() {
	cfg, err := auth.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	lgr := newLogger(cfg.LogLevel)

	fmt.Println("============")
	fmt.Println(print.MaybePrettyJSON(cfg.Redacted()))
	fmt.Println("============")

	app := &App{config: cfg, logger: lgr}
	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		lgr.Error("persistence setup failed", "error", err)
		os.Exit(1)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		lgr.Error("http setup failed", "error", err)
		os.Exit(1)
	}

	go func() {
		lgr.Info("listening", "addr", cfg.HTTPAddr, "store", app.repo.Kind())
		if err := app.srv.Listen(cfg.HTTPAddr); err != nil {
			lgr.Error("server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	lgr.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := app.srv.ShutdownWithContext(shutdownCtx); err != nil {
		lgr.Error("http shutdown", "error", err)
	}
	if err := app.repo.Close(shutdownCtx); err != nil {
		lgr.Error("store close", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func WithPersistence(ctx context.Context, app *App) error {
	manager, err := repository.Open(ctx, app.config.DatabaseURL,
		repository.WithLogger(app.logger.With("component", "repository")),
		repository.WithQueryDebug(app.logger.Enabled(ctx, slog.LevelDebug)),
		repository.WithDatabaseName(app.config.DatabaseName),
	)
	if err != nil {
		return err
	}
	app.repo = manager

	// a store that is down now gets its indexes on first use
	if err := manager.EnsureIndexes(ctx); err != nil {
		app.logger.Warn("ensure indexes", "store", manager.Kind(), "error", err)
	}
	return nil
}

func WithHTTPServer(_ context.Context, app *App) error {
	cfg := app.config
	lgr := app.logger
	users := app.repo.Users()
	hasher := auth.BcryptHasher{}

	provider := auth.NewUserProvider(users).
		WithLogger(lgr.With("component", "user_provider")).
		WithPasswordAuthenticator(hasher).
		WithProvisioner(auth.NewProvisionUserHandler(users).WithLogger(lgr))

	tokens := auth.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenTTL(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		lgr.With("component", "tokens"),
	)

	activity := activitymap.NewSink(lgr.With("component", "activity"))

	auther := auth.NewAuthenticator(provider, tokens).
		WithLogger(lgr.With("component", "authenticator")).
		WithActivitySink(activity)

	registrar := auth.NewRegisterUserHandler(users).
		WithLogger(lgr.With("component", "register")).
		WithPasswordAuthenticator(hasher).
		WithActivitySink(activity)

	app.auther = auth.NewHTTPAuthenticator(auther, cfg).
		WithLogger(lgr.With("component", "http_auth"))

	app.srv = fiber.New(fiber.Config{
		AppName:               "holymark-auth",
		Views:                 auth.NewViewEngine(),
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(lgr),
	})

	opts := []auth.AuthControllerOption{
		auth.WithControllerLogger(lgr.With("component", "controller")),
		auth.WithDebug(lgr.Enabled(context.Background(), slog.LevelDebug)),
		auth.WithHTTPAuthenticator(app.auther),
		auth.WithRegistrar(registrar),
	}

	if cfg.GoogleEnabled() {
		sc, err := newSocialController(app)
		if err != nil {
			return err
		}
		sc.RegisterRoutes(app.srv)
		opts = append(opts, auth.WithSocialProviders("google"))
	}

	auth.RegisterAuthRoutes(app.srv, opts...)
	return nil
}

func newSocialController(app *App) (*social.HTTPController, error) {
	cfg := app.config

	states, err := social.NewStateManagerFromSecret([]byte(cfg.GetSigningKey()), social.DefaultStateTTL)
	if err != nil {
		return nil, err
	}

	sa := social.NewSocialAuthenticator(states,
		social.WithLogger(app.logger.With("component", "social")),
		social.WithProvider(google.New(google.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			CallbackURL:  cfg.AppOrigin + "/auth/social/google/callback",
		})),
	)

	return social.NewHTTPController(sa, app.auther, social.HTTPConfig{
		CookieSecure: cfg.CookieSecure,
		Logger:       app.logger.With("component", "social_http"),
	}), nil
}

func errorHandler(lgr *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if fe, ok := err.(*fiber.Error); ok {
			code = fe.Code
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Code != 0 {
			code = richErr.Code
		}

		if code >= fiber.StatusInternalServerError {
			lgr.Error("request failed", "path", c.Path(), "error", err)
		}
		return c.Status(code).SendString(utils.StatusMessage(code))
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
