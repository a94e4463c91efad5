// Package main runs the SSO chat client
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wrale/sso-chatbot/internal/bootstrap"
	"github.com/wrale/sso-chatbot/internal/chat"
	"github.com/wrale/sso-chatbot/internal/directline"
	"github.com/wrale/sso-chatbot/internal/identity"
	"github.com/wrale/sso-chatbot/internal/interceptor"
	"github.com/wrale/sso-chatbot/internal/templates"
)

// Version is set by the build process
var Version = "dev"

// sessionStore is an MSAL token cache whose backend can be health checked
type sessionStore interface {
	cache.ExportReplace
	identity.HealthChecker
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sso-chatbot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create the session cache
	store, closeStore, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tmpls, err := templates.LoadTemplates()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	// Initialize identity
	provider, err := identity.NewMSALProvider(identity.MSALConfig{
		ClientID:    cfg.ClientID,
		TenantID:    cfg.TenantID,
		Cache:       store,
		LoginMode:   identity.LoginMode(cfg.LoginMode),
		RedirectURI: cfg.RedirectURI,
		Prompt: func(message string) {
			if err := tmpls.RenderDeviceCode(os.Stdout, templates.DeviceCodeData{BotName: cfg.BotName, Message: message}); err != nil {
				logger.Warn("rendering device code prompt", zap.Error(err))
			}
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("creating identity provider: %w", err)
	}
	session := identity.NewSession(provider, identity.WithLogger(logger), identity.WithStore(store))

	// The factory records the connection so the chat loop can use it
	var conn *directline.Conn
	factory := func(token string) (bootstrap.Transport, error) {
		client := directline.NewClient(token,
			directline.WithBaseURL(cfg.DirectLineURL),
			directline.WithClientLogger(logger))
		conn = directline.NewConn(client, directline.WithLogger(logger))
		return conn, nil
	}

	boot, err := bootstrap.New(session, factory, bootstrap.Config{
		TokenExchangeURL: cfg.TokenExchangeURL,
		Attempts:         cfg.TokenFetchAttempts,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("creating bootstrap: %w", err)
	}

	outbox := chat.NewOutbox(session)
	srv := newServer(boot, session, outbox, logger)

	// Create HTTP server with proper timeout configurations
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Start server
	g.Go(func() error {
		logger.Info("server listening", zap.Int("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})

	// Shut the server down with the group
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("starting shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down server", zap.Error(err))
			return httpServer.Close()
		}
		return nil
	})

	// Connect and run the chat
	g.Go(func() error {
		transport, err := boot.Run(gctx)
		if err != nil {
			if gctx.Err() != nil {
				return nil
			}
			// Keep serving health as degraded
			logger.Error("chat unavailable", zap.Stringer("state", boot.State()), zap.Error(err))
			return nil
		}
		defer transport.Close()

		return runChat(gctx, cfg, conn, session, outbox, boot, tmpls, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runChat(ctx context.Context, cfg Config, conn *directline.Conn, session *identity.Session, outbox *chat.Outbox,
	boot *bootstrap.Bootstrapper, tmpls *templates.Templates, logger *zap.Logger) error {
	outbox.Attach(conn)
	defer outbox.Attach(nil)

	renderer := chat.NewRenderer(os.Stdout, tmpls, cfg.BotName,
		chat.WithUserID(session.UserID()),
		chat.WithRendererLogger(logger))
	mw := interceptor.New(session, conn, interceptor.WithLogger(logger))
	pipeline := chat.NewPipeline(conn, mw, renderer.Render,
		chat.WithObserver(boot.Observe),
		chat.WithPipelineLogger(logger))

	composer := chat.NewComposer(os.Stdin, outbox, logger)
	go func() {
		if err := composer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("reading input", zap.Error(err))
		}
	}()

	err := pipeline.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newSessionStore selects Redis when configured and an in-process cache otherwise
func newSessionStore(ctx context.Context, cfg Config) (sessionStore, func(), error) {
	if cfg.RedisURL == "" {
		return identity.NewMemoryCache(), func() {}, nil
	}

	// Create Redis client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing Redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)

	// Verify Redis connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	store := identity.NewRedisCache(redisClient, cfg.ClientID, cfg.SessionTTL)
	return store, func() { redisClient.Close() }, nil
}
