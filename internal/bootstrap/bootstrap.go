// Package bootstrap signs the user in, obtains a Direct Line session token
// and connects the transport.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/wrale/sso-chatbot/internal/directline"
	"github.com/wrale/sso-chatbot/internal/identity"
)

const defaultAttempts = 5

// Session is the identity the connection is established for
type Session interface {
	Initialize(ctx context.Context) error
	CurrentPrincipal() *identity.Principal
	SignInInteractive(ctx context.Context, scopes []string) error
}

// Transport is a connectable bot channel
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
}

// TransportFactory builds a transport from a session token
type TransportFactory func(token string) (Transport, error)

// Config holds bootstrap settings
type Config struct {
	TokenExchangeURL string
	HTTPClient       *http.Client
	Scopes           []string
	Attempts         uint
	BackOff          func() backoff.BackOff
	Logger           *zap.Logger
}

// Bootstrapper runs the connection sequence and tracks its state
type Bootstrapper struct {
	session    Session
	factory    TransportFactory
	tokenURL   string
	httpClient *http.Client
	scopes     []string
	attempts   uint
	newBackOff func() backoff.BackOff
	logger     *zap.Logger

	mu    sync.RWMutex
	state State
}

// New creates a bootstrapper
func New(session Session, factory TransportFactory, cfg Config) (*Bootstrapper, error) {
	// Validate required fields
	if session == nil {
		return nil, errors.New("session is required")
	}
	if factory == nil {
		return nil, errors.New("transport factory is required")
	}
	if cfg.TokenExchangeURL == "" {
		return nil, errors.New("token exchange URL is required")
	}

	b := &Bootstrapper{
		session:    session,
		factory:    factory,
		tokenURL:   cfg.TokenExchangeURL,
		httpClient: cfg.HTTPClient,
		scopes:     cfg.Scopes,
		attempts:   cfg.Attempts,
		newBackOff: cfg.BackOff,
		logger:     cfg.Logger,
		state:      StateIdle,
	}
	if b.httpClient == nil {
		b.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if len(b.scopes) == 0 {
		b.scopes = identity.DefaultScopes
	}
	if b.attempts == 0 {
		b.attempts = defaultAttempts
	}
	if b.newBackOff == nil {
		b.newBackOff = func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		}
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	b.logger = b.logger.Named("bootstrap")

	return b, nil
}

// State returns the current connection state
func (b *Bootstrapper) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Connected reports whether the transport is connected
func (b *Bootstrapper) Connected() bool {
	return b.State() == StateConnected
}

// Run ensures a signed-in principal, fetches the session token and connects
// the transport built from it. On failure the state records where it stopped.
func (b *Bootstrapper) Run(ctx context.Context) (Transport, error) {
	if err := b.ensurePrincipal(ctx); err != nil {
		return nil, err
	}

	b.setState(StateFetchingToken)
	token, err := b.fetchToken(ctx)
	if err != nil {
		b.setState(StateDisconnected)
		b.logger.Error("fetching session token", zap.String("url", b.tokenURL), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	transport, err := b.factory(token)
	if err != nil {
		b.setState(StateDisconnected)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	b.setState(StateConnecting)
	if err := transport.Connect(ctx); err != nil {
		b.setState(StateDisconnected)
		transport.Close()
		b.logger.Error("connecting transport", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	b.setState(StateConnected)
	b.logger.Info("connected")
	return transport, nil
}

// Observe tracks transport lifecycle events after Run
func (b *Bootstrapper) Observe(ev directline.Event) {
	switch ev.Kind {
	case directline.KindDisconnected:
		b.setState(StateDisconnected)
	case directline.KindReconnected:
		b.setState(StateConnected)
	}
}

func (b *Bootstrapper) ensurePrincipal(ctx context.Context) error {
	if err := b.session.Initialize(ctx); err != nil {
		// An unreadable cache is treated as signed out
		b.logger.Warn("loading cached accounts", zap.Error(err))
	}
	if b.session.CurrentPrincipal() != nil {
		b.logger.Debug("restored cached principal")
		return nil
	}

	b.setState(StateSigningIn)
	if err := b.session.SignInInteractive(ctx, b.scopes); err != nil {
		b.setState(StateSignInFailed)
		b.logger.Error("interactive sign-in failed", zap.Error(err))
		return err
	}
	return nil
}

func (b *Bootstrapper) fetchToken(ctx context.Context) (string, error) {
	op := func() (string, error) {
		token, err := directline.FetchSessionToken(ctx, b.httpClient, b.tokenURL)
		if err != nil {
			var ferr *directline.FetchError
			if errors.As(err, &ferr) && !ferr.Temporary() {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		return token, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b.newBackOff()),
		backoff.WithMaxTries(b.attempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			b.logger.Warn("session token fetch failed, retrying", zap.Error(err), zap.Duration("wait", wait))
		}),
	)
}

func (b *Bootstrapper) setState(s State) {
	b.mu.Lock()
	prev := b.state
	b.state = s
	b.mu.Unlock()

	if prev != s {
		b.logger.Debug("state changed", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}
