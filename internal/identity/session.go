package identity

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Session holds the signed-in principal for the lifetime of the chat client.
// It is constructed once at the composition root and shared by reference.
type Session struct {
	provider Provider
	store    HealthChecker
	logger   *zap.Logger

	mu         sync.RWMutex
	principals []Principal
	active     *Principal
	fallbackID string
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithLogger sets the session logger
func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore attaches the session cache store so its health can be reported
func WithStore(store HealthChecker) SessionOption {
	return func(s *Session) {
		s.store = store
	}
}

// NewSession creates a session over provider
func NewSession(provider Provider, opts ...SessionOption) *Session {
	s := &Session{
		provider: provider,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("identity")
	return s
}

// Initialize loads the accounts already present in the provider's cache
func (s *Session) Initialize(ctx context.Context) error {
	return s.reload(ctx)
}

// CurrentPrincipal returns the first cached account or nil
func (s *Session) CurrentPrincipal() *Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.principals) == 0 {
		return nil
	}
	p := s.principals[0]
	return &p
}

// ActivePrincipal returns the account most recently used for silent acquisition
func (s *Session) ActivePrincipal() *Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == nil {
		return nil
	}
	p := *s.active
	return &p
}

// SignInInteractive prompts the user to sign in. Errors wrap ErrAuth.
func (s *Session) SignInInteractive(ctx context.Context, scopes []string) error {
	p, err := s.provider.Login(ctx, scopes)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}

	s.logger.Info("signed in", zap.String("account", p.AccountID))

	// Reload so the principal order matches the provider cache
	if err := s.reload(ctx); err != nil {
		s.logger.Warn("reloading accounts after sign-in", zap.Error(err))
	}

	s.mu.Lock()
	if len(s.principals) == 0 {
		s.principals = []Principal{p}
	}
	s.mu.Unlock()

	return nil
}

// AcquireSilently requests a token scoped to resourceURI for the current
// principal. It never prompts and never fails: any error is logged and
// reported as no token.
func (s *Session) AcquireSilently(ctx context.Context, resourceURI string) (string, bool) {
	p := s.CurrentPrincipal()
	if p == nil {
		s.logger.Warn("silent token acquisition skipped",
			zap.String("resource", resourceURI),
			zap.Error(ErrNoPrincipal))
		return "", false
	}

	// The provider cache may hold several accounts
	s.setActive(p)

	token, err := s.provider.AcquireTokenSilent(ctx, []string{resourceURI}, *p)
	if err != nil {
		s.logger.Warn("silent token acquisition failed",
			zap.String("resource", resourceURI),
			zap.String("account", p.AccountID),
			zap.Error(fmt.Errorf("%w: %w", ErrSilentAcquisition, err)))
		return "", false
	}
	if token == "" {
		s.logger.Warn("silent token acquisition returned an empty token",
			zap.String("resource", resourceURI))
		return "", false
	}

	return token, true
}

// UserID returns the chat participant id. Without a principal a random id is
// generated once and reused for the rest of the session.
func (s *Session) UserID() string {
	if p := s.CurrentPrincipal(); p != nil && p.AccountID != "" {
		return DeriveUserID(p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fallbackID == "" {
		s.fallbackID = randomUserID()
	}
	return s.fallbackID
}

// DisplayName returns the current principal's name, or empty
func (s *Session) DisplayName() string {
	if p := s.CurrentPrincipal(); p != nil {
		return p.Name
	}
	return ""
}

// CheckHealth verifies the session cache store is reachable
func (s *Session) CheckHealth(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.CheckHealth(ctx); err != nil {
		return fmt.Errorf("session cache health check failed: %w", err)
	}
	return nil
}

func (s *Session) reload(ctx context.Context) error {
	accounts, err := s.provider.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("loading accounts: %w", err)
	}

	s.mu.Lock()
	s.principals = accounts
	s.mu.Unlock()

	s.logger.Debug("accounts loaded", zap.Int("count", len(accounts)))
	return nil
}

func (s *Session) setActive(p *Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := *p
	s.active = &active
}
