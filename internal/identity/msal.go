package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
	"go.uber.org/zap"
)

// LoginMode selects how interactive sign-in is performed
type LoginMode string

const (
	// LoginDeviceCode prints a device code message for the user to complete elsewhere
	LoginDeviceCode LoginMode = "device_code"

	// LoginBrowser opens the system browser with a loopback redirect
	LoginBrowser LoginMode = "browser"

	authorityBase = "https://login.microsoftonline.com/"
)

// MSALConfig holds the Azure AD public client settings
type MSALConfig struct {
	ClientID    string
	TenantID    string
	Cache       cache.ExportReplace
	LoginMode   LoginMode
	RedirectURI string
	Prompt      func(message string) // Shows the device code instructions
	Logger      *zap.Logger
}

// MSALProvider implements Provider with the Microsoft Authentication Library
type MSALProvider struct {
	client      public.Client
	mode        LoginMode
	redirectURI string
	prompt      func(string)
	logger      *zap.Logger

	mu       sync.Mutex
	accounts map[string]public.Account // home account id -> account
}

// Authority returns the Azure AD authority URL for a tenant
func Authority(tenantID string) string {
	return authorityBase + strings.Trim(tenantID, "/")
}

// NewMSALProvider creates a public client application for the configured tenant
func NewMSALProvider(cfg MSALConfig) (*MSALProvider, error) {
	// Validate required fields
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.TenantID == "" {
		return nil, fmt.Errorf("tenant ID is required")
	}

	mode := cfg.LoginMode
	if mode == "" {
		mode = LoginDeviceCode
	}
	if mode != LoginDeviceCode && mode != LoginBrowser {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLoginMode, mode)
	}

	opts := []public.Option{public.WithAuthority(Authority(cfg.TenantID))}
	if cfg.Cache != nil {
		opts = append(opts, public.WithCache(cfg.Cache))
	}

	client, err := public.New(cfg.ClientID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating public client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	prompt := cfg.Prompt
	if prompt == nil {
		prompt = func(string) {}
	}

	return &MSALProvider{
		client:      client,
		mode:        mode,
		redirectURI: cfg.RedirectURI,
		prompt:      prompt,
		logger:      logger.Named("msal"),
		accounts:    make(map[string]public.Account),
	}, nil
}

// Accounts returns the accounts held in the token cache
func (p *MSALProvider) Accounts(ctx context.Context) ([]Principal, error) {
	accounts, err := p.client.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	principals := make([]Principal, 0, len(accounts))
	for _, acct := range accounts {
		p.accounts[acct.HomeAccountID] = acct
		principals = append(principals, principalFromAccount(acct))
	}
	return principals, nil
}

// AcquireTokenSilent requests a cached or refreshed token for account
func (p *MSALProvider) AcquireTokenSilent(ctx context.Context, scopes []string, account Principal) (string, error) {
	acct, err := p.lookup(ctx, account.HomeAccountID)
	if err != nil {
		return "", err
	}

	result, err := p.client.AcquireTokenSilent(ctx, scopes, public.WithSilentAccount(acct))
	if err != nil {
		return "", fmt.Errorf("acquiring token silently: %w", err)
	}
	return result.AccessToken, nil
}

// Login signs the user in using the configured login mode
func (p *MSALProvider) Login(ctx context.Context, scopes []string) (Principal, error) {
	var (
		result public.AuthResult
		err    error
	)

	switch p.mode {
	case LoginBrowser:
		var opts []public.AcquireInteractiveOption
		if p.redirectURI != "" {
			opts = append(opts, public.WithRedirectURI(p.redirectURI))
		}
		result, err = p.client.AcquireTokenInteractive(ctx, scopes, opts...)
	default:
		result, err = p.loginWithDeviceCode(ctx, scopes)
	}
	if err != nil {
		return Principal{}, err
	}

	p.mu.Lock()
	p.accounts[result.Account.HomeAccountID] = result.Account
	p.mu.Unlock()

	return principalFromAccount(result.Account), nil
}

func (p *MSALProvider) loginWithDeviceCode(ctx context.Context, scopes []string) (public.AuthResult, error) {
	code, err := p.client.AcquireTokenByDeviceCode(ctx, scopes)
	if err != nil {
		return public.AuthResult{}, fmt.Errorf("requesting device code: %w", err)
	}

	p.logger.Debug("device code issued")
	p.prompt(code.Result.Message)

	result, err := code.AuthenticationResult(ctx)
	if err != nil {
		return public.AuthResult{}, fmt.Errorf("completing device code sign-in: %w", err)
	}
	return result, nil
}

func (p *MSALProvider) lookup(ctx context.Context, homeAccountID string) (public.Account, error) {
	p.mu.Lock()
	acct, ok := p.accounts[homeAccountID]
	p.mu.Unlock()
	if ok {
		return acct, nil
	}

	// The cache may have been filled by another process sharing the store
	if _, err := p.Accounts(ctx); err != nil {
		return public.Account{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if acct, ok := p.accounts[homeAccountID]; ok {
		return acct, nil
	}
	return public.Account{}, errors.Join(ErrNoPrincipal, fmt.Errorf("account %q not in cache", homeAccountID))
}

func principalFromAccount(acct public.Account) Principal {
	name := acct.Name
	if name == "" {
		name = acct.PreferredUsername
	}
	return Principal{
		AccountID:     acct.LocalAccountID,
		HomeAccountID: acct.HomeAccountID,
		Name:          name,
		Username:      acct.PreferredUsername,
	}
}
