package main

import (
	"fmt"
	"time"

	"github.com/wrale/sso-chatbot/internal/identity"
	"github.com/wrale/sso-chatbot/internal/validation"
)

// Config holds client configuration loaded from environment variables
type Config struct {
	ClientID         string `envconfig:"CLIENT_ID" required:"true"`
	TenantID         string `envconfig:"TENANT_ID" required:"true"`
	TokenExchangeURL string `envconfig:"TOKEN_EXCHANGE_URL" required:"true"`
	BotName          string `envconfig:"BOT_NAME" required:"true"`

	Port               int           `envconfig:"PORT" default:"8080"`
	RedisURL           string        `envconfig:"REDIS_URL"`
	SessionTTL         time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	LoginMode          string        `envconfig:"LOGIN_MODE" default:"device_code"`
	RedirectURI        string        `envconfig:"REDIRECT_URI" default:"http://localhost"`
	DirectLineURL      string        `envconfig:"DIRECTLINE_URL" default:"https://directline.botframework.com/v3/directline"`
	TokenFetchAttempts uint          `envconfig:"TOKEN_FETCH_ATTEMPTS" default:"5"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP server timeouts
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
}

// Validate checks values envconfig cannot
func (c Config) Validate() error {
	if err := validation.ValidateClientID(c.ClientID); err != nil {
		return err
	}
	if err := validation.ValidateTenantID(c.TenantID); err != nil {
		return err
	}
	if err := validation.ValidateEndpoint("token exchange url", c.TokenExchangeURL); err != nil {
		return err
	}
	if err := validation.ValidateBotName(c.BotName); err != nil {
		return err
	}
	if err := validation.ValidateEndpoint("direct line url", c.DirectLineURL); err != nil {
		return err
	}

	switch identity.LoginMode(c.LoginMode) {
	case identity.LoginDeviceCode:
	case identity.LoginBrowser:
		if err := validation.ValidateEndpoint("redirect uri", c.RedirectURI); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", identity.ErrUnknownLoginMode, c.LoginMode)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	return nil
}
