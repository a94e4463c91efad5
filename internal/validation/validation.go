// Package validation checks configuration values before they reach the
// identity provider or the bot channel
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Validation settings
const (
	MaxBotNameLength = 64 // Longest bot label rendered in the transcript
)

// Tenant aliases accepted by the Microsoft identity platform
var tenantAliases = map[string]bool{
	"common":        true,
	"organizations": true,
	"consumers":     true,
}

var (
	// Tenant domain regex - one or more dot separated DNS labels
	domainRegex = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// ValidateClientID checks that id is an application (client) GUID
func ValidateClientID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return &ValidationError{Field: "client id", Value: id, Message: "value is required"}
	}
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return &ValidationError{Field: "client id", Value: id, Message: "must be a GUID"}
	}
	return nil
}

// ValidateTenantID checks that tenant is a GUID, a verified domain or a
// well-known tenant alias
func ValidateTenantID(tenant string) error {
	tenant = NormalizeTenant(tenant)
	if tenant == "" {
		return &ValidationError{Field: "tenant id", Value: tenant, Message: "value is required"}
	}

	if tenantAliases[tenant] {
		return nil
	}
	if _, err := uuid.Parse(tenant); err == nil && len(tenant) == 36 {
		return nil
	}
	if domainRegex.MatchString(tenant) {
		return nil
	}

	return &ValidationError{Field: "tenant id", Value: tenant, Message: "must be a GUID, a domain or one of common, organizations, consumers"}
}

// ValidateEndpoint checks that raw is an absolute http or https URL
func ValidateEndpoint(field, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &ValidationError{Field: field, Value: raw, Message: "value is required"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: field, Value: raw, Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: field, Value: raw, Message: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &ValidationError{Field: field, Value: raw, Message: "host is required"}
	}
	return nil
}

// ValidateBotName checks the bot label shown next to responses
func ValidateBotName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return &ValidationError{Field: "bot name", Value: name, Message: "value is required"}
	}
	if len(trimmed) > MaxBotNameLength {
		return &ValidationError{Field: "bot name", Value: name, Message: fmt.Sprintf("must be at most %d characters", MaxBotNameLength)}
	}
	if strings.ContainsAny(trimmed, "\r\n") {
		return &ValidationError{Field: "bot name", Value: name, Message: "must be a single line"}
	}
	return nil
}

// NormalizeTenant converts a tenant id to canonical form
func NormalizeTenant(tenant string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(tenant), "/"))
}
