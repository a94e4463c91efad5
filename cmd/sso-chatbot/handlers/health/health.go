package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wrale/sso-chatbot/internal/bootstrap"
)

// ConnectionChecker reports the bot connection state
type ConnectionChecker interface {
	State() bootstrap.State
}

// HealthChecker reports the health of a dependency
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Config contains handler configuration options
type Config struct {
	Connection ConnectionChecker
	Cache      HealthChecker
	Version    string
}

// Handler processes health check requests
type Handler struct {
	connection ConnectionChecker
	cache      HealthChecker
	version    string
}

// Response represents the health check response
type Response struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// New creates a new health check handler
func New(cfg Config) *Handler {
	version := cfg.Version
	if version == "" {
		version = "unknown"
	}
	return &Handler{
		connection: cfg.Connection,
		cache:      cfg.Cache,
		version:    version,
	}
}

// ServeHTTP handles health check requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Set required headers
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	// Initialize response with healthy status
	response := Response{
		Status:  "healthy",
		Version: h.version,
		Details: make(map[string]any),
	}

	// Check bot connection
	state := bootstrap.StateIdle
	if h.connection != nil {
		state = h.connection.State()
	}
	if state == bootstrap.StateConnected {
		response.Details["connection"] = map[string]any{
			"status": "healthy",
			"state":  string(state),
		}
	} else {
		response.Status = "unhealthy"
		response.Details["connection"] = map[string]any{
			"status": "unhealthy",
			"state":  string(state),
		}
	}

	// Check session cache
	if h.cache != nil {
		if err := h.cache.CheckHealth(r.Context()); err != nil {
			response.Status = "unhealthy"
			response.Details["session_cache"] = map[string]any{
				"status":  "unhealthy",
				"message": err.Error(),
			}
		} else {
			response.Details["session_cache"] = map[string]any{
				"status": "healthy",
			}
		}
	}

	// Set status code based on overall health
	if response.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, `{"error":"server_error","error_description":"Error encoding response"}`,
			http.StatusInternalServerError)
		return
	}
}
