package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wrale/sso-chatbot/internal/bootstrap"
)

type mockConnection struct {
	state bootstrap.State
}

func (m *mockConnection) State() bootstrap.State {
	return m.state
}

type mockCache struct {
	checkHealthFunc func(ctx context.Context) error
}

func (m *mockCache) CheckHealth(ctx context.Context) error {
	if m.checkHealthFunc != nil {
		return m.checkHealthFunc(ctx)
	}
	return nil
}

func TestHealthHandler(t *testing.T) {
	version := "1.0.0"

	tests := []struct {
		name      string
		state     bootstrap.State
		checkFunc func(ctx context.Context) error
		wantCode  int
		wantBody  Response
	}{
		{
			name:     "connected and cache healthy",
			state:    bootstrap.StateConnected,
			wantCode: http.StatusOK,
			wantBody: Response{
				Status:  "healthy",
				Version: version,
				Details: map[string]any{
					"connection":    map[string]any{"status": "healthy", "state": "connected"},
					"session_cache": map[string]any{"status": "healthy"},
				},
			},
		},
		{
			name:     "token fetch failed",
			state:    bootstrap.StateDisconnected,
			wantCode: http.StatusServiceUnavailable,
			wantBody: Response{
				Status:  "unhealthy",
				Version: version,
				Details: map[string]any{
					"connection":    map[string]any{"status": "unhealthy", "state": "disconnected"},
					"session_cache": map[string]any{"status": "healthy"},
				},
			},
		},
		{
			name:  "cache unhealthy",
			state: bootstrap.StateConnected,
			checkFunc: func(ctx context.Context) error {
				return errors.New("connection refused")
			},
			wantCode: http.StatusServiceUnavailable,
			wantBody: Response{
				Status:  "unhealthy",
				Version: version,
				Details: map[string]any{
					"connection":    map[string]any{"status": "healthy", "state": "connected"},
					"session_cache": map[string]any{"status": "unhealthy", "message": "connection refused"},
				},
			},
		},
		{
			name:     "sign-in failed",
			state:    bootstrap.StateSignInFailed,
			wantCode: http.StatusServiceUnavailable,
			wantBody: Response{
				Status:  "unhealthy",
				Version: version,
				Details: map[string]any{
					"connection":    map[string]any{"status": "unhealthy", "state": "signInFailed"},
					"session_cache": map[string]any{"status": "healthy"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := New(Config{
				Connection: &mockConnection{state: tt.state},
				Cache:      &mockCache{checkHealthFunc: tt.checkFunc},
				Version:    version,
			})

			req := httptest.NewRequest("GET", "/health", nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			// Check status code
			if got := w.Code; got != tt.wantCode {
				t.Errorf("Health handler status = %v, want %v", got, tt.wantCode)
			}

			// Check headers
			if got := w.Header().Get("Cache-Control"); got != "no-store" {
				t.Errorf("Health handler Cache-Control = %v, want no-store", got)
			}
			if got := w.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Health handler Content-Type = %v, want application/json", got)
			}

			// Check response body
			var got Response
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}

			if diff := cmp.Diff(tt.wantBody, got); diff != "" {
				t.Errorf("Health handler response mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHealthHandlerDefaults(t *testing.T) {
	w := httptest.NewRecorder()
	New(Config{}).ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %v, want %v", w.Code, http.StatusServiceUnavailable)
	}

	var got Response
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.Version != "unknown" {
		t.Errorf("Version = %q, want unknown", got.Version)
	}
	if _, ok := got.Details["session_cache"]; ok {
		t.Error("session_cache reported without a cache")
	}
}
