package message

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wrale/sso-chatbot/cmd/sso-chatbot/handlers/common"
	"github.com/wrale/sso-chatbot/internal/chat"
	"github.com/wrale/sso-chatbot/internal/directline"
)

type mockSender struct {
	connected bool
	reply     string
	err       error
	sent      []string
}

func (m *mockSender) Connected() bool {
	return m.connected
}

func (m *mockSender) Send(ctx context.Context, text string) (string, error) {
	m.sent = append(m.sent, text)
	return m.reply, m.err
}

func TestMessageHandler(t *testing.T) {
	tests := []struct {
		name          string
		method        string
		body          string
		sender        *mockSender
		wantStatus    int
		wantErrorCode string
		wantID        string
		wantSent      int
	}{
		{
			name:          "wrong method",
			method:        "GET",
			sender:        &mockSender{connected: true},
			wantStatus:    http.StatusMethodNotAllowed,
			wantErrorCode: common.ErrorCodeInvalidRequest,
		},
		{
			name:          "malformed body",
			method:        "POST",
			body:          `{"text":`,
			sender:        &mockSender{connected: true},
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: common.ErrorCodeInvalidRequest,
		},
		{
			name:          "not connected",
			method:        "POST",
			body:          `{"text":"hello"}`,
			sender:        &mockSender{},
			wantStatus:    http.StatusConflict,
			wantErrorCode: common.ErrorCodeNotConnected,
		},
		{
			name:       "sent",
			method:     "POST",
			body:       `{"text":"hello"}`,
			sender:     &mockSender{connected: true, reply: "conv1|0001"},
			wantStatus: http.StatusOK,
			wantID:     "conv1|0001",
			wantSent:   1,
		},
		{
			name:       "channel asked for retry",
			method:     "POST",
			body:       `{"text":"hello"}`,
			sender:     &mockSender{connected: true, reply: directline.ReplyRetry},
			wantStatus: http.StatusAccepted,
			wantID:     directline.ReplyRetry,
			wantSent:   1,
		},
		{
			name:          "empty text",
			method:        "POST",
			body:          `{"text":"  "}`,
			sender:        &mockSender{connected: true, err: chat.ErrEmptyMessage},
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: common.ErrorCodeInvalidRequest,
			wantSent:      1,
		},
		{
			name:          "connection closed while sending",
			method:        "POST",
			body:          `{"text":"hello"}`,
			sender:        &mockSender{connected: true, err: directline.ErrClosed},
			wantStatus:    http.StatusConflict,
			wantErrorCode: common.ErrorCodeNotConnected,
			wantSent:      1,
		},
		{
			name:          "channel rejected",
			method:        "POST",
			body:          `{"text":"hello"}`,
			sender:        &mockSender{connected: true, err: &directline.PostError{StatusCode: 400}},
			wantStatus:    http.StatusBadGateway,
			wantErrorCode: common.ErrorCodeSendFailed,
			wantSent:      1,
		},
		{
			name:          "token expired",
			method:        "POST",
			body:          `{"text":"hello"}`,
			sender:        &mockSender{connected: true, err: directline.ErrTokenExpired},
			wantStatus:    http.StatusBadGateway,
			wantErrorCode: common.ErrorCodeSendFailed,
			wantSent:      1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := New(Config{Sender: tt.sender})

			req := httptest.NewRequest(tt.method, "/messages", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %v, want application/json", got)
			}
			if got := len(tt.sender.sent); got != tt.wantSent {
				t.Errorf("Send() called %d times, want %d", got, tt.wantSent)
			}

			if tt.wantErrorCode != "" {
				var resp common.ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if resp.Error != tt.wantErrorCode {
					t.Errorf("error = %v, want %v", resp.Error, tt.wantErrorCode)
				}
				return
			}

			var resp Response
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.ID != tt.wantID {
				t.Errorf("id = %q, want %q", resp.ID, tt.wantID)
			}
		})
	}
}
