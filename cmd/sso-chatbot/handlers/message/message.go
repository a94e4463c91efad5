package message

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wrale/sso-chatbot/cmd/sso-chatbot/handlers/common"
	"github.com/wrale/sso-chatbot/internal/chat"
	"github.com/wrale/sso-chatbot/internal/directline"
)

// maxBodySize bounds the request body
const maxBodySize = 16 << 10

// Sender posts user messages to the bot
type Sender interface {
	Connected() bool
	Send(ctx context.Context, text string) (string, error)
}

// Config contains handler configuration options
type Config struct {
	Sender Sender
}

// Handler accepts user messages over HTTP and sends them to the bot
type Handler struct {
	sender Sender
}

// Request is the message request body
type Request struct {
	Text string `json:"text"`
}

// Response is the message response body
type Response struct {
	ID string `json:"id"`
}

// New creates a new message handler
func New(cfg Config) *Handler {
	return &Handler{
		sender: cfg.Sender,
	}
}

// ServeHTTP handles message post requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		common.WriteError(w, http.StatusMethodNotAllowed, common.ErrorCodeInvalidRequest, "POST method required")
		return
	}

	var req Request
	body := io.LimitReader(r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, common.ErrorCodeInvalidRequest, "Request body must be JSON with a text field")
		return
	}

	if h.sender == nil || !h.sender.Connected() {
		common.WriteError(w, http.StatusConflict, common.ErrorCodeNotConnected, "The bot connection is not established")
		return
	}

	id, err := h.sender.Send(r.Context(), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			common.WriteError(w, http.StatusBadRequest, common.ErrorCodeInvalidRequest, "The text field is REQUIRED")
		case errors.Is(err, chat.ErrNotConnected), errors.Is(err, directline.ErrClosed):
			common.WriteError(w, http.StatusConflict, common.ErrorCodeNotConnected, "The bot connection is not established")
		default:
			common.WriteError(w, http.StatusBadGateway, common.ErrorCodeSendFailed, "The bot channel rejected the message")
		}
		return
	}

	// A retry id means the channel may still deliver the message
	status := http.StatusOK
	if id == directline.ReplyRetry {
		status = http.StatusAccepted
	}
	common.WriteJSON(w, status, Response{ID: id})
}
