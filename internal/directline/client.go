package directline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/wrale/sso-chatbot/internal/activity"
)

const (
	conversationsPath = "/conversations"
	refreshPath       = "/tokens/refresh"

	defaultTimeout = 20 * time.Second
)

// Client calls the Direct Line v3 REST API with a bearer token
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *tokenSource
	logger  *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*clientOptions)

type clientOptions struct {
	baseURL string
	base    http.RoundTripper
	timeout time.Duration
	logger  *zap.Logger
}

// WithBaseURL overrides the Direct Line endpoint
func WithBaseURL(u string) ClientOption {
	return func(o *clientOptions) {
		if u != "" {
			o.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithTransport sets the round tripper beneath the bearer auth layer
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) {
		o.base = rt
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithClientLogger sets the client logger
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewClient creates a client authenticated with token
func NewClient(token string, opts ...ClientOption) *Client {
	o := clientOptions{
		baseURL: DefaultBaseURL,
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	tokens := &tokenSource{}
	tokens.set(token)

	return &Client{
		baseURL: o.baseURL,
		http: &http.Client{
			Timeout:   o.timeout,
			Transport: &oauth2.Transport{Source: tokens, Base: o.base},
		},
		tokens: tokens,
		logger: o.logger.Named("directline"),
	}
}

// StartConversation opens a new conversation. The conversation token returned
// by the channel replaces the client token.
func (c *Client) StartConversation(ctx context.Context) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodPost, conversationsPath, &conv); err != nil {
		return nil, fmt.Errorf("starting conversation: %w", err)
	}
	if conv.ConversationID == "" {
		return nil, errors.New("starting conversation: response has no conversation id")
	}

	c.tokens.set(conv.Token)
	return &conv, nil
}

// Reconnect requests a fresh stream URL for an existing conversation,
// resuming after watermark.
func (c *Client) Reconnect(ctx context.Context, conversationID, watermark string) (*Conversation, error) {
	path := conversationsPath + "/" + url.PathEscape(conversationID)
	if watermark != "" {
		path += "?watermark=" + url.QueryEscape(watermark)
	}

	var conv Conversation
	if err := c.do(ctx, http.MethodGet, path, &conv); err != nil {
		return nil, fmt.Errorf("reconnecting conversation: %w", err)
	}

	c.tokens.set(conv.Token)
	return &conv, nil
}

// RefreshToken extends the lifetime of the conversation token
func (c *Client) RefreshToken(ctx context.Context) error {
	var conv Conversation
	if err := c.do(ctx, http.MethodPost, refreshPath, &conv); err != nil {
		return fmt.Errorf("refreshing token: %w", err)
	}
	if conv.Token == "" {
		return errors.New("refreshing token: response has no token")
	}

	c.tokens.set(conv.Token)
	c.logger.Debug("token refreshed", zap.Int("expires_in", conv.ExpiresIn))
	return nil
}

// PostActivity sends a to the conversation and returns the id the channel
// assigned. Transient failures (network, 5xx) report ReplyRetry without an
// error. A 403 reports ErrTokenExpired and other 4xx a *PostError.
func (c *Client) PostActivity(ctx context.Context, conversationID string, a *activity.Activity) (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encoding activity: %w", err)
	}

	path := conversationsPath + "/" + url.PathEscape(conversationID) + "/activities"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Send request and map the response
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn("post failed, reporting retry", zap.Error(err))
		return ReplyRetry, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return "", ErrTokenExpired
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("post rejected by server, reporting retry", zap.Int("status", resp.StatusCode))
		return ReplyRetry, nil
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &PostError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var reply resourceResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("parsing post response: %w", err)
	}
	return reply.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return ErrTokenExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &PostError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
