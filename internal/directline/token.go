package directline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// maxErrorBody bounds how much of an error response is kept
const maxErrorBody = 4 << 10

// FetchJSON performs a GET against url and decodes the JSON response into v.
// Non-2xx responses are reported as *FetchError.
func FetchJSON(ctx context.Context, client *http.Client, url string, v any) error {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &FetchError{URL: url, Err: err}
	}
	return nil
}

// FetchSessionToken retrieves a Direct Line token from the token exchange endpoint
func FetchSessionToken(ctx context.Context, client *http.Client, url string) (string, error) {
	var body struct {
		Token string `json:"token"`
	}
	if err := FetchJSON(ctx, client, url, &body); err != nil {
		return "", err
	}
	if body.Token == "" {
		return "", &FetchError{URL: url, Err: errors.New("response has no token")}
	}
	return body.Token, nil
}

// tokenSource is a refreshable oauth2.TokenSource holding the conversation token
type tokenSource struct {
	mu    sync.RWMutex
	token string
}

var _ oauth2.TokenSource = (*tokenSource)(nil)

func (s *tokenSource) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}, nil
}

func (s *tokenSource) set(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}
