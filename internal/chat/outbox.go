package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/wrale/sso-chatbot/internal/activity"
)

// Poster posts an activity and returns its reply id
type Poster interface {
	PostActivity(ctx context.Context, a *activity.Activity) (string, error)
}

// Identity names the user messages are sent as
type Identity interface {
	UserID() string
	DisplayName() string
}

// Outbox sends user messages once a transport is attached
type Outbox struct {
	identity Identity

	mu     sync.RWMutex
	poster Poster
}

// NewOutbox creates an outbox sending as identity
func NewOutbox(identity Identity) *Outbox {
	return &Outbox{identity: identity}
}

// Attach sets the transport used by Send
func (o *Outbox) Attach(p Poster) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.poster = p
}

// Connected reports whether a transport is attached
func (o *Outbox) Connected() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.poster != nil
}

// Send posts text as a message from the user and returns the reply id
func (o *Outbox) Send(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}

	o.mu.RLock()
	p := o.poster
	o.mu.RUnlock()
	if p == nil {
		return "", ErrNotConnected
	}

	from := activity.User(o.identity.UserID(), o.identity.DisplayName())
	return p.PostActivity(ctx, activity.NewMessage(from, text))
}
