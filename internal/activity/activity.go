// Package activity implements the Bot Framework activity schema used on the Direct Line channel
package activity

import (
	"encoding/json"
	"time"
)

// Activity types used by the chat client
const (
	TypeMessage = "message"
	TypeEvent   = "event"
	TypeInvoke  = "invoke"
	TypeTyping  = "typing"
)

// Channel account roles
const (
	RoleBot  = "bot"
	RoleUser = "user"
)

// Well-known names carried in the activity name field
const (
	// NameTokenExchange is the invoke name the bot expects for a silent token exchange
	NameTokenExchange = "signin/tokenExchange"

	// NameStartConversation is the event that triggers the bot greeting
	NameStartConversation = "startConversation"
)

// Activity is a unit of conversational content exchanged with the bot
type Activity struct {
	Type             string            `json:"type"`
	ID               string            `json:"id,omitempty"`
	Timestamp        *time.Time        `json:"timestamp,omitempty"`
	ChannelID        string            `json:"channelId,omitempty"`
	From             ChannelAccount    `json:"from"`
	Conversation     *Conversation     `json:"conversation,omitempty"`
	Text             string            `json:"text,omitempty"`
	Name             string            `json:"name,omitempty"`
	Value            any               `json:"value,omitempty"`
	ReplyToID        string            `json:"replyToId,omitempty"`
	Locale           string            `json:"locale,omitempty"`
	Attachments      []Attachment      `json:"attachments,omitempty"`
	SuggestedActions *SuggestedActions `json:"suggestedActions,omitempty"`
}

// ChannelAccount identifies the sender or recipient of an activity
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// Conversation references the Direct Line conversation an activity belongs to
type Conversation struct {
	ID string `json:"id"`
}

// Attachment carries rich content such as cards. Content is kept raw so that
// each consumer parses only the shape it understands.
type Attachment struct {
	ContentType string          `json:"contentType"`
	Content     json.RawMessage `json:"content,omitempty"`
	ContentURL  string          `json:"contentUrl,omitempty"`
	Name        string          `json:"name,omitempty"`
}

// SuggestedActions are quick replies offered by the bot
type SuggestedActions struct {
	Actions []CardAction `json:"actions"`
}

// CardAction is a clickable action on a card or quick reply
type CardAction struct {
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	Value any    `json:"value,omitempty"`
}

// IsFromBot reports whether the activity was sent by the bot
func (a *Activity) IsFromBot() bool {
	return a != nil && a.From.Role == RoleBot
}
