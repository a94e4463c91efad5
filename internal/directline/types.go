// Package directline implements a Bot Framework Direct Line v3 client: the
// REST operations, the WebSocket activity stream and the outbound queue.
package directline

import (
	"github.com/wrale/sso-chatbot/internal/activity"
)

// DefaultBaseURL is the public Direct Line v3 endpoint
const DefaultBaseURL = "https://directline.botframework.com/v3/directline"

// ReplyRetry is the reply id reported when a post failed transiently and the
// channel may still deliver it.
const ReplyRetry = "retry"

// Kind tags a conversational event
type Kind string

const (
	KindConnected    Kind = "connected"
	KindActivity     Kind = "activity"
	KindReconnected  Kind = "reconnected"
	KindDisconnected Kind = "disconnected"
	KindTokenExpired Kind = "tokenExpired"
)

// Event is an item delivered by the transport. Activity is set for KindActivity.
type Event struct {
	Kind     Kind
	Activity *activity.Activity
	Err      error // Set for KindDisconnected when the stream was lost
}

// Conversation is the Direct Line conversation resource
type Conversation struct {
	ConversationID string `json:"conversationId"`
	Token          string `json:"token,omitempty"`
	ExpiresIn      int    `json:"expires_in,omitempty"`
	StreamURL      string `json:"streamUrl,omitempty"`
}

// activitySet is one stream frame
type activitySet struct {
	Activities []activity.Activity `json:"activities"`
	Watermark  string              `json:"watermark,omitempty"`
}

type resourceResponse struct {
	ID string `json:"id"`
}
