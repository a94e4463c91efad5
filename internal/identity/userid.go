package identity

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxUserIDLength bounds the chat participant id accepted by Direct Line
	MaxUserIDLength = 64

	userIDPrefix = "sso-chatbot"
)

// DeriveUserID returns a stable chat participant id for p, or a random one
// when there is no principal.
func DeriveUserID(p *Principal) string {
	if p != nil && p.AccountID != "" {
		return truncate(userIDPrefix + p.AccountID)
	}
	return randomUserID()
}

func randomUserID() string {
	return truncate(uuid.NewString() + strconv.FormatInt(time.Now().UnixMilli(), 10))
}

func truncate(id string) string {
	if len(id) > MaxUserIDLength {
		return id[:MaxUserIDLength]
	}
	return id
}
