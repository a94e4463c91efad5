package activity

import (
	"encoding/json"
	"fmt"
)

// ContentTypeOAuthCard identifies a sign-in card attachment
const ContentTypeOAuthCard = "application/vnd.microsoft.card.oauth"

// OAuthCard is the content of a sign-in card attachment
type OAuthCard struct {
	Text                  string                 `json:"text,omitempty"`
	ConnectionName        string                 `json:"connectionName"`
	TokenExchangeResource *TokenExchangeResource `json:"tokenExchangeResource,omitempty"`
	Buttons               []CardAction           `json:"buttons,omitempty"`
}

// TokenExchangeResource names the resource the bot wants a token for
type TokenExchangeResource struct {
	ID         string `json:"id"`
	URI        string `json:"uri"`
	ProviderID string `json:"providerId,omitempty"`
}

// SignInCardRequest is what a sign-in card asks the client to silently obtain
type SignInCardRequest struct {
	ResourceURI    string
	ExchangeID     string
	ConnectionName string
}

// ParseSignInCard attempts to read a token exchange request out of an activity.
// It reports false for anything that is not a bot-sent OAuth card whose first
// attachment carries a token exchange resource. A malformed card is a non-match.
func ParseSignInCard(a *Activity) (*SignInCardRequest, bool) {
	if !a.IsFromBot() || len(a.Attachments) == 0 {
		return nil, false
	}

	first := a.Attachments[0]
	if first.ContentType != ContentTypeOAuthCard || len(first.Content) == 0 {
		return nil, false
	}

	card, err := DecodeOAuthCard(first.Content)
	if err != nil || card.TokenExchangeResource == nil || card.TokenExchangeResource.URI == "" {
		return nil, false
	}

	return &SignInCardRequest{
		ResourceURI:    card.TokenExchangeResource.URI,
		ExchangeID:     card.TokenExchangeResource.ID,
		ConnectionName: card.ConnectionName,
	}, true
}

// DecodeOAuthCard parses raw attachment content as an OAuth card
func DecodeOAuthCard(content json.RawMessage) (*OAuthCard, error) {
	var card OAuthCard
	if err := json.Unmarshal(content, &card); err != nil {
		return nil, fmt.Errorf("decoding oauth card: %w", err)
	}
	return &card, nil
}

// SignInLink returns the URL of the card's sign-in button, if any
func (c *OAuthCard) SignInLink() string {
	for _, b := range c.Buttons {
		if s, ok := b.Value.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
