package activity

// TokenExchangeValue is the payload of a signin/tokenExchange invoke
type TokenExchangeValue struct {
	ID             string `json:"id"`
	ConnectionName string `json:"connectionName"`
	Token          string `json:"token"`
}

// StartConversationValue is the payload of the greeting event
type StartConversationValue struct {
	Text string `json:"text"`
}

// NewTokenExchangeInvoke builds the invoke that hands a silently acquired token to the bot
func NewTokenExchangeInvoke(req *SignInCardRequest, token string, from ChannelAccount) *Activity {
	return &Activity{
		Type: TypeInvoke,
		Name: NameTokenExchange,
		Value: TokenExchangeValue{
			ID:             req.ExchangeID,
			ConnectionName: req.ConnectionName,
			Token:          token,
		},
		From: from,
	}
}

// NewStartConversationEvent builds the event that asks the bot to greet the user
func NewStartConversationEvent(from ChannelAccount, displayName string) *Activity {
	return &Activity{
		Type:  TypeEvent,
		Name:  NameStartConversation,
		Value: StartConversationValue{Text: displayName},
		From:  from,
	}
}

// NewMessage builds a plain text message from the user
func NewMessage(from ChannelAccount, text string) *Activity {
	return &Activity{
		Type: TypeMessage,
		Text: text,
		From: from,
	}
}

// User returns the channel account for the chat participant
func User(id, name string) ChannelAccount {
	return ChannelAccount{ID: id, Name: name, Role: RoleUser}
}
