package bootstrap

// State is the connection lifecycle state
type State string

const (
	StateIdle          State = "idle"
	StateSigningIn     State = "signingIn"
	StateSignInFailed  State = "signInFailed"
	StateFetchingToken State = "fetchingToken"
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
)

func (s State) String() string {
	return string(s)
}
