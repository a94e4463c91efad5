package interceptor

// Outcome is how an inbound event was resolved
type Outcome int

const (
	// Forwarded means the event was passed through unchanged
	Forwarded Outcome = iota

	// Suppressed means the token exchange succeeded and the sign-in card was dropped
	Suppressed

	// ForwardedAfterRetry means the bot could not accept the exchanged token
	ForwardedAfterRetry

	// ForwardedAfterError means posting the exchange invoke failed
	ForwardedAfterError

	// ForwardedNoToken means no token could be acquired silently
	ForwardedNoToken
)

// Forwards reports whether the original event reaches the next stage
func (o Outcome) Forwards() bool {
	return o != Suppressed
}

func (o Outcome) String() string {
	switch o {
	case Forwarded:
		return "forwarded"
	case Suppressed:
		return "suppressed"
	case ForwardedAfterRetry:
		return "forwarded_after_retry"
	case ForwardedAfterError:
		return "forwarded_after_error"
	case ForwardedNoToken:
		return "forwarded_no_token"
	default:
		return "unknown"
	}
}

// Decision is the synchronous result of Handle
type Decision int

const (
	// DecisionForwarded means next was called before Handle returned
	DecisionForwarded Decision = iota

	// DecisionDeferred means a token exchange is in flight and will decide later
	DecisionDeferred
)

func (d Decision) String() string {
	if d == DecisionDeferred {
		return "deferred"
	}
	return "forwarded"
}
