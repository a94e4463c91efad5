// Package interceptor performs the silent sign-in token exchange for sign-in
// cards arriving from the bot, and greets the bot when a conversation starts.
package interceptor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wrale/sso-chatbot/internal/activity"
	"github.com/wrale/sso-chatbot/internal/directline"
	"github.com/wrale/sso-chatbot/internal/identity"
)

// Session is the identity the interceptor acts for
type Session interface {
	CurrentPrincipal() *identity.Principal
	AcquireSilently(ctx context.Context, resourceURI string) (string, bool)
	UserID() string
}

// Transport posts activities to the bot
type Transport interface {
	PostActivity(ctx context.Context, a *activity.Activity) (string, error)
	Dispatch(a *activity.Activity)
}

// Next hands an event to the following pipeline stage. It may be called from
// an exchange goroutine and must be safe for concurrent use.
type Next func(ev directline.Event)

// Observer is notified of every resolved activity event
type Observer func(ev directline.Event, outcome Outcome)

// Interceptor is the token-exchange middleware
type Interceptor struct {
	session   Session
	transport Transport
	logger    *zap.Logger
	observer  Observer

	wg sync.WaitGroup
}

// Option configures an Interceptor
type Option func(*Interceptor)

// WithLogger sets the interceptor logger
func WithLogger(logger *zap.Logger) Option {
	return func(i *Interceptor) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithObserver registers a callback for resolved outcomes
func WithObserver(o Observer) Option {
	return func(i *Interceptor) {
		i.observer = o
	}
}

// New creates an interceptor for session posting on transport
func New(session Session, transport Transport, opts ...Option) *Interceptor {
	i := &Interceptor{
		session:   session,
		transport: transport,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.Named("interceptor")
	return i
}

// Handle processes one inbound event. Events that need no exchange are
// forwarded before Handle returns. A sign-in card with a token exchange
// resource is deferred: next is called at most once, after the exchange
// resolves, and only if the exchange did not succeed.
func (i *Interceptor) Handle(ctx context.Context, ev directline.Event, next Next) Decision {
	switch ev.Kind {
	case directline.KindConnected:
		i.greet()
		next(ev)
		return DecisionForwarded

	case directline.KindActivity:
		req, ok := activity.ParseSignInCard(ev.Activity)
		if !ok {
			next(ev)
			i.notify(ev, Forwarded)
			return DecisionForwarded
		}

		i.wg.Add(1)
		go func() {
			defer i.wg.Done()

			outcome := i.exchange(ctx, req)
			if outcome.Forwards() {
				next(ev)
			}
			i.notify(ev, outcome)
		}()
		return DecisionDeferred

	default:
		next(ev)
		return DecisionForwarded
	}
}

// Wait blocks until all in-flight exchanges have resolved
func (i *Interceptor) Wait() {
	i.wg.Wait()
}

// greet queues the start conversation event ahead of anything the pipeline forwards
func (i *Interceptor) greet() {
	name := i.displayName()
	i.transport.Dispatch(activity.NewStartConversationEvent(i.from(name), name))
	i.logger.Debug("greeting dispatched")
}

func (i *Interceptor) exchange(ctx context.Context, req *activity.SignInCardRequest) Outcome {
	token, ok := i.session.AcquireSilently(ctx, req.ResourceURI)
	if !ok {
		return ForwardedNoToken
	}

	invoke := activity.NewTokenExchangeInvoke(req, token, i.from(i.displayName()))
	reply, err := i.transport.PostActivity(ctx, invoke)
	switch {
	case err != nil:
		i.logger.Warn("token exchange post failed",
			zap.String("connection", req.ConnectionName),
			zap.Error(err))
		return ForwardedAfterError
	case reply == directline.ReplyRetry:
		return ForwardedAfterRetry
	default:
		return Suppressed
	}
}

func (i *Interceptor) notify(ev directline.Event, outcome Outcome) {
	if outcome != Forwarded {
		var id string
		if ev.Activity != nil {
			id = ev.Activity.ID
		}
		i.logger.Info("sign-in card resolved",
			zap.String("activity", id),
			zap.Stringer("outcome", outcome))
	}
	if i.observer != nil {
		i.observer(ev, outcome)
	}
}

func (i *Interceptor) displayName() string {
	if p := i.session.CurrentPrincipal(); p != nil {
		return p.Name
	}
	return ""
}

func (i *Interceptor) from(name string) activity.ChannelAccount {
	return activity.User(i.session.UserID(), name)
}
