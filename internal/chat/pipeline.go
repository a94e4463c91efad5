// Package chat moves events from the bot transport through the sign-in
// interceptor to the terminal, and sends what the user types.
package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/wrale/sso-chatbot/internal/directline"
	"github.com/wrale/sso-chatbot/internal/interceptor"
)

// Source delivers transport events in order
type Source interface {
	Events() <-chan directline.Event
	Done() <-chan struct{}
}

// Handler is the middleware between the source and the renderer
type Handler interface {
	Handle(ctx context.Context, ev directline.Event, next interceptor.Next) interceptor.Decision
	Wait()
}

// Pipeline feeds every event from a Source through a Handler to a sink
type Pipeline struct {
	source    Source
	handler   Handler
	sink      interceptor.Next
	observers []func(directline.Event)
	logger    *zap.Logger
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithObserver registers a callback that sees every event before the handler
func WithObserver(fn func(directline.Event)) PipelineOption {
	return func(p *Pipeline) {
		if fn != nil {
			p.observers = append(p.observers, fn)
		}
	}
}

// WithPipelineLogger sets the pipeline logger
func WithPipelineLogger(logger *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a pipeline rendering forwarded events into sink
func NewPipeline(source Source, handler Handler, sink interceptor.Next, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		source:  source,
		handler: handler,
		sink:    sink,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("pipeline")
	return p
}

// Run handles events one at a time until ctx is cancelled or the source
// closes. In-flight exchanges are waited for before it returns.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.handler.Wait()

	events := p.source.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.source.Done():
			p.logger.Debug("source closed")
			return nil
		case ev := <-events:
			for _, observe := range p.observers {
				observe(ev)
			}
			p.handler.Handle(ctx, ev, p.sink)
		}
	}
}
