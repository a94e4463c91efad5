package chat

import (
	"bufio"
	"context"
	"errors"
	"io"

	"go.uber.org/zap"
)

// Composer sends each line read from an input as a user message
type Composer struct {
	in     io.Reader
	outbox *Outbox
	logger *zap.Logger
}

// NewComposer creates a composer reading from in
func NewComposer(in io.Reader, outbox *Outbox, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		in:     in,
		outbox: outbox,
		logger: logger.Named("composer"),
	}
}

// Run reads lines until the input ends or ctx is cancelled
func (c *Composer) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	// The scanner cannot be interrupted, so it reads on its own goroutine
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			c.send(ctx, line)
		}
	}
}

func (c *Composer) send(ctx context.Context, line string) {
	reply, err := c.outbox.Send(ctx, line)
	switch {
	case errors.Is(err, ErrEmptyMessage):
	case err != nil:
		c.logger.Warn("sending message", zap.Error(err))
	default:
		c.logger.Debug("message sent", zap.String("reply", reply))
	}
}
