package directline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wrale/sso-chatbot/internal/activity"
)

const (
	// DefaultRefreshInterval is how often the conversation token is refreshed
	DefaultRefreshInterval = 15 * time.Minute

	defaultReconnectTries = 6
	eventBuffer           = 64
	outboundBuffer        = 64
)

// Conn is a live Direct Line conversation. Events are delivered in stream
// order on Events; posts are safe for concurrent use.
type Conn struct {
	client          *Client
	dialer          *websocket.Dialer
	logger          *zap.Logger
	refreshInterval time.Duration
	reconnectTries  uint
	newBackOff      func() backoff.BackOff

	events   chan Event
	outbound chan *activity.Activity
	done     chan struct{}
	wg       sync.WaitGroup

	mu             sync.Mutex
	started        bool
	closed         bool
	cancel         context.CancelFunc
	ws             *websocket.Conn
	conversationID string
	watermark      string

	closeOnce sync.Once
}

// ConnOption configures a Conn
type ConnOption func(*Conn)

// WithLogger sets the connection logger
func WithLogger(logger *zap.Logger) ConnOption {
	return func(c *Conn) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialer sets the WebSocket dialer
func WithDialer(d *websocket.Dialer) ConnOption {
	return func(c *Conn) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithRefreshInterval sets the token refresh period
func WithRefreshInterval(d time.Duration) ConnOption {
	return func(c *Conn) {
		if d > 0 {
			c.refreshInterval = d
		}
	}
}

// WithReconnect sets the reconnect policy for a lost stream
func WithReconnect(tries uint, newBackOff func() backoff.BackOff) ConnOption {
	return func(c *Conn) {
		if tries > 0 {
			c.reconnectTries = tries
		}
		if newBackOff != nil {
			c.newBackOff = newBackOff
		}
	}
}

// NewConn creates an unconnected conversation over client
func NewConn(client *Client, opts ...ConnOption) *Conn {
	c := &Conn{
		client:          client,
		dialer:          websocket.DefaultDialer,
		logger:          zap.NewNop(),
		refreshInterval: DefaultRefreshInterval,
		reconnectTries:  defaultReconnectTries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		events:   make(chan Event, eventBuffer),
		outbound: make(chan *activity.Activity, outboundBuffer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("conn")
	return c
}

// Events returns the inbound event stream
func (c *Conn) Events() <-chan Event {
	return c.events
}

// Done is closed when the connection is closed
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// ConversationID returns the id of the started conversation
func (c *Conn) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// Connect starts the conversation, opens the stream and emits KindConnected
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.started:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.started = true
	c.mu.Unlock()

	conv, err := c.client.StartConversation(ctx)
	if err != nil {
		return err
	}

	ws, err := c.dial(ctx, conv.StreamURL)
	if err != nil {
		return err
	}

	// Loops outlive the connect call and stop on Close
	loopCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		ws.Close()
		return ErrClosed
	}
	c.conversationID = conv.ConversationID
	c.ws = ws
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Info("conversation started", zap.String("conversation", conv.ConversationID))
	c.emit(Event{Kind: KindConnected})

	c.wg.Add(3)
	go c.readLoop(loopCtx, ws)
	go c.writeLoop(loopCtx)
	go c.refreshLoop(loopCtx)

	return nil
}

// PostActivity posts a and returns the channel reply id. A 403 also emits
// KindTokenExpired.
func (c *Conn) PostActivity(ctx context.Context, a *activity.Activity) (string, error) {
	c.mu.Lock()
	closed, id := c.closed, c.conversationID
	c.mu.Unlock()

	if closed {
		return "", ErrClosed
	}
	if id == "" {
		return "", ErrNotConnected
	}

	reply, err := c.client.PostActivity(ctx, id, a)
	if errors.Is(err, ErrTokenExpired) {
		c.emit(Event{Kind: KindTokenExpired})
	}
	return reply, err
}

// Dispatch queues a for posting. Queued activities are posted in order by a
// single worker and their results are only logged.
func (c *Conn) Dispatch(a *activity.Activity) {
	select {
	case c.outbound <- a:
	case <-c.done:
		c.logger.Debug("dispatch after close dropped", zap.String("type", a.Type))
	}
}

// Close stops the stream and all background work. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		cancel, ws := c.cancel, c.ws
		c.mu.Unlock()

		close(c.done)
		if cancel != nil {
			cancel()
		}
		if ws != nil {
			ws.Close()
		}
		c.wg.Wait()
	})
	return nil
}

func (c *Conn) dial(ctx context.Context, streamURL string) (*websocket.Conn, error) {
	if streamURL == "" {
		return nil, errors.New("conversation has no stream url")
	}
	ws, resp, err := c.dialer.DialContext(ctx, streamURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing stream: %w", err)
	}
	return ws, nil
}

func (c *Conn) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			ws.Close()
			if ctx.Err() != nil {
				return
			}

			c.logger.Warn("stream lost", zap.Error(err))
			next, rerr := c.reconnect(ctx)
			if rerr != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Error("giving up on stream", zap.Error(rerr))
				c.emit(Event{Kind: KindDisconnected, Err: rerr})
				return
			}

			ws = next
			c.emit(Event{Kind: KindReconnected})
			continue
		}

		c.handleFrame(data)
	}
}

func (c *Conn) handleFrame(data []byte) {
	// Empty frames are keep-alives
	if len(bytes.TrimSpace(data)) == 0 {
		return
	}

	var set activitySet
	if err := json.Unmarshal(data, &set); err != nil {
		c.logger.Warn("discarding malformed frame", zap.Error(err))
		return
	}

	if set.Watermark != "" {
		c.mu.Lock()
		c.watermark = set.Watermark
		c.mu.Unlock()
	}

	for i := range set.Activities {
		a := set.Activities[i]
		c.emit(Event{Kind: KindActivity, Activity: &a})
	}
}

func (c *Conn) reconnect(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	id, watermark := c.conversationID, c.watermark
	c.mu.Unlock()

	op := func() (*websocket.Conn, error) {
		conv, err := c.client.Reconnect(ctx, id, watermark)
		if err != nil {
			var perr *PostError
			if errors.As(err, &perr) && perr.StatusCode < 500 && perr.StatusCode != 429 {
				return nil, backoff.Permanent(err)
			}
			if errors.Is(err, ErrTokenExpired) {
				c.emit(Event{Kind: KindTokenExpired})
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return c.dial(ctx, conv.StreamURL)
	}

	ws, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.reconnectTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Debug("reconnect attempt failed", zap.Error(err), zap.Duration("wait", wait))
		}),
	)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return nil, ErrClosed
	}
	c.ws = ws
	c.mu.Unlock()

	c.logger.Info("stream reconnected", zap.String("watermark", watermark))
	return ws, nil
}

func (c *Conn) writeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case a := <-c.outbound:
			reply, err := c.PostActivity(ctx, a)
			if err != nil {
				c.logger.Warn("queued post failed", zap.String("type", a.Type), zap.String("name", a.Name), zap.Error(err))
				continue
			}
			c.logger.Debug("queued post sent", zap.String("type", a.Type), zap.String("name", a.Name), zap.String("reply", reply))
		}
	}
}

func (c *Conn) refreshLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.client.RefreshToken(ctx); err != nil {
				if errors.Is(err, ErrTokenExpired) {
					c.emit(Event{Kind: KindTokenExpired})
				}
				c.logger.Warn("token refresh failed", zap.Error(err))
			}
		}
	}
}
