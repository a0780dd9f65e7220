// Package client is the softphone-side counterpart of the relay: it keeps
// one WebSocket open, authenticates on every (re)connect, and dispatches
// inbound frames to local subscribers.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/Jobcall26/jobdial-server/internal/relay/proto"
)

// DefaultReconnectDelay is the fixed wait between reconnect attempts.
// No backoff growth: the dashboard reference behavior retries every 3s.
const DefaultReconnectDelay = 3 * time.Second

// ErrNotConnected is returned by Send when no transport is open.
var ErrNotConnected = errors.New("relay client: not connected")

// Handler receives inbound frames of a subscribed type.
type Handler func(frame proto.Frame)

// Options configures a Client.
type Options struct {
	// URL of the relay endpoint, e.g. ws://host:8080/ws.
	URL string
	// UserID to authenticate as. Ignored when Token is set.
	UserID int64
	// Token, when set, is sent instead of the bare UserID.
	Token string
	// ReconnectDelay between attempts; DefaultReconnectDelay when zero.
	ReconnectDelay time.Duration
	// OnToast is called for notification frames, which are user-visible.
	OnToast func(title, message string)
	Logger  *zerolog.Logger
}

// Client maintains the connection. Consumers that need every message
// subscribe a Handler; LastMessage is a latest-value slot, so a slow
// reader can miss intermediate frames by design.
type Client struct {
	opts Options
	log  zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	closed   bool
	started  bool
	handlers map[string][]Handler

	done chan struct{}
	last atomic.Pointer[proto.Frame]
}

// New builds a client. Register handlers before calling Start.
func New(opts Options) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "relay_client").Logger()
	}
	return &Client{
		opts:     opts,
		log:      logger,
		handlers: make(map[string][]Handler),
		done:     make(chan struct{}),
	}
}

// OnMessage subscribes a handler for frames of the given type.
func (c *Client) OnMessage(msgType string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = append(c.handlers[msgType], h)
}

// Start launches the connect/reconnect loop. It returns immediately.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run(ctx)
}

// Close ends the session: the transport is closed by us and no reconnect
// is scheduled. Used on logout.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	close(c.done)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "logout")
	}
}

// Send writes one frame if the transport is currently open; otherwise the
// message is dropped with a logged error. No outbound queueing.
func (c *Client) Send(ctx context.Context, frame proto.Outbound) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.log.Error().Str("type", frame.Type).Msg("send while disconnected, dropping")
		return ErrNotConnected
	}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		c.log.Error().Err(err).Str("type", frame.Type).Msg("send failed, dropping")
		return err
	}
	return nil
}

// SendStatus reports the agent's softphone status to the relay.
func (c *Client) SendStatus(ctx context.Context, status string) error {
	return c.Send(ctx, proto.Outbound{
		Type: proto.TypeAgentStatus,
		Data: proto.AgentStatusData{Status: status},
	})
}

// LastMessage returns the most recently received frame, or nil.
func (c *Client) LastMessage() *proto.Frame {
	return c.last.Load()
}

// Connected reports whether a transport is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) run(ctx context.Context) {
	for {
		if c.isDone(ctx) {
			return
		}

		conn, _, err := websocket.Dial(ctx, c.opts.URL, nil)
		if err != nil {
			c.log.Warn().Err(err).Str("url", c.opts.URL).Msg("dial failed")
		} else if c.install(conn) {
			c.authenticate(ctx)
			c.readLoop(ctx, conn)
			c.clear(conn)
		} else {
			// Closed while dialing.
			_ = conn.Close(websocket.StatusNormalClosure, "logout")
			return
		}

		if c.isDone(ctx) {
			return
		}

		select {
		case <-time.After(c.opts.ReconnectDelay):
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) isDone(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) install(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.conn = conn
	return true
}

func (c *Client) clear(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.CloseNow()
}

func (c *Client) authenticate(ctx context.Context) {
	frame := proto.Outbound{
		Type: proto.TypeAuthenticate,
		Data: proto.AuthenticateData{UserID: c.opts.UserID, Token: c.opts.Token},
	}
	if err := c.Send(ctx, frame); err != nil {
		c.log.Warn().Err(err).Msg("authenticate send failed")
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if !c.isDone(ctx) {
				c.log.Warn().Err(err).Msg("connection lost")
			}
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var frame proto.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.log.Warn().Err(err).Msg("malformed inbound frame, dropping")
		return
	}

	c.last.Store(&frame)

	if frame.Type == proto.TypeNotification {
		var n proto.NotificationData
		if err := json.Unmarshal(frame.Data, &n); err != nil {
			c.log.Warn().Err(err).Msg("malformed notification payload, dropping")
			return
		}
		if c.opts.OnToast != nil {
			c.opts.OnToast(n.Title, n.Message)
		}
		return
	}

	c.mu.Lock()
	handlers := append([]Handler(nil), c.handlers[frame.Type]...)
	c.mu.Unlock()
	for _, h := range handlers {
		h(frame)
	}
}
