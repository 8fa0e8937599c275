package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/liveclass/internal/classroom"
	"github.com/BioHazard786/liveclass/internal/dns"
	"github.com/BioHazard786/liveclass/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	welcomeWait    = 10 * time.Second
)

// Client is a websocket connection to the relay.
type Client struct {
	dispatcher

	serverURL string
	codec     wire.Codec
	resolver  *dns.Resolver
	log       *slog.Logger

	conn     *websocket.Conn
	id       string
	outgoing chan wire.Message
	done     chan struct{}
	dropped  chan struct{}
	once     sync.Once
}

type ClientOption func(*Client)

// WithResolver routes the dial through r instead of the system resolver.
func WithResolver(r *dns.Resolver) ClientOption {
	return func(c *Client) { c.resolver = r }
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for serverURL; codec nil means JSON.
func NewClient(serverURL string, codec wire.Codec, opts ...ClientOption) *Client {
	if codec == nil {
		codec = wire.JSON
	}
	c := &Client{
		serverURL: serverURL,
		codec:     codec,
		log:       slog.Default(),
		outgoing:  make(chan wire.Message, 64),
		done:      make(chan struct{}),
		dropped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint turns a relay address into its websocket URL: http(s) schemes map
// to ws(s), a bare host gets /ws, and the codec is passed as a query param.
func Endpoint(serverURL string, codec wire.Codec) (string, error) {
	if !strings.Contains(serverURL, "://") {
		serverURL = "ws://" + serverURL
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid relay URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid relay URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid relay URL: missing host")
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	q := u.Query()
	q.Set("codec", codec.Name())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the relay and waits for the welcome that carries this
// connection's peer id.
func (c *Client) Connect(ctx context.Context) error {
	endpoint, err := Endpoint(c.serverURL, c.codec)
	if err != nil {
		return err
	}

	dialer := &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: 15 * time.Second,
	}
	if c.resolver != nil {
		dialer.NetDialContext = c.resolver.DialContext
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return classroom.WrapError("connect", classroom.ErrSignaling, err.Error())
	}
	conn.SetReadLimit(maxMessageSize)

	conn.SetReadDeadline(time.Now().Add(welcomeWait))
	msg, err := c.read(conn)
	if err != nil {
		conn.Close()
		return classroom.WrapError("connect", classroom.ErrSignaling, err.Error())
	}
	welcome, ok := msg.(*wire.Welcome)
	if !ok {
		conn.Close()
		return classroom.WrapError("connect", classroom.ErrSignaling, fmt.Sprintf("expected welcome, got %s", msg.Event()))
	}

	c.conn = conn
	c.id = welcome.ID
	c.log.Debug("connected to relay", "url", endpoint, "peer", c.id)

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()
	return nil
}

func (c *Client) ID() string {
	return c.id
}

// Send queues msg for the relay.
func (c *Client) Send(msg wire.Message) error {
	select {
	case <-c.done:
		return classroom.NewError("send "+string(msg.Event()), classroom.ErrRelayClosed)
	default:
	}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return classroom.NewError("send "+string(msg.Event()), classroom.ErrRelayClosed)
	}
}

// Dropped is closed when the connection to the relay ends for any reason.
func (c *Client) Dropped() <-chan struct{} {
	return c.dropped
}

// Close sends a close frame and stops both pumps.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *Client) read(conn *websocket.Conn) (wire.Message, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return wire.Decode(c.codec, data)
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.dropped)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		msg, err := c.read(c.conn)
		if err != nil {
			var decodeErr *classroom.Error
			if errors.As(err, &decodeErr) {
				// A frame we cannot decode is skipped, not fatal.
				c.log.Warn("dropping relay frame", "error", err)
				continue
			}
			select {
			case <-c.done:
			default:
				c.log.Warn("relay connection lost", "error", err)
			}
			return
		}

		if errMsg, ok := msg.(*wire.Error); ok {
			c.log.Warn("relay error", "error", errMsg.Error)
		}
		if !c.dispatch(msg) {
			c.log.Debug("unhandled relay event", "event", msg.Event())
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	frameType := websocket.TextMessage
	if c.codec.Binary() {
		frameType = websocket.BinaryMessage
	}

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			data, err := c.codec.Encode(msg)
			if err != nil {
				c.log.Error("failed to encode relay event", "event", msg.Event(), "error", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(frameType, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.drain(frameType)
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-c.dropped:
			return
		}
	}
}

// drain flushes what was queued before Close so a final leave-room still
// reaches the relay.
func (c *Client) drain(frameType int) {
	for {
		select {
		case msg := <-c.outgoing:
			data, err := c.codec.Encode(msg)
			if err != nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(frameType, data); err != nil {
				return
			}
		default:
			return
		}
	}
}
