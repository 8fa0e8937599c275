package relay

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/BioHazard786/liveclass/internal/wire"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// DefaultReadLimit is enough for SDP offers carrying several media sections.
	DefaultReadLimit = 64 * 1024

	sendBuffer = 256
)

// Client is one relay connection. Conn is nil for in-process clients, which
// drain Send themselves.
type Client struct {
	ID    string
	Hub   *Hub
	Conn  *websocket.Conn
	Codec wire.Codec

	// Send is the buffered outbound queue. The hub is the only writer and
	// closes it when the client unregisters.
	Send chan wire.Message

	// Announced on join-room; owned by the hub goroutine.
	RoomID     string
	ChatRoomID string
	User       string
	Role       string
}

// NewClient assigns the client its relay-wide peer id.
func NewClient(hub *Hub, conn *websocket.Conn, codec wire.Codec) *Client {
	if codec == nil {
		codec = wire.JSON
	}
	return &Client{
		ID:    uuid.NewString(),
		Hub:   hub,
		Conn:  conn,
		Codec: codec,
		Send:  make(chan wire.Message, sendBuffer),
	}
}

// Submit hands an already validated message to the hub.
func (c *Client) Submit(msg wire.Message) {
	c.Hub.submit(&inbound{client: c, msg: msg})
}

// ReadPump pumps frames from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump(readLimit int64) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	if readLimit <= 0 {
		readLimit = DefaultReadLimit
	}
	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("relay read failed", "peer", c.ID, "error", err)
			}
			return
		}

		msg, err := wire.Decode(c.Codec, data)
		if err != nil {
			c.Hub.submit(&inbound{client: c, err: err})
			continue
		}
		c.Submit(msg)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	frameType := websocket.TextMessage
	if c.Codec.Binary() {
		frameType = websocket.BinaryMessage
	}

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := c.Codec.Encode(msg)
			if err != nil {
				c.Hub.log.Error("relay encode failed", "peer", c.ID, "event", msg.Event(), "error", err)
				continue
			}
			if err := c.Conn.WriteMessage(frameType, data); err != nil {
				c.Hub.log.Warn("relay write failed", "peer", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// deliver queues msg without blocking the hub. A client too slow to drain
// its queue loses the message rather than stalling the room.
func (c *Client) deliver(msg wire.Message) {
	select {
	case c.Send <- msg:
	default:
		c.Hub.log.Warn("relay send queue full, dropping", "peer", c.ID, "event", msg.Event())
	}
}
