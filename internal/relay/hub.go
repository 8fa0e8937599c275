// Package relay is the thin signaling relay: it tracks who is in which room
// and forwards membership, negotiation and side-channel events without ever
// touching media.
package relay

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/BioHazard786/liveclass/internal/wire"
)

type inbound struct {
	client *Client
	msg    wire.Message
	err    error
}

// Hub is the central brain of the relay. All routing state is owned by the
// goroutine running Run; everything else talks to it over channels.
type Hub struct {
	rooms   map[string]*Room
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan *inbound
	queries    chan func()
	done       chan struct{}

	maxRoomSize int
	log         *slog.Logger
}

type Option func(*Hub)

// WithMaxRoomSize caps media members per room; zero means unlimited.
func WithMaxRoomSize(n int) Option {
	return func(h *Hub) { h.maxRoomSize = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.log = l }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		rooms:      make(map[string]*Room),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *inbound, 64),
		queries:    make(chan func()),
		done:       make(chan struct{}),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds c to the hub; the hub greets it with its peer id.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.Send)
	}
}

// Unregister removes c from every room and closes its send queue.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) submit(in *inbound) {
	select {
	case h.inbound <- in:
	case <-h.done:
	}
}

// Rooms reports current occupancy.
func (h *Hub) Rooms(ctx context.Context) ([]RoomInfo, error) {
	result := make(chan []RoomInfo, 1)
	query := func() {
		infos := make([]RoomInfo, 0, len(h.rooms))
		for _, r := range h.rooms {
			infos = append(infos, RoomInfo{ID: r.ID, Members: r.roster(), Chat: len(r.chat)})
		}
		result <- infos
	}

	select {
	case h.queries <- query:
	case <-h.done:
		return nil, fmt.Errorf("relay stopped")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return <-result, nil
}

// Run processes hub events until ctx is cancelled. It is the single
// goroutine that mutates rooms and clients.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for id, c := range h.clients {
			close(c.Send)
			delete(h.clients, id)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c.ID] = c
			h.log.Info("peer connected", "peer", c.ID, "codec", c.Codec.Name())
			c.deliver(&wire.Welcome{ID: c.ID})

		case c := <-h.unregister:
			if _, ok := h.clients[c.ID]; !ok {
				continue
			}
			h.leaveRoom(c)
			h.leaveChat(c)
			delete(h.clients, c.ID)
			close(c.Send)
			h.log.Info("peer disconnected", "peer", c.ID)

		case in := <-h.inbound:
			if _, ok := h.clients[in.client.ID]; !ok {
				continue
			}
			if in.err != nil {
				h.log.Warn("rejected frame", "peer", in.client.ID, "error", in.err)
				h.fail(in.client, in.err.Error())
				continue
			}
			h.handle(in.client, in.msg)

		case query := <-h.queries:
			query()
		}
	}
}

func (h *Hub) handle(c *Client, msg wire.Message) {
	h.log.Debug("relay event", "peer", c.ID, "event", msg.Event())

	switch m := msg.(type) {
	case *wire.JoinRoom:
		h.joinRoom(c, m)

	case *wire.LeaveRoom:
		if c.RoomID == m.RoomID {
			h.leaveRoom(c)
		}

	case *wire.Offer:
		if target := h.addressed(c, m.To); target != nil {
			target.deliver(&wire.Offer{From: c.ID, Offer: m.Offer})
		}

	case *wire.Answer:
		if target := h.addressed(c, m.To); target != nil {
			target.deliver(&wire.Answer{From: c.ID, Answer: m.Answer})
		}

	case *wire.ICECandidate:
		if target := h.addressed(c, m.To); target != nil {
			target.deliver(&wire.ICECandidate{From: c.ID, Candidate: m.Candidate})
		}

	case *wire.ForceMute:
		if target := h.addressed(c, m.ID); target != nil {
			target.deliver(&wire.ForceMute{ID: target.ID})
		}

	case *wire.MuteAll:
		room := h.rooms[m.RoomID]
		if room == nil || c.RoomID != m.RoomID {
			h.fail(c, "you must join the room first")
			return
		}
		for _, member := range room.members {
			if member != c {
				member.deliver(&wire.ForceMute{ID: member.ID})
			}
		}

	case *wire.ChatJoin:
		if c.ChatRoomID != "" && c.ChatRoomID != m.RoomID {
			h.leaveChat(c)
		}
		c.ChatRoomID = m.RoomID
		h.room(m.RoomID).addChat(c)

	case *wire.ChatLeave:
		if c.ChatRoomID == m.RoomID {
			h.leaveChat(c)
		}

	case *wire.ChatMessage:
		room := h.rooms[m.RoomID]
		if room == nil || !room.inChat(c) {
			h.fail(c, "you must join the chat first")
			return
		}
		// The sender receives its own copy too: the relay is the single
		// ordering authority for every transcript.
		for _, member := range room.chat {
			member.deliver(&wire.ChatMessage{RoomID: m.RoomID, Message: m.Message})
		}

	case *wire.RaiseHand:
		room := h.rooms[m.RoomID]
		if room == nil || (c.RoomID != m.RoomID && c.ChatRoomID != m.RoomID) {
			h.fail(c, "you must join the room first")
			return
		}
		for _, member := range room.audience() {
			member.deliver(&wire.RaiseHand{RoomID: m.RoomID, Raised: m.Raised, User: m.User, From: c.ID})
		}

	case *wire.Pin:
		room := h.rooms[m.RoomID]
		if room == nil || c.RoomID != m.RoomID {
			h.fail(c, "you must join the room first")
			return
		}
		for _, member := range room.audience() {
			if member != c {
				member.deliver(&wire.Pin{RoomID: m.RoomID, ID: m.ID, From: c.ID})
			}
		}

	case *wire.CreateRoom:
		roomID := h.generateRoomID()
		h.log.Info("room id issued", "room", roomID, "peer", c.ID)
		c.deliver(&wire.RoomCreated{RoomID: roomID})

	default:
		h.log.Warn("unexpected event from client", "peer", c.ID, "event", msg.Event())
		h.fail(c, fmt.Sprintf("unexpected event %q", msg.Event()))
	}
}

func (h *Hub) joinRoom(c *Client, m *wire.JoinRoom) {
	if c.RoomID == m.RoomID {
		// A fresh join-room on the same connection (e.g. after a client-side
		// reset) only needs a current snapshot.
		room := h.rooms[m.RoomID]
		c.deliver(ptr(wire.Peers(room.memberIDs(c.ID))))
		c.deliver(ptr(room.roster()))
		return
	}
	if c.RoomID != "" {
		h.leaveRoom(c)
	}

	room := h.room(m.RoomID)
	if h.maxRoomSize > 0 && len(room.members) >= h.maxRoomSize {
		h.log.Warn("room full", "room", room.ID, "peer", c.ID)
		h.fail(c, "room is full")
		h.dropIfEmpty(room)
		return
	}

	c.User = m.User
	c.Role = m.Role
	c.RoomID = room.ID
	room.addMember(c)
	h.log.Info("peer joined room", "room", room.ID, "peer", c.ID, "role", c.Role, "members", len(room.members))

	// The newcomer gets everyone else; it is the only side that offers.
	c.deliver(ptr(wire.Peers(room.memberIDs(c.ID))))
	h.broadcastRoster(room)
}

func (h *Hub) leaveRoom(c *Client) {
	if c.RoomID == "" {
		return
	}
	room := h.rooms[c.RoomID]
	c.RoomID = ""
	if room == nil || !room.removeMember(c) {
		return
	}
	h.log.Info("peer left room", "room", room.ID, "peer", c.ID, "members", len(room.members))

	for _, member := range room.members {
		member.deliver(&wire.PeerLeft{ID: c.ID})
	}
	h.broadcastRoster(room)
	h.dropIfEmpty(room)
}

func (h *Hub) leaveChat(c *Client) {
	if c.ChatRoomID == "" {
		return
	}
	room := h.rooms[c.ChatRoomID]
	c.ChatRoomID = ""
	if room == nil {
		return
	}
	room.removeChat(c)
	h.dropIfEmpty(room)
}

func (h *Hub) broadcastRoster(room *Room) {
	ids := wire.PeerListUpdate(room.memberIDs(""))
	roster := room.roster()
	for _, member := range room.members {
		member.deliver(&ids)
		member.deliver(&roster)
	}
}

// addressed resolves the target of a peer-to-peer event. Targets outside the
// sender's room are not reachable.
func (h *Hub) addressed(c *Client, to string) *Client {
	room := h.rooms[c.RoomID]
	if room == nil {
		h.fail(c, "you must join a room first")
		return nil
	}
	target := room.member(to)
	if target == nil {
		// Late ICE or answers racing a departure are normal; nothing to report.
		h.log.Debug("dropping event for absent peer", "room", room.ID, "from", c.ID, "to", to)
		return nil
	}
	return target
}

func (h *Hub) room(id string) *Room {
	room, ok := h.rooms[id]
	if !ok {
		room = newRoom(id)
		h.rooms[id] = room
		h.log.Info("room created", "room", id)
	}
	return room
}

func (h *Hub) dropIfEmpty(room *Room) {
	if room.empty() {
		delete(h.rooms, room.ID)
		h.log.Info("room deleted", "room", room.ID)
	}
}

func (h *Hub) fail(c *Client, reason string) {
	c.deliver(&wire.Error{Error: reason})
}

// generateRoomID creates a random, memorable room ID.
// Format: adjective-subject-place-supply (e.g. "curious-botany-atrium-prism").
func (h *Hub) generateRoomID() string {
	for {
		id := fmt.Sprintf("%s-%s-%s-%s",
			pick(adjectives), pick(subjects), pick(places), pick(supplies))
		if _, ok := h.rooms[id]; !ok {
			return id
		}
	}
}

func pick(words []string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		panic(fmt.Sprintf("failed to generate random index: %v", err))
	}
	return words[n.Int64()]
}

func ptr[T any](v T) *T {
	return &v
}
