// Package chat is the room side channel: chat, raise-hand and the host's
// mute and pin controls, all carried by the relay rather than peer to peer.
package chat

import (
	"log/slog"
	"slices"
	"time"

	"github.com/BioHazard786/liveclass/internal/classroom"
	"github.com/BioHazard786/liveclass/internal/wire"
)

// Sender is the relay as the messenger uses it.
type Sender interface {
	Send(msg wire.Message) error
}

// Muter silences local audio.
type Muter interface {
	Mute() bool
}

// Message is one transcript line.
type Message struct {
	RoomID string
	User   string
	Text   string
	Time   time.Time
}

// Messenger keeps the transcript in relay-delivery order. It is not safe for
// concurrent use; the session loop owns it.
type Messenger struct {
	relay Sender
	self  classroom.Identity
	muter Muter
	now   func() time.Time
	log   *slog.Logger

	roomID     string
	transcript []Message
	handRaised bool
}

func NewMessenger(relay Sender, self classroom.Identity, muter Muter, log *slog.Logger) *Messenger {
	if log == nil {
		log = slog.Default()
	}
	return &Messenger{relay: relay, self: self, muter: muter, now: time.Now, log: log}
}

// Join announces presence on the room's side channel.
func (m *Messenger) Join(roomID string) error {
	if err := m.relay.Send(&wire.ChatJoin{RoomID: roomID}); err != nil {
		return classroom.WrapError("chat join", classroom.ErrSignaling, err.Error())
	}
	m.roomID = roomID
	return nil
}

func (m *Messenger) Leave(roomID string) error {
	if m.roomID == roomID {
		m.roomID = ""
		m.handRaised = false
		m.transcript = nil
	}
	if err := m.relay.Send(&wire.ChatLeave{RoomID: roomID}); err != nil {
		return classroom.WrapError("chat leave", classroom.ErrSignaling, err.Error())
	}
	return nil
}

// SendMessage relays text. The local copy is added only when the relay
// echoes it back, so every transcript has the same order.
func (m *Messenger) SendMessage(roomID, text string) error {
	if roomID == "" || roomID != m.roomID {
		return classroom.NewError("send message", classroom.ErrNotJoined)
	}
	msg := &wire.ChatMessage{
		RoomID:  roomID,
		Message: wire.ChatBody{User: m.self.Name, Text: text, Time: m.now()},
	}
	if err := m.relay.Send(msg); err != nil {
		return classroom.WrapError("send message", classroom.ErrSignaling, err.Error())
	}
	return nil
}

// HandleMessage appends a relayed message to the transcript.
func (m *Messenger) HandleMessage(msg *wire.ChatMessage) bool {
	if msg.RoomID != m.roomID {
		m.log.Debug("chat message for another room dropped", "room", msg.RoomID)
		return false
	}
	m.transcript = append(m.transcript, Message{
		RoomID: msg.RoomID,
		User:   msg.Message.User,
		Text:   msg.Message.Text,
		Time:   msg.Message.Time,
	})
	return true
}

// ToggleRaiseHand flips the local hand and relays it. Every toggle is sent.
func (m *Messenger) ToggleRaiseHand(roomID string) (bool, error) {
	if roomID == "" || roomID != m.roomID {
		return m.handRaised, classroom.NewError("raise hand", classroom.ErrNotJoined)
	}
	m.handRaised = !m.handRaised
	err := m.relay.Send(&wire.RaiseHand{RoomID: roomID, Raised: m.handRaised, User: m.self.Name})
	if err != nil {
		return m.handRaised, classroom.WrapError("raise hand", classroom.ErrSignaling, err.Error())
	}
	return m.handRaised, nil
}

func (m *Messenger) HandRaised() bool {
	return m.handRaised
}

// ForceMute asks the relay to mute peerID. Teacher only.
func (m *Messenger) ForceMute(peerID string) error {
	if !m.self.Role.IsHost() {
		return classroom.NewError("force mute", classroom.ErrNotHost)
	}
	if err := m.relay.Send(&wire.ForceMute{ID: peerID}); err != nil {
		return classroom.WrapError("force mute", classroom.ErrSignaling, err.Error())
	}
	return nil
}

// MuteAll mutes every other member of roomID. Teacher only.
func (m *Messenger) MuteAll(roomID string) error {
	if !m.self.Role.IsHost() {
		return classroom.NewError("mute all", classroom.ErrNotHost)
	}
	if err := m.relay.Send(&wire.MuteAll{RoomID: roomID}); err != nil {
		return classroom.WrapError("mute all", classroom.ErrSignaling, err.Error())
	}
	return nil
}

// HandleForceMute mutes local audio when the command names this participant.
// The check is trust-based; nothing stops a modified client from ignoring it.
func (m *Messenger) HandleForceMute(msg *wire.ForceMute) bool {
	if msg.ID != m.self.ID || m.muter == nil {
		return false
	}
	muted := m.muter.Mute()
	m.log.Info("muted by host", "changed", muted)
	return true
}

// Pin spotlights peerID for everyone in roomID. Teacher only.
func (m *Messenger) Pin(roomID, peerID string) error {
	if !m.self.Role.IsHost() {
		return classroom.NewError("pin", classroom.ErrNotHost)
	}
	if err := m.relay.Send(&wire.Pin{RoomID: roomID, ID: peerID}); err != nil {
		return classroom.WrapError("pin", classroom.ErrSignaling, err.Error())
	}
	return nil
}

// Transcript returns the messages received so far.
func (m *Messenger) Transcript() []Message {
	return slices.Clone(m.transcript)
}

func (m *Messenger) RoomID() string {
	return m.roomID
}
