// Package wire defines the relay protocol: event names, the typed payload of
// every event, the frame codecs and the validation applied at the relay
// boundary before a payload reaches any handler.
package wire

// Event names a relay message.
type Event string

const (
	// Media session membership.
	EventJoinRoom       Event = "join-room"
	EventLeaveRoom      Event = "leave-room"
	EventPeers          Event = "peers"
	EventPeerListUpdate Event = "peer-list-update"
	EventPeerLeft       Event = "peer-left"
	EventRoster         Event = "roster"

	// Negotiation, addressed to a single peer.
	EventOffer        Event = "offer"
	EventAnswer       Event = "answer"
	EventICECandidate Event = "ice-candidate"

	// Host controls.
	EventForceMute Event = "force-mute"
	EventMuteAll   Event = "mute-all"

	// Side channel.
	EventChatJoin    Event = "chat-join"
	EventChatLeave   Event = "chat-leave"
	EventChatMessage Event = "chat-message"
	EventRaiseHand   Event = "raise-hand"
	EventPin         Event = "pin"

	// Relay housekeeping.
	EventWelcome     Event = "welcome"
	EventCreateRoom  Event = "create-room"
	EventRoomCreated Event = "room-created"
	EventError       Event = "error"
)

// Message is the tagged union of every relay payload. Each concrete type
// reports the event it travels under.
type Message interface {
	Event() Event
}

var registry = map[Event]func() Message{
	EventJoinRoom:       func() Message { return &JoinRoom{} },
	EventLeaveRoom:      func() Message { return &LeaveRoom{} },
	EventPeers:          func() Message { return &Peers{} },
	EventPeerListUpdate: func() Message { return &PeerListUpdate{} },
	EventPeerLeft:       func() Message { return &PeerLeft{} },
	EventRoster:         func() Message { return &Roster{} },
	EventOffer:          func() Message { return &Offer{} },
	EventAnswer:         func() Message { return &Answer{} },
	EventICECandidate:   func() Message { return &ICECandidate{} },
	EventForceMute:      func() Message { return &ForceMute{} },
	EventMuteAll:        func() Message { return &MuteAll{} },
	EventChatJoin:       func() Message { return &ChatJoin{} },
	EventChatLeave:      func() Message { return &ChatLeave{} },
	EventChatMessage:    func() Message { return &ChatMessage{} },
	EventRaiseHand:      func() Message { return &RaiseHand{} },
	EventPin:            func() Message { return &Pin{} },
	EventWelcome:        func() Message { return &Welcome{} },
	EventCreateRoom:     func() Message { return &CreateRoom{} },
	EventRoomCreated:    func() Message { return &RoomCreated{} },
	EventError:          func() Message { return &Error{} },
}

// Known reports whether ev is part of the protocol.
func Known(ev Event) bool {
	_, ok := registry[ev]
	return ok
}
