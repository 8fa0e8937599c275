package wire

import "time"

type JoinRoom struct {
	RoomID string `json:"roomId" msgpack:"roomId" validate:"required,max=128"`
	User   string `json:"user,omitempty" msgpack:"user,omitempty" validate:"max=64"`
	Role   string `json:"role,omitempty" msgpack:"role,omitempty" validate:"omitempty,oneof=teacher student"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId" msgpack:"roomId" validate:"required,max=128"`
}

// Peers is the roster snapshot sent to a client that just joined. It lists
// every other member, never the recipient.
type Peers []string

// PeerListUpdate is the authoritative full member list, broadcast whenever
// the room membership changes.
type PeerListUpdate []string

type PeerLeft struct {
	ID string `json:"id" msgpack:"id" validate:"required"`
}

// PeerInfo annotates a roster entry with what the member announced on join.
type PeerInfo struct {
	ID   string `json:"id" msgpack:"id" validate:"required"`
	User string `json:"user,omitempty" msgpack:"user,omitempty"`
	Role string `json:"role,omitempty" msgpack:"role,omitempty"`
}

type Roster []PeerInfo

// Description is an SDP offer or answer, carried opaquely.
type Description struct {
	Type string `json:"type" msgpack:"type" validate:"oneof=offer answer pranswer rollback"`
	SDP  string `json:"sdp" msgpack:"sdp" validate:"required"`
}

// Candidate mirrors the browser RTCIceCandidateInit shape.
type Candidate struct {
	Candidate        string  `json:"candidate" msgpack:"candidate" validate:"required"`
	SDPMid           *string `json:"sdpMid,omitempty" msgpack:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty" msgpack:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty" msgpack:"usernameFragment,omitempty"`
}

// Offer travels client→relay with To set and relay→client with From set.
type Offer struct {
	To    string      `json:"to,omitempty" msgpack:"to,omitempty" validate:"required_without=From"`
	From  string      `json:"from,omitempty" msgpack:"from,omitempty" validate:"required_without=To"`
	Offer Description `json:"offer" msgpack:"offer"`
}

type Answer struct {
	To     string      `json:"to,omitempty" msgpack:"to,omitempty" validate:"required_without=From"`
	From   string      `json:"from,omitempty" msgpack:"from,omitempty" validate:"required_without=To"`
	Answer Description `json:"answer" msgpack:"answer"`
}

type ICECandidate struct {
	To        string    `json:"to,omitempty" msgpack:"to,omitempty" validate:"required_without=From"`
	From      string    `json:"from,omitempty" msgpack:"from,omitempty" validate:"required_without=To"`
	Candidate Candidate `json:"candidate" msgpack:"candidate"`
}

type ForceMute struct {
	ID string `json:"id" msgpack:"id" validate:"required"`
}

type MuteAll struct {
	RoomID string `json:"roomId" msgpack:"roomId" validate:"required,max=128"`
}

type ChatJoin struct {
	RoomID string `json:"roomId" msgpack:"roomId" validate:"required,max=128"`
}

type ChatLeave struct {
	RoomID string `json:"roomId" msgpack:"roomId" validate:"required,max=128"`
}

type ChatBody struct {
	User string    `json:"user" msgpack:"user" validate:"required,max=64"`
	Text string    `json:"text" msgpack:"text" validate:"required,max=4096"`
	Time time.Time `json:"time" msgpack:"time"`
}

type ChatMessage struct {
	RoomID  string   `json:"roomId" msgpack:"roomId" validate:"required,max=128"`
	Message ChatBody `json:"message" msgpack:"message"`
}

// RaiseHand is stamped with From by the relay so receivers can attribute it.
type RaiseHand struct {
	RoomID string `json:"roomId" msgpack:"roomId" validate:"required,max=128"`
	Raised bool   `json:"raised" msgpack:"raised"`
	User   string `json:"user" msgpack:"user" validate:"max=64"`
	From   string `json:"from,omitempty" msgpack:"from,omitempty"`
}

type Pin struct {
	RoomID string `json:"roomId" msgpack:"roomId" validate:"required,max=128"`
	ID     string `json:"id" msgpack:"id" validate:"required"`
	From   string `json:"from,omitempty" msgpack:"from,omitempty"`
}

type Welcome struct {
	ID string `json:"id" msgpack:"id" validate:"required"`
}

type CreateRoom struct{}

type RoomCreated struct {
	RoomID string `json:"roomId" msgpack:"roomId" validate:"required"`
}

type Error struct {
	Error string `json:"error" msgpack:"error"`
}

func (*JoinRoom) Event() Event       { return EventJoinRoom }
func (*LeaveRoom) Event() Event      { return EventLeaveRoom }
func (*Peers) Event() Event          { return EventPeers }
func (*PeerListUpdate) Event() Event { return EventPeerListUpdate }
func (*PeerLeft) Event() Event       { return EventPeerLeft }
func (*Roster) Event() Event         { return EventRoster }
func (*Offer) Event() Event          { return EventOffer }
func (*Answer) Event() Event         { return EventAnswer }
func (*ICECandidate) Event() Event   { return EventICECandidate }
func (*ForceMute) Event() Event      { return EventForceMute }
func (*MuteAll) Event() Event        { return EventMuteAll }
func (*ChatJoin) Event() Event       { return EventChatJoin }
func (*ChatLeave) Event() Event      { return EventChatLeave }
func (*ChatMessage) Event() Event    { return EventChatMessage }
func (*RaiseHand) Event() Event      { return EventRaiseHand }
func (*Pin) Event() Event            { return EventPin }
func (*Welcome) Event() Event        { return EventWelcome }
func (*CreateRoom) Event() Event     { return EventCreateRoom }
func (*RoomCreated) Event() Event    { return EventRoomCreated }
func (*Error) Event() Event          { return EventError }
