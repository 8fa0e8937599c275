// Package peer manages one media session per remote participant and drives
// the offer, answer and trickle-ICE exchange over the relay.
package peer

import (
	"github.com/BioHazard786/liveclass/internal/media"
	"github.com/BioHazard786/liveclass/internal/wire"
)

// Conn is the native negotiation object behind a peer.
type Conn interface {
	CreateOffer() (wire.Description, error)
	// CreateAnswer applies a remote offer and returns the local answer.
	CreateAnswer(offer wire.Description) (wire.Description, error)
	SetAnswer(answer wire.Description) error
	AddICECandidate(c wire.Candidate) error
	// AttachTrack sends t on the connection.
	AttachTrack(t media.Track) error
	// ReplaceVideoTrack swaps the outbound video without renegotiation. A
	// nil track sends nothing.
	ReplaceVideoTrack(t media.Track) error
	Close() error
}

// RemoteTrack describes one inbound track bound to a peer.
type RemoteTrack struct {
	ID       string
	StreamID string
	Kind     media.Kind
}

// ConnEvents are the native callbacks. They may fire on any goroutine.
type ConnEvents struct {
	OnICECandidate func(c wire.Candidate)
	OnStateChange  func(s ConnectionState)
	OnTrack        func(t RemoteTrack)
}

// Factory builds connections.
type Factory interface {
	NewConn(peerID string, ev ConnEvents) (Conn, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(peerID string, ev ConnEvents) (Conn, error)

func (f FactoryFunc) NewConn(peerID string, ev ConnEvents) (Conn, error) {
	return f(peerID, ev)
}
