// Package peertest provides an in-memory peer.Factory that records every
// negotiation call and lets tests fire native callbacks by hand.
package peertest

import (
	"errors"
	"sync"

	"github.com/BioHazard786/liveclass/internal/media"
	"github.com/BioHazard786/liveclass/internal/peer"
	"github.com/BioHazard786/liveclass/internal/wire"
)

var ErrInjected = errors.New("injected failure")

// Conn is a fake peer.Conn.
type Conn struct {
	mu sync.Mutex

	PeerID string
	Events peer.ConnEvents

	Offers     int
	Answers    int
	Applied    []wire.Candidate
	Attached   []string
	Video      string
	Closed     bool
	RemoteDesc []wire.Description

	FailOffer  bool
	FailAnswer bool
}

func (c *Conn) CreateOffer() (wire.Description, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailOffer {
		return wire.Description{}, ErrInjected
	}
	c.Offers++
	return wire.Description{Type: "offer", SDP: "offer-to-" + c.PeerID}, nil
}

func (c *Conn) CreateAnswer(offer wire.Description) (wire.Description, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailAnswer {
		return wire.Description{}, ErrInjected
	}
	c.RemoteDesc = append(c.RemoteDesc, offer)
	c.Answers++
	return wire.Description{Type: "answer", SDP: "answer-to-" + c.PeerID}, nil
}

func (c *Conn) SetAnswer(answer wire.Description) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailAnswer {
		return ErrInjected
	}
	c.RemoteDesc = append(c.RemoteDesc, answer)
	return nil
}

func (c *Conn) AddICECandidate(cand wire.Candidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Applied = append(c.Applied, cand)
	return nil
}

func (c *Conn) AttachTrack(t media.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Attached = append(c.Attached, t.ID())
	if t.Kind() == media.KindVideo {
		c.Video = t.ID()
	}
	return nil
}

func (c *Conn) ReplaceVideoTrack(t media.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Video = ""
	if t != nil {
		c.Video = t.ID()
	}
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// Snapshot returns a copy safe to inspect from the test goroutine.
func (c *Conn) Snapshot() Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Conn{
		PeerID:     c.PeerID,
		Offers:     c.Offers,
		Answers:    c.Answers,
		Applied:    append([]wire.Candidate(nil), c.Applied...),
		Attached:   append([]string(nil), c.Attached...),
		Video:      c.Video,
		Closed:     c.Closed,
		RemoteDesc: append([]wire.Description(nil), c.RemoteDesc...),
	}
}

// Factory hands out fake connections and remembers every one.
type Factory struct {
	mu    sync.Mutex
	Conns []*Conn
	Fail  bool
	// Setup customizes each new connection.
	Setup func(c *Conn)
}

func (f *Factory) NewConn(peerID string, ev peer.ConnEvents) (peer.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return nil, ErrInjected
	}
	c := &Conn{PeerID: peerID, Events: ev}
	if f.Setup != nil {
		f.Setup(c)
	}
	f.Conns = append(f.Conns, c)
	return c, nil
}

// For returns every connection ever built for peerID, oldest first.
func (f *Factory) For(peerID string) []*Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Conn
	for _, c := range f.Conns {
		if c.PeerID == peerID {
			out = append(out, c)
		}
	}
	return out
}

// Created counts connections built so far.
func (f *Factory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Conns)
}

// Sender records what the manager sends to the relay.
type Sender struct {
	mu   sync.Mutex
	Sent []wire.Message
}

func (s *Sender) Send(msg wire.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = append(s.Sent, msg)
	return nil
}

// Of returns the sent messages of one event type.
func (s *Sender) Of(ev wire.Event) []wire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wire.Message
	for _, m := range s.Sent {
		if m.Event() == ev {
			out = append(out, m)
		}
	}
	return out
}
