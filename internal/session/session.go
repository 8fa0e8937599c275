// Package session composes the classroom components for one room visit and
// runs them on a single event loop. Relay handlers and native callbacks only
// post work into the loop, so the components themselves need no locks.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BioHazard786/liveclass/internal/chat"
	"github.com/BioHazard786/liveclass/internal/classroom"
	"github.com/BioHazard786/liveclass/internal/media"
	"github.com/BioHazard786/liveclass/internal/peer"
	"github.com/BioHazard786/liveclass/internal/room"
	"github.com/BioHazard786/liveclass/internal/signaling"
	"github.com/BioHazard786/liveclass/internal/wire"
)

var ErrStopped = errors.New("session stopped")

// Config is what a session is built from. The relay must already be
// connected so the local peer id is known.
type Config struct {
	RoomID  string
	Name    string
	Role    classroom.Role
	Relay   signaling.Relay
	Factory peer.Factory
	// Source may be nil for a receive-only participant.
	Source media.Source
	Logger *slog.Logger
}

// Session is one participant's visit to one room.
type Session struct {
	self   classroom.Identity
	roomID string
	relay  signaling.Relay
	log    *slog.Logger

	tracker *room.Tracker
	peers   *peer.Manager
	media   *media.Controls
	chat    *chat.Messenger

	actions   chan func()
	snapshots chan Snapshot
	stopped   chan struct{}

	joined    bool
	lastError string
	stats     stats
}

func New(cfg Config) *Session {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "guest"
	}

	s := &Session{
		self:      classroom.Identity{ID: cfg.Relay.ID(), Name: cfg.Name, Role: cfg.Role},
		roomID:    cfg.RoomID,
		relay:     cfg.Relay,
		log:       log.With("room", cfg.RoomID),
		actions:   make(chan func(), 256),
		snapshots: make(chan Snapshot, 1),
		stopped:   make(chan struct{}),
		stats:     newStats(),
	}

	s.media = media.NewControls(cfg.Source, nil, s.Do, s.log)
	s.peers = peer.NewManager(peer.Config{
		Self:     s.self.ID,
		Relay:    cfg.Relay,
		Factory:  cfg.Factory,
		Tracks:   s.media.OutboundTracks,
		Post:     s.Do,
		OnClosed: s.peerClosed,
		OnTrack: func(id string, t peer.RemoteTrack) {
			s.log.Debug("receiving media", "peer", id, "kind", t.Kind)
		},
		Logger: s.log,
	})
	s.media.SetReplacer(s.peers)
	s.tracker = room.NewTracker(s.self.ID, s.peers, s.log)
	s.chat = chat.NewMessenger(cfg.Relay, s.self, s.media, s.log)

	s.bind()
	return s
}

// bind routes relay events into the loop.
func (s *Session) bind() {
	on := func(ev wire.Event, fn func(wire.Message)) {
		s.relay.On(ev, func(msg wire.Message) {
			s.Do(func() { fn(msg) })
		})
	}
	// Room events still queued when the participant leaves are dropped.
	inRoom := func(ev wire.Event, fn func(wire.Message)) {
		on(ev, func(msg wire.Message) {
			if !s.joined {
				s.log.Debug("event after leave dropped", "event", ev)
				return
			}
			fn(msg)
		})
	}

	inRoom(wire.EventPeers, func(msg wire.Message) {
		peers := *msg.(*wire.Peers)
		s.stats.saw(peers...)
		s.tracker.OnRosterSnapshot(peers)
	})
	inRoom(wire.EventPeerListUpdate, func(msg wire.Message) {
		ids := *msg.(*wire.PeerListUpdate)
		s.stats.saw(ids...)
		s.tracker.OnRosterDelta(ids)
	})
	inRoom(wire.EventRoster, func(msg wire.Message) {
		s.tracker.ApplyRoster(*msg.(*wire.Roster))
	})
	inRoom(wire.EventPeerLeft, func(msg wire.Message) {
		s.tracker.OnPeerLeft(msg.(*wire.PeerLeft).ID)
	})
	inRoom(wire.EventOffer, func(msg wire.Message) {
		m := msg.(*wire.Offer)
		s.peers.HandleOffer(m.From, m.Offer)
	})
	inRoom(wire.EventAnswer, func(msg wire.Message) {
		m := msg.(*wire.Answer)
		s.peers.HandleAnswer(m.From, m.Answer)
	})
	inRoom(wire.EventICECandidate, func(msg wire.Message) {
		m := msg.(*wire.ICECandidate)
		s.peers.AddICECandidate(m.From, m.Candidate)
	})
	inRoom(wire.EventForceMute, func(msg wire.Message) {
		if s.chat.HandleForceMute(msg.(*wire.ForceMute)) {
			s.stats.forceMuted++
		}
	})
	on(wire.EventChatMessage, func(msg wire.Message) {
		if s.chat.HandleMessage(msg.(*wire.ChatMessage)) {
			s.stats.messages++
		}
	})
	inRoom(wire.EventRaiseHand, func(msg wire.Message) {
		m := msg.(*wire.RaiseHand)
		if m.From != s.self.ID {
			s.tracker.SetHandRaised(m.From, m.Raised)
		}
	})
	inRoom(wire.EventPin, func(msg wire.Message) {
		s.tracker.Spotlight(msg.(*wire.Pin).ID)
	})
	on(wire.EventError, func(msg wire.Message) {
		s.lastError = msg.(*wire.Error).Error
		s.log.Warn("relay reported an error", "error", s.lastError)
	})
}

// Run executes posted work until ctx ends, then leaves the room.
func (s *Session) Run(ctx context.Context) {
	defer close(s.stopped)
	s.publish()

	for {
		select {
		case <-ctx.Done():
			if s.joined {
				s.leave()
			}
			return
		case fn := <-s.actions:
			fn()
			s.publish()
		}
	}
}

// Do schedules fn on the loop. It never blocks after the loop has stopped.
func (s *Session) Do(fn func()) {
	select {
	case s.actions <- fn:
	case <-s.stopped:
	}
}

// call runs fn on the loop and waits for its result.
func (s *Session) call(fn func() error) error {
	result := make(chan error, 1)
	select {
	case s.actions <- func() { result <- fn() }:
	case <-s.stopped:
		return ErrStopped
	}
	select {
	case err := <-result:
		return err
	case <-s.stopped:
		return ErrStopped
	}
}

func (s *Session) Self() classroom.Identity {
	return s.self
}

func (s *Session) RoomID() string {
	return s.roomID
}

// Join starts local media, then announces the participant on the side
// channel and in the media session. A media failure leaves the session
// receive-only and is not returned.
func (s *Session) Join(ctx context.Context) error {
	return s.call(func() error {
		if s.joined {
			return nil
		}
		if err := s.media.Start(ctx); err != nil {
			s.lastError = err.Error()
		}
		if err := s.chat.Join(s.roomID); err != nil {
			return err
		}
		err := s.relay.Send(&wire.JoinRoom{RoomID: s.roomID, User: s.self.Name, Role: string(s.self.Role)})
		if err != nil {
			return classroom.WrapError("join room", classroom.ErrSignaling, err.Error())
		}
		s.joined = true
		s.stats.joinedAt = time.Now()
		s.log.Info("joined room", "peer", s.self.ID, "role", s.self.Role)
		return nil
	})
}

// Leave tears down every connection and stops every local track.
func (s *Session) Leave() error {
	return s.call(func() error {
		if !s.joined {
			return nil
		}
		return s.leave()
	})
}

func (s *Session) leave() error {
	var errs []error
	if err := s.relay.Send(&wire.LeaveRoom{RoomID: s.roomID}); err != nil {
		errs = append(errs, err)
	}
	if err := s.chat.Leave(s.roomID); err != nil {
		errs = append(errs, err)
	}
	s.peers.TeardownAll()
	s.tracker.Reset()
	s.media.Stop()
	s.joined = false
	s.stats.leftAt = time.Now()
	s.log.Info("left room")
	return errors.Join(errs...)
}

func (s *Session) ToggleMic() error {
	return s.call(func() error {
		s.media.ToggleMic()
		return nil
	})
}

func (s *Session) ToggleCamera() error {
	return s.call(func() error {
		s.media.ToggleCamera()
		return nil
	})
}

// ToggleScreenShare starts sharing or reverts to the camera.
func (s *Session) ToggleScreenShare(ctx context.Context) error {
	return s.call(func() error {
		if s.media.State().ScreenSharing {
			s.media.StopScreenShare()
			return nil
		}
		if err := s.media.StartScreenShare(ctx); err != nil {
			return err
		}
		s.stats.screenShares++
		return nil
	})
}

func (s *Session) SendChat(text string) error {
	return s.call(func() error {
		return s.chat.SendMessage(s.roomID, text)
	})
}

func (s *Session) ToggleRaiseHand() error {
	return s.call(func() error {
		_, err := s.chat.ToggleRaiseHand(s.roomID)
		return err
	})
}

func (s *Session) ForceMute(peerID string) error {
	return s.call(func() error {
		return s.chat.ForceMute(peerID)
	})
}

func (s *Session) MuteAll() error {
	return s.call(func() error {
		return s.chat.MuteAll(s.roomID)
	})
}

// Pin spotlights peerID for the whole room (teacher) and locally.
func (s *Session) Pin(peerID string) error {
	return s.call(func() error {
		if err := s.chat.Pin(s.roomID, peerID); err != nil {
			return err
		}
		s.tracker.Spotlight(peerID)
		return nil
	})
}

// TogglePin pins peerID in the local view only.
func (s *Session) TogglePin(peerID string) error {
	return s.call(func() error {
		s.tracker.TogglePin(peerID)
		return nil
	})
}

// peerClosed runs when a connection ends on its own; the tile goes away.
func (s *Session) peerClosed(peerID string) {
	if s.tracker.Remove(peerID) {
		s.stats.dropped++
	}
}
