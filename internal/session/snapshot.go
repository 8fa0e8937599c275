package session

import (
	"time"

	"github.com/BioHazard786/liveclass/internal/chat"
	"github.com/BioHazard786/liveclass/internal/classroom"
	"github.com/BioHazard786/liveclass/internal/media"
	"github.com/BioHazard786/liveclass/internal/peer"
	"github.com/BioHazard786/liveclass/internal/room"
)

// Snapshot is an immutable view of the session for rendering.
type Snapshot struct {
	Self         classroom.Identity
	RoomID       string
	Joined       bool
	Participants []room.Participant
	Connections  map[string]peer.State
	Transcript   []chat.Message
	Media        media.State
	HandRaised   bool
	LastError    string
}

// Snapshots delivers the latest state after every loop step. Slow readers
// only miss intermediate states.
func (s *Session) Snapshots() <-chan Snapshot {
	return s.snapshots
}

// Snapshot returns the current state, taken on the loop.
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.call(func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

func (s *Session) snapshot() Snapshot {
	conns := make(map[string]peer.State, s.peers.Count())
	for _, id := range s.peers.Peers() {
		state, _ := s.peers.State(id)
		conns[id] = state
	}
	return Snapshot{
		Self:         s.self,
		RoomID:       s.roomID,
		Joined:       s.joined,
		Participants: s.tracker.Participants(),
		Connections:  conns,
		Transcript:   s.chat.Transcript(),
		Media:        s.media.State(),
		HandRaised:   s.chat.HandRaised(),
		LastError:    s.lastError,
	}
}

func (s *Session) publish() {
	snap := s.snapshot()
	select {
	case <-s.snapshots:
	default:
	}
	s.snapshots <- snap
}

// Summary is printed when the participant leaves.
type Summary struct {
	RoomID       string
	Role         classroom.Role
	PeersSeen    int
	PeersDropped int
	Messages     int
	ScreenShares int
	ForceMuted   int
	Duration     time.Duration
}

type stats struct {
	seen         map[string]bool
	dropped      int
	messages     int
	screenShares int
	forceMuted   int
	joinedAt     time.Time
	leftAt       time.Time
}

func newStats() stats {
	return stats{seen: make(map[string]bool)}
}

func (st *stats) saw(ids ...string) {
	for _, id := range ids {
		st.seen[id] = true
	}
}

// Summary reports counters for the visit. It is safe to call after Run has
// returned.
func (s *Session) Summary() Summary {
	var sum Summary
	collect := func() error {
		sum = s.summary()
		return nil
	}
	if err := s.call(collect); err != nil {
		collect()
	}
	return sum
}

func (s *Session) summary() Summary {
	seen := len(s.stats.seen)
	if s.stats.seen[s.self.ID] {
		seen--
	}
	var d time.Duration
	if !s.stats.joinedAt.IsZero() {
		end := s.stats.leftAt
		if end.IsZero() || s.joined {
			end = time.Now()
		}
		d = end.Sub(s.stats.joinedAt)
	}
	return Summary{
		RoomID:       s.roomID,
		Role:         s.self.Role,
		PeersSeen:    seen,
		PeersDropped: s.stats.dropped,
		Messages:     s.stats.messages,
		ScreenShares: s.stats.screenShares,
		ForceMuted:   s.stats.forceMuted,
		Duration:     d,
	}
}
