// Package room keeps the participant's local view of who else is in the
// classroom and decides which peers this side offers to.
package room

import (
	"log/slog"
	"slices"

	"github.com/BioHazard786/liveclass/internal/classroom"
	"github.com/BioHazard786/liveclass/internal/wire"
)

// Negotiator is the part of the connection manager the tracker drives.
type Negotiator interface {
	CreateOffer(peerID string)
	Teardown(peerID string)
	Has(peerID string) bool
}

// Participant is one remote member as shown in the classroom.
type Participant struct {
	ID         string
	Name       string
	Role       classroom.Role
	Pinned     bool
	HandRaised bool
}

// Tracker is the de-duplicated roster of remote peers, in relay order. It is
// not safe for concurrent use; the session loop owns it.
type Tracker struct {
	self       string
	order      []string
	members    map[string]*Participant
	info       map[string]wire.PeerInfo
	hands      map[string]bool
	negotiator Negotiator
	log        *slog.Logger
}

func NewTracker(self string, n Negotiator, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		self:       self,
		members:    make(map[string]*Participant),
		info:       make(map[string]wire.PeerInfo),
		hands:      make(map[string]bool),
		negotiator: n,
		log:        log,
	}
}

// OnRosterSnapshot replaces the roster with ids and offers to every peer this
// side has no connection with yet. It is the only path that initiates offers.
func (t *Tracker) OnRosterSnapshot(ids []string) {
	added, _ := t.replace(ids)
	t.log.Debug("roster snapshot", "peers", len(t.order), "new", len(added))

	for _, id := range t.order {
		if t.negotiator.Has(id) {
			continue
		}
		t.negotiator.CreateOffer(id)
	}
}

// OnRosterDelta replaces the roster with the relay's authoritative list.
// Newcomers are expected to offer to us, so nothing is initiated here; peers
// missing from the list lose their connection.
func (t *Tracker) OnRosterDelta(ids []string) {
	added, removed := t.replace(ids)
	t.log.Debug("roster update", "peers", len(t.order), "joined", len(added), "left", len(removed))
}

// OnPeerLeft drops id and its connection.
func (t *Tracker) OnPeerLeft(id string) {
	t.Remove(id)
	t.negotiator.Teardown(id)
}

// Remove forgets id without touching its connection. Removing an unknown id
// is a no-op.
func (t *Tracker) Remove(id string) bool {
	if _, ok := t.members[id]; !ok {
		return false
	}
	delete(t.members, id)
	delete(t.hands, id)
	t.order = slices.DeleteFunc(t.order, func(s string) bool { return s == id })
	return true
}

// Reset forgets the whole room: members, announced names, hands and pins.
// Connections are left to the caller.
func (t *Tracker) Reset() {
	t.order = nil
	clear(t.members)
	clear(t.info)
	clear(t.hands)
}

// ApplyRoster annotates members with the name and role they announced.
func (t *Tracker) ApplyRoster(infos []wire.PeerInfo) {
	for _, info := range infos {
		if info.ID == t.self {
			continue
		}
		t.info[info.ID] = info
		if p, ok := t.members[info.ID]; ok {
			p.Name = info.User
			p.Role = classroom.ParseRole(info.Role)
		}
	}
}

// SetHandRaised records a raise-hand signal. Chat-only members are tracked
// too, so their hand shows once they join the media session.
func (t *Tracker) SetHandRaised(id string, raised bool) {
	if raised {
		t.hands[id] = true
	} else {
		delete(t.hands, id)
	}
	if p, ok := t.members[id]; ok {
		p.HandRaised = raised
	}
}

// TogglePin flips the local pin on id and reports the new value.
func (t *Tracker) TogglePin(id string) bool {
	p, ok := t.members[id]
	if !ok {
		return false
	}
	p.Pinned = !p.Pinned
	return p.Pinned
}

// Spotlight pins id and unpins everyone else, as requested by a remote pin.
func (t *Tracker) Spotlight(id string) {
	for _, p := range t.members {
		p.Pinned = p.ID == id
	}
}

func (t *Tracker) Has(id string) bool {
	_, ok := t.members[id]
	return ok
}

// Participants returns copies in roster order, pinned members first.
func (t *Tracker) Participants() []Participant {
	out := make([]Participant, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.members[id])
	}
	slices.SortStableFunc(out, func(a, b Participant) int {
		switch {
		case a.Pinned == b.Pinned:
			return 0
		case a.Pinned:
			return -1
		default:
			return 1
		}
	})
	return out
}

func (t *Tracker) IDs() []string {
	return slices.Clone(t.order)
}

func (t *Tracker) Count() int {
	return len(t.order)
}

// replace installs ids as the roster, skipping self and duplicates, and tears
// down connections of peers that are no longer listed.
func (t *Tracker) replace(ids []string) (added, removed []string) {
	next := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || id == t.self || seen[id] {
			continue
		}
		seen[id] = true
		next = append(next, id)
		if _, ok := t.members[id]; !ok {
			t.members[id] = t.newParticipant(id)
			added = append(added, id)
		}
	}

	for _, id := range t.order {
		if !seen[id] {
			removed = append(removed, id)
		}
	}
	t.order = next

	for _, id := range removed {
		delete(t.members, id)
		delete(t.hands, id)
		t.negotiator.Teardown(id)
	}
	return added, removed
}

func (t *Tracker) newParticipant(id string) *Participant {
	p := &Participant{ID: id, Role: classroom.RoleStudent, HandRaised: t.hands[id]}
	if info, ok := t.info[id]; ok {
		p.Name = info.User
		p.Role = classroom.ParseRole(info.Role)
	}
	return p
}
