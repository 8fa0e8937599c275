package peer

import (
	"log/slog"
	"slices"

	"github.com/BioHazard786/liveclass/internal/classroom"
	"github.com/BioHazard786/liveclass/internal/media"
	"github.com/BioHazard786/liveclass/internal/wire"
)

// Sender is the relay as the manager uses it.
type Sender interface {
	Send(msg wire.Message) error
}

// Peer is the manager's record of one remote participant's connection.
type Peer struct {
	ID    string
	conn  Conn
	state State

	transport ConnectionState
	remoteSet bool
	pending   []wire.Candidate
	applied   int
	tracks    []RemoteTrack
}

func (p *Peer) State() State { return p.state }

func (p *Peer) transition(next State) bool {
	if !p.state.CanTransition(next) {
		return false
	}
	p.state = next
	return true
}

// Config wires a Manager.
type Config struct {
	Self    string
	Relay   Sender
	Factory Factory
	// Tracks returns the local tracks a new connection sends.
	Tracks func() []media.Track
	// Post schedules fn on the owning event loop. Native callbacks go
	// through it; nil runs them inline.
	Post func(fn func())
	// OnClosed runs when a connection is dropped after a terminal state or
	// a negotiation failure.
	OnClosed func(peerID string)
	OnTrack  func(peerID string, t RemoteTrack)
	Logger   *slog.Logger
}

// Manager owns every peer connection. At most one connection exists per
// remote id. It is not safe for concurrent use; everything, native callbacks
// included, must run on the loop behind Config.Post.
type Manager struct {
	cfg   Config
	peers map[string]*Peer
	log   *slog.Logger
}

func NewManager(cfg Config) *Manager {
	if cfg.Post == nil {
		cfg.Post = func(fn func()) { fn() }
	}
	if cfg.Tracks == nil {
		cfg.Tracks = func() []media.Track { return nil }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:   cfg,
		peers: make(map[string]*Peer),
		log:   cfg.Logger,
	}
}

// CreateOffer offers to peerID, building its connection if needed. Failures
// are logged and the peer is dropped; nothing is retried.
func (m *Manager) CreateOffer(peerID string) {
	if peerID == m.cfg.Self {
		return
	}
	p, err := m.ensure(peerID)
	if err != nil {
		m.log.Error("failed to create peer connection", "peer", peerID, "error", err)
		return
	}
	if !p.transition(StateOffering) {
		m.log.Debug("offer skipped", "peer", peerID, "state", p.state)
		return
	}

	offer, err := p.conn.CreateOffer()
	if err != nil {
		m.abandon(p, classroom.NewPeerError("create offer", peerID, err))
		return
	}
	m.send(&wire.Offer{To: peerID, Offer: offer})
}

// HandleOffer answers an offer from peerID. An existing connection is reused.
func (m *Manager) HandleOffer(from string, offer wire.Description) {
	if from == m.cfg.Self {
		return
	}
	p, err := m.ensure(from)
	if err != nil {
		m.log.Error("failed to create peer connection", "peer", from, "error", err)
		return
	}
	if !p.transition(StateAnswering) {
		m.log.Warn("offer ignored", "peer", from, "state", p.state)
		return
	}

	answer, err := p.conn.CreateAnswer(offer)
	if err != nil {
		m.abandon(p, classroom.NewPeerError("create answer", from, err))
		return
	}
	p.remoteSet = true
	m.flush(p)
	m.settle(p)
	m.send(&wire.Answer{To: from, Answer: answer})
}

// HandleAnswer applies an answer. Answers for unknown peers or peers that are
// not offering are stale and dropped.
func (m *Manager) HandleAnswer(from string, answer wire.Description) {
	p, ok := m.peers[from]
	if !ok {
		m.log.Debug("answer for unknown peer dropped", "peer", from)
		return
	}
	if p.state != StateOffering {
		m.log.Debug("unexpected answer dropped", "peer", from, "state", p.state)
		return
	}

	if err := p.conn.SetAnswer(answer); err != nil {
		m.abandon(p, classroom.NewPeerError("set answer", from, err))
		return
	}
	p.remoteSet = true
	m.flush(p)
	m.settle(p)
}

// settle returns a renegotiated peer to connected when the transport never
// left that state.
func (m *Manager) settle(p *Peer) {
	if p.transport == ConnectionConnected {
		p.transition(StateConnected)
	}
}

// AddICECandidate applies a remote candidate. Candidates for unknown peers
// are dropped silently; candidates that beat the remote description are
// held until it is applied.
func (m *Manager) AddICECandidate(from string, c wire.Candidate) {
	p, ok := m.peers[from]
	if !ok {
		m.log.Debug("candidate for unknown peer dropped", "peer", from)
		return
	}
	if !p.remoteSet {
		p.pending = append(p.pending, c)
		return
	}
	m.apply(p, c)
}

func (m *Manager) flush(p *Peer) {
	pending := p.pending
	p.pending = nil
	for _, c := range pending {
		m.apply(p, c)
	}
}

func (m *Manager) apply(p *Peer, c wire.Candidate) {
	if err := p.conn.AddICECandidate(c); err != nil {
		m.log.Warn("failed to add ICE candidate", "peer", p.ID, "error", err)
		return
	}
	p.applied++
}

// Teardown closes peerID's connection. The shared local tracks stay up.
func (m *Manager) Teardown(peerID string) {
	if p, ok := m.peers[peerID]; ok {
		m.close(p)
	}
}

// TeardownAll closes every connection.
func (m *Manager) TeardownAll() {
	for _, p := range m.peers {
		m.close(p)
	}
}

// ReplaceVideoTrack swaps the outbound video on every connection. No offer or
// answer is exchanged and no peer changes state.
func (m *Manager) ReplaceVideoTrack(t media.Track) {
	for _, p := range m.peers {
		if err := p.conn.ReplaceVideoTrack(t); err != nil {
			m.log.Warn("failed to replace video track", "peer", p.ID, "error", err)
		}
	}
}

func (m *Manager) Has(peerID string) bool {
	_, ok := m.peers[peerID]
	return ok
}

// State reports the negotiation state of peerID.
func (m *Manager) State(peerID string) (State, bool) {
	p, ok := m.peers[peerID]
	if !ok {
		return StateClosed, false
	}
	return p.state, true
}

// Bindings lists the inbound tracks bound to peerID.
func (m *Manager) Bindings(peerID string) []RemoteTrack {
	if p, ok := m.peers[peerID]; ok {
		return slices.Clone(p.tracks)
	}
	return nil
}

// Peers returns the ids with a live connection, sorted.
func (m *Manager) Peers() []string {
	ids := make([]string, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *Manager) Count() int {
	return len(m.peers)
}

// ensure returns the connection for peerID, building it and attaching the
// local tracks on first use.
func (m *Manager) ensure(peerID string) (*Peer, error) {
	if p, ok := m.peers[peerID]; ok {
		return p, nil
	}

	p := &Peer{ID: peerID, state: StateIdle}
	conn, err := m.cfg.Factory.NewConn(peerID, m.events(p))
	if err != nil {
		return nil, classroom.NewPeerError("create connection", peerID, err)
	}
	p.conn = conn

	for _, t := range m.cfg.Tracks() {
		if err := conn.AttachTrack(t); err != nil {
			m.log.Warn("failed to attach local track", "peer", peerID, "track", t.ID(), "error", err)
		}
	}

	m.peers[peerID] = p
	m.log.Debug("peer connection created", "peer", peerID)
	return p, nil
}

// events adapts native callbacks onto the loop. Each callback first checks
// that p is still the live entry for its id, so a torn-down connection
// cannot affect its replacement.
func (m *Manager) events(p *Peer) ConnEvents {
	return ConnEvents{
		OnICECandidate: func(c wire.Candidate) {
			m.cfg.Post(func() {
				if m.live(p) {
					m.send(&wire.ICECandidate{To: p.ID, Candidate: c})
				}
			})
		},
		OnStateChange: func(s ConnectionState) {
			m.cfg.Post(func() {
				if m.live(p) {
					m.onStateChange(p, s)
				}
			})
		},
		OnTrack: func(t RemoteTrack) {
			m.cfg.Post(func() {
				if !m.live(p) {
					return
				}
				p.tracks = append(p.tracks, t)
				m.log.Debug("remote track bound", "peer", p.ID, "kind", t.Kind, "track", t.ID)
				if m.cfg.OnTrack != nil {
					m.cfg.OnTrack(p.ID, t)
				}
			})
		},
	}
}

func (m *Manager) live(p *Peer) bool {
	return m.peers[p.ID] == p
}

func (m *Manager) onStateChange(p *Peer, s ConnectionState) {
	m.log.Debug("peer connection state", "peer", p.ID, "state", s)
	p.transport = s

	switch {
	case s == ConnectionConnected:
		if !p.transition(StateConnected) {
			m.log.Debug("connected in unexpected state", "peer", p.ID, "state", p.state)
		}
	case s.Terminal():
		m.log.Info("peer connection ended", "peer", p.ID, "state", s)
		m.close(p)
		m.closed(p.ID)
	}
}

// abandon drops a peer after a negotiation failure.
func (m *Manager) abandon(p *Peer, err error) {
	m.log.Warn("negotiation failed, dropping peer", "peer", p.ID, "error", err)
	m.close(p)
	m.closed(p.ID)
}

func (m *Manager) close(p *Peer) {
	if m.peers[p.ID] == p {
		delete(m.peers, p.ID)
	}
	p.state = StateClosed
	p.pending = nil
	if err := p.conn.Close(); err != nil {
		m.log.Debug("error closing peer connection", "peer", p.ID, "error", err)
	}
}

func (m *Manager) closed(peerID string) {
	if m.cfg.OnClosed != nil {
		m.cfg.OnClosed(peerID)
	}
}

func (m *Manager) send(msg wire.Message) {
	if err := m.cfg.Relay.Send(msg); err != nil {
		m.log.Warn("failed to send to relay", "event", msg.Event(), "error", err)
	}
}
