package peer_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/liveclass/internal/media"
	"github.com/BioHazard786/liveclass/internal/media/mediatest"
	"github.com/BioHazard786/liveclass/internal/peer"
	"github.com/BioHazard786/liveclass/internal/peer/peertest"
	"github.com/BioHazard786/liveclass/internal/wire"
)

type harness struct {
	m       *peer.Manager
	factory *peertest.Factory
	relay   *peertest.Sender
	closed  []string
	bound   map[string][]peer.RemoteTrack
}

func newHarness(tracks ...media.Track) *harness {
	h := &harness{
		factory: &peertest.Factory{},
		relay:   &peertest.Sender{},
		bound:   make(map[string][]peer.RemoteTrack),
	}
	h.m = peer.NewManager(peer.Config{
		Self:     "self",
		Relay:    h.relay,
		Factory:  h.factory,
		Tracks:   func() []media.Track { return tracks },
		OnClosed: func(id string) { h.closed = append(h.closed, id) },
		OnTrack:  func(id string, t peer.RemoteTrack) { h.bound[id] = append(h.bound[id], t) },
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

func (h *harness) conn(t *testing.T, id string) *peertest.Conn {
	t.Helper()
	conns := h.factory.For(id)
	require.NotEmpty(t, conns, "no connection for %s", id)
	return conns[len(conns)-1]
}

func (h *harness) connect(t *testing.T, id string) {
	t.Helper()
	h.m.CreateOffer(id)
	h.m.HandleAnswer(id, wire.Description{Type: "answer", SDP: "v=0"})
	h.conn(t, id).Events.OnStateChange(peer.ConnectionConnected)
	state, ok := h.m.State(id)
	require.True(t, ok)
	require.Equal(t, peer.StateConnected, state)
}

func TestAtMostOneConnectionPerPeer(t *testing.T) {
	h := newHarness()

	h.m.CreateOffer("A")
	h.m.CreateOffer("A")
	h.m.HandleOffer("A", wire.Description{Type: "offer", SDP: "v=0"})
	h.m.HandleOffer("A", wire.Description{Type: "offer", SDP: "v=0"})
	h.m.CreateOffer("A")

	assert.Equal(t, 1, h.factory.Created())
	assert.Equal(t, 1, h.m.Count())
	assert.True(t, h.m.Has("A"))
}

func TestCreateOfferSendsAddressedOffer(t *testing.T) {
	mic := mediatest.NewTrack("mic", media.KindAudio)
	cam := mediatest.NewTrack("cam", media.KindVideo)
	h := newHarness(mic, cam)

	h.m.CreateOffer("A")
	h.m.CreateOffer("self")

	offers := h.relay.Of(wire.EventOffer)
	require.Len(t, offers, 1)
	offer := offers[0].(*wire.Offer)
	assert.Equal(t, "A", offer.To)
	assert.Equal(t, "offer-to-A", offer.Offer.SDP)

	state, _ := h.m.State("A")
	assert.Equal(t, peer.StateOffering, state)
	assert.Equal(t, []string{"mic", "cam"}, h.conn(t, "A").Snapshot().Attached)
	assert.False(t, h.m.Has("self"))
}

func TestHandleOfferAnswers(t *testing.T) {
	h := newHarness()

	h.m.HandleOffer("B", wire.Description{Type: "offer", SDP: "remote"})

	answers := h.relay.Of(wire.EventAnswer)
	require.Len(t, answers, 1)
	assert.Equal(t, "B", answers[0].(*wire.Answer).To)
	state, _ := h.m.State("B")
	assert.Equal(t, peer.StateAnswering, state)
	assert.Empty(t, h.relay.Of(wire.EventOffer), "answering side never offers")
}

func TestRepeatedOfferReusesConnection(t *testing.T) {
	h := newHarness()

	h.m.HandleOffer("B", wire.Description{Type: "offer", SDP: "first"})
	h.m.HandleOffer("B", wire.Description{Type: "offer", SDP: "second"})

	assert.Equal(t, 1, h.factory.Created())
	conn := h.conn(t, "B").Snapshot()
	assert.Equal(t, 2, conn.Answers)
	assert.Equal(t, "second", conn.RemoteDesc[1].SDP)
	assert.Len(t, h.relay.Of(wire.EventAnswer), 2)
	state, _ := h.m.State("B")
	assert.Equal(t, peer.StateAnswering, state)
}

func TestHandleAnswerWithoutConnectionIsNoop(t *testing.T) {
	h := newHarness()
	h.m.HandleAnswer("ghost", wire.Description{Type: "answer", SDP: "v=0"})
	assert.Zero(t, h.factory.Created())
	assert.False(t, h.m.Has("ghost"))
}

func TestHandleAnswerOnlyWhileOffering(t *testing.T) {
	h := newHarness()
	h.m.HandleOffer("B", wire.Description{Type: "offer", SDP: "remote"})
	h.m.HandleAnswer("B", wire.Description{Type: "answer", SDP: "stale"})

	assert.Len(t, h.conn(t, "B").Snapshot().RemoteDesc, 1)
}

func TestICEForUnknownPeerIsSilentNoop(t *testing.T) {
	h := newHarness()
	assert.NotPanics(t, func() {
		h.m.AddICECandidate("ghost", wire.Candidate{Candidate: "candidate:1"})
	})
	assert.Zero(t, h.factory.Created())
}

func TestEarlyCandidatesAreQueuedUntilRemoteDescription(t *testing.T) {
	h := newHarness()
	h.m.CreateOffer("A")

	h.m.AddICECandidate("A", wire.Candidate{Candidate: "candidate:1"})
	h.m.AddICECandidate("A", wire.Candidate{Candidate: "candidate:2"})
	assert.Empty(t, h.conn(t, "A").Snapshot().Applied)

	h.m.HandleAnswer("A", wire.Description{Type: "answer", SDP: "v=0"})
	h.m.AddICECandidate("A", wire.Candidate{Candidate: "candidate:3"})

	applied := h.conn(t, "A").Snapshot().Applied
	require.Len(t, applied, 3)
	assert.Equal(t, "candidate:1", applied[0].Candidate)
	assert.Equal(t, "candidate:3", applied[2].Candidate)
}

func TestLocalCandidatesAreForwardedToThePeer(t *testing.T) {
	h := newHarness()
	h.m.CreateOffer("A")

	h.conn(t, "A").Events.OnICECandidate(wire.Candidate{Candidate: "candidate:local"})

	sent := h.relay.Of(wire.EventICECandidate)
	require.Len(t, sent, 1)
	ice := sent[0].(*wire.ICECandidate)
	assert.Equal(t, "A", ice.To)
	assert.Equal(t, "candidate:local", ice.Candidate.Candidate)
}

func TestTerminalStateTearsDownOnlyThatPeer(t *testing.T) {
	for _, terminal := range []peer.ConnectionState{peer.ConnectionFailed, peer.ConnectionDisconnected, peer.ConnectionClosed} {
		t.Run(terminal.String(), func(t *testing.T) {
			h := newHarness()
			h.connect(t, "A")
			h.connect(t, "B")

			h.conn(t, "A").Events.OnStateChange(terminal)

			assert.False(t, h.m.Has("A"))
			assert.True(t, h.conn(t, "A").Snapshot().Closed)
			assert.Equal(t, []string{"A"}, h.closed)

			state, ok := h.m.State("B")
			assert.True(t, ok)
			assert.Equal(t, peer.StateConnected, state)
			assert.False(t, h.conn(t, "B").Snapshot().Closed)
		})
	}
}

func TestStaleCallbacksAreIgnored(t *testing.T) {
	h := newHarness()
	h.m.CreateOffer("A")
	old := h.conn(t, "A")
	h.m.Teardown("A")
	h.m.CreateOffer("A")
	current := h.conn(t, "A")
	require.NotSame(t, old, current)

	old.Events.OnStateChange(peer.ConnectionFailed)
	old.Events.OnICECandidate(wire.Candidate{Candidate: "candidate:old"})
	old.Events.OnTrack(peer.RemoteTrack{ID: "old", Kind: media.KindVideo})

	assert.True(t, h.m.Has("A"))
	assert.False(t, current.Snapshot().Closed)
	assert.Empty(t, h.closed)
	assert.Empty(t, h.relay.Of(wire.EventICECandidate))
	assert.Empty(t, h.m.Bindings("A"))
}

func TestNegotiationFailureDropsPeer(t *testing.T) {
	h := newHarness()
	h.factory.Setup = func(c *peertest.Conn) { c.FailOffer = true }

	h.m.CreateOffer("A")

	assert.False(t, h.m.Has("A"))
	assert.Equal(t, []string{"A"}, h.closed)
	assert.Empty(t, h.relay.Of(wire.EventOffer))
}

func TestFactoryFailureIsLogged(t *testing.T) {
	h := newHarness()
	h.factory.Fail = true
	h.m.CreateOffer("A")
	h.m.HandleOffer("B", wire.Description{Type: "offer", SDP: "v=0"})
	assert.Zero(t, h.m.Count())
}

func TestReplaceVideoTrackKeepsPeersConnected(t *testing.T) {
	cam := mediatest.NewTrack("cam", media.KindVideo)
	h := newHarness(cam)
	h.connect(t, "A")
	h.connect(t, "B")
	offersBefore := len(h.relay.Of(wire.EventOffer))

	h.m.ReplaceVideoTrack(mediatest.NewTrack("screen", media.KindVideo))

	for _, id := range []string{"A", "B"} {
		state, _ := h.m.State(id)
		assert.Equal(t, peer.StateConnected, state)
		assert.Equal(t, "screen", h.conn(t, id).Snapshot().Video)
		assert.Equal(t, 1, h.conn(t, id).Snapshot().Offers)
	}
	assert.Len(t, h.relay.Of(wire.EventOffer), offersBefore)
	assert.Empty(t, h.relay.Of(wire.EventAnswer))
}

func TestRenegotiationReturnsToConnected(t *testing.T) {
	h := newHarness()
	h.connect(t, "A")

	h.m.HandleOffer("A", wire.Description{Type: "offer", SDP: "renegotiate"})

	state, _ := h.m.State("A")
	assert.Equal(t, peer.StateConnected, state)
	assert.Equal(t, 1, h.factory.Created())
}

func TestRemoteTrackBindings(t *testing.T) {
	h := newHarness()
	h.m.HandleOffer("B", wire.Description{Type: "offer", SDP: "v=0"})

	track := peer.RemoteTrack{ID: "v1", StreamID: "s1", Kind: media.KindVideo}
	h.conn(t, "B").Events.OnTrack(track)

	assert.Equal(t, []peer.RemoteTrack{track}, h.m.Bindings("B"))
	assert.Equal(t, []peer.RemoteTrack{track}, h.bound["B"])

	h.m.Teardown("B")
	assert.Nil(t, h.m.Bindings("B"))
}

func TestTeardownAll(t *testing.T) {
	h := newHarness()
	h.m.CreateOffer("A")
	h.m.HandleOffer("B", wire.Description{Type: "offer", SDP: "v=0"})

	h.m.TeardownAll()

	assert.Zero(t, h.m.Count())
	assert.True(t, h.conn(t, "A").Snapshot().Closed)
	assert.True(t, h.conn(t, "B").Snapshot().Closed)
	assert.Empty(t, h.closed, "explicit teardown does not report drops")
}
