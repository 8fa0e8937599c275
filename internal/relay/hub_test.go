package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/liveclass/internal/wire"
)

func startHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	h := NewHub(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func connect(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := NewClient(h, nil, wire.JSON)
	h.Register(c)
	welcome := expect[*wire.Welcome](t, c)
	require.Equal(t, c.ID, welcome.ID)
	return c
}

func recv(t *testing.T, c *Client) wire.Message {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "send queue closed")
		return msg
	case <-time.After(time.Second):
		t.Fatalf("no message for %s", c.ID)
		return nil
	}
}

func expect[T wire.Message](t *testing.T, c *Client) T {
	t.Helper()
	msg := recv(t, c)
	typed, ok := msg.(T)
	require.Truef(t, ok, "got %s (%T)", msg.Event(), msg)
	return typed
}

func quiet(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected %s for %s", msg.Event(), c.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

// join sends join-room and drains the joiner's own snapshot, peer-list-update
// and roster, plus the update pair every existing member receives.
func join(t *testing.T, c *Client, roomID string, existing ...*Client) wire.Peers {
	t.Helper()
	c.Submit(&wire.JoinRoom{RoomID: roomID, User: c.ID[:8], Role: "student"})
	peers := expect[*wire.Peers](t, c)
	expect[*wire.PeerListUpdate](t, c)
	expect[*wire.Roster](t, c)
	for _, e := range existing {
		expect[*wire.PeerListUpdate](t, e)
		expect[*wire.Roster](t, e)
	}
	return *peers
}

func TestJoinRoomSnapshotExcludesSelf(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h), connect(t, h)

	assert.Empty(t, join(t, a, "main-room"))
	assert.Equal(t, wire.Peers{a.ID}, join(t, b, "main-room", a))

	c := connect(t, h)
	c.Submit(&wire.JoinRoom{RoomID: "main-room", User: "carol", Role: "teacher"})

	assert.Equal(t, wire.Peers{a.ID, b.ID}, *expect[*wire.Peers](t, c))
	for _, member := range []*Client{a, b, c} {
		assert.Equal(t, wire.PeerListUpdate{a.ID, b.ID, c.ID}, *expect[*wire.PeerListUpdate](t, member))
		roster := *expect[*wire.Roster](t, member)
		require.Len(t, roster, 3)
		assert.Equal(t, wire.PeerInfo{ID: c.ID, User: "carol", Role: "teacher"}, roster[2])
	}
}

func TestRejoinSameRoomResendsSnapshot(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h), connect(t, h)
	join(t, a, "r")
	join(t, b, "r", a)

	b.Submit(&wire.JoinRoom{RoomID: "r"})
	assert.Equal(t, wire.Peers{a.ID}, *expect[*wire.Peers](t, b))
	expect[*wire.Roster](t, b)
	quiet(t, a)
}

func TestJoinOtherRoomLeavesPrevious(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h), connect(t, h)
	join(t, a, "r1")
	join(t, b, "r1", a)

	b.Submit(&wire.JoinRoom{RoomID: "r2"})
	assert.Equal(t, b.ID, expect[*wire.PeerLeft](t, a).ID)
	assert.Equal(t, wire.PeerListUpdate{a.ID}, *expect[*wire.PeerListUpdate](t, a))
	expect[*wire.Roster](t, a)
	assert.Empty(t, *expect[*wire.Peers](t, b))
}

func TestMaxRoomSize(t *testing.T) {
	h := startHub(t, WithMaxRoomSize(1))
	a, b := connect(t, h), connect(t, h)
	join(t, a, "r")

	b.Submit(&wire.JoinRoom{RoomID: "r"})
	assert.Equal(t, "room is full", expect[*wire.Error](t, b).Error)
	quiet(t, a)
}

func TestLeaveAndDisconnectAnnouncePeerLeft(t *testing.T) {
	h := startHub(t)
	a, b, c := connect(t, h), connect(t, h), connect(t, h)
	join(t, a, "r")
	join(t, b, "r", a)
	join(t, c, "r", a, b)

	b.Submit(&wire.LeaveRoom{RoomID: "r"})
	for _, member := range []*Client{a, c} {
		assert.Equal(t, b.ID, expect[*wire.PeerLeft](t, member).ID)
		assert.Equal(t, wire.PeerListUpdate{a.ID, c.ID}, *expect[*wire.PeerListUpdate](t, member))
		expect[*wire.Roster](t, member)
	}

	h.Unregister(c)
	assert.Equal(t, c.ID, expect[*wire.PeerLeft](t, a).ID)
	assert.Equal(t, wire.PeerListUpdate{a.ID}, *expect[*wire.PeerListUpdate](t, a))

	_, ok := <-c.Send
	assert.False(t, ok, "unregister closes the send queue")
}

func TestRoomDeletedWhenEmpty(t *testing.T) {
	h := startHub(t)
	a := connect(t, h)
	join(t, a, "r")

	rooms, err := h.Rooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "r", rooms[0].ID)
	assert.Len(t, rooms[0].Members, 1)

	a.Submit(&wire.LeaveRoom{RoomID: "r"})
	require.Eventually(t, func() bool {
		rooms, err := h.Rooms(context.Background())
		return err == nil && len(rooms) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestAddressedForwardingRewritesFrom(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h), connect(t, h)
	join(t, a, "r")
	join(t, b, "r", a)

	b.Submit(&wire.Offer{To: a.ID, Offer: wire.Description{Type: "offer", SDP: "v=0"}})
	offer := expect[*wire.Offer](t, a)
	assert.Equal(t, b.ID, offer.From)
	assert.Empty(t, offer.To)
	assert.Equal(t, "v=0", offer.Offer.SDP)

	a.Submit(&wire.Answer{To: b.ID, Answer: wire.Description{Type: "answer", SDP: "v=0"}})
	assert.Equal(t, a.ID, expect[*wire.Answer](t, b).From)

	a.Submit(&wire.ICECandidate{To: b.ID, Candidate: wire.Candidate{Candidate: "candidate:1"}})
	ice := expect[*wire.ICECandidate](t, b)
	assert.Equal(t, a.ID, ice.From)
	assert.Equal(t, "candidate:1", ice.Candidate.Candidate)
}

func TestAddressedForwardingStaysInRoom(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h), connect(t, h)
	join(t, a, "r1")
	join(t, b, "r2")

	a.Submit(&wire.ICECandidate{To: b.ID, Candidate: wire.Candidate{Candidate: "candidate:1"}})
	a.Submit(&wire.Offer{To: "gone", Offer: wire.Description{Type: "offer", SDP: "v=0"}})
	quiet(t, b)
	quiet(t, a)
}

func TestForceMuteAndMuteAll(t *testing.T) {
	h := startHub(t)
	host, s1, s2 := connect(t, h), connect(t, h), connect(t, h)
	join(t, host, "r")
	join(t, s1, "r", host)
	join(t, s2, "r", host, s1)

	host.Submit(&wire.ForceMute{ID: s1.ID})
	assert.Equal(t, s1.ID, expect[*wire.ForceMute](t, s1).ID)
	quiet(t, s2)

	host.Submit(&wire.MuteAll{RoomID: "r"})
	assert.Equal(t, s1.ID, expect[*wire.ForceMute](t, s1).ID)
	assert.Equal(t, s2.ID, expect[*wire.ForceMute](t, s2).ID)
	quiet(t, host)
}

func TestChatFanOutIncludesSenderInRelayOrder(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h), connect(t, h)
	a.Submit(&wire.ChatJoin{RoomID: "r"})
	b.Submit(&wire.ChatJoin{RoomID: "r"})

	later := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)
	a.Submit(&wire.ChatMessage{RoomID: "r", Message: wire.ChatBody{User: "a", Text: "first", Time: later}})
	b.Submit(&wire.ChatMessage{RoomID: "r", Message: wire.ChatBody{User: "b", Text: "second", Time: earlier}})

	for _, c := range []*Client{a, b} {
		assert.Equal(t, "first", expect[*wire.ChatMessage](t, c).Message.Text)
		assert.Equal(t, "second", expect[*wire.ChatMessage](t, c).Message.Text)
	}
}

func TestChatRequiresJoin(t *testing.T) {
	h := startHub(t)
	a := connect(t, h)
	a.Submit(&wire.ChatMessage{RoomID: "r", Message: wire.ChatBody{User: "a", Text: "hi"}})
	expect[*wire.Error](t, a)

	a.Submit(&wire.ChatJoin{RoomID: "r"})
	a.Submit(&wire.ChatLeave{RoomID: "r"})
	a.Submit(&wire.ChatMessage{RoomID: "r", Message: wire.ChatBody{User: "a", Text: "hi"}})
	expect[*wire.Error](t, a)
}

func TestRaiseHandAndPin(t *testing.T) {
	h := startHub(t)
	a, b := connect(t, h), connect(t, h)
	join(t, a, "r")
	join(t, b, "r", a)
	listener := connect(t, h)
	listener.Submit(&wire.ChatJoin{RoomID: "r"})

	b.Submit(&wire.RaiseHand{RoomID: "r", Raised: true, User: "bob"})
	for _, c := range []*Client{a, b, listener} {
		hand := expect[*wire.RaiseHand](t, c)
		assert.True(t, hand.Raised)
		assert.Equal(t, b.ID, hand.From)
	}

	a.Submit(&wire.Pin{RoomID: "r", ID: b.ID})
	pin := expect[*wire.Pin](t, b)
	assert.Equal(t, a.ID, pin.From)
	assert.Equal(t, b.ID, pin.ID)
	expect[*wire.Pin](t, listener)
	quiet(t, a)
}

func TestCreateRoomIssuesMemorableID(t *testing.T) {
	h := startHub(t)
	a := connect(t, h)
	a.Submit(&wire.CreateRoom{})
	created := expect[*wire.RoomCreated](t, a)
	assert.Regexp(t, `^[a-z]+-[a-z]+-[a-z]+-[a-z]+$`, created.RoomID)
}

func TestUnexpectedAndInvalidEvents(t *testing.T) {
	h := startHub(t)
	a := connect(t, h)

	a.Submit(&wire.Welcome{ID: "spoofed"})
	assert.Contains(t, expect[*wire.Error](t, a).Error, "unexpected event")

	h.submit(&inbound{client: a, err: errors.New("validate join-room: bad")})
	assert.Contains(t, expect[*wire.Error](t, a).Error, "bad")
}

func TestRunShutdownClosesClients(t *testing.T) {
	h := NewHub(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	a := connect(t, h)
	cancel()
	<-stopped

	_, ok := <-a.Send
	assert.False(t, ok)

	_, err := h.Rooms(context.Background())
	assert.Error(t, err)

	late := NewClient(h, nil, wire.JSON)
	h.Register(late)
	_, ok = <-late.Send
	assert.False(t, ok)
}
