package chat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/liveclass/internal/classroom"
	"github.com/BioHazard786/liveclass/internal/relay"
	"github.com/BioHazard786/liveclass/internal/signaling"
	"github.com/BioHazard786/liveclass/internal/wire"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recorder struct {
	sent []wire.Message
}

func (r *recorder) Send(msg wire.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

type muter struct{ muted int }

func (m *muter) Mute() bool {
	m.muted++
	return true
}

var (
	teacher = classroom.Identity{ID: "t1", Name: "Ms. Rivera", Role: classroom.RoleTeacher}
	student = classroom.Identity{ID: "s1", Name: "Sam", Role: classroom.RoleStudent}
)

func TestSendMessageDoesNotEchoLocally(t *testing.T) {
	rec := &recorder{}
	m := NewMessenger(rec, student, nil, discard)
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	assert.ErrorIs(t, m.SendMessage("main-room", "hi"), classroom.ErrNotJoined)

	require.NoError(t, m.Join("main-room"))
	require.NoError(t, m.SendMessage("main-room", "hi"))

	require.Len(t, rec.sent, 2)
	assert.Equal(t, &wire.ChatMessage{
		RoomID:  "main-room",
		Message: wire.ChatBody{User: "Sam", Text: "hi", Time: fixed},
	}, rec.sent[1])
	assert.Empty(t, m.Transcript(), "own message waits for the relay echo")

	assert.True(t, m.HandleMessage(rec.sent[1].(*wire.ChatMessage)))
	assert.Equal(t, []Message{{RoomID: "main-room", User: "Sam", Text: "hi", Time: fixed}}, m.Transcript())
}

func TestHandleMessageIgnoresOtherRooms(t *testing.T) {
	m := NewMessenger(&recorder{}, student, nil, discard)
	require.NoError(t, m.Join("a"))
	assert.False(t, m.HandleMessage(&wire.ChatMessage{RoomID: "b", Message: wire.ChatBody{User: "x", Text: "y"}}))
	assert.Empty(t, m.Transcript())
}

func TestToggleRaiseHandSendsEveryToggle(t *testing.T) {
	rec := &recorder{}
	m := NewMessenger(rec, student, nil, discard)
	require.NoError(t, m.Join("r"))

	for i := 0; i < 3; i++ {
		_, err := m.ToggleRaiseHand("r")
		require.NoError(t, err)
	}

	hands := rec.sent[1:]
	require.Len(t, hands, 3)
	assert.True(t, hands[0].(*wire.RaiseHand).Raised)
	assert.False(t, hands[1].(*wire.RaiseHand).Raised)
	assert.True(t, hands[2].(*wire.RaiseHand).Raised)
	assert.Equal(t, "Sam", hands[2].(*wire.RaiseHand).User)
	assert.True(t, m.HandRaised())

	require.NoError(t, m.Leave("r"))
	assert.False(t, m.HandRaised())
}

func TestLeaveClearsTranscript(t *testing.T) {
	m := NewMessenger(&recorder{}, student, nil, discard)
	require.NoError(t, m.Join("r"))
	assert.True(t, m.HandleMessage(&wire.ChatMessage{RoomID: "r", Message: wire.ChatBody{User: "Ada", Text: "hello"}}))
	require.Len(t, m.Transcript(), 1)

	require.NoError(t, m.Leave("r"))
	assert.Empty(t, m.Transcript())
	assert.False(t, m.HandleMessage(&wire.ChatMessage{RoomID: "r", Message: wire.ChatBody{User: "Ada", Text: "late"}}))
	assert.Empty(t, m.Transcript())
}

func TestHostOnlyControls(t *testing.T) {
	rec := &recorder{}
	s := NewMessenger(rec, student, nil, discard)
	assert.ErrorIs(t, s.ForceMute("x"), classroom.ErrNotHost)
	assert.ErrorIs(t, s.MuteAll("r"), classroom.ErrNotHost)
	assert.ErrorIs(t, s.Pin("r", "x"), classroom.ErrNotHost)
	assert.Empty(t, rec.sent)

	h := NewMessenger(rec, teacher, nil, discard)
	require.NoError(t, h.ForceMute("s1"))
	require.NoError(t, h.MuteAll("r"))
	require.NoError(t, h.Pin("r", "s1"))
	assert.Equal(t, []wire.Message{
		&wire.ForceMute{ID: "s1"},
		&wire.MuteAll{RoomID: "r"},
		&wire.Pin{RoomID: "r", ID: "s1"},
	}, rec.sent)
}

func TestHandleForceMuteOnlyForSelf(t *testing.T) {
	mu := &muter{}
	m := NewMessenger(&recorder{}, student, mu, discard)

	assert.False(t, m.HandleForceMute(&wire.ForceMute{ID: "someone-else"}))
	assert.Zero(t, mu.muted)

	assert.True(t, m.HandleForceMute(&wire.ForceMute{ID: "s1"}))
	assert.Equal(t, 1, mu.muted)
}

// Two clients send interleaved messages with send times in reverse order;
// both transcripts follow the relay's delivery order.
func TestTranscriptFollowsRelayOrder(t *testing.T) {
	hub := relay.NewHub(relay.WithLogger(discard))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	type client struct {
		relay *signaling.Loopback
		m     *Messenger
		mu    sync.Mutex
		got   chan struct{}
	}
	newClient := func(name string) *client {
		c := &client{relay: signaling.NewLoopback(hub, wire.JSON, discard), got: make(chan struct{}, 16)}
		c.m = NewMessenger(c.relay, classroom.Identity{ID: c.relay.ID(), Name: name}, nil, discard)
		signaling.Handle(c.relay, wire.EventChatMessage, func(msg *wire.ChatMessage) {
			c.mu.Lock()
			c.m.HandleMessage(msg)
			c.mu.Unlock()
			c.got <- struct{}{}
		})
		return c
	}
	a, b := newClient("ada"), newClient("bo")
	defer a.relay.Close()
	defer b.relay.Close()

	a.mu.Lock()
	require.NoError(t, a.m.Join("r"))
	a.mu.Unlock()
	b.mu.Lock()
	require.NoError(t, b.m.Join("r"))
	b.mu.Unlock()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func(offset time.Duration) func() time.Time {
		return func() time.Time { return base.Add(offset) }
	}

	send := func(c *client, text string, offset time.Duration) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.m.now = clock(offset)
		require.NoError(t, c.m.SendMessage("r", text))
	}
	wait := func(c *client, n int) {
		for i := 0; i < n; i++ {
			select {
			case <-c.got:
			case <-time.After(2 * time.Second):
				t.Fatal("transcript did not fill")
			}
		}
	}

	send(a, "one", 3*time.Minute)
	wait(a, 1)
	send(b, "two", 2*time.Minute)
	wait(a, 1)
	send(a, "three", time.Minute)
	wait(a, 1)
	wait(b, 3)

	texts := func(c *client) []string {
		c.mu.Lock()
		defer c.mu.Unlock()
		var out []string
		for _, msg := range c.m.Transcript() {
			out = append(out, msg.Text)
		}
		return out
	}
	assert.Equal(t, []string{"one", "two", "three"}, texts(a))
	assert.Equal(t, []string{"one", "two", "three"}, texts(b))
}
