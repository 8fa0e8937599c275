package wire

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/liveclass/internal/classroom"
)

func TestCodecByName(t *testing.T) {
	c, err := CodecByName("")
	require.NoError(t, err)
	assert.Equal(t, CodecJSON, c.Name())

	c, err = CodecByName("MsgPack")
	require.NoError(t, err)
	assert.True(t, c.Binary())

	_, err = CodecByName("protobuf")
	assert.Error(t, err)
}

func TestJSONFrameShape(t *testing.T) {
	data, err := JSON.Encode(&Peers{"A", "B"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"peers","payload":["A","B"]}`, string(data))

	data, err = JSON.Encode(&Offer{To: "B", Offer: Description{Type: "offer", SDP: "v=0"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"offer","payload":{"to":"B","offer":{"type":"offer","sdp":"v=0"}}}`, string(data))
}

func TestDecodeDispatchesByEvent(t *testing.T) {
	sent := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	for _, c := range []Codec{JSON, Msgpack} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Encode(&ChatMessage{
				RoomID:  "main-room",
				Message: ChatBody{User: "Ada", Text: "hello", Time: sent},
			})
			require.NoError(t, err)

			msg, err := Decode(c, data)
			require.NoError(t, err)
			chat, ok := msg.(*ChatMessage)
			require.True(t, ok, "got %T", msg)
			assert.Equal(t, "main-room", chat.RoomID)
			assert.Equal(t, "hello", chat.Message.Text)
			assert.True(t, sent.Equal(chat.Message.Time))
		})
	}
}

func TestDecodeRejectsUnknownEvent(t *testing.T) {
	_, err := Decode(JSON, []byte(`{"event":"self-destruct","payload":{}}`))
	assert.True(t, errors.Is(err, classroom.ErrUnknownEvent))
}

func TestDecodeRejectsInvalidPayloads(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"join without room", `{"event":"join-room","payload":{}}`},
		{"offer without address", `{"event":"offer","payload":{"offer":{"type":"offer","sdp":"v=0"}}}`},
		{"offer with bad sdp type", `{"event":"offer","payload":{"to":"B","offer":{"type":"bogus","sdp":"v=0"}}}`},
		{"empty candidate", `{"event":"ice-candidate","payload":{"to":"B","candidate":{"candidate":""}}}`},
		{"blank peer id", `{"event":"peers","payload":["A",""]}`},
		{"roster entry without id", `{"event":"roster","payload":[{"user":"Ada"}]}`},
		{"payload of wrong shape", `{"event":"peer-left","payload":["A"]}`},
		{"chat without text", `{"event":"chat-message","payload":{"roomId":"r","message":{"user":"Ada","text":""}}}`},
		{"unknown role", `{"event":"join-room","payload":{"roomId":"r","role":"principal"}}`},
		{"not a frame", `hello`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(JSON, []byte(tt.frame))
			assert.True(t, errors.Is(err, classroom.ErrInvalidEvent), "got %v", err)
		})
	}
}

func TestDecodeAcceptsEitherAddress(t *testing.T) {
	msg, err := Decode(JSON, []byte(`{"event":"answer","payload":{"from":"A","answer":{"type":"answer","sdp":"v=0"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "A", msg.(*Answer).From)

	msg, err = Decode(JSON, []byte(`{"event":"create-room"}`))
	require.NoError(t, err)
	assert.Equal(t, EventCreateRoom, msg.Event())
}

func TestEveryRegisteredEventReportsItsName(t *testing.T) {
	for ev, newMsg := range registry {
		assert.Equal(t, ev, newMsg().Event())
		assert.True(t, Known(ev))
	}
	assert.False(t, Known("nope"))
}
