package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec frames a Message for the websocket. The JSON codec produces text
// frames, the msgpack codec binary ones; both carry {event, payload}.
type Codec interface {
	Name() string
	Binary() bool
	Encode(msg Message) ([]byte, error)
	DecodeFrame(data []byte) (Event, []byte, error)
	DecodePayload(raw []byte, v any) error
}

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// CodecByName returns the codec registered under name; an empty name selects
// JSON.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", CodecJSON:
		return JSON, nil
	case CodecMsgpack:
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

type jsonFrame struct {
	Event   Event           `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return CodecJSON }
func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonFrame{Event: msg.Event(), Payload: payload})
}

func (jsonCodec) DecodeFrame(data []byte) (Event, []byte, error) {
	var f jsonFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return "", nil, err
	}
	return f.Event, f.Payload, nil
}

func (jsonCodec) DecodePayload(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}

type msgpackFrame struct {
	Event   Event              `msgpack:"event"`
	Payload msgpack.RawMessage `msgpack:"payload,omitempty"`
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return CodecMsgpack }
func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Encode(msg Message) ([]byte, error) {
	payload, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(msgpackFrame{Event: msg.Event(), Payload: payload})
}

func (msgpackCodec) DecodeFrame(data []byte) (Event, []byte, error) {
	var f msgpackFrame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return "", nil, err
	}
	return f.Event, f.Payload, nil
}

func (msgpackCodec) DecodePayload(raw []byte, v any) error {
	return msgpack.Unmarshal(raw, v)
}
