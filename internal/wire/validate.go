package wire

import (
	"github.com/go-playground/validator/v10"

	"github.com/BioHazard786/liveclass/internal/classroom"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode turns one frame into its typed payload. Unknown events and payloads
// failing validation never reach a handler.
func Decode(c Codec, data []byte) (Message, error) {
	ev, raw, err := c.DecodeFrame(data)
	if err != nil {
		return nil, classroom.WrapError("decode frame", classroom.ErrInvalidEvent, err.Error())
	}
	newMsg, ok := registry[ev]
	if !ok {
		return nil, classroom.WrapError("decode frame", classroom.ErrUnknownEvent, string(ev))
	}

	msg := newMsg()
	if len(raw) > 0 {
		if err := c.DecodePayload(raw, msg); err != nil {
			return nil, classroom.WrapError("decode "+string(ev), classroom.ErrInvalidEvent, err.Error())
		}
	}
	if err := Validate(msg); err != nil {
		return nil, classroom.WrapError("validate "+string(ev), classroom.ErrInvalidEvent, err.Error())
	}
	return msg, nil
}

// Validate checks msg against its struct tags.
func Validate(msg Message) error {
	switch m := msg.(type) {
	case *Peers:
		return validate.Var([]string(*m), "dive,required")
	case *PeerListUpdate:
		return validate.Var([]string(*m), "dive,required")
	case *Roster:
		for i := range *m {
			if err := validate.Struct(&(*m)[i]); err != nil {
				return err
			}
		}
		return nil
	default:
		return validate.Struct(msg)
	}
}
