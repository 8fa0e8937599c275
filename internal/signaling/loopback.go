package signaling

import (
	"log/slog"
	"sync"

	"github.com/BioHazard786/liveclass/internal/classroom"
	"github.com/BioHazard786/liveclass/internal/relay"
	"github.com/BioHazard786/liveclass/internal/wire"
)

// Loopback attaches to a hub in the same process. Every event still goes
// through the codec and boundary validation, so it behaves like a websocket
// client without the network.
type Loopback struct {
	dispatcher

	client *relay.Client
	hub    *relay.Hub
	codec  wire.Codec
	log    *slog.Logger

	once    sync.Once
	stopped chan struct{}
}

// NewLoopback registers a new in-process client with hub.
func NewLoopback(hub *relay.Hub, codec wire.Codec, log *slog.Logger) *Loopback {
	if codec == nil {
		codec = wire.JSON
	}
	if log == nil {
		log = slog.Default()
	}
	l := &Loopback{
		client:  relay.NewClient(hub, nil, codec),
		hub:     hub,
		codec:   codec,
		log:     log,
		stopped: make(chan struct{}),
	}
	hub.Register(l.client)
	go l.pump()
	return l
}

func (l *Loopback) ID() string {
	return l.client.ID
}

func (l *Loopback) Send(msg wire.Message) error {
	select {
	case <-l.stopped:
		return classroom.NewError("send "+string(msg.Event()), classroom.ErrRelayClosed)
	default:
	}

	decoded, err := l.roundTrip(msg)
	if err != nil {
		return err
	}
	l.client.Submit(decoded)
	return nil
}

// Close unregisters from the hub and waits for queued events to be handled.
func (l *Loopback) Close() error {
	l.once.Do(func() { l.hub.Unregister(l.client) })
	<-l.stopped
	return nil
}

func (l *Loopback) pump() {
	defer close(l.stopped)
	for msg := range l.client.Send {
		decoded, err := l.roundTrip(msg)
		if err != nil {
			l.log.Warn("dropping relay frame", "error", err)
			continue
		}
		l.dispatch(decoded)
	}
}

func (l *Loopback) roundTrip(msg wire.Message) (wire.Message, error) {
	data, err := l.codec.Encode(msg)
	if err != nil {
		return nil, classroom.WrapError("encode "+string(msg.Event()), classroom.ErrInvalidEvent, err.Error())
	}
	return wire.Decode(l.codec, data)
}
