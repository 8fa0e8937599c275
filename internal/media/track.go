// Package media owns the participant's local capture: microphone and camera
// enable state and screen-share substitution of the outbound video.
package media

import (
	"context"

	"github.com/pion/webrtc/v4"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Track is one local capture track shared by every peer connection.
// Disabling it silences the track without renegotiation.
type Track interface {
	ID() string
	Kind() Kind
	Enabled() bool
	SetEnabled(enabled bool)
	// OnEnded registers fn to run when capture ends outside the app, e.g. the
	// OS "stop sharing" button. fn may run on any goroutine.
	OnEnded(fn func())
	Stop()
	// Local is what gets bound to a peer connection sender; nil for tracks
	// that are never sent over pion.
	Local() webrtc.TrackLocal
}

// Source acquires capture tracks.
type Source interface {
	// UserMedia returns the microphone and camera tracks.
	UserMedia(ctx context.Context) ([]Track, error)
	// DisplayMedia returns a screen capture video track.
	DisplayMedia(ctx context.Context) (Track, error)
}

// TrackReplacer swaps the outbound video of every live connection in place.
type TrackReplacer interface {
	ReplaceVideoTrack(track Track)
}

// State is the local media state shown to the user.
type State struct {
	MicEnabled      bool
	CameraEnabled   bool
	ScreenSharing   bool
	OutboundVideoID string
	// ReceiveOnly is set when capture failed and nothing is sent.
	ReceiveOnly bool
}
