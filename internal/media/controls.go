package media

import (
	"context"
	"log/slog"

	"github.com/BioHazard786/liveclass/internal/classroom"
)

// Controls is the media control surface. It is not safe for concurrent use;
// the session loop owns it. Asynchronous capture events come back through
// post.
type Controls struct {
	source   Source
	replacer TrackReplacer
	post     func(func())
	log      *slog.Logger

	audio  []Track
	camera Track
	screen Track
	state  State
}

// NewControls wires a control surface. post schedules work on the owning
// loop; nil runs it inline.
func NewControls(source Source, replacer TrackReplacer, post func(func()), log *slog.Logger) *Controls {
	if post == nil {
		post = func(fn func()) { fn() }
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controls{source: source, replacer: replacer, post: post, log: log}
}

// SetReplacer attaches the connection manager once it exists.
func (c *Controls) SetReplacer(r TrackReplacer) {
	c.replacer = r
}

// Start acquires microphone and camera. A failure leaves the session
// receive-only and is reported but not fatal.
func (c *Controls) Start(ctx context.Context) error {
	if c.source == nil {
		c.state.ReceiveOnly = true
		return classroom.WrapError("start media", classroom.ErrMediaUnavailable, "no capture source")
	}

	tracks, err := c.source.UserMedia(ctx)
	if err != nil {
		c.state.ReceiveOnly = true
		c.log.Warn("media acquisition failed, continuing receive-only", "error", err)
		return classroom.WrapError("start media", classroom.ErrMediaUnavailable, err.Error())
	}

	for _, t := range tracks {
		switch t.Kind() {
		case KindAudio:
			c.audio = append(c.audio, t)
		case KindVideo:
			if c.camera == nil {
				c.camera = t
				continue
			}
			t.Stop()
		}
	}
	c.state.MicEnabled = len(c.audio) > 0
	c.state.CameraEnabled = c.camera != nil
	c.state.ReceiveOnly = len(c.audio) == 0 && c.camera == nil
	if c.camera != nil {
		c.state.OutboundVideoID = c.camera.ID()
	}
	c.log.Info("media started", "audio", len(c.audio), "camera", c.camera != nil)
	return nil
}

// ToggleMic flips the microphone and reports the new state. Without a
// microphone it stays off.
func (c *Controls) ToggleMic() bool {
	if len(c.audio) == 0 {
		return false
	}
	c.setMic(!c.state.MicEnabled)
	return c.state.MicEnabled
}

// Mute disables every audio track. It reports whether anything changed.
func (c *Controls) Mute() bool {
	if !c.state.MicEnabled {
		return false
	}
	c.setMic(false)
	return true
}

func (c *Controls) setMic(enabled bool) {
	c.state.MicEnabled = enabled
	for _, t := range c.audio {
		t.SetEnabled(enabled)
	}
}

// ToggleCamera flips the camera and reports the new state. The screen track,
// if any, is unaffected.
func (c *Controls) ToggleCamera() bool {
	if c.camera == nil {
		return false
	}
	c.state.CameraEnabled = !c.state.CameraEnabled
	c.camera.SetEnabled(c.state.CameraEnabled)
	return c.state.CameraEnabled
}

// StartScreenShare captures the screen and puts it in place of the camera on
// every connection. Calling it while sharing is a no-op.
func (c *Controls) StartScreenShare(ctx context.Context) error {
	if c.state.ScreenSharing {
		return nil
	}
	if c.source == nil {
		return classroom.WrapError("start screen share", classroom.ErrMediaUnavailable, "no capture source")
	}

	screen, err := c.source.DisplayMedia(ctx)
	if err != nil {
		c.log.Warn("screen capture failed", "error", err)
		return classroom.WrapError("start screen share", classroom.ErrMediaUnavailable, err.Error())
	}

	c.screen = screen
	c.state.ScreenSharing = true
	c.state.OutboundVideoID = screen.ID()
	screen.OnEnded(func() {
		c.post(func() { c.stopShare(screen) })
	})

	if c.replacer != nil {
		c.replacer.ReplaceVideoTrack(screen)
	}
	c.log.Info("screen share started", "track", screen.ID())
	return nil
}

// StopScreenShare reverts every connection to the camera. Calling it while
// not sharing is a no-op.
func (c *Controls) StopScreenShare() {
	if c.screen != nil {
		c.stopShare(c.screen)
	}
}

// stopShare only acts if screen is still the active share, so a late end
// event from an earlier capture cannot stop a newer one.
func (c *Controls) stopShare(screen Track) {
	if !c.state.ScreenSharing || c.screen != screen {
		return
	}

	if c.replacer != nil {
		c.replacer.ReplaceVideoTrack(c.camera)
	}
	c.screen = nil
	c.state.ScreenSharing = false
	c.state.OutboundVideoID = ""
	if c.camera != nil {
		c.state.OutboundVideoID = c.camera.ID()
	}
	screen.Stop()
	c.log.Info("screen share stopped", "track", screen.ID())
}

// OutboundTracks lists what a new connection should send: audio plus the
// screen while sharing, otherwise the camera.
func (c *Controls) OutboundTracks() []Track {
	out := make([]Track, 0, len(c.audio)+1)
	out = append(out, c.audio...)
	switch {
	case c.screen != nil:
		out = append(out, c.screen)
	case c.camera != nil:
		out = append(out, c.camera)
	}
	return out
}

func (c *Controls) State() State {
	return c.state
}

// Stop releases every capture track.
func (c *Controls) Stop() {
	if c.screen != nil {
		c.screen.Stop()
		c.screen = nil
	}
	for _, t := range c.audio {
		t.Stop()
	}
	if c.camera != nil {
		c.camera.Stop()
	}
	c.audio = nil
	c.camera = nil
	c.state = State{ReceiveOnly: c.state.ReceiveOnly}
}
