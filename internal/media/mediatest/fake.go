// Package mediatest provides in-memory capture tracks and sources.
package mediatest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/liveclass/internal/media"
)

// Track is an in-memory media.Track.
type Track struct {
	mu      sync.Mutex
	id      string
	kind    media.Kind
	enabled bool
	stopped bool
	onEnded []func()
}

func NewTrack(id string, kind media.Kind) *Track {
	return &Track{id: id, kind: kind, enabled: true}
}

func (t *Track) ID() string       { return t.id }
func (t *Track) Kind() media.Kind { return t.kind }

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *Track) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = append(t.onEnded, fn)
}

func (t *Track) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// End simulates capture ending outside the app.
func (t *Track) End() {
	t.mu.Lock()
	hooks := t.onEnded
	t.stopped = true
	t.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (t *Track) Local() webrtc.TrackLocal { return nil }

// Source hands out fake tracks and records every screen capture.
type Source struct {
	mu         sync.Mutex
	UserErr    error
	DisplayErr error
	Screens    []*Track
	Audio      *Track
	Camera     *Track
}

func NewSource() *Source {
	return &Source{
		Audio:  NewTrack("mic", media.KindAudio),
		Camera: NewTrack("camera", media.KindVideo),
	}
}

func (s *Source) UserMedia(ctx context.Context) ([]media.Track, error) {
	if s.UserErr != nil {
		return nil, s.UserErr
	}
	return []media.Track{s.Audio, s.Camera}, nil
}

func (s *Source) DisplayMedia(ctx context.Context) (media.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DisplayErr != nil {
		return nil, s.DisplayErr
	}
	t := NewTrack(fmt.Sprintf("screen-%d", len(s.Screens)+1), media.KindVideo)
	s.Screens = append(s.Screens, t)
	return t, nil
}

// ActiveScreens counts screen captures not yet stopped.
func (s *Source) ActiveScreens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.Screens {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

var ErrDenied = errors.New("permission denied")
