// Package capture acquires camera, microphone and screen through
// pion/mediadevices and exposes them as media tracks.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"     // registers the camera adapter
	_ "github.com/pion/mediadevices/pkg/driver/microphone" // registers the microphone adapter
	_ "github.com/pion/mediadevices/pkg/driver/screen"     // registers the screen adapter
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/liveclass/internal/media"
)

const mtu = 1200

// Options tunes the encoders.
type Options struct {
	Width, Height int
	VideoBitRate  int
	AudioBitRate  int
}

// Source captures local devices.
type Source struct {
	opts     Options
	selector *mediadevices.CodecSelector
	log      *slog.Logger
}

// NewSource builds the VP8 and Opus encoders.
func NewSource(opts Options, log *slog.Logger) (*Source, error) {
	if log == nil {
		log = slog.Default()
	}
	if opts.Width == 0 {
		opts.Width, opts.Height = 640, 480
	}
	if opts.VideoBitRate == 0 {
		opts.VideoBitRate = 500_000
	}
	if opts.AudioBitRate == 0 {
		opts.AudioBitRate = 32_000
	}

	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("create VP8 params: %w", err)
	}
	vpxParams.BitRate = opts.VideoBitRate
	vpxParams.KeyFrameInterval = 60

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("create Opus params: %w", err)
	}
	opusParams.BitRate = opts.AudioBitRate
	opusParams.Latency = opus.Latency20ms

	return &Source{
		opts: opts,
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
		log: log,
	}, nil
}

// API returns a pion API whose media engine carries the capture codecs, for
// the peer connection factory.
func (s *Source) API() *webrtc.API {
	engine := &webrtc.MediaEngine{}
	s.selector.Populate(engine)
	return webrtc.NewAPI(webrtc.WithMediaEngine(engine))
}

func (s *Source) UserMedia(ctx context.Context) ([]media.Track, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.Width = prop.Int(s.opts.Width)
			c.Height = prop.Int(s.opts.Height)
		},
		Audio: func(c *mediadevices.MediaTrackConstraints) {},
		Codec: s.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("get user media: %w", err)
	}
	return s.wrap(ctx, stream.GetTracks(), "camera")
}

func (s *Source) DisplayMedia(ctx context.Context) (media.Track, error) {
	stream, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {},
		Codec: s.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("get display media: %w", err)
	}
	tracks, err := s.wrap(ctx, stream.GetVideoTracks(), "screen")
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, errors.New("get display media: no video track")
	}
	for _, extra := range tracks[1:] {
		extra.Stop()
	}
	return tracks[0], nil
}

func (s *Source) wrap(ctx context.Context, srcs []mediadevices.Track, streamID string) ([]media.Track, error) {
	out := make([]media.Track, 0, len(srcs))
	for _, src := range srcs {
		t, err := newTrack(ctx, src, streamID, s.log)
		if err != nil {
			for _, done := range out {
				done.Stop()
			}
			src.Close()
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// track pumps encoded RTP from a capture track into a shared local track.
// Packets read while disabled are dropped, which mutes every connection at
// once without renegotiating.
type track struct {
	src     mediadevices.Track
	local   *webrtc.TrackLocalStaticRTP
	kind    media.Kind
	enabled atomic.Bool
	reader  mediadevices.RTPReadCloser
	log     *slog.Logger

	stopOnce sync.Once
	cancel   context.CancelFunc
}

func newTrack(ctx context.Context, src mediadevices.Track, streamID string, log *slog.Logger) (*track, error) {
	kind := media.KindAudio
	if src.Kind() == webrtc.RTPCodecTypeVideo {
		kind = media.KindVideo
	}

	codec, err := codecFor(kind)
	if err != nil {
		return nil, err
	}
	local, err := webrtc.NewTrackLocalStaticRTP(codec, src.ID(), streamID)
	if err != nil {
		return nil, fmt.Errorf("create local %s track: %w", kind, err)
	}

	// NewRTPReader wants the codec name, the part after the slash of the MIME type.
	name := codec.MimeType[strings.Index(codec.MimeType, "/")+1:]
	reader, err := src.NewRTPReader(name, 0, mtu)
	if err != nil {
		return nil, fmt.Errorf("create RTP reader: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &track{src: src, local: local, kind: kind, reader: reader, log: log, cancel: cancel}
	t.enabled.Store(true)
	go t.pump(ctx)
	return t, nil
}

func codecFor(kind media.Kind) (webrtc.RTPCodecCapability, error) {
	switch kind {
	case media.KindAudio:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, nil
	case media.KindVideo:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}, nil
	default:
		return webrtc.RTPCodecCapability{}, fmt.Errorf("unsupported track kind %q", kind)
	}
}

func (t *track) pump(ctx context.Context) {
	defer t.reader.Close()
	for {
		if ctx.Err() != nil {
			return
		}
		pkts, release, err := t.reader.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.log.Debug("capture read ended", "track", t.src.ID(), "error", err)
			}
			return
		}
		if t.enabled.Load() {
			for _, pkt := range pkts {
				if err := t.local.WriteRTP(pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
					t.log.Debug("capture write failed", "track", t.src.ID(), "error", err)
				}
			}
		}
		if release != nil {
			release()
		}
	}
}

func (t *track) ID() string               { return t.src.ID() }
func (t *track) Kind() media.Kind         { return t.kind }
func (t *track) Enabled() bool            { return t.enabled.Load() }
func (t *track) SetEnabled(enabled bool)  { t.enabled.Store(enabled) }
func (t *track) Local() webrtc.TrackLocal { return t.local }

func (t *track) OnEnded(fn func()) {
	t.src.OnEnded(func(error) { fn() })
}

func (t *track) Stop() {
	t.stopOnce.Do(func() {
		t.cancel()
		if err := t.src.Close(); err != nil {
			t.log.Debug("failed to close capture track", "track", t.src.ID(), "error", err)
		}
	})
}
