package peer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/liveclass/internal/media"
	"github.com/BioHazard786/liveclass/internal/wire"
)

const pliInterval = 3 * time.Second

// ICEConfig lists the STUN and TURN servers handed to every connection.
type ICEConfig struct {
	STUN       []string
	TURN       []string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// PionFactory builds pion peer connections.
type PionFactory struct {
	api *webrtc.API
	ice ICEConfig
	log *slog.Logger
}

// NewPionFactory uses api when given, so the capture codecs can be registered
// on its media engine; nil means pion's default codecs.
func NewPionFactory(api *webrtc.API, ice ICEConfig, log *slog.Logger) *PionFactory {
	if api == nil {
		api = webrtc.NewAPI()
	}
	if log == nil {
		log = slog.Default()
	}
	return &PionFactory{api: api, ice: ice, log: log}
}

func (f *PionFactory) configuration() webrtc.Configuration {
	var servers []webrtc.ICEServer
	if len(f.ice.STUN) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: f.ice.STUN})
	}
	if len(f.ice.TURN) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:       f.ice.TURN,
			Username:   f.ice.TURNUser,
			Credential: f.ice.TURNPass,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if len(f.ice.TURN) > 0 && (f.ice.ForceRelay || ShouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}
	return webrtc.Configuration{ICEServers: servers, ICETransportPolicy: policy}
}

// NewConn creates a connection with one sendrecv audio and one sendrecv video
// transceiver, so track substitution always finds a video sender.
func (f *PionFactory) NewConn(peerID string, ev ConnEvents) (Conn, error) {
	pc, err := f.api.NewPeerConnection(f.configuration())
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	c := &pionConn{pc: pc, peerID: peerID, log: f.log.With("peer", peerID), done: make(chan struct{})}
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		tr, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendrecv,
		})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("add %s transceiver: %w", kind, err)
		}
		if kind == webrtc.RTPCodecTypeAudio {
			c.audio = tr.Sender()
		} else {
			c.video = tr.Sender()
		}
		go c.readRTCP(tr.Sender())
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil || ev.OnICECandidate == nil {
			return
		}
		init := cand.ToJSON()
		ev.OnICECandidate(wire.Candidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		})
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if ev.OnStateChange != nil {
			ev.OnStateChange(connectionState(s))
		}
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		kind := media.KindAudio
		if remote.Kind() == webrtc.RTPCodecTypeVideo {
			kind = media.KindVideo
			go c.requestKeyframes(remote)
		}
		go c.drain(remote)
		if ev.OnTrack != nil {
			ev.OnTrack(RemoteTrack{ID: remote.ID(), StreamID: remote.StreamID(), Kind: kind})
		}
	})

	return c, nil
}

type pionConn struct {
	pc     *webrtc.PeerConnection
	peerID string
	audio  *webrtc.RTPSender
	video  *webrtc.RTPSender
	log    *slog.Logger

	once sync.Once
	done chan struct{}
}

func (c *pionConn) CreateOffer() (wire.Description, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return wire.Description{}, fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return wire.Description{}, fmt.Errorf("set local description: %w", err)
	}
	return wire.Description{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (c *pionConn) CreateAnswer(offer wire.Description) (wire.Description, error) {
	// Glare: drop our pending offer and answer theirs.
	if c.pc.SignalingState() == webrtc.SignalingStateHaveLocalOffer {
		if err := c.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}); err != nil {
			return wire.Description{}, fmt.Errorf("rollback local offer: %w", err)
		}
	}

	if err := c.pc.SetRemoteDescription(sessionDescription(offer)); err != nil {
		return wire.Description{}, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return wire.Description{}, fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return wire.Description{}, fmt.Errorf("set local description: %w", err)
	}
	return wire.Description{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (c *pionConn) SetAnswer(answer wire.Description) error {
	if err := c.pc.SetRemoteDescription(sessionDescription(answer)); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (c *pionConn) AddICECandidate(cand wire.Candidate) error {
	return c.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        cand.Candidate,
		SDPMid:           cand.SDPMid,
		SDPMLineIndex:    cand.SDPMLineIndex,
		UsernameFragment: cand.UsernameFragment,
	})
}

// AttachTrack puts t on the pre-created sender of its kind.
func (c *pionConn) AttachTrack(t media.Track) error {
	local := t.Local()
	if local == nil {
		return fmt.Errorf("track %s has no local source", t.ID())
	}
	sender := c.audio
	if t.Kind() == media.KindVideo {
		sender = c.video
	}
	return sender.ReplaceTrack(local)
}

func (c *pionConn) ReplaceVideoTrack(t media.Track) error {
	if t == nil {
		return c.video.ReplaceTrack(nil)
	}
	local := t.Local()
	if local == nil {
		return fmt.Errorf("track %s has no local source", t.ID())
	}
	return c.video.ReplaceTrack(local)
}

func (c *pionConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.pc.Close()
}

// readRTCP drains sender reports so pion's interceptors keep running.
func (c *pionConn) readRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// drain discards inbound media; the terminal shell shows who is sending,
// not the pictures.
func (c *pionConn) drain(remote *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := remote.Read(buf); err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Debug("inbound track ended", "track", remote.ID(), "error", err)
			}
			return
		}
	}
}

// requestKeyframes asks the sender for a keyframe as soon as the track is
// bound and then periodically, so a late joiner gets a picture quickly.
func (c *pionConn) requestKeyframes(remote *webrtc.TrackRemote) {
	ticker := time.NewTicker(pliInterval)
	defer ticker.Stop()

	for {
		err := c.pc.WriteRTCP([]rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(remote.SSRC())},
		})
		if err != nil {
			if errors.Is(err, io.ErrClosedPipe) {
				return
			}
			c.log.Debug("failed to send PLI", "error", err)
		}

		select {
		case <-ticker.C:
		case <-c.done:
			return
		}
	}
}

func sessionDescription(d wire.Description) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(d.Type), SDP: d.SDP}
}

func connectionState(s webrtc.PeerConnectionState) ConnectionState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return ConnectionConnecting
	case webrtc.PeerConnectionStateConnected:
		return ConnectionConnected
	case webrtc.PeerConnectionStateDisconnected:
		return ConnectionDisconnected
	case webrtc.PeerConnectionStateFailed:
		return ConnectionFailed
	case webrtc.PeerConnectionStateClosed:
		return ConnectionClosed
	default:
		return ConnectionNew
	}
}
