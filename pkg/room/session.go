// Package room wires a LiveKit room to the frame bridge: it joins with
// a scoped token, decodes the first subscribed video track, feeds the
// bridge, and publishes the transformed feed back as its own track.
// Prompt updates arrive over the room's data channel.
package room

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/livekit/server-sdk-go/v2/pkg/samplebuilder"
	"github.com/pion/rtcp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ivid/go-streamdiff/internal/log"
	"github.com/ivid/go-streamdiff/pkg/bridge"
	"github.com/ivid/go-streamdiff/pkg/codec"
	"github.com/ivid/go-streamdiff/pkg/codec/vpx"
	"github.com/ivid/go-streamdiff/pkg/frame"
	"github.com/ivid/go-streamdiff/pkg/prompt"
	"github.com/ivid/go-streamdiff/pkg/transform"
)

const (
	// sampleBuilderMaxLate bounds how many packets of reordering the
	// depacketizer absorbs before declaring loss.
	sampleBuilderMaxLate = 200

	// frameQueueDepth is the transport-side buffer toward the bridge.
	// Frames pile up here while a transform is in flight; the oldest
	// are evicted first.
	frameQueueDepth = 4

	// pliInterval throttles keyframe requests while waiting for the
	// first decodable frame.
	pliInterval = time.Second
)

// Session owns one room connection and the pipeline attached to it.
type Session struct {
	cfg     Config
	log     *slog.Logger
	handler Handler
	prompts *prompt.State
	bridge  *bridge.Bridge

	machine stateMachine

	room *lksdk.Room
	pub  *trackPublisher

	frames         chan frame.Raw
	transportDrops atomic.Uint64
	bridging       atomic.Bool
	pumps          sync.WaitGroup

	discOnce     sync.Once
	disconnected chan struct{}
}

// NewSession builds a session around the given transform. The prompt
// state is shared: data-channel updates land in it, and the bridge
// snapshots it per transform.
func NewSession(cfg Config, t transform.Transformer, prompts *prompt.State, h Handler) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b, err := bridge.New(t, prompts, cfg.Bridge)
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg:          cfg,
		log:          log.Component("room"),
		handler:      h,
		prompts:      prompts,
		bridge:       b,
		frames:       make(chan frame.Raw, frameQueueDepth),
		disconnected: make(chan struct{}),
	}, nil
}

// SetPreview forwards each transformed frame to fn before it is
// encoded. See bridge.Bridge.SetPreview.
func (s *Session) SetPreview(fn func(image.Image)) {
	s.bridge.SetPreview(fn)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.machine.current()
}

// Status is a point-in-time view of the session for dashboards.
type Status struct {
	State          string       `json:"state"`
	Room           string       `json:"room"`
	Identity       string       `json:"identity"`
	Prompt         string       `json:"prompt"`
	Bridging       bool         `json:"bridging"`
	TransportDrops uint64       `json:"transport_drops"`
	Bridge         bridge.Stats `json:"bridge"`
}

// Status reports the session's current state and counters.
func (s *Session) Status() Status {
	return Status{
		State:          s.machine.current().String(),
		Room:           s.cfg.Room,
		Identity:       s.cfg.Identity,
		Prompt:         s.prompts.Snapshot(),
		Bridging:       s.bridging.Load(),
		TransportDrops: s.transportDrops.Load(),
		Bridge:         s.bridge.Stats(),
	}
}

// Run connects to the room and drives the bridge until ctx is
// cancelled or the server ends the session. Operator shutdown returns
// nil; a server-side disconnect returns ErrDisconnected. Run may be
// called once.
func (s *Session) Run(ctx context.Context) error {
	token, err := BuildToken(s.cfg.APIKey, s.cfg.APISecret, s.cfg.Room, s.cfg.Identity)
	if err != nil {
		return err
	}

	s.log.Info("connecting", "url", s.cfg.URL, "room", s.cfg.Room, "identity", s.cfg.Identity)
	rm, err := lksdk.ConnectToRoomWithToken(s.cfg.URL, token, s.callbacks(), lksdk.WithAutoSubscribe(true))
	if err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("room: connect: %w", err)
	}
	s.room = rm
	s.setState(StateConnected)

	enc, err := vpx.NewEncoder(s.cfg.OutputWidth, s.cfg.OutputHeight, s.cfg.Bitrate)
	if err != nil {
		rm.Disconnect()
		s.setState(StateDisconnected)
		return err
	}
	outTrack, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeVP8,
		ClockRate: 90000,
	}, lksdk.WithRTCPHandler(func(pkt rtcp.Packet) {
		if _, ok := pkt.(*rtcp.PictureLossIndication); ok {
			enc.ForceKeyframe()
		}
	}))
	if err != nil {
		enc.Close()
		rm.Disconnect()
		s.setState(StateDisconnected)
		return fmt.Errorf("room: create track: %w", err)
	}
	if _, err = rm.LocalParticipant.PublishTrack(outTrack, &lksdk.TrackPublicationOptions{
		Name:        s.cfg.TrackName,
		Source:      livekit.TrackSource_CAMERA,
		VideoWidth:  s.cfg.OutputWidth,
		VideoHeight: s.cfg.OutputHeight,
	}); err != nil {
		enc.Close()
		rm.Disconnect()
		s.setState(StateDisconnected)
		return fmt.Errorf("room: publish track: %w", err)
	}
	s.pub = newTrackPublisher(enc, outTrack)
	s.log.Info("published track", "name", s.cfg.TrackName,
		"width", s.cfg.OutputWidth, "height", s.cfg.OutputHeight)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.bridge.Run(gctx, &frameSource{ch: s.frames}, s.pub)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-s.disconnected:
			return ErrDisconnected
		}
	})
	err = g.Wait()

	rm.Disconnect()
	s.pumps.Wait()
	enc.Close()
	s.setState(StateDisconnected)
	s.log.Info("session closed")
	return err
}

func (s *Session) callbacks() *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		OnDisconnected: s.onDisconnected,
		OnReconnecting: s.onReconnecting,
		OnReconnected:  s.onReconnected,
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			s.log.Info("participant connected", "identity", rp.Identity())
			s.emit(ParticipantJoined{Identity: rp.Identity()})
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			s.log.Info("participant disconnected", "identity", rp.Identity())
			s.emit(ParticipantLeft{Identity: rp.Identity()})
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: s.onTrackSubscribed,
			OnDataPacket:      s.onDataPacket,
		},
	}
}

func (s *Session) onDisconnected() {
	s.setState(StateDisconnected)
	s.discOnce.Do(func() { close(s.disconnected) })
}

func (s *Session) onReconnecting() {
	s.setState(StateReconnecting)
}

func (s *Session) onReconnected() {
	s.setState(StateConnected)
}

func (s *Session) onTrackSubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeVideo {
		s.log.Info("ignoring non-video track",
			"kind", track.Kind().String(), "participant", rp.Identity())
		return
	}
	mime := track.Codec().MimeType
	if !strings.EqualFold(mime, webrtc.MimeTypeVP8) {
		s.log.Warn("skipping track with unsupported codec",
			"mime", mime, "participant", rp.Identity())
		return
	}
	// One track feeds the model at a time; the first subscriber wins
	// and later tracks are picked up when it ends.
	if !s.bridging.CompareAndSwap(false, true) {
		s.log.Info("already bridging a track, skipping",
			"track", pub.SID(), "participant", rp.Identity())
		return
	}
	s.log.Info("bridging video track",
		"track", pub.SID(), "participant", rp.Identity(), "mime", mime)
	s.emit(TrackBridged{TrackID: pub.SID(), Participant: rp.Identity(), MimeType: mime})
	s.pumps.Add(1)
	go s.pumpTrack(track, pub.SID(), rp)
}

// pumpTrack drains one subscribed track: reassemble, decode, queue for
// the bridge. It exits when the track or the connection goes away.
func (s *Session) pumpTrack(track *webrtc.TrackRemote, trackID string, rp *lksdk.RemoteParticipant) {
	defer s.pumps.Done()
	defer func() {
		s.bridging.Store(false)
		s.emit(TrackEnded{TrackID: trackID})
		s.log.Info("track ended", "track", trackID)
	}()

	dec, err := vpx.NewDecoder()
	if err != nil {
		s.log.Error("failed to init decoder", "error", err)
		return
	}
	defer dec.Close()

	sb := samplebuilder.New(sampleBuilderMaxLate, &codecs.VP8Packet{}, track.Codec().ClockRate,
		samplebuilder.WithPacketDroppedHandler(func() {
			rp.WritePLI(track.SSRC())
		}))

	rp.WritePLI(track.SSRC())
	lastPLI := time.Now()
	decoded := false

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		sb.Push(pkt)
		for sample := sb.Pop(); sample != nil; sample = sb.Pop() {
			raw, err := dec.Decode(sample.Data)
			if errors.Is(err, codec.ErrNoFrame) {
				if !decoded && time.Since(lastPLI) >= pliInterval {
					rp.WritePLI(track.SSRC())
					lastPLI = time.Now()
				}
				continue
			}
			if err != nil {
				s.log.Warn("dropping sample: decode failed", "error", err)
				rp.WritePLI(track.SSRC())
				lastPLI = time.Now()
				continue
			}
			decoded = true
			s.enqueue(raw)
		}
	}
}

// enqueue hands a frame to the bridge queue, evicting the oldest entry
// when the bridge is mid-transform and the queue is full. Order of the
// surviving frames is preserved.
func (s *Session) enqueue(raw frame.Raw) {
	select {
	case s.frames <- raw:
		return
	default:
	}
	select {
	case <-s.frames:
		s.transportDrops.Add(1)
	default:
	}
	select {
	case s.frames <- raw:
	default:
		s.transportDrops.Add(1)
	}
}

func (s *Session) onDataPacket(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
	user, ok := data.(*lksdk.UserDataPacket)
	if !ok {
		return
	}
	if s.cfg.PromptTopic != "" && user.Topic != s.cfg.PromptTopic {
		return
	}
	p, err := prompt.ParseUpdate(user.Payload)
	if err != nil {
		s.log.Warn("ignoring malformed prompt update",
			"error", err, "sender", params.SenderIdentity)
		return
	}
	s.prompts.Set(p)
	s.log.Info("prompt updated", "prompt", p, "sender", params.SenderIdentity)
}

func (s *Session) setState(next State) {
	prev, ok := s.machine.transition(next)
	if !ok {
		return
	}
	s.log.Info("session state changed", "from", prev.String(), "to", next.String())
	s.emit(StateChanged{From: prev, To: next})
}

func (s *Session) emit(ev Event) {
	if s.handler != nil {
		s.handler.HandleEvent(ev)
	}
}

// frameSource adapts the session's frame queue to the bridge.
type frameSource struct {
	ch chan frame.Raw
}

func (f *frameSource) Next(ctx context.Context) (frame.Raw, error) {
	select {
	case raw, ok := <-f.ch:
		if !ok {
			return frame.Raw{}, bridge.ErrSourceClosed
		}
		return raw, nil
	case <-ctx.Done():
		return frame.Raw{}, ctx.Err()
	}
}

var (
	_ bridge.Source = (*frameSource)(nil)
	_ bridge.Sink   = (*trackPublisher)(nil)
)
