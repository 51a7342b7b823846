package room

import (
	"time"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/ivid/go-streamdiff/pkg/codec"
	"github.com/ivid/go-streamdiff/pkg/frame"
)

const (
	// defaultFrameDuration seeds the RTP clock before the first
	// inter-frame gap is known.
	defaultFrameDuration = 33 * time.Millisecond

	// maxFrameDuration caps the gap after long stalls so the receiver's
	// jitter buffer does not see a single multi-second frame.
	maxFrameDuration = time.Second
)

// sampleWriter is the slice of lksdk.LocalSampleTrack the publisher
// needs.
type sampleWriter interface {
	WriteSample(sample media.Sample, opts *lksdk.SampleWriteOptions) error
}

// trackPublisher encodes bridge output and writes it to the published
// track. Output pacing follows the wall clock: the bridge emits frames
// whenever the transform finishes, not on a fixed tick.
type trackPublisher struct {
	enc   codec.VideoEncoder
	track sampleWriter
	last  time.Time
}

func newTrackPublisher(enc codec.VideoEncoder, track sampleWriter) *trackPublisher {
	return &trackPublisher{enc: enc, track: track}
}

// Publish encodes one frame and hands it to the track.
func (p *trackPublisher) Publish(raw frame.Raw) error {
	b, err := p.enc.Encode(raw)
	if err != nil {
		return err
	}
	now := time.Now()
	d := defaultFrameDuration
	if !p.last.IsZero() {
		if since := now.Sub(p.last); since > 0 {
			d = since
		}
		if d > maxFrameDuration {
			d = maxFrameDuration
		}
	}
	p.last = now
	return p.track.WriteSample(media.Sample{Data: b, Duration: d}, nil)
}
