// Package bridge is the pipeline between a video source and a video
// sink: validate the raw frame, convert it to a model-sized RGB image,
// run the configured transform with a snapshot of the shared prompt,
// convert the result back to a publishable frame, and hand it to the
// sink. One bridge drains one source with one goroutine; backpressure
// is the sampling stride plus whatever buffering the transport applies
// between frames, never an internal queue.
package bridge

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"github.com/ivid/go-streamdiff/pkg/frame"
	"github.com/ivid/go-streamdiff/pkg/prompt"
	"github.com/ivid/go-streamdiff/pkg/transform"
)

// Source delivers raw frames in arrival order.
type Source interface {
	// Next blocks until a frame is available, the stream ends, or ctx is
	// done. It returns ErrSourceClosed after the final frame and the
	// context's error on cancellation.
	Next(ctx context.Context) (frame.Raw, error)
}

// Sink accepts processed frames for publication. Publish may fail per
// frame; the bridge logs, counts, and moves on.
type Sink interface {
	Publish(raw frame.Raw) error
}

// Bridge runs the per-frame cycle. Create with New, start with Run.
type Bridge struct {
	cfg         Config
	transformer transform.Transformer
	prompts     *prompt.State
	stats       statsCollector
	logger      *slog.Logger
	preview     func(image.Image)
}

// New builds a bridge around a transform and a shared prompt state.
func New(t transform.Transformer, prompts *prompt.State, cfg Config) (*Bridge, error) {
	if t == nil {
		return nil, ErrNilTransformer
	}
	if prompts == nil {
		return nil, ErrNilPromptState
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		cfg:         cfg,
		transformer: t,
		prompts:     prompts,
		logger:      logger.With("component", "bridge"),
	}, nil
}

// SetPreview registers a hook that receives every transform result.
// The hook runs on the bridge goroutine before encoding; it must
// offload anything slow.
func (b *Bridge) SetPreview(fn func(image.Image)) {
	b.preview = fn
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Stats {
	return b.stats.snapshot()
}

// Run drains the source until it closes or ctx is cancelled, both of
// which end the loop cleanly with a nil error. Per-frame failures are
// logged, counted, and skipped; they never stop the loop. An in-flight
// transform is allowed to finish after cancellation, its result is
// simply not published.
func (b *Bridge) Run(ctx context.Context, source Source, sink Sink) error {
	var index uint64

	for {
		raw, err := source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, ErrSourceClosed):
				b.logger.Info("source closed, bridge stopping", "received", b.stats.snapshot().Received)
				return nil
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return nil
			default:
				return err
			}
		}

		received := b.stats.markReceived()
		sampled := SampleEvery(index, b.cfg.SampleStride)
		index++

		if !sampled {
			if b.cfg.PublishUnsampled {
				if err := sink.Publish(raw); err != nil {
					b.logger.Warn("republish of unsampled frame failed", "error", err)
					b.stats.markPublishFailure()
				} else {
					b.stats.markPublished()
				}
			}
			continue
		}
		b.stats.markSampled()

		img, err := frame.DecodeRGB(raw, b.cfg.DecodeSize)
		if err != nil {
			b.logger.Warn("dropping frame: decode failed",
				"error", err,
				"width", raw.Width,
				"height", raw.Height,
				"bytes", len(raw.Data),
			)
			b.stats.markDecodeFailure()
			continue
		}

		req := transform.Request{
			Image:         img,
			Prompt:        b.prompts.Snapshot(),
			Strength:      b.cfg.Strength,
			Steps:         b.cfg.Steps,
			GuidanceScale: b.cfg.GuidanceScale,
		}
		start := time.Now()
		out, err := b.transformer.Transform(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Warn("dropping frame: transform failed", "error", err)
			b.stats.markTransformFailure()
			continue
		}
		b.stats.markTransform(time.Since(start))
		if ctx.Err() != nil {
			return nil
		}

		if b.preview != nil {
			b.preview(out)
		}

		encoded, err := frame.EncodeI420(out, b.cfg.OutputWidth, b.cfg.OutputHeight)
		if err != nil {
			// Violated size invariant in our own encoder. Loud log, but
			// the session survives.
			b.logger.Error("dropping frame: encode failed", "error", err)
			b.stats.markEncodeFailure()
			continue
		}

		if err := sink.Publish(encoded); err != nil {
			b.logger.Warn("publish failed", "error", err)
			b.stats.markPublishFailure()
			continue
		}
		b.stats.markPublished()

		if b.cfg.LogEvery > 0 && received%b.cfg.LogEvery == 0 {
			s := b.stats.snapshot()
			b.logger.Info("bridge progress",
				"received", s.Received,
				"sampled", s.Sampled,
				"published", s.Published,
				"avg_transform_ms", s.AvgTransform.Milliseconds(),
			)
		}
	}
}
