package bridge

import (
	"fmt"
	"log/slog"

	"github.com/ivid/go-streamdiff/pkg/frame"
)

// Config holds bridge configuration.
type Config struct {
	// SampleStride processes every Nth frame, counted from the first.
	// 1 processes everything; 0 behaves like 1.
	SampleStride uint32

	// DecodeSize is the square edge of the model input in pixels.
	DecodeSize int

	// OutputWidth and OutputHeight set the published resolution.
	OutputWidth  int
	OutputHeight int

	// PublishUnsampled republishes skipped frames untouched instead of
	// dropping them. Off by default: the published feed then only moves
	// when a transformed frame is ready.
	PublishUnsampled bool

	// Per-request transform parameters.
	Strength      float64
	Steps         int
	GuidanceScale float64

	// LogEvery emits a progress line every N received frames. 0 disables.
	LogEvery uint64

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: every 10th frame through a
// turbo-tuned transform, published at 720p.
func DefaultConfig() Config {
	return Config{
		SampleStride:  10,
		DecodeSize:    frame.DefaultDecodeSize,
		OutputWidth:   frame.DefaultEncodeWidth,
		OutputHeight:  frame.DefaultEncodeHeight,
		Strength:      1.0,
		Steps:         10,
		GuidanceScale: 0.0,
		LogEvery:      30,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DecodeSize < 1 {
		return fmt.Errorf("%w: decode size %d", ErrInvalidConfig, c.DecodeSize)
	}
	if c.OutputWidth < 1 || c.OutputHeight < 1 {
		return fmt.Errorf("%w: output %dx%d", ErrInvalidConfig, c.OutputWidth, c.OutputHeight)
	}
	if c.Strength < 0 || c.Strength > 1 {
		return fmt.Errorf("%w: strength %f", ErrInvalidConfig, c.Strength)
	}
	if c.Steps < 1 {
		return fmt.Errorf("%w: steps %d", ErrInvalidConfig, c.Steps)
	}
	if c.GuidanceScale < 0 {
		return fmt.Errorf("%w: guidance scale %f", ErrInvalidConfig, c.GuidanceScale)
	}
	return nil
}
