package room

import (
	"fmt"

	"github.com/ivid/go-streamdiff/pkg/bridge"
	"github.com/ivid/go-streamdiff/pkg/frame"
)

// DefaultTrackName is the name of the published video track.
const DefaultTrackName = "echo"

// Config holds session configuration.
type Config struct {
	// URL is the signalling endpoint, e.g. ws://localhost:7880.
	URL       string
	APIKey    string
	APISecret string
	Room      string
	Identity  string

	// TrackName names the outbound video track.
	TrackName string

	// OutputWidth and OutputHeight set the outbound track resolution.
	// They must match the bridge's encode resolution.
	OutputWidth  int
	OutputHeight int

	// Bitrate is the outbound VP8 target in bits per second.
	// Zero selects the encoder default.
	Bitrate int

	// PromptTopic restricts prompt updates to data packets published on
	// this topic. Empty accepts updates on any topic.
	PromptTopic string

	Bridge bridge.Config
}

// DefaultConfig returns defaults for everything except the connection
// parameters, which have no sensible defaults and must be filled in.
func DefaultConfig() Config {
	return Config{
		TrackName:    DefaultTrackName,
		OutputWidth:  frame.DefaultEncodeWidth,
		OutputHeight: frame.DefaultEncodeHeight,
		Bridge:       bridge.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: missing server URL", ErrInvalidConfig)
	}
	if c.APIKey == "" || c.APISecret == "" {
		return fmt.Errorf("%w: missing API credentials", ErrInvalidConfig)
	}
	if c.Room == "" {
		return fmt.Errorf("%w: missing room name", ErrInvalidConfig)
	}
	if c.Identity == "" {
		return fmt.Errorf("%w: missing participant identity", ErrInvalidConfig)
	}
	if c.TrackName == "" {
		return fmt.Errorf("%w: missing track name", ErrInvalidConfig)
	}
	if c.OutputWidth < 1 || c.OutputHeight < 1 {
		return fmt.Errorf("%w: output %dx%d", ErrInvalidConfig, c.OutputWidth, c.OutputHeight)
	}
	if c.OutputWidth != c.Bridge.OutputWidth || c.OutputHeight != c.Bridge.OutputHeight {
		return fmt.Errorf("%w: track resolution %dx%d does not match bridge output %dx%d",
			ErrInvalidConfig, c.OutputWidth, c.OutputHeight, c.Bridge.OutputWidth, c.Bridge.OutputHeight)
	}
	if err := c.Bridge.Validate(); err != nil {
		return err
	}
	return nil
}
