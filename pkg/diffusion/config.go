package diffusion

import (
	"log/slog"
	"time"
)

// Config holds img2img client configuration.
type Config struct {
	// Connection
	BaseURL string // Inference server base URL, e.g. "http://127.0.0.1:7860"

	// Checkpoint override. When set it is passed to the server per
	// request; when empty the server's loaded model is used.
	Model string

	// Generation defaults, applied when a request leaves them zero.
	Prompt         string
	NegativePrompt string
	Strength       float64 // Denoising strength in [0,1]
	Steps          int     // Inference steps, >= 1
	GuidanceScale  float64 // Classifier-free guidance, >= 0
	Size           int     // Square input/output edge in pixels

	// Timeouts
	Timeout time.Duration

	// Retry configuration. Zero retries by default: a frame that missed
	// its moment is worthless, the bridge just drops it.
	MaxRetries int
	RetryDelay time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the inference server base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithModel sets the checkpoint override.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithPrompt sets the default prompt.
func WithPrompt(p string) Option {
	return func(c *Config) { c.Prompt = p }
}

// WithNegativePrompt sets the default negative prompt.
func WithNegativePrompt(p string) Option {
	return func(c *Config) { c.NegativePrompt = p }
}

// WithStrength sets the default denoising strength.
func WithStrength(s float64) Option {
	return func(c *Config) { c.Strength = s }
}

// WithSteps sets the default number of inference steps.
func WithSteps(n int) Option {
	return func(c *Config) { c.Steps = n }
}

// WithGuidanceScale sets the default guidance scale.
func WithGuidanceScale(g float64) Option {
	return func(c *Config) { c.GuidanceScale = g }
}

// WithSize sets the square generation size.
func WithSize(px int) Option {
	return func(c *Config) { c.Size = px }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults tuned for a turbo-class checkpoint:
// full denoising, few steps, guidance disabled.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "http://127.0.0.1:7860",
		Strength:      1.0,
		Steps:         10,
		GuidanceScale: 0.0,
		Size:          512,
		Timeout:       120 * time.Second,
		MaxRetries:    0,
		RetryDelay:    100 * time.Millisecond,
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present and sane.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	if c.Strength < 0 || c.Strength > 1 {
		return ErrInvalidStrength
	}
	if c.Steps < 1 {
		return ErrInvalidSteps
	}
	if c.GuidanceScale < 0 {
		return ErrInvalidGuidance
	}
	if c.Size < 1 {
		return ErrInvalidSize
	}
	return nil
}
