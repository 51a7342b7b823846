package diffusion

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/ivid/go-streamdiff/pkg/transform"
)

// Transformer adapts the img2img client to the bridge's transform
// interface. The underlying model pipeline handles one generation at a
// time, so Transform serializes with a mutex; a second caller blocks
// until the first generation finishes.
type Transformer struct {
	client *Client
	mu     sync.Mutex // Protects inference
}

// NewTransformer builds the transformer and its client.
func NewTransformer(opts ...Option) (*Transformer, error) {
	client, err := NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &Transformer{client: client}, nil
}

// NewTransformerWithClient wraps an existing client.
func NewTransformerWithClient(client *Client) *Transformer {
	return &Transformer{client: client}
}

// Transform runs one generation. Any failure is reported as a model
// failure; the bridge drops the frame and continues.
func (t *Transformer) Transform(ctx context.Context, req transform.Request) (image.Image, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := t.client.Img2Img(ctx, Img2ImgRequest{
		Image:         req.Image,
		Prompt:        req.Prompt,
		Strength:      req.Strength,
		Steps:         req.Steps,
		GuidanceScale: req.GuidanceScale,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transform.ErrModelFailure, err)
	}
	return out, nil
}

// Close releases the underlying client.
func (t *Transformer) Close() error {
	return t.client.Close()
}

// Verify Transformer implements the transform interface at compile time.
var _ transform.Transformer = (*Transformer)(nil)
