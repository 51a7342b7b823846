// Package diffusion talks to a Stable Diffusion web UI style img2img
// endpoint and adapts it to the bridge's frame transform interface.
// Images travel as base64 PNG in JSON, the wire shape the sdapi/v1
// surface defines.
package diffusion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	_ "image/jpeg" // some servers answer JPEG

	"github.com/ivid/go-streamdiff/internal/httpc"
)

// Client is the HTTP img2img client.
type Client struct {
	baseURL string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a new img2img client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg,
		http:    httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "diffusion.client"),
	}, nil
}

// Img2ImgRequest describes one generation. Zero values fall back to
// the client's configured defaults.
type Img2ImgRequest struct {
	Image          image.Image
	Prompt         string
	NegativePrompt string
	Strength       float64
	Steps          int
	GuidanceScale  float64
}

// img2imgPayload is the sdapi/v1/img2img request body.
type img2imgPayload struct {
	InitImages        []string          `json:"init_images"`
	Prompt            string            `json:"prompt"`
	NegativePrompt    string            `json:"negative_prompt,omitempty"`
	DenoisingStrength float64           `json:"denoising_strength"`
	CFGScale          float64           `json:"cfg_scale"`
	Steps             int               `json:"steps"`
	Width             int               `json:"width"`
	Height            int               `json:"height"`
	OverrideSettings  map[string]string `json:"override_settings,omitempty"`
}

// img2imgResponse is the sdapi/v1/img2img response body.
type img2imgResponse struct {
	Images []string `json:"images"`
}

// Img2Img restyles one image. The call blocks for the full generation;
// the caller decides how long a frame is worth waiting for via ctx.
func (c *Client) Img2Img(ctx context.Context, req Img2ImgRequest) (image.Image, error) {
	start := time.Now()

	b64, err := encodePNGBase64(req.Image)
	if err != nil {
		return nil, wrapErr("encode input", err)
	}

	payload := img2imgPayload{
		InitImages:        []string{b64},
		Prompt:            req.Prompt,
		DenoisingStrength: req.Strength,
		CFGScale:          req.GuidanceScale,
		Steps:             req.Steps,
		Width:             c.config.Size,
		Height:            c.config.Size,
		NegativePrompt:    req.NegativePrompt,
	}
	if payload.Prompt == "" {
		payload.Prompt = c.config.Prompt
	}
	if payload.NegativePrompt == "" {
		payload.NegativePrompt = c.config.NegativePrompt
	}
	if payload.DenoisingStrength == 0 {
		payload.DenoisingStrength = c.config.Strength
	}
	if payload.CFGScale == 0 {
		payload.CFGScale = c.config.GuidanceScale
	}
	if payload.Steps == 0 {
		payload.Steps = c.config.Steps
	}
	if c.config.Model != "" {
		payload.OverrideSettings = map[string]string{"sd_model_checkpoint": c.config.Model}
	}

	resp, err := c.post(ctx, "/sdapi/v1/img2img", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result img2imgResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, wrapErr("decode response", err)
	}
	if len(result.Images) == 0 {
		return nil, ErrEmptyResponse
	}

	img, err := decodeBase64Image(result.Images[0])
	if err != nil {
		return nil, wrapErr("decode image", err)
	}

	c.logger.Debug("img2img complete",
		"steps", payload.Steps,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return img, nil
}

// Health checks server connectivity.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/sdapi/v1/sd-models", nil)
	if err != nil {
		return wrapErr("create request", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapErr("health check", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

// Close releases resources.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// post makes a POST request with retry per the configured policy.
func (c *Client) post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, wrapErr("marshal payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, wrapErr("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = wrapErr("request", err)
			if attempt < c.config.MaxRetries {
				c.logger.Warn("request failed, retrying", "attempt", attempt+1, "error", err)
			}
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = c.parseError(resp)
			resp.Body.Close()
			if attempt < c.config.MaxRetries {
				c.logger.Warn("retrying request", "attempt", attempt+1, "status", resp.StatusCode)
			}
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response.
func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	message := string(body)
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Detail != "" {
			message = errResp.Detail
		} else if errResp.Error != "" {
			message = errResp.Error
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

// encodePNGBase64 serializes an image as base64 PNG.
func encodePNGBase64(img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodeBase64Image parses a base64 image, tolerating an optional data
// URL prefix.
func decodeBase64Image(s string) (image.Image, error) {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return img, nil
}
