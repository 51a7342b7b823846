// Package config provides configuration helpers for go-streamdiff commands.
package config

import (
	"fmt"
	"os"
)

// Defaults match a local LiveKit dev server (livekit-server --dev).
const (
	DefaultServerURL = "ws://localhost:7880"
	DefaultAPIKey    = "devkey"
	DefaultAPISecret = "secret"
	DefaultRoom      = "test_room"
	DefaultIdentity  = "streamdiff-bot"
)

// Getenv returns the value of key, or def if unset or empty.
func Getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ServerURL returns the LiveKit server URL from LIVEKIT_URL.
func ServerURL() string {
	return Getenv("LIVEKIT_URL", DefaultServerURL)
}

// APIKey returns the LiveKit API key from LIVEKIT_API_KEY.
func APIKey() string {
	return Getenv("LIVEKIT_API_KEY", DefaultAPIKey)
}

// APISecret returns the LiveKit API secret from LIVEKIT_API_SECRET.
func APISecret() string {
	return Getenv("LIVEKIT_API_SECRET", DefaultAPISecret)
}

// DiffusionURL returns the img2img server base URL from DIFFUSION_URL.
// Exits with a usage message if unset, since there is no sane default
// for a GPU inference endpoint.
func DiffusionURL() string {
	url := os.Getenv("DIFFUSION_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "Error: DIFFUSION_URL environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: DIFFUSION_URL=http://127.0.0.1:7860 go run ./cmd/streamdiff -transform diffusion")
		os.Exit(1)
	}
	return url
}
