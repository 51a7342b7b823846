// Package prompt holds the shared prompt state that drives frame
// transforms, and the JSON control message used to update it over the
// room's data channel.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Defaults applied when no prompt has been received yet.
const (
	// DefaultDiffusionPrompt seeds the img2img model before the first
	// update arrives.
	DefaultDiffusionPrompt = "cat wizard, gandalf, lord of the rings, detailed, fantasy, cute, adorable, Pixar, Disney, 8k"

	// DefaultOverlayText is drawn by the edge filter when no prompt has
	// been set.
	DefaultOverlayText = "Processed Feed"
)

// ErrMissingPrompt indicates a control message without a prompt field.
// Such messages are logged and ignored; the state keeps its value.
var ErrMissingPrompt = errors.New("prompt: update missing prompt field")

// Update is the wire shape of a prompt change, sent as a reliable data
// packet to everyone in the room.
type Update struct {
	Prompt string `json:"prompt"`
}

// ParseUpdate extracts the prompt from a control message. An empty
// string is a valid prompt; a missing field or malformed JSON is not.
func ParseUpdate(data []byte) (string, error) {
	var msg struct {
		Prompt *string `json:"prompt"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("prompt: parse update: %w", err)
	}
	if msg.Prompt == nil {
		return "", ErrMissingPrompt
	}
	return *msg.Prompt, nil
}

// EncodeUpdate builds the wire form of a prompt change.
func EncodeUpdate(prompt string) ([]byte, error) {
	return json.Marshal(Update{Prompt: prompt})
}

// State is the shared prompt handle. Writers replace the whole value;
// readers take a snapshot. A frame cycle that already snapshotted the
// prompt keeps using its copy, so an update applies from the next
// sampled frame onward.
type State struct {
	mu       sync.RWMutex
	value    string
	onChange func(string)
}

// NewState creates a prompt state seeded with an initial value.
func NewState(initial string) *State {
	return &State{value: initial}
}

// SetOnChange registers a callback fired after each Set. The callback
// runs on the caller's goroutine with the lock released; it must not
// block for long.
func (s *State) SetOnChange(fn func(string)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Set replaces the current prompt.
func (s *State) Set(value string) {
	s.mu.Lock()
	s.value = value
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(value)
	}
}

// Snapshot returns the current prompt.
func (s *State) Snapshot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}
