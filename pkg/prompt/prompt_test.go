package prompt

import (
	"errors"
	"sync"
	"testing"
)

func TestParseUpdate(t *testing.T) {
	// Well-formed update
	p, err := ParseUpdate([]byte(`{"prompt": "neon city"}`))
	if err != nil {
		t.Fatalf("ParseUpdate failed: %v", err)
	}
	if p != "neon city" {
		t.Errorf("Expected 'neon city', got %q", p)
	}

	// Empty string is a valid prompt
	p, err = ParseUpdate([]byte(`{"prompt": ""}`))
	if err != nil {
		t.Fatalf("ParseUpdate failed for empty prompt: %v", err)
	}
	if p != "" {
		t.Errorf("Expected empty prompt, got %q", p)
	}

	// Missing field
	_, err = ParseUpdate([]byte(`{"other": "value"}`))
	if !errors.Is(err, ErrMissingPrompt) {
		t.Errorf("Expected ErrMissingPrompt, got %v", err)
	}

	// Malformed JSON
	_, err = ParseUpdate([]byte(`{"prompt": `))
	if err == nil {
		t.Error("Expected error for malformed JSON")
	}

	// Extra fields are ignored
	p, err = ParseUpdate([]byte(`{"prompt": "x", "strength": 0.5}`))
	if err != nil {
		t.Fatalf("ParseUpdate failed with extra fields: %v", err)
	}
	if p != "x" {
		t.Errorf("Expected 'x', got %q", p)
	}
}

func TestEncodeUpdateRoundTrip(t *testing.T) {
	data, err := EncodeUpdate("watercolor forest")
	if err != nil {
		t.Fatalf("EncodeUpdate failed: %v", err)
	}
	p, err := ParseUpdate(data)
	if err != nil {
		t.Fatalf("ParseUpdate failed: %v", err)
	}
	if p != "watercolor forest" {
		t.Errorf("Expected 'watercolor forest', got %q", p)
	}
}

func TestStateReplace(t *testing.T) {
	s := NewState(DefaultDiffusionPrompt)
	if s.Snapshot() != DefaultDiffusionPrompt {
		t.Errorf("Expected initial value, got %q", s.Snapshot())
	}

	s.Set("first")
	s.Set("second")
	if s.Snapshot() != "second" {
		t.Errorf("Expected 'second', got %q", s.Snapshot())
	}

	// A snapshot taken before an update is unaffected by it.
	snap := s.Snapshot()
	s.Set("third")
	if snap != "second" {
		t.Errorf("Expected snapshot to keep 'second', got %q", snap)
	}
	if s.Snapshot() != "third" {
		t.Errorf("Expected 'third', got %q", s.Snapshot())
	}
}

func TestStateOnChange(t *testing.T) {
	s := NewState("")
	var got []string
	s.SetOnChange(func(v string) {
		got = append(got, v)
	})

	s.Set("a")
	s.Set("b")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Expected [a b], got %v", got)
	}
}

func TestStateConcurrent(t *testing.T) {
	s := NewState("start")
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Set("update")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	if s.Snapshot() != "update" {
		t.Errorf("Expected 'update', got %q", s.Snapshot())
	}
}
