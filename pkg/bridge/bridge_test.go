package bridge

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/ivid/go-streamdiff/pkg/frame"
	"github.com/ivid/go-streamdiff/pkg/prompt"
	"github.com/ivid/go-streamdiff/pkg/transform"
)

// sliceSource plays back a fixed set of frames then closes.
type sliceSource struct {
	frames []frame.Raw
	pos    int
}

func (s *sliceSource) Next(ctx context.Context) (frame.Raw, error) {
	if err := ctx.Err(); err != nil {
		return frame.Raw{}, err
	}
	if s.pos >= len(s.frames) {
		return frame.Raw{}, ErrSourceClosed
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

// blockingSource never produces a frame; it waits for cancellation.
type blockingSource struct{}

func (blockingSource) Next(ctx context.Context) (frame.Raw, error) {
	<-ctx.Done()
	return frame.Raw{}, ctx.Err()
}

// collectSink records published frames, optionally failing every call.
type collectSink struct {
	mu     sync.Mutex
	frames []frame.Raw
	err    error
}

func (s *collectSink) Publish(raw frame.Raw) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.frames = append(s.frames, raw)
	s.mu.Unlock()
	return nil
}

func (s *collectSink) published() []frame.Raw {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]frame.Raw, len(s.frames))
	copy(out, s.frames)
	return out
}

// grayFrame builds a uniform I420 frame with the given luma, neutral
// chroma. Uniform gray survives decode, transform, and encode with at
// most rounding drift, which makes frames traceable through the
// pipeline.
func grayFrame(w, h uint32, luma byte) frame.Raw {
	raw := frame.NewI420(w, h)
	ySize := int(w) * int(h)
	for i := 0; i < ySize; i++ {
		raw.Data[i] = luma
	}
	for i := ySize; i < len(raw.Data); i++ {
		raw.Data[i] = 128
	}
	return raw
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SampleStride = 1
	cfg.LogEvery = 0
	return cfg
}

func TestNewValidates(t *testing.T) {
	prompts := prompt.NewState("")

	if _, err := New(nil, prompts, testConfig()); !errors.Is(err, ErrNilTransformer) {
		t.Errorf("Expected ErrNilTransformer, got %v", err)
	}
	if _, err := New(transform.NewMock(), nil, testConfig()); !errors.Is(err, ErrNilPromptState) {
		t.Errorf("Expected ErrNilPromptState, got %v", err)
	}

	bad := testConfig()
	bad.Steps = 0
	if _, err := New(transform.NewMock(), prompts, bad); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestRunIdentityRoundTrip(t *testing.T) {
	prompts := prompt.NewState("identity")
	b, err := New(transform.NewMock(), prompts, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	src := &sliceSource{frames: []frame.Raw{
		grayFrame(1280, 720, 100),
		grayFrame(1280, 720, 100),
		grayFrame(1280, 720, 100),
	}}
	sink := &collectSink{}

	if err := b.Run(context.Background(), src, sink); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	published := sink.published()
	if len(published) != 3 {
		t.Fatalf("Expected 3 published frames, got %d", len(published))
	}
	for i, raw := range published {
		if err := raw.Validate(); err != nil {
			t.Errorf("Published frame %d invalid: %v", i, err)
		}
		if raw.Width != 1280 || raw.Height != 720 {
			t.Errorf("Expected 1280x720, got %dx%d", raw.Width, raw.Height)
		}
		if len(raw.Data) != frame.I420Size(1280, 720) {
			t.Errorf("Expected %d bytes, got %d", frame.I420Size(1280, 720), len(raw.Data))
		}
	}

	stats := b.Stats()
	if stats.Received != 3 || stats.Sampled != 3 || stats.Published != 3 {
		t.Errorf("Expected 3/3/3 received/sampled/published, got %d/%d/%d",
			stats.Received, stats.Sampled, stats.Published)
	}
	if stats.DecodeFailures+stats.TransformFailures+stats.EncodeFailures+stats.PublishFailures != 0 {
		t.Errorf("Expected no failures, got %+v", stats)
	}
}

func TestRunStride(t *testing.T) {
	prompts := prompt.NewState("")
	cfg := testConfig()
	cfg.SampleStride = 3
	b, err := New(transform.NewMock(), prompts, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var frames []frame.Raw
	for i := 0; i < 10; i++ {
		frames = append(frames, grayFrame(320, 240, 100))
	}
	sink := &collectSink{}

	if err := b.Run(context.Background(), &sliceSource{frames: frames}, sink); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Indices 0, 3, 6, 9 are sampled.
	if len(sink.published()) != 4 {
		t.Errorf("Expected 4 published frames, got %d", len(sink.published()))
	}
	stats := b.Stats()
	if stats.Received != 10 {
		t.Errorf("Expected 10 received, got %d", stats.Received)
	}
	if stats.Sampled != 4 {
		t.Errorf("Expected 4 sampled, got %d", stats.Sampled)
	}
}

func TestRunPublishUnsampled(t *testing.T) {
	prompts := prompt.NewState("")
	cfg := testConfig()
	cfg.SampleStride = 2
	cfg.PublishUnsampled = true
	b, err := New(transform.NewMock(), prompts, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	src := &sliceSource{frames: []frame.Raw{
		grayFrame(1280, 720, 10),
		grayFrame(1280, 720, 20),
		grayFrame(1280, 720, 30),
		grayFrame(1280, 720, 40),
	}}
	sink := &collectSink{}

	if err := b.Run(context.Background(), src, sink); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	published := sink.published()
	if len(published) != 4 {
		t.Fatalf("Expected 4 published frames, got %d", len(published))
	}

	// Unsampled frames pass through untouched, byte for byte.
	if published[1].Data[0] != 20 {
		t.Errorf("Expected untouched luma 20, got %d", published[1].Data[0])
	}
	if published[3].Data[0] != 40 {
		t.Errorf("Expected untouched luma 40, got %d", published[3].Data[0])
	}

	// Sampled frames went through the full cycle; gray drifts by at
	// most rounding.
	for _, tc := range []struct {
		idx  int
		luma int
	}{{0, 10}, {2, 30}} {
		got := int(published[tc.idx].Data[0])
		if got < tc.luma-2 || got > tc.luma+2 {
			t.Errorf("Frame %d: expected luma near %d, got %d", tc.idx, tc.luma, got)
		}
	}

	stats := b.Stats()
	if stats.Sampled != 2 {
		t.Errorf("Expected 2 sampled, got %d", stats.Sampled)
	}
	if stats.Published != 4 {
		t.Errorf("Expected 4 published, got %d", stats.Published)
	}
}

func TestRunPreservesOrder(t *testing.T) {
	prompts := prompt.NewState("")
	b, err := New(transform.NewMock(), prompts, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	lumas := []byte{50, 100, 150, 200}
	var frames []frame.Raw
	for _, l := range lumas {
		frames = append(frames, grayFrame(640, 480, l))
	}
	sink := &collectSink{}

	if err := b.Run(context.Background(), &sliceSource{frames: frames}, sink); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	published := sink.published()
	if len(published) != len(lumas) {
		t.Fatalf("Expected %d frames, got %d", len(lumas), len(published))
	}
	for i, want := range lumas {
		got := int(published[i].Data[0])
		if got < int(want)-2 || got > int(want)+2 {
			t.Errorf("Position %d: expected luma near %d, got %d (ordering broken?)", i, want, got)
		}
	}
}

func TestRunDropsMalformed(t *testing.T) {
	prompts := prompt.NewState("")
	b, err := New(transform.NewMock(), prompts, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	truncated := grayFrame(640, 480, 100)
	truncated.Data = truncated.Data[:len(truncated.Data)-7]

	src := &sliceSource{frames: []frame.Raw{
		grayFrame(640, 480, 100),
		truncated,
		grayFrame(640, 480, 100),
	}}
	sink := &collectSink{}

	if err := b.Run(context.Background(), src, sink); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(sink.published()) != 2 {
		t.Errorf("Expected 2 published frames, got %d", len(sink.published()))
	}
	stats := b.Stats()
	if stats.DecodeFailures != 1 {
		t.Errorf("Expected 1 decode failure, got %d", stats.DecodeFailures)
	}
	if stats.Published != 2 {
		t.Errorf("Expected 2 published, got %d", stats.Published)
	}
}

func TestRunTransformFailure(t *testing.T) {
	prompts := prompt.NewState("")
	b, err := New(transform.WithError(transform.ErrModelFailure), prompts, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	src := &sliceSource{frames: []frame.Raw{
		grayFrame(320, 240, 100),
		grayFrame(320, 240, 100),
	}}
	sink := &collectSink{}

	if err := b.Run(context.Background(), src, sink); err != nil {
		t.Fatalf("Expected clean run despite model failures, got %v", err)
	}

	if len(sink.published()) != 0 {
		t.Errorf("Expected nothing published, got %d frames", len(sink.published()))
	}
	stats := b.Stats()
	if stats.TransformFailures != 2 {
		t.Errorf("Expected 2 transform failures, got %d", stats.TransformFailures)
	}
}

func TestRunPublishFailure(t *testing.T) {
	prompts := prompt.NewState("")
	b, err := New(transform.NewMock(), prompts, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	src := &sliceSource{frames: []frame.Raw{
		grayFrame(320, 240, 100),
		grayFrame(320, 240, 100),
	}}
	sink := &collectSink{err: errors.New("track down")}

	if err := b.Run(context.Background(), src, sink); err != nil {
		t.Fatalf("Expected clean run despite publish failures, got %v", err)
	}

	stats := b.Stats()
	if stats.PublishFailures != 2 {
		t.Errorf("Expected 2 publish failures, got %d", stats.PublishFailures)
	}
	if stats.Published != 0 {
		t.Errorf("Expected 0 published, got %d", stats.Published)
	}
}

func TestRunPromptSnapshot(t *testing.T) {
	prompts := prompt.NewState("before")

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	mock := transform.NewMock()
	mock.TransformFunc = func(ctx context.Context, req transform.Request) (image.Image, error) {
		once.Do(func() {
			close(started)
			<-release
		})
		return req.Image, nil
	}

	b, err := New(mock, prompts, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	src := &sliceSource{frames: []frame.Raw{
		grayFrame(320, 240, 100),
		grayFrame(320, 240, 100),
	}}
	sink := &collectSink{}

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background(), src, sink) }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("Transform never started")
	}

	// Update the prompt while the first transform is in flight.
	prompts.Set("after")
	close(release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run never finished")
	}

	calls := mock.Calls()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 transform calls, got %d", len(calls))
	}
	if calls[0].Prompt != "before" {
		t.Errorf("Expected in-flight call to keep its snapshot, got %q", calls[0].Prompt)
	}
	if calls[1].Prompt != "after" {
		t.Errorf("Expected next call to see the update, got %q", calls[1].Prompt)
	}
}

func TestRunCancelled(t *testing.T) {
	prompts := prompt.NewState("")
	b, err := New(transform.NewMock(), prompts, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, blockingSource{}, &collectSink{}) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean stop on cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestRunPreviewHook(t *testing.T) {
	prompts := prompt.NewState("")
	b, err := New(transform.NewMock(), prompts, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var previews int
	b.SetPreview(func(img image.Image) {
		if img == nil {
			t.Error("Expected non-nil preview image")
		}
		previews++
	})

	src := &sliceSource{frames: []frame.Raw{
		grayFrame(320, 240, 100),
		grayFrame(320, 240, 100),
		grayFrame(320, 240, 100),
	}}
	if err := b.Run(context.Background(), src, &collectSink{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if previews != 3 {
		t.Errorf("Expected 3 preview callbacks, got %d", previews)
	}
}

func TestRunTransformLatencyStats(t *testing.T) {
	prompts := prompt.NewState("")
	mock := transform.NewMock()
	mock.TransformFunc = func(ctx context.Context, req transform.Request) (image.Image, error) {
		time.Sleep(2 * time.Millisecond)
		return req.Image, nil
	}
	b, err := New(mock, prompts, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	src := &sliceSource{frames: []frame.Raw{
		grayFrame(320, 240, 100),
		grayFrame(320, 240, 100),
		grayFrame(320, 240, 100),
	}}

	if err := b.Run(context.Background(), src, &collectSink{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stats := b.Stats()
	if stats.LastTransform < 2*time.Millisecond {
		t.Errorf("Expected last transform >= 2ms, got %v", stats.LastTransform)
	}
	if stats.AvgTransform < 2*time.Millisecond {
		t.Errorf("Expected average transform >= 2ms, got %v", stats.AvgTransform)
	}
}
