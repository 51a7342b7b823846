package bridge

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of bridge counters. Failure counts
// are per stage; every failed frame is dropped, so Published only ever
// counts frames that made it through the whole cycle.
type Stats struct {
	Received          uint64 `json:"received"`
	Sampled           uint64 `json:"sampled"`
	Published         uint64 `json:"published"`
	DecodeFailures    uint64 `json:"decode_failures"`
	TransformFailures uint64 `json:"transform_failures"`
	EncodeFailures    uint64 `json:"encode_failures"`
	PublishFailures   uint64 `json:"publish_failures"`

	// LastTransform is the duration of the most recent transform.
	LastTransform time.Duration `json:"last_transform_ns"`

	// AvgTransform is an exponential moving average of transform
	// durations, weighting recent frames more.
	AvgTransform time.Duration `json:"avg_transform_ns"`
}

// emaAlpha weights the newest transform duration in the moving average.
const emaAlpha = 0.1

// statsCollector tracks counters behind a mutex. The bridge goroutine
// writes; anyone may snapshot.
type statsCollector struct {
	mu    sync.Mutex
	stats Stats
}

func (c *statsCollector) markReceived() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Received++
	return c.stats.Received
}

func (c *statsCollector) markSampled() {
	c.mu.Lock()
	c.stats.Sampled++
	c.mu.Unlock()
}

func (c *statsCollector) markPublished() {
	c.mu.Lock()
	c.stats.Published++
	c.mu.Unlock()
}

func (c *statsCollector) markDecodeFailure() {
	c.mu.Lock()
	c.stats.DecodeFailures++
	c.mu.Unlock()
}

func (c *statsCollector) markTransformFailure() {
	c.mu.Lock()
	c.stats.TransformFailures++
	c.mu.Unlock()
}

func (c *statsCollector) markEncodeFailure() {
	c.mu.Lock()
	c.stats.EncodeFailures++
	c.mu.Unlock()
}

func (c *statsCollector) markPublishFailure() {
	c.mu.Lock()
	c.stats.PublishFailures++
	c.mu.Unlock()
}

func (c *statsCollector) markTransform(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.LastTransform = d
	if c.stats.AvgTransform == 0 {
		c.stats.AvgTransform = d
		return
	}
	c.stats.AvgTransform = time.Duration(
		float64(c.stats.AvgTransform)*(1-emaAlpha) + float64(d)*emaAlpha)
}

// snapshot returns a copy of the current counters.
func (c *statsCollector) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
