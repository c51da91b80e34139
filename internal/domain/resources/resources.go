// Package resources defines the value objects, bounded history, and
// display formatting for per-service resource samples (§4.G). Sampling
// itself (the ticker and the "ps" process-table call) lives in
// internal/application/resources and internal/infrastructure/resources/ps
// respectively — this package only models the data.
package resources

import (
	"fmt"
	"strings"
	"time"
)

// Sample is one CPU/memory reading for a tracked service, taken from a
// single process-table probe invocation.
type Sample struct {
	Service     string
	PID         int
	CPUPercent  float64
	RSSBytes    uint64
	MemPercent  float64
	Timestamp   time.Time
}

// DefaultHistorySize is the default number of retained samples per
// service before the oldest is evicted (§4.G).
const DefaultHistorySize = 60

// HysteresisCPU and HysteresisRSS are the minimum deltas from the last
// published sample required before a new resources-updated event fires
// (§4.I.3).
const (
	HysteresisCPU float64 = 0.1
	HysteresisRSS uint64  = 1024
)

// History is a fixed-capacity, oldest-evicted ring of samples for one
// service.
type History struct {
	samples []Sample
	cap     int
}

// NewHistory builds a History with the package default capacity.
func NewHistory() *History {
	return &History{samples: make([]Sample, 0, DefaultHistorySize), cap: DefaultHistorySize}
}

// Push appends a new sample, evicting the oldest if the history is full.
func (h *History) Push(s Sample) {
	if len(h.samples) >= h.cap {
		copy(h.samples, h.samples[1:])
		h.samples = h.samples[:len(h.samples)-1]
	}
	h.samples = append(h.samples, s)
}

// Latest returns the most recent sample and true, or the zero Sample and
// false if no sample has ever been pushed.
func (h *History) Latest() (Sample, bool) {
	if len(h.samples) == 0 {
		return Sample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// Snapshot returns a copy of every retained sample, oldest first.
func (h *History) Snapshot() []Sample {
	out := make([]Sample, len(h.samples))
	copy(out, h.samples)
	return out
}

// ExceedsHysteresis reports whether candidate differs from the last
// published sample by more than the configured hysteresis thresholds.
func ExceedsHysteresis(last, candidate Sample) bool {
	cpuDelta := candidate.CPUPercent - last.CPUPercent
	if cpuDelta < 0 {
		cpuDelta = -cpuDelta
	}
	if cpuDelta > HysteresisCPU {
		return true
	}

	var rssDelta uint64
	if candidate.RSSBytes > last.RSSBytes {
		rssDelta = candidate.RSSBytes - last.RSSBytes
	} else {
		rssDelta = last.RSSBytes - candidate.RSSBytes
	}
	return rssDelta > HysteresisRSS
}

// FormatBytes renders n using the B/KB/MB/GB scale with one decimal place
// once past KB (§4.G).
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit && exp < 2; v /= unit {
		div *= unit
		exp++
	}
	suffixes := []string{"KB", "MB", "GB"}
	return fmt.Sprintf("%.1f%s", float64(n)/float64(div), suffixes[exp])
}

// sparkBlocks are the eight block characters used to render a sparkline,
// lowest to highest.
var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values as a string of block characters scaled to the
// slice's own min/max (§4.G). A nil or single-valued slice renders as the
// lowest block for every entry.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	var b strings.Builder
	spread := max - min
	for _, v := range values {
		if spread == 0 {
			b.WriteRune(sparkBlocks[0])
			continue
		}
		idx := int((v - min) / spread * float64(len(sparkBlocks)-1))
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}
