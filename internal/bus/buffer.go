// Package bus maintains the best-effort, bounded-recency buffer of
// vehicle-bus signals consumed by the tracking pipeline. Independently
// scheduled producers publish (timestamp, value) samples per named signal;
// the pipeline reads immutable snapshots and resamples each signal to the
// exact radar frame timestamp.
//
// The buffer is eventually consistent and out-of-order tolerant: samples
// are kept sorted by timestamp on insert, and a snapshot is a deep copy so
// the consumer never observes producer mutation.
package bus

import (
	"math"
	"sort"
	"sync"
)

// DefaultDepth is the per-signal sample retention count.
const DefaultDepth = 10

// Sample is one (timestamp, value) observation of a bus signal.
type Sample struct {
	TimestampMs float64
	Value       float64
}

// Buffer is the shared per-signal sample store. Producers call Publish;
// the pipeline calls Snapshot once per cycle.
type Buffer struct {
	mu      sync.RWMutex
	depth   int
	signals map[string][]Sample
}

// NewBuffer creates a Buffer retaining the last depth samples per signal.
// A non-positive depth falls back to DefaultDepth.
func NewBuffer(depth int) *Buffer {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Buffer{
		depth:   depth,
		signals: make(map[string][]Sample),
	}
}

// Publish appends a sample for the named signal, keeping the per-signal
// slice sorted by timestamp and bounded to the configured depth. Non-finite
// values are stored as published; interpolation treats them as unavailable.
func (b *Buffer) Publish(signal string, timestampMs, value float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	samples := b.signals[signal]
	i := sort.Search(len(samples), func(i int) bool {
		return samples[i].TimestampMs > timestampMs
	})
	samples = append(samples, Sample{})
	copy(samples[i+1:], samples[i:])
	samples[i] = Sample{TimestampMs: timestampMs, Value: value}

	if len(samples) > b.depth {
		samples = samples[len(samples)-b.depth:]
	}
	b.signals[signal] = samples
}

// Snapshot returns an immutable deep copy of every signal's samples. The
// returned map is owned by the caller; later Publish calls do not affect it.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := make(Snapshot, len(b.signals))
	for name, samples := range b.signals {
		copied := make([]Sample, len(samples))
		copy(copied, samples)
		snap[name] = copied
	}
	return snap
}

// Snapshot is a point-in-time copy of the buffer contents. The consumer
// never mutates what it reads.
type Snapshot map[string][]Sample

// SampleAt resamples the named signal to the given timestamp using linear
// interpolation, extrapolating linearly at the buffer edges. Degradation
// rules: an absent or empty signal yields NaN; a single sample yields that
// sample's value.
func (s Snapshot) SampleAt(signal string, timestampMs float64) float64 {
	samples := s[signal]
	switch len(samples) {
	case 0:
		return math.NaN()
	case 1:
		return samples[0].Value
	}
	return interpWithExtrap(timestampMs, samples)
}

// interpWithExtrap performs 1D linear interpolation over sorted samples,
// extending the edge slopes beyond the sampled range.
func interpWithExtrap(x float64, samples []Sample) float64 {
	n := len(samples)
	first, last := samples[0], samples[n-1]

	if x <= first.TimestampMs {
		second := samples[1]
		return extrapolate(x, first, second)
	}
	if x >= last.TimestampMs {
		prev := samples[n-2]
		return extrapolate(x, prev, last)
	}

	i := sort.Search(n, func(i int) bool {
		return samples[i].TimestampMs >= x
	})
	lo, hi := samples[i-1], samples[i]
	dt := hi.TimestampMs - lo.TimestampMs
	if dt <= 0 {
		// Duplicate timestamps; either value is as good as the other.
		return hi.Value
	}
	frac := (x - lo.TimestampMs) / dt
	return lo.Value + frac*(hi.Value-lo.Value)
}

func extrapolate(x float64, a, b Sample) float64 {
	dt := b.TimestampMs - a.TimestampMs
	if dt <= 0 {
		return b.Value
	}
	slope := (b.Value - a.Value) / dt
	return a.Value + slope*(x-a.TimestampMs)
}

// Normalize converts a decoded bus value of any numeric Go type to a plain
// float64, reporting false for non-numeric input. Decoders must pass values
// through this at the ingestion boundary; foreign numeric wrapper types
// have historically corrupted downstream interpolation and serialisation.
func Normalize(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return math.NaN(), false
	}
}
