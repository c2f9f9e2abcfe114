package bus

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleAtInterpolates(t *testing.T) {
	b := NewBuffer(10)
	b.Publish("speed", 100, 10.0)
	b.Publish("speed", 200, 20.0)

	snap := b.Snapshot()
	assert.InDelta(t, 15.0, snap.SampleAt("speed", 150), 1e-9)
	assert.InDelta(t, 10.0, snap.SampleAt("speed", 100), 1e-9)
}

func TestSampleAtExtrapolatesAtEdges(t *testing.T) {
	b := NewBuffer(10)
	b.Publish("speed", 100, 10.0)
	b.Publish("speed", 200, 20.0)

	snap := b.Snapshot()
	// Below the range: continue the first segment's slope.
	assert.InDelta(t, 5.0, snap.SampleAt("speed", 50), 1e-9)
	// Above the range: continue the last segment's slope.
	assert.InDelta(t, 25.0, snap.SampleAt("speed", 250), 1e-9)
}

func TestSampleAtDegradation(t *testing.T) {
	b := NewBuffer(10)
	snap := b.Snapshot()
	assert.True(t, math.IsNaN(snap.SampleAt("missing", 100)))

	b.Publish("torque", 100, 7.5)
	snap = b.Snapshot()
	// One sample: use it directly regardless of timestamp.
	assert.InDelta(t, 7.5, snap.SampleAt("torque", 9999), 1e-9)
}

func TestPublishKeepsSamplesSorted(t *testing.T) {
	b := NewBuffer(10)
	b.Publish("grade", 300, 3.0)
	b.Publish("grade", 100, 1.0)
	b.Publish("grade", 200, 2.0)

	snap := b.Snapshot()
	samples := snap["grade"]
	require.Len(t, samples, 3)
	assert.Equal(t, 100.0, samples[0].TimestampMs)
	assert.Equal(t, 200.0, samples[1].TimestampMs)
	assert.Equal(t, 300.0, samples[2].TimestampMs)
	// Out-of-order publication must not bend the interpolation.
	assert.InDelta(t, 1.5, snap.SampleAt("grade", 150), 1e-9)
}

func TestBufferBoundedDepth(t *testing.T) {
	b := NewBuffer(3)
	for i := 0; i < 10; i++ {
		b.Publish("speed", float64(i), float64(i))
	}
	snap := b.Snapshot()
	require.Len(t, snap["speed"], 3)
	assert.Equal(t, 7.0, snap["speed"][0].TimestampMs)
}

func TestSnapshotIsImmutable(t *testing.T) {
	b := NewBuffer(10)
	b.Publish("speed", 100, 10.0)
	snap := b.Snapshot()
	b.Publish("speed", 200, 99.0)
	require.Len(t, snap["speed"], 1)
}

func TestConcurrentPublishSnapshot(t *testing.T) {
	b := NewBuffer(10)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b.Publish("speed", float64(i), float64(i))
				_ = b.Snapshot().SampleAt("speed", float64(i))
			}
		}(w)
	}
	wg.Wait()
}

func TestNormalize(t *testing.T) {
	v, ok := Normalize(int32(7))
	assert.True(t, ok)
	assert.Equal(t, 7.0, v)

	v, ok = Normalize(float32(1.5))
	assert.True(t, ok)
	assert.InDelta(t, 1.5, v, 1e-6)

	v, ok = Normalize("not-a-number")
	assert.False(t, ok)
	assert.True(t, math.IsNaN(v))
}
