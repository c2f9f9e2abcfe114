package pipeline

import (
	"github.com/banshee-data/crosswatch/internal/radar"
	"github.com/banshee-data/crosswatch/internal/tracks"
)

// DefaultHistoryDepth bounds the rolling history; at 20 Hz this holds
// half a minute of cycles.
const DefaultHistoryDepth = 600

// HistoryEntry pairs an annotated frame with the track list returned
// for it, including tracks flagged lost that cycle.
type HistoryEntry struct {
	Frame  *radar.Frame
	Tracks []*tracks.Track
}

// History is a fixed-capacity ring of recent cycles for export and
// replay inspection. The pipeline is the only writer.
type History struct {
	entries  []HistoryEntry
	capacity int
	head     int
	size     int
}

// NewHistory creates a ring holding up to capacity cycles.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultHistoryDepth
	}
	return &History{
		entries:  make([]HistoryEntry, capacity),
		capacity: capacity,
	}
}

// Add stores one cycle, overwriting the oldest entry at capacity. The
// track slice is copied so later tracker mutations of the list itself
// do not alias into history.
func (h *History) Add(frame *radar.Frame, trackList []*tracks.Track) {
	snapshot := make([]*tracks.Track, len(trackList))
	copy(snapshot, trackList)
	h.entries[h.head] = HistoryEntry{Frame: frame, Tracks: snapshot}
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// Len returns the number of stored cycles.
func (h *History) Len() int { return h.size }

// Recent returns the last n cycles, oldest first. n larger than the
// stored count returns everything.
func (h *History) Recent(n int) []HistoryEntry {
	if n > h.size {
		n = h.size
	}
	out := make([]HistoryEntry, 0, n)
	for i := n; i >= 1; i-- {
		idx := (h.head - i + h.capacity) % h.capacity
		out = append(out, h.entries[idx])
	}
	return out
}

// Latest returns the most recent cycle, or false when empty.
func (h *History) Latest() (HistoryEntry, bool) {
	if h.size == 0 {
		return HistoryEntry{}, false
	}
	idx := (h.head - 1 + h.capacity) % h.capacity
	return h.entries[idx], true
}
