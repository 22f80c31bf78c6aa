package tracking

import (
	"github.com/andresmejia3/facetrail/internal/types"
)

// Track is the running hypothesis that a sequence of frames shows the same face.
type Track struct {
	ID  uint64
	Box types.Rect

	BestFrame     types.Frame
	BestDetection types.Detection
	BestScore     float64

	FirstFrame    int // frame index of the spawning detection
	LastSeenFrame int // frame index of the latest confirming detection
	Confirmations int // detection cycles that matched this track, spawn included

	tracker Tracker
}

// offer replaces the best observation when score is strictly higher.
func (t *Track) offer(frame types.Frame, det types.Detection, score float64) bool {
	if score <= t.BestScore {
		return false
	}
	t.BestFrame = frame.Clone()
	t.BestDetection = det
	t.BestScore = score
	return true
}

// Snapshot is a read-only view of a live track.
type Snapshot struct {
	ID    uint64
	Box   types.Rect
	Score float64
}

// Pool holds the live tracks of one camera loop, in spawn order.
// A Pool is not safe for concurrent use; it belongs to a single loop.
type Pool struct {
	tracks []*Track
	nextID uint64
}

// NewPool returns an empty pool whose first track gets id 0.
func NewPool() *Pool {
	return &Pool{}
}

// Len returns the number of live tracks.
func (p *Pool) Len() int { return len(p.tracks) }

// Boxes returns the current boxes, in pool order.
func (p *Pool) Boxes() []types.Rect {
	boxes := make([]types.Rect, len(p.tracks))
	for i, t := range p.tracks {
		boxes[i] = t.Box
	}
	return boxes
}

// At returns the i-th track in pool order.
func (p *Pool) At(i int) *Track { return p.tracks[i] }

// add assigns the next id to t and appends it. Ids are never reused.
func (p *Pool) add(t *Track) {
	t.ID = p.nextID
	p.nextID++
	p.tracks = append(p.tracks, t)
}

// removeIf drops every track for which drop returns true and returns them in pool order.
func (p *Pool) removeIf(drop func(*Track) bool) []*Track {
	var removed []*Track
	kept := p.tracks[:0]
	for _, t := range p.tracks {
		if drop(t) {
			removed = append(removed, t)
		} else {
			kept = append(kept, t)
		}
	}
	// clear the tail so retired tracks (and their frames) can be collected
	for i := len(kept); i < len(p.tracks); i++ {
		p.tracks[i] = nil
	}
	p.tracks = kept
	return removed
}

// Snapshots returns id, box and score of every live track.
func (p *Pool) Snapshots() []Snapshot {
	out := make([]Snapshot, len(p.tracks))
	for i, t := range p.tracks {
		out[i] = Snapshot{ID: t.ID, Box: t.Box, Score: t.BestScore}
	}
	return out
}
