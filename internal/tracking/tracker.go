package tracking

import (
	"errors"

	"github.com/andresmejia3/facetrail/internal/types"
)

// ErrTrackerInit is returned when a tracker backend refuses the initial box.
var ErrTrackerInit = errors.New("tracker initialization failed")

// Tracker is a per-track visual tracker. A Tracker is owned by exactly one
// Track and is closed when that Track retires.
type Tracker interface {
	// Init starts tracking box on frame.
	Init(frame types.Frame, box types.Rect) error
	// Update estimates the box on a new frame. ok is false when the target was lost.
	Update(frame types.Frame) (box types.Rect, ok bool)
	// Reinit discards all internal state and starts over from box on frame.
	Reinit(frame types.Frame, box types.Rect) error
	Close() error
}

// Factory builds a fresh Tracker for a newly spawned track.
type Factory func() (Tracker, error)

// HoldTracker keeps the last known box. It never drifts and never loses the target,
// which makes it a fit for detection period 1 and for tests.
type HoldTracker struct {
	box    types.Rect
	closed bool
}

// NewHoldTracker is a Factory for HoldTracker.
func NewHoldTracker() (Tracker, error) {
	return &HoldTracker{}, nil
}

func (h *HoldTracker) Init(_ types.Frame, box types.Rect) error {
	if box.Degenerate() {
		return ErrTrackerInit
	}
	h.box = box
	return nil
}

func (h *HoldTracker) Update(types.Frame) (types.Rect, bool) {
	return h.box, !h.closed
}

func (h *HoldTracker) Reinit(frame types.Frame, box types.Rect) error {
	return h.Init(frame, box)
}

func (h *HoldTracker) Close() error {
	h.closed = true
	return nil
}
