// Package tracking fuses periodic face detections with per-frame visual
// trackers. It decides when a track is born, which detections continue it,
// which of its frames is the best one, and when it retires.
package tracking

import (
	"context"
	"image"
	"time"

	"github.com/andresmejia3/facetrail/internal/quality"
	"github.com/andresmejia3/facetrail/internal/types"
	"github.com/rs/zerolog"
)

// ScoreFunc rates the face inside box on img; higher is better.
type ScoreFunc func(img image.Image, box types.Rect) (float64, error)

// Persister receives every retired track exactly once.
type Persister interface {
	Persist(ctx context.Context, s types.Sighting) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, s types.Sighting) error

func (f PersisterFunc) Persist(ctx context.Context, s types.Sighting) error { return f(ctx, s) }

// Config wires an Engine to its collaborators.
type Config struct {
	Camera     string
	NewTracker Factory   // defaults to NewHoldTracker
	Score      ScoreFunc // defaults to quality.Score
	Persister  Persister
	Logger     *zerolog.Logger
	Now        func() time.Time
}

// CycleStats summarizes one detection cycle.
type CycleStats struct {
	Detections int
	Rejected   int
	Spawned    int
	Continued  int
	Retired    int
}

// Engine is the track lifecycle manager of one camera loop.
type Engine struct {
	cfg   Config
	log   zerolog.Logger
	pool  *Pool
	cycle uint64
	// cycle in which each live track was last matched, keyed by id
	matchedIn map[uint64]uint64
}

// NewEngine returns an Engine with an empty pool.
func NewEngine(cfg Config) *Engine {
	if cfg.NewTracker == nil {
		cfg.NewTracker = NewHoldTracker
	}
	if cfg.Score == nil {
		cfg.Score = quality.Score
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Engine{
		cfg:       cfg,
		log:       log,
		pool:      NewPool(),
		matchedIn: make(map[uint64]uint64),
	}
}

// Tracks returns a snapshot of the live tracks in pool order.
func (e *Engine) Tracks() []Snapshot {
	return e.pool.Snapshots()
}

// Advance lets every tracker follow its face onto frame. It never spawns,
// retires or re-scores a track.
func (e *Engine) Advance(frame types.Frame) {
	for _, t := range e.pool.tracks {
		box, ok := t.tracker.Update(frame)
		if !ok {
			e.log.Debug().Uint64("track", t.ID).Int("frame", frame.Index).Msg("tracker lost target, keeping last box")
			continue
		}
		t.Box = box
	}
}

// Reconcile applies one detection cycle: detections that continue a track refresh
// and re-seed it, the others spawn new tracks, and every track left without a
// detection retires. Spawns and continuations are applied before retirement.
func (e *Engine) Reconcile(ctx context.Context, frame types.Frame, detections []types.Detection) CycleStats {
	e.cycle++
	stats := CycleStats{Detections: len(detections)}

	bounds := types.RectFromImage(frame.Bounds())
	boxes := make([]types.Rect, len(detections))
	for i, d := range detections {
		if visible(d.Box, bounds) {
			boxes[i] = d.Box
		}
		// invisible boxes stay zero, which Associate rejects
	}

	for i, match := range Associate(boxes, e.pool.Boxes()) {
		det := detections[i]
		switch match {
		case Rejected:
			stats.Rejected++
			e.log.Debug().Interface("box", det.Box).Int("frame", frame.Index).Msg("rejected degenerate detection")
		case NewTrack:
			if e.spawn(frame, det) {
				stats.Spawned++
			}
		default:
			e.confirm(e.pool.At(match), frame, det)
			stats.Continued++
		}
	}

	for _, t := range e.pool.removeIf(func(t *Track) bool { return e.matchedIn[t.ID] != e.cycle }) {
		e.retire(ctx, t)
		stats.Retired++
	}
	return stats
}

// Flush retires every live track. It is called when a loop stops so that no
// sighting is lost.
func (e *Engine) Flush(ctx context.Context) int {
	removed := e.pool.removeIf(func(*Track) bool { return true })
	for _, t := range removed {
		e.retire(ctx, t)
	}
	return len(removed)
}

func (e *Engine) spawn(frame types.Frame, det types.Detection) bool {
	tracker, err := e.cfg.NewTracker()
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to create tracker")
		return false
	}
	if err := tracker.Init(frame, det.Box); err != nil {
		tracker.Close()
		e.log.Warn().Err(err).Interface("box", det.Box).Msg("failed to start tracker")
		return false
	}

	score, err := e.cfg.Score(frame.Image, det.Box)
	if err != nil {
		e.log.Warn().Err(err).Interface("box", det.Box).Msg("failed to score new face")
		score = 0
	}

	t := &Track{
		Box:           det.Box,
		BestFrame:     frame.Clone(),
		BestDetection: det,
		BestScore:     score,
		FirstFrame:    frame.Index,
		LastSeenFrame: frame.Index,
		Confirmations: 1,
		tracker:       tracker,
	}
	e.pool.add(t)
	e.matchedIn[t.ID] = e.cycle

	e.log.Info().Uint64("track", t.ID).Float64("score", score).Float64("confidence", det.Confidence).Msg("start tracking face")
	return true
}

func (e *Engine) confirm(t *Track, frame types.Frame, det types.Detection) {
	e.matchedIn[t.ID] = e.cycle
	t.Box = det.Box
	t.LastSeenFrame = frame.Index
	t.Confirmations++

	// the detector wins over the tracker's drift: rebuild from the fresh box
	if err := t.tracker.Reinit(frame, det.Box); err != nil {
		e.log.Warn().Err(err).Uint64("track", t.ID).Msg("failed to reinitialize tracker")
	}

	score, err := e.cfg.Score(frame.Image, det.Box)
	if err != nil {
		e.log.Warn().Err(err).Uint64("track", t.ID).Msg("failed to score face")
		return
	}
	if t.offer(frame, det, score) {
		e.log.Debug().Uint64("track", t.ID).Float64("score", score).Msg("update selected face")
	}
}

func (e *Engine) retire(ctx context.Context, t *Track) {
	delete(e.matchedIn, t.ID)
	e.log.Info().Uint64("track", t.ID).Float64("score", t.BestScore).Int("confirmations", t.Confirmations).Msg("stop tracking face")

	if e.cfg.Persister != nil {
		s := types.Sighting{
			Camera:        e.cfg.Camera,
			TrackID:       t.ID,
			Frame:         t.BestFrame,
			Detection:     t.BestDetection,
			Score:         t.BestScore,
			FirstFrame:    t.FirstFrame,
			LastFrame:     t.LastSeenFrame,
			Confirmations: t.Confirmations,
			RetiredAt:     e.cfg.Now(),
		}
		if err := e.cfg.Persister.Persist(ctx, s); err != nil {
			e.log.Error().Err(err).Uint64("track", t.ID).Msg("failed to persist face")
		}
	}

	if err := t.tracker.Close(); err != nil {
		e.log.Debug().Err(err).Uint64("track", t.ID).Msg("failed to release tracker")
	}
	t.tracker = nil
}

// visible reports whether box has extent and intersects the frame. A frame
// without an image accepts any non-degenerate box.
func visible(box, frame types.Rect) bool {
	if box.Degenerate() {
		return false
	}
	if frame.Degenerate() {
		return true
	}
	return box.X1 < frame.X2 && box.X2 > frame.X1 && box.Y1 < frame.Y2 && box.Y2 > frame.Y1
}
