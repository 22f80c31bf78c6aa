// Package camera runs one control loop per camera: read a frame, advance the
// trackers, and every few frames reconcile them against fresh detections.
package camera

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/andresmejia3/facetrail/internal/tracking"
	"github.com/andresmejia3/facetrail/internal/types"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

// Source yields frames. Read returns types.ErrEndOfStream when no frame will
// ever follow; any other error is treated as transient.
type Source interface {
	Read() (types.Frame, error)
	Close() error
}

// Detector finds faces in a frame.
type Detector interface {
	Detect(ctx context.Context, frame types.Frame) ([]types.Detection, error)
}

// Display shows frames with their tracks. Show reports whether the user asked to quit.
type Display interface {
	Show(frame types.Frame, tracks []tracking.Snapshot) bool
	Close() error
}

// Stats counts what a loop did over its lifetime.
type Stats struct {
	Frames     int
	Failures   int
	Cycles     int
	Detections int
	Spawned    int
	Retired    int
}

// Loop is the control loop of one camera. A Loop is run once.
type Loop struct {
	Camera   string
	Source   Source
	Detector Detector
	Engine   *tracking.Engine
	// Period is the number of frames between detection cycles.
	Period int
	// Width and Height resize every frame when both are positive.
	Width, Height int
	MinConfidence float64
	Display       Display
	// RetryDelay is the pause after a failed read.
	RetryDelay time.Duration
	// OnFrame, when set, is called after each frame has been processed.
	OnFrame func(types.Frame)
	// Resources are closed, in order, when the loop ends.
	Resources []io.Closer
	Log       zerolog.Logger
}

// Run processes frames until ctx is cancelled, the source ends or the display
// asks to quit. Live tracks are always flushed before Run returns.
func (l *Loop) Run(ctx context.Context) Stats {
	var stats Stats
	defer l.release()

	period := l.Period
	if period < 1 {
		period = 1
	}

	index := 0
	for {
		select {
		case <-ctx.Done():
			l.Log.Info().Msg("stopping camera")
			stats.Retired += l.flush(ctx)
			return stats
		default:
		}

		frame, err := l.Source.Read()
		if errors.Is(err, types.ErrEndOfStream) {
			l.Log.Info().Int("frames", index).Msg("end of stream")
			stats.Retired += l.flush(ctx)
			return stats
		}
		if err != nil {
			stats.Failures++
			l.Log.Warn().Err(err).Msg("capture video failed")
			l.pause(ctx)
			continue
		}

		frame.Index = index
		index++
		stats.Frames++
		if l.Width > 0 && l.Height > 0 {
			frame.Image = imaging.Resize(frame.Image, l.Width, l.Height, imaging.Linear)
		}

		l.Engine.Advance(frame)
		if l.Log.GetLevel() <= zerolog.DebugLevel {
			l.Log.Debug().Msg(trackingLine(frame.Index, l.Engine.Tracks()))
		}

		detectionFrame := frame.Index%period == 0
		if detectionFrame {
			dets, err := l.Detector.Detect(ctx, frame)
			if errors.Is(err, types.ErrDetectorExited) {
				l.Log.Error().Err(err).Msg("face detector exited, stopping camera")
				stats.Retired += l.flush(ctx)
				return stats
			}
			if err != nil {
				// A detector fault skips the cycle; tracks keep their state
				l.Log.Warn().Err(err).Int("frame", frame.Index).Msg("face detection failed")
			} else {
				dets = l.filter(dets)
				cs := l.Engine.Reconcile(ctx, frame, dets)
				stats.Cycles++
				stats.Detections += cs.Detections
				stats.Spawned += cs.Spawned
				stats.Retired += cs.Retired
				l.Log.Info().
					Int("frame", frame.Index).
					Int("detected", cs.Detections).
					Int("spawned", cs.Spawned).
					Int("continued", cs.Continued).
					Int("retired", cs.Retired).
					Msg("detection cycle")
			}
		}

		if l.OnFrame != nil {
			l.OnFrame(frame)
		}

		if detectionFrame && l.Display != nil && l.Display.Show(frame, l.Engine.Tracks()) {
			l.Log.Info().Msg("quit requested")
			stats.Retired += l.flush(ctx)
			return stats
		}
	}
}

// filter drops detections under the confidence threshold.
func (l *Loop) filter(dets []types.Detection) []types.Detection {
	if l.MinConfidence <= 0 {
		return dets
	}
	kept := dets[:0]
	for _, d := range dets {
		if d.Confidence >= l.MinConfidence {
			kept = append(kept, d)
		}
	}
	return kept
}

// flush retires every live track. Persistence ignores cancellation so that
// sightings are still written while the process shuts down.
func (l *Loop) flush(ctx context.Context) int {
	n := l.Engine.Flush(context.WithoutCancel(ctx))
	if n > 0 {
		l.Log.Info().Int("tracks", n).Msg("flushed live tracks")
	}
	return n
}

func (l *Loop) pause(ctx context.Context) {
	if l.RetryDelay <= 0 {
		return
	}
	t := time.NewTimer(l.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (l *Loop) release() {
	if l.Display != nil {
		if err := l.Display.Close(); err != nil {
			l.Log.Debug().Err(err).Msg("failed to close display")
		}
	}
	if err := l.Source.Close(); err != nil {
		l.Log.Warn().Err(err).Msg("failed to close source")
	}
	for _, r := range l.Resources {
		if err := r.Close(); err != nil {
			l.Log.Debug().Err(err).Msg("failed to release resource")
		}
	}
}

func trackingLine(index int, tracks []tracking.Snapshot) string {
	var b strings.Builder
	b.WriteString("frame #")
	b.WriteString(strconv.Itoa(index))
	b.WriteString(", tracking faces:")
	for _, t := range tracks {
		b.WriteString(" #")
		b.WriteString(strconv.FormatUint(t.ID, 10))
	}
	return b.String()
}
