package camera

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
)

// Unit is one camera to supervise. Open builds its loop; it runs on the
// goroutine that will run the loop, so display setup lands on the right thread.
type Unit struct {
	Camera string
	Open   func(ctx context.Context) (*Loop, error)
}

// Result is the outcome of one camera.
type Result struct {
	Camera string
	Stats  Stats
	Err    error
}

// Supervisor runs a set of cameras. The primary camera runs on the calling
// goroutine; when it stops, every other camera is stopped too.
type Supervisor struct {
	Units   []Unit
	Primary int
	Log     zerolog.Logger
}

// Run blocks until the primary camera stops and all others have flushed their
// tracks. A camera that fails to open is logged and does not affect the rest;
// only the primary's failure is returned.
func (s *Supervisor) Run(ctx context.Context) ([]Result, error) {
	if len(s.Units) == 0 {
		return nil, errors.New("no cameras to run")
	}
	if s.Primary < 0 || s.Primary >= len(s.Units) {
		return nil, fmt.Errorf("primary camera index %d out of range", s.Primary)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Result, len(s.Units))
	var wg sync.WaitGroup
	for i, u := range s.Units {
		if i == s.Primary {
			continue
		}
		wg.Add(1)
		go func(i int, u Unit) {
			defer wg.Done()
			results[i] = s.run(ctx, u)
			if err := results[i].Err; err != nil {
				s.Log.Error().Err(err).Str("camera", u.Camera).Msg("camera stopped")
			}
		}(i, u)
	}

	results[s.Primary] = s.run(ctx, s.Units[s.Primary])
	cancel()
	wg.Wait()

	return results, results[s.Primary].Err
}

// run keeps a panic inside one camera from crossing into the others. The
// loop's resources are released by its own deferred cleanup while unwinding.
func (s *Supervisor) run(ctx context.Context, u Unit) (res Result) {
	res.Camera = u.Camera
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("camera %s panicked: %v", u.Camera, r)
			s.Log.Error().Str("camera", u.Camera).Interface("panic", r).
				Bytes("stack", debug.Stack()).Msg("camera loop panicked")
		}
	}()

	loop, err := u.Open(ctx)
	if err != nil {
		res.Err = fmt.Errorf("camera %s: %w", u.Camera, err)
		return res
	}
	res.Stats = loop.Run(ctx)
	return res
}
