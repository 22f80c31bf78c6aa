package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/andresmejia3/facetrail/internal/types"
	"github.com/andresmejia3/facetrail/internal/utils" // Using the SafeCommand wrapper
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

// maxResponse bounds a single reply so a corrupted length header cannot exhaust memory.
const maxResponse = 64 * 1024 * 1024

// Worker is an external face detector process. Frames go in on stdin as
// [uint32 length][JPEG]; replies come back on fd 3 as [uint32 length][JSON],
// where the JSON is either a list of faces or {"error": "..."}.
type Worker struct {
	ID          int
	Cmd         *utils.SafeCommand
	Stdin       io.WriteCloser
	DataPipe    io.ReadCloser
	JPEGQuality int
	Log         zerolog.Logger

	dead error // set once the process stopped answering
}

// New starts the detector command. Each camera loop owns its own Worker.
func New(id int, log zerolog.Logger, name string, args ...string) (*Worker, error) {
	cmd := utils.NewSafeCommand(name, args...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	cmd.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &Worker{
		ID:          id,
		Cmd:         cmd,
		Stdin:       stdin,
		DataPipe:    r,
		JPEGQuality: 90,
		Log:         log,
	}, nil
}

// Communicate sends one request and reads one reply.
func (w *Worker) Communicate(data []byte) ([]byte, error) {
	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // the child died before answering
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxResponse {
		return nil, fmt.Errorf("worker %d reply too large: %d bytes", w.ID, respLen)
	}
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// ProcessFrame sends an encoded frame and decodes the faces found in it.
// Once the process stops answering every call fails with types.ErrDetectorExited.
func (w *Worker) ProcessFrame(jpeg []byte) ([]types.FaceResult, error) {
	if w.dead != nil {
		return nil, w.dead
	}
	resp, err := w.Communicate(jpeg)
	if err != nil {
		w.dead = fmt.Errorf("worker %d: %w: %v", w.ID, types.ErrDetectorExited, err)
		ev := w.Log.Error().Err(err).Int("worker", w.ID)
		if w.Cmd != nil && w.Cmd.Stderr.Len() > 0 {
			ev = ev.Str("worker_logs", w.Cmd.Stderr.String())
		}
		ev.Msg("detector worker crashed")
		return nil, w.dead
	}

	var faces []types.FaceResult
	if err := json.Unmarshal(resp, &faces); err != nil {
		// Check if it's an error object (e.g. {"error": "..."})
		var errorResult types.ErrorResult
		if json.Unmarshal(resp, &errorResult) == nil && errorResult.Error != "" {
			return nil, fmt.Errorf("detector worker error: %s", errorResult.Error)
		}
		return nil, fmt.Errorf("malformed worker reply: %w", err)
	}
	return faces, nil
}

// Detect encodes frame as JPEG and runs it through the worker.
func (w *Worker) Detect(_ context.Context, frame types.Frame) ([]types.Detection, error) {
	if frame.Image == nil {
		return nil, fmt.Errorf("frame %d has no image", frame.Index)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame.Image, imaging.JPEG, imaging.JPEGQuality(w.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encoding frame %d: %w", frame.Index, err)
	}

	faces, err := w.ProcessFrame(buf.Bytes())
	if err != nil {
		return nil, err
	}

	// worker coordinates are relative to the encoded image, which starts at (0,0)
	off := frame.Image.Bounds().Min
	dets := make([]types.Detection, len(faces))
	for i, f := range faces {
		d := f.Detection()
		d.Box.X1 += float64(off.X)
		d.Box.X2 += float64(off.X)
		d.Box.Y1 += float64(off.Y)
		d.Box.Y2 += float64(off.Y)
		for j := range d.Landmarks {
			d.Landmarks[j].X += float64(off.X)
			d.Landmarks[j].Y += float64(off.Y)
		}
		dets[i] = d
	}
	return dets, nil
}

// Close shuts the worker down and waits for the process to exit.
func (w *Worker) Close() error {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd == nil {
		return nil
	}
	return w.Cmd.Wait()
}
