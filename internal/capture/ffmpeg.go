// Package capture reads frames from an ffmpeg MJPEG pipe.
package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/andresmejia3/facetrail/internal/types"
	"github.com/andresmejia3/facetrail/internal/utils"
	"github.com/disintegration/imaging"
)

const megabyte = 1024 * 1024

// FFmpegSource decodes a stream of concatenated JPEG frames, usually the
// stdout of `ffmpeg -f image2pipe -vcodec mjpeg`.
type FFmpegSource struct {
	cmd     *exec.Cmd
	stderr  bytes.Buffer
	out     io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

// OpenFFmpeg starts ffmpeg on path and returns a source over its frames.
func OpenFFmpeg(ctx context.Context, path string) (*FFmpegSource, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	s := &FFmpegSource{cmd: utils.NewFFmpegCmd(ctx, path)}
	s.cmd.Stderr = &s.stderr

	out, err := s.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := s.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	s.out = out
	s.scanner = newScanner(out)
	return s, nil
}

// NewReaderSource reads JPEG frames from r. Closing the source closes r when it is an io.Closer.
func NewReaderSource(r io.Reader) *FFmpegSource {
	s := &FFmpegSource{scanner: newScanner(r)}
	if rc, ok := r.(io.ReadCloser); ok {
		s.out = rc
	}
	return s
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)
	return scanner
}

// Read returns the next frame. It returns types.ErrEndOfStream once the pipe is
// drained; a frame that fails to decode is reported as a plain error and the
// next call moves on to the following frame.
func (s *FFmpegSource) Read() (types.Frame, error) {
	if s.done {
		return types.Frame{}, types.ErrEndOfStream
	}
	if !s.scanner.Scan() {
		s.done = true
		if err := s.scanner.Err(); err != nil {
			return types.Frame{}, fmt.Errorf("frame scanner failed: %w", err)
		}
		return types.Frame{}, types.ErrEndOfStream
	}

	img, err := imaging.Decode(bytes.NewReader(s.scanner.Bytes()))
	if err != nil {
		return types.Frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	return types.Frame{Captured: time.Now(), Image: img}, nil
}

// Close stops ffmpeg and releases the pipe. ffmpeg's own error output is
// included when it exited abnormally.
func (s *FFmpegSource) Close() error {
	if s.out != nil {
		s.out.Close() // Ensure pipe is closed to prevent leaks/zombies
	}
	if s.cmd == nil {
		return nil
	}
	if err := s.cmd.Wait(); err != nil && s.stderr.Len() > 0 {
		return fmt.Errorf("ffmpeg: %w: %s", err, bytes.TrimSpace(s.stderr.Bytes()))
	}
	return nil
}
