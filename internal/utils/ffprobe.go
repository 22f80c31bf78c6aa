package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var errNoVideoStream = errors.New("no video stream")

type ffprobeStreams struct {
	Streams []map[string]string `json:"streams"`
}

// CountFrames estimates the number of video frames in path for progress
// reporting. It reads the container metadata first and falls back to counting
// packets, which decodes the whole file. It returns 0 when neither works.
func CountFrames(ctx context.Context, path string, log zerolog.Logger) int {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		log.Warn().Msg("ffprobe not found, progress will not show a total")
		return 0
	}

	n, err := probeCount(ctx, path, "nb_frames")
	if err == nil && n > 0 {
		return n
	}
	log.Debug().Err(err).Str("input", path).Msg("frame count missing from metadata")

	log.Info().Str("input", path).Msg("counting frames, this may take a moment")
	n, err = probeCount(ctx, path, "nb_read_packets", "-count_packets")
	if err != nil {
		log.Warn().Err(err).Str("input", path).Msg("failed to count frames")
		return 0
	}
	return n
}

func probeCount(ctx context.Context, path, field string, extra ...string) (int, error) {
	args := append([]string{"-v", "error", "-select_streams", "v:0"}, extra...)
	args = append(args, "-show_entries", "stream="+field, "-of", "json", path)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return 0, fmt.Errorf("ffprobe: %w: %s", err, msg)
		}
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseStreamCount(out, field)
}

// parseStreamCount reads field of the first stream in ffprobe's JSON output.
// ffprobe reports counts as strings, and "N/A" when unknown.
func parseStreamCount(out []byte, field string) (int, error) {
	var res ffprobeStreams
	if err := json.Unmarshal(out, &res); err != nil {
		return 0, fmt.Errorf("ffprobe output: %w", err)
	}
	if len(res.Streams) == 0 {
		return 0, errNoVideoStream
	}
	n, err := strconv.Atoi(res.Streams[0][field])
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", field, err)
	}
	return n, nil
}
