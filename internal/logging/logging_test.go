package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, _, err := New("loud", "")
	assert.Error(t, err)
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facetrail.log")

	logger, closer, err := New("debug", path)
	require.NoError(t, err)
	camLogger := ForCamera(logger, "door")
	camLogger.Info().Uint64("track", 7).Msg("stop tracking face")
	logger.Trace().Msg("below level")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "door", entry["camera"])
	assert.Equal(t, "stop tracking face", entry["message"])
	assert.Equal(t, float64(7), entry["track"])
	assert.Equal(t, "info", entry["level"])
}

func TestEmptyLevelDefaultsToInfo(t *testing.T) {
	logger, closer, err := New("", "")
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
