package persist

import (
	"context"

	"github.com/andresmejia3/facetrail/internal/types"
	"github.com/rs/zerolog"
)

// Catalog records sightings somewhere queryable. store.Store implements it.
type Catalog interface {
	InsertSighting(ctx context.Context, runID string, s types.Sighting, cropPath, alignedPath string) error
}

// Recorder persists a sighting to its FileStore and then to the optional Catalog.
type Recorder struct {
	Files   *FileStore
	Catalog Catalog
	RunID   string
	log     zerolog.Logger
}

// NewRecorder returns a Recorder. catalog may be nil.
func NewRecorder(files *FileStore, catalog Catalog, runID string, log zerolog.Logger) *Recorder {
	return &Recorder{Files: files, Catalog: catalog, RunID: runID, log: log}
}

// Persist implements tracking.Persister. A catalog failure is logged and not returned,
// the files on disk are the primary output.
func (r *Recorder) Persist(ctx context.Context, s types.Sighting) error {
	a, err := r.Files.Save(s)
	if err != nil {
		return err
	}
	r.log.Info().
		Uint64("track", s.TrackID).
		Str("crop", a.CropPath).
		Str("aligned", a.AlignedPath).
		Float64("score", s.Score).
		Float64("confidence", s.Detection.Confidence).
		Msg("save face")

	if r.Catalog == nil {
		return nil
	}
	if err := r.Catalog.InsertSighting(ctx, r.RunID, s, a.CropPath, a.AlignedPath); err != nil {
		r.log.Warn().Err(err).Uint64("track", s.TrackID).Msg("failed to catalog sighting")
	}
	return nil
}
