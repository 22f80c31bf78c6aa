package store

import (
	"context"
	"fmt"
	"time"

	"github.com/andresmejia3/facetrail/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store manages the PostgreSQL sightings catalog. It is safe for concurrent use
// by several camera loops.
type Store struct {
	pool *pgxpool.Pool
}

// Sighting is one cataloged face, as listed by the CLI.
type Sighting struct {
	ID          int64
	RunID       string
	Camera      string
	TrackID     int64
	Score       float64
	Confidence  float64
	Box         []float64
	CropPath    string
	AlignedPath string
	FirstFrame  int
	LastFrame   int
	RetiredAt   time.Time
}

// New establishes a connection pool and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// initSchema creates the necessary tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS cameras (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			last_started_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS sightings (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			camera_id TEXT REFERENCES cameras(id),
			track_id BIGINT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			box DOUBLE PRECISION[] NOT NULL,
			crop_path TEXT NOT NULL,
			aligned_path TEXT NOT NULL DEFAULT '',
			first_frame INT NOT NULL,
			last_frame INT NOT NULL,
			retired_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS sightings_camera_idx ON sightings (camera_id, retired_at DESC);
	`
	_, err := pool.Exec(ctx, query)
	return err
}

// Close terminates all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureCamera registers the camera. If it exists, its source and start time are updated.
func (s *Store) EnsureCamera(ctx context.Context, id, source string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cameras (id, source, last_started_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET last_started_at = NOW(), source = EXCLUDED.source
	`, id, source)
	return err
}

// InsertSighting records the best face of a retired track.
func (s *Store) InsertSighting(ctx context.Context, runID string, sg types.Sighting, cropPath, alignedPath string) error {
	b := sg.Detection.Box
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sightings (run_id, camera_id, track_id, score, confidence, box, crop_path, aligned_path, first_frame, last_frame, retired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, runID, sg.Camera, int64(sg.TrackID), sg.Score, sg.Detection.Confidence,
		[]float64{b.X1, b.Y1, b.X2, b.Y2}, cropPath, alignedPath, sg.FirstFrame, sg.LastFrame, sg.RetiredAt)
	return err
}

// ListSightings returns the most recent sightings, newest first. An empty camera lists all cameras.
func (s *Store) ListSightings(ctx context.Context, camera string, limit int) ([]Sighting, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, camera_id, track_id, score, confidence, box, crop_path, aligned_path, first_frame, last_frame, retired_at
		FROM sightings
		WHERE $1 = '' OR camera_id = $1
		ORDER BY retired_at DESC, id DESC
		LIMIT $2
	`, camera, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Sighting, error) {
		var sg Sighting
		err := row.Scan(&sg.ID, &sg.RunID, &sg.Camera, &sg.TrackID, &sg.Score, &sg.Confidence, &sg.Box,
			&sg.CropPath, &sg.AlignedPath, &sg.FirstFrame, &sg.LastFrame, &sg.RetiredAt)
		return sg, err
	})
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		DROP TABLE IF EXISTS sightings CASCADE;
		DROP TABLE IF EXISTS cameras CASCADE;
	`)
	return err
}
