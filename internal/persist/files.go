// Package persist writes the best face of every retired track to disk and,
// optionally, records it in the sightings catalog.
package persist

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"

	"github.com/andresmejia3/facetrail/internal/align"
	"github.com/andresmejia3/facetrail/internal/types"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

// AlignFunc produces the aligned face, or ok=false when the face cannot be aligned.
type AlignFunc func(img image.Image, landmarks [5]types.Point) (*image.RGBA, bool)

// Artifacts are the files written for one sighting. AlignedPath is empty when
// the face could not be aligned.
type Artifacts struct {
	CropPath    string
	AlignedPath string
}

// FileStore lays out one camera's output:
//
//	<dir>/original/<track>.jpg  crop of the best frame at the detection box
//	<dir>/<track>.jpg           aligned face
type FileStore struct {
	Dir     string
	Quality int
	Align   AlignFunc
	log     zerolog.Logger
}

// NewFileStore returns a FileStore writing under root/camera.
func NewFileStore(root, camera string, log zerolog.Logger) *FileStore {
	return &FileStore{
		Dir:     filepath.Join(root, camera),
		Quality: 95,
		Align:   align.Face,
		log:     log,
	}
}

// Prepare creates the output directories and removes images left by a previous run.
func (fs *FileStore) Prepare() error {
	original := filepath.Join(fs.Dir, "original")
	if err := os.MkdirAll(original, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	for _, dir := range []string{fs.Dir, original} {
		stale, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
		if err != nil {
			return err
		}
		for _, f := range stale {
			if err := os.Remove(f); err != nil {
				fs.log.Warn().Err(err).Str("path", f).Msg("failed to remove stale face")
			}
		}
	}
	return nil
}

// Save writes the crop and, when alignment succeeds, the aligned face.
// Only a failure to write the crop is returned as an error.
func (fs *FileStore) Save(s types.Sighting) (Artifacts, error) {
	var out Artifacts
	if s.Frame.Image == nil {
		return out, fmt.Errorf("track %d has no frame", s.TrackID)
	}

	roi := s.Detection.Box.Image().Intersect(s.Frame.Image.Bounds())
	if roi.Empty() {
		return out, fmt.Errorf("track %d: face box %v is outside the frame", s.TrackID, s.Detection.Box)
	}

	name := strconv.FormatUint(s.TrackID, 10) + ".jpg"
	cropPath := filepath.Join(fs.Dir, "original", name)
	if err := imaging.Save(imaging.Crop(s.Frame.Image, roi), cropPath, imaging.JPEGQuality(fs.Quality)); err != nil {
		return out, fmt.Errorf("writing crop: %w", err)
	}
	out.CropPath = cropPath

	if fs.Align == nil {
		return out, nil
	}
	face, ok := fs.Align(s.Frame.Image, s.Detection.Landmarks)
	if !ok {
		fs.log.Debug().Uint64("track", s.TrackID).Msg("unable to align face")
		return out, nil
	}
	alignedPath := filepath.Join(fs.Dir, name)
	if err := imaging.Save(face, alignedPath, imaging.JPEGQuality(fs.Quality)); err != nil {
		fs.log.Warn().Err(err).Uint64("track", s.TrackID).Str("path", alignedPath).Msg("fail to save aligned face")
		return out, nil
	}
	out.AlignedPath = alignedPath
	return out, nil
}
