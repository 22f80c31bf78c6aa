package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/andresmejia3/facetrail/internal/capture"
	"github.com/andresmejia3/facetrail/internal/config"
	"github.com/andresmejia3/facetrail/internal/types"
	"github.com/andresmejia3/facetrail/internal/utils"
	"github.com/andresmejia3/facetrail/internal/vision"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// ReplayOptions holds the flags of the replay command
type ReplayOptions struct {
	InputPath     string
	Camera        string
	NthFrame      int
	Tracker       string
	Output        string
	Model         string
	DetectorCmd   string
	MinConfidence float64
	Width, Height int
}

var replayOpts ReplayOptions

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Track faces through a recorded video file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(cmd.Context(), replayOpts)
	},
}

func init() {
	replayCmd.Flags().StringVarP(&replayOpts.InputPath, "input", "i", "", "Path to video")
	replayCmd.Flags().StringVar(&replayOpts.Camera, "camera", "", "Camera id used for the output directory (default: derived from the video)")
	replayCmd.Flags().IntVarP(&replayOpts.NthFrame, "nth-frame", "n", config.DefaultDetectionPeriod, "Detection period (e.g. detect faces every 5th frame)")
	replayCmd.Flags().StringVarP(&replayOpts.Tracker, "tracker", "t", config.DefaultTracker, "Tracker backend ("+strings.Join(vision.TrackerNames, ", ")+")")
	replayCmd.Flags().StringVarP(&replayOpts.Output, "output", "o", "", "Output directory (default: FACETRAIL_OUTPUT or ./faces)")
	replayCmd.Flags().StringVar(&replayOpts.Model, "model", config.DefaultModel, "YuNet face detection model")
	replayCmd.Flags().StringVar(&replayOpts.DetectorCmd, "detector-cmd", "", "Run this external detector instead of the built-in model")
	replayCmd.Flags().Float64Var(&replayOpts.MinConfidence, "min-confidence", config.DefaultMinConfidence, "Discard detections scoring below this")
	replayCmd.Flags().IntVar(&replayOpts.Width, "width", 0, "Resize frames to this width (requires --height)")
	replayCmd.Flags().IntVar(&replayOpts.Height, "height", 0, "Resize frames to this height (requires --width)")

	replayCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(replayCmd)
}

// runReplay streams the video through ffmpeg into a single camera loop.
func runReplay(ctx context.Context, opts ReplayOptions) error {
	if err := validateReplayFlags(&opts); err != nil {
		return err
	}

	videoID, err := utils.GenerateVideoID(opts.InputPath)
	if err != nil {
		return fmt.Errorf("failed to generate video ID: %w", err)
	}
	if opts.Camera == "" {
		opts.Camera = "replay-" + videoID[:12]
	}
	if err := openCatalog(ctx, false); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "📼 Processing Video ID: %s as camera %s\n", videoID[:12], opts.Camera)

	// Get total frames for progress bar
	totalVideoFrames := utils.CountFrames(ctx, opts.InputPath, Logger)
	if totalVideoFrames <= 0 {
		// Fallback to a spinner if ffprobe fails
		totalVideoFrames = -1
	}

	src, err := capture.OpenFFmpeg(ctx, opts.InputPath)
	if err != nil {
		return err
	}

	p := pipeline{
		Camera:  opts.Camera,
		Source:  opts.InputPath,
		Period:  opts.NthFrame,
		Tracker: opts.Tracker,
		Width:   opts.Width,
		Height:  opts.Height,
		Output:  outputDir(opts.Output),
		Detector: config.Detector{
			Model:         opts.Model,
			Command:       strings.Fields(opts.DetectorCmd),
			MinConfidence: opts.MinConfidence,
		},
		RunID: uuid.NewString(),
	}
	loop, err := buildLoop(ctx, src, p)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(totalVideoFrames,
		progressbar.OptionSetDescription("🔍 facetrail replay"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)
	loop.OnFrame = func(types.Frame) { bar.Add(1) }

	start := time.Now()
	stats := loop.Run(ctx)
	bar.Finish()

	fmt.Fprintf(os.Stderr, "\n🏁 Replay Complete in %s. %d frames, %d detection cycles, %d faces saved to %s\n",
		fmtTime(time.Since(start).Seconds()), stats.Frames, stats.Cycles, stats.Retired, p.Output)
	return nil
}

// validateReplayFlags ensures all CLI arguments are valid before starting heavy processes.
func validateReplayFlags(opts *ReplayOptions) error {
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %w", err)
		}
		return fmt.Errorf("unable to access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path %s is a directory, expected a video file", opts.InputPath)
	}
	if opts.NthFrame < 1 {
		return fmt.Errorf("invalid nth-frame interval: must be >= 1, got %d", opts.NthFrame)
	}
	if !slices.Contains(vision.TrackerNames, opts.Tracker) {
		return fmt.Errorf("unknown tracker %q (want one of %s)", opts.Tracker, strings.Join(vision.TrackerNames, ", "))
	}
	if opts.MinConfidence < 0 || opts.MinConfidence > 1.0 {
		return fmt.Errorf("invalid min-confidence: must be between 0.0 and 1.0, got %f", opts.MinConfidence)
	}
	if (opts.Width > 0) != (opts.Height > 0) || opts.Width < 0 || opts.Height < 0 {
		return fmt.Errorf("resize needs both --width and --height, got %dx%d", opts.Width, opts.Height)
	}
	if strings.ContainsAny(opts.Camera, `/\`) {
		return fmt.Errorf("camera id %q must be usable as a directory name", opts.Camera)
	}
	return nil
}
