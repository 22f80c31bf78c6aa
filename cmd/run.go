package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/andresmejia3/facetrail/internal/camera"
	"github.com/andresmejia3/facetrail/internal/config"
	"github.com/andresmejia3/facetrail/internal/vision"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// RunOptions holds the flags of the run command
type RunOptions struct {
	ConfigPath string
	Output     string
	Headless   bool
	RetryDelay time.Duration
}

var runOpts RunOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track faces on every configured camera until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCameras(cmd.Context(), runOpts)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOpts.ConfigPath, "config", "c", "cameras.yaml", "Camera configuration file")
	runCmd.Flags().StringVarP(&runOpts.Output, "output", "o", "", "Output directory (overrides the config file and FACETRAIL_OUTPUT)")
	runCmd.Flags().BoolVar(&runOpts.Headless, "headless", false, "Do not open a preview window for the primary camera")
	runCmd.Flags().DurationVar(&runOpts.RetryDelay, "retry-delay", 100*time.Millisecond, "Pause after a failed frame read")
	rootCmd.AddCommand(runCmd)
}

// runCameras starts one loop per configured camera. The primary camera runs on
// this goroutine so that its preview window stays on the main thread.
func runCameras(ctx context.Context, opts RunOptions) error {
	cfg, err := config.Load(opts.ConfigPath, vision.TrackerNames)
	if err != nil {
		return err
	}
	if opts.Output != "" {
		cfg.Output = opts.Output
	}
	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := openCatalog(ctx, false); err != nil {
		return err
	}

	runID := uuid.NewString()
	primary := cfg.Primary()
	fmt.Fprintf(os.Stderr, "📷 Run %s: starting %d camera(s), primary %q\n", runID[:8], len(cfg.Cameras), cfg.Cameras[primary].ID)

	units := make([]camera.Unit, len(cfg.Cameras))
	for i, cam := range cfg.Cameras {
		p := cameraPipeline(i, cam, cfg, runID)
		p.Show = i == primary && !opts.Headless
		p.RetryDelay = opts.RetryDelay
		units[i] = camera.Unit{
			Camera: cam.ID,
			Open: func(ctx context.Context) (*camera.Loop, error) {
				src, err := vision.OpenCapture(cam.Source)
				if err != nil {
					return nil, err
				}
				return buildLoop(ctx, src, p)
			},
		}
	}

	start := time.Now()
	sup := &camera.Supervisor{Units: units, Primary: primary, Log: Logger}
	results, err := sup.Run(ctx)
	printRunSummary(results, time.Since(start))
	return err
}

func cameraPipeline(index int, cam config.Camera, cfg *config.Config, runID string) pipeline {
	p := pipeline{
		Index:    index,
		Camera:   cam.ID,
		Source:   cam.Source,
		Period:   cam.Period(),
		Tracker:  cam.Tracker,
		Output:   cfg.Output,
		Detector: cfg.Detector,
		RunID:    runID,
	}
	if cam.Resize != nil {
		p.Width, p.Height = cam.Resize.Width, cam.Resize.Height
	}
	return p
}

func printRunSummary(results []camera.Result, elapsed time.Duration) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "📊 RUN SUMMARY (%s)\n", fmtTime(elapsed.Seconds()))
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "❌ %s: %v\n", r.Camera, r.Err)
			continue
		}
		fmt.Fprintf(os.Stderr, "🎥 %s: %d frames, %d detection cycles, %d faces tracked, %d retired\n",
			r.Camera, r.Stats.Frames, r.Stats.Cycles, r.Stats.Spawned, r.Stats.Retired)
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}
