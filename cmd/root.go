package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/facetrail/internal/logging"
	"github.com/andresmejia3/facetrail/internal/store"
	"github.com/andresmejia3/facetrail/internal/utils"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const defaultDBURL = "postgres://localhost:5432/facetrail"

var (
	// DB is the optional sighting catalog shared by subcommands
	DB *store.Store
	// Logger is the root logger; camera loops derive their own from it
	Logger = zerolog.Nop()

	dbURL     string
	logLevel  string
	logFile   string
	logCloser io.Closer
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "facetrail",
	Short:         "Multi-camera face tracking with best-frame capture",
	Version:       Version, // This enables the --version flag
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadDotEnv(".env"); err != nil {
			return err
		}
		logger, closer, err := logging.New(logLevel, logFile)
		if err != nil {
			return err
		}
		Logger, logCloser = logger, closer
		return nil
	},
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	err := rootCmd.ExecuteContext(ctx)
	stop()
	closeShared()
	if err != nil {
		utils.Die("facetrail failed", err, nil)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string for the sighting catalog (default: POSTGRES_* environment)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also append JSON logs to this file")
}

// loadDotEnv loads path into the environment when it exists. Variables already
// set are left alone.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// resolveDBURL returns the catalog connection string and whether the user
// configured one, either with --db or through POSTGRES_HOST.
func resolveDBURL() (string, bool) {
	if dbURL != "" {
		return dbURL, true
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name), true
	}
	// Fallback to local default if no env vars are present
	return defaultDBURL, false
}

// openCatalog connects DB. When required is false and no database was
// configured, the catalog stays disabled and nil is returned.
func openCatalog(ctx context.Context, required bool) error {
	url, configured := resolveDBURL()
	if !configured && !required {
		Logger.Info().Msg("no database configured, sightings are written to disk only")
		return nil
	}
	db, err := store.New(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	DB = db
	return nil
}

func closeShared() {
	if DB != nil {
		DB.Close()
		DB = nil
	}
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
}
