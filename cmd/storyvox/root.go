package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"storyvox/internal/config"
	"storyvox/version"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "storyvox",
	Short: "Audiobook pipeline: chapter segmentation and multi-voice TTS",
	Long: `Storyvox turns uploaded books into multi-voice audiobooks.

The pipeline includes:
  - Chapter structure recovery with heuristic and AI-assisted detection
  - Character detection and per-character voice casting
  - Chunked text-to-speech synthesis across multiple providers
  - Queue-driven workers with resumable, idempotent chapter jobs`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.storyvox/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// Local .env is optional; real deployments set env vars directly.
		_ = godotenv.Load()
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(regenCmd)
	rootCmd.AddCommand(configCmd)
}

func newLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Manager, *config.Config, error) {
	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	return cm, cm.Get(), nil
}
