package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/adalundhe/scriptorium/core/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "scriptorium",
	Short: "Scriptorium - a PowerShell script assistant service",
	Long: `Scriptorium serves conversational agents for PowerShell scripting:
grounded chat over a script knowledge base, script generation, security
review, and structured script analysis.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to config file (default: built-in defaults plus environment)")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
