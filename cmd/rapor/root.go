package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rapor/internal/api"
	"github.com/jackzampolin/rapor/internal/config"
	"github.com/jackzampolin/rapor/internal/home"
	"github.com/jackzampolin/rapor/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "rapor",
	Short: "Report-card OCR and subject score extraction",
	Long: `Rapor reads scanned report cards (PDF or image), recognizes their text
and extracts a score for every subject in a fixed vocabulary.

It runs as:
  - a batch job over a folder of documents (rapor scan)
  - a one-off extraction of a single file (rapor extract)
  - an HTTP server with an upload page (rapor serve)

OCR uses a primary engine (PaddleOCR) and falls back to Tesseract on a
binarized copy of the page when the primary result is too short.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.rapor/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "rapor home directory (default: $RAPOR_HOME or ~/.rapor)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml, json or text",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	// Set output format and logger before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if _, ok := api.ParseOutputFormat(outputFormat); !ok {
			return fmt.Errorf("invalid --output %q: want yaml, json or text", outputFormat)
		}
		api.SetOutputFormat(outputFormat)

		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.ToLower(logLevel))); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the home directory and loads the effective config.
// An explicit --config wins; otherwise {home}/config.yaml is used when present.
func loadConfig() (*config.Config, *home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}

	file := cfgFile
	if file == "" && h.ConfigExists() {
		file = h.ConfigPath()
	}

	mgr, err := config.NewManager(file)
	if err != nil {
		return nil, nil, err
	}
	if used := mgr.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config", "file", used)
	}

	cfg := mgr.Get()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, h, nil
}
