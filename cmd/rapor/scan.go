package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rapor/internal/api"
	"github.com/jackzampolin/rapor/internal/pipeline"
)

var (
	scanInput string
	scanWatch bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Process every document in the input folder",
	Long: `Process every PDF and image in the input folder and write
{name}.txt and {name}_values.txt for each document.

Unsupported files and subdirectories are skipped. With batch.continue_on_error
(the default) a failing document is reported and the run continues.

With --watch the folder is processed once and then watched; new documents are
processed as they arrive until Ctrl+C.

Examples:
  rapor scan                         # Process ~/.rapor/input
  rapor scan --input ./rapor_kelas6  # Process a specific folder
  rapor scan --watch                 # Keep processing new arrivals`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, h, err := loadConfig()
		if err != nil {
			return err
		}
		if scanInput != "" {
			cfg.Paths.Input = scanInput
		}

		services, err := buildServices(cfg, h, logger)
		if err != nil {
			return err
		}
		if err := services.Engines.Init(ctx); err != nil {
			services.Engines.Close()
			return fmt.Errorf("engine initialization failed: %w", err)
		}
		defer services.Engines.Close()
		defer logMetrics(logger, services.Metrics)

		report, err := services.Batch.Run(ctx)
		if report != nil {
			if outErr := api.Output(report); outErr != nil {
				return outErr
			}
		}
		if err != nil {
			return err
		}

		if scanWatch {
			w := pipeline.NewWatcher(services.Batch, cfg.SettleDuration(), logger)
			if err := w.Run(ctx); err != nil && !pipeline.IsCancelled(err) {
				return err
			}
			return nil
		}

		if report.Failed > 0 {
			return fmt.Errorf("%d of %d documents failed", report.Failed, report.Processed+report.Failed)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanInput, "input", "", "input folder (default: paths.input or ~/.rapor/input)")
	scanCmd.Flags().BoolVar(&scanWatch, "watch", false, "keep watching the input folder for new documents")

	rootCmd.AddCommand(scanCmd)
}
