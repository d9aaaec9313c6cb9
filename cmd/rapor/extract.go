package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rapor/internal/api"
	"github.com/jackzampolin/rapor/internal/export"
	"github.com/jackzampolin/rapor/internal/pipeline"
	"github.com/jackzampolin/rapor/internal/scores"
)

var (
	extractExport string
	extractSave   bool
)

// extractResult is the CLI view of one document.
type extractResult struct {
	Document string          `json:"document" yaml:"document"`
	Text     string          `json:"text" yaml:"text"`
	Scores   scores.Mapping  `json:"scores" yaml:"scores"`
	Pages    int             `json:"pages" yaml:"pages"`
	Written  *export.Written `json:"written,omitempty" yaml:"written,omitempty"`
}

// String renders the combined export for --output text.
func (r extractResult) String() string {
	return export.Combined(r.Text, r.Scores)
}

var extractCmd = &cobra.Command{
	Use:   "extract FILE",
	Short: "Recognize one document and print its scores",
	Long: `Recognize a single PDF or image without a server.

The recognized text and the score for every subject are printed. With
--export the combined text (text, a blank line, then "subject: value" lines)
is written to a file, the same content the upload page downloads as
ocr_results.txt.

Examples:
  rapor extract rapor_budi.pdf
  rapor extract rapor_budi.jpg --export ocr_results.txt
  rapor extract rapor_budi.pdf --save      # also write results/text and results/values`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		if !pipeline.Supported(path) {
			return &pipeline.DocumentError{
				Kind:     pipeline.KindUnsupported,
				Document: path,
				Detail:   "expected a PDF or image",
			}
		}

		cfg, h, err := loadConfig()
		if err != nil {
			return err
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

		res, err := services.Pipeline.Process(ctx, path)
		if err != nil {
			return err
		}

		out := extractResult{
			Document: res.Document,
			Text:     res.Text,
			Scores:   res.Scores,
			Pages:    len(res.Pages),
		}

		if extractSave {
			written, err := services.Exporter.Save(ctx, res.Document, res.Text, res.Scores)
			if err != nil {
				return &pipeline.DocumentError{Kind: pipeline.KindExport, Document: res.Document, Err: err}
			}
			out.Written = written
		}

		if extractExport != "" {
			if err := os.WriteFile(extractExport, []byte(out.String()), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", extractExport, err)
			}
			logger.Info("exported", "file", extractExport)
		}

		return api.Output(out)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractExport, "export", "", "write the combined text export to this file")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "also write {name}.txt and {name}_values.txt to the results folders")

	rootCmd.AddCommand(extractCmd)
}
