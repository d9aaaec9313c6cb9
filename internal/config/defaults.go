package config

import (
	"github.com/jackzampolin/rapor/internal/scores"
)

// Entry is a documented config key with its default value.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns every config key with its default value.
// They are registered as viper defaults so environment overrides apply to each key.
func DefaultEntries() []Entry {
	return []Entry{
		{
			Key:         "vocabulary",
			Value:       append([]string(nil), scores.DefaultSubjects...),
			Description: "Subjects to look for, in output order",
		},

		// ===================
		// Paths
		// ===================
		{
			Key:         "paths.input",
			Value:       "",
			Description: "Batch input folder (default: {home}/input)",
		},
		{
			Key:         "paths.generated",
			Value:       "",
			Description: "Folder for rendered page images (default: {home}/generated)",
		},
		{
			Key:         "paths.output",
			Value:       "",
			Description: "Results root, local path or afs URL (default: {home}/results)",
		},

		// ===================
		// Rendering
		// ===================
		{
			Key:         "render.dpi",
			Value:       300,
			Description: "Page image resolution",
		},
		{
			Key:         "render.command",
			Value:       "pdftoppm",
			Description: "pdftoppm-compatible renderer binary",
		},
		{
			Key:         "render.reuse_existing",
			Value:       true,
			Description: "Reuse page images rendered from identical PDF content (SHA-256 manifest)",
		},
		{
			Key:         "render.text_layer",
			Value:       false,
			Description: "Read embedded PDF text before running OCR",
		},

		// ===================
		// Preprocessing
		// ===================
		{
			Key:         "preprocess.block_size",
			Value:       31,
			Description: "Adaptive threshold neighborhood size (odd)",
		},
		{
			Key:         "preprocess.offset",
			Value:       2.0,
			Description: "Constant subtracted from the neighborhood mean",
		},

		// ===================
		// Recognition
		// ===================
		{
			Key:         "ocr.primary",
			Value:       "paddle",
			Description: "Primary engine name",
		},
		{
			Key:         "ocr.secondary",
			Value:       "tesseract",
			Description: "Fallback engine name, empty to disable fallback",
		},
		{
			Key:         "ocr.min_text_length",
			Value:       5,
			Description: "Primary results shorter than this trigger the fallback",
		},
		{
			Key:         "ocr.min_confidence",
			Value:       0.5,
			Description: "Segments below this confidence are low confidence",
		},
		{
			Key:         "ocr.filter_low_confidence",
			Value:       false,
			Description: "Drop low-confidence segments instead of only logging them",
		},
		{
			Key:         "ocr.languages",
			Value:       []string{"ind", "eng"},
			Description: "Language hint passed to the fallback engine",
		},

		// ===================
		// Engines
		// ===================
		{
			Key:         "engines.paddle.type",
			Value:       "paddle",
			Description: "Engine type for the PaddleOCR serving endpoint",
		},
		{
			Key:         "engines.paddle.url",
			Value:       "http://127.0.0.1:8080",
			Description: "PaddleOCR serving base URL",
		},
		{
			Key:         "engines.paddle.timeout_seconds",
			Value:       120,
			Description: "HTTP timeout in seconds for PaddleOCR requests",
		},
		{
			Key:         "engines.paddle.angle_classification",
			Value:       true,
			Description: "Detect rotated text lines",
		},
		{
			Key:         "engines.paddle.enabled",
			Value:       true,
			Description: "Whether the PaddleOCR engine is enabled",
		},
		{
			Key:         "engines.tesseract.type",
			Value:       "tesseract",
			Description: "Engine type for the local Tesseract engine",
		},
		{
			Key:         "engines.tesseract.enabled",
			Value:       true,
			Description: "Whether the Tesseract engine is enabled",
		},
		{
			Key:         "engines.deepinfra.type",
			Value:       "deepinfra",
			Description: "Engine type for the DeepInfra vision model",
		},
		{
			Key:         "engines.deepinfra.model",
			Value:       "PaddlePaddle/PaddleOCR-VL-0.9B",
			Description: "DeepInfra model name",
		},
		{
			Key:         "engines.deepinfra.api_key",
			Value:       "${DEEPINFRA_API_KEY}",
			Description: "DeepInfra API key (uses environment variable)",
		},
		{
			Key:         "engines.deepinfra.rate_limit",
			Value:       60,
			Description: "Maximum DeepInfra requests per minute",
		},
		{
			Key:         "engines.deepinfra.enabled",
			Value:       false,
			Description: "Whether the DeepInfra engine is enabled",
		},
		{
			Key:         "engines.mistral.type",
			Value:       "mistral-ocr",
			Description: "Engine type for Mistral OCR",
		},
		{
			Key:         "engines.mistral.api_key",
			Value:       "${MISTRAL_API_KEY}",
			Description: "Mistral API key (uses environment variable)",
		},
		{
			Key:         "engines.mistral.rate_limit",
			Value:       60,
			Description: "Maximum Mistral OCR requests per minute",
		},
		{
			Key:         "engines.mistral.enabled",
			Value:       false,
			Description: "Whether the Mistral OCR engine is enabled",
		},

		// ===================
		// Aggregation and batch
		// ===================
		{
			Key:         "merge.policy",
			Value:       string(scores.LastPageWins),
			Description: "How page scores combine: last-page-wins or first-found-wins",
		},
		{
			Key:         "batch.continue_on_error",
			Value:       true,
			Description: "Keep processing the folder after a document fails",
		},
		{
			Key:         "batch.page_results",
			Value:       false,
			Description: "Also save results for every page of a PDF",
		},
		{
			Key:         "batch.write_json",
			Value:       false,
			Description: "Also save a schema-validated {name}.json per document",
		},
		{
			Key:         "batch.settle_millis",
			Value:       500,
			Description: "Quiet period before a watched file is processed",
		},
	}
}

// GetDefault returns the default entry for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}
