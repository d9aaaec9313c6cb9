package config

import (
	"path/filepath"
	"strings"

	"github.com/viant/afs/url"

	"github.com/jackzampolin/rapor/internal/home"
	"github.com/jackzampolin/rapor/internal/scores"
)

// Config holds rapor configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Vocabulary []string             `mapstructure:"vocabulary" yaml:"vocabulary"`
	Paths      PathsCfg             `mapstructure:"paths" yaml:"paths"`
	Render     RenderCfg            `mapstructure:"render" yaml:"render"`
	Preprocess PreprocessCfg        `mapstructure:"preprocess" yaml:"preprocess"`
	OCR        OCRCfg               `mapstructure:"ocr" yaml:"ocr"`
	Engines    map[string]EngineCfg `mapstructure:"engines" yaml:"engines"`
	Merge      MergeCfg             `mapstructure:"merge" yaml:"merge"`
	Batch      BatchCfg             `mapstructure:"batch" yaml:"batch"`
}

// PathsCfg overrides the home directory layout. Empty values use the home layout.
type PathsCfg struct {
	Input     string `mapstructure:"input" yaml:"input"`
	Generated string `mapstructure:"generated" yaml:"generated"`
	Output    string `mapstructure:"output" yaml:"output"` // local path or afs URL
}

// RenderCfg configures PDF page rendering.
type RenderCfg struct {
	DPI           int    `mapstructure:"dpi" yaml:"dpi"`
	Command       string `mapstructure:"command" yaml:"command"`
	ReuseExisting bool   `mapstructure:"reuse_existing" yaml:"reuse_existing"`
	TextLayer     bool   `mapstructure:"text_layer" yaml:"text_layer"` // read embedded PDF text before OCR
}

// PreprocessCfg configures the adaptive threshold applied before the secondary engine.
type PreprocessCfg struct {
	BlockSize int     `mapstructure:"block_size" yaml:"block_size"`
	Offset    float64 `mapstructure:"offset" yaml:"offset"`
}

// OCRCfg selects engines and result screening.
type OCRCfg struct {
	Primary             string   `mapstructure:"primary" yaml:"primary"`
	Secondary           string   `mapstructure:"secondary" yaml:"secondary"` // empty disables fallback
	MinTextLength       int      `mapstructure:"min_text_length" yaml:"min_text_length"`
	MinConfidence       float64  `mapstructure:"min_confidence" yaml:"min_confidence"`
	FilterLowConfidence bool     `mapstructure:"filter_low_confidence" yaml:"filter_low_confidence"`
	Languages           []string `mapstructure:"languages" yaml:"languages"`
}

// EngineCfg configures one OCR engine.
type EngineCfg struct {
	Type                string            `mapstructure:"type" yaml:"type"` // "paddle", "tesseract", "deepinfra", "mistral-ocr"
	URL                 string            `mapstructure:"url" yaml:"url,omitempty"`
	Model               string            `mapstructure:"model" yaml:"model,omitempty"`
	APIKey              string            `mapstructure:"api_key" yaml:"api_key,omitempty"` // supports ${ENV_VAR} syntax
	Languages           []string          `mapstructure:"languages" yaml:"languages,omitempty"`
	TimeoutSeconds      int               `mapstructure:"timeout_seconds" yaml:"timeout_seconds,omitempty"`
	RateLimit           int               `mapstructure:"rate_limit" yaml:"rate_limit,omitempty"` // requests per minute, 0 = unlimited
	AngleClassification bool              `mapstructure:"angle_classification" yaml:"angle_classification,omitempty"`
	Variables           map[string]string `mapstructure:"variables" yaml:"variables,omitempty"`
	Enabled             bool              `mapstructure:"enabled" yaml:"enabled"`
}

// MergeCfg selects how page scores are combined.
type MergeCfg struct {
	Policy string `mapstructure:"policy" yaml:"policy"` // "last-page-wins" or "first-found-wins"
}

// BatchCfg configures folder processing.
type BatchCfg struct {
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error"`
	PageResults     bool `mapstructure:"page_results" yaml:"page_results"`
	WriteJSON       bool `mapstructure:"write_json" yaml:"write_json"`
	SettleMillis    int  `mapstructure:"settle_millis" yaml:"settle_millis"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Vocabulary: append([]string(nil), scores.DefaultSubjects...),
		Render: RenderCfg{
			DPI:           300,
			Command:       "pdftoppm",
			ReuseExisting: true,
		},
		Preprocess: PreprocessCfg{
			BlockSize: 31,
			Offset:    2,
		},
		OCR: OCRCfg{
			Primary:       "paddle",
			Secondary:     "tesseract",
			MinTextLength: 5,
			MinConfidence: 0.5,
			Languages:     []string{"ind", "eng"},
		},
		Engines: map[string]EngineCfg{
			"paddle": {
				Type:                "paddle",
				URL:                 "http://127.0.0.1:8080",
				TimeoutSeconds:      120,
				AngleClassification: true,
				Enabled:             true,
			},
			"tesseract": {
				Type:    "tesseract",
				Enabled: true,
			},
			"deepinfra": {
				Type:      "deepinfra",
				Model:     "PaddlePaddle/PaddleOCR-VL-0.9B",
				APIKey:    "${DEEPINFRA_API_KEY}",
				RateLimit: 60,
				Enabled:   false,
			},
			"mistral": {
				Type:      "mistral-ocr",
				APIKey:    "${MISTRAL_API_KEY}",
				RateLimit: 60,
				Enabled:   false,
			},
		},
		Merge: MergeCfg{Policy: string(scores.LastPageWins)},
		Batch: BatchCfg{
			ContinueOnError: true,
			SettleMillis:    500,
		},
	}
}

// GetEngine returns an engine config by name.
func (c *Config) GetEngine(name string) (EngineCfg, bool) {
	cfg, ok := c.Engines[name]
	return cfg, ok
}

// Layout is the set of directories a run reads and writes.
type Layout struct {
	Input     string
	Generated string
	Text      string
	Values    string
	JSON      string // empty unless batch.write_json is set
	Uploads   string
}

// Layout resolves the configured paths against the home directory.
func (c *Config) Layout(h *home.Dir) Layout {
	l := Layout{
		Input:     h.InputDir(),
		Generated: h.GeneratedDir(),
		Text:      h.TextResultsDir(),
		Values:    h.ValuesResultsDir(),
		Uploads:   h.UploadsDir(),
	}
	if c.Batch.WriteJSON {
		l.JSON = h.JSONResultsDir()
	}
	if c.Paths.Input != "" {
		l.Input = c.Paths.Input
	}
	if c.Paths.Generated != "" {
		l.Generated = c.Paths.Generated
	}
	if out := c.Paths.Output; out != "" {
		l.Text = joinOutput(out, "text")
		l.Values = joinOutput(out, "values")
		if c.Batch.WriteJSON {
			l.JSON = joinOutput(out, "json")
		}
	}
	return l
}

// joinOutput keeps URL separators for afs URLs like s3://bucket/path.
func joinOutput(base, dir string) string {
	if strings.Contains(base, "://") {
		return url.Join(base, dir)
	}
	return filepath.Join(base, dir)
}
