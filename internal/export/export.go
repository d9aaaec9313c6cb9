// Package export writes recognition results to the configured sink.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/jackzampolin/rapor/internal/scores"
)

const (
	// CombinedFileName is the download name of the interactive export.
	CombinedFileName = "ocr_results.txt"
	// CombinedContentType is the media type of the interactive export.
	CombinedContentType = "text/plain"
)

// ValuesText renders "subject: value\n" lines in vocabulary order.
func ValuesText(m scores.Mapping) string {
	var b strings.Builder
	for _, s := range m.Scores() {
		b.WriteString(s.Subject)
		b.WriteString(": ")
		b.WriteString(s.Value)
		b.WriteString("\n")
	}
	return b.String()
}

// Combined renders the interactive export: the text, a blank line, then the
// "subject: value" lines.
func Combined(text string, m scores.Mapping) string {
	return text + "\n\n" + m.Lines()
}

// Config configures an Exporter. Directories are local paths or afs URLs.
type Config struct {
	TextDir   string
	ValuesDir string
	// JSONDir receives {name}.json when set.
	JSONDir    string
	Vocabulary scores.Vocabulary
}

// Exporter writes per-document text and score files.
type Exporter struct {
	fs        afs.Service
	textDir   string
	valuesDir string
	jsonDir   string
	validator *Validator
}

// Written lists the URLs produced by Save.
type Written struct {
	Text   string `json:"text"`
	Values string `json:"values"`
	JSON   string `json:"json,omitempty"`
}

// New creates an Exporter.
func New(cfg Config) (*Exporter, error) {
	if cfg.TextDir == "" || cfg.ValuesDir == "" {
		return nil, fmt.Errorf("text and values directories are required")
	}
	validator, err := NewValidator(cfg.Vocabulary)
	if err != nil {
		return nil, err
	}
	return &Exporter{
		fs:        afs.New(),
		textDir:   cfg.TextDir,
		valuesDir: cfg.ValuesDir,
		jsonDir:   cfg.JSONDir,
		validator: validator,
	}, nil
}

// Document is the JSON export of one document.
type Document struct {
	Document string         `json:"document"`
	Text     string         `json:"text"`
	Scores   scores.Mapping `json:"scores"`
}

// Save writes {name}.txt and {name}_values.txt, plus {name}.json when a JSON
// directory is configured. The mapping is validated first.
func (e *Exporter) Save(ctx context.Context, name, text string, m scores.Mapping) (*Written, error) {
	if err := e.validator.Validate(m); err != nil {
		return nil, err
	}

	w := &Written{
		Text:   url.Join(e.textDir, name+".txt"),
		Values: url.Join(e.valuesDir, name+"_values.txt"),
	}
	if err := e.upload(ctx, w.Text, text); err != nil {
		return nil, err
	}
	if err := e.upload(ctx, w.Values, ValuesText(m)); err != nil {
		return nil, err
	}

	if e.jsonDir != "" {
		data, err := json.MarshalIndent(Document{Document: name, Text: text, Scores: m}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", name, err)
		}
		w.JSON = url.Join(e.jsonDir, name+".json")
		if err := e.upload(ctx, w.JSON, string(data)); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Load reads back a previously written file.
func (e *Exporter) Load(ctx context.Context, URL string) ([]byte, error) {
	data, err := e.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", URL, err)
	}
	return data, nil
}

func (e *Exporter) upload(ctx context.Context, URL, content string) error {
	if err := e.fs.Upload(ctx, URL, file.DefaultFileOsMode, strings.NewReader(content)); err != nil {
		return fmt.Errorf("failed to write %s: %w", URL, err)
	}
	return nil
}
