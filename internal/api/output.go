package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormat selects how CLI results are printed.
type OutputFormat string

const (
	OutputFormatYAML OutputFormat = "yaml"
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatText prints a fmt.Stringer as is, anything else as YAML.
	OutputFormatText OutputFormat = "text"
)

// DefaultOutput is used when --output is empty or unknown.
var DefaultOutput = OutputFormatYAML

var current = DefaultOutput

// ParseOutputFormat reports whether s names a known format.
func ParseOutputFormat(s string) (OutputFormat, bool) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputFormatYAML, OutputFormatJSON, OutputFormatText:
		return f, true
	}
	return DefaultOutput, false
}

// SetOutputFormat sets the format used by Output.
func SetOutputFormat(s string) {
	current, _ = ParseOutputFormat(s)
}

// GetOutputFormat returns the format used by Output.
func GetOutputFormat() OutputFormat { return current }

// Output prints data to stdout.
func Output(data any) error {
	return OutputTo(os.Stdout, current, data)
}

// OutputTo encodes data to w.
func OutputTo(w io.Writer, format OutputFormat, data any) error {
	switch format {
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case OutputFormatText:
		s, ok := data.(fmt.Stringer)
		if !ok {
			return OutputTo(w, OutputFormatYAML, data)
		}
		text := s.String()
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		_, err := io.WriteString(w, text)
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}

// OutputToFile writes data to path. The extension picks the format:
// .json for JSON, .txt for text, YAML otherwise.
func OutputToFile(data any, path string) (err error) {
	format := OutputFormatYAML
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = OutputFormatJSON
	case ".txt":
		format = OutputFormatText
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return OutputTo(f, format, data)
}
