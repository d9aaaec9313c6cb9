// Package home resolves the rapor working directory and its layout:
//
//	~/.rapor/
//	  config.yaml
//	  input/            documents waiting for `rapor scan`
//	  generated/        page images rendered from PDFs
//	  uploads/          documents received by the server
//	  results/text/     {name}.txt
//	  results/values/   {name}_values.txt
//	  results/json/     {name}.json (batch.write_json)
package home

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultDirName = ".rapor"
	ConfigFileName = "config.yaml"

	// EnvVar overrides the default location when no explicit path is given.
	EnvVar = "RAPOR_HOME"
)

// Dir is a rapor home directory. Its methods only compute paths;
// EnsureExists creates them.
type Dir struct {
	root string
}

// New returns the home at path. An empty path falls back to $RAPOR_HOME,
// then to ~/.rapor.
func New(path string) (*Dir, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate user home: %w", err)
		}
		path = filepath.Join(userHome, DefaultDirName)
	}
	return &Dir{root: filepath.Clean(path)}, nil
}

func (d *Dir) join(elem ...string) string {
	return filepath.Join(append([]string{d.root}, elem...)...)
}

func (d *Dir) Path() string             { return d.root }
func (d *Dir) ConfigPath() string       { return d.join(ConfigFileName) }
func (d *Dir) InputDir() string         { return d.join("input") }
func (d *Dir) GeneratedDir() string     { return d.join("generated") }
func (d *Dir) UploadsDir() string       { return d.join("uploads") }
func (d *Dir) ResultsDir() string       { return d.join("results") }
func (d *Dir) TextResultsDir() string   { return d.join("results", "text") }
func (d *Dir) ValuesResultsDir() string { return d.join("results", "values") }
func (d *Dir) JSONResultsDir() string   { return d.join("results", "json") }

// EnsureExists creates every directory a run writes to. The JSON results
// folder is left to the exporter since it is optional.
func (d *Dir) EnsureExists() error {
	var errs []error
	for _, dir := range []string{
		d.InputDir(),
		d.GeneratedDir(),
		d.UploadsDir(),
		d.TextResultsDir(),
		d.ValuesResultsDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			errs = append(errs, fmt.Errorf("create %s: %w", dir, err))
		}
	}
	return errors.Join(errs...)
}

// Exists reports whether the home directory is present.
func (d *Dir) Exists() bool { return isDir(d.root) }

// ConfigExists reports whether config.yaml is present.
func (d *Dir) ConfigExists() bool {
	info, err := os.Stat(d.ConfigPath())
	return err == nil && !info.IsDir()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
