package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_Resolution(t *testing.T) {
	userHome, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no user home directory")
	}
	envHome := filepath.Join(t.TempDir(), "from-env")

	tests := []struct {
		name string
		path string
		env  string
		want string
	}{
		{"explicit path wins", "/srv/rapor/", envHome, "/srv/rapor"},
		{"environment", "", envHome, envHome},
		{"default", "", "", filepath.Join(userHome, DefaultDirName)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvVar, tt.env)
			d, err := New(tt.path)
			if err != nil {
				t.Fatal(err)
			}
			if d.Path() != tt.want {
				t.Errorf("Path() = %q, want %q", d.Path(), tt.want)
			}
		})
	}
}

func TestDir_Layout(t *testing.T) {
	d, _ := New("/srv/rapor")
	for got, want := range map[string]string{
		d.ConfigPath():       "/srv/rapor/config.yaml",
		d.InputDir():         "/srv/rapor/input",
		d.GeneratedDir():     "/srv/rapor/generated",
		d.UploadsDir():       "/srv/rapor/uploads",
		d.TextResultsDir():   "/srv/rapor/results/text",
		d.ValuesResultsDir(): "/srv/rapor/results/values",
		d.JSONResultsDir():   "/srv/rapor/results/json",
	} {
		if got != filepath.FromSlash(want) {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestDir_EnsureExists(t *testing.T) {
	d, _ := New(filepath.Join(t.TempDir(), "rapor"))
	if d.Exists() {
		t.Fatal("home exists before EnsureExists")
	}
	if err := d.EnsureExists(); err != nil {
		t.Fatal(err)
	}
	if !d.Exists() {
		t.Fatal("home missing after EnsureExists")
	}
	for _, dir := range []string{d.InputDir(), d.GeneratedDir(), d.UploadsDir(), d.TextResultsDir(), d.ValuesResultsDir()} {
		if !isDir(dir) {
			t.Errorf("%s not created", dir)
		}
	}
	if isDir(d.JSONResultsDir()) {
		t.Error("json results folder should only be created on demand")
	}

	// Idempotent.
	if err := d.EnsureExists(); err != nil {
		t.Fatal(err)
	}
}

func TestDir_ConfigExists(t *testing.T) {
	d, _ := New(t.TempDir())
	if d.ConfigExists() {
		t.Fatal("unexpected config.yaml")
	}
	if err := os.Mkdir(d.ConfigPath(), 0o755); err != nil {
		t.Fatal(err)
	}
	if d.ConfigExists() {
		t.Error("a directory named config.yaml is not a config file")
	}
	if err := os.Remove(d.ConfigPath()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(d.ConfigPath(), []byte("ocr:\n  primary: tesseract\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !d.ConfigExists() {
		t.Error("config.yaml not detected")
	}
}
