package rasterize

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestPageImageName(t *testing.T) {
	tests := []struct {
		path  string
		index int
		want  string
	}{
		{"/in/rapor.pdf", 0, "rapor_page_0.png"},
		{"rapor siswa.pdf", 12, "rapor siswa_page_12.png"},
		{"/in/scan.v2.pdf", 1, "scan.v2_page_1.png"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := PageImageName(tt.path, tt.index); got != tt.want {
				t.Errorf("PageImageName(%q, %d) = %q, want %q", tt.path, tt.index, got, tt.want)
			}
		})
	}
}

func TestPageCount(t *testing.T) {
	dir := t.TempDir()

	t.Run("three pages", func(t *testing.T) {
		path := writeTestPDF(t, dir, "three.pdf", "one", "two", "three")
		n, err := PageCount(path)
		if err != nil {
			t.Fatalf("PageCount() error = %v", err)
		}
		if n != 3 {
			t.Errorf("PageCount() = %d, want 3", n)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := PageCount(filepath.Join(dir, "nope.pdf")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("not a pdf", func(t *testing.T) {
		path := filepath.Join(dir, "bad.pdf")
		if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := PageCount(path); err == nil {
			t.Error("expected error for corrupt file")
		}
	})
}

func TestRasterize(t *testing.T) {
	if _, err := exec.LookPath(DefaultCommand); err != nil {
		t.Skip("pdftoppm not installed")
	}
	if testing.Short() {
		t.Skip("skipping render test in short mode")
	}

	dir := t.TempDir()
	pdfPath := writeTestPDF(t, dir, "rapor.pdf", "Matematika 85", "Bahasa Inggris 70")
	out := filepath.Join(dir, "generated")

	r := New(Config{DPI: 50})
	paths, err := r.Rasterize(context.Background(), pdfPath, out)
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("Rasterize() returned %d paths, want 2", len(paths))
	}
	for i, p := range paths {
		if filepath.Base(p) != PageImageName(pdfPath, i) {
			t.Errorf("path %d = %q", i, p)
		}
		if info, err := os.Stat(p); err != nil || info.Size() == 0 {
			t.Errorf("page image %q missing or empty", p)
		}
	}
}

// fakeRenderer writes a pdftoppm stand-in that logs each call and writes
// "<checksum of the pdf> page N" as the image.
func fakeRenderer(t *testing.T) (command, calls string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("renderer stand-in needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not installed")
	}
	dir := t.TempDir()
	calls = filepath.Join(dir, "calls.log")
	// Called as: -png -f N -l N -r DPI -singlefile PDF PREFIX
	script := "#!/bin/sh\n" +
		"echo \"$3\" >> '" + calls + "'\n" +
		"printf '%s page %s' \"$(cksum < \"$9\")\" \"$3\" > \"${10}.png\"\n"
	command = filepath.Join(dir, "render.sh")
	if err := os.WriteFile(command, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return command, calls
}

func renderCalls(t *testing.T, log string) int {
	t.Helper()
	data, err := os.ReadFile(log)
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Count(string(data), "\n")
}

func TestRasterize_ReuseExisting(t *testing.T) {
	command, calls := fakeRenderer(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "generated")
	pdfPath := writeTestPDF(t, dir, "rapor.pdf", "Andi", "Andi page two")
	r := New(Config{Command: command, ReuseExisting: true})
	ctx := context.Background()

	first, err := r.Rasterize(ctx, pdfPath, out)
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if n := renderCalls(t, calls); n != 2 {
		t.Fatalf("first run rendered %d pages, want 2", n)
	}
	andi, _ := os.ReadFile(first[0])

	if _, err := r.Rasterize(ctx, pdfPath, out); err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if n := renderCalls(t, calls); n != 2 {
		t.Errorf("unchanged PDF rendered again: %d calls", n)
	}

	// Another student's report lands under the same name with an older
	// mtime, as cp -p or unzip would leave it.
	writeTestPDF(t, dir, "rapor.pdf", "Budi", "Budi page two")
	past := time.Now().Add(-24 * time.Hour)
	if err := os.Chtimes(pdfPath, past, past); err != nil {
		t.Fatal(err)
	}
	second, err := r.Rasterize(ctx, pdfPath, out)
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if n := renderCalls(t, calls); n != 4 {
		t.Errorf("replaced PDF rendered %d pages in total, want 4", n)
	}
	budi, _ := os.ReadFile(second[0])
	if bytes.Equal(andi, budi) {
		t.Errorf("page 0 still holds the previous document's image %q", budi)
	}

	// Reuse off always renders.
	r = New(Config{Command: command})
	if _, err := r.Rasterize(ctx, pdfPath, out); err != nil {
		t.Fatal(err)
	}
	if n := renderCalls(t, calls); n != 6 {
		t.Errorf("render calls = %d, want 6 with reuse off", n)
	}
}

func TestRasterize_StaleImagesWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "generated")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	pdfPath := writeTestPDF(t, dir, "rapor.pdf", "Matematika 85")

	// A page image newer than the PDF but with no record of its source.
	future := time.Now().Add(time.Hour)
	stale := filepath.Join(out, PageImageName(pdfPath, 0))
	if err := os.WriteFile(stale, []byte("previous student"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(stale, future, future); err != nil {
		t.Fatal(err)
	}

	r := New(Config{Command: "definitely-not-a-renderer", ReuseExisting: true})
	if _, err := r.Rasterize(context.Background(), pdfPath, out); err == nil {
		t.Error("stale page image was reused instead of rendering")
	}
	if _, err := os.Stat(filepath.Join(out, ManifestName(pdfPath))); !errors.Is(err, os.ErrNotExist) {
		t.Error("failed render left a cache manifest behind")
	}
}

func TestTextLayer(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPDF(t, dir, "text.pdf", "Matematika 85", "Bahasa Inggris 70")

	pages, err := TextLayer(path)
	if err != nil {
		t.Fatalf("TextLayer() error = %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("TextLayer() returned %d pages, want 2", len(pages))
	}
	if !strings.Contains(pages[0], "Matematika") || !strings.Contains(pages[1], "Inggris") {
		t.Errorf("TextLayer() = %q", pages)
	}
}
