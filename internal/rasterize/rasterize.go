// Package rasterize renders PDF pages to PNG images.
package rasterize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	// DefaultDPI is the render resolution for page images.
	DefaultDPI = 300
	// DefaultCommand is the poppler-utils renderer.
	DefaultCommand = "pdftoppm"
)

// ErrNoPages is returned for a PDF without pages.
var ErrNoPages = errors.New("pdf has no pages")

// Config configures a Rasterizer.
type Config struct {
	DPI int
	// Command is the pdftoppm-compatible binary. Defaults to "pdftoppm".
	Command string
	// ReuseExisting skips rendering when the page images on disk were
	// rendered from a PDF with the same content at the same DPI.
	ReuseExisting bool
	Logger        *slog.Logger
}

// Rasterizer renders each page of a PDF to its own PNG file.
type Rasterizer struct {
	dpi     int
	command string
	reuse   bool
	logger  *slog.Logger
}

// New creates a Rasterizer, filling in defaults.
func New(cfg Config) *Rasterizer {
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Rasterizer{
		dpi:     cfg.DPI,
		command: cfg.Command,
		reuse:   cfg.ReuseExisting,
		logger:  cfg.Logger,
	}
}

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	n, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return n, nil
}

// PageImageName returns the image file name for a zero-based page index,
// e.g. "rapor_page_0.png" for page 0 of "/in/rapor.pdf".
func PageImageName(pdfPath string, index int) string {
	return DocumentName(pdfPath) + "_page_" + strconv.Itoa(index) + ".png"
}

// DocumentName returns the file name without directory and extension.
func DocumentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Rasterize renders every page of pdfPath into destDir and returns the image
// paths in page order. Pages are rendered one at a time; a failed page aborts
// the document.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath, destDir string) ([]string, error) {
	count, err := PageCount(pdfPath)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNoPages
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	stamp, err := r.stamp(pdfPath, count)
	if err != nil {
		return nil, err
	}
	manifest := filepath.Join(destDir, ManifestName(pdfPath))
	reuse := r.reuse && manifestMatches(manifest, stamp)
	if !reuse {
		// Pages are about to be overwritten; an interrupted run must not
		// leave a manifest vouching for them.
		if err := os.Remove(manifest); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to reset page cache: %w", err)
		}
	}

	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dst := filepath.Join(destDir, PageImageName(pdfPath, i))
		if reuse && nonEmptyFile(dst) {
			r.logger.Debug("reusing rendered page", "pdf", filepath.Base(pdfPath), "page", i)
			paths = append(paths, dst)
			continue
		}

		if err := r.renderPage(ctx, pdfPath, dst, i+1); err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i, err)
		}
		r.logger.Debug("rendered page", "pdf", filepath.Base(pdfPath), "page", i, "path", dst)
		paths = append(paths, dst)
	}

	if err := os.WriteFile(manifest, []byte(stamp), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write page cache manifest: %w", err)
	}
	return paths, nil
}

// ManifestName returns the file recording which PDF content the page
// images of pdfPath were rendered from, e.g. "rapor_pages.sha256".
func ManifestName(pdfPath string) string {
	return DocumentName(pdfPath) + "_pages.sha256"
}

// stamp identifies a render: PDF content digest, resolution and page count.
func (r *Rasterizer) stamp(pdfPath string, pages int) (string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash PDF: %w", err)
	}
	return fmt.Sprintf("sha256:%s dpi:%d pages:%d\n", hex.EncodeToString(h.Sum(nil)), r.dpi, pages), nil
}

func manifestMatches(path, stamp string) bool {
	data, err := os.ReadFile(path)
	return err == nil && string(data) == stamp
}

// renderPage renders one 1-based page with pdftoppm into dst.
func (r *Rasterizer) renderPage(ctx context.Context, pdfPath, dst string, pageInPDF int) error {
	// -singlefile writes <prefix>.png
	prefix := strings.TrimSuffix(dst, ".png")
	pageStr := strconv.Itoa(pageInPDF)
	cmd := exec.CommandContext(ctx, r.command,
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(r.dpi),
		"-singlefile",
		pdfPath,
		prefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w (output: %s)", r.command, err, string(output))
	}
	if _, err := os.Stat(dst); err != nil {
		return fmt.Errorf("%s did not create expected output: %w", r.command, err)
	}
	return nil
}

func nonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
