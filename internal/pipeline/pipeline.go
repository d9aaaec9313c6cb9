// Package pipeline turns report-card documents into recognized text and
// per-subject scores.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jackzampolin/rapor/internal/metrics"
	"github.com/jackzampolin/rapor/internal/ocr"
	"github.com/jackzampolin/rapor/internal/rasterize"
	"github.com/jackzampolin/rapor/internal/scores"
)

// Page text sources.
const (
	SourceOCR       = "ocr"
	SourceTextLayer = "text_layer"
)

// imageExtensions are the image types accepted as single-page documents.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// IsPDF reports whether path has a .pdf extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// Supported reports whether path is a PDF or a supported image.
func Supported(path string) bool {
	return IsPDF(path) || IsImage(path)
}

// PageRenderer renders the pages of a PDF to image files, in page order.
type PageRenderer interface {
	Rasterize(ctx context.Context, pdfPath, destDir string) ([]string, error)
}

// Config configures a Pipeline.
type Config struct {
	Renderer     PageRenderer
	Recognizer   *ocr.Recognizer
	Vocabulary   scores.Vocabulary
	MergePolicy  scores.MergePolicy
	GeneratedDir string

	// UseTextLayer reads embedded PDF text first and only runs OCR on pages
	// whose text is shorter than MinTextLength.
	UseTextLayer  bool
	MinTextLength int
	// TextLayer defaults to rasterize.TextLayer.
	TextLayer func(path string) ([]string, error)

	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// PageResult is the outcome for one page.
type PageResult struct {
	Index     int            `json:"index"`
	ImagePath string         `json:"image_path,omitempty"`
	Text      string         `json:"text"`
	Scores    scores.Mapping `json:"scores"`
	Engine    string         `json:"engine,omitempty"`
	Fallback  bool           `json:"fallback,omitempty"`
	Degraded  bool           `json:"degraded,omitempty"`
	Source    string         `json:"source"`
}

// Result is the outcome for one document.
type Result struct {
	Document string         `json:"document"`
	Path     string         `json:"path,omitempty"`
	Text     string         `json:"text"`
	Scores   scores.Mapping `json:"scores"`
	Pages    []PageResult   `json:"pages"`
}

// Pipeline processes one document at a time.
type Pipeline struct {
	mu sync.Mutex

	renderer      PageRenderer
	recognizer    *ocr.Recognizer
	extractor     *scores.Extractor
	vocab         scores.Vocabulary
	policy        scores.MergePolicy
	generatedDir  string
	useTextLayer  bool
	minTextLength int
	textLayer     func(string) ([]string, error)
	metrics       *metrics.Recorder
	logger        *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Recognizer == nil {
		return nil, ocr.ErrNoEngine
	}
	if cfg.Vocabulary.Len() == 0 {
		return nil, scores.ErrEmptyVocabulary
	}
	if cfg.Renderer == nil {
		cfg.Renderer = rasterize.New(rasterize.Config{Logger: cfg.Logger})
	}
	if cfg.MergePolicy == "" {
		cfg.MergePolicy = scores.LastPageWins
	}
	if cfg.GeneratedDir == "" {
		cfg.GeneratedDir = filepath.Join(os.TempDir(), "rapor-generated")
	}
	if cfg.TextLayer == nil {
		cfg.TextLayer = rasterize.TextLayer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		renderer:      cfg.Renderer,
		recognizer:    cfg.Recognizer,
		extractor:     scores.NewExtractor(cfg.Vocabulary),
		vocab:         cfg.Vocabulary,
		policy:        cfg.MergePolicy,
		generatedDir:  cfg.GeneratedDir,
		useTextLayer:  cfg.UseTextLayer,
		minTextLength: cfg.MinTextLength,
		textLayer:     cfg.TextLayer,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}, nil
}

// Vocabulary returns the subject vocabulary.
func (p *Pipeline) Vocabulary() scores.Vocabulary { return p.vocab }

// Recognizer returns the OCR recognizer pages go through.
func (p *Pipeline) Recognizer() *ocr.Recognizer { return p.recognizer }

// Process dispatches on the file extension.
func (p *Pipeline) Process(ctx context.Context, path string) (*Result, error) {
	switch {
	case IsPDF(path):
		return p.ProcessPDF(ctx, path)
	case IsImage(path):
		return p.ProcessImage(ctx, path)
	default:
		return nil, newError(KindUnsupported, filepath.Base(path), fmt.Sprintf("extension %q", filepath.Ext(path)), nil)
	}
}

// ProcessImage recognizes a single-page image document.
func (p *Pipeline) ProcessImage(ctx context.Context, path string) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc := rasterize.DocumentName(path)
	if err := checkReadable(path, doc); err != nil {
		return nil, err
	}

	page, err := p.recognizePage(ctx, doc, 0, path)
	if err != nil {
		return nil, err
	}
	return p.finish(doc, path, []PageResult{*page}), nil
}

// ProcessPDF renders every page and recognizes them in page order.
// A failing page aborts the document.
func (p *Pipeline) ProcessPDF(ctx context.Context, path string) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc := rasterize.DocumentName(path)
	if err := checkReadable(path, doc); err != nil {
		return nil, err
	}
	log := p.logger.With("document", doc)

	var layer []string
	if p.useTextLayer {
		var err error
		layer, err = p.textLayer(path)
		if err != nil {
			log.Warn("text layer unavailable, using OCR", "error", err)
			layer = nil
		}
	}

	if layer != nil && p.allUsable(layer) {
		log.Info("using embedded text layer", "pages", len(layer))
		pages := make([]PageResult, len(layer))
		for i, text := range layer {
			pages[i] = p.textLayerPage(i, text)
		}
		return p.finish(doc, path, pages), nil
	}

	images, err := p.renderer.Rasterize(ctx, path, p.generatedDir)
	if err != nil {
		if IsCancelled(err) {
			return nil, err
		}
		return nil, newError(KindUnreadable, doc, "failed to render pages", err)
	}
	log.Info("rendered pages", "pages", len(images))

	pages := make([]PageResult, 0, len(images))
	for i, img := range images {
		if i < len(layer) && p.usable(layer[i]) {
			pages = append(pages, p.textLayerPage(i, layer[i]))
			continue
		}
		page, err := p.recognizePage(ctx, doc, i, img)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *page)
	}
	return p.finish(doc, path, pages), nil
}

func (p *Pipeline) recognizePage(ctx context.Context, doc string, index int, imagePath string) (*PageResult, error) {
	id := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	out, err := p.recognizer.RecognizeFile(ctx, id, imagePath)
	if err != nil {
		switch {
		case IsCancelled(err):
			return nil, err
		case errors.Is(err, ocr.ErrUnreadableImage):
			return nil, newError(KindUnreadable, doc, fmt.Sprintf("page %d", index), err)
		default:
			return nil, newError(KindRecognition, doc, fmt.Sprintf("page %d", index), err)
		}
	}
	if out.Degraded() {
		p.logger.Warn("page recognized with no text", "document", doc, "page", index, "error", out.SecondaryErr)
	}

	return &PageResult{
		Index:     index,
		ImagePath: imagePath,
		Text:      out.Text,
		Scores:    p.extractor.Extract(out.Text),
		Engine:    out.Engine,
		Fallback:  out.Fallback,
		Degraded:  out.Degraded(),
		Source:    SourceOCR,
	}, nil
}

func (p *Pipeline) textLayerPage(index int, text string) PageResult {
	return PageResult{
		Index:  index,
		Text:   text,
		Scores: p.extractor.Extract(text),
		Source: SourceTextLayer,
	}
}

func (p *Pipeline) usable(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= p.minTextLength && strings.TrimSpace(text) != ""
}

func (p *Pipeline) allUsable(layer []string) bool {
	if len(layer) == 0 {
		return false
	}
	for _, t := range layer {
		if !p.usable(t) {
			return false
		}
	}
	return true
}

func (p *Pipeline) finish(doc, path string, pages []PageResult) *Result {
	agg := make([]scores.Page, len(pages))
	for i, pg := range pages {
		agg[i] = scores.Page{Text: pg.Text, Scores: pg.Scores}
	}
	merged := scores.Aggregate(p.vocab, agg, p.policy)
	p.metrics.RecordDocument()
	p.logger.Info("document processed", "document", doc, "pages", len(pages), "found", merged.Scores.FoundCount())
	return &Result{
		Document: doc,
		Path:     path,
		Text:     merged.Text,
		Scores:   merged.Scores,
		Pages:    pages,
	}
}

func checkReadable(path, doc string) error {
	info, err := os.Stat(path)
	if err != nil {
		return newError(KindUnreadable, doc, "", err)
	}
	if !info.Mode().IsRegular() {
		return newError(KindUnreadable, doc, "not a regular file", nil)
	}
	return nil
}
