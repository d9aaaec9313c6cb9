// Package tesseract provides a Tesseract OCR engine backed by gosseract.
// It lives in its own package because it requires cgo and libtesseract.
package tesseract

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/jackzampolin/rapor/internal/ocr"
)

const Name = "tesseract"

// Config configures the engine.
type Config struct {
	// Languages used when the input carries no hint, e.g. ["ind", "eng"].
	Languages []string
	// Variables are passed to SetVariable, e.g. tessedit_pageseg_mode.
	Variables map[string]string
}

// Engine implements ocr.Engine with a single reusable gosseract client.
// Calls are serialized.
type Engine struct {
	mu            sync.Mutex
	languages     []string
	variables     map[string]string
	client        *gosseract.Client
	clientFactory func() *gosseract.Client
}

// New creates a Tesseract engine. The client is created by Init or on first use.
func New(cfg Config) *Engine {
	return &Engine{
		languages:     cfg.Languages,
		variables:     cfg.Variables,
		clientFactory: gosseract.NewClient,
	}
}

// Name returns the engine identifier.
func (e *Engine) Name() string { return Name }

// Init creates the gosseract client once.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ensureClient()
}

func (e *Engine) ensureClient() error {
	if e.client != nil {
		return nil
	}
	c := e.clientFactory()
	for k, v := range e.variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			c.Close()
			return fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	e.client = c
	return nil
}

// Close releases the gosseract client.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

// Recognize runs Tesseract on the input image and returns one segment per text line.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (*ocr.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureClient(); err != nil {
		return nil, err
	}
	c := e.client

	if err := c.SetImageFromBytes(in.Data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	langs := in.Languages
	if len(langs) == 0 {
		langs = e.languages
	}
	if len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	segments := lineSegments(c)
	if len(segments) == 0 {
		segments = ocr.LineSegments(text, ocr.ConfidenceUnknown)
	}
	return &ocr.Recognition{Engine: Name, Segments: segments}, nil
}

func lineSegments(c *gosseract.Client) []ocr.Segment {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil || len(boxes) == 0 {
		return nil
	}
	segs := make([]ocr.Segment, 0, len(boxes))
	for _, b := range boxes {
		t := strings.TrimSpace(b.Word)
		if t == "" {
			continue
		}
		segs = append(segs, ocr.Segment{Text: t, Confidence: b.Confidence / 100.0})
	}
	return segs
}

// Verify interface
var _ ocr.Engine = (*Engine)(nil)
