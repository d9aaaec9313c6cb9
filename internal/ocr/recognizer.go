package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/jackzampolin/rapor/internal/metrics"
	"github.com/jackzampolin/rapor/internal/preprocess"
)

const (
	// DefaultMinTextLength is the shortest primary result accepted without fallback.
	DefaultMinTextLength = 5
	// DefaultMinConfidence is the threshold below which segments are low confidence.
	DefaultMinConfidence = 0.5
)

// DefaultLanguages is the secondary engine hint for Indonesian report cards.
var DefaultLanguages = []string{"ind", "eng"}

// RecognizerConfig configures a Recognizer.
type RecognizerConfig struct {
	Primary   Engine
	Secondary Engine // optional
	Binarizer preprocess.Binarizer

	// MinTextLength is the minimum rune count of the trimmed primary text.
	// Shorter or empty results trigger the secondary engine. Zero means
	// DefaultMinTextLength.
	MinTextLength int

	// MinConfidence marks segments as low confidence. Zero means
	// DefaultMinConfidence.
	MinConfidence float64

	// FilterLowConfidence drops low-confidence segments from the text.
	// When false they are only logged.
	FilterLowConfidence bool

	// Languages is passed to the secondary engine.
	Languages []string

	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// Outcome is the text chosen for one image.
type Outcome struct {
	Text     string    `json:"text"`
	Engine   string    `json:"engine"`
	Fallback bool      `json:"fallback"`
	Segments []Segment `json:"segments,omitempty"`

	// PrimaryErr holds the primary engine error when the fallback was caused by a failure.
	PrimaryErr error `json:"-"`
	// SecondaryErr is set when the secondary engine failed and the text is empty.
	SecondaryErr error `json:"-"`
}

// Degraded reports whether the secondary engine failed and no text was produced.
func (o *Outcome) Degraded() bool { return o.SecondaryErr != nil }

// Recognizer runs the primary engine and falls back to the secondary engine
// on a binarized copy of the image when the primary result is too short.
type Recognizer struct {
	primary             Engine
	secondary           Engine
	binarizer           preprocess.Binarizer
	minTextLength       int
	minConfidence       float64
	filterLowConfidence bool
	languages           []string
	metrics             *metrics.Recorder
	logger              *slog.Logger
}

// NewRecognizer creates a Recognizer, filling in defaults.
func NewRecognizer(cfg RecognizerConfig) (*Recognizer, error) {
	if cfg.Primary == nil {
		return nil, ErrNoEngine
	}
	if cfg.Binarizer.BlockSize == 0 {
		cfg.Binarizer = preprocess.DefaultBinarizer()
	}
	switch {
	case cfg.MinTextLength < 0:
		return nil, fmt.Errorf("min text length must not be negative: %d", cfg.MinTextLength)
	case cfg.MinTextLength == 0:
		cfg.MinTextLength = DefaultMinTextLength
	}
	switch {
	case cfg.MinConfidence < 0 || cfg.MinConfidence > 1:
		return nil, fmt.Errorf("min confidence must be within [0,1]: %v", cfg.MinConfidence)
	case cfg.MinConfidence == 0:
		cfg.MinConfidence = DefaultMinConfidence
	}
	if cfg.Languages == nil {
		cfg.Languages = DefaultLanguages
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Recognizer{
		primary:             cfg.Primary,
		secondary:           cfg.Secondary,
		binarizer:           cfg.Binarizer,
		minTextLength:       cfg.MinTextLength,
		minConfidence:       cfg.MinConfidence,
		filterLowConfidence: cfg.FilterLowConfidence,
		languages:           cfg.Languages,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger,
	}, nil
}

// Primary returns the primary engine.
func (r *Recognizer) Primary() Engine { return r.primary }

// Secondary returns the secondary engine, or nil.
func (r *Recognizer) Secondary() Engine { return r.secondary }

// RecognizeFile loads the image at path and recognizes it.
func (r *Recognizer) RecognizeFile(ctx context.Context, id, path string) (*Outcome, error) {
	img, err := preprocess.Load(path)
	if err != nil {
		return nil, err
	}
	in, err := InputFromImage(id, img)
	if err != nil {
		return nil, err
	}
	return r.Recognize(ctx, in)
}

// Recognize returns the text for one image.
//
// The primary engine sees the original image. If its trimmed text is shorter
// than MinTextLength, or the call fails, the secondary engine runs once on the
// binarized image. A failing secondary yields an empty, degraded outcome rather
// than an error. Only an undecodable image or a cancelled context is an error.
func (r *Recognizer) Recognize(ctx context.Context, in Input) (*Outcome, error) {
	if in.Image == nil {
		if len(in.Data) == 0 {
			return nil, fmt.Errorf("%w: empty input", ErrUnreadableImage)
		}
		decoded, err := NewInput(in.ID, in.Data)
		if err != nil {
			return nil, err
		}
		in.Image = decoded.Image
	}
	log := r.logger.With("item", in.ID)

	rec, primaryErr := r.call(ctx, r.primary, in, metrics.RolePrimary)
	if primaryErr != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var segments []Segment
	if primaryErr == nil {
		segments = r.screen(log, rec.Segments)
	} else {
		log.Warn("primary engine failed", "engine", r.primary.Name(), "error", primaryErr)
	}
	text := JoinSegments(segments)
	log.Debug("primary result", "engine", r.primary.Name(), "text", text)

	if primaryErr == nil && text != "" && utf8.RuneCountInString(text) >= r.minTextLength {
		return &Outcome{Text: text, Engine: r.primary.Name(), Segments: segments}, nil
	}

	if r.secondary == nil {
		if primaryErr != nil {
			return nil, fmt.Errorf("primary engine %s failed: %w", r.primary.Name(), primaryErr)
		}
		return &Outcome{Text: text, Engine: r.primary.Name(), Segments: segments}, nil
	}

	log.Info("primary text too short, using secondary engine",
		"primary", r.primary.Name(), "secondary", r.secondary.Name(), "chars", utf8.RuneCountInString(text))
	r.metrics.RecordFallback()

	out := &Outcome{Engine: r.secondary.Name(), Fallback: true, PrimaryErr: primaryErr}

	bin, err := r.binarizer.Apply(in.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to binarize image: %w", err)
	}
	binIn, err := InputFromImage(in.ID, bin)
	if err != nil {
		return nil, err
	}
	binIn.Languages = r.languages

	rec, err = r.call(ctx, r.secondary, binIn, metrics.RoleSecondary)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("secondary engine failed", "engine", r.secondary.Name(), "error", err)
		out.SecondaryErr = err
		return out, nil
	}

	out.Segments = rec.Segments
	out.Text = JoinSegments(rec.Segments)
	log.Debug("secondary result", "engine", r.secondary.Name(), "text", out.Text)
	return out, nil
}

// call runs one engine and records its metric.
func (r *Recognizer) call(ctx context.Context, e Engine, in Input, role string) (*Recognition, error) {
	start := time.Now()
	rec, err := e.Recognize(ctx, in)
	if err == nil && rec == nil {
		err = errors.New("engine returned no result")
	}

	var chars, segs int
	if err == nil {
		chars = utf8.RuneCountInString(rec.Text())
		segs = len(rec.Segments)
	}
	r.metrics.RecordOCRCall(metrics.RecordOpts{ItemKey: in.ID, Role: role}, e.Name(), chars, segs, time.Since(start), err)
	return rec, err
}

// screen logs every segment and drops low-confidence ones when filtering is on.
func (r *Recognizer) screen(log *slog.Logger, segments []Segment) []Segment {
	kept := make([]Segment, 0, len(segments))
	for _, s := range segments {
		low := s.Confidence != ConfidenceUnknown && s.Confidence < r.minConfidence
		log.Debug("detected", "text", s.Text, "confidence", s.Confidence, "low_confidence", low)
		if low && r.filterLowConfidence {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}
