// Package ocr adapts OCR engines to a common interface and implements the
// primary/secondary recognition policy.
package ocr

import (
	"context"
	"errors"
	"image"
	"io"
	"strings"

	"github.com/jackzampolin/rapor/internal/preprocess"
)

// ConfidenceUnknown marks segments from engines that do not report confidence.
// Such segments are never treated as low confidence.
const ConfidenceUnknown = -1.0

var (
	// ErrNoEngine is returned when a recognizer has no primary engine.
	ErrNoEngine = errors.New("no OCR engine configured")
	// ErrUnreadableImage is returned when the input image cannot be decoded.
	ErrUnreadableImage = preprocess.ErrUnreadableImage
)

// Segment is one recognized text region with its confidence in [0,1].
type Segment struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Recognition is the raw output of one engine call, segments in reading order.
type Recognition struct {
	Engine   string    `json:"engine"`
	Segments []Segment `json:"segments"`
}

// Text joins the non-empty segments with single spaces.
func (r *Recognition) Text() string {
	if r == nil {
		return ""
	}
	return JoinSegments(r.Segments)
}

// JoinSegments space-joins segment texts and trims the result.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// LineSegments splits text into one segment per non-empty line.
func LineSegments(text string, confidence float64) []Segment {
	var segs []Segment
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			segs = append(segs, Segment{Text: line, Confidence: confidence})
		}
	}
	return segs
}

// Input is one image to recognize. Data holds the encoded image and Image
// the decoded form; both describe the same pixels.
type Input struct {
	ID        string
	Data      []byte
	Image     image.Image
	Languages []string
}

// NewInput decodes data into an Input.
func NewInput(id string, data []byte) (Input, error) {
	img, _, err := preprocess.Decode(data)
	if err != nil {
		return Input{}, err
	}
	return Input{ID: id, Data: data, Image: img}, nil
}

// InputFromImage encodes img as PNG into an Input.
func InputFromImage(id string, img image.Image) (Input, error) {
	data, err := preprocess.EncodePNG(img)
	if err != nil {
		return Input{}, err
	}
	return Input{ID: id, Data: data, Image: img}, nil
}

// Engine recognizes text in an image.
type Engine interface {
	// Name returns the engine identifier (e.g. "paddle", "tesseract").
	Name() string

	// Recognize returns the text segments found in the input.
	Recognize(ctx context.Context, in Input) (*Recognition, error)
}

// Initializer is implemented by engines that load models or wait for a
// backend before first use.
type Initializer interface {
	Init(ctx context.Context) error
}

// Init initializes e if it implements Initializer.
func Init(ctx context.Context, e Engine) error {
	if i, ok := e.(Initializer); ok {
		return i.Init(ctx)
	}
	return nil
}

// Close releases e if it implements io.Closer.
func Close(e Engine) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
