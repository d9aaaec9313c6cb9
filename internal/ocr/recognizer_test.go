package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/jackzampolin/rapor/internal/metrics"
)

func testImage(t *testing.T) Input {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 40, 20))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetGray(10, 10, color.Gray{Y: 10})
	in, err := InputFromImage("page-0", img)
	if err != nil {
		t.Fatal(err)
	}
	return in
}

func TestRecognizer_Threshold(t *testing.T) {
	tests := []struct {
		name         string
		primary      string
		wantFallback bool
		wantText     string
	}{
		{"four chars falls back", "abcd", true, "secondary text"},
		{"five chars accepted", "abcde", false, "abcde"},
		{"whitespace trimmed before counting", "  ab  ", true, "secondary text"},
		{"empty falls back", "", true, "secondary text"},
		{"runes not bytes", "éééé", true, "secondary text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := NewMockEngine("primary", tt.primary)
			secondary := NewMockEngine("secondary", "secondary", "text")
			r, err := NewRecognizer(RecognizerConfig{
				Primary:       primary,
				Secondary:     secondary,
				MinTextLength: DefaultMinTextLength,
			})
			if err != nil {
				t.Fatal(err)
			}

			out, err := r.Recognize(context.Background(), testImage(t))
			if err != nil {
				t.Fatalf("Recognize() error = %v", err)
			}
			if out.Fallback != tt.wantFallback {
				t.Errorf("Fallback = %v, want %v", out.Fallback, tt.wantFallback)
			}
			if out.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", out.Text, tt.wantText)
			}
			wantCalls := int64(0)
			if tt.wantFallback {
				wantCalls = 1
			}
			if secondary.RequestCount() != wantCalls {
				t.Errorf("secondary calls = %d, want %d", secondary.RequestCount(), wantCalls)
			}
		})
	}
}

func TestRecognizer_SecondaryGetsBinarizedImageAndLanguages(t *testing.T) {
	primary := NewMockEngine("primary")
	secondary := NewMockEngine("secondary", "Matematika 85")
	r, _ := NewRecognizer(RecognizerConfig{
		Primary:       primary,
		Secondary:     secondary,
		MinTextLength: 5,
		Languages:     []string{"ind", "eng"},
	})

	in := testImage(t)
	if _, err := r.Recognize(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	if got := primary.Inputs()[0].Image; got != in.Image {
		t.Error("primary did not receive the original image")
	}
	sec := secondary.Inputs()[0]
	gray, ok := sec.Image.(*image.Gray)
	if !ok {
		t.Fatalf("secondary image type = %T, want *image.Gray", sec.Image)
	}
	for _, p := range gray.Pix {
		if p != 0 && p != 255 {
			t.Fatalf("secondary image not binary: %d", p)
		}
	}
	if len(sec.Languages) != 2 || sec.Languages[0] != "ind" || sec.Languages[1] != "eng" {
		t.Errorf("secondary languages = %v", sec.Languages)
	}
}

func TestRecognizer_LowConfidence(t *testing.T) {
	segments := []Segment{
		{Text: "Matematika", Confidence: 0.9},
		{Text: "85", Confidence: 0.3},
		{Text: "Bahasa", Confidence: ConfidenceUnknown},
	}

	t.Run("kept by default", func(t *testing.T) {
		primary := &MockEngine{EngineName: "p", Responses: [][]Segment{segments}}
		r, _ := NewRecognizer(RecognizerConfig{Primary: primary, MinConfidence: 0.5, MinTextLength: 5})
		out, err := r.Recognize(context.Background(), testImage(t))
		if err != nil {
			t.Fatal(err)
		}
		if out.Text != "Matematika 85 Bahasa" {
			t.Errorf("Text = %q", out.Text)
		}
	})

	t.Run("dropped when filtering", func(t *testing.T) {
		primary := &MockEngine{EngineName: "p", Responses: [][]Segment{segments}}
		r, _ := NewRecognizer(RecognizerConfig{
			Primary:             primary,
			MinConfidence:       0.5,
			MinTextLength:       5,
			FilterLowConfidence: true,
		})
		out, err := r.Recognize(context.Background(), testImage(t))
		if err != nil {
			t.Fatal(err)
		}
		if out.Text != "Matematika Bahasa" {
			t.Errorf("Text = %q", out.Text)
		}
	})
}

func TestRecognizer_Failures(t *testing.T) {
	t.Run("primary error falls back", func(t *testing.T) {
		primary := NewMockEngine("p")
		primary.ShouldFail = true
		rec := metrics.NewRecorder(0)
		r, _ := NewRecognizer(RecognizerConfig{
			Primary:       primary,
			Secondary:     NewMockEngine("s", "from secondary"),
			MinTextLength: 5,
			Metrics:       rec,
		})
		out, err := r.Recognize(context.Background(), testImage(t))
		if err != nil {
			t.Fatalf("Recognize() error = %v", err)
		}
		if !out.Fallback || out.PrimaryErr == nil || out.Text != "from secondary" {
			t.Errorf("outcome = %+v", out)
		}
		rep := rec.Report()
		if rep.Fallbacks != 1 || rep.Engines["p"].ErrorCount != 1 {
			t.Errorf("metrics = %+v", rep)
		}
	})

	t.Run("secondary error yields empty degraded text", func(t *testing.T) {
		secondary := NewMockEngine("s")
		secondary.ShouldFail = true
		r, _ := NewRecognizer(RecognizerConfig{
			Primary:       NewMockEngine("p", "ab"),
			Secondary:     secondary,
			MinTextLength: 5,
		})
		out, err := r.Recognize(context.Background(), testImage(t))
		if err != nil {
			t.Fatalf("Recognize() error = %v", err)
		}
		if out.Text != "" || !out.Degraded() {
			t.Errorf("outcome = %+v, want empty degraded", out)
		}
	})

	t.Run("primary error without secondary", func(t *testing.T) {
		primary := NewMockEngine("p")
		primary.ShouldFail = true
		r, _ := NewRecognizer(RecognizerConfig{Primary: primary, MinTextLength: 5})
		if _, err := r.Recognize(context.Background(), testImage(t)); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("short text without secondary is returned", func(t *testing.T) {
		r, _ := NewRecognizer(RecognizerConfig{Primary: NewMockEngine("p", "ab"), MinTextLength: 5})
		out, err := r.Recognize(context.Background(), testImage(t))
		if err != nil || out.Text != "ab" || out.Fallback {
			t.Errorf("Recognize() = %+v, %v", out, err)
		}
	})

	t.Run("undecodable image", func(t *testing.T) {
		r, _ := NewRecognizer(RecognizerConfig{Primary: NewMockEngine("p", "text")})
		_, err := r.Recognize(context.Background(), Input{ID: "x", Data: []byte("garbage")})
		if !errors.Is(err, ErrUnreadableImage) {
			t.Errorf("error = %v, want ErrUnreadableImage", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		primary := NewMockEngine("p", "text")
		primary.Latency = 1e9
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r, _ := NewRecognizer(RecognizerConfig{Primary: primary, Secondary: NewMockEngine("s", "x")})
		if _, err := r.Recognize(ctx, testImage(t)); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

func TestRecognizer_ZeroSettingsUseDefaults(t *testing.T) {
	tests := []struct {
		name         string
		cfg          RecognizerConfig
		primary      []Segment
		wantText     string
		wantFallback bool
	}{
		{
			name:         "unset min length, empty primary",
			wantText:     "Matematika 85",
			wantFallback: true,
		},
		{
			name:         "unset min length, short primary",
			primary:      []Segment{{Text: "abc", Confidence: 0.9}},
			wantText:     "Matematika 85",
			wantFallback: true,
		},
		{
			name:     "unset min confidence still filters",
			cfg:      RecognizerConfig{FilterLowConfidence: true},
			primary:  []Segment{{Text: "Bahasa Inggris 90", Confidence: 0.9}, {Text: "noise", Confidence: 0.1}},
			wantText: "Bahasa Inggris 90",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secondary := NewMockEngine("secondary", "Matematika 85")
			cfg := tt.cfg
			cfg.Primary = &MockEngine{EngineName: "primary", Responses: [][]Segment{tt.primary}}
			cfg.Secondary = secondary
			r, err := NewRecognizer(cfg)
			if err != nil {
				t.Fatal(err)
			}
			out, err := r.Recognize(context.Background(), testImage(t))
			if err != nil {
				t.Fatal(err)
			}
			if out.Text != tt.wantText || out.Fallback != tt.wantFallback {
				t.Errorf("Recognize() = %q fallback %v, want %q fallback %v", out.Text, out.Fallback, tt.wantText, tt.wantFallback)
			}
			if tt.wantFallback && secondary.RequestCount() != 1 {
				t.Errorf("secondary calls = %d, want 1", secondary.RequestCount())
			}
		})
	}
}

func TestNewRecognizer(t *testing.T) {
	if _, err := NewRecognizer(RecognizerConfig{}); !errors.Is(err, ErrNoEngine) {
		t.Errorf("error = %v, want ErrNoEngine", err)
	}
	if _, err := NewRecognizer(RecognizerConfig{Primary: NewMockEngine("p"), MinTextLength: -1}); err == nil {
		t.Error("expected error for negative min text length")
	}
	if _, err := NewRecognizer(RecognizerConfig{Primary: NewMockEngine("p"), MinConfidence: 1.5}); err == nil {
		t.Error("expected error for min confidence above one")
	}
}

func TestJoinSegments(t *testing.T) {
	got := JoinSegments([]Segment{{Text: " Bahasa "}, {Text: ""}, {Text: "Indonesia"}, {Text: "90\n"}})
	if got != "Bahasa Indonesia 90" {
		t.Errorf("JoinSegments() = %q", got)
	}
}

func TestLineSegments(t *testing.T) {
	segs := LineSegments("# Rapor\n\nMatematika 85\n  \nBahasa Inggris 70\n", ConfidenceUnknown)
	if len(segs) != 3 || segs[1].Text != "Matematika 85" || segs[2].Confidence != ConfidenceUnknown {
		t.Errorf("LineSegments() = %+v", segs)
	}
}
