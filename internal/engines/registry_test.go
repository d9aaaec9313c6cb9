package engines

import (
	"context"
	"errors"
	"testing"

	"github.com/jackzampolin/rapor/internal/ocr"
	"github.com/jackzampolin/rapor/internal/ocr/tesseract"
)

func TestNewFromConfig(t *testing.T) {
	t.Run("builds enabled engines", func(t *testing.T) {
		r, err := NewFromConfig(RegistryConfig{Engines: map[string]EngineConfig{
			"paddle":    {Type: TypePaddle, URL: "http://127.0.0.1:1", Enabled: true},
			"tesseract": {Type: TypeTesseract, Languages: []string{"ind", "eng"}, Enabled: true},
			"mistral":   {Type: TypeMistral, APIKey: "k", Enabled: true},
			"deepinfra": {Type: TypeDeepInfra, Enabled: false},
		}})
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		names := r.Names()
		want := []string{"mistral", "paddle", "tesseract"}
		if len(names) != len(want) {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
			}
		}

		e, _ := r.Get("paddle")
		if _, ok := e.(*ocr.PaddleEngine); !ok {
			t.Errorf("paddle engine type = %T", e)
		}
		e, _ = r.Get("tesseract")
		if _, ok := e.(*tesseract.Engine); !ok {
			t.Errorf("tesseract engine type = %T", e)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		r, err := NewFromConfig(RegistryConfig{Engines: map[string]EngineConfig{
			"mistral": {Type: TypeMistral, APIKey: "k", RateLimit: 30, Enabled: true},
		}})
		if err != nil {
			t.Fatal(err)
		}
		e, err := r.Get("mistral")
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := e.(*ocr.MistralEngine); ok {
			t.Error("expected the engine to be wrapped by a rate limiter")
		}
		if e.Name() != ocr.NewMistralEngine(ocr.MistralConfig{APIKey: "k"}).Name() {
			t.Errorf("Name() = %q", e.Name())
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewFromConfig(RegistryConfig{Engines: map[string]EngineConfig{
			"x": {Type: "easyocr", Enabled: true},
		}})
		if !errors.Is(err, ErrUnknownType) {
			t.Errorf("error = %v, want ErrUnknownType", err)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := NewFromConfig(RegistryConfig{Engines: map[string]EngineConfig{
			"deepinfra": {Type: TypeDeepInfra, Enabled: true},
		}})
		if err == nil {
			t.Error("expected error for missing API key")
		}
	})
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry()
	a := ocr.NewMockEngine("a")
	b := ocr.NewMockEngine("b")
	r.Register("a", a)
	r.Register("b", b)

	if r.Initialized() {
		t.Error("Initialized() before Init")
	}
	for i := 0; i < 3; i++ {
		if err := r.Init(context.Background()); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
	}
	if a.InitCount() != 1 || b.InitCount() != 1 {
		t.Errorf("engines initialized %d/%d times, want once", a.InitCount(), b.InitCount())
	}
	if !r.Initialized() {
		t.Error("Initialized() = false after Init")
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !a.Closed() || !b.Closed() {
		t.Error("engines not closed")
	}

	if _, err := r.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v", err)
	}
}
