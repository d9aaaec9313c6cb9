// Package engines builds and owns the configured OCR engines.
package engines

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackzampolin/rapor/internal/ocr"
	"github.com/jackzampolin/rapor/internal/ocr/tesseract"
)

// Engine types understood by NewFromConfig.
const (
	TypePaddle    = "paddle"
	TypeTesseract = "tesseract"
	TypeDeepInfra = "deepinfra"
	TypeMistral   = "mistral-ocr"
)

var (
	// ErrUnknownType is returned for an engine type NewFromConfig cannot build.
	ErrUnknownType = errors.New("unknown engine type")
	// ErrNotFound is returned by Get for an unregistered engine.
	ErrNotFound = errors.New("engine not found")
)

// EngineConfig matches config.EngineCfg with a resolved API key.
type EngineConfig struct {
	Type                string
	URL                 string
	Model               string
	APIKey              string
	Languages           []string
	Timeout             time.Duration
	RateLimit           int // requests per minute, 0 = unlimited
	AngleClassification bool
	Variables           map[string]string
	Enabled             bool
}

// RegistryConfig defines the engines to instantiate.
type RegistryConfig struct {
	Engines map[string]EngineConfig
	Logger  *slog.Logger
}

// Registry holds the OCR engines by name and manages their lifecycle.
// Engines are initialized once by Init and released by Close.
type Registry struct {
	mu          sync.RWMutex
	engines     map[string]ocr.Engine
	initialized bool
	logger      *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]ocr.Engine),
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// NewFromConfig creates a registry with every enabled engine.
func NewFromConfig(cfg RegistryConfig) (*Registry, error) {
	r := NewRegistry()
	if cfg.Logger != nil {
		r.logger = cfg.Logger
	}
	for name, engCfg := range cfg.Engines {
		if !engCfg.Enabled {
			continue
		}
		e, err := createEngine(engCfg)
		if err != nil {
			return nil, fmt.Errorf("engine %s: %w", name, err)
		}
		r.engines[name] = ocr.RateLimit(e, engCfg.RateLimit)
		r.logger.Debug("registered OCR engine", "name", name, "type", engCfg.Type)
	}
	return r, nil
}

// Register adds an engine under name, replacing any previous one.
func (r *Registry) Register(name string, e ocr.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[name] = e
	r.logger.Info("registered OCR engine", "name", name)
}

// Get returns an engine by name.
func (r *Registry) Get(name string) (ocr.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}

// Has checks if an engine is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.engines[name]
	return ok
}

// Names returns the registered engine names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Initialized reports whether Init completed successfully.
func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// Init initializes every engine once. Later calls are no-ops.
func (r *Registry) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return nil
	}
	for _, name := range r.sortedNamesLocked() {
		start := time.Now()
		if err := ocr.Init(ctx, r.engines[name]); err != nil {
			return fmt.Errorf("failed to initialize engine %s: %w", name, err)
		}
		r.logger.Info("OCR engine ready", "name", name, "took", time.Since(start).Round(time.Millisecond))
	}
	r.initialized = true
	return nil
}

// Close releases every engine and returns the first error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, name := range r.sortedNamesLocked() {
		if err := ocr.Close(r.engines[name]); err != nil {
			r.logger.Warn("failed to close engine", "name", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	r.initialized = false
	return firstErr
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// createEngine creates an engine based on its type.
func createEngine(cfg EngineConfig) (ocr.Engine, error) {
	switch cfg.Type {
	case TypePaddle:
		return ocr.NewPaddleEngine(ocr.PaddleConfig{
			URL:                 cfg.URL,
			Timeout:             cfg.Timeout,
			AngleClassification: cfg.AngleClassification,
		}), nil
	case TypeTesseract:
		return tesseract.New(tesseract.Config{
			Languages: cfg.Languages,
			Variables: cfg.Variables,
		}), nil
	case TypeDeepInfra:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("deepinfra engine requires an API key")
		}
		return ocr.NewDeepInfraEngine(ocr.DeepInfraConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.URL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	case TypeMistral:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("mistral engine requires an API key")
		}
		return ocr.NewMistralEngine(ocr.MistralConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.URL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}
