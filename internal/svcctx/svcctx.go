// Package svcctx carries the rapor services through request contexts.
// It sits apart from server so that endpoints can read services without
// an import cycle.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/rapor/internal/config"
	"github.com/jackzampolin/rapor/internal/engines"
	"github.com/jackzampolin/rapor/internal/export"
	"github.com/jackzampolin/rapor/internal/home"
	"github.com/jackzampolin/rapor/internal/metrics"
	"github.com/jackzampolin/rapor/internal/pipeline"
)

// Services is everything a handler may need. Fields may be nil in tests;
// the extractors below return the zero value in that case.
type Services struct {
	Pipeline *pipeline.Pipeline
	Batch    *pipeline.Batch
	Exporter *export.Exporter
	Engines  *engines.Registry
	Metrics  *metrics.Recorder
	Config   *config.Config
	Logger   *slog.Logger
	Home     *home.Dir

	// UploadsDir receives documents posted to the scan endpoint.
	UploadsDir string
}

type servicesKey struct{}

// WithServices attaches s to ctx.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom returns the attached services, or nil.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

func field[T any](ctx context.Context, get func(*Services) T) T {
	if s := ServicesFrom(ctx); s != nil {
		return get(s)
	}
	var zero T
	return zero
}

func PipelineFrom(ctx context.Context) *pipeline.Pipeline {
	return field(ctx, func(s *Services) *pipeline.Pipeline { return s.Pipeline })
}

func BatchFrom(ctx context.Context) *pipeline.Batch {
	return field(ctx, func(s *Services) *pipeline.Batch { return s.Batch })
}

func ExporterFrom(ctx context.Context) *export.Exporter {
	return field(ctx, func(s *Services) *export.Exporter { return s.Exporter })
}

func EnginesFrom(ctx context.Context) *engines.Registry {
	return field(ctx, func(s *Services) *engines.Registry { return s.Engines })
}

func MetricsFrom(ctx context.Context) *metrics.Recorder {
	return field(ctx, func(s *Services) *metrics.Recorder { return s.Metrics })
}

func ConfigFrom(ctx context.Context) *config.Config {
	return field(ctx, func(s *Services) *config.Config { return s.Config })
}

func HomeFrom(ctx context.Context) *home.Dir {
	return field(ctx, func(s *Services) *home.Dir { return s.Home })
}

// LoggerFrom never returns nil; it falls back to slog.Default.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l := field(ctx, func(s *Services) *slog.Logger { return s.Logger }); l != nil {
		return l
	}
	return slog.Default()
}
