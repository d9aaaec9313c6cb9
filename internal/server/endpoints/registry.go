package endpoints

import (
	"github.com/jackzampolin/rapor/internal/api"
)

// Config carries settings for endpoints that need them.
type Config struct {
	SwaggerSpecPath string
}

// All lists every endpoint of the rapor server in registration order.
// StaticEndpoint matches any GET path and stays last.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},
		&ScanEndpoint{},
		&BatchEndpoint{},
		&VocabularyEndpoint{},
		&MetricsEndpoint{},
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&StaticEndpoint{},
	}
}
