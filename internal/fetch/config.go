package fetch

import (
	"time"

	"github.com/yakey01/dokterku-sub007/internal/core/config"
	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

// DefaultTimeout bounds a single candidate call.
const DefaultTimeout = 8 * time.Second

// Config configures an Orchestrator.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	CSRFToken         string
	StopOnAuthFailure bool
	// Endpoints lists candidates per variant, most reliable first.
	Endpoints map[domain.Variant][]config.EndpointConfig
}

// ConfigFrom derives an orchestrator config from the application config.
func ConfigFrom(app *config.AppConfig) Config {
	cfg := Config{
		BaseURL:           app.Backend.BaseURL,
		Timeout:           app.Backend.RequestTimeout,
		CSRFToken:         app.Backend.CSRFToken,
		StopOnAuthFailure: app.Backend.StopOnAuth(),
		Endpoints:         make(map[domain.Variant][]config.EndpointConfig, len(app.Variants)),
	}
	for _, v := range app.Variants {
		cfg.Endpoints[v.Name] = v.Endpoints
	}
	return cfg
}
