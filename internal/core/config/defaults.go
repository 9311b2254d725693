package config

import (
	"time"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

// Cache namespaces.
const (
	NamespaceData        = "data"
	NamespaceSummary     = "summary"
	NamespaceDashboard   = "dashboard"
	NamespaceAchievement = "achievement"
)

// DefaultEndpoints returns the candidate endpoints for a variant, most reliable first.
func DefaultEndpoints(v domain.Variant) []EndpointConfig {
	switch v {
	case domain.VariantDokter:
		return []EndpointConfig{
			{Name: "dashboard-jaspel", Path: "/api/v2/dashboards/dokter/jaspel"},
			{Name: "mobile-data", Path: "/api/v2/jaspel/mobile-data"},
			{Name: "gaming", Path: "/api/v2/dashboards/dokter/gaming"},
		}
	case domain.VariantParamedis:
		return []EndpointConfig{
			{Name: "mobile-data-alt", Path: "/api/v2/jaspel/mobile-data-alt"},
			{Name: "paramedis-jaspel", Path: "/paramedis/api/v2/jaspel"},
			{Name: "dashboard-jaspel", Path: "/api/v2/dashboards/paramedis/jaspel"},
		}
	}
	return nil
}

// DefaultNamespaces returns the per-namespace cache tuning.
func DefaultNamespaces() map[string]NamespaceConfig {
	return map[string]NamespaceConfig{
		NamespaceData:        {TTL: 5 * time.Minute, Capacity: 100},
		NamespaceSummary:     {TTL: 10 * time.Minute, Capacity: 50},
		NamespaceDashboard:   {TTL: 2 * time.Minute, Capacity: 50},
		NamespaceAchievement: {TTL: 30 * time.Minute, Capacity: 20},
	}
}

// ApplyDefaults fills zero values with defaults.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Backend.RequestTimeout == 0 {
		c.Backend.RequestTimeout = 8 * time.Second
	}
	if len(c.Backend.Token.EnvVars) == 0 {
		c.Backend.Token.EnvVars = []string{"JASPEL_API_TOKEN", "AUTH_TOKEN"}
	}
	if c.Backend.Token.Meta == "" {
		c.Backend.Token.Meta = "api-token"
	}

	if len(c.Variants) == 0 {
		for _, v := range domain.Variants {
			c.Variants = append(c.Variants, VariantConfig{Name: v})
		}
	}
	for i := range c.Variants {
		if len(c.Variants[i].Endpoints) == 0 {
			c.Variants[i].Endpoints = DefaultEndpoints(c.Variants[i].Name)
		}
	}

	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = 60 * time.Second
	}
	defaults := DefaultNamespaces()
	if c.Cache.Namespaces == nil {
		c.Cache.Namespaces = defaults
	}
	for name, d := range defaults {
		ns := c.Cache.Namespaces[name]
		if ns.TTL == 0 {
			ns.TTL = d.TTL
		}
		if ns.Capacity == 0 {
			ns.Capacity = d.Capacity
		}
		c.Cache.Namespaces[name] = ns
	}

	if c.Refresh.Interval == 0 {
		c.Refresh.Interval = 30 * time.Second
	}
	if c.Refresh.MaxInterval == 0 {
		c.Refresh.MaxInterval = 5 * time.Minute
	}
	if c.Refresh.Multiplier == 0 {
		c.Refresh.Multiplier = 2
	}
	if c.Refresh.LowPowerFactor == 0 {
		c.Refresh.LowPowerFactor = 1.5
	}

	if c.Live.ReconnectBase == 0 {
		c.Live.ReconnectBase = time.Second
	}
	if c.Live.ReconnectMax == 0 {
		c.Live.ReconnectMax = 30 * time.Second
	}
	if c.Live.NotificationTTL == 0 {
		c.Live.NotificationTTL = 10 * time.Second
	}
	if c.Live.NotificationKeep == 0 {
		c.Live.NotificationKeep = 5
	}

	if c.Quality.MaxAmount == 0 {
		c.Quality.MaxAmount = 100_000_000
	}
	if c.Quality.MaxAge == 0 {
		c.Quality.MaxAge = 365 * 24 * time.Hour
	}

	if c.Errors.HistorySize == 0 {
		c.Errors.HistorySize = 10
	}
}

// Default returns a configuration with every default applied.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.ApplyDefaults()
	return cfg
}
