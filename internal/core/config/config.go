package config

import (
	"time"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
	redisclient "github.com/yakey01/dokterku-sub007/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Redis    redisclient.Config `yaml:"redis"`
	Backend  BackendConfig      `yaml:"backend"`
	Variants []VariantConfig    `yaml:"variants"`
	Cache    CacheConfig        `yaml:"cache"`
	Refresh  RefreshConfig      `yaml:"refresh"`
	Live     LiveConfig         `yaml:"live"`
	Quality  QualityConfig      `yaml:"quality"`
	Errors   ErrorsConfig       `yaml:"errors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// BackendConfig describes how to reach the Jaspel backend.
type BackendConfig struct {
	BaseURL           string        `yaml:"base_url"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	CSRFToken         string        `yaml:"csrf_token"`
	StopOnAuthFailure *bool         `yaml:"stop_on_auth_failure"`
	Token             TokenConfig   `yaml:"token"`
}

// TokenConfig lists the bearer token stores, consulted in order.
type TokenConfig struct {
	Static  string   `yaml:"static"`
	EnvVars []string `yaml:"env"`
	File    string   `yaml:"file"`
	PageURL string   `yaml:"page_url"` // HTML page carrying a <meta name="api-token"> field
	Meta    string   `yaml:"meta"`
}

// VariantConfig holds the candidate endpoints of one variant.
type VariantConfig struct {
	Name      domain.Variant   `yaml:"name"`
	UserID    string           `yaml:"user_id"`
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig is a single candidate endpoint.
// Path may contain a {period} placeholder; otherwise period is sent as a query parameter.
type EndpointConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// CacheConfig tunes the named sub-caches.
type CacheConfig struct {
	SweepInterval time.Duration              `yaml:"sweep_interval"`
	Namespaces    map[string]NamespaceConfig `yaml:"namespaces"`
}

// NamespaceConfig tunes one sub-cache.
type NamespaceConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
}

// RefreshConfig tunes the auto-refresh timer.
type RefreshConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	MaxInterval    time.Duration `yaml:"max_interval"`
	Multiplier     float64       `yaml:"multiplier"`
	LowPowerFactor float64       `yaml:"low_power_factor"`
	LowPower       bool          `yaml:"low_power"`
}

// LiveConfig tunes push subscriptions.
type LiveConfig struct {
	Enabled          bool          `yaml:"enabled"`
	ReconnectBase    time.Duration `yaml:"reconnect_base"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
	MaxAttempts      int           `yaml:"max_attempts"` // 0 = unlimited
	NotificationTTL  time.Duration `yaml:"notification_ttl"`
	NotificationKeep int           `yaml:"notification_keep"`
}

// QualityConfig holds the bounds used by the validity score.
type QualityConfig struct {
	MinAmount float64       `yaml:"min_amount"`
	MaxAmount float64       `yaml:"max_amount"`
	MaxAge    time.Duration `yaml:"max_age"`
}

// ErrorsConfig tunes the error history.
type ErrorsConfig struct {
	HistorySize int `yaml:"history_size"`
}

// StopOnAuth reports whether an authentication failure ends the candidate loop.
func (b BackendConfig) StopOnAuth() bool {
	if b.StopOnAuthFailure == nil {
		return true
	}
	return *b.StopOnAuthFailure
}

// Variant returns the config for the named variant.
func (c *AppConfig) Variant(v domain.Variant) (VariantConfig, bool) {
	for _, vc := range c.Variants {
		if vc.Name == v {
			return vc, true
		}
	}
	return VariantConfig{}, false
}
