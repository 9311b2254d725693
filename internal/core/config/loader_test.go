package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_BACKEND_URL", "https://dokterku.example.test")

	configContent := `
backend:
  base_url: ${TEST_BACKEND_URL}
  request_timeout: 5s
`
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.Write([]byte(configContent))
	require.NoError(t, err)
	tmpFile.Close()

	cfg, err := Load(tmpFile.Name())
	require.NoError(t, err)

	assert.Equal(t, "https://dokterku.example.test", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.RequestTimeout)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8*time.Second, cfg.Backend.RequestTimeout)
	assert.True(t, cfg.Backend.StopOnAuth())
	require.Len(t, cfg.Variants, 2)

	dokter, ok := cfg.Variant(domain.VariantDokter)
	require.True(t, ok)
	assert.Len(t, dokter.Endpoints, 3)

	assert.Equal(t, 60*time.Second, cfg.Cache.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.Cache.Namespaces[NamespaceData].TTL)
	assert.Equal(t, 10, cfg.Errors.HistorySize)
	assert.Equal(t, 30*time.Second, cfg.Live.ReconnectMax)
	assert.Equal(t, 10*time.Second, cfg.Live.NotificationTTL)
	assert.Equal(t, 5, cfg.Live.NotificationKeep)
}

func TestParse_PartialNamespaceOverride(t *testing.T) {
	cfg, err := Parse([]byte(`
cache:
  namespaces:
    data:
      capacity: 7
`))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Cache.Namespaces[NamespaceData].Capacity)
	assert.Equal(t, 5*time.Minute, cfg.Cache.Namespaces[NamespaceData].TTL)
	assert.Equal(t, 50, cfg.Cache.Namespaces[NamespaceSummary].Capacity)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown variant", "variants:\n  - name: perawat\n"},
		{"duplicate variant", "variants:\n  - name: dokter\n  - name: dokter\n"},
		{"bad amount range", "quality:\n  min_amount: 10\n  max_amount: 5\n"},
		{"bad multiplier", "refresh:\n  multiplier: 0.5\n"},
		{"malformed", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestBackendConfig_StopOnAuthOverride(t *testing.T) {
	cfg, err := Parse([]byte("backend:\n  stop_on_auth_failure: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Backend.StopOnAuth())
}
