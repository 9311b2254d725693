package control

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakey01/dokterku-sub007/internal/core/config"
	"github.com/yakey01/dokterku-sub007/internal/core/domain"
	"github.com/yakey01/dokterku-sub007/internal/infra/push"
	"github.com/yakey01/dokterku-sub007/internal/live"
)

const dokterPayload = `{"jaga_quests":[{"id":1,"tanggal":"2025-01-10","jenis_jaspel":"jaga_pagi","nominal":150000}],"achievement_tindakan":[]}`

func clearTokenEnv(t *testing.T) {
	t.Setenv("JASPEL_API_TOKEN", "")
	t.Setenv("AUTH_TOKEN", "")
}

func testConfig(baseURL string) *config.AppConfig {
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Backend.BaseURL = baseURL
	cfg.Backend.RequestTimeout = 2 * time.Second
	cfg.Backend.Token.Static = "secret"
	cfg.Variants = []config.VariantConfig{{
		Name:      domain.VariantDokter,
		UserID:    "42",
		Endpoints: []config.EndpointConfig{{Name: "main", Path: "/api/jaspel"}},
	}}
	cfg.Live.Enabled = true
	cfg.Live.ReconnectBase = 5 * time.Millisecond
	cfg.Live.ReconnectMax = 20 * time.Millisecond
	return cfg
}

func TestService_Lifecycle(t *testing.T) {
	clearTokenEnv(t)

	var hits atomic.Int32
	var auth atomic.Value
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		auth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(dokterPayload))
	}))
	defer backend.Close()

	svc, err := NewService(testConfig(backend.URL), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop(context.Background())

	m, ok := svc.Manager(domain.VariantDokter)
	require.True(t, ok)
	require.Eventually(t, func() bool { return len(m.Snapshot().Items) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Bearer secret", auth.Load())
	assert.Equal(t, "150000", m.Snapshot().Summary.Total.String())

	coord, ok := svc.Coordinator(domain.VariantDokter)
	require.True(t, ok)
	require.Eventually(t, func() bool { return coord.State() == live.StateWaiting }, 2*time.Second, 5*time.Millisecond)

	before := hits.Load()
	require.NoError(t, svc.Publisher().Publish(ctx, push.Channel("dokter", "42"), push.EventJaspelUpdated, nil))
	require.Eventually(t, func() bool { return hits.Load() > before }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(m.Notifications()) == 1 }, 2*time.Second, 5*time.Millisecond)

	title := map[string]string{"title": "Jaga 10 kali"}
	require.NoError(t, svc.Publisher().Publish(ctx, push.Channel("dokter", "42"), push.EventAchievementUnlocked, title))
	require.Eventually(t, func() bool { return len(m.Achievements()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Jaga 10 kali", m.Achievements()[0].Title)

	dash := m.Dashboard()
	require.Len(t, dash.Achievements, 1)
	assert.Equal(t, "150000", dash.Summary.Total.String())
}

func TestService_FailureKeepsServing(t *testing.T) {
	clearTokenEnv(t)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"Internal Server Error"}`))
	}))
	defer backend.Close()

	cfg := testConfig(backend.URL)
	cfg.Live.Enabled = false
	svc, err := NewService(cfg, Options{})
	require.NoError(t, err)
	defer svc.Stop(context.Background())

	_, ok := svc.Coordinator(domain.VariantDokter)
	assert.False(t, ok)

	m, _ := svc.Manager(domain.VariantDokter)
	require.Error(t, m.Refresh(context.Background()))

	snap := m.Snapshot()
	require.NotNil(t, snap.Error)
	assert.Equal(t, domain.CategorySystem, snap.Error.Category)
	assert.Equal(t, 1, svc.Tracker().Stats().Total)
}

func TestNewTokenSource_Order(t *testing.T) {
	clearTokenEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))

	cfg := config.Default().Backend
	cfg.Token.Static = "from-static"

	tok, ok := NewTokenSource(cfg, nil).Token(context.Background())
	require.True(t, ok)
	assert.Equal(t, "from-static", tok)

	cfg.Token.File = path
	tok, _ = NewTokenSource(cfg, nil).Token(context.Background())
	assert.Equal(t, "from-file", tok)

	t.Setenv("AUTH_TOKEN", "from-env")
	tok, _ = NewTokenSource(cfg, nil).Token(context.Background())
	assert.Equal(t, "from-env", tok)
}

func TestNewNormalizer_UsesQualityBounds(t *testing.T) {
	n := NewNormalizer(config.QualityConfig{MaxAmount: 100000, MaxAge: 100 * 365 * 24 * time.Hour})
	res, err := n.Normalize([]byte(dokterPayload), domain.VariantDokter)
	require.NoError(t, err)
	assert.Less(t, res.Quality.Validity, 100.0)
}
