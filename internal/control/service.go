// Package control wires the Jaspel data layer together and runs it.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/yakey01/dokterku-sub007/internal/cache"
	"github.com/yakey01/dokterku-sub007/internal/core/config"
	"github.com/yakey01/dokterku-sub007/internal/core/domain"
	"github.com/yakey01/dokterku-sub007/internal/fetch"
	"github.com/yakey01/dokterku-sub007/internal/health"
	"github.com/yakey01/dokterku-sub007/internal/infra/push"
	redisclient "github.com/yakey01/dokterku-sub007/internal/infra/redis"
	"github.com/yakey01/dokterku-sub007/internal/infra/token"
	"github.com/yakey01/dokterku-sub007/internal/infra/transport"
	"github.com/yakey01/dokterku-sub007/internal/live"
	"github.com/yakey01/dokterku-sub007/internal/manager"
	"github.com/yakey01/dokterku-sub007/internal/normalize"
	"github.com/yakey01/dokterku-sub007/internal/recovery"
)

// Options overrides collaborators, mainly for tests.
type Options struct {
	Requester transport.Requester   // defaults to an HTTP requester
	LowPower  live.LowPowerDetector // defaults to refresh.low_power
	// Subscriber and Publisher default to Redis when configured, otherwise an
	// in-process hub.
	Subscriber push.Subscriber
	Publisher  push.Publisher
}

// Service owns every component of one process.
type Service struct {
	cfg          *config.AppConfig
	caches       *cache.Manager
	tracker      *recovery.Tracker
	monitor      *transport.Monitor
	orch         *fetch.Orchestrator
	managers     map[domain.Variant]*manager.Manager
	coordinators map[domain.Variant]*live.Coordinator
	refreshers   map[domain.Variant]*live.Refresher
	subscriber   push.Subscriber
	publisher    push.Publisher
	hub          *push.MemoryHub
	redisClient  *redisclient.Client
	healthServer *health.Server
	log          *slog.Logger
}

// NewService creates a Service with all dependencies initialized. The HTTP server runs
// only for a positive port. Config defaults turn an unset port into 8080, so a config
// file disables the server with a negative port.
func NewService(cfg *config.AppConfig, opts Options) (*Service, error) {
	log := slog.Default().With("component", "service")

	// 1. Transport and credentials
	requester := opts.Requester
	if requester == nil {
		httpReq, err := transport.NewHTTPRequester(cfg.Backend.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create requester: %w", err)
		}
		requester = httpReq
	}
	tokens := NewTokenSource(cfg.Backend, requester)

	// 2. Shared components
	caches := cache.NewManager(cfg.Cache, nil)
	tracker := recovery.NewTracker(recovery.NewClassifier(), cfg.Errors.HistorySize)
	monitor := transport.NewMonitor()
	orch := fetch.New(fetch.ConfigFrom(cfg), fetch.Deps{
		Requester:  requester,
		Tokens:     tokens,
		Caches:     caches,
		Normalizer: NewNormalizer(cfg.Quality),
		Tracker:    tracker,
		Monitor:    monitor,
	})

	s := &Service{
		cfg:          cfg,
		caches:       caches,
		tracker:      tracker,
		monitor:      monitor,
		orch:         orch,
		managers:     make(map[domain.Variant]*manager.Manager),
		coordinators: make(map[domain.Variant]*live.Coordinator),
		refreshers:   make(map[domain.Variant]*live.Refresher),
		log:          log,
	}

	// 3. Push transport
	if err := s.initPush(opts); err != nil {
		orch.Close()
		return nil, err
	}

	// 4. Per-variant managers, live coordinators and refreshers
	sources := make(map[string]health.Source)
	for _, vc := range cfg.Variants {
		notifier := live.NewNotifier(cfg.Live.NotificationKeep, cfg.Live.NotificationTTL)
		m := manager.New(manager.Config{
			Variant: vc.Name,
			UserID:  vc.UserID,
		}, manager.Deps{
			Fetcher:  orch,
			Caches:   caches,
			Tracker:  tracker,
			Monitor:  monitor,
			Notifier: notifier,
		})
		s.managers[vc.Name] = m
		sources[string(vc.Name)] = m

		if cfg.Live.Enabled {
			s.coordinators[vc.Name] = live.NewCoordinator(live.CoordinatorConfig{
				Variant: vc.Name,
				UserID:  vc.UserID,
				Backoff: &recovery.ExponentialBackoff{
					InitialDelay: cfg.Live.ReconnectBase,
					MaxDelay:     cfg.Live.ReconnectMax,
					MaxAttempts:  cfg.Live.MaxAttempts,
				},
				OnAchievement: func(title, message string) { m.RecordAchievement(title, message) },
			}, s.subscriber, m.ForceRefresh, notifier)
		}
		if cfg.Refresh.Enabled {
			s.refreshers[vc.Name] = live.NewRefresher(cfg.Refresh, string(vc.Name), m.ForceRefresh, opts.LowPower)
		}
	}

	// 5. Health and API server
	if cfg.Server.Port > 0 {
		s.healthServer = health.NewServer(health.NewMonitor(sources), health.Options{
			Port:     cfg.Server.Port,
			Fetcher:  orch,
			Managers: s.managers,
			Tracker:  tracker,
		})
	}

	log.Info("Service initialized",
		"variants", len(s.managers),
		"live", cfg.Live.Enabled,
		"auto_refresh", cfg.Refresh.Enabled,
		"redis", s.redisClient != nil,
	)
	return s, nil
}

func (s *Service) initPush(opts Options) error {
	s.subscriber, s.publisher = opts.Subscriber, opts.Publisher
	if s.subscriber != nil && s.publisher != nil {
		return nil
	}

	if s.cfg.Redis.Enabled() {
		client, err := redisclient.NewClient(s.cfg.Redis)
		if err != nil {
			s.log.Warn("Failed to connect to Redis, using in-process push hub", "error", err)
		} else {
			s.redisClient = client
		}
	}

	var sub push.Subscriber
	var pub push.Publisher
	if s.redisClient != nil {
		sub, pub = s.redisClient, s.redisClient
	} else {
		s.hub = push.NewMemoryHub()
		sub, pub = s.hub, s.hub
	}
	if s.subscriber == nil {
		s.subscriber = sub
	}
	if s.publisher == nil {
		s.publisher = pub
	}
	return nil
}

// NewTokenSource builds the bearer token lookup: environment, token file, static
// value, then a field embedded in an HTML page.
func NewTokenSource(cfg config.BackendConfig, requester transport.Requester) token.Source {
	chain := token.Chain{token.Env(cfg.Token.EnvVars)}
	if cfg.Token.File != "" {
		chain = append(chain, token.File(cfg.Token.File))
	}
	if cfg.Token.Static != "" {
		chain = append(chain, token.Static(cfg.Token.Static))
	}
	if cfg.Token.PageURL != "" {
		chain = append(chain, token.PageField{
			Requester: requester,
			URL:       cfg.Token.PageURL,
			Name:      cfg.Token.Meta,
		})
	}
	return chain
}

// NewNormalizer builds a normalizer using the configured validity bounds.
func NewNormalizer(q config.QualityConfig) *normalize.Normalizer {
	ncfg := normalize.DefaultConfig()
	ncfg.MinAmount = decimal.NewFromFloat(q.MinAmount)
	if q.MaxAmount > 0 {
		ncfg.MaxAmount = decimal.NewFromFloat(q.MaxAmount)
	}
	if q.MaxAge > 0 {
		ncfg.MaxAge = q.MaxAge
	}
	return normalize.New(ncfg)
}

// Start launches the background components and loads the first snapshots.
func (s *Service) Start(ctx context.Context) error {
	if s.healthServer != nil {
		go func() {
			if err := s.healthServer.Start(); err != nil && err != http.ErrServerClosed {
				s.log.Error("Health server failed", "error", err)
			}
		}()
	}

	go s.caches.Run(ctx)

	for v, m := range s.managers {
		go func(v domain.Variant, m *manager.Manager) {
			if err := m.Refresh(ctx); err != nil {
				s.log.Warn("Initial load failed", "variant", v, "error", err)
			}
		}(v, m)
	}

	for v, c := range s.coordinators {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("start live updates for %s: %w", v, err)
		}
	}

	for v, r := range s.refreshers {
		s.log.Info("Starting auto-refresh", "variant", v, "interval", r.NextInterval())
		go r.Run(ctx)
	}
	return nil
}

// Stop stops every component.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping service...")

	for _, c := range s.coordinators {
		c.Stop()
	}
	s.orch.Close()

	if s.hub != nil {
		s.hub.Close()
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}

	if s.healthServer != nil {
		return s.healthServer.Stop(ctx)
	}
	return nil
}

// Manager returns the manager of variant.
func (s *Service) Manager(v domain.Variant) (*manager.Manager, bool) {
	m, ok := s.managers[v]
	return m, ok
}

// Orchestrator returns the shared fetch orchestrator.
func (s *Service) Orchestrator() *fetch.Orchestrator {
	return s.orch
}

// Tracker returns the shared error tracker.
func (s *Service) Tracker() *recovery.Tracker {
	return s.tracker
}

// Publisher returns the push publisher live updates listen on.
func (s *Service) Publisher() push.Publisher {
	return s.publisher
}

// Coordinator returns the live coordinator of variant, if live updates are enabled.
func (s *Service) Coordinator(v domain.Variant) (*live.Coordinator, bool) {
	c, ok := s.coordinators[v]
	return c, ok
}
