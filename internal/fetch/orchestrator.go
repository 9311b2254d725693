// Package fetch retrieves Jaspel data from candidate endpoints with caching,
// request de-duplication and failover.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yakey01/dokterku-sub007/internal/cache"
	"github.com/yakey01/dokterku-sub007/internal/core/config"
	"github.com/yakey01/dokterku-sub007/internal/core/domain"
	"github.com/yakey01/dokterku-sub007/internal/infra/token"
	"github.com/yakey01/dokterku-sub007/internal/infra/transport"
	"github.com/yakey01/dokterku-sub007/internal/metrics"
	"github.com/yakey01/dokterku-sub007/internal/normalize"
	"github.com/yakey01/dokterku-sub007/internal/recovery"
)

var (
	// ErrNoEndpoints is returned for a variant without candidate endpoints.
	ErrNoEndpoints = errors.New("no candidate endpoints configured")

	errSuperseded = errors.New("fetch superseded by a forced refresh")
)

// Deps are the collaborators of an Orchestrator. Only Requester is required.
type Deps struct {
	Requester  transport.Requester
	Tokens     token.Source
	Caches     *cache.Manager
	Normalizer *normalize.Normalizer
	Tracker    *recovery.Tracker
	Monitor    *transport.Monitor
	Now        func() time.Time
}

// Orchestrator tries candidate endpoints in order and caches the first success.
// Concurrent fetches of one key share a single flight.
type Orchestrator struct {
	cfg        Config
	requester  transport.Requester
	tokens     token.Source
	caches     *cache.Manager
	normalizer *normalize.Normalizer
	tracker    *recovery.Tracker
	monitor    *transport.Monitor
	now        func() time.Time
	log        *slog.Logger

	group  singleflight.Group
	base   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	gens      map[string]uint64             // current generation per key
	inflight  map[string]context.CancelFunc // cancels the flight of the current generation
	completed map[string]uint64             // generation+1 of the last stored result
}

// New creates an Orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if deps.Tokens == nil {
		deps.Tokens = token.Chain{}
	}
	if deps.Caches == nil {
		deps.Caches = cache.NewManager(config.CacheConfig{}, deps.Now)
	}
	if deps.Normalizer == nil {
		deps.Normalizer = normalize.New(normalize.DefaultConfig())
	}
	if deps.Tracker == nil {
		deps.Tracker = recovery.NewTracker(nil, 0)
	}
	if deps.Monitor == nil {
		deps.Monitor = transport.NewMonitor()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	base, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:        cfg,
		requester:  deps.Requester,
		tokens:     deps.Tokens,
		caches:     deps.Caches,
		normalizer: deps.Normalizer,
		tracker:    deps.Tracker,
		monitor:    deps.Monitor,
		now:        deps.Now,
		log:        slog.Default().With("component", "fetch"),
		base:       base,
		cancel:     cancel,
		gens:       make(map[string]uint64),
		inflight:   make(map[string]context.CancelFunc),
		completed:  make(map[string]uint64),
	}
}

// Caches returns the cache manager results are stored in.
func (o *Orchestrator) Caches() *cache.Manager { return o.caches }

// Tracker returns the error tracker exhausted fetches are recorded in.
func (o *Orchestrator) Tracker() *recovery.Tracker { return o.tracker }

// Monitor returns the endpoint monitor.
func (o *Orchestrator) Monitor() *transport.Monitor { return o.monitor }

// Variants returns the variants that have candidate endpoints.
func (o *Orchestrator) Variants() []domain.Variant {
	out := make([]domain.Variant, 0, len(o.cfg.Endpoints))
	for _, v := range domain.Variants {
		if len(o.cfg.Endpoints[v]) > 0 {
			out = append(out, v)
		}
	}
	return out
}

// Close cancels every in-flight request.
func (o *Orchestrator) Close() {
	o.cancel()
}

// Fetch returns data for variant and period. A cached result is returned unless
// opts.ForceRefresh is set. When every candidate fails the last failure is returned
// as a *domain.ClassifiedError and recorded in the tracker.
func (o *Orchestrator) Fetch(ctx context.Context, variant domain.Variant, period string, opts Options) (*Result, error) {
	if len(o.cfg.Endpoints[variant]) == 0 {
		return nil, fmt.Errorf("%w for variant %q", ErrNoEndpoints, variant)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := cache.Key(variant, period, opts.UserID)
	useCache := !opts.ForceRefresh
	if opts.ForceRefresh {
		o.supersede(key)
	}

	for {
		if useCache {
			if res, ok := o.cached(variant, key); ok {
				return res, nil
			}
		}

		gen := o.generation(key)
		ch := o.group.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
			return o.run(key, gen, variant, period, opts.UserID)
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-ch:
			if r.Shared {
				metrics.FetchShared.WithLabelValues(string(variant)).Inc()
			}
			if errors.Is(r.Err, errSuperseded) {
				// a newer flight owns the key now; its result is fresh enough
				useCache = true
				continue
			}
			if r.Err != nil {
				return nil, r.Err
			}
			return r.Val.(*Result).Clone(), nil
		}
	}
}

// Summary returns only the totals of variant and period. The summary cache outlives the
// data cache, so totals are served without a round trip after the items expired.
// A miss, or opts.ForceRefresh, falls through to Fetch.
func (o *Orchestrator) Summary(ctx context.Context, variant domain.Variant, period string, opts Options) (*SummaryResult, error) {
	if len(o.cfg.Endpoints[variant]) == 0 {
		return nil, fmt.Errorf("%w for variant %q", ErrNoEndpoints, variant)
	}
	key := cache.Key(variant, period, opts.UserID)
	if !opts.ForceRefresh {
		if v, ok := o.caches.Cache(config.NamespaceSummary, variant).Get(key); ok {
			if sum, ok := v.(domain.Summary); ok {
				return &SummaryResult{Variant: variant, Period: period, UserID: opts.UserID, Summary: sum, FromCache: true}, nil
			}
		}
	}

	res, err := o.Fetch(ctx, variant, period, opts)
	if err != nil {
		return nil, err
	}
	return &SummaryResult{
		Variant:   variant,
		Period:    res.Period,
		UserID:    opts.UserID,
		Summary:   res.Summary,
		FromCache: res.FromCache,
	}, nil
}

func (o *Orchestrator) cached(variant domain.Variant, key string) (*Result, bool) {
	v, ok := o.caches.Cache(config.NamespaceData, variant).Get(key)
	if !ok {
		return nil, false
	}
	res, ok := v.(*Result)
	if !ok {
		return nil, false
	}
	c := res.Clone()
	c.FromCache = true
	return c, true
}

func (o *Orchestrator) generation(key string) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gens[key]
}

// supersede starts a new generation for key and cancels the current flight.
func (o *Orchestrator) supersede(key string) {
	o.mu.Lock()
	o.gens[key]++
	cancel := o.inflight[key]
	delete(o.inflight, key)
	o.mu.Unlock()

	if cancel != nil {
		o.log.Debug("Superseding in-flight fetch", "key", key)
		cancel()
	}
}

// register records cancel as the flight of generation gen.
func (o *Orchestrator) register(key string, gen uint64, cancel context.CancelFunc) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gens[key] != gen {
		return false
	}
	o.inflight[key] = cancel
	return true
}

func (o *Orchestrator) superseded(key string, gen uint64) bool {
	return o.generation(key) != gen
}

func (o *Orchestrator) run(key string, gen uint64, variant domain.Variant, period, userID string) (any, error) {
	ctx, cancel := context.WithCancel(o.base)
	defer cancel()

	o.mu.Lock()
	if o.gens[key] != gen {
		o.mu.Unlock()
		return nil, errSuperseded
	}
	done := o.completed[key] == gen+1
	o.mu.Unlock()

	if done {
		// this generation already stored a result; serve it rather than refetching
		if res, ok := o.cached(variant, key); ok {
			res.FromCache = false
			return res, nil
		}
	}
	if !o.register(key, gen, cancel) {
		return nil, errSuperseded
	}
	defer func() {
		o.mu.Lock()
		if o.gens[key] == gen {
			delete(o.inflight, key)
		}
		o.mu.Unlock()
	}()

	tok, _ := o.tokens.Token(ctx)
	headers := o.headers(tok)

	var last *domain.ClassifiedError
	attempts := 0
	for _, ep := range o.cfg.Endpoints[variant] {
		if o.superseded(key, gen) {
			return nil, errSuperseded
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts++

		res, cerr := o.try(ctx, ep, variant, period, userID, headers)
		if cerr == nil {
			res.Attempts = attempts
			if !o.commit(key, gen, res) {
				return nil, errSuperseded
			}
			o.log.Info("Fetched jaspel data",
				"variant", variant,
				"period", period,
				"endpoint", ep.Name,
				"shape", res.Shape,
				"items", len(res.Items),
				"quality", res.QualityScore,
				"attempts", attempts,
			)
			return res, nil
		}
		if o.superseded(key, gen) {
			return nil, errSuperseded
		}

		last = cerr
		o.log.Warn("Candidate endpoint failed",
			"variant", variant,
			"endpoint", ep.Name,
			"category", cerr.Category,
			"status", cerr.HTTPStatus,
			"error", cerr.RawMessage,
		)
		if cerr.Category == domain.CategoryAuthentication && o.cfg.StopOnAuthFailure {
			break
		}
	}

	last.Context["attempts"] = attempts
	last.Context["variant"] = string(variant)
	last.Context["period"] = period
	o.tracker.Record(last)
	return nil, last
}

// commit stores res unless the generation moved on.
func (o *Orchestrator) commit(key string, gen uint64, res *Result) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.gens[key] != gen {
		return false
	}
	tags := func(ns string) []string { return cache.Tags(ns, res.Variant, res.Period, res.UserID) }
	o.caches.Cache(config.NamespaceData, res.Variant).Set(key, res.Clone(), cache.Options{Tags: tags(config.NamespaceData)})
	o.caches.Cache(config.NamespaceSummary, res.Variant).Set(key, res.Summary, cache.Options{Tags: tags(config.NamespaceSummary)})
	o.completed[key] = gen + 1
	return true
}

func (o *Orchestrator) try(
	ctx context.Context,
	ep config.EndpointConfig,
	variant domain.Variant,
	period, userID string,
	headers map[string]string,
) (*Result, *domain.ClassifiedError) {
	target := o.buildURL(ep, period, userID)
	fields := map[string]any{"endpoint": ep.Name, "url": target, "variant": string(variant)}
	classify := o.tracker.Classifier().Classify

	cctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.requester.Get(cctx, target, headers)
	latency := time.Since(start)
	metrics.FetchLatency.WithLabelValues(string(variant), ep.Name).Observe(latency.Seconds())

	if err != nil {
		o.monitor.RecordFailure(ep.Name, 0, err.Error())
		metrics.FetchRequestsTotal.WithLabelValues(string(variant), ep.Name, "transport_error").Inc()
		return nil, classify(recovery.Input{Err: err, Context: fields, Transport: true})
	}

	if !resp.OK() {
		msg := responseMessage(resp)
		o.monitor.RecordFailure(ep.Name, resp.Status, msg)
		metrics.FetchRequestsTotal.WithLabelValues(string(variant), ep.Name, "http_error").Inc()
		return nil, classify(recovery.Input{Status: resp.Status, Message: msg, Context: fields})
	}

	if ok, msg := envelopeSuccess(resp.Body); !ok {
		o.monitor.RecordFailure(ep.Name, resp.Status, msg)
		metrics.FetchRequestsTotal.WithLabelValues(string(variant), ep.Name, "rejected").Inc()
		return nil, classify(recovery.Input{Status: resp.Status, Message: msg, Context: fields})
	}

	nres, err := o.normalizer.Normalize(resp.Body, variant)
	if err != nil {
		o.monitor.RecordFailure(ep.Name, resp.Status, err.Error())
		metrics.FetchRequestsTotal.WithLabelValues(string(variant), ep.Name, "malformed").Inc()
		fields["detail"] = err.Error()
		return nil, classify(recovery.Input{Status: resp.Status, Message: "malformed response payload", Context: fields})
	}
	if nres.Shape == normalize.ShapeUnknown {
		o.monitor.RecordFailure(ep.Name, resp.Status, "unrecognized response shape")
		metrics.FetchRequestsTotal.WithLabelValues(string(variant), ep.Name, "unknown_shape").Inc()
		return nil, classify(recovery.Input{
			Status:  resp.Status,
			Message: "unrecognized response shape",
			Context: fields,
		})
	}

	o.monitor.RecordSuccess(ep.Name, latency)
	metrics.FetchRequestsTotal.WithLabelValues(string(variant), ep.Name, "success").Inc()
	metrics.NormalizedRecords.WithLabelValues(string(variant), string(nres.Shape), "kept").Add(float64(len(nres.Items)))
	metrics.NormalizedRecords.WithLabelValues(string(variant), string(nres.Shape), "skipped").Add(float64(nres.Skipped))
	metrics.QualityScore.WithLabelValues(string(variant)).Set(float64(nres.QualityScore))

	return &Result{
		Variant:      variant,
		Period:       period,
		UserID:       userID,
		Items:        nres.Items,
		Summary:      nres.Summary,
		Shape:        nres.Shape,
		QualityScore: nres.QualityScore,
		Quality:      nres.Quality,
		Warnings:     nres.Warnings,
		Endpoint:     ep.Name,
		FetchedAt:    o.now(),
		Latency:      latency,
	}, nil
}

func (o *Orchestrator) headers(tok string) map[string]string {
	h := map[string]string{
		"Accept":           "application/json",
		"X-Requested-With": "XMLHttpRequest",
	}
	if tok != "" {
		h["Authorization"] = "Bearer " + tok
	}
	if o.cfg.CSRFToken != "" {
		h["X-CSRF-TOKEN"] = o.cfg.CSRFToken
	}
	return h
}

// buildURL substitutes {period} and {user} placeholders in the endpoint path; values
// without a placeholder are sent as query parameters.
func (o *Orchestrator) buildURL(ep config.EndpointConfig, period, userID string) string {
	path := ep.Path
	query := url.Values{}

	if strings.Contains(path, "{period}") {
		path = strings.ReplaceAll(path, "{period}", url.PathEscape(period))
	} else if period != "" {
		query.Set("period", period)
	}
	if strings.Contains(path, "{user}") {
		path = strings.ReplaceAll(path, "{user}", url.PathEscape(userID))
	} else if userID != "" {
		query.Set("user_id", userID)
	}

	target := strings.TrimRight(o.cfg.BaseURL, "/") + path
	if len(query) == 0 {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + query.Encode()
}

// envelopeSuccess reports false when the body is a {success: false} envelope.
func envelopeSuccess(body []byte) (bool, string) {
	var env struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Success == nil || *env.Success {
		return true, ""
	}
	if env.Message == "" {
		return false, "request was not successful"
	}
	return false, env.Message
}

// responseMessage extracts a readable failure message from an error response.
func responseMessage(resp *transport.Response) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	if s := strings.TrimSpace(string(resp.Body)); s != "" && len(s) <= 200 && !strings.HasPrefix(s, "<") {
		return s
	}
	return fmt.Sprintf("http status %d", resp.Status)
}
