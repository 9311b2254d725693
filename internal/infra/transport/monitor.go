package transport

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/yakey01/dokterku-sub007/internal/metrics"
)

// EndpointStatus represents the health state of an endpoint.
type EndpointStatus string

const (
	StatusHealthy   EndpointStatus = "healthy"   // working normally
	StatusDegraded  EndpointStatus = "degraded"  // slow or failing often
	StatusThrottled EndpointStatus = "throttled" // rate limiting
	StatusDown      EndpointStatus = "down"      // consecutive failures
)

const (
	latencyWindow         = 100
	slowResponseThreshold = 3 * time.Second
	degradedErrorRate     = 0.3
	downAfterFailures     = 3
	throttleBackoff       = time.Minute
)

var throttlePatterns = []string{
	"rate limit exceeded",
	"too many requests",
	"too many attempts",
	"terlalu banyak permintaan",
}

// EndpointStats is a point in time view of one endpoint.
type EndpointStats struct {
	Name                string         `json:"name"`
	Status              EndpointStatus `json:"status"`
	Requests            int            `json:"requests"`
	Successes           int            `json:"successes"`
	Failures            int            `json:"failures"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	ThrottleCount       int            `json:"throttle_count"`
	AverageLatency      time.Duration  `json:"average_latency"`
	LastStatus          int            `json:"last_status,omitempty"`
	LastSuccess         time.Time      `json:"last_success,omitzero"`
	LastFailure         time.Time      `json:"last_failure,omitzero"`
}

type endpointState struct {
	latencies           []time.Duration
	successes, failures int
	consecutiveFailures int
	throttleCount       int
	lastThrottle        time.Time
	lastStatus          int
	lastSuccess         time.Time
	lastFailure         time.Time
}

// Monitor tracks latency and failure patterns per endpoint.
type Monitor struct {
	mu        sync.RWMutex
	endpoints map[string]*endpointState
	now       func() time.Time
}

// NewMonitor creates an empty Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		endpoints: make(map[string]*endpointState),
		now:       time.Now,
	}
}

func (m *Monitor) state(name string) *endpointState {
	s, ok := m.endpoints[name]
	if !ok {
		s = &endpointState{latencies: make([]time.Duration, 0, latencyWindow)}
		m.endpoints[name] = s
	}
	return s
}

// RecordSuccess records a successful call with its latency.
func (m *Monitor) RecordSuccess(name string, latency time.Duration) {
	m.mu.Lock()
	s := m.state(name)
	s.latencies = append(s.latencies, latency)
	if len(s.latencies) > latencyWindow {
		s.latencies = s.latencies[1:]
	}
	s.successes++
	s.consecutiveFailures = 0
	s.lastStatus = 200
	s.lastSuccess = m.now()
	m.mu.Unlock()

	m.publish(name)
}

// RecordFailure records a failed call. status is 0 when no response was received.
func (m *Monitor) RecordFailure(name string, status int, message string) {
	m.mu.Lock()
	s := m.state(name)
	s.failures++
	s.consecutiveFailures++
	s.lastStatus = status
	s.lastFailure = m.now()
	if status == 429 || DetectThrottlePattern(message) {
		s.throttleCount++
		s.lastThrottle = s.lastFailure
	}
	m.mu.Unlock()

	m.publish(name)
}

// DetectThrottlePattern checks if a message contains throttle patterns.
func DetectThrottlePattern(message string) bool {
	lower := strings.ToLower(message)
	for _, p := range throttlePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Status returns the current status of an endpoint. Unknown endpoints are healthy.
func (m *Monitor) Status(name string) EndpointStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.endpoints[name]
	if !ok {
		return StatusHealthy
	}
	return m.status(s)
}

func (m *Monitor) status(s *endpointState) EndpointStatus {
	if s.throttleCount > 0 && m.now().Sub(s.lastThrottle) < throttleBackoff {
		return StatusThrottled
	}
	if s.consecutiveFailures >= downAfterFailures {
		return StatusDown
	}
	if total := s.successes + s.failures; total >= 10 &&
		float64(s.failures)/float64(total) > degradedErrorRate {
		return StatusDegraded
	}
	if avg := averageLatency(s.latencies); len(s.latencies) > 10 && avg > slowResponseThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}

// Stats returns statistics of every seen endpoint ordered by name.
func (m *Monitor) Stats() []EndpointStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]EndpointStats, 0, len(m.endpoints))
	for name, s := range m.endpoints {
		out = append(out, EndpointStats{
			Name:                name,
			Status:              m.status(s),
			Requests:            s.successes + s.failures,
			Successes:           s.successes,
			Failures:            s.failures,
			ConsecutiveFailures: s.consecutiveFailures,
			ThrottleCount:       s.throttleCount,
			AverageLatency:      averageLatency(s.latencies),
			LastStatus:          s.lastStatus,
			LastSuccess:         s.lastSuccess,
			LastFailure:         s.lastFailure,
		})
	}
	slices.SortFunc(out, func(a, b EndpointStats) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (m *Monitor) publish(name string) {
	healthy := 0.0
	if st := m.Status(name); st == StatusHealthy || st == StatusDegraded {
		healthy = 1
	}
	metrics.EndpointHealthy.WithLabelValues(name).Set(healthy)
}

func averageLatency(ls []time.Duration) time.Duration {
	if len(ls) == 0 {
		return 0
	}
	var total time.Duration
	for _, l := range ls {
		total += l
	}
	return total / time.Duration(len(ls))
}
