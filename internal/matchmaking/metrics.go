package matchmaking

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the coordinator's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	queueDepth     *prometheus.GaugeVec
	sweepDuration  *prometheus.HistogramVec
	matchesFormed  *prometheus.CounterVec
	claimConflicts *prometheus.CounterVec
	rollbacks      *prometheus.CounterVec
}

// NewMetrics registers the coordinator collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riftbound_matchmaking_queue_depth",
			Help: "Queued entries seen by the last sweep of a mode",
		}, []string{"mode"}),
		//nolint:promlinter
		sweepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riftbound_matchmaking_sweep_duration_ms",
			Help:    "Sweep duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"mode"}),
		matchesFormed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riftbound_matchmaking_matches_formed_total",
			Help: "Pairs claimed and started as matches",
		}, []string{"mode"}),
		claimConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riftbound_matchmaking_claim_conflicts_total",
			Help: "Pair claims lost to a concurrent transition",
		}, []string{"mode"}),
		rollbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riftbound_matchmaking_rollbacks_total",
			Help: "Claimed pairs returned to the queue",
		}, []string{"mode", "reason"}),
	}
}

func (m *Metrics) observeSweep(mode string, depth int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(mode).Set(float64(depth))
	m.sweepDuration.WithLabelValues(mode).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) matchFormed(mode string) {
	if m == nil {
		return
	}
	m.matchesFormed.WithLabelValues(mode).Inc()
}

func (m *Metrics) claimConflict(mode string) {
	if m == nil {
		return
	}
	m.claimConflicts.WithLabelValues(mode).Inc()
}

func (m *Metrics) rolledBack(mode, reason string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(mode, reason).Inc()
}
