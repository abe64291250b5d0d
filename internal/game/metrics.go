package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
)

// ArenaMetrics exports match registry gauges and action counters. A nil
// *ArenaMetrics records nothing.
type ArenaMetrics struct {
	active   prometheus.Gauge
	applied  *prometheus.CounterVec
	rejected *prometheus.CounterVec
	timeouts prometheus.Counter
}

// NewArenaMetrics registers the arena collectors on reg.
func NewArenaMetrics(reg prometheus.Registerer) *ArenaMetrics {
	factory := promauto.With(reg)
	return &ArenaMetrics{
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "riftbound_arena_active_matches",
			Help: "Number of matches currently held by the arena",
		}),
		applied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riftbound_arena_actions_applied_total",
			Help: "Actions applied successfully, by action kind",
		}, []string{"action"}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riftbound_arena_actions_rejected_total",
			Help: "Actions rejected, by action kind and error code",
		}, []string{"action", "code"}),
		timeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "riftbound_arena_deadline_expiries_total",
			Help: "Priority windows and setup steps resolved by deadline",
		}),
	}
}

func (m *ArenaMetrics) matchAdded() {
	if m != nil {
		m.active.Inc()
	}
}

func (m *ArenaMetrics) matchRemoved() {
	if m != nil {
		m.active.Dec()
	}
}

func (m *ArenaMetrics) actionApplied(kind ActionKind) {
	if m != nil {
		m.applied.WithLabelValues(string(kind)).Inc()
	}
}

func (m *ArenaMetrics) actionRejected(kind ActionKind, err error) {
	if m != nil {
		m.rejected.WithLabelValues(string(kind), string(apperr.CodeOf(err))).Inc()
	}
}

func (m *ArenaMetrics) deadlineExpired() {
	if m != nil {
		m.timeouts.Inc()
	}
}
