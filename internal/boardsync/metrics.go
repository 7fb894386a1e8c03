package boardsync

import "github.com/prometheus/client_golang/prometheus"

// Push results.
const (
	pushOK        = "ok"
	pushError     = "error"
	pushRetryable = "retryable"
	pushSkipped   = "skipped"
)

// Remote snapshot outcomes.
const (
	snapshotApplied  = "applied"
	snapshotDeferred = "deferred"
	snapshotMissing  = "missing"
)

// Metrics counts synchronization activity.
type Metrics struct {
	pushes    *prometheus.CounterVec
	snapshots *prometheus.CounterVec
	mutations *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corkboard_pushes_total",
				Help: "Board pushes to the remote store by result",
			},
			[]string{"result"},
		),
		snapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corkboard_remote_snapshots_total",
				Help: "Remote board snapshots received by outcome",
			},
			[]string{"outcome"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corkboard_local_mutations_total",
				Help: "Committed local board mutations by kind",
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.pushes, m.snapshots, m.mutations)
	}
	return m
}

func (m *Metrics) push(result string) {
	if m != nil {
		m.pushes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) snapshot(outcome string) {
	if m != nil {
		m.snapshots.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) mutation(kind string) {
	if m != nil {
		m.mutations.WithLabelValues(kind).Inc()
	}
}
