// Package metrics exposes prometheus counters for commits, replays and sync.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sync directions and results used as label values.
const (
	DirectionPull = "pull"
	DirectionPush = "push"

	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Metrics groups the engine's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	SyncRevisions *prometheus.CounterVec
	Commits       prometheus.Counter
	ApplySkipped  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		SyncRevisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hvcs",
			Name:      "sync_revisions_total",
			Help:      "Revisions transferred during pull and push, by outcome.",
		}, []string{"direction", "result"}),
		Commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hvcs",
			Name:      "commits_total",
			Help:      "Revisions committed locally.",
		}),
		ApplySkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hvcs",
			Name:      "apply_skipped_total",
			Help:      "Revision items skipped during replay because their target was missing or invalid.",
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.SyncRevisions, m.Commits, m.ApplySkipped} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveSync(direction, result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SyncRevisions.WithLabelValues(direction, result).Add(float64(n))
}

func (m *Metrics) IncCommits() {
	if m == nil {
		return
	}
	m.Commits.Inc()
}

func (m *Metrics) AddApplySkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ApplySkipped.Add(float64(n))
}
