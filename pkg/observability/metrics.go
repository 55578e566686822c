package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/reactor/pkg/domain"
)

const namespace = "reactor"

// Metrics holds the prometheus collectors fed by lifecycle hooks.
type Metrics struct {
	Builds        *prometheus.CounterVec
	StageEntries  *prometheus.CounterVec
	StageFailures *prometheus.CounterVec
	Trials        *prometheus.CounterVec
	TrialValues   prometheus.Histogram
	MeshDuration  *prometheus.HistogramVec
	MeshElements  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Geometry builds by outcome.",
		}, []string{"outcome"}),
		StageEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_entries_total",
			Help:      "Build stages entered.",
		}, []string{"stage"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Builds that failed, by the stage they failed in.",
		}, []string{"stage"}),
		Trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizer_trials_total",
			Help:      "Optimizer objective evaluations by result.",
		}, []string{"result"}),
		TrialValues: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "optimizer_trial_objective",
			Help:      "Objective (max aspect ratio - 1) of feasible trials.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		MeshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mesh_compute_duration_seconds",
			Help:      "Duration of mesh computations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		MeshElements: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mesh_elements",
			Help:      "Element count of the last computed mesh.",
		}),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Builds, m.StageEntries, m.StageFailures,
		m.Trials, m.TrialValues, m.MeshDuration, m.MeshElements,
	}
}

func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter: func(_ context.Context, ev *domain.StageEvent) {
			m.StageEntries.WithLabelValues(string(ev.Stage)).Inc()
			if ev.Stage == domain.StageDone {
				m.Builds.WithLabelValues("ok").Inc()
			}
		},
		OnStageFailed: func(_ context.Context, ev *domain.StageEvent) {
			m.StageFailures.WithLabelValues(string(ev.Stage)).Inc()
			m.Builds.WithLabelValues("failed").Inc()
		},
		OnTrial: func(_ context.Context, ev *domain.TrialEvent) {
			switch {
			case ev.Cached:
				m.Trials.WithLabelValues("cached").Inc()
			case ev.Penalized:
				m.Trials.WithLabelValues("penalized").Inc()
			default:
				m.Trials.WithLabelValues("ok").Inc()
			}
			if !ev.Penalized {
				m.TrialValues.Observe(ev.Objective)
			}
		},
		OnMeshCompute: func(_ context.Context, ev *domain.MeshEvent) {
			m.MeshDuration.WithLabelValues(outcome(ev.Err)).Observe(ev.Duration.Seconds())
			if ev.Err == nil {
				m.MeshElements.Set(float64(ev.Elements))
			}
		},
	}
}
