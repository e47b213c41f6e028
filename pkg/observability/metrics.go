package observability

import (
	"context"
	"strconv"

	"github.com/aretw0/quarry/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors fed by lifecycle hooks.
type Metrics struct {
	phaseEnters   *prometheus.CounterVec
	extractions   *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	collaborators *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on reg.
//
// Collectors:
//   - quarry_phase_enters_total{phase,overlay}
//   - quarry_extractions_total{phase,matched}: matched is "true" when any column resolved
//   - quarry_extraction_rejected_total{phase}: values dropped as malformed
//   - quarry_collaborator_duration_seconds{name,status}
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		phaseEnters: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quarry",
			Name:      "phase_enters_total",
			Help:      "Number of times a phase or overlay was entered.",
		}, []string{"phase", "overlay"}),
		extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quarry",
			Name:      "extractions_total",
			Help:      "Number of utterances run through a phase grammar.",
		}, []string{"phase", "matched"}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quarry",
			Name:      "extraction_rejected_total",
			Help:      "Number of matches dropped because of a malformed value.",
		}, []string{"phase"}),
		collaborators: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quarry",
			Name:      "collaborator_duration_seconds",
			Help:      "Duration of sampling and completion calls.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"name", "status"}),
	}
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPhaseEnter: func(ctx context.Context, e *domain.PhaseEvent) {
			m.phaseEnters.WithLabelValues(e.Phase.String(), string(e.Overlay)).Inc()
		},
		OnExtraction: func(ctx context.Context, e *domain.ExtractionEvent) {
			phase := e.Phase.String()
			m.extractions.WithLabelValues(phase, strconv.FormatBool(len(e.Columns) > 0)).Inc()
			if e.Rejected > 0 {
				m.rejected.WithLabelValues(phase).Add(float64(e.Rejected))
			}
		},
		OnCollaboratorCall: func(ctx context.Context, e *domain.CollaboratorEvent) {
			status := "success"
			if e.IsError {
				status = "error"
			}
			m.collaborators.WithLabelValues(e.Name, status).Observe(e.Duration.Seconds())
		},
	}
}
