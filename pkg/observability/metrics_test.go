package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/quarry/pkg/domain"
	"github.com/aretw0/quarry/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	hooks := observability.NewMetrics(reg).Hooks()
	ctx := context.Background()

	hooks.OnPhaseEnter(ctx, &domain.PhaseEvent{Phase: domain.PhaseTargetVariables})
	hooks.OnPhaseEnter(ctx, &domain.PhaseEvent{Phase: domain.PhaseTargetVariables, Overlay: domain.OverlayTargetForm})
	hooks.OnExtraction(ctx, &domain.ExtractionEvent{Phase: domain.PhaseUserConstraints, Columns: []string{"age"}, Rejected: 2})
	hooks.OnExtraction(ctx, &domain.ExtractionEvent{Phase: domain.PhaseUserConstraints})
	hooks.OnCollaboratorCall(ctx, &domain.CollaboratorEvent{Name: "sampling", Duration: 40 * time.Millisecond, IsError: true})

	expected := `
# HELP quarry_extraction_rejected_total Number of matches dropped because of a malformed value.
# TYPE quarry_extraction_rejected_total counter
quarry_extraction_rejected_total{phase="user_constraints"} 2
# HELP quarry_extractions_total Number of utterances run through a phase grammar.
# TYPE quarry_extractions_total counter
quarry_extractions_total{matched="false",phase="user_constraints"} 1
quarry_extractions_total{matched="true",phase="user_constraints"} 1
# HELP quarry_phase_enters_total Number of times a phase or overlay was entered.
# TYPE quarry_phase_enters_total counter
quarry_phase_enters_total{overlay="",phase="target_variables"} 1
quarry_phase_enters_total{overlay="awaiting_target_form",phase="target_variables"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"quarry_extraction_rejected_total", "quarry_extractions_total", "quarry_phase_enters_total")
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "quarry_collaborator_duration_seconds"))
}

func TestCombine(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnPhaseEnter: func(ctx context.Context, e *domain.PhaseEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{OnPhaseEnter: func(ctx context.Context, e *domain.PhaseEvent) { calls = append(calls, "b") }}

	combined := observability.Combine(a, domain.LifecycleHooks{}, b)
	combined.OnPhaseEnter(context.Background(), &domain.PhaseEvent{})
	combined.OnPhaseLeave(context.Background(), &domain.PhaseEvent{})
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestLoggingHooks(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	hooks := observability.LoggingHooks(logger)

	hooks.OnPhaseEnter(context.Background(), &domain.PhaseEvent{Phase: domain.PhaseTaskType})
	hooks.OnCollaboratorCall(context.Background(), &domain.CollaboratorEvent{Name: "completion", IsError: true})

	out := buf.String()
	assert.NotContains(t, out, "phase_enter")
	assert.Contains(t, out, "collaborator_call")
	assert.Contains(t, out, "name=completion")
}
