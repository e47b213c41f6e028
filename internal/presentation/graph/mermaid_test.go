package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/quarry/internal/presentation/graph"
	"github.com/aretw0/quarry/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid_Shapes(t *testing.T) {
	out := graph.GenerateMermaid(nil)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	for _, want := range []string{
		`action_select(("action_select"))`,
		`complete((("complete")))`,
		`assemble[["assemble"]]`,
		`target_variables["target_variables"]`,
		`awaiting_target_form[/"awaiting_target_form"/]`,
		`awaiting_constraint_form[/"awaiting_constraint_form"/]`,
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "classDef", "no overlay styles without a session")
}

func TestGenerateMermaid_Transitions(t *testing.T) {
	out := graph.GenerateMermaid(nil)

	assert.Contains(t, out, `action_select -- "select_action" --> data_ingest`)
	assert.Contains(t, out, `target_variables -. "no match" .-> awaiting_target_form`)
	// Overlays resolve into the phase after their origin.
	assert.Contains(t, out, `awaiting_target_form -. "finish" .-> query_features`)
	assert.Contains(t, out, `awaiting_constraint_form -. "finish" .-> task_type`)
	assert.Contains(t, out, `assemble -- "assemble" --> complete`)
}

func TestEdges(t *testing.T) {
	edges := graph.Edges()

	var linear, fallback int
	for _, e := range edges {
		if e.Fallback {
			fallback++
		} else {
			linear++
		}
	}
	assert.Equal(t, 9, linear, "one edge per non-sink phase")
	assert.Equal(t, 4, fallback, "two edges per overlay")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	s := domain.NewSession("s1", false)
	s.Enter(domain.PhaseDataIngest)
	s.Enter(domain.PhaseSampleGeneration)
	s.Enter(domain.PhaseDropColumns)
	s.Enter(domain.PhaseTargetVariables)
	s.Overlay = domain.OverlayTargetForm

	out := graph.GenerateMermaid(graph.OverlayOf(s))

	assert.Contains(t, out, "classDef visited")
	assert.Contains(t, out, "class action_select visited;")
	assert.Contains(t, out, "class target_variables visited;")
	assert.Contains(t, out, "class awaiting_target_form current;")
	assert.NotContains(t, out, "class query_features visited;")
	assert.Equal(t, 1, strings.Count(out, "class data_ingest visited;"))
}
