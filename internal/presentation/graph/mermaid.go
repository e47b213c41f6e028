package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/quarry/pkg/domain"
)

// SessionOverlay contains dynamic session data to visualize on the graph.
type SessionOverlay struct {
	Visited []domain.Phase
	Current string
}

// OverlayOf captures the visited phases and the active state of s.
func OverlayOf(s *domain.Session) *SessionOverlay {
	return &SessionOverlay{
		Visited: append([]domain.Phase(nil), s.History...),
		Current: s.Current(),
	}
}

// Edge is one transition of the dialogue state machine.
type Edge struct {
	From, To string
	Label    string
	// Fallback marks transitions into and out of form overlays.
	Fallback bool
}

var linearLabels = map[domain.Phase]string{
	domain.PhaseActionSelect:     "select_action",
	domain.PhaseDataIngest:       "ingest",
	domain.PhaseSampleGeneration: "done / finish",
	domain.PhaseDropColumns:      "drop_columns",
	domain.PhaseTargetVariables:  "done / finish",
	domain.PhaseQueryFeatures:    "done / finish",
	domain.PhaseUserConstraints:  "done / finish",
	domain.PhaseTaskType:         "task type",
	domain.PhaseAssemble:         "assemble",
}

// Edges lists the transitions between phases and overlays.
func Edges() []Edge {
	var edges []Edge
	for p := domain.PhaseActionSelect; p < domain.PhaseComplete; p++ {
		edges = append(edges, Edge{From: p.String(), To: p.Next().String(), Label: linearLabels[p]})
		if o := domain.OverlayFor(p); o != domain.OverlayNone {
			edges = append(edges,
				Edge{From: p.String(), To: string(o), Label: "no match", Fallback: true},
				Edge{From: string(o), To: o.ReturnPhase().String(), Label: "finish", Fallback: true},
			)
		}
	}
	return edges
}

// GenerateMermaid produces a Mermaid flowchart of the dialogue state machine.
// Shapes:
// - ActionSelect: ((Circle))
// - Complete: (((Double circle)))
// - Form overlays: [/Parallelogram/]
// - Automatic phases (Assemble): [[Subroutine]]
// - Default: [Rectangle]
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(overlay *SessionOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for p := domain.PhaseActionSelect; p <= domain.PhaseComplete; p++ {
		opener, closer := "[", "]"
		switch p {
		case domain.PhaseActionSelect:
			opener, closer = "((", "))"
		case domain.PhaseComplete:
			opener, closer = "(((", ")))"
		case domain.PhaseAssemble:
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(p.String()), opener, p.String(), closer)

		if o := domain.OverlayFor(p); o != domain.OverlayNone {
			fmt.Fprintf(&sb, "    %s[/\"%s\"/]\n", sanitizeMermaidID(string(o)), o)
		}
	}

	for _, e := range Edges() {
		arrow := fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(e.Label, "\"", "'"))
		if e.Fallback {
			arrow = fmt.Sprintf("-. \"%s\" .->", strings.ReplaceAll(e.Label, "\"", "'"))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.From), arrow, sanitizeMermaidID(e.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for contrast on light fills in both themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[domain.Phase]bool)
		for _, p := range overlay.Visited {
			if seen[p] || !p.Valid() {
				continue
			}
			seen[p] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", sanitizeMermaidID(p.String()))
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
