package domain

import (
	"fmt"
	"strings"
)

// Phase is a stage of the linear dialogue sequence.
type Phase int

const (
	PhaseActionSelect Phase = iota + 1
	PhaseDataIngest
	PhaseSampleGeneration
	PhaseDropColumns
	PhaseTargetVariables
	PhaseQueryFeatures
	PhaseUserConstraints
	PhaseTaskType
	PhaseAssemble
	PhaseComplete
)

var phaseNames = map[Phase]string{
	PhaseActionSelect:     "action_select",
	PhaseDataIngest:       "data_ingest",
	PhaseSampleGeneration: "sample_generation",
	PhaseDropColumns:      "drop_columns",
	PhaseTargetVariables:  "target_variables",
	PhaseQueryFeatures:    "query_features",
	PhaseUserConstraints:  "user_constraints",
	PhaseTaskType:         "task_type",
	PhaseAssemble:         "assemble",
	PhaseComplete:         "complete",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Valid reports whether p is one of the linear phases.
func (p Phase) Valid() bool {
	return p >= PhaseActionSelect && p <= PhaseComplete
}

// Next returns the following linear phase. Complete is a sink.
func (p Phase) Next() Phase {
	if p >= PhaseComplete {
		return PhaseComplete
	}
	return p + 1
}

// MarshalText encodes the phase by name so persisted sessions stay readable.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid phase %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText accepts the phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePhase resolves a phase from its name.
func ParsePhase(name string) (Phase, error) {
	clean := strings.ToLower(strings.TrimSpace(name))
	for p, n := range phaseNames {
		if n == clean {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", name)
}

// Overlay is a transient structured-input fallback entered when free-text extraction
// yields nothing. It is orthogonal to Phase: the linear phase keeps pointing at the
// phase that spawned the overlay.
type Overlay string

const (
	OverlayNone           Overlay = ""
	OverlayTargetForm     Overlay = "awaiting_target_form"
	OverlayConstraintForm Overlay = "awaiting_constraint_form"
)

// Origin returns the linear phase that spawns this overlay.
func (o Overlay) Origin() Phase {
	switch o {
	case OverlayTargetForm:
		return PhaseTargetVariables
	case OverlayConstraintForm:
		return PhaseUserConstraints
	}
	return 0
}

// ReturnPhase is the linear phase an overlay resolves into when finished.
// It is the phase after the origin, never the origin itself.
func (o Overlay) ReturnPhase() Phase {
	if origin := o.Origin(); origin.Valid() {
		return origin.Next()
	}
	return 0
}

// OverlayFor returns the overlay spawned by an empty extraction in phase p.
func OverlayFor(p Phase) Overlay {
	switch p {
	case PhaseTargetVariables:
		return OverlayTargetForm
	case PhaseUserConstraints:
		return OverlayConstraintForm
	}
	return OverlayNone
}

// QueryType is the action chosen at the start of the dialogue.
// It is fixed for the remainder of the session.
type QueryType string

const (
	QueryRecommend QueryType = "recommend"
	QueryModify    QueryType = "modify"
	QueryWhatIf    QueryType = "whatif"
)

// ParseQueryType validates an action selection.
func ParseQueryType(s string) (QueryType, error) {
	switch qt := QueryType(strings.ToLower(strings.TrimSpace(s))); qt {
	case QueryRecommend, QueryModify, QueryWhatIf:
		return qt, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// TaskType is the analysis family chosen in the TaskType phase.
type TaskType string

const (
	TaskRegression     TaskType = "Regression"
	TaskClassification TaskType = "Classification"
)

// TaskKeywords maps the lowercase keyword detected in an utterance to its task type.
// Order matters: the first keyword found wins.
var TaskKeywords = []struct {
	Keyword string
	Task    TaskType
}{
	{"regression", TaskRegression},
	{"classification", TaskClassification},
}
