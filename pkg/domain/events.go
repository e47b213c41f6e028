package domain

import (
	"context"
	"time"
)

// LifecycleKind defines the category of a lifecycle notification.
type LifecycleKind string

const (
	LifecyclePhaseEnter   LifecycleKind = "phase_enter"
	LifecyclePhaseLeave   LifecycleKind = "phase_leave"
	LifecycleExtraction   LifecycleKind = "extraction"
	LifecycleCollaborator LifecycleKind = "collaborator_call"
)

// LifecycleBase contains common fields for all lifecycle notifications.
type LifecycleBase struct {
	Timestamp time.Time     `json:"timestamp"`
	Kind      LifecycleKind `json:"kind"`
	SessionID string        `json:"session_id"`
}

// PhaseEvent represents entry into or exit from a phase or overlay.
type PhaseEvent struct {
	LifecycleBase
	Phase   Phase   `json:"phase"`
	Overlay Overlay `json:"overlay,omitempty"`
}

// ExtractionEvent reports the outcome of parsing one utterance.
type ExtractionEvent struct {
	LifecycleBase
	Phase    Phase    `json:"phase"`
	Columns  []string `json:"columns"`
	Rejected int      `json:"rejected"`
}

// CollaboratorEvent reports a call to an external collaborator (sampling, completion).
type CollaboratorEvent struct {
	LifecycleBase
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	IsError  bool          `json:"is_error,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnPhaseEnter       func(context.Context, *PhaseEvent)
	OnPhaseLeave       func(context.Context, *PhaseEvent)
	OnExtraction       func(context.Context, *ExtractionEvent)
	OnCollaboratorCall func(context.Context, *CollaboratorEvent)
}
