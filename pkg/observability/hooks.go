package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/quarry/pkg/domain"
)

// Combine fans every lifecycle notification out to each set of hooks, in order.
func Combine(all ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPhaseEnter: func(ctx context.Context, e *domain.PhaseEvent) {
			for _, h := range all {
				if h.OnPhaseEnter != nil {
					h.OnPhaseEnter(ctx, e)
				}
			}
		},
		OnPhaseLeave: func(ctx context.Context, e *domain.PhaseEvent) {
			for _, h := range all {
				if h.OnPhaseLeave != nil {
					h.OnPhaseLeave(ctx, e)
				}
			}
		},
		OnExtraction: func(ctx context.Context, e *domain.ExtractionEvent) {
			for _, h := range all {
				if h.OnExtraction != nil {
					h.OnExtraction(ctx, e)
				}
			}
		},
		OnCollaboratorCall: func(ctx context.Context, e *domain.CollaboratorEvent) {
			for _, h := range all {
				if h.OnCollaboratorCall != nil {
					h.OnCollaboratorCall(ctx, e)
				}
			}
		},
	}
}

// LoggingHooks logs phase changes and extractions at debug level and
// collaborator failures at warn level.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPhaseEnter: func(ctx context.Context, e *domain.PhaseEvent) {
			logger.DebugContext(ctx, "phase_enter", "session_id", e.SessionID, "phase", e.Phase.String(), "overlay", string(e.Overlay))
		},
		OnPhaseLeave: func(ctx context.Context, e *domain.PhaseEvent) {
			logger.DebugContext(ctx, "phase_leave", "session_id", e.SessionID, "phase", e.Phase.String(), "overlay", string(e.Overlay))
		},
		OnExtraction: func(ctx context.Context, e *domain.ExtractionEvent) {
			logger.DebugContext(ctx, "extraction",
				"session_id", e.SessionID,
				"phase", e.Phase.String(),
				"columns", e.Columns,
				"rejected", e.Rejected,
			)
		},
		OnCollaboratorCall: func(ctx context.Context, e *domain.CollaboratorEvent) {
			level := slog.LevelDebug
			if e.IsError {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "collaborator_call",
				"session_id", e.SessionID,
				"name", e.Name,
				"duration", e.Duration,
				"is_error", e.IsError,
			)
		},
	}
}
