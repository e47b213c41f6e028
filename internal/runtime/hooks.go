package runtime

import (
	"context"
	"time"

	"github.com/aretw0/quarry/pkg/domain"
)

func (e *Engine) base(kind domain.LifecycleKind, s *domain.Session) domain.LifecycleBase {
	return domain.LifecycleBase{Timestamp: e.now(), Kind: kind, SessionID: s.ID}
}

func (e *Engine) emitPhaseEnter(ctx context.Context, s *domain.Session) {
	if e.hooks.OnPhaseEnter == nil {
		return
	}
	e.hooks.OnPhaseEnter(ctx, &domain.PhaseEvent{
		LifecycleBase: e.base(domain.LifecyclePhaseEnter, s),
		Phase:         s.Phase,
		Overlay:       s.Overlay,
	})
}

func (e *Engine) emitPhaseLeave(ctx context.Context, s *domain.Session) {
	if e.hooks.OnPhaseLeave == nil {
		return
	}
	e.hooks.OnPhaseLeave(ctx, &domain.PhaseEvent{
		LifecycleBase: e.base(domain.LifecyclePhaseLeave, s),
		Phase:         s.Phase,
		Overlay:       s.Overlay,
	})
}

func (e *Engine) emitExtraction(ctx context.Context, s *domain.Session, columns []string, rejected int) {
	if e.hooks.OnExtraction == nil {
		return
	}
	e.hooks.OnExtraction(ctx, &domain.ExtractionEvent{
		LifecycleBase: e.base(domain.LifecycleExtraction, s),
		Phase:         s.Phase,
		Columns:       columns,
		Rejected:      rejected,
	})
}

func (e *Engine) emitCollaborator(ctx context.Context, s *domain.Session, name string, took time.Duration, failed bool) {
	if e.hooks.OnCollaboratorCall == nil {
		return
	}
	e.hooks.OnCollaboratorCall(ctx, &domain.CollaboratorEvent{
		LifecycleBase: e.base(domain.LifecycleCollaborator, s),
		Name:          name,
		Duration:      took,
		IsError:       failed,
	})
}
