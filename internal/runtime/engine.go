package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/quarry/pkg/domain"
	"github.com/aretw0/quarry/pkg/ports"
)

// Engine is the dialogue state machine.
// It is stateless: every call takes a session snapshot and returns a new one.
type Engine struct {
	sampler        ports.Sampler
	completer      ports.Completer
	hooks          domain.LifecycleHooks
	logger         *slog.Logger
	subsetSampling bool
	now            func() time.Time
}

// EngineOption defines a functional option for configuring the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSampler sets the sampling collaborator used in the modify flow.
func WithSampler(s ports.Sampler) EngineOption {
	return func(e *Engine) {
		e.sampler = s
	}
}

// WithCompleter sets the conversational fallback collaborator.
func WithCompleter(c ports.Completer) EngineOption {
	return func(e *Engine) {
		e.completer = c
	}
}

// WithSubsetSampling sets the sampling flag recorded on new sessions.
func WithSubsetSampling(enabled bool) EngineOption {
	return func(e *Engine) {
		e.subsetSampling = enabled
	}
}

// WithClock overrides the time source used for UpdatedAt and lifecycle timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a new engine with the given options.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start creates a fresh session waiting for an action selection.
func (e *Engine) Start(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	s := domain.NewSession(sessionID, e.subsetSampling)
	s.Transcript.Append(domain.RoleAssistant, msgWelcome)
	s.UpdatedAt = e.now()
	e.emitPhaseEnter(ctx, s)
	return s, nil
}

// Resume prepares a stored session for a restarted host.
// Overlays never survive a restart: the session goes back to the linear phase that spawned it.
func (e *Engine) Resume(s *domain.Session) *domain.Session {
	next := s.Clone()
	if next.Overlay != domain.OverlayNone {
		e.logger.Debug("overlay cleared on resume", "session_id", next.ID, "overlay", string(next.Overlay))
		next.Overlay = domain.OverlayNone
	}
	return next
}

// Dispatch applies a single event to the session and returns the next snapshot.
// The input session is never modified; on error it remains the current state.
func (e *Engine) Dispatch(ctx context.Context, s *domain.Session, ev domain.Event) (*domain.Session, error) {
	if s == nil {
		return nil, fmt.Errorf("cannot dispatch into nil session")
	}
	next := s.Clone()

	var err error
	switch ev.Type {
	case domain.EventSelectAction:
		err = e.selectAction(ctx, next, ev.Action)
	case domain.EventIngest:
		err = e.ingest(ctx, next, ev.Ingestion)
	case domain.EventUtterance:
		err = e.utterance(ctx, next, ev.Text)
	case domain.EventDropColumns:
		err = e.dropColumns(ctx, next, ev.Columns)
	case domain.EventFormEntry:
		err = e.formEntry(ctx, next, ev.Entry)
	case domain.EventFinish:
		err = e.finish(ctx, next)
	default:
		err = fmt.Errorf("%w: %q", domain.ErrUnknownEvent, ev.Type)
	}
	if err != nil {
		e.logger.Debug("event rejected", "session_id", s.ID, "event", string(ev.Type), "phase", s.Current(), "err", err)
		return nil, err
	}

	next.UpdatedAt = e.now()
	return next, nil
}

// notAccepted reports an event that exists but is not valid in the current phase.
func notAccepted(s *domain.Session, t domain.EventType) error {
	return fmt.Errorf("%w: %s not accepted in %s", domain.ErrUnknownEvent, t, s.Current())
}

// enter leaves the current phase, enters p and runs p's entry actions.
func (e *Engine) enter(ctx context.Context, s *domain.Session, p domain.Phase) {
	e.emitPhaseLeave(ctx, s)
	e.logger.Debug("phase transition", "session_id", s.ID, "from", s.Current(), "to", p.String())
	s.Enter(p)
	e.emitPhaseEnter(ctx, s)
	e.onEnter(ctx, s)
}

// onEnter runs the entry actions of the current phase: prompts and automatic transitions.
func (e *Engine) onEnter(ctx context.Context, s *domain.Session) {
	switch s.Phase {
	case domain.PhaseDataIngest:
		s.Transcript.Append(domain.RoleAssistant, greeting(s.QueryType))
	case domain.PhaseSampleGeneration:
		if s.QueryType != domain.QueryModify {
			e.enter(ctx, s, domain.PhaseDropColumns)
			return
		}
		if len(s.SampleConstraints) == 0 && len(s.SampleFixed) == 0 {
			s.Transcript.Append(domain.RoleAssistant, promptConstraints)
			return
		}
		e.sample(ctx, s)
	case domain.PhaseDropColumns:
		s.Transcript.Append(domain.RoleAssistant, promptDropColumns)
	case domain.PhaseTargetVariables:
		s.Transcript.Append(domain.RoleAssistant, promptTarget)
	case domain.PhaseQueryFeatures:
		s.Transcript.Append(domain.RoleAssistant, promptFeatures)
	case domain.PhaseUserConstraints:
		s.Transcript.Append(domain.RoleAssistant, promptConstraints)
	case domain.PhaseTaskType:
		s.Transcript.Append(domain.RoleAssistant, promptTaskType)
	case domain.PhaseAssemble:
		e.assemble(ctx, s)
	case domain.PhaseComplete:
		s.Transcript.Append(domain.RoleAssistant, msgComplete)
	}
}
