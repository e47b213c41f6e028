package quarry

import (
	"context"
	"log/slog"

	"github.com/aretw0/quarry/internal/assembler"
	"github.com/aretw0/quarry/internal/extract"
	"github.com/aretw0/quarry/internal/logging"
	"github.com/aretw0/quarry/internal/resolver"
	"github.com/aretw0/quarry/internal/runtime"
	"github.com/aretw0/quarry/pkg/domain"
	"github.com/aretw0/quarry/pkg/ports"
)

// Engine is the high-level entry point for the Quarry library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime        *runtime.Engine
	sampler        ports.Sampler
	completer      ports.Completer
	hooks          domain.LifecycleHooks
	logger         *slog.Logger
	subsetSampling bool
}

var _ ports.Dispatcher = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSampler sets the sampling service used by the modify flow.
// Without one, sampling is skipped and the flow continues with no samples.
func WithSampler(s ports.Sampler) Option {
	return func(e *Engine) {
		e.sampler = s
	}
}

// WithCompleter sets the conversational fallback used for free text before an action is chosen.
func WithCompleter(c ports.Completer) Option {
	return func(e *Engine) {
		e.completer = c
	}
}

// WithSubsetSampling sets the sampling_flag recorded in new sessions.
func WithSubsetSampling(enabled bool) Option {
	return func(e *Engine) {
		e.subsetSampling = enabled
	}
}

// New initializes a new Quarry Engine.
func New(opts ...Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	// Ensure logger is initialized (so we don't pass nil to runtime)
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	eng.runtime = runtime.NewEngine(
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithSampler(eng.sampler),
		runtime.WithCompleter(eng.completer),
		runtime.WithSubsetSampling(eng.subsetSampling),
	)
	return eng
}

// Start creates a new session waiting for an action selection.
func (e *Engine) Start(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.runtime.Start(ctx, sessionID)
}

// Dispatch applies one event and returns the next session snapshot.
// The given session is never modified; when an error is returned it is still the current state.
func (e *Engine) Dispatch(ctx context.Context, s *domain.Session, ev domain.Event) (*domain.Session, error) {
	return e.runtime.Dispatch(ctx, s, ev)
}

// Resume prepares a stored session for a restarted host by clearing any form overlay.
func (e *Engine) Resume(s *domain.Session) *domain.Session {
	return e.runtime.Resume(s)
}

// Suggestions returns quick-reply texts for the active phase.
func (e *Engine) Suggestions(s *domain.Session) []string {
	return e.runtime.Suggestions(s)
}

// Query builds the Final Query Document from the session's accumulators.
// Sessions that reached Complete already carry it in Session.Document.
func Query(s *domain.Session) domain.QueryDocument {
	return assembler.Assemble(s)
}

// ResolveFeature maps a free-text column mention to the closest vocabulary entry.
func ResolveFeature(raw string, vocabulary []string) (string, bool) {
	return resolver.Resolve(raw, vocabulary)
}

// Extract parses an utterance with the grammar of phase and returns the constraints
// it binds to vocabulary columns.
func Extract(utterance string, phase domain.Phase, vocabulary []string) domain.Fragment {
	return extract.Parse(utterance, phase, vocabulary).Fragment()
}
