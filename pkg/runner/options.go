package runner

import (
	"context"
	"log/slog"

	"github.com/aretw0/quarry/pkg/domain"
	"github.com/aretw0/quarry/pkg/session"
)

// DatasetLoader reads the ingestion payload named by a /load argument.
type DatasetLoader func(ctx context.Context, ref string) (domain.Ingestion, error)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithManager routes every event through the session manager, making the run durable.
func WithManager(m *session.Manager) Option {
	return func(r *Runner) {
		r.Manager = m
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.Logger = logger
		}
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithSessionID sets the session ID. A new random ID is used when empty.
func WithSessionID(id string) Option {
	return func(r *Runner) {
		r.SessionID = id
	}
}

// WithDatasetLoader replaces the CSV loader used by /load.
func WithDatasetLoader(loader DatasetLoader) Option {
	return func(r *Runner) {
		if loader != nil {
			r.Loader = loader
		}
	}
}

// WithSuggestions toggles quick-reply hints after each turn.
func WithSuggestions(enabled bool) Option {
	return func(r *Runner) {
		r.ShowSuggestions = enabled
	}
}
