package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/quarry/internal/logging"
	"github.com/aretw0/quarry/pkg/adapters/csvsource"
	"github.com/aretw0/quarry/pkg/domain"
	"github.com/aretw0/quarry/pkg/ports"
	"github.com/aretw0/quarry/pkg/session"
	"github.com/google/uuid"
)

// Runner drives one dialogue over an IOHandler.
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on Stdin/Stdout.
	Handler IOHandler

	// Logger is used for internal debug logging.
	Logger *slog.Logger

	// Manager persists every snapshot. If nil, the session is ephemeral.
	Manager *session.Manager

	// SessionID identifies the session in the Manager.
	SessionID string

	// Loader resolves /load arguments. Defaults to csvsource.Load.
	Loader DatasetLoader

	// ShowSuggestions adds quick replies to every turn.
	ShowSuggestions bool
}

// NewRunner creates a Runner with the given options.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger:          logging.NewNop(),
		Loader:          csvsource.Load,
		ShowSuggestions: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drives the dialogue until the query document is ready, input ends or ctx is done.
// Rejected events are reported to the user and the loop goes on; storage errors stop it.
func (r *Runner) Run(ctx context.Context, engine ports.Dispatcher) error {
	handler := r.resolveHandler()
	if r.SessionID == "" {
		r.SessionID = uuid.NewString()
	}

	s, err := r.start(ctx, engine)
	if err != nil {
		return err
	}

	seen := 0
	if err := r.present(ctx, handler, engine, s, &seen); err != nil {
		return err
	}
	if s.Completed() {
		return nil
	}

	for {
		line, err := handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				r.Logger.Debug("runner stopped", "session_id", r.SessionID, "err", err)
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}
		if line == "" {
			continue
		}

		cmd, err := parseCommand(line)
		if err != nil {
			_ = handler.SystemOutput(ctx, err.Error())
			continue
		}

		switch cmd.kind {
		case cmdQuit:
			return nil
		case cmdHelp:
			_ = handler.SystemOutput(ctx, helpText)
			continue
		case cmdQuery:
			if err := r.showDocument(ctx, handler, s); err != nil {
				return err
			}
			continue
		case cmdLoad:
			in, err := r.Loader(ctx, cmd.arg)
			if err != nil {
				_ = handler.SystemOutput(ctx, fmt.Sprintf("could not load dataset: %v", err))
				continue
			}
			cmd.event = domain.Ingest(in)
		}

		next, err := r.apply(ctx, engine, s, cmd.event)
		if err != nil {
			if domain.IsRejection(err) {
				_ = handler.SystemOutput(ctx, err.Error())
				continue
			}
			return err
		}
		s = next

		if err := r.present(ctx, handler, engine, s, &seen); err != nil {
			return err
		}
		if s.Completed() {
			return nil
		}
	}
}

func (r *Runner) resolveHandler() IOHandler {
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r.Handler
}

func (r *Runner) start(ctx context.Context, engine ports.Dispatcher) (*domain.Session, error) {
	if r.Manager != nil {
		s, err := r.Manager.LoadOrStart(ctx, r.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to open session %s: %w", r.SessionID, err)
		}
		return s, nil
	}
	return engine.Start(ctx, r.SessionID)
}

func (r *Runner) apply(ctx context.Context, engine ports.Dispatcher, s *domain.Session, ev domain.Event) (*domain.Session, error) {
	if r.Manager != nil {
		_, next, err := r.Manager.Apply(ctx, r.SessionID, ev)
		return next, err
	}
	return engine.Dispatch(ctx, s, ev)
}

// present outputs the transcript messages appended since seen.
func (r *Runner) present(ctx context.Context, handler IOHandler, engine ports.Dispatcher, s *domain.Session, seen *int) error {
	turn := Turn{
		SessionID: s.ID,
		Phase:     s.Current(),
		Messages:  s.Transcript.Since(*seen),
	}
	if r.ShowSuggestions {
		turn.Suggestions = engine.Suggestions(s)
	}
	if s.Completed() {
		turn.Document = s.Document
	}
	*seen = len(s.Transcript)

	if err := handler.Output(ctx, turn); err != nil {
		return fmt.Errorf("output error: %w", err)
	}
	return nil
}

func (r *Runner) showDocument(ctx context.Context, handler IOHandler, s *domain.Session) error {
	if s.Document == nil {
		return handler.SystemOutput(ctx, "the query is not ready yet (current step: "+s.Current()+")")
	}
	data, err := json.MarshalIndent(s.Document, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode query: %w", err)
	}
	return handler.SystemOutput(ctx, string(data))
}
