package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/quarry"
	"github.com/aretw0/quarry/internal/presentation/tui"
	"github.com/aretw0/quarry/pkg/runner"
	"github.com/google/uuid"
)

var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// RunOptions contains the configuration of the run command.
type RunOptions struct {
	SessionID string
	JSON      bool
	Headless  bool
	Debug     bool
	Fresh     bool
	NoStream  bool
}

// RunSession drives one dialogue on stdin/stdout until the query is ready or input ends.
func RunSession(ctx context.Context, app *App, opts RunOptions) error {
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	quiet := opts.JSON || opts.Headless

	if opts.Fresh {
		if err := app.Manager.Delete(ctx, opts.SessionID); err != nil {
			return fmt.Errorf("failed to reset session: %w", err)
		}
	}

	handler, err := newHandler(app, opts)
	if err != nil {
		return err
	}
	if !quiet {
		tui.PrintBanner(stdout, quarry.Version)
		fmt.Fprintf(stdout, "[System] session %s (type /help for commands)\n", opts.SessionID)
	}

	r := runner.NewRunner(
		runner.WithInputHandler(handler),
		runner.WithLogger(app.Logger),
		runner.WithManager(app.Manager),
		runner.WithSessionID(opts.SessionID),
		runner.WithSuggestions(!quiet),
	)

	app.Logger.Debug("session started", "session_id", opts.SessionID, "backend", app.Config.Store.Backend)
	if err := r.Run(ctx, app.Engine); err != nil {
		return err
	}
	if !quiet && ctx.Err() != nil {
		fmt.Fprintf(stdout, "\n[System] interrupted, resume with --session %s\n", opts.SessionID)
	}
	return nil
}

func newHandler(app *App, opts RunOptions) (runner.IOHandler, error) {
	if opts.JSON {
		return runner.NewJSONHandler(stdin, stdout), nil
	}

	var handlerOpts []runner.TextHandlerOption
	if out, ok := stdout.(*os.File); ok && tui.IsInteractive(out) && !opts.Headless {
		render, err := tui.NewRenderer(tui.Width(out, 80))
		if err != nil {
			return nil, fmt.Errorf("failed to init renderer: %w", err)
		}
		handlerOpts = append(handlerOpts, runner.WithTextHandlerRenderer(render))
		if !opts.NoStream {
			handlerOpts = append(handlerOpts, runner.WithTextHandlerStreamer(runner.NewStreamer(app.Config.StreamDelay)))
		}
	}
	return runner.NewTextHandler(stdin, stdout, handlerOpts...), nil
}
