/*
Package runner implements the interactive loop and I/O orchestration for the dialogue engine.

It is the bridge between the stateless engine and a terminal or a pipe. The runner
turns input lines into events, persists every snapshot through a session.Manager and
hands the new transcript turns to a pluggable IOHandler.

# Key Components

  - Runner: reads input, dispatches events and prints new turns until the query is ready.
  - IOHandler: decouples presentation (TextHandler for humans, JSONHandler for tools).
  - Streamer: renders an assistant reply token by token; a new turn cancels the old stream.

# Usage

	r := runner.NewRunner(
		runner.WithManager(manager),
		runner.WithSessionID("user-1"),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	if err := r.Run(ctx, engine); err != nil {
		log.Fatal(err)
	}

Lines starting with a slash are commands (/recommend, /load, /drop, /add, /finish,
/query, /help, /quit); anything else is sent as an utterance.
*/
package runner
