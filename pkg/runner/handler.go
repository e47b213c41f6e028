package runner

import (
	"context"

	"github.com/aretw0/quarry/pkg/domain"
)

// Turn is what the runner presents after each event: the transcript messages
// appended since the previous turn plus the quick replies of the new phase.
type Turn struct {
	SessionID   string                `json:"session_id"`
	Phase       string                `json:"phase"`
	Messages    []domain.Message      `json:"messages"`
	Suggestions []string              `json:"suggestions,omitempty"`
	Document    *domain.QueryDocument `json:"document,omitempty"`
}

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents a turn to the user.
	Output(ctx context.Context, turn Turn) error

	// Input reads one line from the user.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (errors, help, status) distinct from the dialogue.
	SystemOutput(ctx context.Context, msg string) error
}
