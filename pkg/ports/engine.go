package ports

import (
	"context"

	"github.com/aretw0/quarry/pkg/domain"
)

// Dispatcher defines the stateless dialogue core.
// Host adapters load a session, dispatch one event and persist the returned snapshot.
type Dispatcher interface {
	// Start creates a fresh session with its opening assistant turn.
	Start(ctx context.Context, sessionID string) (*domain.Session, error)

	// Dispatch applies one event and returns the next session snapshot.
	// The input session is never modified.
	Dispatch(ctx context.Context, session *domain.Session, event domain.Event) (*domain.Session, error)

	// Suggestions returns quick-reply texts for the active phase.
	Suggestions(session *domain.Session) []string
}
