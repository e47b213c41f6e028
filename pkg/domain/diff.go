package domain

import (
	"reflect"
)

// SessionDiff represents the changes between two session snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SessionDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	Phase *Phase `json:"phase,omitempty"`

	// Overlay is present when the overlay changed. An empty value means it was cleared.
	Overlay *Overlay `json:"overlay,omitempty"`

	// Vocabulary is present when columns were set or dropped.
	Vocabulary []string `json:"vocabulary,omitempty"`

	// Accumulators contains only the accumulators whose content changed,
	// rendered with the external constraint representation.
	Accumulators map[string]map[string]any `json:"accumulators,omitempty"`

	// Messages contains transcript entries appended since the old snapshot.
	Messages []Message `json:"messages,omitempty"`

	Document *QueryDocument `json:"document,omitempty"`

	Completed *bool `json:"completed,omitempty"`
}

// Diff calculates the difference between oldSession and newSession.
// If oldSession is nil, it returns a diff representing the entire newSession (initial load).
func Diff(oldSession, newSession *Session) *SessionDiff {
	if newSession == nil {
		return nil
	}

	diff := &SessionDiff{
		SessionID: newSession.ID,
	}

	if oldSession == nil || oldSession.Phase != newSession.Phase {
		phase := newSession.Phase
		diff.Phase = &phase
	}
	if oldSession == nil {
		if newSession.Overlay != OverlayNone {
			overlay := newSession.Overlay
			diff.Overlay = &overlay
		}
	} else if oldSession.Overlay != newSession.Overlay {
		overlay := newSession.Overlay
		diff.Overlay = &overlay
	}

	if oldSession == nil || !reflect.DeepEqual(oldSession.Vocabulary, newSession.Vocabulary) {
		if len(newSession.Vocabulary) > 0 {
			diff.Vocabulary = append([]string{}, newSession.Vocabulary...)
		}
	}

	diff.Accumulators = diffAccumulators(oldSession, newSession)
	diff.Messages = diffTranscript(oldSession, newSession)

	if newSession.Document != nil && (oldSession == nil || !reflect.DeepEqual(oldSession.Document, newSession.Document)) {
		doc := newSession.Document.Clone()
		diff.Document = &doc
	}

	completed := newSession.Completed()
	if (oldSession == nil && completed) || (oldSession != nil && oldSession.Completed() != completed) {
		diff.Completed = &completed
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func accumulators(s *Session) map[string]Fragment {
	return map[string]Fragment{
		"target":           s.Target,
		"query_features":   s.QueryFeatures,
		"user_constraints": s.UserConstraints,
		"fixed_columns":    s.FixedColumns,
	}
}

func diffAccumulators(old, new *Session) map[string]map[string]any {
	delta := make(map[string]map[string]any)
	newAcc := accumulators(new)

	if old == nil {
		for name, frag := range newAcc {
			if len(frag) > 0 {
				delta[name] = frag.Contract()
			}
		}
	} else {
		oldAcc := accumulators(old)
		for name, frag := range newAcc {
			if !reflect.DeepEqual(oldAcc[name], frag) {
				delta[name] = frag.Contract()
			}
		}
	}

	// Return nil if delta is empty so omitempty can remove the key
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffTranscript relies on the transcript being append-only.
func diffTranscript(old, new *Session) []Message {
	if len(new.Transcript) == 0 {
		return nil
	}
	if old == nil {
		return append([]Message{}, new.Transcript...)
	}
	if len(new.Transcript) > len(old.Transcript) {
		return new.Transcript.Since(len(old.Transcript))
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.Phase == nil &&
		d.Overlay == nil &&
		d.Vocabulary == nil &&
		len(d.Accumulators) == 0 &&
		len(d.Messages) == 0 &&
		d.Document == nil &&
		d.Completed == nil
}
