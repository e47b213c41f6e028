package domain

import "time"

// Ingestion is the header and preview rows produced by the tabular ingestion collaborator.
type Ingestion struct {
	SourceLabel   string     `json:"source_label"`
	FileReference string     `json:"file_reference"`
	Headers       []string   `json:"headers"`
	SampleRows    [][]string `json:"sample_rows,omitempty"`
}

// Clone returns a deep copy.
func (in Ingestion) Clone() Ingestion {
	out := in
	out.Headers = append([]string(nil), in.Headers...)
	if in.SampleRows != nil {
		out.SampleRows = make([][]string, len(in.SampleRows))
		for i, row := range in.SampleRows {
			out.SampleRows[i] = append([]string(nil), row...)
		}
	}
	return out
}

// Session is the runtime snapshot of one dialogue.
// The engine never mutates a Session in place: every transition yields a new value.
type Session struct {
	ID string `json:"id"`

	// Phase is the linear phase. When Overlay is set, Phase still names the
	// phase that spawned it.
	Phase   Phase   `json:"phase"`
	Overlay Overlay `json:"overlay,omitempty"`

	QueryType QueryType `json:"query_type,omitempty"`
	TaskType  TaskType  `json:"task_type,omitempty"`

	// SubsetSampling is the sampling flag carried into the query document.
	SubsetSampling bool `json:"subset_sampling"`

	Dataset    Ingestion `json:"dataset"`
	Vocabulary []string  `json:"vocabulary"`

	Target          Fragment `json:"target"`
	QueryFeatures   Fragment `json:"query_features"`
	UserConstraints Fragment `json:"user_constraints"`
	FixedColumns    Fragment `json:"fixed_columns"`

	// SampleConstraints and SampleFixed hold what was said during SampleGeneration.
	// They feed the sampling request only.
	SampleConstraints Fragment `json:"sample_constraints"`
	SampleFixed       Fragment `json:"sample_fixed"`

	DroppedColumns []string `json:"dropped_columns"`
	Samples        []any    `json:"samples,omitempty"`

	Transcript Transcript     `json:"transcript"`
	Document   *QueryDocument `json:"document,omitempty"`

	// History lists the linear phases entered, in order.
	History []Phase `json:"history"`

	UpdatedAt time.Time `json:"updated_at"`

	// Sealed carries the encrypted form of a session written by an encrypting
	// store. A sealed envelope exposes only ID, Phase and UpdatedAt.
	Sealed string `json:"sealed,omitempty"`
}

// NewSession creates a clean session waiting for an action selection.
func NewSession(id string, subsetSampling bool) *Session {
	return &Session{
		ID:                id,
		Phase:             PhaseActionSelect,
		SubsetSampling:    subsetSampling,
		Vocabulary:        []string{},
		Target:            Fragment{},
		QueryFeatures:     Fragment{},
		UserConstraints:   Fragment{},
		FixedColumns:      Fragment{},
		SampleConstraints: Fragment{},
		SampleFixed:       Fragment{},
		DroppedColumns:    []string{},
		Transcript:        Transcript{},
		History:           []Phase{PhaseActionSelect},
	}
}

// Current returns the name of the active state: the overlay when set, else the phase.
func (s *Session) Current() string {
	if s.Overlay != OverlayNone {
		return string(s.Overlay)
	}
	return s.Phase.String()
}

// Completed reports whether the dialogue reached its sink phase.
func (s *Session) Completed() bool {
	return s.Phase == PhaseComplete
}

// Clone returns a deep copy sharing no mutable state with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Dataset = s.Dataset.Clone()
	out.Vocabulary = append([]string{}, s.Vocabulary...)
	out.Target = s.Target.Clone()
	out.QueryFeatures = s.QueryFeatures.Clone()
	out.UserConstraints = s.UserConstraints.Clone()
	out.FixedColumns = s.FixedColumns.Clone()
	out.SampleConstraints = s.SampleConstraints.Clone()
	out.SampleFixed = s.SampleFixed.Clone()
	out.DroppedColumns = append([]string{}, s.DroppedColumns...)
	out.Samples = cloneSlice(s.Samples)
	out.Transcript = append(Transcript{}, s.Transcript...)
	out.History = append([]Phase{}, s.History...)
	if s.Document != nil {
		doc := s.Document.Clone()
		out.Document = &doc
	}
	return &out
}

// Enter moves the session to phase p and records it in History.
func (s *Session) Enter(p Phase) {
	s.Phase = p
	s.Overlay = OverlayNone
	s.History = append(s.History, p)
}

// HasColumn reports whether col is part of the vocabulary.
func (s *Session) HasColumn(col string) bool {
	for _, v := range s.Vocabulary {
		if v == col {
			return true
		}
	}
	return false
}

// CloneSamples deep-copies decoded JSON sample records.
func CloneSamples(in []any) []any {
	return cloneSlice(in)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		return cloneSlice(t)
	default:
		return v
	}
}

func cloneSlice(in []any) []any {
	if in == nil {
		return nil
	}
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = cloneValue(v)
	}
	return out
}
