package domain

// EventType names a discrete user action dispatched into the engine.
type EventType string

const (
	EventSelectAction EventType = "select_action"
	EventIngest       EventType = "ingest"
	EventUtterance    EventType = "utterance"
	EventDropColumns  EventType = "drop_columns"
	EventFormEntry    EventType = "form_entry"
	EventFinish       EventType = "finish"
)

// FormEntry is a structured constraint submitted through an overlay form.
type FormEntry struct {
	Column string   `json:"column"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
}

// Event is the single input type of the state machine.
// Only the fields relevant to Type are read.
type Event struct {
	Type      EventType  `json:"type"`
	Text      string     `json:"text,omitempty"`
	Action    string     `json:"action,omitempty"`
	Ingestion *Ingestion `json:"ingestion,omitempty"`
	Columns   []string   `json:"columns,omitempty"`
	Entry     *FormEntry `json:"entry,omitempty"`
}

// SelectAction builds an action selection event.
func SelectAction(action QueryType) Event {
	return Event{Type: EventSelectAction, Action: string(action)}
}

// Ingest builds an ingestion completion event.
func Ingest(in Ingestion) Event {
	return Event{Type: EventIngest, Ingestion: &in}
}

// Utterance builds a free-text event.
func Utterance(text string) Event {
	return Event{Type: EventUtterance, Text: text}
}

// DropColumns builds a column-removal event. An empty list keeps every column.
func DropColumns(cols ...string) Event {
	return Event{Type: EventDropColumns, Columns: cols}
}

// SubmitForm builds a form entry event.
func SubmitForm(column string, min, max float64) Event {
	return Event{Type: EventFormEntry, Entry: &FormEntry{Column: column, Min: &min, Max: &max}}
}

// Finish builds an explicit phase completion event.
func Finish() Event {
	return Event{Type: EventFinish}
}
