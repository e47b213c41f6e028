package ports

import "context"

// SampleRequest is the payload sent to the sampling service.
type SampleRequest struct {
	Path            string         `json:"path"`
	Count           int            `json:"count"`
	TaskType        string         `json:"task_type"`
	ApplyLog        bool           `json:"apply_log"`
	UserConstraints map[string]any `json:"user_constraints"`
	FixedColumns    map[string]any `json:"fixed_columns"`
}

// Sampler fetches example rows satisfying the given constraints.
// Callers treat any error as an empty sample set.
type Sampler interface {
	Sample(ctx context.Context, req SampleRequest) ([]any, error)
}

// Completion is the reply of the completion service.
type Completion struct {
	Message string         `json:"message"`
	Usage   map[string]any `json:"usage,omitempty"`
}

// Completer produces a conversational reply to free text.
type Completer interface {
	Complete(ctx context.Context, message string) (Completion, error)
}
