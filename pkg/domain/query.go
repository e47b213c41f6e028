package domain

// QueryDocument is the Final Query Document handed to the downstream analysis engine.
// Its JSON encoding is a public contract.
type QueryDocument struct {
	Key             string         `json:"key"`
	FileReference   string         `json:"file_reference"`
	SamplingFlag    bool           `json:"sampling_flag"`
	TaskType        TaskType       `json:"task_type"`
	DroppedColumns  []string       `json:"dropped_columns"`
	QueryType       QueryType      `json:"query_type"`
	Target          map[string]any `json:"target"`
	FixedColumns    map[string]any `json:"fixed_columns"`
	UserConstraints map[string]any `json:"user_constraints"`
	QueryFeatures   map[string]any `json:"query_features"`
	Samples         []any          `json:"samples,omitempty"`
}

// Clone returns a deep copy of the document.
func (d QueryDocument) Clone() QueryDocument {
	out := d
	out.DroppedColumns = append([]string{}, d.DroppedColumns...)
	out.Target = cloneMap(d.Target)
	out.FixedColumns = cloneMap(d.FixedColumns)
	out.UserConstraints = cloneMap(d.UserConstraints)
	out.QueryFeatures = cloneMap(d.QueryFeatures)
	out.Samples = cloneSlice(d.Samples)
	return out
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}
