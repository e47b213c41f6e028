package domain

import "sort"

// Fragment is a phase-owned accumulator mapping column names to constraints.
type Fragment map[string]Constraint

// Merge adds or overwrites every entry of other. It never removes keys.
func (f Fragment) Merge(other Fragment) {
	for col, c := range other {
		f[col] = c.Clone()
	}
}

// Clone returns a deep copy. A nil fragment clones to an empty one.
func (f Fragment) Clone() Fragment {
	out := make(Fragment, len(f))
	for col, c := range f {
		out[col] = c.Clone()
	}
	return out
}

// Columns returns the fragment keys ordered by their position in vocabulary.
// Keys absent from the vocabulary follow in lexical order.
func (f Fragment) Columns(vocabulary []string) []string {
	out := make([]string, 0, len(f))
	seen := make(map[string]bool, len(f))
	for _, col := range vocabulary {
		if _, ok := f[col]; ok && !seen[col] {
			out = append(out, col)
			seen[col] = true
		}
	}
	var rest []string
	for col := range f {
		if !seen[col] {
			rest = append(rest, col)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Contract renders the fragment with the external constraint representation.
func (f Fragment) Contract() map[string]any {
	out := make(map[string]any, len(f))
	for col, c := range f {
		out[col] = c.Contract()
	}
	return out
}

// Split partitions the fragment into numeric and categorical entries.
func (f Fragment) Split() (numeric, categorical Fragment) {
	numeric, categorical = Fragment{}, Fragment{}
	for col, c := range f {
		if c.IsCategorical() {
			categorical[col] = c.Clone()
		} else {
			numeric[col] = c.Clone()
		}
	}
	return numeric, categorical
}
