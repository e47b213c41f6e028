package domain

import (
	"fmt"
	"strconv"
)

// ConstraintKind tags the variant carried by a Constraint.
type ConstraintKind string

const (
	KindDirective ConstraintKind = "directive"
	KindRange     ConstraintKind = "range"
	KindExact     ConstraintKind = "exact"
	KindFlag      ConstraintKind = "flag"
)

// Directive is an optimization goal for a target column.
type Directive string

const (
	Maximize Directive = "maximize"
	Minimize Directive = "minimize"
)

// Constraint is a requirement bound to one column.
//
// Exactly one variant is meaningful, selected by Kind:
//   - KindDirective: Directive
//   - KindRange: Min and/or Max (never both nil; Min == Max is an exact value)
//   - KindExact: Number when numeric, Text otherwise
//   - KindFlag: no payload, the column is included
//
// The struct form is what sessions persist. The external query document uses
// the representation returned by Contract.
type Constraint struct {
	Kind      ConstraintKind `json:"kind"`
	Directive Directive      `json:"directive,omitempty"`
	Min       *float64       `json:"min,omitempty"`
	Max       *float64       `json:"max,omitempty"`
	Text      string         `json:"text,omitempty"`
	Number    *float64       `json:"number,omitempty"`
}

// RangeBounds is the contractual JSON shape of a range. Absent bounds encode as null.
type RangeBounds struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

func ptr(v float64) *float64 { return &v }

// DirectiveConstraint builds a maximize/minimize goal.
func DirectiveConstraint(d Directive) Constraint {
	return Constraint{Kind: KindDirective, Directive: d}
}

// Between builds a closed range.
func Between(min, max float64) Constraint {
	return Constraint{Kind: KindRange, Min: ptr(min), Max: ptr(max)}
}

// AtLeast builds a range with only a lower bound.
func AtLeast(min float64) Constraint {
	return Constraint{Kind: KindRange, Min: ptr(min)}
}

// AtMost builds a range with only an upper bound.
func AtMost(max float64) Constraint {
	return Constraint{Kind: KindRange, Max: ptr(max)}
}

// EqualTo builds the degenerate range {v, v}.
func EqualTo(v float64) Constraint {
	return Between(v, v)
}

// ExactNumber fixes a column to a number.
func ExactNumber(v float64) Constraint {
	return Constraint{Kind: KindExact, Number: ptr(v)}
}

// ExactText fixes a column to a categorical value.
func ExactText(s string) Constraint {
	return Constraint{Kind: KindExact, Text: s}
}

// Flag marks a column as included.
func Flag() Constraint {
	return Constraint{Kind: KindFlag}
}

// Valid reports whether the variant payload is consistent with its Kind.
func (c Constraint) Valid() bool {
	switch c.Kind {
	case KindDirective:
		return c.Directive == Maximize || c.Directive == Minimize
	case KindRange:
		return c.Min != nil || c.Max != nil
	case KindExact, KindFlag:
		return true
	}
	return false
}

// IsCategorical reports whether the constraint fixes a column to a text value.
// Categorical constraints are stored as fixed columns, everything else numeric.
func (c Constraint) IsCategorical() bool {
	return c.Kind == KindExact && c.Number == nil
}

// Contract returns the external JSON representation:
// directive -> "maximize", range -> {"min":..,"max":..}, exact -> number or string, flag -> true.
func (c Constraint) Contract() any {
	switch c.Kind {
	case KindDirective:
		return string(c.Directive)
	case KindRange:
		return RangeBounds{Min: copyFloat(c.Min), Max: copyFloat(c.Max)}
	case KindExact:
		if c.Number != nil {
			return *c.Number
		}
		return c.Text
	case KindFlag:
		return true
	}
	return nil
}

// Describe renders the constraint the way the assistant echoes it back.
func (c Constraint) Describe() string {
	switch c.Kind {
	case KindDirective:
		return string(c.Directive)
	case KindRange:
		switch {
		case c.Min != nil && c.Max != nil:
			if *c.Min == *c.Max {
				return "set to " + FormatNumber(*c.Min)
			}
			return fmt.Sprintf("between %s and %s", FormatNumber(*c.Min), FormatNumber(*c.Max))
		case c.Min != nil:
			return "greater than or equal to " + FormatNumber(*c.Min)
		case c.Max != nil:
			return "less than or equal to " + FormatNumber(*c.Max)
		}
	case KindExact:
		if c.Number != nil {
			return "set to " + FormatNumber(*c.Number)
		}
		return "fixed to " + c.Text
	case KindFlag:
		return "recommend"
	}
	return ""
}

// Clone returns a copy that shares no pointers with c.
func (c Constraint) Clone() Constraint {
	c.Min = copyFloat(c.Min)
	c.Max = copyFloat(c.Max)
	c.Number = copyFloat(c.Number)
	return c
}

// FormatNumber prints a float without trailing zeros (80, 0.5).
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
