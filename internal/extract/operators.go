package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/quarry/pkg/domain"
)

type opKind int

const (
	opEqual opKind = iota
	opUpper
	opLower
	opBetween
	opExact
)

type operator struct {
	phrase string
	kind   opKind
	symbol bool
	copula bool
}

// operators is ordered so that, at a given offset, longer phrases are tried first.
var operators = []operator{
	{phrase: "less than or equal to", kind: opUpper},
	{phrase: "greater than or equal to", kind: opLower},
	{phrase: "less than", kind: opUpper},
	{phrase: "greater than", kind: opLower},
	{phrase: "more than", kind: opLower},
	{phrase: "at most", kind: opUpper},
	{phrase: "at least", kind: opLower},
	{phrase: "between", kind: opBetween},
	{phrase: "below", kind: opUpper},
	{phrase: "under", kind: opUpper},
	{phrase: "above", kind: opLower},
	{phrase: "over", kind: opLower},
	{phrase: "to be", kind: opEqual, copula: true},
	{phrase: "is", kind: opEqual, copula: true},
	{phrase: "==", kind: opExact, symbol: true},
	{phrase: "<=", kind: opUpper, symbol: true},
	{phrase: ">=", kind: opLower, symbol: true},
	{phrase: "=", kind: opEqual, symbol: true},
	{phrase: "<", kind: opUpper, symbol: true},
	{phrase: ">", kind: opLower, symbol: true},
}

// operatorAt reports the operator starting exactly at offset i of s.
func operatorAt(s string, i int) (operator, bool) {
	for _, op := range operators {
		if !strings.HasPrefix(s[i:], op.phrase) {
			continue
		}
		if !op.symbol && !atWordBoundary(s, i, i+len(op.phrase)) {
			continue
		}
		return op, true
	}
	return operator{}, false
}

// findOperator returns the earliest operator at or after from, with the offsets of the
// operator text. A copula directly followed by a comparative resolves to the comparative.
func findOperator(s string, from int) (op operator, start, end int, ok bool) {
	for i := from; i < len(s); i++ {
		found, hit := operatorAt(s, i)
		if !hit {
			continue
		}
		end = i + len(found.phrase)
		if found.copula {
			j := skipSpaces(s, end)
			if j < len(s) {
				if next, ok := operatorAt(s, j); ok && !next.copula {
					return next, i, j + len(next.phrase), true
				}
			}
		}
		return found, i, end, true
	}
	return operator{}, 0, 0, false
}

var (
	numericPrefix = regexp.MustCompile(`^[-+]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?`)
	rangeValues   = regexp.MustCompile(`([-+]?(?:\d+(?:\.\d+)?|\.\d+))\s*(?:and|to)\s*([-+]?(?:\d+(?:\.\d+)?|\.\d+))`)
	pureNumber    = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
)

// leadingNumber parses the numeric prefix of s ("80 dollars" is 80).
// It fails when s does not start with a number.
func leadingNumber(s string) (float64, bool) {
	m := numericPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// build turns the value text following an operator into a constraint.
func (op operator) build(value input) (domain.Constraint, bool) {
	switch op.kind {
	case opBetween:
		m := rangeValues.FindStringSubmatch(value.lower)
		if m == nil {
			return domain.Constraint{}, false
		}
		lo, err1 := strconv.ParseFloat(m[1], 64)
		hi, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			return domain.Constraint{}, false
		}
		return domain.Between(lo, hi), true
	case opExact:
		return exactValue(value.raw)
	}

	v, ok := leadingNumber(value.lower)
	if !ok {
		return domain.Constraint{}, false
	}
	switch op.kind {
	case opUpper:
		return domain.AtMost(v), true
	case opLower:
		return domain.AtLeast(v), true
	default:
		return domain.EqualTo(v), true
	}
}

// exactValue reads the right-hand side of "==": quoted text verbatim, a pure number as
// a number, anything else as literal text.
func exactValue(raw string) (domain.Constraint, bool) {
	text := strings.TrimSpace(raw)
	if text != "" && (text[0] == '"' || text[0] == '\'') {
		if closing := strings.IndexByte(text[1:], text[0]); closing >= 0 {
			text = text[1 : 1+closing]
		}
	}
	text = strings.TrimSpace(strings.TrimRight(text, ".,;"))
	if text == "" {
		return domain.Constraint{}, false
	}
	if pureNumber.MatchString(text) {
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			return domain.ExactNumber(v), true
		}
	}
	return domain.ExactText(text), true
}
