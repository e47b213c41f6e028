package extract

import (
	"strings"

	"github.com/aretw0/quarry/internal/resolver"
	"github.com/aretw0/quarry/pkg/domain"
)

var (
	directiveWords = []string{"maximize", "minimize"}
	targetStops    = []string{"maximize", "minimize", "set"}
)

// parseDirectives handles "maximize|minimize <feature-list>".
// The list runs to the next directive or "set", to sentence punctuation, or to the end.
func parseDirectives(p *Parser, in input, res *Result) {
	for from := 0; ; {
		at := indexAnyWord(in.lower, from, directiveWords...)
		if at < 0 {
			return
		}
		directive := domain.Maximize
		if strings.HasPrefix(in.lower[at:], "minimize") {
			directive = domain.Minimize
		}
		start := at + len("maximize")
		end := listEnd(in.lower, start, targetStops...)
		for _, mention := range splitList(in.lower[start:end]) {
			if col, ok := p.resolve(mention, res); ok {
				res.add(col, domain.DirectiveConstraint(directive))
			}
		}
		from = end
	}
}

// parseSetters handles "set <feature> <operator> <value>", one per comma-delimited segment.
func parseSetters(p *Parser, in input, res *Result) {
	for from := 0; ; {
		at := indexWord(in.lower, "set", from)
		if at < 0 {
			return
		}
		start := at + len("set")
		end := len(in.lower)
		if comma := strings.IndexByte(in.lower[start:], ','); comma >= 0 {
			end = start + comma
		}
		if next := indexAnyWord(in.lower, start, targetStops...); next >= 0 && next < end {
			end = next
		}
		p.comparison(in.slice(start, end), false, res)
		from = end
	}
}

// parseWants handles "[i want] <feature> <operator> <value>" over every clause.
func parseWants(p *Parser, in input, res *Result) {
	for _, clause := range splitClauses(in) {
		at := skipWord(clause.lower, 0, "i")
		if at > 0 {
			if next := skipWord(clause.lower, at, "want"); next > at {
				clause = clause.slice(next, len(clause.raw))
			}
		}
		p.comparison(clause, true, res)
	}
}

// parseRecommendations handles "recommend[ on] <feature-list>".
func parseRecommendations(p *Parser, in input, res *Result) {
	for from := 0; ; {
		at := indexWord(in.lower, "recommend", from)
		if at < 0 {
			return
		}
		start := skipWord(in.lower, at+len("recommend"), "on")
		end := listEnd(in.lower, start, "recommend")
		for _, item := range splitList(in.lower[start:end]) {
			for _, mention := range p.words(item) {
				if col, ok := p.resolve(mention, res); ok {
					res.add(col, domain.Flag())
				}
			}
		}
		from = end
	}
}

// words splits a bare list like "age score" into one mention per word when each
// word names a different column. A span that is itself a column name, such as
// "monthly income", stays whole.
func (p *Parser) words(item string) []string {
	fields := strings.Fields(item)
	if len(fields) < 2 {
		return []string{item}
	}
	vocab := p.resolver.Vocabulary()
	if m, ok := resolver.Best(item, vocab); ok && m.Distance == 0 {
		return []string{item}
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		m, ok := resolver.Best(f, vocab)
		if !ok || seen[m.Column] {
			return []string{item}
		}
		seen[m.Column] = true
	}
	return fields
}

// comparison reads "<feature> <operator> <value>" from one segment. The earliest operator
// preceded by a non-blank feature span wins. Without allowExact, "==" behaves like "=".
func (p *Parser) comparison(seg input, allowExact bool, res *Result) {
	first := skipSpaces(seg.lower, 0)
	if first >= len(seg.lower) {
		return
	}
	op, opStart, opEnd, ok := findOperator(seg.lower, first+1)
	if !ok {
		return
	}
	mention := strings.TrimSpace(seg.raw[first:opStart])
	value := seg.slice(opEnd, len(seg.raw))
	if mention == "" || strings.TrimSpace(value.raw) == "" {
		return
	}
	if op.kind == opExact && !allowExact {
		op.kind = opEqual
	}

	col, ok := p.resolve(mention, res)
	if !ok {
		return
	}
	c, ok := op.build(value)
	if !ok {
		res.Rejected++
		p.logger.Debug("rejected value", "column", col, "operator", op.phrase, "value", strings.TrimSpace(value.raw))
		return
	}
	res.add(col, c)
}
