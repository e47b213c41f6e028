// Package extract turns a free-text utterance into column-bound constraints.
//
// Each dialogue phase has its own grammar, built from small parser functions that
// are tried in a fixed order over the whole utterance. Every mention of a column
// goes through the resolver, and mentions that do not resolve are dropped.
package extract

import (
	"io"
	"log/slog"

	"github.com/aretw0/quarry/internal/resolver"
	"github.com/aretw0/quarry/pkg/domain"
)

// Entry is one extracted constraint.
type Entry struct {
	Column     string
	Constraint domain.Constraint
}

// Result is the ordered list of constraints found in one utterance.
// A column may appear more than once; the later entry wins.
type Result struct {
	Entries []Entry

	// Rejected counts matches dropped because the column did not resolve
	// or the value was not a number.
	Rejected int
}

// Empty reports whether nothing was extracted.
func (r Result) Empty() bool {
	return len(r.Entries) == 0
}

// Fragment collapses the entries into a mapping, applying last-match-wins.
func (r Result) Fragment() domain.Fragment {
	frag := make(domain.Fragment, len(r.Entries))
	for _, e := range r.Entries {
		frag[e.Column] = e.Constraint
	}
	return frag
}

// Columns returns the distinct columns in order of first appearance.
func (r Result) Columns() []string {
	seen := make(map[string]bool, len(r.Entries))
	var out []string
	for _, e := range r.Entries {
		if !seen[e.Column] {
			seen[e.Column] = true
			out = append(out, e.Column)
		}
	}
	return out
}

func (r *Result) add(column string, c domain.Constraint) {
	r.Entries = append(r.Entries, Entry{Column: column, Constraint: c})
}

// grammar scans the whole input and appends what it recognizes to res.
type grammar func(p *Parser, in input, res *Result)

// grammars lists, per phase, the parser functions in the order they run.
var grammars = map[domain.Phase][]grammar{
	domain.PhaseTargetVariables:  {parseDirectives, parseSetters},
	domain.PhaseQueryFeatures:    {parseRecommendations},
	domain.PhaseUserConstraints:  {parseWants},
	domain.PhaseSampleGeneration: {parseWants},
}

// Parser extracts constraints against a fixed vocabulary.
type Parser struct {
	resolver *resolver.Resolver
	logger   *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for debug records about matches and rejections.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a parser for vocabulary.
func New(vocabulary []string, opts ...Option) *Parser {
	p := &Parser{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.resolver = resolver.New(vocabulary, resolver.WithLogger(p.logger))
	return p
}

// Parse runs the grammar of phase over utterance. Phases without a grammar yield an empty result.
func (p *Parser) Parse(utterance string, phase domain.Phase) Result {
	var res Result
	if len(p.resolver.Vocabulary()) == 0 {
		return res
	}
	in := newInput(utterance)
	for _, g := range grammars[phase] {
		g(p, in, &res)
	}
	p.logger.Debug("extraction", "phase", phase.String(), "columns", res.Columns(), "rejected", res.Rejected)
	return res
}

// Parse is a convenience wrapper building a one-off Parser.
func Parse(utterance string, phase domain.Phase, vocabulary []string) Result {
	return New(vocabulary).Parse(utterance, phase)
}

// resolve maps a mention to a column, counting a rejection on failure.
func (p *Parser) resolve(mention string, res *Result) (string, bool) {
	col, ok := p.resolver.Resolve(mention)
	if !ok {
		res.Rejected++
	}
	return col, ok
}
