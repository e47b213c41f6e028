// Package resolver maps a free-text feature mention onto a column of a fixed vocabulary
// using edit distance over a few normalization variants of each column name.
package resolver

import (
	"io"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// stopwords are stripped from the start of a mention, repeatedly.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true,
	"my": true, "our": true, "your": true, "its": true,
	"this": true, "that": true,
	"set": true, "change": true, "make": true, "recommend": true,
}

var genericNoun = regexp.MustCompile(`\b(column|field|value)s?\s*$`)

// Match is the outcome of resolving one mention.
type Match struct {
	Column    string
	Distance  int
	Threshold int
}

// Resolver resolves mentions against one vocabulary. It holds no cache.
type Resolver struct {
	vocabulary []string
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for match/no-match debug records.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Resolver over vocabulary.
func New(vocabulary []string, opts ...Option) *Resolver {
	r := &Resolver{
		vocabulary: vocabulary,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the column raw refers to, or false if nothing is close enough.
func (r *Resolver) Resolve(raw string) (string, bool) {
	m, ok := Best(raw, r.vocabulary)
	if !ok {
		r.logger.Debug("no-match", "mention", raw, "distance", m.Distance, "threshold", m.Threshold)
		return "", false
	}
	r.logger.Debug("match", "mention", raw, "column", m.Column, "distance", m.Distance)
	return m.Column, true
}

// Vocabulary returns the columns this resolver matches against.
func (r *Resolver) Vocabulary() []string {
	return r.vocabulary
}

// Resolve is the stateless form of Resolver.Resolve.
func Resolve(raw string, vocabulary []string) (string, bool) {
	m, ok := Best(raw, vocabulary)
	return m.Column, ok
}

// Best finds the closest column to raw. The returned Match carries the best candidate
// even when it is rejected, except when raw normalizes to nothing or the vocabulary is empty.
//
// Ties keep the first minimal candidate, so vocabulary order breaks them.
func Best(raw string, vocabulary []string) (Match, bool) {
	mention := Normalize(raw)
	if mention == "" || len(vocabulary) == 0 {
		return Match{}, false
	}

	best := Match{Distance: -1}
	for _, column := range vocabulary {
		for _, variant := range variants(column) {
			d := Distance(mention, variant)
			if best.Distance < 0 || d < best.Distance {
				best.Distance = d
				best.Column = column
			}
		}
	}
	if best.Column == "" {
		return Match{}, false
	}

	best.Threshold = Threshold(utf8.RuneCountInString(mention), utf8.RuneCountInString(best.Column))
	if best.Distance > best.Threshold {
		return best, false
	}
	return best, true
}

// Threshold is the largest accepted distance for a mention and a column of the given lengths:
// max(2, floor(0.4 * max(a, b))).
func Threshold(mentionLen, columnLen int) int {
	return max(2, max(mentionLen, columnLen)*4/10)
}

// Normalize lowercases raw, collapses whitespace, strips leading stopwords and a trailing
// generic noun (column, field, value), then removes all whitespace.
func Normalize(raw string) string {
	words := strings.Fields(strings.ToLower(raw))
	for len(words) > 1 && stopwords[words[0]] {
		words = words[1:]
	}
	if len(words) == 1 && stopwords[words[0]] {
		return ""
	}
	cleaned := strings.TrimSpace(genericNoun.ReplaceAllString(strings.Join(words, " "), ""))
	return strings.Join(strings.Fields(cleaned), "")
}

// variants are the spellings a column is compared under.
func variants(column string) [4]string {
	lower := strings.ToLower(column)
	spaced := strings.ReplaceAll(lower, "_", " ")
	return [4]string{
		strings.ReplaceAll(lower, "_", ""),
		stripSpaces(spaced),
		stripSpaces(lower),
		spaced,
	}
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// Distance is the Levenshtein edit distance between a and b, counted in runes.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two rows instead of the full matrix
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
