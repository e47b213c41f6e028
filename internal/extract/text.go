package extract

import (
	"regexp"
	"strings"
)

// input pairs the utterance with an ASCII-lowercased copy.
// Both share byte offsets, so spans found in lower can be cut from raw.
type input struct {
	raw   string
	lower string
}

func newInput(s string) input {
	return input{raw: s, lower: asciiLower(s)}
}

func (in input) slice(start, end int) input {
	return input{raw: in.raw[start:end], lower: in.lower[start:end]}
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// isWordByte treats every non-ASCII byte as part of a word.
func isWordByte(b byte) bool {
	return b >= 0x80 || b == '_' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func atWordBoundary(s string, start, end int) bool {
	return (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end]))
}

// indexWord returns the offset of the first whole-word occurrence of word in s at or after from.
func indexWord(s, word string, from int) int {
	for from < len(s) {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return -1
		}
		i += from
		if atWordBoundary(s, i, i+len(word)) {
			return i
		}
		from = i + 1
	}
	return -1
}

// indexAnyWord returns the earliest whole-word occurrence of any of words at or after from.
func indexAnyWord(s string, from int, words ...string) int {
	best := -1
	for _, w := range words {
		if i := indexWord(s, w, from); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

// skipWord returns the offset after word when s[at:] starts with it (after spaces), else at.
func skipWord(s string, at int, word string) int {
	i := skipSpaces(s, at)
	if strings.HasPrefix(s[i:], word) && atWordBoundary(s, i, i+len(word)) {
		return i + len(word)
	}
	return at
}

func skipSpaces(s string, at int) int {
	for at < len(s) && isSpace(s[at]) {
		at++
	}
	return at
}

var (
	listSep      = regexp.MustCompile(`,|\band\b`)
	sentenceStop = regexp.MustCompile(`[.;!?](\s|$)`)
	betweenAnd   = regexp.MustCompile(`between\s+[-+]?\d+(?:\.\d+)?\s+(and)\s+[-+]?\.?\d`)
)

// splitList splits a feature list on commas and the word "and", dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range listSep.Split(s, -1) {
		part = strings.Trim(strings.TrimSpace(part), ".;:!?")
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// listEnd bounds a feature list starting at from: the earliest of a stop keyword,
// sentence punctuation, or the end of s.
func listEnd(s string, from int, stops ...string) int {
	end := len(s)
	if i := indexAnyWord(s, from, stops...); i >= 0 {
		end = i
	}
	if loc := sentenceStop.FindStringIndex(s[from:]); loc != nil && from+loc[0] < end {
		end = from + loc[0]
	}
	return end
}

// quotedSpans finds quoted regions. A quote only opens at the start of the text or after
// whitespace or '=', so apostrophes inside words are ignored.
func quotedSpans(s string) [][2]int {
	var spans [][2]int
	for i := 0; i < len(s); i++ {
		q := s[i]
		if q != '"' && q != '\'' {
			continue
		}
		if i > 0 && !isSpace(s[i-1]) && s[i-1] != '=' {
			continue
		}
		closing := strings.IndexByte(s[i+1:], q)
		if closing < 0 {
			break
		}
		end := i + 1 + closing + 1
		spans = append(spans, [2]int{i, end})
		i = end - 1
	}
	return spans
}

func inSpans(pos int, spans [][2]int) bool {
	for _, sp := range spans {
		if pos >= sp[0] && pos < sp[1] {
			return true
		}
	}
	return false
}

// splitClauses cuts the input on commas and the word "and". The "and" of a numeric
// "between A and B" and anything inside quotes never splits.
func splitClauses(in input) []input {
	quoted := quotedSpans(in.lower)
	protected := map[int]bool{}
	for _, m := range betweenAnd.FindAllStringSubmatchIndex(in.lower, -1) {
		protected[m[2]] = true
	}

	var clauses []input
	start := 0
	for _, loc := range listSep.FindAllStringIndex(in.lower, -1) {
		if protected[loc[0]] || inSpans(loc[0], quoted) {
			continue
		}
		clauses = appendClause(clauses, in, start, loc[0])
		start = loc[1]
	}
	return appendClause(clauses, in, start, len(in.raw))
}

func appendClause(clauses []input, in input, start, end int) []input {
	cl := in.slice(start, end)
	if strings.TrimSpace(cl.raw) == "" {
		return clauses
	}
	return append(clauses, cl)
}
