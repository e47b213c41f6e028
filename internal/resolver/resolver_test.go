package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var vocab = []string{"age", "income", "score"}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		vocab  []string
		want   string
		wantOk bool
	}{
		{"Exact", "score", vocab, "score", true},
		{"Case Insensitive", "INCOME", vocab, "income", true},
		{"Typo Within Threshold", "incme", vocab, "income", true},
		{"Stopword And Generic Noun", "the income column", vocab, "income", true},
		{"Repeated Stopwords", "set the age", vocab, "age", true},
		{"Underscore Column From Spaced Mention", "monthly income", []string{"monthly_income", "age"}, "monthly_income", true},
		{"Spaced Column From Joined Mention", "housevalue", []string{"House Value"}, "House Value", true},
		{"Gibberish", "foobar", vocab, "", false},
		{"Only Stopwords", "the", vocab, "", false},
		{"Blank", "   ", vocab, "", false},
		{"Empty Vocabulary", "age", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.raw, tt.vocab)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	first, ok1 := Resolve("scor", vocab)
	for i := 0; i < 20; i++ {
		got, ok := Resolve("scor", vocab)
		assert.Equal(t, first, got)
		assert.Equal(t, ok1, ok)
	}
}

func TestResolve_TieBreakFollowsVocabularyOrder(t *testing.T) {
	got, ok := Resolve("a", []string{"ab", "ac"})
	assert.True(t, ok)
	assert.Equal(t, "ab", got)

	got, ok = Resolve("a", []string{"ac", "ab"})
	assert.True(t, ok)
	assert.Equal(t, "ac", got)
}

func TestBest_ThresholdLaw(t *testing.T) {
	mentions := []string{"age", "incme", "scoring", "foobar", "x", "income level", "ag"}
	for _, raw := range mentions {
		m, ok := Best(raw, vocab)
		if m.Column == "" {
			continue
		}
		limit := Threshold(len([]rune(Normalize(raw))), len([]rune(m.Column)))
		assert.Equal(t, m.Distance <= limit, ok, "mention %q -> %q (d=%d, t=%d)", raw, m.Column, m.Distance, limit)
	}
}

func TestThreshold(t *testing.T) {
	assert.Equal(t, 2, Threshold(1, 1))
	assert.Equal(t, 2, Threshold(5, 5))
	assert.Equal(t, 4, Threshold(10, 3))
	assert.Equal(t, 8, Threshold(3, 20))
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, Distance("", ""))
	assert.Equal(t, 3, Distance("", "abc"))
	assert.Equal(t, 3, Distance("kitten", "sitting"))
	assert.Equal(t, 1, Distance("café", "cafe"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "income", Normalize("  The   INCOME  values "))
	assert.Equal(t, "houseage", Normalize("my house age field"))
	assert.Equal(t, "", Normalize("the a"))
}

func TestResolver_UsesVocabulary(t *testing.T) {
	r := New([]string{"price", "rooms"})
	col, ok := r.Resolve("room")
	assert.True(t, ok)
	assert.Equal(t, "rooms", col)
	assert.Equal(t, []string{"price", "rooms"}, r.Vocabulary())
}
