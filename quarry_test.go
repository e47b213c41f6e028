package quarry_test

import (
	"context"
	"testing"

	"github.com/aretw0/quarry"
	"github.com/aretw0/quarry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func housing() domain.Ingestion {
	return domain.Ingestion{
		Headers:       []string{"house_age", "income", "rooms", "price"},
		SampleRows:    [][]string{{"30", "1000", "3", "250000"}},
		SourceLabel:   "housing",
		FileReference: "/data/housing.csv",
	}
}

func TestEngine_RecommendFlow(t *testing.T) {
	ctx := context.Background()
	eng := quarry.New()

	s, err := eng.Start(ctx, "facade-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseActionSelect, s.Phase)

	for _, ev := range []domain.Event{
		domain.SelectAction(domain.QueryRecommend),
		domain.Ingest(housing()),
		domain.DropColumns(),
		domain.Utterance("maximize income"),
		domain.Finish(),
		domain.Utterance("recommend on house age"),
		domain.Utterance("rooms between 2 and 4"),
		domain.Finish(),
		domain.Utterance("regression please"),
	} {
		s, err = eng.Dispatch(ctx, s, ev)
		require.NoError(t, err, "event %s", ev.Type)
	}

	require.Equal(t, domain.PhaseComplete, s.Phase)
	require.NotNil(t, s.Document)
	assert.Equal(t, "housing_recommend", s.Document.Key)
	assert.Equal(t, "maximize", s.Document.Target["income"])
	assert.Equal(t, true, s.Document.QueryFeatures["house_age"])
	assert.Equal(t, domain.Between(2, 4).Contract(), s.Document.UserConstraints["rooms"])

	rebuilt := quarry.Query(s)
	assert.Equal(t, s.Document.Key, rebuilt.Key)
}

func TestEngine_ImplementsResume(t *testing.T) {
	eng := quarry.New()
	s := domain.NewSession("facade-2", false)
	s.Enter(domain.PhaseUserConstraints)
	s.Overlay = domain.OverlayConstraintForm

	resumed := eng.Resume(s)
	assert.Equal(t, domain.OverlayNone, resumed.Overlay)
	assert.Equal(t, domain.OverlayConstraintForm, s.Overlay)
}

func TestResolveFeature(t *testing.T) {
	vocab := []string{"house_age", "median_income"}

	col, ok := quarry.ResolveFeature("the house age", vocab)
	require.True(t, ok)
	assert.Equal(t, "house_age", col)

	_, ok = quarry.ResolveFeature("temperature", vocab)
	assert.False(t, ok)
}

func TestExtract(t *testing.T) {
	frag := quarry.Extract("age above 30 and income == 'high'", domain.PhaseUserConstraints, []string{"age", "income"})
	assert.Equal(t, domain.AtLeast(30), frag["age"])
	assert.Equal(t, domain.ExactText("high"), frag["income"])
}
