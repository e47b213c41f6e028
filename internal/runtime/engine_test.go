package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/quarry/internal/runtime"
	"github.com/aretw0/quarry/pkg/domain"
	"github.com/aretw0/quarry/pkg/ports"
)

var headers = []string{"age", "income", "score"}

type fakeSampler struct {
	calls   int
	last    ports.SampleRequest
	samples []any
	err     error
}

func (f *fakeSampler) Sample(ctx context.Context, req ports.SampleRequest) ([]any, error) {
	f.calls++
	f.last = req
	return f.samples, f.err
}

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, message string) (ports.Completion, error) {
	return ports.Completion{Message: f.reply}, f.err
}

func dispatch(t *testing.T, eng *runtime.Engine, s *domain.Session, ev domain.Event) *domain.Session {
	t.Helper()
	next, err := eng.Dispatch(context.Background(), s, ev)
	require.NoError(t, err)
	return next
}

// startAt walks a session up to the first phase after ingestion.
func startAt(t *testing.T, eng *runtime.Engine, qt domain.QueryType, cols []string) *domain.Session {
	t.Helper()
	s, err := eng.Start(context.Background(), "sess-1")
	require.NoError(t, err)
	s = dispatch(t, eng, s, domain.SelectAction(qt))
	return dispatch(t, eng, s, domain.Ingest(domain.Ingestion{
		SourceLabel:   "housing",
		FileReference: "/data/housing.csv",
		Headers:       cols,
		SampleRows:    [][]string{{"30", "1000", "7"}},
	}))
}

// atTargets returns a recommend session waiting in TargetVariables.
func atTargets(t *testing.T, eng *runtime.Engine) *domain.Session {
	t.Helper()
	s := startAt(t, eng, domain.QueryRecommend, headers)
	require.Equal(t, domain.PhaseDropColumns, s.Phase)
	return dispatch(t, eng, s, domain.DropColumns())
}

func lastMessage(s *domain.Session) domain.Message {
	m, _ := s.Transcript.Last()
	return m
}

func TestEngine_RecommendFlow(t *testing.T) {
	eng := runtime.NewEngine()
	s := atTargets(t, eng)
	assert.Equal(t, domain.PhaseTargetVariables, s.Phase)
	assert.Equal(t, "What performance outcome are you trying to achieve?", lastMessage(s).Content)

	s = dispatch(t, eng, s, domain.Utterance("Maximize score"))
	assert.Equal(t, domain.Fragment{"score": domain.DirectiveConstraint(domain.Maximize)}, s.Target)
	assert.Contains(t, lastMessage(s).Content, "• score: maximize")

	s = dispatch(t, eng, s, domain.Finish())
	assert.Equal(t, domain.PhaseQueryFeatures, s.Phase)

	s = dispatch(t, eng, s, domain.Utterance("Recommend on age and score"))
	assert.Equal(t, domain.Fragment{"age": domain.Flag(), "score": domain.Flag()}, s.QueryFeatures)
	assert.Equal(t, domain.PhaseUserConstraints, s.Phase, "features move on as soon as they are set")

	s = dispatch(t, eng, s, domain.Utterance("I want income less than 80"))
	assert.Equal(t, domain.Fragment{"income": domain.AtMost(80)}, s.UserConstraints)

	s = dispatch(t, eng, s, domain.Finish())
	assert.Equal(t, domain.PhaseTaskType, s.Phase)
	assert.Equal(t, "Is the task going to be a regression or classification?", lastMessage(s).Content)

	s = dispatch(t, eng, s, domain.Utterance("Regression please"))
	assert.Equal(t, domain.PhaseComplete, s.Phase)
	assert.True(t, s.Completed())
	require.NotNil(t, s.Document)
	assert.Equal(t, "housing_recommend", s.Document.Key)
	assert.Equal(t, domain.TaskRegression, s.Document.TaskType)
	assert.Equal(t, "maximize", s.Document.Target["score"])
	assert.Equal(t, true, s.Document.QueryFeatures["age"])
	assert.Contains(t, s.History, domain.PhaseAssemble)
}

func TestEngine_SetRange(t *testing.T) {
	eng := runtime.NewEngine()
	s := dispatch(t, eng, atTargets(t, eng), domain.Utterance("Set income between 10 and 100"))
	assert.Equal(t, domain.Fragment{"income": domain.Between(10, 100)}, s.Target)
	assert.Contains(t, lastMessage(s).Content, "• income: between 10 and 100")
}

func TestEngine_EmptyExtractionEntersOverlay(t *testing.T) {
	eng := runtime.NewEngine()
	s := dispatch(t, eng, atTargets(t, eng), domain.Utterance("foobar"))

	assert.Equal(t, domain.OverlayTargetForm, s.Overlay)
	assert.Equal(t, domain.PhaseTargetVariables, s.Phase)
	assert.Equal(t, "awaiting_target_form", s.Current())
	reprompt := lastMessage(s).Content
	assert.Contains(t, reprompt, "'age between 10 and 100'")
	assert.Contains(t, reprompt, "'income greater than 18'")

	// Free text inside the overlay uses the spawning grammar; the overlay stays.
	s = dispatch(t, eng, s, domain.Utterance("maximize score"))
	assert.Equal(t, domain.OverlayTargetForm, s.Overlay)
	assert.Contains(t, s.Target, "score")

	s = dispatch(t, eng, s, domain.SubmitForm("income", 1, 5))
	assert.Equal(t, domain.Between(1, 5), s.Target["income"])

	s = dispatch(t, eng, s, domain.Finish())
	assert.Equal(t, domain.OverlayNone, s.Overlay)
	assert.Equal(t, domain.PhaseQueryFeatures, s.Phase, "overlay resolves to the next linear phase")
}

func TestEngine_ConstraintOverlayReturnsToTaskType(t *testing.T) {
	eng := runtime.NewEngine()
	s := dispatch(t, eng, atTargets(t, eng), domain.Finish())
	s = dispatch(t, eng, s, domain.Finish())
	require.Equal(t, domain.PhaseUserConstraints, s.Phase)

	s = dispatch(t, eng, s, domain.Utterance("nothing useful"))
	assert.Equal(t, domain.OverlayConstraintForm, s.Overlay)

	s = dispatch(t, eng, s, domain.Utterance("ok I'm done"))
	assert.Equal(t, domain.PhaseTaskType, s.Phase)
	assert.Equal(t, domain.OverlayNone, s.Overlay)
}

func TestEngine_DoneAdvancesOneStep(t *testing.T) {
	eng := runtime.NewEngine()
	s := dispatch(t, eng, atTargets(t, eng), domain.Finish())
	require.Equal(t, domain.PhaseQueryFeatures, s.Phase)

	s = dispatch(t, eng, s, domain.Utterance("let's get this done"))
	assert.Equal(t, domain.PhaseUserConstraints, s.Phase)
	assert.Empty(t, s.QueryFeatures, "grammar must not run on a done utterance")
}

func TestEngine_DoneIgnoredInTaskType(t *testing.T) {
	eng := runtime.NewEngine()
	s := dispatch(t, eng, atTargets(t, eng), domain.Finish())
	s = dispatch(t, eng, s, domain.Finish())
	s = dispatch(t, eng, s, domain.Finish())
	require.Equal(t, domain.PhaseTaskType, s.Phase)

	s = dispatch(t, eng, s, domain.Utterance("done"))
	assert.Equal(t, domain.PhaseTaskType, s.Phase)
	assert.Equal(t, "I'm sorry, I didn't understand your response. Please try again.", lastMessage(s).Content)

	s = dispatch(t, eng, s, domain.Utterance("Classification"))
	assert.Equal(t, domain.TaskClassification, s.TaskType)
	assert.Equal(t, domain.PhaseComplete, s.Phase)
}

func TestEngine_InputDisabled(t *testing.T) {
	eng := runtime.NewEngine()
	s := startAt(t, eng, domain.QueryRecommend, headers)
	require.Equal(t, domain.PhaseDropColumns, s.Phase)

	before := len(s.Transcript)
	_, err := eng.Dispatch(context.Background(), s, domain.Utterance("maximize score"))
	assert.ErrorIs(t, err, domain.ErrInputDisabled)
	assert.Len(t, s.Transcript, before, "rejected input must not touch the session")
}

func TestEngine_ModifyFlowSamples(t *testing.T) {
	sampler := &fakeSampler{samples: []any{map[string]any{"age": 31.0}}}
	eng := runtime.NewEngine(runtime.WithSampler(sampler))

	s := startAt(t, eng, domain.QueryModify, headers)
	require.Equal(t, domain.PhaseSampleGeneration, s.Phase)
	assert.Equal(t, 0, sampler.calls, "no request before any constraint is known")

	s = dispatch(t, eng, s, domain.Utterance("I want age above 30 and income == 'high'"))
	assert.Equal(t, 1, sampler.calls)
	assert.Equal(t, "/data/housing.csv", sampler.last.Path)
	assert.Equal(t, map[string]any{"age": domain.AtLeast(30).Contract()}, sampler.last.UserConstraints)
	assert.Equal(t, map[string]any{"income": "high"}, sampler.last.FixedColumns)

	assert.Equal(t, domain.PhaseDropColumns, s.Phase)
	assert.Len(t, s.Samples, 1)
	assert.Contains(t, s.UserConstraints, "age")
	assert.Contains(t, s.FixedColumns, "income")
}

func TestEngine_DropColumnsPrunesSampledConstraints(t *testing.T) {
	sampler := &fakeSampler{samples: []any{map[string]any{"age": 31.0}}}
	eng := runtime.NewEngine(runtime.WithSampler(sampler))

	s := startAt(t, eng, domain.QueryModify, headers)
	s = dispatch(t, eng, s, domain.Utterance("I want age above 30 and income == 'high'"))
	require.Equal(t, domain.PhaseDropColumns, s.Phase)

	s = dispatch(t, eng, s, domain.DropColumns("income"))
	assert.NotContains(t, s.FixedColumns, "income")
	assert.NotContains(t, s.SampleFixed, "income")
	assert.Contains(t, s.UserConstraints, "age")

	s = dispatch(t, eng, s, domain.Utterance("maximize score"))
	for s.Phase != domain.PhaseTaskType {
		s = dispatch(t, eng, s, domain.Finish())
	}
	s = dispatch(t, eng, s, domain.Utterance("regression"))
	require.NotNil(t, s.Document)
	assert.Equal(t, []string{"income"}, s.Document.DroppedColumns)
	assert.NotContains(t, s.Document.FixedColumns, "income")
	assert.Contains(t, s.Document.UserConstraints, "age")
}

func TestEngine_SamplingFailsOpen(t *testing.T) {
	sampler := &fakeSampler{err: errors.New("connection refused")}
	eng := runtime.NewEngine(runtime.WithSampler(sampler))

	s := startAt(t, eng, domain.QueryModify, headers)
	s = dispatch(t, eng, s, domain.Utterance("age below 50"))
	assert.Equal(t, domain.PhaseDropColumns, s.Phase)
	assert.Empty(t, s.Samples)
}

func TestEngine_WhatIfSkipsSampling(t *testing.T) {
	sampler := &fakeSampler{}
	eng := runtime.NewEngine(runtime.WithSampler(sampler))

	s := startAt(t, eng, domain.QueryWhatIf, headers)
	assert.Equal(t, domain.PhaseDropColumns, s.Phase)
	assert.Contains(t, s.History, domain.PhaseSampleGeneration)
	assert.Equal(t, 0, sampler.calls)
}

func TestEngine_DropColumns(t *testing.T) {
	eng := runtime.NewEngine()
	s := startAt(t, eng, domain.QueryRecommend, headers)

	s = dispatch(t, eng, s, domain.DropColumns("income", "unknown"))
	assert.Equal(t, []string{"age", "score"}, s.Vocabulary)
	assert.Equal(t, []string{"income"}, s.DroppedColumns)
	assert.Equal(t, [][]string{{"30", "7"}}, s.Dataset.SampleRows)
	assert.Equal(t, domain.PhaseTargetVariables, s.Phase)

	var found bool
	for _, m := range s.Transcript {
		if m.Content == "Dropped 1 columns: income. Remaining columns: age, score." {
			found = true
		}
	}
	assert.True(t, found, "drop summary should be recorded")
}

func TestEngine_FormEntryValidation(t *testing.T) {
	eng := runtime.NewEngine()
	s := atTargets(t, eng)

	cases := []domain.Event{
		domain.SubmitForm("weather", 1, 2),
		domain.SubmitForm("age", 5, 5),
		{Type: domain.EventFormEntry, Entry: &domain.FormEntry{Column: "age"}},
		{Type: domain.EventFormEntry},
	}
	for _, ev := range cases {
		_, err := eng.Dispatch(context.Background(), s, ev)
		var formErr *domain.FormEntryError
		assert.True(t, errors.As(err, &formErr), "expected FormEntryError, got %v", err)
	}

	s = dispatch(t, eng, s, domain.SubmitForm("age", 18, 65))
	assert.Equal(t, domain.Between(18, 65), s.Target["age"])
	assert.Equal(t, "You can add more targets or click \"Finish\" to proceed.", lastMessage(s).Content)
}

func TestEngine_ActionSelectFallsBackToCompletion(t *testing.T) {
	eng := runtime.NewEngine(runtime.WithCompleter(&fakeCompleter{reply: "Sure, pick an action."}))
	s, err := eng.Start(context.Background(), "sess-1")
	require.NoError(t, err)

	s = dispatch(t, eng, s, domain.Utterance("what can you do?"))
	assert.Equal(t, "Sure, pick an action.", lastMessage(s).Content)
	assert.Equal(t, domain.PhaseActionSelect, s.Phase)

	failing := runtime.NewEngine(runtime.WithCompleter(&fakeCompleter{err: errors.New("boom")}))
	s = dispatch(t, failing, s, domain.Utterance("hi there"))
	assert.Contains(t, lastMessage(s).Content, "Hello!")
	s = dispatch(t, failing, s, domain.Utterance("this is broken"))
	assert.Contains(t, lastMessage(s).Content, "I'm sorry")
}

func TestEngine_Errors(t *testing.T) {
	eng := runtime.NewEngine()
	ctx := context.Background()
	s, err := eng.Start(ctx, "sess-1")
	require.NoError(t, err)

	_, err = eng.Dispatch(ctx, s, domain.Event{Type: "jump"})
	assert.ErrorIs(t, err, domain.ErrUnknownEvent)

	_, err = eng.Dispatch(ctx, s, domain.Finish())
	assert.ErrorIs(t, err, domain.ErrUnknownEvent)

	_, err = eng.Dispatch(ctx, s, domain.Event{Type: domain.EventSelectAction, Action: "predict"})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	s = dispatch(t, eng, s, domain.SelectAction(domain.QueryRecommend))
	_, err = eng.Dispatch(ctx, s, domain.Ingest(domain.Ingestion{SourceLabel: "empty"}))
	assert.ErrorIs(t, err, domain.ErrNoHeaders)

	_, err = eng.Start(ctx, "")
	assert.Error(t, err)
}

func TestEngine_Idempotence(t *testing.T) {
	eng := runtime.NewEngine()
	s := dispatch(t, eng, atTargets(t, eng), domain.Finish())
	s = dispatch(t, eng, s, domain.Finish())

	once := dispatch(t, eng, s, domain.Utterance("age between 20 and 30, income above 5"))
	twice := dispatch(t, eng, once, domain.Utterance("age between 20 and 30, income above 5"))
	assert.Equal(t, once.UserConstraints, twice.UserConstraints)
	assert.Len(t, twice.Transcript, len(once.Transcript)+2)
}

func TestEngine_DispatchDoesNotMutateInput(t *testing.T) {
	eng := runtime.NewEngine()
	s := atTargets(t, eng)
	turns := len(s.Transcript)

	next := dispatch(t, eng, s, domain.Utterance("Maximize score"))
	assert.Empty(t, s.Target)
	assert.Len(t, s.Transcript, turns)
	assert.Len(t, next.Target, 1)
}

func TestEngine_LifecycleHooks(t *testing.T) {
	var entered, left []domain.Phase
	var extractions int
	hooks := domain.LifecycleHooks{
		OnPhaseEnter: func(ctx context.Context, e *domain.PhaseEvent) {
			entered = append(entered, e.Phase)
		},
		OnPhaseLeave: func(ctx context.Context, e *domain.PhaseEvent) {
			left = append(left, e.Phase)
		},
		OnExtraction: func(ctx context.Context, e *domain.ExtractionEvent) {
			extractions++
		},
	}
	eng := runtime.NewEngine(runtime.WithLifecycleHooks(hooks))
	s := atTargets(t, eng)
	_ = dispatch(t, eng, s, domain.Utterance("Maximize score"))

	assert.Equal(t, []domain.Phase{
		domain.PhaseActionSelect,
		domain.PhaseDataIngest,
		domain.PhaseSampleGeneration,
		domain.PhaseDropColumns,
		domain.PhaseTargetVariables,
	}, entered)
	assert.Equal(t, []domain.Phase{
		domain.PhaseActionSelect,
		domain.PhaseDataIngest,
		domain.PhaseSampleGeneration,
		domain.PhaseDropColumns,
	}, left)
	assert.Equal(t, 1, extractions)
}

func TestEngine_ResumeClearsOverlay(t *testing.T) {
	eng := runtime.NewEngine()
	s := dispatch(t, eng, atTargets(t, eng), domain.Utterance("foobar"))
	require.Equal(t, domain.OverlayTargetForm, s.Overlay)

	resumed := eng.Resume(s)
	assert.Equal(t, domain.OverlayNone, resumed.Overlay)
	assert.Equal(t, domain.PhaseTargetVariables, resumed.Phase)
	assert.Equal(t, domain.OverlayTargetForm, s.Overlay)
}

func TestEngine_Suggestions(t *testing.T) {
	eng := runtime.NewEngine()
	s := startAt(t, eng, domain.QueryRecommend, []string{"a", "b", "c", "d", "e"})
	s = dispatch(t, eng, s, domain.DropColumns())

	assert.Equal(t, []string{"Maximize d", "Minimize e", "Set e between 10 and 100"}, eng.Suggestions(s))

	s = dispatch(t, eng, s, domain.Finish())
	assert.Equal(t, "Recommend on c and d", eng.Suggestions(s)[2])
}
