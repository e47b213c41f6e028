package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/quarry/internal/assembler"
	"github.com/aretw0/quarry/internal/extract"
	"github.com/aretw0/quarry/pkg/domain"
	"github.com/aretw0/quarry/pkg/ports"
)

// doneToken advances extraction phases by one step, ahead of any parsing.
const doneToken = "done"

// donePhases are the phases where the global "done" transition applies.
var donePhases = map[domain.Phase]bool{
	domain.PhaseSampleGeneration: true,
	domain.PhaseTargetVariables:  true,
	domain.PhaseQueryFeatures:    true,
	domain.PhaseUserConstraints:  true,
}

// inertPhases reject free text.
var inertPhases = map[domain.Phase]bool{
	domain.PhaseDataIngest:  true,
	domain.PhaseDropColumns: true,
	domain.PhaseAssemble:    true,
	domain.PhaseComplete:    true,
}

func (e *Engine) selectAction(ctx context.Context, s *domain.Session, action string) error {
	if s.Phase != domain.PhaseActionSelect {
		return notAccepted(s, domain.EventSelectAction)
	}
	qt, err := domain.ParseQueryType(action)
	if err != nil {
		return err
	}
	s.QueryType = qt
	e.enter(ctx, s, domain.PhaseDataIngest)
	return nil
}

func (e *Engine) ingest(ctx context.Context, s *domain.Session, in *domain.Ingestion) error {
	if s.Phase != domain.PhaseDataIngest {
		return notAccepted(s, domain.EventIngest)
	}
	if in == nil || len(in.Headers) == 0 {
		return domain.ErrNoHeaders
	}
	s.Dataset = in.Clone()
	s.Vocabulary = append([]string{}, in.Headers...)
	e.enter(ctx, s, domain.PhaseSampleGeneration)
	return nil
}

func (e *Engine) utterance(ctx context.Context, s *domain.Session, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if inertPhases[s.Phase] {
		return fmt.Errorf("%w: %s", domain.ErrInputDisabled, s.Current())
	}

	s.Transcript.Append(domain.RoleUser, text)

	if s.Phase == domain.PhaseActionSelect {
		s.Transcript.Append(domain.RoleAssistant, e.complete(ctx, s, text))
		return nil
	}

	if donePhases[s.Phase] && hasToken(text, doneToken) {
		e.advance(ctx, s)
		return nil
	}

	if s.Phase == domain.PhaseTaskType {
		e.chooseTask(ctx, s, text)
		return nil
	}

	e.extract(ctx, s, text)
	return nil
}

// advance performs the one-step "done" transition. In an overlay it returns to the
// linear phase after the one that spawned it.
func (e *Engine) advance(ctx context.Context, s *domain.Session) {
	if s.Overlay != domain.OverlayNone {
		e.enter(ctx, s, s.Overlay.ReturnPhase())
		return
	}
	e.enter(ctx, s, s.Phase.Next())
}

func (e *Engine) chooseTask(ctx context.Context, s *domain.Session, text string) {
	lower := strings.ToLower(text)
	for _, kw := range domain.TaskKeywords {
		if strings.Contains(lower, kw.Keyword) {
			s.TaskType = kw.Task
			e.enter(ctx, s, domain.PhaseAssemble)
			return
		}
	}
	s.Transcript.Append(domain.RoleAssistant, msgTaskRetry)
}

// extract runs the grammar of the current phase and merges the result into the phase accumulator.
// While an overlay is active the linear phase still names the spawning phase, so its grammar applies.
func (e *Engine) extract(ctx context.Context, s *domain.Session, text string) {
	parser := extract.New(s.Vocabulary, extract.WithLogger(e.logger))
	res := parser.Parse(text, s.Phase)
	e.emitExtraction(ctx, s, res.Columns(), res.Rejected)

	if res.Empty() {
		s.Transcript.Append(domain.RoleAssistant, rePrompt(s.Vocabulary))
		if overlay := domain.OverlayFor(s.Phase); overlay != domain.OverlayNone && s.Overlay == domain.OverlayNone {
			e.emitPhaseLeave(ctx, s)
			s.Overlay = overlay
			e.emitPhaseEnter(ctx, s)
		}
		return
	}

	frag := res.Fragment()
	switch s.Phase {
	case domain.PhaseTargetVariables:
		s.Target.Merge(frag)
	case domain.PhaseQueryFeatures:
		s.QueryFeatures.Merge(frag)
	case domain.PhaseUserConstraints:
		numeric, categorical := frag.Split()
		s.UserConstraints.Merge(numeric)
		s.FixedColumns.Merge(categorical)
	case domain.PhaseSampleGeneration:
		numeric, categorical := frag.Split()
		s.SampleConstraints.Merge(numeric)
		s.SampleFixed.Merge(categorical)
		s.UserConstraints.Merge(numeric)
		s.FixedColumns.Merge(categorical)
	}
	s.Transcript.Append(domain.RoleAssistant, echo(res, s.Vocabulary))

	switch s.Phase {
	case domain.PhaseQueryFeatures:
		e.enter(ctx, s, domain.PhaseUserConstraints)
	case domain.PhaseSampleGeneration:
		e.sample(ctx, s)
	}
}

// sample fetches example rows for the modify flow and always moves on to DropColumns.
func (e *Engine) sample(ctx context.Context, s *domain.Session) {
	if e.sampler != nil {
		path := s.Dataset.FileReference
		if path == "" {
			path = s.Dataset.SourceLabel
		}
		req := ports.SampleRequest{
			Path:            path,
			UserConstraints: s.SampleConstraints.Contract(),
			FixedColumns:    s.SampleFixed.Contract(),
		}

		started := e.now()
		samples, err := e.sampler.Sample(ctx, req)
		e.emitCollaborator(ctx, s, "sampling", e.now().Sub(started), err != nil)
		if err != nil {
			e.logger.Warn("sampling failed, continuing without samples", "session_id", s.ID, "err", err)
		} else if len(samples) > 0 {
			s.Samples = domain.CloneSamples(samples)
		}
	}
	e.enter(ctx, s, domain.PhaseDropColumns)
}

// complete asks the completion collaborator for a reply, falling back to a static apology.
func (e *Engine) complete(ctx context.Context, s *domain.Session, text string) string {
	if e.completer == nil {
		return apology(text)
	}
	started := e.now()
	reply, err := e.completer.Complete(ctx, text)
	e.emitCollaborator(ctx, s, "completion", e.now().Sub(started), err != nil)
	if err != nil {
		e.logger.Warn("completion failed", "session_id", s.ID, "err", err)
		return apology(text)
	}
	if strings.TrimSpace(reply.Message) == "" {
		return msgNoReply
	}
	return reply.Message
}

func (e *Engine) dropColumns(ctx context.Context, s *domain.Session, columns []string) error {
	if s.Phase != domain.PhaseDropColumns {
		return notAccepted(s, domain.EventDropColumns)
	}

	drop := make(map[string]bool, len(columns))
	var dropped []string
	for _, col := range columns {
		if s.HasColumn(col) && !drop[col] {
			drop[col] = true
			dropped = append(dropped, col)
		}
	}

	if len(dropped) == 0 {
		s.Transcript.Append(domain.RoleUser, msgKeepAll)
		e.enter(ctx, s, domain.PhaseTargetVariables)
		return nil
	}

	var keep []int
	remaining := make([]string, 0, len(s.Vocabulary))
	for i, col := range s.Vocabulary {
		if !drop[col] {
			keep = append(keep, i)
			remaining = append(remaining, col)
		}
	}
	for r, row := range s.Dataset.SampleRows {
		trimmed := make([]string, 0, len(keep))
		for _, i := range keep {
			if i < len(row) {
				trimmed = append(trimmed, row[i])
			}
		}
		s.Dataset.SampleRows[r] = trimmed
	}
	s.Dataset.Headers = append([]string{}, remaining...)
	s.Vocabulary = remaining
	s.DroppedColumns = dropped

	// Constraints captured during sampling must not outlive their column.
	for _, frag := range []domain.Fragment{
		s.Target, s.QueryFeatures,
		s.UserConstraints, s.FixedColumns,
		s.SampleConstraints, s.SampleFixed,
	} {
		for col := range drop {
			delete(frag, col)
		}
	}

	s.Transcript.Append(domain.RoleUser, dropMessage(dropped, remaining))
	e.enter(ctx, s, domain.PhaseTargetVariables)
	return nil
}

func (e *Engine) formEntry(ctx context.Context, s *domain.Session, entry *domain.FormEntry) error {
	if s.Phase != domain.PhaseTargetVariables && s.Phase != domain.PhaseUserConstraints {
		return notAccepted(s, domain.EventFormEntry)
	}
	if err := validateEntry(s, entry); err != nil {
		return err
	}

	c := domain.Between(*entry.Min, *entry.Max)
	minText, maxText := domain.FormatNumber(*entry.Min), domain.FormatNumber(*entry.Max)
	if s.Phase == domain.PhaseTargetVariables {
		s.Target[entry.Column] = c
		s.Transcript.Append(domain.RoleUser, fmt.Sprintf("Added target variable: %s with min=%s, max=%s.", entry.Column, minText, maxText))
		s.Transcript.Append(domain.RoleAssistant, msgMoreTargets)
	} else {
		s.UserConstraints[entry.Column] = c
		s.Transcript.Append(domain.RoleUser, fmt.Sprintf("Added constraint for %s: min=%s, max=%s.", entry.Column, minText, maxText))
		s.Transcript.Append(domain.RoleAssistant, msgMoreConstraints)
	}
	e.emitExtraction(ctx, s, []string{entry.Column}, 0)
	return nil
}

func validateEntry(s *domain.Session, entry *domain.FormEntry) error {
	if entry == nil {
		return &domain.FormEntryError{Reason: "missing entry"}
	}
	if !s.HasColumn(entry.Column) {
		return &domain.FormEntryError{Column: entry.Column, Reason: "unknown column"}
	}
	if entry.Min == nil || entry.Max == nil {
		return &domain.FormEntryError{Column: entry.Column, Reason: "min and max must both be numbers"}
	}
	if *entry.Min >= *entry.Max {
		return &domain.FormEntryError{Column: entry.Column, Reason: "min must be less than max"}
	}
	return nil
}

func (e *Engine) finish(ctx context.Context, s *domain.Session) error {
	switch {
	case s.Overlay != domain.OverlayNone:
		if msg := finishMessage(s.Overlay.Origin(), s); msg != "" {
			s.Transcript.Append(domain.RoleAssistant, msg)
		}
		e.enter(ctx, s, s.Overlay.ReturnPhase())
	case s.Phase == domain.PhaseTargetVariables, s.Phase == domain.PhaseUserConstraints:
		s.Transcript.Append(domain.RoleAssistant, finishMessage(s.Phase, s))
		e.enter(ctx, s, s.Phase.Next())
	case s.Phase == domain.PhaseQueryFeatures:
		e.enter(ctx, s, domain.PhaseUserConstraints)
	default:
		return notAccepted(s, domain.EventFinish)
	}
	return nil
}

// assemble builds the document and completes the dialogue. Re-entry rebuilds it wholesale.
func (e *Engine) assemble(ctx context.Context, s *domain.Session) {
	doc := assembler.Assemble(s)
	s.Document = &doc
	e.logger.Info("query assembled", "session_id", s.ID, "key", doc.Key)
	e.enter(ctx, s, domain.PhaseComplete)
}
