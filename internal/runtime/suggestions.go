package runtime

import "github.com/aretw0/quarry/pkg/domain"

// Suggestions returns quick-reply texts for the active phase, built from the vocabulary.
func (e *Engine) Suggestions(s *domain.Session) []string {
	cols := s.Vocabulary
	switch s.Phase {
	case domain.PhaseActionSelect:
		return []string{
			"Can you help me analyze this data?",
			"What insights can you provide?",
			"Can you suggest improvements?",
		}
	case domain.PhaseTargetVariables:
		if len(cols) < 2 {
			return nil
		}
		a, b := cols[len(cols)-2], cols[len(cols)-1]
		return []string{
			"Maximize " + a,
			"Minimize " + b,
			"Set " + b + " between 10 and 100",
		}
	case domain.PhaseQueryFeatures:
		if len(cols) < 4 {
			return nil
		}
		return []string{
			"Recommend on " + cols[2],
			"Recommend on " + cols[3],
			"Recommend on " + cols[2] + " and " + cols[3],
		}
	case domain.PhaseUserConstraints, domain.PhaseSampleGeneration:
		if len(cols) < 4 {
			return nil
		}
		return []string{
			"I want " + cols[2] + " between 10 and 100",
			"I want " + cols[3] + " to be 50",
			"I want " + cols[2] + " less than 80",
		}
	case domain.PhaseTaskType:
		return []string{"Regression", "Classification"}
	}
	return nil
}
