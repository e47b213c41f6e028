package runtime

import (
	"fmt"
	"strings"

	"github.com/aretw0/quarry/internal/extract"
	"github.com/aretw0/quarry/pkg/domain"
)

const (
	msgWelcome = "Hi! I can recommend settings, modify your data parameters or explore \"what if\" scenarios. " +
		"Choose recommend, modify or whatif to begin."

	promptDropColumns = "Select columns to remove from your dataset, or keep them all."
	promptTarget      = "What performance outcome are you trying to achieve?"
	promptFeatures    = "What features do you want the recommendation to be based on?"
	promptConstraints = "Do you have any extra constraints you want me to consider? If you have multiple of them, you can separate them using commas."
	promptTaskType    = "Is the task going to be a regression or classification?"

	msgTaskRetry = "I'm sorry, I didn't understand your response. Please try again."
	msgKeepAll   = "Keeping all columns. No columns were dropped."
	msgComplete  = "Your query is ready."

	msgFoundHeader = "I found the following constraints in your message:\n\n"
	msgFoundFooter = "\nPlease say done if you are done setting what you are trying to achieve."

	msgMoreTargets     = "You can add more targets or click \"Finish\" to proceed."
	msgMoreConstraints = "You can add more constraints or click \"Finish\" to proceed."

	msgNoReply         = "Sorry, I could not generate a response."
	msgApologyGreeting = "Hello! I'm having trouble connecting to my AI service, but I can still help with basic questions."
	msgApology         = "I'm sorry, I'm having trouble connecting to my AI service right now. Please try again later."
)

func greeting(qt domain.QueryType) string {
	switch qt {
	case domain.QueryRecommend:
		return "I'm ready to provide recommendations based on your data. Please upload a CSV file to get started."
	case domain.QueryModify:
		return "I'm here to help you modify your data parameters and constraints. Please upload a CSV file to begin."
	case domain.QueryWhatIf:
		return "I'm ready to explore \"what if\" scenarios with your data. Please upload a CSV file to start analyzing different possibilities."
	}
	return "Please upload a CSV file to get started."
}

// echo describes an extraction, one line per resolved column in vocabulary order.
func echo(res extract.Result, vocabulary []string) string {
	frag := res.Fragment()
	var b strings.Builder
	b.WriteString(msgFoundHeader)
	for _, col := range frag.Columns(vocabulary) {
		fmt.Fprintf(&b, "• %s: %s\n", col, frag[col].Describe())
	}
	b.WriteString(msgFoundFooter)
	return b.String()
}

// rePrompt asks for constraints again, naming two real columns as examples.
func rePrompt(vocabulary []string) string {
	first, second := "", ""
	if len(vocabulary) > 0 {
		first, second = vocabulary[0], vocabulary[0]
	}
	if len(vocabulary) > 1 {
		second = vocabulary[1]
	}
	return fmt.Sprintf("I couldn't find any specific constraints in your message. "+
		"Could you please specify which columns you'd like to set constraints for? "+
		"For example: '%s between 10 and 100' or '%s greater than 18'", first, second)
}

func dropMessage(dropped, remaining []string) string {
	return fmt.Sprintf("Dropped %d columns: %s. Remaining columns: %s.",
		len(dropped), strings.Join(dropped, ", "), strings.Join(remaining, ", "))
}

func finishMessage(p domain.Phase, s *domain.Session) string {
	switch p {
	case domain.PhaseTargetVariables:
		return fmt.Sprintf("Perfect! You've set %d target variables.", len(s.Target))
	case domain.PhaseUserConstraints:
		return fmt.Sprintf("Great! You've set %d constraints.", len(s.UserConstraints))
	}
	return ""
}

// apology is the static fallback reply when the completion service is unavailable.
func apology(text string) string {
	for _, w := range words(text) {
		if w == "hello" || w == "hi" || w == "hey" {
			return msgApologyGreeting
		}
	}
	return msgApology
}

// words splits text into lowercase letter runs.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !(r >= 0x80)
	})
}

// hasToken reports whether token appears as a whole word in text.
func hasToken(text, token string) bool {
	for _, w := range words(text) {
		if w == token {
			return true
		}
	}
	return false
}
