package usecase

import (
	"fmt"
	"strings"

	"FinFuse/internal/domain/models"
)

// composeAnswer renders the final answer from the successful steps of the
// current turn. Composition is deterministic: every numeric claim in the
// text is read straight out of a tool result, and each successful step
// becomes one citation. With no successful steps the answer says so
// instead of guessing.
func composeAnswer(query string, steps []models.ToolStep, budgetExhausted bool) models.Answer {
	var lines []string
	var citations []models.Citation

	for _, step := range steps {
		if step.Result.Failed() {
			continue
		}
		citations = append(citations, models.Citation{
			Tool:          step.Call.Tool,
			Args:          step.Call.Args,
			ResultSummary: step.Result.Summary,
		})
		switch step.Call.Tool {
		case models.ToolPriceRange:
			lines = append(lines, "Price history: "+step.Result.Summary)
		case models.ToolNewsSimilarity:
			lines = append(lines, "Related coverage: "+step.Result.Summary)
		case models.ToolComputeIndicator:
			lines = append(lines, "Indicator: "+step.Result.Summary)
		default:
			lines = append(lines, step.Result.Summary)
		}
	}

	if len(citations) == 0 {
		text := fmt.Sprintf("I could not retrieve enough data to answer %q.", query)
		if failures := failureSummary(steps); failures != "" {
			text += " " + failures
		}
		return models.Answer{
			Text:            text,
			Citations:       []models.Citation{},
			BudgetExhausted: budgetExhausted,
			Insufficient:    true,
		}
	}

	text := strings.Join(lines, " ")
	if budgetExhausted {
		text += " (Best-effort answer: the tool-call budget for this turn was reached.)"
	}
	return models.Answer{
		Text:            text,
		Citations:       citations,
		BudgetExhausted: budgetExhausted,
	}
}

func failureSummary(steps []models.ToolStep) string {
	var reasons []string
	for _, step := range steps {
		if step.Result.Failed() {
			reasons = append(reasons, fmt.Sprintf("%s: %s", step.Call.Tool, step.Result.Err))
		}
	}
	if len(reasons) == 0 {
		return ""
	}
	return "Attempted lookups failed (" + strings.Join(reasons, "; ") + ")."
}
