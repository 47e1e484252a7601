package usecase

import (
	"testing"
	"time"

	"FinFuse/internal/domain/models"
)

func fixedNow() time.Time {
	return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
}

func drainPlan(s Selector, query string) []models.ToolCall {
	var steps []models.ToolStep
	var calls []models.ToolCall
	for {
		call, ok := s.Next(query, steps)
		if !ok {
			return calls
		}
		calls = append(calls, call)
		steps = append(steps, models.ToolStep{Call: call, Result: models.ToolResult{Summary: "ok"}})
	}
}

func TestHeuristicSelectorPriceIntent(t *testing.T) {
	s := NewHeuristicSelector(testInstruments, WithClock(fixedNow))
	calls := drainPlan(s, "How did Apple stock perform over the last 7 days?")
	if len(calls) != 1 {
		t.Fatalf("calls=%d want 1", len(calls))
	}
	if calls[0].Tool != models.ToolPriceRange {
		t.Fatalf("tool=%s want price_range", calls[0].Tool)
	}
	if calls[0].Args["instrument"] != "AAPL" {
		t.Fatalf("instrument=%v want AAPL", calls[0].Args["instrument"])
	}
	from, _ := time.Parse(time.RFC3339, calls[0].Args["from"].(string))
	if want := fixedNow().Add(-7 * 24 * time.Hour); !from.Equal(want) {
		t.Fatalf("from=%v want %v", from, want)
	}
}

func TestHeuristicSelectorNewsIntent(t *testing.T) {
	s := NewHeuristicSelector(testInstruments, WithClock(fixedNow))
	calls := drainPlan(s, "Why is there so much negative news about Microsoft?")
	var sawNews bool
	for _, c := range calls {
		if c.Tool == models.ToolNewsSimilarity {
			sawNews = true
			if c.Args["instrument"] != "MSFT" {
				t.Fatalf("news instrument=%v want MSFT", c.Args["instrument"])
			}
		}
	}
	if !sawNews {
		t.Fatalf("plan %v missing news_similarity", calls)
	}
}

func TestHeuristicSelectorIndicatorIntent(t *testing.T) {
	s := NewHeuristicSelector(testInstruments, WithClock(fixedNow))
	calls := drainPlan(s, "What is the RSI for AAPL over the last 30 days?")
	var sawIndicator bool
	for _, c := range calls {
		if c.Tool == models.ToolComputeIndicator {
			sawIndicator = true
			if c.Args["indicator"] != "rsi" {
				t.Fatalf("indicator=%v want rsi", c.Args["indicator"])
			}
		}
	}
	if !sawIndicator {
		t.Fatalf("plan %v missing compute_indicator", calls)
	}
}

func TestHeuristicSelectorFallsBackToNews(t *testing.T) {
	s := NewHeuristicSelector(testInstruments, WithClock(fixedNow))
	calls := drainPlan(s, "anything interesting lately?")
	if len(calls) != 1 || calls[0].Tool != models.ToolNewsSimilarity {
		t.Fatalf("plan=%v want a single news_similarity fallback", calls)
	}
	if _, hasInstrument := calls[0].Args["instrument"]; hasInstrument {
		t.Fatalf("fallback should not carry an instrument filter")
	}
}

func TestHeuristicSelectorResumesPlanAfterRetry(t *testing.T) {
	s := NewHeuristicSelector(testInstruments, WithClock(fixedNow))
	query := "How did Apple stock perform and what does the news say?"

	first, ok := s.Next(query, nil)
	if !ok || first.Tool != models.ToolPriceRange {
		t.Fatalf("first call=%v ok=%v want price_range", first.Tool, ok)
	}

	// a failed call plus its corrected retry occupy one plan slot
	steps := []models.ToolStep{
		{Call: first, Result: models.ToolResult{Err: "no bars for AAPL in range"}},
		{Call: first, Result: models.ToolResult{Summary: "ok"}, Retried: true},
	}
	next, ok := s.Next(query, steps)
	if !ok {
		t.Fatalf("plan ended early after a retried step")
	}
	if next.Tool != models.ToolNewsSimilarity {
		t.Fatalf("tool=%s want news_similarity", next.Tool)
	}
}

func TestMatchIndicatorIsDeterministic(t *testing.T) {
	cases := []struct {
		q    string
		want string
	}{
		{"average volatility for aapl", "volatility"},
		{"20 day moving average", "sma"},
		{"average close", "sma"},
		{"how volatile is msft", "volatility"},
		{"no indicator here", ""},
	}
	for _, tc := range cases {
		for i := 0; i < 20; i++ {
			if got := matchIndicator(tc.q); got != tc.want {
				t.Fatalf("matchIndicator(%q)=%q want %q", tc.q, got, tc.want)
			}
		}
	}
}

func TestHeuristicSelectorCorrect(t *testing.T) {
	s := NewHeuristicSelector(testInstruments, WithClock(fixedNow))

	call := models.ToolCall{Tool: models.ToolPriceRange, Args: map[string]any{
		"instrument": "AAPL",
		"from":       "2024-01-03T00:00:00Z",
		"to":         "2024-01-10T00:00:00Z",
	}}
	fixed, ok := s.Correct(call, "no bars for AAPL in range")
	if !ok {
		t.Fatalf("expected a corrected call")
	}
	from, _ := time.Parse(time.RFC3339, fixed.Args["from"].(string))
	if want := time.Date(2023, 12, 27, 0, 0, 0, 0, time.UTC); !from.Equal(want) {
		t.Fatalf("widened from=%v want %v", from, want)
	}
	// original call untouched
	if call.Args["from"] != "2024-01-03T00:00:00Z" {
		t.Fatalf("original call mutated")
	}

	ind := models.ToolCall{Tool: models.ToolComputeIndicator, Args: map[string]any{"window": 14}}
	fixed, ok = s.Correct(ind, "need 15 closes, have 4")
	if !ok || fixed.Args["window"] != 7 {
		t.Fatalf("window correction=%v ok=%v want 7", fixed.Args["window"], ok)
	}

	if _, ok := s.Correct(call, "some other failure"); ok {
		t.Fatalf("unexpected correction for unrecognized error")
	}
}
