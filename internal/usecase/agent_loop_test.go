package usecase

import (
	"context"
	"testing"
	"time"

	"FinFuse/internal/domain/models"
	internalrepo "FinFuse/internal/repository"
	"FinFuse/internal/service/fusion"
	"FinFuse/internal/service/nlp"
	"FinFuse/internal/service/retrieval"
)

// stubTool returns canned results, failing the first failN calls.
type stubTool struct {
	name  models.ToolName
	calls int
	failN int
}

func (s *stubTool) Name() models.ToolName { return s.name }

func (s *stubTool) Run(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	s.calls++
	if s.calls <= s.failN {
		return models.ToolResult{Err: "boom"}, nil
	}
	return models.ToolResult{Payload: s.calls, Summary: "ok"}, nil
}

// scriptedSelector emits a fixed sequence of calls.
type scriptedSelector struct {
	calls   []models.ToolCall
	correct func(models.ToolCall, string) (models.ToolCall, bool)
}

func (s *scriptedSelector) Next(query string, steps []models.ToolStep) (models.ToolCall, bool) {
	idx := 0
	for _, st := range steps {
		if !st.Retried {
			idx++
		}
	}
	if idx >= len(s.calls) {
		return models.ToolCall{}, false
	}
	return s.calls[idx], true
}

func (s *scriptedSelector) Correct(call models.ToolCall, errMsg string) (models.ToolCall, bool) {
	if s.correct == nil {
		return models.ToolCall{}, false
	}
	return s.correct(call, errMsg)
}

func priceCall() models.ToolCall {
	return models.ToolCall{Tool: models.ToolPriceRange, Args: map[string]any{"instrument": "AAPL"}}
}

func TestAskBudgetExhaustionIsTerminal(t *testing.T) {
	tool := &stubTool{name: models.ToolPriceRange, failN: 1 << 30} // always fails
	sel := &scriptedSelector{calls: []models.ToolCall{
		priceCall(), priceCall(), priceCall(), priceCall(), priceCall(), priceCall(),
	}}
	loop := NewAgentLoop(NewRegistry(tool), sel, NewSessionManager(), 3, time.Second, nil, nil)

	sessionID, answer, err := loop.Ask(context.Background(), "", "how did AAPL do")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if sessionID == "" {
		t.Fatalf("expected minted session id")
	}
	if tool.calls != 3 {
		t.Fatalf("tool calls=%d want exactly the budget of 3", tool.calls)
	}
	if !answer.BudgetExhausted {
		t.Fatalf("expected budget_exhausted")
	}
	if !answer.Insufficient {
		t.Fatalf("expected insufficient: every step failed")
	}
	if len(answer.Citations) != 0 {
		t.Fatalf("citations=%d want 0 for all-failed steps", len(answer.Citations))
	}
}

func TestAskCitationsOnlyFromSuccessfulSteps(t *testing.T) {
	failing := &stubTool{name: models.ToolNewsSimilarity, failN: 1 << 30}
	working := &stubTool{name: models.ToolPriceRange}
	sel := &scriptedSelector{calls: []models.ToolCall{
		priceCall(),
		{Tool: models.ToolNewsSimilarity, Args: map[string]any{"query": "x"}},
	}}
	loop := NewAgentLoop(NewRegistry(failing, working), sel, NewSessionManager(), 5, time.Second, nil, nil)

	_, answer, err := loop.Ask(context.Background(), "", "q")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(answer.Citations) != 1 {
		t.Fatalf("citations=%d want 1", len(answer.Citations))
	}
	if answer.Citations[0].Tool != models.ToolPriceRange {
		t.Fatalf("citation tool=%s want price_range", answer.Citations[0].Tool)
	}
	if answer.Insufficient || answer.BudgetExhausted {
		t.Fatalf("unexpected flags: %+v", answer)
	}
}

func TestAskRetriesOnceWithCorrection(t *testing.T) {
	tool := &stubTool{name: models.ToolPriceRange, failN: 1} // first call fails
	sel := &scriptedSelector{
		calls: []models.ToolCall{priceCall()},
		correct: func(call models.ToolCall, errMsg string) (models.ToolCall, bool) {
			return call, true
		},
	}
	loop := NewAgentLoop(NewRegistry(tool), sel, NewSessionManager(), 5, time.Second, nil, nil)

	sessionID, answer, err := loop.Ask(context.Background(), "", "q")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if tool.calls != 2 {
		t.Fatalf("tool calls=%d want 2 (fail then retry)", tool.calls)
	}
	if len(answer.Citations) != 1 {
		t.Fatalf("citations=%d want 1 from the retried success", len(answer.Citations))
	}

	turns := loop.sessions.History(sessionID)
	if len(turns) != 1 {
		t.Fatalf("turns=%d want 1", len(turns))
	}
	steps := turns[0].Steps
	if len(steps) != 2 {
		t.Fatalf("steps=%d want 2", len(steps))
	}
	if !steps[0].Result.Failed() || steps[1].Result.Failed() {
		t.Fatalf("expected fail then success, got %+v", steps)
	}
	if !steps[1].Retried {
		t.Fatalf("second step should be marked retried")
	}
}

func TestAskContinuesPlanAfterRetry(t *testing.T) {
	price := &stubTool{name: models.ToolPriceRange, failN: 1} // first call fails
	newsTool := &stubTool{name: models.ToolNewsSimilarity}
	sel := &scriptedSelector{
		calls: []models.ToolCall{
			priceCall(),
			{Tool: models.ToolNewsSimilarity, Args: map[string]any{"query": "x"}},
		},
		correct: func(call models.ToolCall, errMsg string) (models.ToolCall, bool) {
			return call, true
		},
	}
	loop := NewAgentLoop(NewRegistry(price, newsTool), sel, NewSessionManager(), 5, time.Second, nil, nil)

	sessionID, answer, err := loop.Ask(context.Background(), "", "q")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if newsTool.calls != 1 {
		t.Fatalf("news tool calls=%d want 1: the plan must continue past a retried call", newsTool.calls)
	}
	if len(answer.Citations) != 2 {
		t.Fatalf("citations=%d want 2 (retried price + news)", len(answer.Citations))
	}
	turns := loop.sessions.History(sessionID)
	if len(turns) != 1 || len(turns[0].Steps) != 3 {
		t.Fatalf("expected 3 steps (fail, retry, news), got %+v", turns)
	}
}

func TestSessionManagerEvictsIdleSessions(t *testing.T) {
	m := NewSessionManager()
	m.idleAfter = 50 * time.Millisecond

	idle := m.GetOrCreate("")
	if m.Count() != 1 {
		t.Fatalf("sessions=%d want 1", m.Count())
	}
	time.Sleep(80 * time.Millisecond)

	// the next lookup sweeps the idle session out
	live := m.GetOrCreate("")
	if m.Get(idle.ID) != nil {
		t.Fatalf("idle session should have been evicted")
	}
	if m.Get(live.ID) == nil {
		t.Fatalf("fresh session missing after sweep")
	}
	if m.Count() != 1 {
		t.Fatalf("sessions=%d want 1 after eviction", m.Count())
	}
}

func TestAskSessionsAreIndependent(t *testing.T) {
	tool := &stubTool{name: models.ToolPriceRange}
	sel := &scriptedSelector{calls: []models.ToolCall{priceCall()}}
	loop := NewAgentLoop(NewRegistry(tool), sel, NewSessionManager(), 5, time.Second, nil, nil)

	s1, _, err := loop.Ask(context.Background(), "", "first")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	s2, _, err := loop.Ask(context.Background(), "", "second")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if s1 == s2 {
		t.Fatalf("empty session ids must mint distinct sessions")
	}

	// same session accumulates turns
	if _, _, err := loop.Ask(context.Background(), s1, "third"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if n := len(loop.sessions.History(s1)); n != 2 {
		t.Fatalf("session turns=%d want 2", n)
	}
	if n := len(loop.sessions.History(s2)); n != 1 {
		t.Fatalf("other session turns=%d want 1", n)
	}
}

func TestAskCancelledContext(t *testing.T) {
	tool := &stubTool{name: models.ToolPriceRange}
	sel := &scriptedSelector{calls: []models.ToolCall{priceCall()}}
	loop := NewAgentLoop(NewRegistry(tool), sel, NewSessionManager(), 5, time.Second, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := loop.Ask(ctx, "", "q"); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestEndToEndAskAgainstRetrieval(t *testing.T) {
	ctx := context.Background()
	prices := internalrepo.NewMemPriceStore()
	news := internalrepo.NewMemNewsStore()
	fs := fusion.NewStore(prices, news, 24*time.Hour, 2*time.Hour)
	annotator := nlp.NewLocalAnnotator(testInstruments, 64)
	svc := retrieval.NewService(fs, news, annotator)

	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, 0, 8)
	for i := 0; i < 8; i++ {
		ts := now.Add(-time.Duration(7-i) * 24 * time.Hour)
		px := 180 + float64(i)
		bars = append(bars, models.PriceBar{Instrument: "AAPL", Timestamp: ts,
			Open: px, High: px + 1, Low: px - 1, Close: px, Volume: 1000})
	}
	if err := prices.UpsertBatch(ctx, bars); err != nil {
		t.Fatalf("seed: %v", err)
	}

	registry := NewRegistry(
		NewPriceRangeTool(svc),
		NewNewsSimilarityTool(svc),
		NewComputeIndicatorTool(svc),
	)
	selector := NewHeuristicSelector(testInstruments, WithClock(func() time.Time { return now }))
	loop := NewAgentLoop(registry, selector, NewSessionManager(), 5, time.Second, nil, nil)

	_, answer, err := loop.Ask(ctx, "", "How did Apple stock perform over the last 7 days?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(answer.Citations) == 0 {
		t.Fatalf("expected at least one citation, answer=%+v", answer)
	}
	if answer.Insufficient {
		t.Fatalf("answer should not be insufficient: %s", answer.Text)
	}
	if answer.Text == "" {
		t.Fatalf("empty answer text")
	}
}
