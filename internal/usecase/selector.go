package usecase

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/service/nlp"
	"FinFuse/pkg/config"
)

// Selector decides the next tool call for a turn. Next returns false when
// the loop should stop calling tools and compose the answer. Correct may
// propose a fixed-up call after a failed step; returning false skips the
// retry and the loop moves on without that result.
type Selector interface {
	Next(query string, steps []models.ToolStep) (models.ToolCall, bool)
	Correct(call models.ToolCall, errMsg string) (models.ToolCall, bool)
}

// HeuristicSelector plans tool calls from surface features of the query:
// instrument mentions resolve through the configured aliases, a lookback
// window is parsed from phrases like "last 30 days", and intent keywords
// pick which tools run. It is deterministic, which keeps answers
// reproducible; a model-driven policy can replace it behind Selector.
type HeuristicSelector struct {
	entities *nlp.EntityExtractor
	now      func() time.Time
}

type SelectorOption func(*HeuristicSelector)

// WithClock fixes the reference time used to anchor relative lookbacks.
func WithClock(now func() time.Time) SelectorOption {
	return func(s *HeuristicSelector) { s.now = now }
}

func NewHeuristicSelector(instruments []config.Instrument, opts ...SelectorOption) *HeuristicSelector {
	s := &HeuristicSelector{
		entities: nlp.NewEntityExtractor(instruments),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var lookbackRe = regexp.MustCompile(`(?i)(?:last|past)\s+(\d+)\s+(day|week|month|year)s?`)

// Ordered so specific phrases win over the generic "average", and the
// same query always maps to the same indicator.
var indicatorNames = []struct{ phrase, name string }{
	{"moving average", "sma"},
	{"sma", "sma"},
	{"ema", "ema"},
	{"rsi", "rsi"},
	{"volatility", "volatility"},
	{"volatile", "volatility"},
	{"average", "sma"},
}

func (s *HeuristicSelector) Next(query string, steps []models.ToolStep) (models.ToolCall, bool) {
	plan := s.plan(query)
	// A retried step shares its plan slot with the failed step it corrects,
	// so only original steps advance the plan cursor.
	idx := 0
	for _, st := range steps {
		if !st.Retried {
			idx++
		}
	}
	if idx >= len(plan) {
		return models.ToolCall{}, false
	}
	return plan[idx], true
}

// Correct handles the two recoverable failure shapes the tools produce:
// an empty price range (widen the lookback) and an indicator window larger
// than the data (halve the window). Anything else is not retried.
func (s *HeuristicSelector) Correct(call models.ToolCall, errMsg string) (models.ToolCall, bool) {
	switch call.Tool {
	case models.ToolPriceRange:
		if strings.Contains(errMsg, "no bars") {
			return widenRange(call), true
		}
	case models.ToolComputeIndicator:
		if strings.Contains(errMsg, "need ") {
			w, _ := call.Args["window"].(int)
			if w > 2 {
				fixed := cloneCall(call)
				fixed.Args["window"] = w / 2
				return fixed, true
			}
		}
		if strings.Contains(errMsg, "unknown indicator") {
			fixed := cloneCall(call)
			fixed.Args["indicator"] = "sma"
			return fixed, true
		}
	}
	return models.ToolCall{}, false
}

func (s *HeuristicSelector) plan(query string) []models.ToolCall {
	q := strings.ToLower(query)
	instruments := s.entities.Extract(query)
	instrument := ""
	if len(instruments) > 0 {
		instrument = instruments[0]
	}
	from, to := s.window(q)

	wantNews := strings.Contains(q, "news") || strings.Contains(q, "why") ||
		strings.Contains(q, "sentiment") || strings.Contains(q, "headline") ||
		strings.Contains(q, "article") || strings.Contains(q, "happen")
	wantPrices := instrument != "" && (strings.Contains(q, "price") ||
		strings.Contains(q, "close") || strings.Contains(q, "perform") ||
		strings.Contains(q, "stock") || strings.Contains(q, "trade") ||
		strings.Contains(q, "chart") || strings.Contains(q, "how did") ||
		strings.Contains(q, "change"))
	indicatorName := matchIndicator(q)

	var plan []models.ToolCall
	if wantPrices || (instrument != "" && !wantNews && indicatorName == "") {
		plan = append(plan, models.ToolCall{
			Tool: models.ToolPriceRange,
			Args: map[string]any{
				"instrument": instrument,
				"from":       from.Format(time.RFC3339),
				"to":         to.Format(time.RFC3339),
			},
		})
	}
	if indicatorName != "" && instrument != "" {
		plan = append(plan, models.ToolCall{
			Tool: models.ToolComputeIndicator,
			Args: map[string]any{
				"instrument": instrument,
				"indicator":  indicatorName,
				"from":       from.Format(time.RFC3339),
				"to":         to.Format(time.RFC3339),
				"window":     14,
			},
		})
	}
	if wantNews || len(plan) == 0 {
		args := map[string]any{"query": query, "top_k": 5}
		if instrument != "" {
			args["instrument"] = instrument
		}
		plan = append(plan, models.ToolCall{Tool: models.ToolNewsSimilarity, Args: args})
	}
	return plan
}

func (s *HeuristicSelector) window(q string) (time.Time, time.Time) {
	now := s.now().UTC()
	lookback := 30 * 24 * time.Hour
	if m := lookbackRe.FindStringSubmatch(q); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			unit := 24 * time.Hour
			switch m[2] {
			case "week":
				unit = 7 * 24 * time.Hour
			case "month":
				unit = 30 * 24 * time.Hour
			case "year":
				unit = 365 * 24 * time.Hour
			}
			lookback = time.Duration(n) * unit
		}
	}
	return now.Add(-lookback), now
}

func matchIndicator(q string) string {
	for _, e := range indicatorNames {
		if strings.Contains(q, e.phrase) {
			return e.name
		}
	}
	return ""
}

func widenRange(call models.ToolCall) models.ToolCall {
	fixed := cloneCall(call)
	fromS, _ := call.Args["from"].(string)
	toS, _ := call.Args["to"].(string)
	from, err1 := time.Parse(time.RFC3339, fromS)
	to, err2 := time.Parse(time.RFC3339, toS)
	if err1 != nil || err2 != nil {
		return fixed
	}
	span := to.Sub(from)
	if span <= 0 {
		span = 24 * time.Hour
	}
	fixed.Args["from"] = from.Add(-span).Format(time.RFC3339)
	return fixed
}

func cloneCall(call models.ToolCall) models.ToolCall {
	args := make(map[string]any, len(call.Args))
	for k, v := range call.Args {
		args[k] = v
	}
	return models.ToolCall{Tool: call.Tool, Args: args}
}

// String names the selector for startup logs.
func (s *HeuristicSelector) String() string { return "heuristic" }
