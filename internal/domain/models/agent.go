package models

import "time"

// ToolName identifies one member of the closed tool registry.
type ToolName string

const (
	ToolPriceRange       ToolName = "price_range"
	ToolNewsSimilarity   ToolName = "news_similarity"
	ToolComputeIndicator ToolName = "compute_indicator"
)

// ToolCall is one tool invocation requested by the agent loop.
type ToolCall struct {
	Tool ToolName       `json:"tool"`
	Args map[string]any `json:"args"`
}

// ToolResult is the recorded outcome of a ToolCall. Exactly one of
// Payload or Err is meaningful.
type ToolResult struct {
	Payload any    `json:"payload,omitempty"`
	Summary string `json:"summary,omitempty"`
	Err     string `json:"error,omitempty"`
}

// Failed reports whether the call produced no usable result.
func (r ToolResult) Failed() bool { return r.Err != "" }

// ToolStep is one executed step in a turn, kept for citation.
type ToolStep struct {
	Call     ToolCall      `json:"call"`
	Result   ToolResult    `json:"result"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Retried  bool          `json:"retried,omitempty"`
}

// Citation links a claim in the final answer to a successful tool step.
type Citation struct {
	Tool          ToolName       `json:"tool"`
	Args          map[string]any `json:"args"`
	ResultSummary string         `json:"result_summary"`
}

// Answer is the gateway-facing result of one turn.
type Answer struct {
	Text            string     `json:"text"`
	Citations       []Citation `json:"citations"`
	BudgetExhausted bool       `json:"budget_exhausted,omitempty"`
	Insufficient    bool       `json:"insufficient,omitempty"`
}

// Turn is one completed query/answer exchange within a session.
type Turn struct {
	ID       string     `json:"id"`
	Query    string     `json:"query"`
	Steps    []ToolStep `json:"steps"`
	Answer   Answer     `json:"answer"`
	Started  time.Time  `json:"started"`
	Finished time.Time  `json:"finished"`
}
