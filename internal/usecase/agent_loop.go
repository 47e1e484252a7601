package usecase

import (
	"context"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	applogger "FinFuse/pkg/logger"

	"github.com/google/uuid"
)

// turn states, logged as transitions for debugging
type loopState string

const (
	stateAwaitingQuery   loopState = "awaiting_query"
	stateSelectingTool   loopState = "selecting_tool"
	stateAwaitingToolRes loopState = "awaiting_tool_result"
	stateAnswering       loopState = "answering"
	stateDone            loopState = "done"
)

// AgentLoop runs one bounded tool-calling turn per Ask. Tool calls are
// budgeted per turn; exhausting the budget is a normal terminal state that
// still produces a best-effort answer. A failed call gets at most one
// corrected retry and never aborts the turn. Cancellation via ctx is
// honored between calls; an in-flight call finishes on its own timeout
// and its result is discarded.
type AgentLoop struct {
	registry    *Registry
	selector    Selector
	sessions    *SessionManager
	budget      int
	toolTimeout time.Duration
	metrics     domrepo.Metrics
	l           *applogger.Logger
}

func NewAgentLoop(registry *Registry, selector Selector, sessions *SessionManager, budget int, toolTimeout time.Duration, metrics domrepo.Metrics, l *applogger.Logger) *AgentLoop {
	if budget <= 0 {
		budget = 5
	}
	if toolTimeout <= 0 {
		toolTimeout = 5 * time.Second
	}
	return &AgentLoop{
		registry:    registry,
		selector:    selector,
		sessions:    sessions,
		budget:      budget,
		toolTimeout: toolTimeout,
		metrics:     metrics,
		l:           l,
	}
}

// Ask executes one turn for the session and records it in the session
// history. An empty sessionID starts a new session.
func (a *AgentLoop) Ask(ctx context.Context, sessionID, query string) (string, models.Answer, error) {
	sess := a.sessions.GetOrCreate(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	turn := models.Turn{
		ID:      uuid.NewString(),
		Query:   query,
		Started: time.Now().UTC(),
	}
	state := stateAwaitingQuery
	a.transition(turn.ID, state, stateSelectingTool)
	state = stateSelectingTool

	budgetExhausted := false
	for {
		if err := ctx.Err(); err != nil {
			return sess.ID, models.Answer{}, err
		}
		if len(turn.Steps) >= a.budget {
			budgetExhausted = true
			break
		}
		call, ok := a.selector.Next(query, turn.Steps)
		if !ok {
			break
		}
		a.transition(turn.ID, state, stateAwaitingToolRes)
		step := a.execute(ctx, call)

		if step.Result.Failed() && len(turn.Steps)+1 < a.budget {
			if fixed, retry := a.selector.Correct(call, step.Result.Err); retry {
				turn.Steps = append(turn.Steps, step)
				retried := a.execute(ctx, fixed)
				retried.Retried = true
				turn.Steps = append(turn.Steps, retried)
				a.transition(turn.ID, stateAwaitingToolRes, stateSelectingTool)
				state = stateSelectingTool
				continue
			}
		}
		turn.Steps = append(turn.Steps, step)
		a.transition(turn.ID, stateAwaitingToolRes, stateSelectingTool)
		state = stateSelectingTool
	}

	a.transition(turn.ID, state, stateAnswering)
	turn.Answer = composeAnswer(query, turn.Steps, budgetExhausted)
	turn.Finished = time.Now().UTC()
	sess.Turns = append(sess.Turns, turn)
	a.transition(turn.ID, stateAnswering, stateDone)

	if a.metrics != nil {
		a.metrics.RecordLatency("agent_turn", turn.Finished.Sub(turn.Started).Seconds())
	}
	if a.l != nil {
		a.l.Info("turn completed",
			applogger.String("session_id", sess.ID),
			applogger.String("turn_id", turn.ID),
			applogger.Int("steps", len(turn.Steps)),
			applogger.Int("citations", len(turn.Answer.Citations)),
			applogger.Bool("budget_exhausted", budgetExhausted),
		)
	}
	return sess.ID, turn.Answer, nil
}

func (a *AgentLoop) execute(ctx context.Context, call models.ToolCall) models.ToolStep {
	started := time.Now().UTC()
	callCtx, cancel := context.WithTimeout(ctx, a.toolTimeout)
	defer cancel()

	result, err := a.registry.Dispatch(callCtx, call)
	if err != nil {
		result = models.ToolResult{Err: err.Error()}
	}
	step := models.ToolStep{
		Call:     call,
		Result:   result,
		Started:  started,
		Duration: time.Since(started),
	}
	if a.metrics != nil {
		a.metrics.RecordToolCall(string(call.Tool), result.Failed())
	}
	if a.l != nil {
		ev := a.l.Debug
		if result.Failed() {
			ev = a.l.Warn
		}
		ev("tool call",
			applogger.String("tool", string(call.Tool)),
			applogger.Duration("duration_ms", step.Duration),
			applogger.String("error", result.Err),
		)
	}
	return step
}

func (a *AgentLoop) transition(turnID string, from, to loopState) {
	if a.l != nil {
		a.l.Debug("state transition",
			applogger.String("turn_id", turnID),
			applogger.String("from", string(from)),
			applogger.String("to", string(to)),
		)
	}
}
