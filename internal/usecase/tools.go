package usecase

import (
	"context"
	"fmt"
	"time"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/service/indicator"
	"FinFuse/internal/service/retrieval"
	"FinFuse/pkg/util"
)

// Tool is one member of the closed registry the agent loop can call.
type Tool interface {
	Name() models.ToolName
	Run(ctx context.Context, args map[string]any) (models.ToolResult, error)
}

// Registry is the explicit dispatch table. Unknown tool names are a
// selection bug, not a runtime branch.
type Registry struct {
	tools map[models.ToolName]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[models.ToolName]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

func (r *Registry) Dispatch(ctx context.Context, call models.ToolCall) (models.ToolResult, error) {
	t, ok := r.tools[call.Tool]
	if !ok {
		return models.ToolResult{}, fmt.Errorf("unknown tool %q", call.Tool)
	}
	return t.Run(ctx, call.Args)
}

func (r *Registry) Has(name models.ToolName) bool {
	_, ok := r.tools[name]
	return ok
}

// arg helpers: tool args arrive as map[string]any from the selector or a
// JSON body, so numbers may be float64.

func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing arg %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("arg %q must be a non-empty string", key)
	}
	return s, nil
}

func argTime(args map[string]any, key string) (time.Time, error) {
	s, err := argString(args, key)
	if err != nil {
		return time.Time{}, err
	}
	t, ok := util.ParseTime(s)
	if !ok {
		return time.Time{}, fmt.Errorf("arg %q: unparseable time %q", key, s)
	}
	return t, nil
}

func argInt(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("arg %q must be an integer", key)
	}
}

// PriceRangeTool returns the bars for an instrument and time range.
type PriceRangeTool struct {
	retrieval *retrieval.Service
}

func NewPriceRangeTool(r *retrieval.Service) *PriceRangeTool { return &PriceRangeTool{retrieval: r} }

func (t *PriceRangeTool) Name() models.ToolName { return models.ToolPriceRange }

func (t *PriceRangeTool) Run(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	instrument, err := argString(args, "instrument")
	if err != nil {
		return models.ToolResult{Err: err.Error()}, nil
	}
	from, err := argTime(args, "from")
	if err != nil {
		return models.ToolResult{Err: err.Error()}, nil
	}
	to, err := argTime(args, "to")
	if err != nil {
		return models.ToolResult{Err: err.Error()}, nil
	}

	bars, err := t.retrieval.PriceHistory(ctx, instrument, from, to)
	if err != nil {
		return models.ToolResult{Err: err.Error()}, nil
	}
	if len(bars) == 0 {
		return models.ToolResult{Err: fmt.Sprintf("no bars for %s in range", instrument)}, nil
	}
	first, last := bars[0], bars[len(bars)-1]
	change := 0.0
	if first.Close != 0 {
		change = (last.Close - first.Close) / first.Close * 100
	}
	summary := fmt.Sprintf("%s: %d bars %s to %s, close %.2f -> %.2f (%+.2f%%)",
		instrument, len(bars),
		first.Timestamp.Format("2006-01-02"), last.Timestamp.Format("2006-01-02"),
		first.Close, last.Close, change)
	return models.ToolResult{Payload: bars, Summary: summary}, nil
}

// NewsSimilarityTool runs the embedding similarity search.
type NewsSimilarityTool struct {
	retrieval *retrieval.Service
}

func NewNewsSimilarityTool(r *retrieval.Service) *NewsSimilarityTool {
	return &NewsSimilarityTool{retrieval: r}
}

func (t *NewsSimilarityTool) Name() models.ToolName { return models.ToolNewsSimilarity }

func (t *NewsSimilarityTool) Run(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	query, err := argString(args, "query")
	if err != nil {
		return models.ToolResult{Err: err.Error()}, nil
	}
	instrument := ""
	if v, ok := args["instrument"].(string); ok {
		instrument = v
	}
	topK, err := argInt(args, "top_k", 5)
	if err != nil {
		return models.ToolResult{Err: err.Error()}, nil
	}

	scored, err := t.retrieval.RelevantNews(ctx, query, instrument, topK)
	if err != nil {
		return models.ToolResult{Err: err.Error()}, nil
	}
	if len(scored) == 0 {
		return models.ToolResult{Err: "no matching news"}, nil
	}
	summary := fmt.Sprintf("%d articles, best %q (score %.3f, sentiment %+.2f)",
		len(scored), scored[0].Item.Title, scored[0].Score, scored[0].Item.Sentiment)
	return models.ToolResult{Payload: scored, Summary: summary}, nil
}

// ComputeIndicatorTool evaluates a technical indicator over a price range.
type ComputeIndicatorTool struct {
	retrieval *retrieval.Service
}

func NewComputeIndicatorTool(r *retrieval.Service) *ComputeIndicatorTool {
	return &ComputeIndicatorTool{retrieval: r}
}

func (t *ComputeIndicatorTool) Name() models.ToolName { return models.ToolComputeIndicator }

func (t *ComputeIndicatorTool) Run(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	instrument, err := argString(args, "instrument")
	if err != nil {
		return models.ToolResult{Err: err.Error()}, nil
	}
	name, err := argString(args, "indicator")
	if err != nil {
		return models.ToolResult{Err: err.Error()}, nil
	}
	from, err := argTime(args, "from")
	if err != nil {
		return models.ToolResult{Err: err.Error()}, nil
	}
	to, err := argTime(args, "to")
	if err != nil {
		return models.ToolResult{Err: err.Error()}, nil
	}
	window, err := argInt(args, "window", 14)
	if err != nil {
		return models.ToolResult{Err: err.Error()}, nil
	}

	bars, err := t.retrieval.PriceHistory(ctx, instrument, from, to)
	if err != nil {
		return models.ToolResult{Err: err.Error()}, nil
	}
	value, err := indicator.Compute(name, bars, window)
	if err != nil {
		return models.ToolResult{Err: err.Error()}, nil
	}
	summary := fmt.Sprintf("%s %s(%d) = %.4f over %d bars", instrument, name, window, value, len(bars))
	return models.ToolResult{
		Payload: map[string]any{"indicator": name, "window": window, "value": value, "bars": len(bars)},
		Summary: summary,
	}, nil
}
