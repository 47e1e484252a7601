package nlp

import (
	"context"
	"fmt"
	"time"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/domain/service"
	pkghttp "FinFuse/pkg/http"
	applogger "FinFuse/pkg/logger"
)

// HTTPAnnotator delegates annotation to an external NLP service. Transport
// failures surface as ErrAnnotatorUnavailable so the ingestor aborts the
// batch instead of silently storing half-annotated items.
type HTTPAnnotator struct {
	client  *pkghttp.Client
	baseURL string
	dim     int
	l       *applogger.Logger
}

func NewHTTPAnnotator(baseURL string, timeout time.Duration, dim int, l *applogger.Logger) *HTTPAnnotator {
	if dim <= 0 {
		dim = 256
	}
	return &HTTPAnnotator{
		client:  pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		baseURL: baseURL,
		dim:     dim,
		l:       l,
	}
}

type annotateRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Dim   int    `json:"dim"`
}

type annotateResponse struct {
	Entities  []string  `json:"entities"`
	Sentiment float64   `json:"sentiment"`
	Embedding []float32 `json:"embedding"`
}

type embedRequest struct {
	Text string `json:"text"`
	Dim  int    `json:"dim"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (a *HTTPAnnotator) Annotate(ctx context.Context, title, text string) (service.Annotation, error) {
	var resp annotateResponse
	err := a.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    a.baseURL + "/v1/annotate",
		Body:   annotateRequest{Title: title, Text: text, Dim: a.dim},
	}, &resp)
	if err != nil {
		if a.l != nil {
			a.l.Error("nlp annotate request failed", applogger.Error(err))
		}
		return service.Annotation{}, fmt.Errorf("annotate: %w", models.ErrAnnotatorUnavailable)
	}
	if resp.Sentiment > 1 {
		resp.Sentiment = 1
	}
	if resp.Sentiment < -1 {
		resp.Sentiment = -1
	}
	return service.Annotation{
		Entities:  resp.Entities,
		Sentiment: resp.Sentiment,
		Embedding: resp.Embedding,
	}, nil
}

func (a *HTTPAnnotator) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	err := a.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    a.baseURL + "/v1/embed",
		Body:   embedRequest{Text: text, Dim: a.dim},
	}, &resp)
	if err != nil {
		if a.l != nil {
			a.l.Error("nlp embed request failed", applogger.Error(err))
		}
		return nil, fmt.Errorf("embed: %w", models.ErrAnnotatorUnavailable)
	}
	return resp.Embedding, nil
}

func (a *HTTPAnnotator) Dim() int { return a.dim }

var _ service.Annotator = (*HTTPAnnotator)(nil)
