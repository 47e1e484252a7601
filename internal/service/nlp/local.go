package nlp

import (
	"context"

	"FinFuse/internal/domain/service"
	"FinFuse/pkg/config"
)

// LocalAnnotator runs entity extraction, sentiment scoring and embedding
// in-process. It never fails, which makes it the default for the memory
// backend and for environments without the external NLP service.
type LocalAnnotator struct {
	entities *EntityExtractor
	embedder *HashEmbedder
}

func NewLocalAnnotator(instruments []config.Instrument, dim int) *LocalAnnotator {
	return &LocalAnnotator{
		entities: NewEntityExtractor(instruments),
		embedder: NewHashEmbedder(dim),
	}
}

func (a *LocalAnnotator) Annotate(ctx context.Context, title, text string) (service.Annotation, error) {
	full := title + "\n" + text
	return service.Annotation{
		Entities:  a.entities.Extract(full),
		Sentiment: ScoreSentiment(full),
		Embedding: a.embedder.Embed(full),
	}, nil
}

func (a *LocalAnnotator) Embed(ctx context.Context, text string) ([]float32, error) {
	return a.embedder.Embed(text), nil
}

func (a *LocalAnnotator) Dim() int { return a.embedder.Dim() }

var _ service.Annotator = (*LocalAnnotator)(nil)
