package service

import "context"

// Annotation is the output of one annotator pass over an article.
type Annotation struct {
	Entities  []string
	Sentiment float64 // bounded to [-1, 1]
	Embedding []float32
}

// Annotator is the pluggable NLP capability set the news ingestor depends
// on. Implementations map free text to known instrument identifiers, a
// bounded sentiment score, and a fixed-dimension embedding vector. The
// ingestor assumes nothing beyond this contract.
//
// A per-item failure is an ordinary error; models.ErrAnnotatorUnavailable
// signals systemic unavailability and fails the whole batch.
type Annotator interface {
	Annotate(ctx context.Context, title, text string) (Annotation, error)
	// Embed computes the query embedding used by similarity search; it
	// must be the same space as Annotation.Embedding.
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}
