package models

import "time"

// RawNewsItem is an unprocessed article from an upstream source.
type RawNewsItem struct {
	SourceID    string `json:"source_id"`
	PublishedAt string `json:"published_at"`
	Title       string `json:"title"`
	Text        string `json:"text"`
}

// NewsItem is a normalized, annotated article. Immutable after creation;
// DedupHash is the identity key (sha256 of source id + normalized text).
type NewsItem struct {
	DedupHash      string    `json:"dedup_hash"`
	SourceID       string    `json:"source_id"`
	PublishedAt    time.Time `json:"published_at"`
	Title          string    `json:"title"`
	Text           string    `json:"text"`
	Entities       []string  `json:"entities"`
	Sentiment      float64   `json:"sentiment"`
	Embedding      []float32 `json:"embedding,omitempty"`
	AnnotateFailed bool      `json:"annotate_failed,omitempty"`
}

// HasEntity reports whether the item is tagged with the instrument.
func (n *NewsItem) HasEntity(instrument string) bool {
	for _, e := range n.Entities {
		if e == instrument {
			return true
		}
	}
	return false
}

// ScoredNews pairs a news item with its similarity score for a query.
type ScoredNews struct {
	Item  NewsItem `json:"item"`
	Score float64  `json:"score"`
}

// NewsIngestReport summarizes one news batch.
type NewsIngestReport struct {
	Committed int        `json:"committed"`
	Deduped   int        `json:"deduped"`
	Rejected  int        `json:"rejected"`
	Errors    []RowError `json:"errors,omitempty"`
}
