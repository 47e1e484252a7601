package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	domservice "FinFuse/internal/domain/service"
	"FinFuse/internal/service/fusion"
	applogger "FinFuse/pkg/logger"
	"FinFuse/pkg/util"
)

// NewsIngestor normalizes, deduplicates, annotates and stores raw articles.
// Identity is the sha256 of the source id plus the normalized text, so the
// same article re-fetched with different whitespace or casing still dedups.
// A per-item annotation failure stores the item unannotated and flagged;
// annotator unavailability aborts the batch.
type NewsIngestor struct {
	store       domrepo.NewsStore
	annotator   domservice.Annotator
	fusion      *fusion.Store
	invalidator CacheInvalidator
	metrics     domrepo.Metrics
	l           *applogger.Logger
}

func NewNewsIngestor(store domrepo.NewsStore, annotator domservice.Annotator, fs *fusion.Store, metrics domrepo.Metrics, l *applogger.Logger) *NewsIngestor {
	return &NewsIngestor{store: store, annotator: annotator, fusion: fs, metrics: metrics, l: l}
}

// SetInvalidator attaches a query cache to flush after each commit.
func (u *NewsIngestor) SetInvalidator(inv CacheInvalidator) { u.invalidator = inv }

// Ingest processes one batch of raw articles.
func (u *NewsIngestor) Ingest(ctx context.Context, items []models.RawNewsItem) (models.NewsIngestReport, error) {
	began := time.Now()
	report := models.NewsIngestReport{}
	seenInBatch := make(map[string]struct{}, len(items))

	for i, raw := range items {
		item, reason := u.normalize(raw)
		if reason != "" {
			report.Rejected++
			report.Errors = append(report.Errors, models.RowError{Index: i, Reason: reason})
			continue
		}

		if _, dup := seenInBatch[item.DedupHash]; dup {
			report.Deduped++
			continue
		}
		stored, err := u.store.Seen(ctx, item.DedupHash)
		if err != nil {
			return models.NewsIngestReport{}, err
		}
		if stored {
			seenInBatch[item.DedupHash] = struct{}{}
			report.Deduped++
			continue
		}

		ann, err := u.annotator.Annotate(ctx, item.Title, item.Text)
		switch {
		case errors.Is(err, models.ErrAnnotatorUnavailable):
			if u.metrics != nil {
				u.metrics.RecordError("annotator")
			}
			return models.NewsIngestReport{}, err
		case err != nil:
			// Item-level failure: keep the article, flag it, leave it out
			// of similarity search until re-annotated.
			item.AnnotateFailed = true
			if u.l != nil {
				u.l.Warn("annotation failed for item",
					applogger.String("source_id", item.SourceID),
					applogger.Error(err),
				)
			}
		default:
			item.Entities = ann.Entities
			item.Sentiment = clampSentiment(ann.Sentiment)
			item.Embedding = ann.Embedding
		}

		if err := u.store.Insert(ctx, &item); err != nil {
			return models.NewsIngestReport{}, err
		}
		seenInBatch[item.DedupHash] = struct{}{}
		u.fusion.InvalidateNews(&item)
		report.Committed++
		if u.metrics != nil {
			for _, e := range item.Entities {
				u.metrics.RecordIngested("news", e, 1)
			}
		}
	}

	if report.Committed > 0 && u.invalidator != nil {
		u.invalidator.FlushCache()
	}

	if u.metrics != nil {
		if report.Deduped > 0 {
			u.metrics.RecordDeduped(report.Deduped)
		}
		if report.Rejected > 0 {
			u.metrics.RecordRejected("news", report.Rejected)
		}
		u.metrics.RecordLatency("news_ingest", time.Since(began).Seconds())
	}
	if u.l != nil {
		u.l.Info("news batch ingested",
			applogger.Int("committed", report.Committed),
			applogger.Int("deduped", report.Deduped),
			applogger.Int("rejected", report.Rejected),
		)
	}
	return report, nil
}

func (u *NewsIngestor) normalize(raw models.RawNewsItem) (models.NewsItem, string) {
	sourceID := strings.TrimSpace(raw.SourceID)
	if sourceID == "" {
		return models.NewsItem{}, "missing source id"
	}
	ts, ok := util.ParseTime(raw.PublishedAt)
	if !ok {
		return models.NewsItem{}, "unparseable publish time"
	}
	title := strings.TrimSpace(raw.Title)
	text := strings.TrimSpace(raw.Text)
	if title == "" && text == "" {
		return models.NewsItem{}, "empty article"
	}

	return models.NewsItem{
		DedupHash:   DedupHash(sourceID, title, text),
		SourceID:    sourceID,
		PublishedAt: ts,
		Title:       title,
		Text:        text,
	}, ""
}

// DedupHash is the article identity: sha256 over the source id and the
// whitespace-collapsed, lowercased title+text.
func DedupHash(sourceID, title, text string) string {
	normalized := normalizeText(title + " " + text)
	sum := sha256.Sum256([]byte(sourceID + "\n" + normalized))
	return hex.EncodeToString(sum[:])
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func clampSentiment(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
