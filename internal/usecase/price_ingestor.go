package usecase

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	"FinFuse/internal/service/fusion"
	applogger "FinFuse/pkg/logger"
	"FinFuse/pkg/util"
)

// PriceIngestor validates raw price rows and commits the valid subset as
// one atomic batch. Invalid rows are reported per-row and never block the
// rest; a storage failure aborts the whole batch so callers can safely
// retry it. Re-ingesting a bar for an existing (instrument, timestamp)
// supersedes the stored one.
type PriceIngestor struct {
	store       domrepo.PriceStore
	fusion      *fusion.Store
	invalidator CacheInvalidator
	metrics     domrepo.Metrics
	l           *applogger.Logger
}

// CacheInvalidator drops derived query caches after data changes.
type CacheInvalidator interface {
	FlushCache()
}

func NewPriceIngestor(store domrepo.PriceStore, fs *fusion.Store, metrics domrepo.Metrics, l *applogger.Logger) *PriceIngestor {
	return &PriceIngestor{store: store, fusion: fs, metrics: metrics, l: l}
}

// SetInvalidator attaches a query cache to flush after each commit.
func (u *PriceIngestor) SetInvalidator(inv CacheInvalidator) { u.invalidator = inv }

// Ingest processes one batch of raw rows.
func (u *PriceIngestor) Ingest(ctx context.Context, rows []models.RawPriceRow) (models.PriceIngestReport, error) {
	began := time.Now()
	report := models.PriceIngestReport{}
	bars := make([]models.PriceBar, 0, len(rows))

	// Timestamps must increase per instrument within the batch; a regressed
	// or repeated timestamp is a feed fault, not a legitimate correction.
	lastTS := make(map[string]time.Time)
	for i, row := range rows {
		bar, reason := validateRow(row)
		if reason != "" {
			report.Rejected++
			report.Errors = append(report.Errors, models.RowError{Index: i, Reason: reason})
			continue
		}
		if prev, ok := lastTS[bar.Instrument]; ok && !bar.Timestamp.After(prev) {
			report.Rejected++
			report.Errors = append(report.Errors, models.RowError{Index: i, Reason: "timestamp out of order"})
			continue
		}
		lastTS[bar.Instrument] = bar.Timestamp
		bars = append(bars, bar)
	}

	if len(bars) > 0 {
		if err := u.store.UpsertBatch(ctx, bars); err != nil {
			if u.metrics != nil {
				u.metrics.RecordError("price_store")
			}
			if u.l != nil {
				u.l.Error("price batch aborted",
					applogger.Int("rows", len(rows)),
					applogger.Error(err),
				)
			}
			return models.PriceIngestReport{}, err
		}
		for _, b := range bars {
			u.fusion.InvalidateBar(b.Instrument, b.Timestamp)
			if u.metrics != nil {
				u.metrics.RecordIngested("price", b.Instrument, 1)
			}
		}
		if u.invalidator != nil {
			u.invalidator.FlushCache()
		}
	}
	report.Committed = len(bars)

	if u.metrics != nil {
		if report.Rejected > 0 {
			u.metrics.RecordRejected("price", report.Rejected)
		}
		u.metrics.RecordLatency("price_ingest", time.Since(began).Seconds())
	}
	if u.l != nil {
		u.l.Info("price batch ingested",
			applogger.Int("committed", report.Committed),
			applogger.Int("rejected", report.Rejected),
		)
	}
	return report, nil
}

func validateRow(row models.RawPriceRow) (models.PriceBar, string) {
	instrument := strings.TrimSpace(row.Instrument)
	if instrument == "" {
		return models.PriceBar{}, "missing instrument"
	}
	ts, ok := util.ParseTime(row.Timestamp)
	if !ok {
		return models.PriceBar{}, "unparseable timestamp"
	}

	open, reason := parsePrice("open", row.Open)
	if reason != "" {
		return models.PriceBar{}, reason
	}
	high, reason := parsePrice("high", row.High)
	if reason != "" {
		return models.PriceBar{}, reason
	}
	low, reason := parsePrice("low", row.Low)
	if reason != "" {
		return models.PriceBar{}, reason
	}
	closePx, reason := parsePrice("close", row.Close)
	if reason != "" {
		return models.PriceBar{}, reason
	}
	vol, err := strconv.ParseFloat(strings.TrimSpace(row.Volume), 64)
	if err != nil || math.IsNaN(vol) || math.IsInf(vol, 0) || vol < 0 {
		return models.PriceBar{}, "invalid volume"
	}
	if high < low {
		return models.PriceBar{}, "high below low"
	}

	return models.PriceBar{
		Instrument: instrument,
		Timestamp:  ts,
		Open:       open,
		High:       high,
		Low:        low,
		Close:      closePx,
		Volume:     vol,
	}, ""
}

func parsePrice(field, s string) (float64, string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, "invalid " + field
	}
	if v <= 0 {
		return 0, "non-positive " + field
	}
	return v, ""
}
