package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"FinFuse/internal/domain/models"
	internalrepo "FinFuse/internal/repository"
	"FinFuse/internal/service/fusion"
)

func newPriceFixture() (*PriceIngestor, *internalrepo.MemPriceStore, *fusion.Store) {
	prices := internalrepo.NewMemPriceStore()
	news := internalrepo.NewMemNewsStore()
	fs := fusion.NewStore(prices, news, 24*time.Hour, 0)
	return NewPriceIngestor(prices, fs, nil, nil), prices, fs
}

func rawRow(instrument, ts, o, h, l, c, v string) models.RawPriceRow {
	return models.RawPriceRow{Instrument: instrument, Timestamp: ts, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestPriceIngestPartialCommit(t *testing.T) {
	ing, prices, _ := newPriceFixture()
	rows := []models.RawPriceRow{
		rawRow("AAPL", "2024-01-02", "184", "186", "183", "185", "1000"),
		rawRow("", "2024-01-02", "184", "186", "183", "185", "1000"),         // no instrument
		rawRow("AAPL", "garbage", "184", "186", "183", "185", "1000"),        // bad ts
		rawRow("AAPL", "2024-01-03", "184", "183", "186", "185", "1000"),     // high < low
		rawRow("AAPL", "2024-01-04", "184", "186", "183", "-1", "1000"),      // negative close
		rawRow("AAPL", "2024-01-05", "184", "186", "183", "185", "notnum"),   // bad volume
		rawRow("MSFT", "2024-01-02T00:00:00Z", "400", "402", "399", "401", "0"),
	}

	report, err := ing.Ingest(context.Background(), rows)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Committed != 2 {
		t.Fatalf("committed=%d want 2", report.Committed)
	}
	if report.Rejected != 5 {
		t.Fatalf("rejected=%d want 5", report.Rejected)
	}
	if len(report.Errors) != 5 {
		t.Fatalf("errors=%d want 5", len(report.Errors))
	}
	for _, re := range report.Errors {
		if re.Reason == "" {
			t.Fatalf("error %d has empty reason", re.Index)
		}
	}

	bars, err := prices.Query(context.Background(), "AAPL",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("stored bars=%d want 1", len(bars))
	}
}

func TestPriceIngestUpsertSupersedes(t *testing.T) {
	ing, prices, _ := newPriceFixture()
	ctx := context.Background()

	first := []models.RawPriceRow{rawRow("AAPL", "2024-01-02", "184", "186", "183", "185", "1000")}
	if _, err := ing.Ingest(ctx, first); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	// corrected bar for the same (instrument, timestamp)
	second := []models.RawPriceRow{rawRow("AAPL", "2024-01-02", "184", "187", "183", "186", "1100")}
	report, err := ing.Ingest(ctx, second)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Committed != 1 {
		t.Fatalf("committed=%d want 1", report.Committed)
	}

	bars, _ := prices.Query(ctx, "AAPL",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if len(bars) != 1 {
		t.Fatalf("stored bars=%d want 1 after upsert", len(bars))
	}
	if bars[0].Close != 186 {
		t.Fatalf("close=%v want the superseding value", bars[0].Close)
	}
}

func TestPriceIngestRejectsOutOfOrderTimestamps(t *testing.T) {
	ing, prices, _ := newPriceFixture()

	rows := []models.RawPriceRow{
		rawRow("AAPL", "2024-01-03", "184", "186", "183", "185", "1000"),
		rawRow("MSFT", "2024-01-02", "400", "402", "399", "401", "500"), // other instrument, independent order
		rawRow("AAPL", "2024-01-02", "184", "186", "183", "185", "1000"), // regressed
		rawRow("AAPL", "2024-01-03", "184", "187", "183", "186", "1100"), // repeated
		rawRow("AAPL", "2024-01-04", "185", "187", "184", "186", "1200"),
	}
	report, err := ing.Ingest(context.Background(), rows)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Committed != 3 {
		t.Fatalf("committed=%d want 3", report.Committed)
	}
	if report.Rejected != 2 {
		t.Fatalf("rejected=%d want 2", report.Rejected)
	}
	for _, re := range report.Errors {
		if re.Reason != "timestamp out of order" {
			t.Fatalf("reason=%q want timestamp out of order", re.Reason)
		}
		if re.Index != 2 && re.Index != 3 {
			t.Fatalf("rejected index=%d want 2 or 3", re.Index)
		}
	}

	bars, err := prices.Query(context.Background(), "AAPL",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("stored AAPL bars=%d want 2", len(bars))
	}
}

func TestPriceIngestStorageFailureAbortsBatch(t *testing.T) {
	ing, prices, _ := newPriceFixture()
	prices.Fail(models.ErrStorageUnavailable)

	rows := []models.RawPriceRow{
		rawRow("AAPL", "2024-01-02", "184", "186", "183", "185", "1000"),
		rawRow("MSFT", "2024-01-02", "400", "402", "399", "401", "500"),
	}
	report, err := ing.Ingest(context.Background(), rows)
	if !errors.Is(err, models.ErrStorageUnavailable) {
		t.Fatalf("err=%v want ErrStorageUnavailable", err)
	}
	if report.Committed != 0 {
		t.Fatalf("committed=%d want 0 on abort", report.Committed)
	}

	// retry after recovery commits the full batch
	prices.Fail(nil)
	report, err = ing.Ingest(context.Background(), rows)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if report.Committed != 2 {
		t.Fatalf("committed=%d want 2 on retry", report.Committed)
	}
}

func TestPriceIngestMakesFusionReadObserveWrite(t *testing.T) {
	ing, _, fs := newPriceFixture()
	ctx := context.Background()

	bucket := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	// warm the bucket empty
	if rec, err := fs.Get(ctx, "AAPL", bucket); err != nil || len(rec.Bars) != 0 {
		t.Fatalf("warm get: rec=%v err=%v", rec, err)
	}

	if _, err := ing.Ingest(ctx, []models.RawPriceRow{
		rawRow("AAPL", "2024-01-02T10:00:00Z", "184", "186", "183", "185", "1000"),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	rec, err := fs.Get(ctx, "AAPL", bucket)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rec.Bars) != 1 {
		t.Fatalf("bars=%d want 1; fusion read must observe the acknowledged ingest", len(rec.Bars))
	}
}
