package retrieval

import (
	"context"
	"testing"
	"time"

	"FinFuse/internal/domain/models"
	internalrepo "FinFuse/internal/repository"
	"FinFuse/internal/service/fusion"
	"FinFuse/internal/service/nlp"
	"FinFuse/pkg/config"
)

var day = 24 * time.Hour

var instruments = []config.Instrument{
	{Symbol: "AAPL", Aliases: []string{"apple"}},
	{Symbol: "MSFT", Aliases: []string{"microsoft"}},
}

func newFixture() (*Service, *internalrepo.MemPriceStore, *internalrepo.MemNewsStore) {
	prices := internalrepo.NewMemPriceStore()
	news := internalrepo.NewMemNewsStore()
	fs := fusion.NewStore(prices, news, day, 0)
	annotator := nlp.NewLocalAnnotator(instruments, 64)
	return NewService(fs, news, annotator), prices, news
}

func seedBars(t *testing.T, prices *internalrepo.MemPriceStore, instrument string, days int, start time.Time) {
	t.Helper()
	bars := make([]models.PriceBar, 0, days)
	for i := 0; i < days; i++ {
		ts := start.Add(time.Duration(i) * day)
		px := 100 + float64(i)
		bars = append(bars, models.PriceBar{
			Instrument: instrument, Timestamp: ts,
			Open: px, High: px + 1, Low: px - 1, Close: px, Volume: 1000,
		})
	}
	if err := prices.UpsertBatch(context.Background(), bars); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func seedNews(t *testing.T, news *internalrepo.MemNewsStore, annotator *nlp.LocalAnnotator, hash, title, text string, ts time.Time) {
	t.Helper()
	ann, _ := annotator.Annotate(context.Background(), title, text)
	if err := news.Insert(context.Background(), &models.NewsItem{
		DedupHash: hash, SourceID: "s-" + hash, PublishedAt: ts,
		Title: title, Text: text,
		Entities: ann.Entities, Sentiment: ann.Sentiment, Embedding: ann.Embedding,
	}); err != nil {
		t.Fatalf("seed news: %v", err)
	}
}

func TestPriceHistoryOrderedAndClipped(t *testing.T) {
	svc, prices, _ := newFixture()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedBars(t, prices, "AAPL", 10, start)

	from := start.Add(2 * day)
	to := start.Add(6 * day)
	bars, err := svc.PriceHistory(context.Background(), "AAPL", from, to)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(bars) != 5 {
		t.Fatalf("bars=%d want 5", len(bars))
	}
	for i, b := range bars {
		if b.Timestamp.Before(from) || b.Timestamp.After(to) {
			t.Fatalf("bar %d outside range: %v", i, b.Timestamp)
		}
		if i > 0 && bars[i].Timestamp.Before(bars[i-1].Timestamp) {
			t.Fatalf("timestamps decrease at %d", i)
		}
	}
}

func TestPriceHistoryEmptyForInvertedRange(t *testing.T) {
	svc, prices, _ := newFixture()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedBars(t, prices, "AAPL", 3, start)

	bars, err := svc.PriceHistory(context.Background(), "AAPL", start.Add(day), start)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(bars) != 0 {
		t.Fatalf("bars=%d want 0", len(bars))
	}
}

func TestRelevantNewsRanking(t *testing.T) {
	svc, _, news := newFixture()
	annotator := nlp.NewLocalAnnotator(instruments, 64)
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	seedNews(t, news, annotator, "h1", "Apple earnings beat estimates", "Apple reported strong quarterly earnings.", base)
	seedNews(t, news, annotator, "h2", "Microsoft cloud growth", "Azure revenue expanded again.", base.Add(time.Hour))
	seedNews(t, news, annotator, "h3", "Apple earnings beat estimates", "Apple reported strong quarterly earnings.", base.Add(2*time.Hour))

	scored, err := svc.RelevantNews(context.Background(), "apple quarterly earnings", "", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(scored) != 3 {
		t.Fatalf("results=%d want 3", len(scored))
	}
	for i := 1; i < len(scored); i++ {
		if scored[i].Score > scored[i-1].Score {
			t.Fatalf("scores not descending at %d", i)
		}
	}
	// h1 and h3 share identical text and therefore identical scores; the
	// newer item wins the tie
	if scored[0].Item.DedupHash != "h3" || scored[1].Item.DedupHash != "h1" {
		t.Fatalf("tie order: got %s then %s want h3 then h1",
			scored[0].Item.DedupHash, scored[1].Item.DedupHash)
	}
}

func TestRelevantNewsTopKZero(t *testing.T) {
	svc, _, news := newFixture()
	annotator := nlp.NewLocalAnnotator(instruments, 64)
	seedNews(t, news, annotator, "h1", "Apple gains", "Apple rose.", time.Now().UTC())

	for _, k := range []int{0, -1} {
		scored, err := svc.RelevantNews(context.Background(), "apple", "", k)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(scored) != 0 {
			t.Fatalf("topK=%d results=%d want 0", k, len(scored))
		}
	}
}

func TestRelevantNewsInstrumentFilter(t *testing.T) {
	svc, _, news := newFixture()
	annotator := nlp.NewLocalAnnotator(instruments, 64)
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	seedNews(t, news, annotator, "h1", "Apple gains", "Apple rose on earnings.", base)
	seedNews(t, news, annotator, "h2", "Microsoft gains", "Microsoft rose on earnings.", base)

	scored, err := svc.RelevantNews(context.Background(), "earnings", "MSFT", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(scored) != 1 || scored[0].Item.DedupHash != "h2" {
		t.Fatalf("expected only the Microsoft item, got %v", scored)
	}
}
