package fusion

import (
	"context"
	"sync"
	"testing"
	"time"

	"FinFuse/internal/domain/models"
	internalrepo "FinFuse/internal/repository"
)

var day = 24 * time.Hour

func bar(instrument string, ts time.Time, close float64) models.PriceBar {
	return models.PriceBar{
		Instrument: instrument, Timestamp: ts,
		Open: close, High: close, Low: close, Close: close, Volume: 100,
	}
}

func newsItem(hash string, ts time.Time, entities ...string) *models.NewsItem {
	return &models.NewsItem{
		DedupHash: hash, SourceID: "src-" + hash, PublishedAt: ts,
		Title: "t", Text: "x", Entities: entities,
	}
}

func TestGetJoinsBarsAndNews(t *testing.T) {
	ctx := context.Background()
	prices := internalrepo.NewMemPriceStore()
	news := internalrepo.NewMemNewsStore()
	s := NewStore(prices, news, day, 2*time.Hour)

	bucket := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	inBar := bar("AAPL", bucket.Add(10*time.Hour), 185)
	outBar := bar("AAPL", bucket.Add(day), 190) // next bucket
	if err := prices.UpsertBatch(ctx, []models.PriceBar{inBar, outBar}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	inside := newsItem("h1", bucket.Add(20*time.Hour), "AAPL")
	// published after the bucket but inside the lag tolerance
	lagged := newsItem("h2", bucket.Add(day).Add(2*time.Hour), "AAPL")
	// one nanosecond past the tolerance
	late := newsItem("h3", bucket.Add(day).Add(2*time.Hour).Add(time.Nanosecond), "AAPL")
	otherEntity := newsItem("h4", bucket.Add(5*time.Hour), "MSFT")
	for _, it := range []*models.NewsItem{inside, lagged, late, otherEntity} {
		if err := news.Insert(ctx, it); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	rec, err := s.Get(ctx, "AAPL", bucket)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rec.Bars) != 1 || !rec.Bars[0].Timestamp.Equal(inBar.Timestamp) {
		t.Fatalf("bars=%v want only the in-bucket bar", rec.Bars)
	}
	if len(rec.News) != 2 {
		t.Fatalf("news=%d want 2 (inside + lag-tolerated)", len(rec.News))
	}
	for _, it := range rec.News {
		if it.DedupHash == "h3" || it.DedupHash == "h4" {
			t.Fatalf("unexpected item %s in bucket", it.DedupHash)
		}
	}
}

func TestGetTakesNewsPublishedBeforeBucket(t *testing.T) {
	ctx := context.Background()
	prices := internalrepo.NewMemPriceStore()
	news := internalrepo.NewMemNewsStore()
	lag := 2 * time.Hour
	s := NewStore(prices, news, day, lag)

	bucket := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	// published before the bucket start but inside the lag tolerance
	early := newsItem("h1", bucket.Add(-time.Hour), "AAPL")
	// one nanosecond before the tolerance
	tooEarly := newsItem("h2", bucket.Add(-lag).Add(-time.Nanosecond), "AAPL")
	for _, it := range []*models.NewsItem{early, tooEarly} {
		if err := news.Insert(ctx, it); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	rec, err := s.Get(ctx, "AAPL", bucket)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rec.News) != 1 || rec.News[0].DedupHash != "h1" {
		t.Fatalf("news=%d want only the lag-tolerated early item", len(rec.News))
	}
}

func TestInvalidateNewsMarksFollowingBucket(t *testing.T) {
	ctx := context.Background()
	prices := internalrepo.NewMemPriceStore()
	news := internalrepo.NewMemNewsStore()
	lag := 2 * time.Hour
	s := NewStore(prices, news, day, lag)

	cur := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	next := cur.Add(day)

	// warm both buckets
	if _, err := s.Get(ctx, "AAPL", cur); err != nil {
		t.Fatalf("get cur: %v", err)
	}
	if _, err := s.Get(ctx, "AAPL", next); err != nil {
		t.Fatalf("get next: %v", err)
	}

	// item published 1h before the next bucket joins it too
	it := newsItem("h1", next.Add(-time.Hour), "AAPL")
	if err := news.Insert(ctx, it); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.InvalidateNews(it)
	if s.DirtyCount() != 2 {
		t.Fatalf("dirty=%d want 2", s.DirtyCount())
	}

	recNext, err := s.Get(ctx, "AAPL", next)
	if err != nil {
		t.Fatalf("get next: %v", err)
	}
	if len(recNext.News) != 1 {
		t.Fatalf("next bucket news=%d want 1", len(recNext.News))
	}
}

func TestInvalidateBarTriggersRebuild(t *testing.T) {
	ctx := context.Background()
	prices := internalrepo.NewMemPriceStore()
	news := internalrepo.NewMemNewsStore()
	s := NewStore(prices, news, day, 0)

	bucket := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	rec, err := s.Get(ctx, "AAPL", bucket)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rec.Bars) != 0 {
		t.Fatalf("expected empty bucket")
	}

	// a read after an acknowledged write must observe the write
	b := bar("AAPL", bucket.Add(time.Hour), 185)
	if err := prices.UpsertBatch(ctx, []models.PriceBar{b}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	s.InvalidateBar("AAPL", b.Timestamp)

	rec, err = s.Get(ctx, "AAPL", bucket)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rec.Bars) != 1 {
		t.Fatalf("bars=%d want 1 after invalidate", len(rec.Bars))
	}
}

func TestInvalidateNewsMarksLagCoveredBuckets(t *testing.T) {
	ctx := context.Background()
	prices := internalrepo.NewMemPriceStore()
	news := internalrepo.NewMemNewsStore()
	lag := 2 * time.Hour
	s := NewStore(prices, news, day, lag)

	prev := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := prev.Add(day)

	// warm both buckets
	if _, err := s.Get(ctx, "AAPL", prev); err != nil {
		t.Fatalf("get prev: %v", err)
	}
	if _, err := s.Get(ctx, "AAPL", cur); err != nil {
		t.Fatalf("get cur: %v", err)
	}

	// item published 1h into the current bucket joins the previous bucket
	// too via the lag tolerance
	it := newsItem("h1", cur.Add(time.Hour), "AAPL")
	if err := news.Insert(ctx, it); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.InvalidateNews(it)
	if s.DirtyCount() != 2 {
		t.Fatalf("dirty=%d want 2", s.DirtyCount())
	}

	recPrev, err := s.Get(ctx, "AAPL", prev)
	if err != nil {
		t.Fatalf("get prev: %v", err)
	}
	if len(recPrev.News) != 1 {
		t.Fatalf("previous bucket news=%d want 1", len(recPrev.News))
	}
	recCur, err := s.Get(ctx, "AAPL", cur)
	if err != nil {
		t.Fatalf("get cur: %v", err)
	}
	if len(recCur.News) != 1 {
		t.Fatalf("current bucket news=%d want 1", len(recCur.News))
	}
}

// countingPriceStore wraps the memory store to count Query calls.
type countingPriceStore struct {
	*internalrepo.MemPriceStore
	mu      sync.Mutex
	queries int
}

func (c *countingPriceStore) Query(ctx context.Context, instrument string, from, to time.Time) ([]models.PriceBar, error) {
	c.mu.Lock()
	c.queries++
	c.mu.Unlock()
	time.Sleep(5 * time.Millisecond) // widen the race window
	return c.MemPriceStore.Query(ctx, instrument, from, to)
}

func TestConcurrentGetsCollapseIntoOneRebuild(t *testing.T) {
	ctx := context.Background()
	prices := &countingPriceStore{MemPriceStore: internalrepo.NewMemPriceStore()}
	news := internalrepo.NewMemNewsStore()
	s := NewStore(prices, news, day, 0)

	bucket := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Get(ctx, "AAPL", bucket); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()

	prices.mu.Lock()
	queries := prices.queries
	prices.mu.Unlock()
	if queries != 1 {
		t.Fatalf("rebuild queries=%d want 1", queries)
	}
}

func TestGetRangeReturnsAscendingBuckets(t *testing.T) {
	ctx := context.Background()
	prices := internalrepo.NewMemPriceStore()
	news := internalrepo.NewMemNewsStore()
	s := NewStore(prices, news, day, 0)

	from := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 3, 6, 0, 0, 0, time.UTC)
	recs, err := s.GetRange(ctx, "AAPL", from, to)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records=%d want 3", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if !recs[i].BucketStart.After(recs[i-1].BucketStart) {
			t.Fatalf("buckets not ascending at %d", i)
		}
	}
}

func TestStorageErrorPropagates(t *testing.T) {
	ctx := context.Background()
	prices := internalrepo.NewMemPriceStore()
	news := internalrepo.NewMemNewsStore()
	s := NewStore(prices, news, day, 0)

	prices.Fail(models.ErrStorageUnavailable)
	if _, err := s.Get(ctx, "AAPL", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatalf("expected storage error")
	}
}
