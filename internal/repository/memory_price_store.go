package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
)

// MemPriceStore is an in-process PriceStore. It backs the "memory" backend
// and keeps the same upsert-by-key semantics as the ClickHouse store.
type MemPriceStore struct {
	mu   sync.RWMutex
	bars map[string]map[int64]models.PriceBar // instrument -> ts unix ms -> bar

	failWith error
}

func NewMemPriceStore() *MemPriceStore {
	return &MemPriceStore{bars: make(map[string]map[int64]models.PriceBar)}
}

// Fail makes every subsequent write and read return err. Fail(nil) clears it.
func (s *MemPriceStore) Fail(err error) {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
}

func (s *MemPriceStore) Init(ctx context.Context) error { return nil }

func (s *MemPriceStore) UpsertBatch(ctx context.Context, bars []models.PriceBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for _, b := range bars {
		m, ok := s.bars[b.Instrument]
		if !ok {
			m = make(map[int64]models.PriceBar)
			s.bars[b.Instrument] = m
		}
		m[b.Timestamp.UnixMilli()] = b
	}
	return nil
}

func (s *MemPriceStore) Query(ctx context.Context, instrument string, from, to time.Time) ([]models.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	m := s.bars[instrument]
	out := make([]models.PriceBar, 0, len(m))
	for _, b := range m {
		if b.Timestamp.Before(from) || b.Timestamp.After(to) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemPriceStore) Health(ctx context.Context) error { return nil }

func (s *MemPriceStore) Close() error { return nil }

var _ domrepo.PriceStore = (*MemPriceStore)(nil)
