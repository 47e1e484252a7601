package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
)

// MemNewsStore is an in-process NewsStore keyed by dedup hash.
type MemNewsStore struct {
	mu    sync.RWMutex
	items map[string]models.NewsItem // dedup hash -> item

	failWith error
}

func NewMemNewsStore() *MemNewsStore {
	return &MemNewsStore{items: make(map[string]models.NewsItem)}
}

// Fail makes every subsequent write and read return err. Fail(nil) clears it.
func (s *MemNewsStore) Fail(err error) {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
}

func (s *MemNewsStore) Init(ctx context.Context) error { return nil }

func (s *MemNewsStore) Insert(ctx context.Context, item *models.NewsItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.items[item.DedupHash] = *item
	return nil
}

func (s *MemNewsStore) Seen(ctx context.Context, dedupHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	_, ok := s.items[dedupHash]
	return ok, nil
}

func (s *MemNewsStore) QueryWindow(ctx context.Context, instrument string, from, to time.Time) ([]models.NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := make([]models.NewsItem, 0, 16)
	for _, it := range s.items {
		if it.PublishedAt.Before(from) || it.PublishedAt.After(to) {
			continue
		}
		if instrument != "" && !it.HasEntity(instrument) {
			continue
		}
		out = append(out, it)
	}
	sortNewsByTime(out)
	return out, nil
}

func (s *MemNewsStore) Scan(ctx context.Context, instrument string) ([]models.NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := make([]models.NewsItem, 0, len(s.items))
	for _, it := range s.items {
		if instrument != "" && !it.HasEntity(instrument) {
			continue
		}
		out = append(out, it)
	}
	sortNewsByTime(out)
	return out, nil
}

func (s *MemNewsStore) Health(ctx context.Context) error { return nil }

func (s *MemNewsStore) Close() error { return nil }

func sortNewsByTime(items []models.NewsItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].PublishedAt.Equal(items[j].PublishedAt) {
			return items[i].PublishedAt.Before(items[j].PublishedAt)
		}
		return items[i].DedupHash < items[j].DedupHash
	})
}

var _ domrepo.NewsStore = (*MemNewsStore)(nil)
