package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/inkwell-analytics/insight/internal/models"
)

// InMemoryWorkItemStore stores work items in memory. It backs the
// service when PostgreSQL is unavailable and is the store used in tests.
type InMemoryWorkItemStore struct {
	mu    sync.RWMutex
	items map[string]*models.WorkItem
}

// NewInMemoryWorkItemStore creates an empty in-memory store.
func NewInMemoryWorkItemStore() *InMemoryWorkItemStore {
	return &InMemoryWorkItemStore{
		items: make(map[string]*models.WorkItem),
	}
}

func (s *InMemoryWorkItemStore) Upsert(ctx context.Context, item *models.WorkItem) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.items[item.ItemID] = &cp
	return nil
}

func (s *InMemoryWorkItemStore) UpsertBatch(ctx context.Context, items []*models.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if item == nil {
			continue
		}
		cp := *item
		s.items[item.ItemID] = &cp
	}
	return nil
}

func (s *InMemoryWorkItemStore) GetByItemID(ctx context.Context, itemID string) (*models.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if item, ok := s.items[itemID]; ok {
		cp := *item
		return &cp, nil
	}
	return nil, nil
}

func (s *InMemoryWorkItemStore) ListRange(ctx context.Context, q ItemQuery) ([]*models.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.selectLocked(q.FromMs, q.ToMs, func(item *models.WorkItem) bool {
		if q.Status != "" && item.Status != q.Status {
			return false
		}
		if q.Turnaround != "" && item.Turnaround != q.Turnaround {
			return false
		}
		return true
	})

	sortBySubmitted(matched, true)
	return matched, nil
}

func (s *InMemoryWorkItemStore) ListUnassigned(ctx context.Context, q PageQuery) ([]*models.WorkItem, bool, error) {
	q.Status = models.StatusUnassigned
	return s.listPage(q, func(item *models.WorkItem) bool {
		return item.Status == models.StatusUnassigned
	})
}

func (s *InMemoryWorkItemStore) ListLate(ctx context.Context, q PageQuery) ([]*models.WorkItem, bool, error) {
	return s.listPage(q, func(item *models.WorkItem) bool {
		if q.Status != "" && item.Status != q.Status {
			return false
		}
		return item.IsLate != nil && *item.IsLate
	})
}

func (s *InMemoryWorkItemStore) listPage(q PageQuery, predicate func(*models.WorkItem) bool) ([]*models.WorkItem, bool, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	s.mu.RLock()
	matched := s.selectLocked(q.FromMs, q.ToMs, func(item *models.WorkItem) bool {
		if !predicate(item) {
			return false
		}
		if q.Turnaround != "" && item.Turnaround != q.Turnaround {
			return false
		}
		if q.DraftBucket != "" && models.ToDraftBucket(item.Draft) != q.DraftBucket {
			return false
		}
		if q.Channel != "" && item.StudentChannel != q.Channel {
			return false
		}
		if q.MultiDraft != nil {
			isMulti := item.StudentMultiDraft != nil && *item.StudentMultiDraft
			if isMulti != *q.MultiDraft {
				return false
			}
		}
		return true
	})
	s.mu.RUnlock()

	sortBySubmitted(matched, false)

	if q.Offset >= len(matched) {
		return nil, false, nil
	}
	matched = matched[q.Offset:]
	hasMore := len(matched) > q.Limit
	if hasMore {
		matched = matched[:q.Limit]
	}
	return matched, hasMore, nil
}

func (s *InMemoryWorkItemStore) CountAll(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.items)), nil
}

// selectLocked copies items within the window matching the predicate.
// Items without a normalized submitted-at never match. Caller holds the
// read lock.
func (s *InMemoryWorkItemStore) selectLocked(fromMs, toMs int64, predicate func(*models.WorkItem) bool) []*models.WorkItem {
	matched := make([]*models.WorkItem, 0)
	for _, item := range s.items {
		ms, ok := item.SubmittedMs()
		if !ok || ms < fromMs || ms > toMs {
			continue
		}
		if !predicate(item) {
			continue
		}
		cp := *item
		matched = append(matched, &cp)
	}
	return matched
}

func sortBySubmitted(items []*models.WorkItem, ascending bool) {
	sort.SliceStable(items, func(a, b int) bool {
		am, _ := items[a].SubmittedMs()
		bm, _ := items[b].SubmittedMs()
		if ascending {
			return am < bm
		}
		return am > bm
	})
}
