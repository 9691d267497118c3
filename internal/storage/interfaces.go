package storage

import (
	"context"

	"github.com/inkwell-analytics/insight/internal/models"
)

// ItemQuery selects work items in a submitted-at window. Status and
// turnaround are optional equality filters the store pushes down; the
// remaining dashboard dimensions are applied by the caller after the
// fetch.
type ItemQuery struct {
	FromMs int64
	ToMs   int64

	Status     string
	Turnaround string
}

// PageQuery selects a page of an operations listing. All dimension
// filters are pushed down; empty strings and nil mean unfiltered.
type PageQuery struct {
	FromMs int64
	ToMs   int64

	Turnaround  string
	Status      string
	DraftBucket string
	Channel     string
	MultiDraft  *bool

	Limit  int
	Offset int
}

// WorkItemStore defines storage operations for essay work items.
type WorkItemStore interface {
	Upsert(ctx context.Context, item *models.WorkItem) error
	UpsertBatch(ctx context.Context, items []*models.WorkItem) error
	GetByItemID(ctx context.Context, itemID string) (*models.WorkItem, error)

	// ListRange returns items whose normalized submitted-at falls within
	// [FromMs, ToMs]. Items without a normalized timestamp never match.
	ListRange(ctx context.Context, q ItemQuery) ([]*models.WorkItem, error)

	// ListUnassigned returns a page of unassigned items, newest first,
	// plus whether more pages remain.
	ListUnassigned(ctx context.Context, q PageQuery) ([]*models.WorkItem, bool, error)

	// ListLate returns a page of late items, newest first, plus whether
	// more pages remain.
	ListLate(ctx context.Context, q PageQuery) ([]*models.WorkItem, bool, error)

	CountAll(ctx context.Context) (int64, error)
}
