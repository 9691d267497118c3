package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-analytics/insight/internal/models"
)

func seedItem(id string, ms int64, status string) *models.WorkItem {
	m := ms
	return &models.WorkItem{
		ItemID:        id,
		Draft:         1,
		Turnaround:    "24h",
		Status:        status,
		SubmittedAtMs: &m,
	}
}

func TestInMemoryUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryWorkItemStore()

	item := seedItem("i1", 100, "Completed")
	require.NoError(t, store.Upsert(ctx, item))

	got, err := store.GetByItemID(ctx, "i1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "i1", got.ItemID)

	// Reads are copies; mutating the result does not touch the store.
	got.Status = "mutated"
	again, err := store.GetByItemID(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Completed", again.Status)

	missing, err := store.GetByItemID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInMemoryUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryWorkItemStore()

	require.NoError(t, store.Upsert(ctx, seedItem("i1", 100, "Unassigned")))
	require.NoError(t, store.Upsert(ctx, seedItem("i1", 100, "Completed")))

	count, err := store.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := store.GetByItemID(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Completed", got.Status)
}

func TestInMemoryListRange(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryWorkItemStore()

	require.NoError(t, store.UpsertBatch(ctx, []*models.WorkItem{
		seedItem("a", 300, "Completed"),
		seedItem("b", 100, "Completed"),
		seedItem("c", 200, "Unassigned"),
		seedItem("d", 900, "Completed"),
		{ItemID: "no-date", Draft: 1, Turnaround: "24h", Status: "Completed"},
	}))

	items, err := store.ListRange(ctx, ItemQuery{FromMs: 100, ToMs: 300})
	require.NoError(t, err)

	require.Len(t, items, 3)
	assert.Equal(t, "b", items[0].ItemID)
	assert.Equal(t, "c", items[1].ItemID)
	assert.Equal(t, "a", items[2].ItemID)
}

func TestInMemoryListRangePushdown(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryWorkItemStore()

	fast := seedItem("fast", 100, "Completed")
	fast.Turnaround = "12h"
	require.NoError(t, store.UpsertBatch(ctx, []*models.WorkItem{
		fast,
		seedItem("slow", 200, "Completed"),
		seedItem("open", 300, "Unassigned"),
	}))

	items, err := store.ListRange(ctx, ItemQuery{FromMs: 0, ToMs: 1000, Status: "Completed"})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = store.ListRange(ctx, ItemQuery{FromMs: 0, ToMs: 1000, Turnaround: "12h"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fast", items[0].ItemID)
}

func TestInMemoryListUnassignedPagination(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryWorkItemStore()

	require.NoError(t, store.UpsertBatch(ctx, []*models.WorkItem{
		seedItem("u1", 100, models.StatusUnassigned),
		seedItem("u2", 200, models.StatusUnassigned),
		seedItem("u3", 300, models.StatusUnassigned),
		seedItem("done", 400, "Completed"),
	}))

	page, hasMore, err := store.ListUnassigned(ctx, PageQuery{FromMs: 0, ToMs: 1000, Limit: 2})
	require.NoError(t, err)
	assert.True(t, hasMore)
	require.Len(t, page, 2)
	assert.Equal(t, "u3", page[0].ItemID)
	assert.Equal(t, "u2", page[1].ItemID)

	page, hasMore, err = store.ListUnassigned(ctx, PageQuery{FromMs: 0, ToMs: 1000, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, page, 1)
	assert.Equal(t, "u1", page[0].ItemID)

	page, hasMore, err = store.ListUnassigned(ctx, PageQuery{FromMs: 0, ToMs: 1000, Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Empty(t, page)
}

func TestInMemoryListLate(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryWorkItemStore()

	late := seedItem("late", 100, "In Progress")
	flag := true
	late.IsLate = &flag

	onTime := seedItem("ontime", 200, "In Progress")
	notLate := false
	onTime.IsLate = &notLate

	require.NoError(t, store.UpsertBatch(ctx, []*models.WorkItem{
		late, onTime, seedItem("unknown", 300, "In Progress"),
	}))

	page, hasMore, err := store.ListLate(ctx, PageQuery{FromMs: 0, ToMs: 1000, Limit: 10})
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, page, 1)
	assert.Equal(t, "late", page[0].ItemID)
}

func TestInMemoryListPageDimensionFilters(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryWorkItemStore()

	multi := seedItem("m", 100, models.StatusUnassigned)
	multiFlag := true
	multi.StudentMultiDraft = &multiFlag
	multi.StudentChannel = "Referral"
	multi.Draft = 6

	single := seedItem("s", 200, models.StatusUnassigned)
	single.StudentChannel = "Ads"

	require.NoError(t, store.UpsertBatch(ctx, []*models.WorkItem{multi, single}))

	page, _, err := store.ListUnassigned(ctx, PageQuery{FromMs: 0, ToMs: 1000, Limit: 10, DraftBucket: "5+"})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "m", page[0].ItemID)

	page, _, err = store.ListUnassigned(ctx, PageQuery{FromMs: 0, ToMs: 1000, Limit: 10, Channel: "Ads"})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "s", page[0].ItemID)

	wantMulti := true
	page, _, err = store.ListUnassigned(ctx, PageQuery{FromMs: 0, ToMs: 1000, Limit: 10, MultiDraft: &wantMulti})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "m", page[0].ItemID)
}
