package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inkwell-analytics/insight/internal/analytics"
	"github.com/inkwell-analytics/insight/internal/models"
	"github.com/inkwell-analytics/insight/internal/storage"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type itemOpt func(*models.WorkItem)

func withRevenue(v float64) itemOpt {
	return func(i *models.WorkItem) { i.Revenue = v }
}

func withStudent(id, channel string) itemOpt {
	return func(i *models.WorkItem) {
		i.StudentID = id
		i.StudentChannel = channel
	}
}

func withStatus(status string) itemOpt {
	return func(i *models.WorkItem) {
		i.Status = status
		i.IsCompleted = status == "Completed"
	}
}

func withDraft(draft int) itemOpt {
	return func(i *models.WorkItem) { i.Draft = draft }
}

func withTurnaround(turnaround string) itemOpt {
	return func(i *models.WorkItem) { i.Turnaround = turnaround }
}

func withRating(rating float64) itemOpt {
	return func(i *models.WorkItem) { i.Rating = &rating }
}

func withRemaining(hours float64, flagged bool) itemOpt {
	return func(i *models.WorkItem) {
		i.TimeRemainingHours = &hours
		if flagged {
			late := hours < 0
			i.IsLate = &late
		}
	}
}

func seed(id string, daysAgo int, opts ...itemOpt) *models.WorkItem {
	ms := fixedNow.AddDate(0, 0, -daysAgo).UnixMilli()
	item := &models.WorkItem{
		ItemID:        id,
		Draft:         1,
		WordCount:     500,
		Turnaround:    "24h",
		Status:        "Completed",
		IsCompleted:   true,
		SubmittedAtMs: &ms,
	}
	for _, opt := range opts {
		opt(item)
	}
	return item
}

func newTestService(t *testing.T, items ...*models.WorkItem) *Service {
	t.Helper()
	store := storage.NewInMemoryWorkItemStore()
	require.NoError(t, store.UpsertBatch(context.Background(), items))

	svc := NewService(store, nil, zap.NewNop(), nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func defaultFilters() analytics.Filters {
	return analytics.Filters{DateRange: analytics.DateRange{Preset: analytics.Range90d}}
}

func TestOverview(t *testing.T) {
	svc := newTestService(t,
		seed("a", 2, withRevenue(100), withStudent("s1", "Referral"), withRating(4)),
		seed("b", 2, withRevenue(50), withStudent("s2", "Ads"), withDraft(2), withRating(5)),
		seed("u", 1, withRevenue(40), withStatus(models.StatusUnassigned)),
		seed("l", 3, withRemaining(-5, true)),
	)

	resp, err := svc.Overview(context.Background(), defaultFilters())
	require.NoError(t, err)

	assert.Equal(t, 190.0, resp.KPIs.TotalRevenue)
	assert.Equal(t, 1, resp.KPIs.UnassignedCount)
	assert.Equal(t, 40.0, resp.KPIs.LostRevenue)
	assert.Equal(t, 1, resp.LateCount)

	require.Len(t, resp.Series.RevenueOverTime, 3)
	assert.Equal(t, 0.0, resp.Series.RevenueOverTime[0].Value)
	assert.Equal(t, 150.0, resp.Series.RevenueOverTime[1].Value)
	assert.Equal(t, 40.0, resp.Series.RevenueOverTime[2].Value)

	require.Len(t, resp.Series.VolumeOverTime, 3)
	assert.Equal(t, 2.0, resp.Series.VolumeOverTime[1].Value)

	require.Len(t, resp.Breakdowns.ByChannel, 3)
	assert.Equal(t, analytics.BreakdownEntry{Label: "Referral", Value: 100}, resp.Breakdowns.ByChannel[0])
	assert.Equal(t, analytics.BreakdownEntry{Label: "Ads", Value: 50}, resp.Breakdowns.ByChannel[1])
	assert.Equal(t, analytics.BreakdownEntry{Label: "Unknown", Value: 40}, resp.Breakdowns.ByChannel[2])

	require.Len(t, resp.Ratings.ByDraft, 2)
	assert.Equal(t, analytics.RatingByDraft{Draft: 1, AvgRating: 4}, resp.Ratings.ByDraft[0])

	require.Len(t, resp.Tables.UnassignedEssays, 1)
	assert.Equal(t, "u", resp.Tables.UnassignedEssays[0].ItemID)

	require.Len(t, resp.Tables.LateDeliveries, 1)
	assert.Equal(t, "l", resp.Tables.LateDeliveries[0].ItemID)
	assert.Equal(t, -5.0, resp.Tables.LateDeliveries[0].TimeRemainingHours)
}

func TestOverviewExcludesItemsOutsideRange(t *testing.T) {
	svc := newTestService(t,
		seed("recent", 2, withRevenue(10)),
		seed("ancient", 200, withRevenue(1000)),
	)

	resp, err := svc.Overview(context.Background(), defaultFilters())
	require.NoError(t, err)
	assert.Equal(t, 10.0, resp.KPIs.TotalRevenue)
}

func TestOverviewTurnaroundFilter(t *testing.T) {
	svc := newTestService(t,
		seed("fast", 1, withRevenue(10), withTurnaround("12h")),
		seed("slow", 1, withRevenue(90), withTurnaround("1 week")),
	)

	resp, err := svc.Overview(context.Background(), analytics.Filters{
		DateRange:  analytics.DateRange{Preset: analytics.Range7d},
		Turnaround: "12h",
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, resp.KPIs.TotalRevenue)
}

func TestRevenue(t *testing.T) {
	svc := newTestService(t,
		seed("a", 1, withRevenue(60), withTurnaround("24h"), withStudent("s1", "Referral")),
		seed("b", 2, withRevenue(40), withTurnaround("48h")),
	)

	resp, err := svc.Revenue(context.Background(), defaultFilters())
	require.NoError(t, err)

	assert.Equal(t, 100.0, resp.KPIs.TotalRevenue)
	require.Len(t, resp.Breakdowns.ByTurnaround, 2)
	assert.Equal(t, analytics.BreakdownEntry{Label: "24h", Value: 60}, resp.Breakdowns.ByTurnaround[0])
	assert.Equal(t, analytics.BreakdownEntry{Label: "48h", Value: 40}, resp.Breakdowns.ByTurnaround[1])

	require.Len(t, resp.Breakdowns.ByChannel, 2)
	assert.Equal(t, "Referral", resp.Breakdowns.ByChannel[0].Label)
	assert.Equal(t, "Unknown", resp.Breakdowns.ByChannel[1].Label)
}

func TestCustomers(t *testing.T) {
	multi := true
	withLocationAndMulti := func(location string, isMulti bool) itemOpt {
		return func(i *models.WorkItem) {
			i.StudentLocation = location
			if isMulti {
				i.StudentMultiDraft = &multi
			}
		}
	}

	svc := newTestService(t,
		seed("a", 1, withRevenue(30), withStudent("s1", "Referral"), withLocationAndMulti("Berlin, Germany", true)),
		seed("b", 2, withRevenue(5), withStudent("s2", "Ads"), withLocationAndMulti("", false)),
	)

	resp, err := svc.Customers(context.Background(), defaultFilters())
	require.NoError(t, err)

	require.Len(t, resp.Breakdowns.ByLocation, 2)
	assert.Equal(t, analytics.BreakdownEntry{Label: "Berlin, Germany", Value: 30}, resp.Breakdowns.ByLocation[0])
	assert.Equal(t, analytics.BreakdownEntry{Label: "Unknown", Value: 5}, resp.Breakdowns.ByLocation[1])

	require.Len(t, resp.Tables.ChannelPerformance, 2)
	assert.Equal(t, analytics.ChannelPerformance{
		Channel:        "Referral",
		Customers:      1,
		Revenue:        30,
		MultiDraftRate: 100,
		AvgLTV:         30,
	}, resp.Tables.ChannelPerformance[0])
	assert.Equal(t, "Ads", resp.Tables.ChannelPerformance[1].Channel)
}

func TestQuality(t *testing.T) {
	withSatisfaction := func(band string) itemOpt {
		return func(i *models.WorkItem) { i.Satisfaction = band }
	}

	svc := newTestService(t,
		seed("a", 1, withDraft(1), withRating(4), withSatisfaction(models.SatisfactionEPlus)),
		seed("b", 2, withDraft(2)),
		seed("c", 3, withDraft(1), withRating(2), withSatisfaction(models.SatisfactionEMinus)),
	)

	resp, err := svc.Quality(context.Background(), defaultFilters())
	require.NoError(t, err)

	require.Len(t, resp.Ratings.ByDraft, 1)
	assert.Equal(t, analytics.RatingByDraft{Draft: 1, AvgRating: 3}, resp.Ratings.ByDraft[0])

	require.Len(t, resp.Ratings.SatisfactionByDraft, 2)
	assert.Equal(t, analytics.SatisfactionByDraft{Draft: 1, EPlus: 1, EMinus: 1}, resp.Ratings.SatisfactionByDraft[0])
	assert.Equal(t, analytics.SatisfactionByDraft{Draft: 2}, resp.Ratings.SatisfactionByDraft[1])
}

func TestOperations(t *testing.T) {
	svc := newTestService(t,
		seed("a", 1),
		seed("b", 2, withStatus("In Progress")),
		seed("c", 3, withStatus("In Progress"), withRemaining(-2, true)),
	)

	resp, err := svc.Operations(context.Background(), defaultFilters())
	require.NoError(t, err)

	assert.Equal(t, 1, resp.LateCount)
	require.Len(t, resp.Breakdowns.ByStatus, 2)
	assert.Equal(t, analytics.BreakdownEntry{Label: "In Progress", Value: 2}, resp.Breakdowns.ByStatus[0])
	assert.Equal(t, analytics.BreakdownEntry{Label: "Completed", Value: 1}, resp.Breakdowns.ByStatus[1])
}

func TestOperationsPreviewCoalescesLate(t *testing.T) {
	// No explicit flag on the second item; negative remaining still counts.
	svc := newTestService(t,
		seed("flagged", 1, withRemaining(-5, true)),
		seed("implied", 2, withRemaining(-1, false)),
		seed("ontime", 3, withRemaining(4, false)),
		seed("u", 1, withStatus(models.StatusUnassigned)),
	)

	resp, err := svc.OperationsPreview(context.Background(), defaultFilters())
	require.NoError(t, err)

	require.Len(t, resp.UnassignedEssays, 1)
	assert.Equal(t, "u", resp.UnassignedEssays[0].ItemID)

	require.Len(t, resp.LateDeliveries, 2)
	assert.Equal(t, "flagged", resp.LateDeliveries[0].ItemID)
	assert.Equal(t, "implied", resp.LateDeliveries[1].ItemID)
}

func TestListUnassigned(t *testing.T) {
	svc := newTestService(t,
		seed("u1", 3, withStatus(models.StatusUnassigned), withRevenue(10)),
		seed("u2", 2, withStatus(models.StatusUnassigned), withRevenue(20)),
		seed("u3", 1, withStatus(models.StatusUnassigned), withRevenue(30)),
		seed("done", 1),
	)

	page, err := svc.ListUnassigned(context.Background(), defaultFilters(), 2, 0)
	require.NoError(t, err)

	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "u3", page.Items[0].ItemID)
	assert.Equal(t, 30.0, page.Items[0].Revenue)
	assert.Equal(t, "u2", page.Items[1].ItemID)

	page, err = svc.ListUnassigned(context.Background(), defaultFilters(), 2, 2)
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "u1", page.Items[0].ItemID)
}

func TestListLateOrdersBySeverity(t *testing.T) {
	svc := newTestService(t,
		seed("mild", 1, withRemaining(-2, true)),
		seed("severe", 3, withRemaining(-9, true)),
		seed("ontime", 2, withRemaining(5, true)),
	)

	page, err := svc.ListLate(context.Background(), defaultFilters(), 10, 0)
	require.NoError(t, err)

	assert.False(t, page.HasMore)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "severe", page.Items[0].ItemID)
	assert.Equal(t, -9.0, page.Items[0].TimeRemainingHours)
	assert.Equal(t, "mild", page.Items[1].ItemID)
}

func TestFilterOptions(t *testing.T) {
	svc := newTestService(t,
		seed("a", 1, withTurnaround("48h"), withStudent("s1", "Referral")),
		seed("b", 2, withTurnaround("24h"), withStatus("In Progress")),
		seed("c", 3),
	)

	// Dimension filters are ignored when listing options.
	resp, err := svc.FilterOptions(context.Background(), analytics.Filters{
		DateRange:  analytics.DateRange{Preset: analytics.Range90d},
		Turnaround: "48h",
		Status:     "Completed",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"All", "24h", "48h"}, resp.TurnaroundOptions)
	assert.Equal(t, []string{"All", "Completed", "In Progress"}, resp.StatusOptions)
	assert.Equal(t, []string{"All", "Referral", "Unknown"}, resp.AcquisitionOptions)
}
