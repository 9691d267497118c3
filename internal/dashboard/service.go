package dashboard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-analytics/insight/internal/analytics"
	"github.com/inkwell-analytics/insight/internal/metrics"
	"github.com/inkwell-analytics/insight/internal/models"
	"github.com/inkwell-analytics/insight/internal/storage"
)

// Dashboard page names, used for cache keys and metric labels.
const (
	PageOverview   = "overview"
	PageRevenue    = "revenue"
	PageCustomers  = "customers"
	PageQuality    = "quality"
	PageOperations = "operations"
	PageFilters    = "filters"
)

const previewRows = 3

// Service answers dashboard queries over the work-item store. All
// aggregation runs on the filtered item window; only status and
// turnaround narrowing is pushed down to the store.
type Service struct {
	store   storage.WorkItemStore
	cache   *Cache
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService creates a dashboard service. cache may be nil to disable
// response caching.
func NewService(store storage.WorkItemStore, cache *Cache, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		cache:   cache,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Overview builds the main dashboard page.
func (s *Service) Overview(ctx context.Context, f analytics.Filters) (*OverviewResponse, error) {
	start := time.Now()
	var cached OverviewResponse
	if s.lookupCache(ctx, PageOverview, f, &cached) {
		s.metrics.RecordDashboard(PageOverview, "cache", time.Since(start))
		return &cached, nil
	}

	items, err := s.loadItems(ctx, f)
	if err != nil {
		return nil, err
	}

	revenueSeries, err := analytics.SeriesByDay(items, func(item *models.WorkItem) float64 { return item.Revenue })
	if err != nil {
		return nil, err
	}
	volumeSeries, err := analytics.SeriesByDay(items, func(*models.WorkItem) float64 { return 1 })
	if err != nil {
		return nil, err
	}
	byChannel, err := analytics.GroupSum(items, channelKey, func(item *models.WorkItem) float64 { return item.Revenue })
	if err != nil {
		return nil, err
	}

	resp := &OverviewResponse{
		KPIs:      analytics.BuildKPIs(items),
		LateCount: countLateFlagged(items),
		Series: SeriesSet{
			RevenueOverTime: revenueSeries,
			VolumeOverTime:  volumeSeries,
		},
		Breakdowns: OverviewBreakdowns{
			ByChannel: analytics.TopN(byChannel, 8),
		},
		Ratings: OverviewRatings{
			ByDraft: analytics.AverageByDraft(items),
		},
		Tables: OverviewTables{
			UnassignedEssays: topUnassignedRows(items, previewRows),
			LateDeliveries:   topOverdueRows(items, previewRows),
		},
	}

	s.storeCache(ctx, PageOverview, f, resp)
	s.metrics.RecordDashboard(PageOverview, "store", time.Since(start))
	return resp, nil
}

// Revenue builds the revenue page.
func (s *Service) Revenue(ctx context.Context, f analytics.Filters) (*RevenueResponse, error) {
	start := time.Now()
	var cached RevenueResponse
	if s.lookupCache(ctx, PageRevenue, f, &cached) {
		s.metrics.RecordDashboard(PageRevenue, "cache", time.Since(start))
		return &cached, nil
	}

	items, err := s.loadItems(ctx, f)
	if err != nil {
		return nil, err
	}

	revenue := func(item *models.WorkItem) float64 { return item.Revenue }
	revenueSeries, err := analytics.SeriesByDay(items, revenue)
	if err != nil {
		return nil, err
	}
	volumeSeries, err := analytics.SeriesByDay(items, func(*models.WorkItem) float64 { return 1 })
	if err != nil {
		return nil, err
	}
	byTurnaround, err := analytics.GroupSum(items, func(item *models.WorkItem) string { return item.Turnaround }, revenue)
	if err != nil {
		return nil, err
	}
	byChannel, err := analytics.GroupSum(items, channelKey, revenue)
	if err != nil {
		return nil, err
	}

	resp := &RevenueResponse{
		KPIs: analytics.BuildKPIs(items),
		Series: SeriesSet{
			RevenueOverTime: revenueSeries,
			VolumeOverTime:  volumeSeries,
		},
		Breakdowns: RevenueBreakdowns{
			ByTurnaround: byTurnaround,
			ByChannel:    byChannel,
		},
	}

	s.storeCache(ctx, PageRevenue, f, resp)
	s.metrics.RecordDashboard(PageRevenue, "store", time.Since(start))
	return resp, nil
}

// Customers builds the customers page.
func (s *Service) Customers(ctx context.Context, f analytics.Filters) (*CustomersResponse, error) {
	start := time.Now()
	var cached CustomersResponse
	if s.lookupCache(ctx, PageCustomers, f, &cached) {
		s.metrics.RecordDashboard(PageCustomers, "cache", time.Since(start))
		return &cached, nil
	}

	items, err := s.loadItems(ctx, f)
	if err != nil {
		return nil, err
	}

	byLocation, err := analytics.GroupSum(items,
		func(item *models.WorkItem) string {
			if item.StudentLocation == "" {
				return "Unknown"
			}
			return item.StudentLocation
		},
		func(item *models.WorkItem) float64 { return item.Revenue },
	)
	if err != nil {
		return nil, err
	}

	resp := &CustomersResponse{
		KPIs: analytics.BuildKPIs(items),
		Breakdowns: CustomerBreakdowns{
			ByLocation: analytics.TopN(byLocation, 10),
		},
		Tables: CustomerTables{
			ChannelPerformance: analytics.BuildChannelPerformance(items),
		},
	}

	s.storeCache(ctx, PageCustomers, f, resp)
	s.metrics.RecordDashboard(PageCustomers, "store", time.Since(start))
	return resp, nil
}

// Quality builds the quality page.
func (s *Service) Quality(ctx context.Context, f analytics.Filters) (*QualityResponse, error) {
	start := time.Now()
	var cached QualityResponse
	if s.lookupCache(ctx, PageQuality, f, &cached) {
		s.metrics.RecordDashboard(PageQuality, "cache", time.Since(start))
		return &cached, nil
	}

	items, err := s.loadItems(ctx, f)
	if err != nil {
		return nil, err
	}

	resp := &QualityResponse{
		KPIs: analytics.BuildKPIs(items),
		Ratings: QualityRatings{
			ByDraft:             analytics.AverageByDraft(items),
			SatisfactionByDraft: analytics.SatisfactionBreakdownByDraft(items),
		},
	}

	s.storeCache(ctx, PageQuality, f, resp)
	s.metrics.RecordDashboard(PageQuality, "store", time.Since(start))
	return resp, nil
}

// Operations builds the operations page headline.
func (s *Service) Operations(ctx context.Context, f analytics.Filters) (*OperationsSummary, error) {
	start := time.Now()
	var cached OperationsSummary
	if s.lookupCache(ctx, PageOperations, f, &cached) {
		s.metrics.RecordDashboard(PageOperations, "cache", time.Since(start))
		return &cached, nil
	}

	items, err := s.loadItems(ctx, f)
	if err != nil {
		return nil, err
	}

	byStatus, err := analytics.GroupCount(items, func(item *models.WorkItem) string { return item.Status })
	if err != nil {
		return nil, err
	}

	resp := &OperationsSummary{
		KPIs:      analytics.BuildKPIs(items),
		LateCount: countLateFlagged(items),
		Breakdowns: OperationsBreakdowns{
			ByStatus: byStatus,
		},
	}

	s.storeCache(ctx, PageOperations, f, resp)
	s.metrics.RecordDashboard(PageOperations, "store", time.Since(start))
	return resp, nil
}

// OperationsPreview builds the top-3 previews of both operations tables.
// Late items here use the coalesced overdue rule so items imported
// without the explicit flag still surface.
func (s *Service) OperationsPreview(ctx context.Context, f analytics.Filters) (*OperationsPreview, error) {
	items, err := s.loadItems(ctx, f)
	if err != nil {
		return nil, err
	}

	late := make([]*models.WorkItem, 0)
	for _, item := range items {
		if item.Late() {
			late = append(late, item)
		}
	}
	sortBySeverity(late)

	return &OperationsPreview{
		UnassignedEssays: topUnassignedRows(items, previewRows),
		LateDeliveries:   lateRows(late, previewRows),
	}, nil
}

// ListUnassigned returns one page of the full unassigned listing, newest
// first. The status filter is ignored; the listing is unassigned by
// definition.
func (s *Service) ListUnassigned(ctx context.Context, f analytics.Filters, limit, offset int) (*UnassignedPage, error) {
	items, hasMore, err := s.store.ListUnassigned(ctx, s.pageQuery(f, limit, offset))
	if err != nil {
		return nil, fmt.Errorf("failed to list unassigned items: %w", err)
	}

	rows := make([]UnassignedRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, unassignedRow(item))
	}
	return &UnassignedPage{Items: rows, HasMore: hasMore}, nil
}

// ListLate returns one page of the full late deliveries listing. The
// page is fetched newest first, then ordered most-overdue first with
// recency breaking ties.
func (s *Service) ListLate(ctx context.Context, f analytics.Filters, limit, offset int) (*LatePage, error) {
	items, hasMore, err := s.store.ListLate(ctx, s.pageQuery(f, limit, offset))
	if err != nil {
		return nil, fmt.Errorf("failed to list late items: %w", err)
	}

	sortBySeverity(items)
	return &LatePage{Items: lateRows(items, len(items)), HasMore: hasMore}, nil
}

// FilterOptions lists the selectable values per dimension, derived from
// the items in the date window with all dimension filters cleared.
func (s *Service) FilterOptions(ctx context.Context, f analytics.Filters) (*FilterOptionsResponse, error) {
	items, err := s.loadItems(ctx, analytics.Filters{DateRange: f.DateRange})
	if err != nil {
		return nil, err
	}

	turnarounds := make(map[string]struct{})
	statuses := make(map[string]struct{})
	acquisitions := make(map[string]struct{})
	for _, item := range items {
		turnarounds[item.Turnaround] = struct{}{}
		statuses[item.Status] = struct{}{}
		acquisitions[channelKey(item)] = struct{}{}
	}

	return &FilterOptionsResponse{
		TurnaroundOptions:  optionList(turnarounds),
		StatusOptions:      optionList(statuses),
		AcquisitionOptions: optionList(acquisitions),
	}, nil
}

// loadItems fetches the filtered item window: date bounds plus status
// and turnaround go to the store, the remaining dimensions are applied
// in memory.
func (s *Service) loadItems(ctx context.Context, f analytics.Filters) ([]*models.WorkItem, error) {
	fromMs, toMs := analytics.ResolveRange(s.now(), f.DateRange)
	q := storage.ItemQuery{FromMs: fromMs, ToMs: toMs}
	if dimensionSet(f.Status) {
		q.Status = f.Status
	}
	if dimensionSet(f.Turnaround) {
		q.Turnaround = f.Turnaround
	}

	items, err := s.store.ListRange(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load work items: %w", err)
	}
	return analytics.ApplyResidual(items, f), nil
}

func (s *Service) pageQuery(f analytics.Filters, limit, offset int) storage.PageQuery {
	fromMs, toMs := analytics.ResolveRange(s.now(), f.DateRange)
	q := storage.PageQuery{FromMs: fromMs, ToMs: toMs, Limit: limit, Offset: offset}
	if dimensionSet(f.Turnaround) {
		q.Turnaround = f.Turnaround
	}
	if dimensionSet(f.Status) {
		q.Status = f.Status
	}
	q.DraftBucket = analytics.DraftFilterBucket(f.Draft)
	if dimensionSet(f.Acquisition) {
		q.Channel = f.Acquisition
	}
	if dimensionSet(f.CustomerType) {
		multi := f.CustomerType == "Multi"
		q.MultiDraft = &multi
	}
	return q
}

func dimensionSet(value string) bool {
	return value != "" && value != analytics.FilterAll
}

func channelKey(item *models.WorkItem) string {
	if item.StudentChannel == "" {
		return "Unknown"
	}
	return item.StudentChannel
}

// countLateFlagged counts items carrying the explicit late flag.
func countLateFlagged(items []*models.WorkItem) int {
	n := 0
	for _, item := range items {
		if item.IsLate != nil && *item.IsLate {
			n++
		}
	}
	return n
}

// topUnassignedRows returns the n most recent unassigned items.
func topUnassignedRows(items []*models.WorkItem, n int) []UnassignedRow {
	unassigned := make([]*models.WorkItem, 0)
	for _, item := range items {
		if item.Status == models.StatusUnassigned {
			unassigned = append(unassigned, item)
		}
	}
	sort.SliceStable(unassigned, func(a, b int) bool {
		am, _ := unassigned[a].SubmittedMs()
		bm, _ := unassigned[b].SubmittedMs()
		return am > bm
	})

	if n > len(unassigned) {
		n = len(unassigned)
	}
	rows := make([]UnassignedRow, 0, n)
	for _, item := range unassigned[:n] {
		rows = append(rows, unassignedRow(item))
	}
	return rows
}

// topOverdueRows returns the n most overdue items, judged strictly by
// negative time remaining.
func topOverdueRows(items []*models.WorkItem, n int) []LateRow {
	overdue := make([]*models.WorkItem, 0)
	for _, item := range items {
		if item.TimeRemainingHours != nil && *item.TimeRemainingHours < 0 {
			overdue = append(overdue, item)
		}
	}
	sortBySeverity(overdue)
	return lateRows(overdue, n)
}

// sortBySeverity orders items most-overdue first, newest first on ties.
func sortBySeverity(items []*models.WorkItem) {
	sort.SliceStable(items, func(a, b int) bool {
		as, bs := severity(items[a]), severity(items[b])
		if as != bs {
			return as > bs
		}
		am, _ := items[a].SubmittedMs()
		bm, _ := items[b].SubmittedMs()
		return am > bm
	})
}

func severity(item *models.WorkItem) float64 {
	if item.TimeRemainingHours == nil {
		return 0
	}
	return math.Abs(*item.TimeRemainingHours)
}

func unassignedRow(item *models.WorkItem) UnassignedRow {
	return UnassignedRow{
		ItemID:     item.ItemID,
		StudentID:  item.StudentID,
		WordCount:  item.WordCount,
		Turnaround: item.Turnaround,
		Revenue:    item.Revenue,
	}
}

func lateRows(items []*models.WorkItem, n int) []LateRow {
	if n > len(items) {
		n = len(items)
	}
	rows := make([]LateRow, 0, n)
	for _, item := range items[:n] {
		var remaining float64
		if item.TimeRemainingHours != nil {
			remaining = *item.TimeRemainingHours
		}
		rows = append(rows, LateRow{
			ItemID:             item.ItemID,
			StudentID:          item.StudentID,
			TimeRemainingHours: remaining,
		})
	}
	return rows
}

func optionList(values map[string]struct{}) []string {
	sorted := make([]string, 0, len(values))
	for v := range values {
		sorted = append(sorted, v)
	}
	sort.Strings(sorted)
	return append([]string{analytics.FilterAll}, sorted...)
}

func (s *Service) lookupCache(ctx context.Context, page string, f analytics.Filters, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit := s.cache.Get(ctx, page, f, dest)
	if hit {
		s.metrics.RecordCacheHit(page)
	} else {
		s.metrics.RecordCacheMiss(page)
	}
	return hit
}

func (s *Service) storeCache(ctx context.Context, page string, f analytics.Filters, value interface{}) {
	if s.cache == nil {
		return
	}
	s.cache.Set(ctx, page, f, value)
}
