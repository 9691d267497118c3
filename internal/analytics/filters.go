package analytics

import (
	"strconv"
	"time"

	"github.com/inkwell-analytics/insight/internal/models"
)

// Date range presets accepted by the dashboard.
const (
	Range7d     = "7d"
	Range30d    = "30d"
	Range90d    = "90d"
	RangeYTD    = "ytd"
	RangeCustom = "custom"
)

// FilterAll is the sentinel meaning "dimension not filtered".
const FilterAll = "All"

// DateRange selects the reporting window, either by preset or by
// explicit bounds.
type DateRange struct {
	Preset string `json:"preset"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
}

// Filters carries the full dashboard filter state. Empty or "All"
// values leave a dimension unfiltered.
type Filters struct {
	DateRange    DateRange `json:"dateRange"`
	Turnaround   string    `json:"turnaround,omitempty"`
	Status       string    `json:"status,omitempty"`
	Acquisition  string    `json:"acquisition,omitempty"`
	Draft        string    `json:"draft,omitempty"`
	CustomerType string    `json:"customerType,omitempty"`
}

// ResolveRange converts the date range into concrete epoch-ms bounds.
// The reference time is injected so the aggregation path itself never
// reads the wall clock.
func ResolveRange(now time.Time, r DateRange) (fromMs, toMs int64) {
	nowMs := now.UnixMilli()
	if r.Preset == RangeCustom && r.From != "" && r.To != "" {
		from, okFrom := models.ParseSubmittedAt(r.From)
		to, okTo := models.ParseSubmittedAt(r.To)
		if okFrom && okTo {
			return from, to
		}
	}
	if r.Preset == RangeYTD {
		start := time.Date(now.UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return start.UnixMilli(), nowMs
	}

	days := 90
	switch r.Preset {
	case Range7d:
		days = 7
	case Range30d:
		days = 30
	}
	return nowMs - int64(days)*24*int64(time.Hour/time.Millisecond), nowMs
}

func filterSet(value string) bool {
	return value != "" && value != FilterAll
}

// DraftFilterBucket normalizes a raw draft filter value to a bucket
// label, or "" when the dimension is unfiltered. Numeric values 5 and
// above collapse to "5+" exactly like item-side bucketing.
func DraftFilterBucket(value string) string {
	if !filterSet(value) {
		return ""
	}
	if n, err := strconv.Atoi(value); err == nil {
		return models.ToDraftBucket(n)
	}
	return value
}

// MatchesResidual applies the filter dimensions the store query did not
// narrow: draft bucket, acquisition channel, and customer type. Status
// and turnaround are always pushed down to the store.
func MatchesResidual(item *models.WorkItem, f Filters) bool {
	if bucket := DraftFilterBucket(f.Draft); bucket != "" {
		if models.ToDraftBucket(item.Draft) != bucket {
			return false
		}
	}

	if filterSet(f.Acquisition) {
		channel := item.StudentChannel
		if channel == "" {
			channel = "Unknown"
		}
		if channel != f.Acquisition {
			return false
		}
	}

	if filterSet(f.CustomerType) {
		wantsMulti := f.CustomerType == "Multi"
		isMulti := item.StudentMultiDraft != nil && *item.StudentMultiDraft
		if isMulti != wantsMulti {
			return false
		}
	}

	return true
}

// ApplyResidual filters a slice through MatchesResidual.
func ApplyResidual(items []*models.WorkItem, f Filters) []*models.WorkItem {
	out := make([]*models.WorkItem, 0, len(items))
	for _, item := range items {
		if MatchesResidual(item, f) {
			out = append(out, item)
		}
	}
	return out
}
