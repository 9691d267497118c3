package analytics

import (
	"sort"
	"time"

	"github.com/inkwell-analytics/insight/internal/models"
)

// KPIs is the headline metric set shared by every dashboard page.
type KPIs struct {
	TotalRevenue    float64 `json:"totalRevenue"`
	ActiveCustomers int     `json:"activeCustomers"`
	MultiDraftRate  float64 `json:"multiDraftRate"`
	AvgRating       float64 `json:"avgRating"`
	EPlusRate       float64 `json:"ePlusRate"`
	OnTimeRate      float64 `json:"onTimeRate"`
	UnassignedCount int     `json:"unassignedCount"`
	LostRevenue     float64 `json:"lostRevenue"`
}

// SeriesPoint is one day's bucket in a time series.
type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// BreakdownEntry is one row of a category breakdown.
type BreakdownEntry struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// RatingByDraft is the average rating among rated items of one draft.
type RatingByDraft struct {
	Draft     int     `json:"draft"`
	AvgRating float64 `json:"avgRating"`
}

// SatisfactionByDraft counts satisfaction bands per draft number.
type SatisfactionByDraft struct {
	Draft  int `json:"draft"`
	EPlus  int `json:"ePlus"`
	E      int `json:"e"`
	EMinus int `json:"eMinus"`
}

// ChannelPerformance is one acquisition channel's customer rollup.
type ChannelPerformance struct {
	Channel        string  `json:"channel"`
	Customers      int     `json:"customers"`
	Revenue        float64 `json:"revenue"`
	MultiDraftRate float64 `json:"multiDraftRate"`
	AvgLTV         float64 `json:"avgLtv"`
}

// StudentRollup is the per-customer view derived from the filtered item
// collection. It is never persisted; denormalized student fields on each
// item feed it with last-non-empty-wins semantics.
type StudentRollup struct {
	ID           string  `json:"id"`
	Acquisition  string  `json:"acquisition"`
	Location     string  `json:"location"`
	IsMultiDraft bool    `json:"isMultiDraft"`
	Revenue      float64 `json:"revenue"`
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// Percent returns numerator/denominator as a 0-100 percentage, and 0
// when the denominator is zero. Every rate in this package goes through
// this guard so no output is ever NaN or Inf.
func Percent(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator * 100
}

// GroupCount tallies item counts per key, sorted descending by count.
// Ties keep first-seen order.
func GroupCount(items []*models.WorkItem, key func(*models.WorkItem) string) ([]BreakdownEntry, error) {
	if key == nil {
		return nil, &InvalidInputError{Reason: "nil key projection"}
	}
	return groupAccumulate(items, key, func(*models.WorkItem) float64 { return 1 }), nil
}

// GroupSum sums value(item) per key, sorted descending by total.
// Ties keep first-seen order.
func GroupSum(items []*models.WorkItem, key func(*models.WorkItem) string, value func(*models.WorkItem) float64) ([]BreakdownEntry, error) {
	if key == nil {
		return nil, &InvalidInputError{Reason: "nil key projection"}
	}
	if value == nil {
		return nil, &InvalidInputError{Reason: "nil value projection"}
	}
	return groupAccumulate(items, key, value), nil
}

func groupAccumulate(items []*models.WorkItem, key func(*models.WorkItem) string, value func(*models.WorkItem) float64) []BreakdownEntry {
	index := make(map[string]int)
	entries := make([]BreakdownEntry, 0)
	for _, item := range items {
		k := key(item)
		i, ok := index[k]
		if !ok {
			i = len(entries)
			index[k] = i
			entries = append(entries, BreakdownEntry{Label: k})
		}
		entries[i].Value += value(item)
	}
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Value > entries[b].Value
	})
	return entries
}

// TopN resorts a breakdown descending by value and keeps the first n
// entries. The input is not mutated.
func TopN(entries []BreakdownEntry, n int) []BreakdownEntry {
	if n < 0 {
		n = 0
	}
	out := make([]BreakdownEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Value > out[b].Value
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// SeriesByDay buckets items by the UTC calendar date of their
// submission, summing metric(item) per bucket. Items whose submitted-at
// cannot be normalized are skipped. Output is sorted ascending by date.
func SeriesByDay(items []*models.WorkItem, metric func(*models.WorkItem) float64) ([]SeriesPoint, error) {
	if metric == nil {
		return nil, &InvalidInputError{Reason: "nil metric projection"}
	}
	buckets := make(map[string]float64)
	for _, item := range items {
		ms, ok := item.SubmittedMs()
		if !ok {
			continue
		}
		key := time.UnixMilli(ms).UTC().Format("2006-01-02")
		buckets[key] += metric(item)
	}
	points := make([]SeriesPoint, 0, len(buckets))
	for date, value := range buckets {
		points = append(points, SeriesPoint{Date: date, Value: value})
	}
	sort.Slice(points, func(a, b int) bool {
		return points[a].Date < points[b].Date
	})
	return points, nil
}

// AverageByDraft computes the mean rating per draft number over rated
// items. Drafts with no rated items are omitted. Sorted ascending by
// draft.
func AverageByDraft(items []*models.WorkItem) []RatingByDraft {
	ratings := make(map[int][]float64)
	for _, item := range items {
		if item.Rating == nil {
			continue
		}
		ratings[item.Draft] = append(ratings[item.Draft], *item.Rating)
	}
	out := make([]RatingByDraft, 0, len(ratings))
	for draft, values := range ratings {
		out = append(out, RatingByDraft{Draft: draft, AvgRating: average(values)})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Draft < out[b].Draft })
	return out
}

// SatisfactionBreakdownByDraft counts satisfaction bands per draft.
// Every draft present in the input appears, all three bands defaulting
// to zero. Sorted ascending by draft.
func SatisfactionBreakdownByDraft(items []*models.WorkItem) []SatisfactionByDraft {
	index := make(map[int]int)
	out := make([]SatisfactionByDraft, 0)
	for _, item := range items {
		i, ok := index[item.Draft]
		if !ok {
			i = len(out)
			index[item.Draft] = i
			out = append(out, SatisfactionByDraft{Draft: item.Draft})
		}
		switch item.Satisfaction {
		case models.SatisfactionEPlus:
			out[i].EPlus++
		case models.SatisfactionE:
			out[i].E++
		case models.SatisfactionEMinus:
			out[i].EMinus++
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Draft < out[b].Draft })
	return out
}

// RollupStudents derives one rollup per distinct non-empty student ID.
// Denormalized student fields resolve last-non-empty-wins across the
// student's items; revenue sums. Output keeps first-seen order.
func RollupStudents(items []*models.WorkItem) []StudentRollup {
	index := make(map[string]int)
	students := make([]StudentRollup, 0)
	for _, item := range items {
		if item.StudentID == "" {
			continue
		}
		i, ok := index[item.StudentID]
		if !ok {
			i = len(students)
			index[item.StudentID] = i
			students = append(students, StudentRollup{
				ID:          item.StudentID,
				Acquisition: "Unknown",
				Location:    "Unknown",
			})
		}
		students[i].Revenue += item.Revenue
		if item.StudentChannel != "" {
			students[i].Acquisition = item.StudentChannel
		}
		if item.StudentLocation != "" {
			students[i].Location = item.StudentLocation
		}
		if item.StudentMultiDraft != nil {
			students[i].IsMultiDraft = *item.StudentMultiDraft
		}
	}
	return students
}

// BuildKPIs computes the headline metrics over an already-filtered item
// collection. Cancelled items still count toward revenue; callers that
// want them excluded filter upstream.
func BuildKPIs(items []*models.WorkItem) KPIs {
	students := RollupStudents(items)

	activeCustomers := make(map[string]struct{})
	var totalRevenue, lostRevenue float64
	var completedRatings []float64
	var completed, completedEPlus int
	var withRemaining, onTime int
	var unassigned int

	for _, item := range items {
		totalRevenue += item.Revenue

		if item.Status != models.StatusCancelled && item.StudentID != "" {
			activeCustomers[item.StudentID] = struct{}{}
		}
		if item.IsCompleted {
			completed++
			if item.Rating != nil {
				completedRatings = append(completedRatings, *item.Rating)
			}
			if item.Satisfaction == models.SatisfactionEPlus {
				completedEPlus++
			}
		}
		if item.TimeRemainingHours != nil {
			withRemaining++
			if *item.TimeRemainingHours > 0 {
				onTime++
			}
		}
		if item.Status == models.StatusUnassigned {
			unassigned++
			lostRevenue += item.Revenue
		}
	}

	multiDraft := 0
	for _, s := range students {
		if s.IsMultiDraft {
			multiDraft++
		}
	}

	return KPIs{
		TotalRevenue:    totalRevenue,
		ActiveCustomers: len(activeCustomers),
		MultiDraftRate:  Percent(float64(multiDraft), float64(len(students))),
		AvgRating:       average(completedRatings),
		EPlusRate:       Percent(float64(completedEPlus), float64(completed)),
		OnTimeRate:      Percent(float64(onTime), float64(withRemaining)),
		UnassignedCount: unassigned,
		LostRevenue:     lostRevenue,
	}
}

// BuildChannelPerformance groups student rollups by acquisition channel.
// Sorted descending by channel revenue.
func BuildChannelPerformance(items []*models.WorkItem) []ChannelPerformance {
	students := RollupStudents(items)

	index := make(map[string]int)
	channels := make([]ChannelPerformance, 0)
	multiDraft := make([]int, 0)
	for _, s := range students {
		key := s.Acquisition
		if key == "" {
			key = "Unknown"
		}
		i, ok := index[key]
		if !ok {
			i = len(channels)
			index[key] = i
			channels = append(channels, ChannelPerformance{Channel: key})
			multiDraft = append(multiDraft, 0)
		}
		channels[i].Customers++
		channels[i].Revenue += s.Revenue
		if s.IsMultiDraft {
			multiDraft[i]++
		}
	}

	for i := range channels {
		channels[i].MultiDraftRate = Percent(float64(multiDraft[i]), float64(channels[i].Customers))
		if channels[i].Customers > 0 {
			channels[i].AvgLTV = channels[i].Revenue / float64(channels[i].Customers)
		}
	}

	sort.SliceStable(channels, func(a, b int) bool {
		return channels[a].Revenue > channels[b].Revenue
	})
	return channels
}
