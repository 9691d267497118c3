package dashboard

import (
	"github.com/inkwell-analytics/insight/internal/analytics"
)

// SeriesSet holds the daily time series shared by the overview and
// revenue pages.
type SeriesSet struct {
	RevenueOverTime []analytics.SeriesPoint `json:"revenueOverTime"`
	VolumeOverTime  []analytics.SeriesPoint `json:"volumeOverTime"`
}

// UnassignedRow is one row of the unassigned essays table.
type UnassignedRow struct {
	ItemID     string  `json:"item_id"`
	StudentID  string  `json:"student_id"`
	WordCount  int     `json:"word_count"`
	Turnaround string  `json:"turnaround"`
	Revenue    float64 `json:"revenue"`
}

// LateRow is one row of the late deliveries table.
type LateRow struct {
	ItemID             string  `json:"item_id"`
	StudentID          string  `json:"student_id"`
	TimeRemainingHours float64 `json:"time_remaining_hours"`
}

type OverviewBreakdowns struct {
	ByChannel []analytics.BreakdownEntry `json:"byChannel"`
}

type OverviewRatings struct {
	ByDraft []analytics.RatingByDraft `json:"byDraft"`
}

type OverviewTables struct {
	UnassignedEssays []UnassignedRow `json:"unassignedEssays"`
	LateDeliveries   []LateRow       `json:"lateDeliveries"`
}

// OverviewResponse is the main dashboard page payload.
type OverviewResponse struct {
	KPIs       analytics.KPIs     `json:"kpis"`
	LateCount  int                `json:"lateCount"`
	Series     SeriesSet          `json:"series"`
	Breakdowns OverviewBreakdowns `json:"breakdowns"`
	Ratings    OverviewRatings    `json:"ratings"`
	Tables     OverviewTables     `json:"tables"`
}

type RevenueBreakdowns struct {
	ByTurnaround []analytics.BreakdownEntry `json:"byTurnaround"`
	ByChannel    []analytics.BreakdownEntry `json:"byChannel"`
}

// RevenueResponse is the revenue page payload.
type RevenueResponse struct {
	KPIs       analytics.KPIs    `json:"kpis"`
	Series     SeriesSet         `json:"series"`
	Breakdowns RevenueBreakdowns `json:"breakdowns"`
}

type CustomerBreakdowns struct {
	ByLocation []analytics.BreakdownEntry `json:"byLocation"`
}

type CustomerTables struct {
	ChannelPerformance []analytics.ChannelPerformance `json:"channelPerformance"`
}

// CustomersResponse is the customers page payload.
type CustomersResponse struct {
	KPIs       analytics.KPIs     `json:"kpis"`
	Breakdowns CustomerBreakdowns `json:"breakdowns"`
	Tables     CustomerTables     `json:"tables"`
}

type QualityRatings struct {
	ByDraft             []analytics.RatingByDraft       `json:"byDraft"`
	SatisfactionByDraft []analytics.SatisfactionByDraft `json:"satisfactionByDraft"`
}

// QualityResponse is the quality page payload.
type QualityResponse struct {
	KPIs    analytics.KPIs `json:"kpis"`
	Ratings QualityRatings `json:"ratings"`
}

type OperationsBreakdowns struct {
	ByStatus []analytics.BreakdownEntry `json:"byStatus"`
}

// OperationsSummary is the operations page headline payload.
type OperationsSummary struct {
	KPIs       analytics.KPIs       `json:"kpis"`
	LateCount  int                  `json:"lateCount"`
	Breakdowns OperationsBreakdowns `json:"breakdowns"`
}

// OperationsPreview holds the top-3 previews of the operations tables.
type OperationsPreview struct {
	UnassignedEssays []UnassignedRow `json:"unassignedEssays"`
	LateDeliveries   []LateRow       `json:"lateDeliveries"`
}

// UnassignedPage is one page of the full unassigned essays listing.
type UnassignedPage struct {
	Items   []UnassignedRow `json:"items"`
	HasMore bool            `json:"hasMore"`
}

// LatePage is one page of the full late deliveries listing.
type LatePage struct {
	Items   []LateRow `json:"items"`
	HasMore bool      `json:"hasMore"`
}

// FilterOptionsResponse lists the selectable values per filter
// dimension, each prefixed with the "All" sentinel.
type FilterOptionsResponse struct {
	TurnaroundOptions  []string `json:"turnaroundOptions"`
	StatusOptions      []string `json:"statusOptions"`
	AcquisitionOptions []string `json:"acquisitionOptions"`
}
