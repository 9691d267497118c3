package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Work item statuses with special meaning. All other status values are
// opaque labels supplied by the upstream import.
const (
	StatusUnassigned = "Unassigned"
	StatusCancelled  = "Cancelled"
)

// Satisfaction bands attached to rated essays.
const (
	SatisfactionEPlus  = "E+"
	SatisfactionE      = "E"
	SatisfactionEMinus = "E-"
)

// WorkItem is one essay draft worked on for a student. The student_*
// fields are denormalized from the owning student record so dashboard
// queries can run against the flat item collection alone.
type WorkItem struct {
	ItemID             string   `json:"item_id"`
	StudentID          string   `json:"student_id,omitempty"`
	StudentChannel     string   `json:"student_acquisition_channel,omitempty"`
	StudentLocation    string   `json:"student_location,omitempty"`
	StudentMultiDraft  *bool    `json:"student_is_multi_draft,omitempty"`
	Draft              int      `json:"draft"`
	DraftBucket        string   `json:"draft_bucket,omitempty"`
	WordCount          int      `json:"word_count"`
	Turnaround         string   `json:"turnaround"`
	Revenue            float64  `json:"revenue"`
	Rating             *float64 `json:"essay_rating_numeric,omitempty"`
	Satisfaction       string   `json:"satisfaction_rating,omitempty"`
	Status             string   `json:"item_status"`
	IsCompleted        bool     `json:"is_completed"`
	SubmittedAt        string   `json:"submitted_at,omitempty"`
	SubmittedAtMs      *int64   `json:"submittedAtMs,omitempty"`
	TimeRemainingHours *float64 `json:"time_remaining_hours,omitempty"`
	IsLate             *bool    `json:"is_late,omitempty"`
}

// ToDraftBucket maps a draft number to its breakdown label. Draft 5 and
// above collapse into a single "5+" bucket; this mapping is the one used
// everywhere draft buckets appear (filtering, grouping, labels).
func ToDraftBucket(draft int) string {
	if draft >= 5 {
		return "5+"
	}
	return strconv.Itoa(draft)
}

// submittedAtLayouts covers the legacy string forms seen in imports:
// RFC3339, a zone-less variant, and a bare date.
var submittedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseSubmittedAt converts a legacy submitted-at string to epoch
// milliseconds. A space separator is tolerated in place of 'T'. Returns
// false if no layout matches.
func ParseSubmittedAt(value string) (int64, bool) {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return 0, false
	}
	if !strings.Contains(normalized, "T") {
		normalized = strings.Replace(normalized, " ", "T", 1)
	}
	for _, layout := range submittedAtLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t.UTC().UnixMilli(), true
		}
	}
	return 0, false
}

// SubmittedMs returns the item's submission time in epoch ms. The
// normalized numeric field wins; otherwise the legacy string is parsed.
// Items with neither are excluded from range and day-bucket operations.
func (w *WorkItem) SubmittedMs() (int64, bool) {
	if w.SubmittedAtMs != nil {
		return *w.SubmittedAtMs, true
	}
	return ParseSubmittedAt(w.SubmittedAt)
}

// Late reports whether the item is overdue. An explicit is_late flag
// wins; otherwise negative time remaining means late; items with
// neither are not late.
func (w *WorkItem) Late() bool {
	if w.IsLate != nil {
		return *w.IsLate
	}
	if w.TimeRemainingHours != nil {
		return *w.TimeRemainingHours < 0
	}
	return false
}

// Normalize fills the derived fields an ingested item may omit: the
// numeric submitted-at and the draft bucket.
func (w *WorkItem) Normalize() {
	if w.SubmittedAtMs == nil {
		if ms, ok := ParseSubmittedAt(w.SubmittedAt); ok {
			w.SubmittedAtMs = &ms
		}
	}
	if w.DraftBucket == "" && w.Draft >= 1 {
		w.DraftBucket = ToDraftBucket(w.Draft)
	}
	if w.IsLate == nil && w.TimeRemainingHours != nil {
		late := *w.TimeRemainingHours < 0
		w.IsLate = &late
	}
}

// Validate checks the fields ingest cannot default.
func (w *WorkItem) Validate() error {
	if w.Draft < 1 {
		return fmt.Errorf("draft must be >= 1, got %d", w.Draft)
	}
	if w.WordCount < 0 {
		return fmt.Errorf("word_count must be >= 0, got %d", w.WordCount)
	}
	if w.Turnaround == "" {
		return fmt.Errorf("turnaround is required")
	}
	if w.Status == "" {
		return fmt.Errorf("item_status is required")
	}
	switch w.Satisfaction {
	case "", SatisfactionEPlus, SatisfactionE, SatisfactionEMinus:
	default:
		return fmt.Errorf("unknown satisfaction_rating %q", w.Satisfaction)
	}
	if w.SubmittedAt == "" && w.SubmittedAtMs == nil {
		return fmt.Errorf("submitted_at or submittedAtMs is required")
	}
	return nil
}
