package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/inkwell-analytics/insight/internal/models"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestResolveRangePresets(t *testing.T) {
	nowMs := testNow.UnixMilli()
	day := int64(24 * time.Hour / time.Millisecond)

	tests := []struct {
		preset string
		fromMs int64
	}{
		{Range7d, nowMs - 7*day},
		{Range30d, nowMs - 30*day},
		{Range90d, nowMs - 90*day},
		{"bogus", nowMs - 90*day},
		{"", nowMs - 90*day},
	}

	for _, tt := range tests {
		from, to := ResolveRange(testNow, DateRange{Preset: tt.preset})
		assert.Equal(t, tt.fromMs, from, "preset %q", tt.preset)
		assert.Equal(t, nowMs, to, "preset %q", tt.preset)
	}
}

func TestResolveRangeYearToDate(t *testing.T) {
	from, to := ResolveRange(testNow, DateRange{Preset: RangeYTD})
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), from)
	assert.Equal(t, testNow.UnixMilli(), to)
}

func TestResolveRangeCustom(t *testing.T) {
	from, to := ResolveRange(testNow, DateRange{
		Preset: RangeCustom,
		From:   "2024-02-01",
		To:     "2024-02-29T23:00:00Z",
	})
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), from)
	assert.Equal(t, time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC).UnixMilli(), to)
}

func TestResolveRangeCustomFallsBackOnBadBounds(t *testing.T) {
	day := int64(24 * time.Hour / time.Millisecond)
	from, to := ResolveRange(testNow, DateRange{
		Preset: RangeCustom,
		From:   "not-a-date",
		To:     "2024-02-29",
	})
	assert.Equal(t, testNow.UnixMilli()-90*day, from)
	assert.Equal(t, testNow.UnixMilli(), to)
}

func TestDraftFilterBucket(t *testing.T) {
	assert.Equal(t, "", DraftFilterBucket(""))
	assert.Equal(t, "", DraftFilterBucket(FilterAll))
	assert.Equal(t, "3", DraftFilterBucket("3"))
	assert.Equal(t, "5+", DraftFilterBucket("5"))
	assert.Equal(t, "5+", DraftFilterBucket("7"))
	assert.Equal(t, "5+", DraftFilterBucket("5+"))
}

func TestMatchesResidualDraft(t *testing.T) {
	item := &models.WorkItem{Draft: 6}

	assert.True(t, MatchesResidual(item, Filters{}))
	assert.True(t, MatchesResidual(item, Filters{Draft: FilterAll}))
	assert.True(t, MatchesResidual(item, Filters{Draft: "5+"}))
	assert.True(t, MatchesResidual(item, Filters{Draft: "6"}))
	assert.False(t, MatchesResidual(item, Filters{Draft: "2"}))
}

func TestMatchesResidualAcquisition(t *testing.T) {
	assert.True(t, MatchesResidual(
		&models.WorkItem{StudentChannel: "Referral"},
		Filters{Acquisition: "Referral"},
	))
	assert.False(t, MatchesResidual(
		&models.WorkItem{StudentChannel: "Ads"},
		Filters{Acquisition: "Referral"},
	))
	// Missing channel matches the Unknown option.
	assert.True(t, MatchesResidual(
		&models.WorkItem{},
		Filters{Acquisition: "Unknown"},
	))
}

func TestMatchesResidualCustomerType(t *testing.T) {
	multi := true
	single := false

	assert.True(t, MatchesResidual(
		&models.WorkItem{StudentMultiDraft: &multi},
		Filters{CustomerType: "Multi"},
	))
	assert.False(t, MatchesResidual(
		&models.WorkItem{StudentMultiDraft: &single},
		Filters{CustomerType: "Multi"},
	))
	// A missing flag counts as single-draft.
	assert.True(t, MatchesResidual(
		&models.WorkItem{},
		Filters{CustomerType: "Single"},
	))
	assert.False(t, MatchesResidual(
		&models.WorkItem{},
		Filters{CustomerType: "Multi"},
	))
}

func TestApplyResidual(t *testing.T) {
	items := []*models.WorkItem{
		{ItemID: "a", Draft: 1},
		{ItemID: "b", Draft: 5},
		{ItemID: "c", Draft: 9},
	}

	filtered := ApplyResidual(items, Filters{Draft: "5+"})
	assert.Len(t, filtered, 2)
	assert.Equal(t, "b", filtered[0].ItemID)
	assert.Equal(t, "c", filtered[1].ItemID)
}
