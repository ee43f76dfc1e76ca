package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDatesHappyPath(t *testing.T) {
	now := date(2025, time.June, 1)
	v := ValidateDates(date(2025, time.June, 10), date(2025, time.June, 14), DateRules{
		MinDays: 2, MaxDays: 14, MinAdvanceDays: 2, MaxAdvanceDays: 180, Now: now,
	})
	assert.True(t, v.Valid)
	assert.Empty(t, v.Errors)
	assert.Equal(t, 5, v.BookingDays)
	assert.Equal(t, 9, v.DaysInAdvance)
}

func TestValidateDatesOrdering(t *testing.T) {
	now := date(2025, time.June, 1)
	v := ValidateDates(date(2025, time.June, 14), date(2025, time.June, 10), DateRules{Now: now})
	assert.False(t, v.Valid)
	require.NotEmpty(t, v.Errors)
	assert.Contains(t, v.Errors[0], "end date")
}

func TestValidateDatesPast(t *testing.T) {
	now := date(2025, time.June, 10)
	past := ValidateDates(date(2025, time.June, 1), date(2025, time.June, 3), DateRules{Now: now})
	assert.False(t, past.Valid)

	allowed := ValidateDates(date(2025, time.June, 1), date(2025, time.June, 3), DateRules{AllowPast: true, Now: now})
	assert.True(t, allowed.Valid)
}

func TestValidateDatesBounds(t *testing.T) {
	now := date(2025, time.June, 1)

	short := ValidateDates(date(2025, time.June, 10), date(2025, time.June, 10), DateRules{MinDays: 3, Now: now})
	assert.False(t, short.Valid)

	long := ValidateDates(date(2025, time.June, 10), date(2025, time.July, 20), DateRules{MaxDays: 14, Now: now})
	assert.False(t, long.Valid)

	tooSoon := ValidateDates(date(2025, time.June, 2), date(2025, time.June, 5), DateRules{MinAdvanceDays: 7, Now: now})
	assert.False(t, tooSoon.Valid)

	tooFar := ValidateDates(date(2026, time.June, 2), date(2026, time.June, 5), DateRules{MaxAdvanceDays: 180, Now: now})
	assert.False(t, tooFar.Valid)
}

func TestValidateDatesWarnings(t *testing.T) {
	now := date(2025, time.June, 1)

	// 2025-06-11 is a Wednesday: single-day midweek booking
	single := ValidateDates(date(2025, time.June, 11), date(2025, time.June, 11), DateRules{Now: now})
	assert.True(t, single.Valid)
	assert.Contains(t, single.Warnings, "single-day booking")

	// 2025-06-14 is a Saturday
	weekend := ValidateDates(date(2025, time.June, 13), date(2025, time.June, 15), DateRules{Now: now})
	assert.Contains(t, weekend.Warnings, "range includes a weekend")
}

func TestValidateDatesIdempotent(t *testing.T) {
	rules := DateRules{MinDays: 2, MaxDays: 14, MinAdvanceDays: 30, Now: date(2025, time.June, 1)}
	a := ValidateDates(date(2025, time.June, 10), date(2025, time.June, 11), rules)
	b := ValidateDates(date(2025, time.June, 10), date(2025, time.June, 11), rules)
	assert.Equal(t, a, b)
}
