package booking

import (
	"fmt"
	"time"
)

// DateRules bound an acceptable booking range. Zero values disable the
// corresponding check.
type DateRules struct {
	MinDays        int
	MaxDays        int
	AllowPast      bool
	MinAdvanceDays int
	MaxAdvanceDays int
	// Now overrides the clock; zero means time.Now().
	Now time.Time
}

// DateValidation is the structured outcome of ValidateDates. Errors block
// submission; warnings do not.
type DateValidation struct {
	Valid         bool     `json:"valid"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	BookingDays   int      `json:"bookingDays"`
	DaysInAdvance int      `json:"daysInAdvance"`
}

// ValidateDates checks ordering, the past-date rule, inclusive day-count
// bounds and the advance-booking window. It never fails for well-typed
// input; problems come back as structured errors and warnings.
func ValidateDates(start, end time.Time, rules DateRules) DateValidation {
	now := rules.Now
	if now.IsZero() {
		now = time.Now()
	}
	today := day(now)
	s, e := day(start), day(end)

	var v DateValidation
	if e.Before(s) {
		v.Errors = append(v.Errors, "end date must not be before start date")
	}
	if !rules.AllowPast && s.Before(today) {
		v.Errors = append(v.Errors, "start date is in the past")
	}

	v.BookingDays = daysInclusive(s, e)
	v.DaysInAdvance = int(s.Sub(today).Hours() / 24)

	if rules.MinDays > 0 && v.BookingDays < rules.MinDays {
		v.Errors = append(v.Errors, fmt.Sprintf("booking is %d days; minimum is %d", v.BookingDays, rules.MinDays))
	}
	if rules.MaxDays > 0 && v.BookingDays > rules.MaxDays {
		v.Errors = append(v.Errors, fmt.Sprintf("booking is %d days; maximum is %d", v.BookingDays, rules.MaxDays))
	}
	if rules.MinAdvanceDays > 0 && v.DaysInAdvance < rules.MinAdvanceDays {
		v.Errors = append(v.Errors, fmt.Sprintf("booking starts in %d days; minimum notice is %d", v.DaysInAdvance, rules.MinAdvanceDays))
	}
	if rules.MaxAdvanceDays > 0 && v.DaysInAdvance > rules.MaxAdvanceDays {
		v.Errors = append(v.Errors, fmt.Sprintf("booking starts in %d days; bookings open %d days out", v.DaysInAdvance, rules.MaxAdvanceDays))
	}

	if v.BookingDays == 1 {
		v.Warnings = append(v.Warnings, "single-day booking")
	}
	if touchesWeekend(s, e) {
		v.Warnings = append(v.Warnings, "range includes a weekend")
	}

	v.Valid = len(v.Errors) == 0
	return v
}
