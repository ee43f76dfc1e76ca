package booking

import (
	"fmt"
	"time"

	"github.com/example/charter-desk/internal/domain/fleet"
)

type ConflictType string

const (
	ConflictBlockedPeriod    ConflictType = "blocked_period"
	ConflictMaintenance      ConflictType = "maintenance"
	ConflictOwnerUse         ConflictType = "owner_use"
	ConflictConfirmedBooking ConflictType = "confirmed_booking"
	ConflictPendingBooking   ConflictType = "pending_booking"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Conflict is a detected overlap between a candidate reservation and an
// existing active one. Computed on demand, never stored.
type Conflict struct {
	Type        ConflictType `json:"type"`
	Severity    Severity     `json:"severity"`
	OverlapDays int          `json:"overlapDays"`
	With        Reservation  `json:"with"`
	Message     string       `json:"message"`
}

const (
	WarnBackToBack    = "back_to_back"
	WarnSameDayChange = "same_day_changeover"
	WarnOverCapacity  = "over_capacity"
	WarnBelowMinHours = "below_min_hours"
)

// Warning is a non-blocking advisory; callers may submit anyway.
type Warning struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// CheckOptions tune conflict classification.
type CheckOptions struct {
	// SkipBlocked ignores blocked-type reservations entirely.
	SkipBlocked bool
	// ExcludeSameDay downgrades an exact one-day checkout/checkin overlap
	// from a conflict to a warning.
	ExcludeSameDay bool
	// Spec, when set, also checks the yacht's maintenance windows and its
	// booking constraints (guest capacity, minimum duration).
	Spec *fleet.Yacht
}

type CheckResult struct {
	HasConflicts bool       `json:"hasConflicts"`
	Conflicts    []Conflict `json:"conflicts"`
	Warnings     []Warning  `json:"warnings"`
}

// Overlaps reports whether two intervals share at least one calendar day.
// Boundaries are inclusive on both ends, so a range whose start equals
// another range's end (a checkout/checkin day) counts as overlapping.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	a0, a1 := day(startA), day(endA)
	b0, b1 := day(startB), day(endB)
	return !a0.After(b1) && !b0.After(a1)
}

// adjacent reports whether one range starts exactly the day after the other
// ends.
func adjacent(startA, endA, startB, endB time.Time) bool {
	return day(startB).Equal(day(endA).AddDate(0, 0, 1)) ||
		day(startA).Equal(day(endB).AddDate(0, 0, 1))
}

// CheckConflicts classifies every overlap between the candidate and the
// existing reservations on the same yacht. The candidate's own id is skipped
// so updates can be re-checked in place. Cancelled and no-show reservations
// never conflict. Adjacent ranges produce a back-to-back warning instead of a
// conflict.
func CheckConflicts(candidate Reservation, existing []Reservation, opts CheckOptions) CheckResult {
	var res CheckResult
	for _, other := range existing {
		if other.YachtID != candidate.YachtID || other.ID == candidate.ID {
			continue
		}
		if !other.Active() {
			continue
		}
		if opts.SkipBlocked && other.Type == TypeBlocked {
			continue
		}

		if !Overlaps(candidate.Start, candidate.End, other.Start, other.End) {
			if adjacent(candidate.Start, candidate.End, other.Start, other.End) {
				res.Warnings = append(res.Warnings, Warning{
					Kind:    WarnBackToBack,
					Message: fmt.Sprintf("back-to-back with reservation %s; no turnaround day", other.ID),
				})
			}
			continue
		}

		overlapDays := daysInclusive(
			maxDay(day(candidate.Start), day(other.Start)),
			minDay(day(candidate.End), day(other.End)),
		)

		if opts.ExcludeSameDay && overlapDays == 1 && isChangeoverDay(candidate, other) {
			res.Warnings = append(res.Warnings, Warning{
				Kind:    WarnSameDayChange,
				Message: fmt.Sprintf("same-day changeover with reservation %s", other.ID),
			})
			continue
		}

		ct, sev := classify(other)
		res.Conflicts = append(res.Conflicts, Conflict{
			Type:        ct,
			Severity:    sev,
			OverlapDays: overlapDays,
			With:        other,
			Message:     fmt.Sprintf("%d day overlap with %s reservation %s", overlapDays, other.Type, other.ID),
		})
	}

	if opts.Spec != nil {
		if opts.Spec.MaxGuests > 0 && candidate.Guests > opts.Spec.MaxGuests {
			res.Warnings = append(res.Warnings, Warning{
				Kind: WarnOverCapacity,
				Message: fmt.Sprintf("%d guests exceeds %s capacity of %d",
					candidate.Guests, opts.Spec.ID, opts.Spec.MaxGuests),
			})
		}
		if min := time.Duration(opts.Spec.MinBookingHours) * time.Hour; min > 0 &&
			candidate.End.Sub(candidate.Start) < min {
			res.Warnings = append(res.Warnings, Warning{
				Kind:    WarnBelowMinHours,
				Message: fmt.Sprintf("booking is shorter than the %d hour minimum", opts.Spec.MinBookingHours),
			})
		}
		for _, w := range opts.Spec.Maintenance {
			if !Overlaps(candidate.Start, candidate.End, w.Start, w.End) {
				continue
			}
			overlapDays := daysInclusive(
				maxDay(day(candidate.Start), day(w.Start)),
				minDay(day(candidate.End), day(w.End)),
			)
			res.Conflicts = append(res.Conflicts, Conflict{
				Type:        ConflictMaintenance,
				Severity:    SeverityHigh,
				OverlapDays: overlapDays,
				Message:     fmt.Sprintf("%d day overlap with maintenance window (%s)", overlapDays, w.Reason),
			})
		}
	}

	res.HasConflicts = len(res.Conflicts) > 0
	return res
}

// isChangeoverDay reports whether the one-day overlap is exactly a boundary
// day: the candidate starts on the other's end day, or ends on its start day.
func isChangeoverDay(candidate, other Reservation) bool {
	return day(candidate.Start).Equal(day(other.End)) ||
		day(candidate.End).Equal(day(other.Start))
}

func classify(r Reservation) (ConflictType, Severity) {
	switch r.Type {
	case TypeBlocked:
		return ConflictBlockedPeriod, SeverityMedium
	case TypeMaintenance:
		return ConflictMaintenance, SeverityHigh
	case TypeOwnerUse:
		return ConflictOwnerUse, SeverityHigh
	}
	switch r.Status {
	case StatusConfirmed, StatusCompleted:
		return ConflictConfirmedBooking, SeverityHigh
	default:
		return ConflictPendingBooking, SeverityLow
	}
}
