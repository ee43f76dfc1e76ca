package booking

import (
	"sort"
	"time"

	"github.com/example/charter-desk/internal/domain/fleet"
)

// maxSuggestions bounds every suggestion list so UI payloads stay small.
const maxSuggestions = 5

// Search windows around the requested range.
const (
	altDatesBefore = 14
	altDatesAfter  = 30
	nearbyWindow   = 7
)

// Suggestions are alternatives offered when a requested range conflicts.
type Suggestions struct {
	AlternativeDates  []Slot        `json:"alternativeDates"`
	AlternativeYachts []fleet.Yacht `json:"alternativeYachts"`
	NearbySlots       []Slot        `json:"nearbySlots"`
}

// SuggestAlternatives searches for ways to satisfy a request that cannot be
// booked as asked: other dates on the same yacht, other yachts on the same
// dates, and short slots immediately before or after the requested range.
func SuggestAlternatives(req Reservation, reservations []Reservation, yachts []fleet.Yacht) Suggestions {
	duration := daysInclusive(req.Start, req.End)
	reqStart := day(req.Start)

	var out Suggestions

	// Other dates on the same yacht, nearest first.
	dates := FindAvailableSlots(req.YachtID, reservations, SlotOptions{
		MinDays: duration,
		MaxDays: duration,
		From:    reqStart.AddDate(0, 0, -altDatesBefore),
		Before:  day(req.End).AddDate(0, 0, altDatesAfter),
	})
	sort.SliceStable(dates, func(i, j int) bool {
		return absDays(dates[i].Start, reqStart) < absDays(dates[j].Start, reqStart)
	})
	out.AlternativeDates = capSlots(dates)

	// Other yachts free for the requested dates.
	for _, y := range yachts {
		if y.ID == req.YachtID {
			continue
		}
		cand := req
		cand.YachtID = y.ID
		spec := y
		check := CheckConflicts(cand, reservations, CheckOptions{Spec: &spec})
		if !check.HasConflicts {
			out.AlternativeYachts = append(out.AlternativeYachts, y)
			if len(out.AlternativeYachts) == maxSuggestions {
				break
			}
		}
	}

	// Short windows hugging the requested range, merged chronologically.
	before := FindAvailableSlots(req.YachtID, reservations, SlotOptions{
		MinDays: duration,
		MaxDays: duration,
		From:    reqStart.AddDate(0, 0, -nearbyWindow),
		Before:  reqStart.AddDate(0, 0, -1),
	})
	after := FindAvailableSlots(req.YachtID, reservations, SlotOptions{
		MinDays: duration,
		MaxDays: duration,
		From:    day(req.End).AddDate(0, 0, 1),
		Before:  day(req.End).AddDate(0, 0, nearbyWindow),
	})
	nearby := append(before, after...)
	sort.SliceStable(nearby, func(i, j int) bool { return nearby[i].Start.Before(nearby[j].Start) })
	out.NearbySlots = capSlots(nearby)

	return out
}

func capSlots(s []Slot) []Slot {
	if len(s) > maxSuggestions {
		return s[:maxSuggestions]
	}
	return s
}

func absDays(a, b time.Time) int {
	d := int(day(a).Sub(day(b)).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
