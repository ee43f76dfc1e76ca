package booking

import "time"

// Slot is a maximal run of consecutive available days, clipped to MaxDays.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

type SlotOptions struct {
	MinDays int
	MaxDays int
	// From is the first day considered; Before is the scan cutoff
	// (exclusive of days after it).
	From   time.Time
	Before time.Time
	// ExcludeWeekends drops slots that touch a Saturday or Sunday.
	ExcludeWeekends bool
}

// FindAvailableSlots scans forward day by day, growing a slot while
// consecutive days stay available and the slot is under MaxDays, and emits it
// once it reaches MinDays. Scanning resumes on the day after the slot ends,
// so slots never overlap each other.
func FindAvailableSlots(yachtID string, reservations []Reservation, opts SlotOptions) []Slot {
	if opts.MinDays < 1 {
		opts.MinDays = 1
	}
	if opts.MaxDays < opts.MinDays {
		opts.MaxDays = opts.MinDays
	}
	from, until := day(opts.From), day(opts.Before)
	if until.Before(from) {
		return nil
	}

	var slots []Slot
	for d := from; !d.After(until); {
		if DateAvailability(d, yachtID, reservations).Status != Available {
			d = d.AddDate(0, 0, 1)
			continue
		}
		start := d
		end := d
		days := 1
		for days < opts.MaxDays {
			next := end.AddDate(0, 0, 1)
			if next.After(until) || DateAvailability(next, yachtID, reservations).Status != Available {
				break
			}
			end = next
			days++
		}
		if days >= opts.MinDays && (!opts.ExcludeWeekends || !touchesWeekend(start, end)) {
			slots = append(slots, Slot{Start: start, End: end, Days: days})
		}
		d = end.AddDate(0, 0, 1)
	}
	return slots
}

func touchesWeekend(start, end time.Time) bool {
	for d := day(start); !d.After(day(end)); d = d.AddDate(0, 0, 1) {
		if isWeekend(d) {
			return true
		}
	}
	return false
}
