package booking

import "time"

type AvailabilityStatus string

const (
	Available        AvailabilityStatus = "available"
	AvailConfirmed   AvailabilityStatus = "confirmed"
	AvailPending     AvailabilityStatus = "pending"
	AvailBlocked     AvailabilityStatus = "blocked"
	AvailMaintenance AvailabilityStatus = "maintenance"
	AvailOwnerUse    AvailabilityStatus = "owner_use"
)

// Availability classifies a single date for one yacht.
type Availability struct {
	Date          time.Time          `json:"date"`
	YachtID       string             `json:"yachtId"`
	Status        AvailabilityStatus `json:"status"`
	TransitionDay bool               `json:"transitionDay"`
	Reservation   *Reservation       `json:"reservation,omitempty"`
}

// DateAvailability scans the active reservations for the yacht and returns
// the classification of the first one whose range contains date. Type wins
// over status: blocked, maintenance and owner-use periods report as such even
// while pending.
func DateAvailability(date time.Time, yachtID string, reservations []Reservation) Availability {
	d := day(date)
	out := Availability{Date: d, YachtID: yachtID, Status: Available}
	for i := range reservations {
		r := &reservations[i]
		if r.YachtID != yachtID || !r.Active() {
			continue
		}
		if d.Before(day(r.Start)) || d.After(day(r.End)) {
			continue
		}
		out.Status = occupancyStatus(*r)
		out.TransitionDay = d.Equal(day(r.Start)) || d.Equal(day(r.End))
		occupant := r.Clone()
		out.Reservation = &occupant
		return out
	}
	return out
}

// RangeAvailability maps DateAvailability over every day in [start, end].
func RangeAvailability(start, end time.Time, yachtID string, reservations []Reservation) []Availability {
	s, e := day(start), day(end)
	if e.Before(s) {
		return nil
	}
	out := make([]Availability, 0, daysInclusive(s, e))
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, DateAvailability(d, yachtID, reservations))
	}
	return out
}

func occupancyStatus(r Reservation) AvailabilityStatus {
	switch r.Type {
	case TypeBlocked:
		return AvailBlocked
	case TypeMaintenance:
		return AvailMaintenance
	case TypeOwnerUse:
		return AvailOwnerUse
	}
	if r.Status == StatusConfirmed || r.Status == StatusCompleted {
		return AvailConfirmed
	}
	return AvailPending
}
