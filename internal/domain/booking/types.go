// Package booking implements the conflict and availability engine: pure
// functions over caller-supplied reservation lists. Nothing in this package
// keeps state or mutates its inputs; all interval math runs at day
// granularity in UTC.
package booking

import "time"

type Status string

const (
	StatusPending        Status = "pending"
	StatusDepositPending Status = "deposit_pending"
	StatusConfirmed      Status = "confirmed"
	StatusCancelled      Status = "cancelled"
	StatusNoShow         Status = "no_show"
	StatusCompleted      Status = "completed"
)

type Type string

const (
	TypeCharter     Type = "charter"
	TypeBlocked     Type = "blocked"
	TypeMaintenance Type = "maintenance"
	TypeOwnerUse    Type = "owner_use"
)

// maxChangeHistory caps the per-reservation change log; oldest entries are
// dropped first.
const maxChangeHistory = 50

// ChangeEntry summarizes one mutation applied to a reservation.
type ChangeEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Fields []string  `json:"fields"`
}

// Reservation is a claim on one yacht for a date-time interval. End must be
// after Start. Cancelled and no-show reservations stay in history but are
// ignored by conflict and availability computation.
type Reservation struct {
	ID            string        `json:"id"`
	YachtID       string        `json:"yachtId"`
	CustomerName  string        `json:"customerName,omitempty"`
	CustomerEmail string        `json:"customerEmail,omitempty"`
	Guests        int           `json:"guests,omitempty"`
	Start         time.Time     `json:"start"`
	End           time.Time     `json:"end"`
	Status        Status        `json:"status"`
	Type          Type          `json:"type"`
	ChangeHistory []ChangeEntry `json:"changeHistory,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Active reports whether the reservation participates in conflict and
// availability computation.
func (r Reservation) Active() bool {
	return r.Status != StatusCancelled && r.Status != StatusNoShow
}

// Clone returns a deep copy, including the change history slice.
func (r Reservation) Clone() Reservation {
	out := r
	if r.ChangeHistory != nil {
		out.ChangeHistory = make([]ChangeEntry, len(r.ChangeHistory))
		copy(out.ChangeHistory, r.ChangeHistory)
	}
	return out
}

// RecordChange appends a change entry naming the mutated fields, evicting the
// oldest entry once the cap is reached.
func (r *Reservation) RecordChange(at time.Time, actor string, fields ...string) {
	r.ChangeHistory = append(r.ChangeHistory, ChangeEntry{At: at, Actor: actor, Fields: fields})
	if len(r.ChangeHistory) > maxChangeHistory {
		r.ChangeHistory = r.ChangeHistory[len(r.ChangeHistory)-maxChangeHistory:]
	}
}

// Patch is a partial update to a reservation. Nil fields are left untouched.
type Patch struct {
	YachtID       *string    `json:"yachtId,omitempty"`
	CustomerName  *string    `json:"customerName,omitempty"`
	CustomerEmail *string    `json:"customerEmail,omitempty"`
	Guests        *int       `json:"guests,omitempty"`
	Start         *time.Time `json:"start,omitempty"`
	End           *time.Time `json:"end,omitempty"`
	Status        *Status    `json:"status,omitempty"`
	Type          *Type      `json:"type,omitempty"`
}

// Clone returns a copy sharing no pointers with p.
func (p Patch) Clone() Patch {
	var out Patch
	if p.YachtID != nil {
		v := *p.YachtID
		out.YachtID = &v
	}
	if p.CustomerName != nil {
		v := *p.CustomerName
		out.CustomerName = &v
	}
	if p.CustomerEmail != nil {
		v := *p.CustomerEmail
		out.CustomerEmail = &v
	}
	if p.Guests != nil {
		v := *p.Guests
		out.Guests = &v
	}
	if p.Start != nil {
		v := *p.Start
		out.Start = &v
	}
	if p.End != nil {
		v := *p.End
		out.End = &v
	}
	if p.Status != nil {
		v := *p.Status
		out.Status = &v
	}
	if p.Type != nil {
		v := *p.Type
		out.Type = &v
	}
	return out
}

// Apply overwrites the non-nil patch fields on r and returns the names of the
// fields that changed.
func (p Patch) Apply(r *Reservation) []string {
	var changed []string
	if p.YachtID != nil && *p.YachtID != r.YachtID {
		r.YachtID = *p.YachtID
		changed = append(changed, "yachtId")
	}
	if p.CustomerName != nil && *p.CustomerName != r.CustomerName {
		r.CustomerName = *p.CustomerName
		changed = append(changed, "customerName")
	}
	if p.CustomerEmail != nil && *p.CustomerEmail != r.CustomerEmail {
		r.CustomerEmail = *p.CustomerEmail
		changed = append(changed, "customerEmail")
	}
	if p.Guests != nil && *p.Guests != r.Guests {
		r.Guests = *p.Guests
		changed = append(changed, "guests")
	}
	if p.Start != nil && !p.Start.Equal(r.Start) {
		r.Start = *p.Start
		changed = append(changed, "start")
	}
	if p.End != nil && !p.End.Equal(r.End) {
		r.End = *p.End
		changed = append(changed, "end")
	}
	if p.Status != nil && *p.Status != r.Status {
		r.Status = *p.Status
		changed = append(changed, "status")
	}
	if p.Type != nil && *p.Type != r.Type {
		r.Type = *p.Type
		changed = append(changed, "type")
	}
	return changed
}

// day truncates t to its calendar date in UTC. All overlap and availability
// math compares days, not instants.
func day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// daysInclusive counts calendar days from a through b, both included.
// Returns 0 when b precedes a.
func daysInclusive(a, b time.Time) int {
	a, b = day(a), day(b)
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a).Hours()/24) + 1
}

func maxDay(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minDay(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func isWeekend(t time.Time) bool {
	wd := day(t).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
