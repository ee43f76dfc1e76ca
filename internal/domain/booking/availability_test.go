package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateAvailabilityTransitionDay(t *testing.T) {
	existing := confirmedCharter("r1", "spectre", date(2025, time.June, 10), date(2025, time.June, 15))

	got := DateAvailability(date(2025, time.June, 10), "spectre", []Reservation{existing})
	assert.Equal(t, AvailConfirmed, got.Status)
	assert.True(t, got.TransitionDay)
	require.NotNil(t, got.Reservation)
	assert.Equal(t, "r1", got.Reservation.ID)

	mid := DateAvailability(date(2025, time.June, 12), "spectre", []Reservation{existing})
	assert.Equal(t, AvailConfirmed, mid.Status)
	assert.False(t, mid.TransitionDay)

	free := DateAvailability(date(2025, time.June, 20), "spectre", []Reservation{existing})
	assert.Equal(t, Available, free.Status)
	assert.Nil(t, free.Reservation)
}

func TestDateAvailabilityStatusPriority(t *testing.T) {
	d := date(2025, 7, 2)
	mk := func(typ Type, status Status) Reservation {
		return Reservation{ID: "r", YachtID: "y", Start: date(2025, 7, 1), End: date(2025, 7, 5), Status: status, Type: typ}
	}
	cases := []struct {
		name string
		r    Reservation
		want AvailabilityStatus
	}{
		{"blocked wins over status", mk(TypeBlocked, StatusPending), AvailBlocked},
		{"maintenance", mk(TypeMaintenance, StatusConfirmed), AvailMaintenance},
		{"owner use", mk(TypeOwnerUse, StatusConfirmed), AvailOwnerUse},
		{"confirmed charter", mk(TypeCharter, StatusConfirmed), AvailConfirmed},
		{"pending charter", mk(TypeCharter, StatusPending), AvailPending},
		{"deposit pending charter", mk(TypeCharter, StatusDepositPending), AvailPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DateAvailability(d, "y", []Reservation{tc.r})
			assert.Equal(t, tc.want, got.Status)
		})
	}
}

func TestDateAvailabilityIgnoresCancelled(t *testing.T) {
	cancelled := Reservation{ID: "r", YachtID: "y", Start: date(2025, 7, 1), End: date(2025, 7, 5), Status: StatusCancelled, Type: TypeCharter}
	got := DateAvailability(date(2025, 7, 2), "y", []Reservation{cancelled})
	assert.Equal(t, Available, got.Status)
}

func TestRangeAvailability(t *testing.T) {
	existing := confirmedCharter("r1", "y", date(2025, 7, 3), date(2025, 7, 5))

	days := RangeAvailability(date(2025, 7, 1), date(2025, 7, 7), "y", []Reservation{existing})
	require.Len(t, days, 7)

	wantStatus := []AvailabilityStatus{
		Available, Available, AvailConfirmed, AvailConfirmed, AvailConfirmed, Available, Available,
	}
	for i, w := range wantStatus {
		assert.Equal(t, w, days[i].Status, "day %d", i)
	}
	assert.True(t, days[2].TransitionDay)
	assert.False(t, days[3].TransitionDay)
	assert.True(t, days[4].TransitionDay)
}

func TestRangeAvailabilityEmptyForInvertedRange(t *testing.T) {
	assert.Nil(t, RangeAvailability(date(2025, 7, 7), date(2025, 7, 1), "y", nil))
}
