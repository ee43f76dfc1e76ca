package store

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/charter-desk/internal/backend"
	"github.com/example/charter-desk/internal/domain/booking"
	"github.com/example/charter-desk/internal/domain/fleet"
)

// fakeAPI echoes mutations back, optionally failing on command. It replaces
// the backend in every test; no randomized failure injection.
type fakeAPI struct {
	mu       sync.Mutex
	failWith error
	createdN int
	updatedN int
	deletedN int
}

func (f *fakeAPI) Create(_ context.Context, r booking.Reservation) (booking.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return booking.Reservation{}, f.failWith
	}
	f.createdN++
	return r, nil
}

func (f *fakeAPI) Update(_ context.Context, id string, patch booking.Patch) (booking.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return booking.Reservation{}, f.failWith
	}
	f.updatedN++
	// the manager commits the server echo; synthesizing it from the patch
	// keeps the fake honest without tracking state
	r := booking.Reservation{ID: id, Status: booking.StatusPending, Type: booking.TypeCharter}
	patch.Apply(&r)
	return r, nil
}

func (f *fakeAPI) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.deletedN++
	return nil
}

func (f *fakeAPI) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func charter(id string, start, end time.Time) booking.Reservation {
	return booking.Reservation{
		ID: id, YachtID: "spectre",
		Start: start, End: end,
		Status: booking.StatusConfirmed, Type: booking.TypeCharter,
	}
}

func TestCreateCommitsOnSuccess(t *testing.T) {
	api := &fakeAPI{}
	m := NewManager(api, testLogger())

	r, err := m.Create(context.Background(), booking.Reservation{
		YachtID: "spectre",
		Start:   date(2025, time.June, 1), End: date(2025, time.June, 5),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, booking.StatusPending, r.Status)
	assert.Equal(t, booking.TypeCharter, r.Type)
	assert.Len(t, r.ChangeHistory, 1)

	got, ok := m.Get(r.ID)
	require.True(t, ok)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, 1, m.HistoryLen())
}

func TestCreateRollsBackOnFailure(t *testing.T) {
	api := &fakeAPI{}
	api.fail(backend.Errf(backend.KindNetwork, "unreachable"))
	m := NewManager(api, testLogger())

	var events []EventKind
	m.Subscribe(func(ev Event) { events = append(events, ev.Kind) })

	_, err := m.Create(context.Background(), booking.Reservation{
		YachtID: "spectre",
		Start:   date(2025, time.June, 1), End: date(2025, time.June, 5),
	})
	require.Error(t, err)
	assert.Equal(t, backend.KindNetwork, backend.KindOf(err))

	assert.Empty(t, m.All())
	assert.Equal(t, 0, m.HistoryLen())
	assert.Equal(t, []EventKind{EventOptimisticApply, EventOptimisticRollback}, events)
}

func TestUpdateRollbackRestoresSnapshotExactly(t *testing.T) {
	api := &fakeAPI{}
	m := NewManager(api, testLogger())
	m.SetAll([]booking.Reservation{charter("r1", date(2025, time.June, 1), date(2025, time.June, 5))})

	before, ok := m.Get("r1")
	require.True(t, ok)

	api.fail(backend.Errf(backend.KindConflict, "taken"))
	name := "Avery"
	_, err := m.Update(context.Background(), "r1", booking.Patch{CustomerName: &name})
	require.Error(t, err)

	after, ok := m.Get("r1")
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Len(t, after.ChangeHistory, len(before.ChangeHistory))
}

func TestDeleteRollsBackOnFailure(t *testing.T) {
	api := &fakeAPI{}
	m := NewManager(api, testLogger())
	m.SetAll([]booking.Reservation{charter("r1", date(2025, time.June, 1), date(2025, time.June, 5))})

	api.fail(errors.New("boom"))
	err := m.Delete(context.Background(), "r1")
	require.Error(t, err)

	_, ok := m.Get("r1")
	assert.True(t, ok)
}

func TestCreateRejectsConflictingRange(t *testing.T) {
	api := &fakeAPI{}
	m := NewManager(api, testLogger())
	m.SetAll([]booking.Reservation{charter("r1", date(2025, time.June, 10), date(2025, time.June, 15))})

	_, err := m.Create(context.Background(), booking.Reservation{
		YachtID: "spectre",
		Start:   date(2025, time.June, 12), End: date(2025, time.June, 16),
	})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Result.Conflicts, 1)
	assert.Equal(t, booking.ConflictConfirmedBooking, ce.Result.Conflicts[0].Type)
	assert.Equal(t, 0, api.createdN, "backend must not be called on local conflict")

	// explicit override pushes it through
	_, err = m.Create(context.Background(), booking.Reservation{
		YachtID: "spectre",
		Start:   date(2025, time.June, 12), End: date(2025, time.June, 16),
	}, SkipConflictCheck())
	require.NoError(t, err)
}

func TestCreateRefusesDuplicateID(t *testing.T) {
	api := &fakeAPI{}
	api.fail(backend.Errf(backend.KindNetwork, "unreachable"))
	m := NewManager(api, testLogger())
	m.SetAll([]booking.Reservation{charter("r1", date(2025, time.June, 1), date(2025, time.June, 5))})

	_, err := m.Create(context.Background(), booking.Reservation{
		ID: "r1", YachtID: "spectre",
		Start: date(2025, time.July, 1), End: date(2025, time.July, 5),
	})
	require.Error(t, err)
	assert.Equal(t, backend.KindConflict, backend.KindOf(err))

	// the existing reservation is untouched; in particular a failing backend
	// call must not end with the original erased by the rollback
	got, ok := m.Get("r1")
	require.True(t, ok)
	assert.Equal(t, date(2025, time.June, 1), got.Start)

	// the guard holds even under the conflict-check override
	_, err = m.Create(context.Background(), booking.Reservation{
		ID: "r1", YachtID: "spectre",
		Start: date(2025, time.July, 1), End: date(2025, time.July, 5),
	}, SkipConflictCheck())
	require.Error(t, err)
}

func TestFleetConstraintsGateMutations(t *testing.T) {
	api := &fakeAPI{}
	m := NewManager(api, testLogger())
	m.UseFleet(fleet.NewRegistry(fleet.Yacht{
		ID: "spectre", MaxGuests: 8,
		Maintenance: []fleet.Window{{
			Start:  date(2025, time.November, 1),
			End:    date(2025, time.November, 14),
			Reason: "haul-out",
		}},
	}))

	_, err := m.Create(context.Background(), booking.Reservation{
		YachtID: "spectre",
		Start:   date(2025, time.November, 3), End: date(2025, time.November, 6),
	})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Result.Conflicts, 1)
	assert.Equal(t, booking.ConflictMaintenance, ce.Result.Conflicts[0].Type)
	assert.Equal(t, 0, api.createdN, "backend must not be called on a maintenance conflict")

	// a clear week goes through, and moving it into the window is refused
	r, err := m.Create(context.Background(), booking.Reservation{
		YachtID: "spectre",
		Start:   date(2025, time.December, 1), End: date(2025, time.December, 5),
	})
	require.NoError(t, err)

	_, err = m.Move(context.Background(), r.ID, MoveArgs{
		Start: date(2025, time.November, 5), End: date(2025, time.November, 8),
	})
	require.ErrorAs(t, err, &ce)
}

func TestCreateRejectsInvertedRange(t *testing.T) {
	m := NewManager(&fakeAPI{}, testLogger())
	_, err := m.Create(context.Background(), booking.Reservation{
		YachtID: "spectre",
		Start:   date(2025, time.June, 5), End: date(2025, time.June, 1),
	})
	require.Error(t, err)
	assert.Equal(t, backend.KindValidation, backend.KindOf(err))
}

func TestMoveRetargetsYachtAndDates(t *testing.T) {
	api := &fakeAPI{}
	m := NewManager(api, testLogger())
	m.SetAll([]booking.Reservation{
		charter("r1", date(2025, time.June, 1), date(2025, time.June, 5)),
		charter("r2", date(2025, time.June, 10), date(2025, time.June, 15)),
	})

	// moving r1 onto r2's dates must conflict
	_, err := m.Move(context.Background(), "r1", MoveArgs{
		Start: date(2025, time.June, 11), End: date(2025, time.June, 13),
	})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)

	// a free week is fine
	moved, err := m.Move(context.Background(), "r1", MoveArgs{
		Start: date(2025, time.June, 20), End: date(2025, time.June, 24),
	})
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.June, 20), moved.Start)
}

func TestBatchUpdatePartialFailure(t *testing.T) {
	api := &fakeAPI{}
	m := NewManager(api, testLogger())
	m.SetAll([]booking.Reservation{charter("r1", date(2025, time.June, 1), date(2025, time.June, 5))})

	var batchEvents int
	m.Subscribe(func(ev Event) {
		if ev.Kind == EventBatchComplete {
			batchEvents++
		}
	})

	name := "Rowan"
	results := m.BatchUpdate(context.Background(), []BatchOp{
		{Kind: MutationUpdate, ID: "r1", Patch: booking.Patch{CustomerName: &name}},
		{Kind: MutationDelete, ID: "missing"},
		{Kind: MutationCreate, Data: booking.Reservation{
			YachtID: "osprey",
			Start:   date(2025, time.June, 1), End: date(2025, time.June, 3),
		}},
	})
	require.Len(t, results, 3)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	var nf *ErrNotFound
	assert.ErrorAs(t, results[1].Err, &nf)
	assert.True(t, results[2].OK, "a failed sibling must not abort the batch")
	assert.Equal(t, 1, batchEvents)
}

func TestUndoCreateDeletesIt(t *testing.T) {
	api := &fakeAPI{}
	m := NewManager(api, testLogger())

	r, err := m.Create(context.Background(), booking.Reservation{
		YachtID: "spectre",
		Start:   date(2025, time.June, 1), End: date(2025, time.June, 5),
	})
	require.NoError(t, err)

	require.NoError(t, m.UndoLast(context.Background()))
	_, ok := m.Get(r.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, m.HistoryLen(), "undo must not record new history")
}

func TestUndoDeleteRecreates(t *testing.T) {
	api := &fakeAPI{}
	m := NewManager(api, testLogger())
	m.SetAll([]booking.Reservation{charter("r1", date(2025, time.June, 1), date(2025, time.June, 5))})

	require.NoError(t, m.Delete(context.Background(), "r1"))
	_, ok := m.Get("r1")
	require.False(t, ok)

	require.NoError(t, m.UndoLast(context.Background()))
	got, ok := m.Get("r1")
	require.True(t, ok)
	assert.Equal(t, date(2025, time.June, 1), got.Start)
}

func TestUndoUpdateRestoresFields(t *testing.T) {
	api := &fakeAPI{}
	m := NewManager(api, testLogger())
	m.SetAll([]booking.Reservation{charter("r1", date(2025, time.June, 1), date(2025, time.June, 5))})

	name := "Avery"
	_, err := m.Update(context.Background(), "r1", booking.Patch{CustomerName: &name})
	require.NoError(t, err)

	require.NoError(t, m.UndoLast(context.Background()))
	got, ok := m.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "", got.CustomerName)
}

func TestSubscriberPanicDoesNotBreakOthers(t *testing.T) {
	api := &fakeAPI{}
	m := NewManager(api, testLogger())

	m.Subscribe(func(Event) { panic("bad subscriber") })
	var seen int
	m.Subscribe(func(Event) { seen++ })

	_, err := m.Create(context.Background(), booking.Reservation{
		YachtID: "spectre",
		Start:   date(2025, time.June, 1), End: date(2025, time.June, 5),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen, "apply + created must both reach the healthy subscriber")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := NewManager(&fakeAPI{}, testLogger())
	var n int
	off := m.Subscribe(func(Event) { n++ })
	m.SetAll(nil)
	off()
	m.SetAll(nil)
	assert.Equal(t, 1, n)
}

func TestQueries(t *testing.T) {
	m := NewManager(&fakeAPI{}, testLogger())
	m.SetAll([]booking.Reservation{
		charter("r1", date(2025, time.June, 1), date(2025, time.June, 5)),
		{ID: "r2", YachtID: "osprey", Start: date(2025, time.June, 3), End: date(2025, time.June, 8),
			Status: booking.StatusPending, Type: booking.TypeCharter},
	})

	assert.Len(t, m.All(), 2)
	assert.Len(t, m.ForYacht("osprey"), 1)
	assert.Len(t, m.InRange(date(2025, time.June, 4), date(2025, time.June, 6)), 2)
	assert.Empty(t, m.InRange(date(2025, time.July, 1), date(2025, time.July, 5)))

	avail := m.DateAvailability(date(2025, time.June, 1), "spectre")
	assert.Equal(t, booking.AvailConfirmed, avail.Status)
	assert.True(t, avail.TransitionDay)
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	h := newHistoryRing(3)
	for i := 0; i < 5; i++ {
		r := charter("r", date(2025, time.June, 1+i), date(2025, time.June, 2+i))
		h.push(histEntry{Kind: MutationCreate, After: &r})
	}
	assert.Equal(t, 3, h.len())

	e, ok := h.pop()
	require.True(t, ok)
	assert.Equal(t, date(2025, time.June, 5), e.After.Start)

	h.pop()
	e, ok = h.pop()
	require.True(t, ok)
	assert.Equal(t, date(2025, time.June, 3), e.After.Start, "oldest two entries were evicted")

	_, ok = h.pop()
	assert.False(t, ok)
}
