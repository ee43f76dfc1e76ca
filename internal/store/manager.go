// Package store owns the canonical in-memory reservation collection. Every
// mutation is applied optimistically, confirmed against the backend, and
// rolled back to its pre-mutation snapshot on failure. Subscribers observe
// each transition through tagged events, emitted synchronously in mutation
// order.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/charter-desk/internal/backend"
	"github.com/example/charter-desk/internal/domain/booking"
	"github.com/example/charter-desk/internal/domain/fleet"
)

// historyCap bounds the undo history.
const historyCap = 50

// ConflictError blocks a mutation whose range collides with existing
// reservations. The full check result rides along so callers can offer
// alternatives.
type ConflictError struct {
	Result booking.CheckResult
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: %d conflicting reservation(s)", len(e.Result.Conflicts))
}

// ErrNotFound reports a mutation against an id missing from the collection.
type ErrNotFound struct{ ID string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("store: reservation %s not found", e.ID) }

type mutateConfig struct {
	skipConflictCheck bool
}

type MutateOption func(*mutateConfig)

// SkipConflictCheck lets a caller push a mutation through despite detected
// conflicts (explicit override).
func SkipConflictCheck() MutateOption {
	return func(c *mutateConfig) { c.skipConflictCheck = true }
}

// MoveArgs retargets a reservation to a new yacht and/or date range.
type MoveArgs struct {
	YachtID string
	Start   time.Time
	End     time.Time
}

// BatchOp is one element of a BatchUpdate. Exactly the fields for its Kind
// are consulted.
type BatchOp struct {
	Kind  MutationKind
	ID    string
	Data  booking.Reservation
	Patch booking.Patch
	Move  MoveArgs
}

// BatchResult reports one batch element; batches are best-effort, so a
// failure never rolls back its siblings.
type BatchResult struct {
	OK          bool
	Reservation booking.Reservation
	Err         error
}

// Manager is the optimistic state manager. Construct one at startup and pass
// it by reference; it has no package-level state.
type Manager struct {
	api   backend.API
	log   *logrus.Logger
	fleet *fleet.Registry

	mu           sync.Mutex
	reservations map[string]booking.Reservation
	history      *historyRing
	subs         map[int]func(Event)
	nextSub      int
}

func NewManager(api backend.API, log *logrus.Logger) *Manager {
	return &Manager{
		api:          api,
		log:          log,
		reservations: make(map[string]booking.Reservation),
		history:      newHistoryRing(historyCap),
		subs:         make(map[int]func(Event)),
	}
}

// UseFleet wires the yacht registry into pre-mutation conflict checks, so
// maintenance windows and yacht constraints gate Create, Update and Move.
func (m *Manager) UseFleet(reg *fleet.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fleet = reg
}

// Subscribe registers a listener for all event kinds and returns its
// unsubscribe function. Callbacks run synchronously on the mutating
// goroutine and must not call back into the Manager.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// emitLocked dispatches an event to every subscriber in registration order.
// A panicking subscriber is logged and skipped; it cannot break the mutation
// pipeline or its fellow subscribers.
func (m *Manager) emitLocked(ev Event) {
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fn := m.subs[id]
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.WithField("event", ev.Kind.String()).
						Errorf("subscriber %d panicked: %v", id, r)
				}
			}()
			fn(ev)
		}()
	}
}

// SetAll replaces the collection wholesale, e.g. after a fresh backend query.
func (m *Manager) SetAll(reservations []booking.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations = make(map[string]booking.Reservation, len(reservations))
	for _, r := range reservations {
		m.reservations[r.ID] = r.Clone()
	}
	m.emitLocked(Event{Kind: EventBulkUpdate})
}

// Clear empties the collection and the undo history.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations = make(map[string]booking.Reservation)
	m.history = newHistoryRing(historyCap)
	m.emitLocked(Event{Kind: EventCleared})
}

// Create synthesizes a reservation from data, applies it optimistically and
// confirms it with the backend. On backend failure the optimistic copy is
// removed and the failure returned to the caller.
func (m *Manager) Create(ctx context.Context, data booking.Reservation, opts ...MutateOption) (booking.Reservation, error) {
	return m.create(ctx, data, true, opts...)
}

func (m *Manager) create(ctx context.Context, data booking.Reservation, record bool, opts ...MutateOption) (booking.Reservation, error) {
	cfg := applyOpts(opts)
	if !data.End.After(data.Start) {
		return booking.Reservation{}, backend.Errf(backend.KindValidation, "end must be after start")
	}

	now := time.Now()
	r := data.Clone()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = booking.StatusPending
	}
	if r.Type == "" {
		r.Type = booking.TypeCharter
	}
	r.CreatedAt, r.UpdatedAt = now, now
	r.RecordChange(now, "local", "created")

	opID := uuid.NewString()

	m.mu.Lock()
	// A caller-supplied id colliding with an existing reservation would turn
	// the optimistic apply into a silent overwrite; rolling that back could
	// never restore the original, so refuse it outright.
	if _, exists := m.reservations[r.ID]; exists {
		m.mu.Unlock()
		return booking.Reservation{}, backend.Errf(backend.KindConflict, "reservation %s already exists", r.ID)
	}
	if !cfg.skipConflictCheck {
		if check := m.checkLocked(r); check.HasConflicts {
			m.mu.Unlock()
			return booking.Reservation{}, &ConflictError{Result: check}
		}
	}
	m.reservations[r.ID] = r
	m.emitApplyLocked(opID, r)
	m.mu.Unlock()

	confirmed, err := m.api.Create(ctx, r)
	if err != nil {
		m.mu.Lock()
		delete(m.reservations, r.ID)
		m.emitRollbackLocked(opID, r)
		m.mu.Unlock()
		return booking.Reservation{}, fmt.Errorf("create %s: %w", r.ID, err)
	}

	if confirmed.ChangeHistory == nil {
		confirmed.ChangeHistory = r.ChangeHistory
	}
	m.mu.Lock()
	m.reservations[confirmed.ID] = confirmed.Clone()
	if record {
		after := confirmed.Clone()
		m.history.push(histEntry{Kind: MutationCreate, At: now, After: &after})
	}
	ev := confirmed.Clone()
	m.emitLocked(Event{Kind: EventCreated, OperationID: opID, Reservation: &ev})
	m.mu.Unlock()
	return confirmed, nil
}

// Update applies a partial patch. The pre-mutation snapshot is captured
// before the optimistic apply and restored verbatim if the backend refuses.
func (m *Manager) Update(ctx context.Context, id string, patch booking.Patch, opts ...MutateOption) (booking.Reservation, error) {
	return m.update(ctx, id, patch, MutationUpdate, true, opts...)
}

// Move retargets a reservation to another yacht and/or date range. It is an
// update with its own history kind so undo semantics read correctly.
func (m *Manager) Move(ctx context.Context, id string, args MoveArgs, opts ...MutateOption) (booking.Reservation, error) {
	patch := booking.Patch{}
	if args.YachtID != "" {
		patch.YachtID = &args.YachtID
	}
	if !args.Start.IsZero() {
		patch.Start = &args.Start
	}
	if !args.End.IsZero() {
		patch.End = &args.End
	}
	return m.update(ctx, id, patch, MutationMove, true, opts...)
}

func (m *Manager) update(ctx context.Context, id string, patch booking.Patch, kind MutationKind, record bool, opts ...MutateOption) (booking.Reservation, error) {
	cfg := applyOpts(opts)
	now := time.Now()
	opID := uuid.NewString()

	m.mu.Lock()
	cur, ok := m.reservations[id]
	if !ok {
		m.mu.Unlock()
		return booking.Reservation{}, &ErrNotFound{ID: id}
	}
	before := cur.Clone()
	next := cur.Clone()
	changed := patch.Apply(&next)
	if !next.End.After(next.Start) {
		m.mu.Unlock()
		return booking.Reservation{}, backend.Errf(backend.KindValidation, "end must be after start")
	}
	if len(changed) > 0 {
		next.UpdatedAt = now
		next.RecordChange(now, "local", changed...)
	}
	rangeChanged := patch.Start != nil || patch.End != nil || patch.YachtID != nil
	if rangeChanged && !cfg.skipConflictCheck {
		if check := m.checkLocked(next); check.HasConflicts {
			m.mu.Unlock()
			return booking.Reservation{}, &ConflictError{Result: check}
		}
	}
	m.reservations[id] = next
	m.emitApplyLocked(opID, next)
	m.mu.Unlock()

	confirmed, err := m.api.Update(ctx, id, patch)
	if err != nil {
		m.mu.Lock()
		m.reservations[id] = before
		m.emitRollbackLocked(opID, before)
		m.mu.Unlock()
		return booking.Reservation{}, fmt.Errorf("update %s: %w", id, err)
	}

	if confirmed.ChangeHistory == nil {
		confirmed.ChangeHistory = next.ChangeHistory
	}
	m.mu.Lock()
	m.reservations[id] = confirmed.Clone()
	if record {
		b, a := before.Clone(), confirmed.Clone()
		m.history.push(histEntry{Kind: kind, At: now, Before: &b, After: &a})
	}
	ev := confirmed.Clone()
	m.emitLocked(Event{Kind: EventUpdated, OperationID: opID, Reservation: &ev})
	m.mu.Unlock()
	return confirmed, nil
}

// Delete removes a reservation from the active collection. History keeps the
// deleted snapshot so the operation can be undone.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.delete(ctx, id, true)
}

func (m *Manager) delete(ctx context.Context, id string, record bool) error {
	now := time.Now()
	opID := uuid.NewString()

	m.mu.Lock()
	cur, ok := m.reservations[id]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{ID: id}
	}
	before := cur.Clone()
	delete(m.reservations, id)
	m.emitApplyLocked(opID, before)
	m.mu.Unlock()

	if err := m.api.Delete(ctx, id); err != nil {
		m.mu.Lock()
		m.reservations[id] = before
		m.emitRollbackLocked(opID, before)
		m.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, err)
	}

	m.mu.Lock()
	if record {
		b := before.Clone()
		m.history.push(histEntry{Kind: MutationDelete, At: now, Before: &b})
	}
	ev := before.Clone()
	m.emitLocked(Event{Kind: EventDeleted, OperationID: opID, Reservation: &ev})
	m.mu.Unlock()
	return nil
}

// BatchUpdate executes operations sequentially, never in parallel, so two
// writes against the same yacht cannot interleave. A failing operation does
// not abort or roll back its siblings.
func (m *Manager) BatchUpdate(ctx context.Context, ops []BatchOp) []BatchResult {
	results := make([]BatchResult, 0, len(ops))
	for _, op := range ops {
		var (
			r   booking.Reservation
			err error
		)
		switch op.Kind {
		case MutationCreate:
			r, err = m.Create(ctx, op.Data)
		case MutationUpdate:
			r, err = m.Update(ctx, op.ID, op.Patch)
		case MutationMove:
			r, err = m.Move(ctx, op.ID, op.Move)
		case MutationDelete:
			err = m.Delete(ctx, op.ID)
		default:
			err = fmt.Errorf("batch: unknown operation kind %q", op.Kind)
		}
		results = append(results, BatchResult{OK: err == nil, Reservation: r, Err: err})
	}
	m.mu.Lock()
	m.emitLocked(Event{Kind: EventBatchComplete, Results: results})
	m.mu.Unlock()
	return results
}

// UndoLast pops the most recent history entry and applies its inverse through
// the normal mutation pipeline (without recording a new entry).
func (m *Manager) UndoLast(ctx context.Context) error {
	m.mu.Lock()
	entry, ok := m.history.pop()
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("store: nothing to undo")
	}

	switch entry.Kind {
	case MutationCreate:
		return m.delete(ctx, entry.After.ID, false)
	case MutationDelete:
		_, err := m.create(ctx, *entry.Before, false, SkipConflictCheck())
		return err
	case MutationUpdate, MutationMove:
		_, err := m.update(ctx, entry.Before.ID, fullPatch(*entry.Before), MutationUpdate, false, SkipConflictCheck())
		return err
	}
	return fmt.Errorf("store: cannot undo %q", entry.Kind)
}

// HistoryLen reports how many operations are undoable.
func (m *Manager) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.len()
}

// --- queries (side-effect free, return clones) ---

func (m *Manager) All() []booking.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]booking.Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Manager) Get(id string) (booking.Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return booking.Reservation{}, false
	}
	return r.Clone(), true
}

func (m *Manager) ForYacht(yachtID string) []booking.Reservation {
	var out []booking.Reservation
	for _, r := range m.All() {
		if r.YachtID == yachtID {
			out = append(out, r)
		}
	}
	return out
}

func (m *Manager) InRange(start, end time.Time) []booking.Reservation {
	var out []booking.Reservation
	for _, r := range m.All() {
		if booking.Overlaps(r.Start, r.End, start, end) {
			out = append(out, r)
		}
	}
	return out
}

// DateAvailability classifies one date for one yacht against the current
// collection.
func (m *Manager) DateAvailability(date time.Time, yachtID string) booking.Availability {
	return booking.DateAvailability(date, yachtID, m.All())
}

// CheckCandidate runs the conflict engine over the current collection.
func (m *Manager) CheckCandidate(candidate booking.Reservation, opts booking.CheckOptions) booking.CheckResult {
	return booking.CheckConflicts(candidate, m.All(), opts)
}

// --- internals ---

func (m *Manager) checkLocked(candidate booking.Reservation) booking.CheckResult {
	existing := make([]booking.Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		existing = append(existing, r)
	}
	var opts booking.CheckOptions
	if m.fleet != nil {
		if y, ok := m.fleet.Get(candidate.YachtID); ok {
			opts.Spec = &y
		}
	}
	return booking.CheckConflicts(candidate, existing, opts)
}

func (m *Manager) emitApplyLocked(opID string, r booking.Reservation) {
	ev := r.Clone()
	m.emitLocked(Event{Kind: EventOptimisticApply, OperationID: opID, Reservation: &ev})
}

func (m *Manager) emitRollbackLocked(opID string, r booking.Reservation) {
	ev := r.Clone()
	m.emitLocked(Event{Kind: EventOptimisticRollback, OperationID: opID, Reservation: &ev})
}

func applyOpts(opts []MutateOption) mutateConfig {
	var cfg mutateConfig
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// fullPatch builds a patch that restores every mutable field of snap.
func fullPatch(snap booking.Reservation) booking.Patch {
	return booking.Patch{
		YachtID:       &snap.YachtID,
		CustomerName:  &snap.CustomerName,
		CustomerEmail: &snap.CustomerEmail,
		Guests:        &snap.Guests,
		Start:         &snap.Start,
		End:           &snap.End,
		Status:        &snap.Status,
		Type:          &snap.Type,
	}
}
