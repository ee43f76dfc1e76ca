// Package queue buffers mutation intents while the booking backend is
// unreachable and replays them strictly in enqueue order once connectivity
// returns. Items survive restarts via an embedded badger store; an item is
// only ever lost through the explicit max-retry exhaustion path, which is
// reported via the status snapshot, never silently.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/charter-desk/internal/backend"
	"github.com/example/charter-desk/internal/domain/booking"
)

type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
	OpToggle OpKind = "toggle"
)

type OpStatus string

const (
	OpPending   OpStatus = "pending"
	OpCompleted OpStatus = "completed"
	OpFailed    OpStatus = "failed"
)

// Operation is one queued mutation intent. Exactly the payload fields for
// its Kind are set: Data for create, Patch for update, Field/To for toggle.
type Operation struct {
	ID         string               `json:"id"`
	Seq        uint64               `json:"seq"`
	EnqueuedAt time.Time            `json:"enqueuedAt"`
	Kind       OpKind               `json:"kind"`
	TargetID   string               `json:"targetId,omitempty"`
	Data       *booking.Reservation `json:"data,omitempty"`
	Patch      *booking.Patch       `json:"patch,omitempty"`
	Field      string               `json:"field,omitempty"`
	To         booking.Status       `json:"to,omitempty"`
	Status     OpStatus             `json:"status"`
	Retries    int                  `json:"retries"`
	LastError  string               `json:"lastError,omitempty"`
}

// clone detaches the payload pointers so a snapshot holder cannot reach the
// queue's internal state.
func (op Operation) clone() Operation {
	out := op
	if op.Data != nil {
		d := op.Data.Clone()
		out.Data = &d
	}
	if op.Patch != nil {
		p := op.Patch.Clone()
		out.Patch = &p
	}
	return out
}

// ErrQueueFull is returned when enqueueing beyond the configured capacity.
var ErrQueueFull = errors.New("queue: at capacity")

type Config struct {
	// MaxPending caps the queue; further enqueues fail with ErrQueueFull.
	MaxPending int
	// MaxRetries before an item is marked permanently failed.
	MaxRetries int
	// ItemDelay spaces consecutive dispatches within a pass.
	ItemDelay time.Duration
	// RetryBackoff delays the next pass when pending items remain.
	RetryBackoff time.Duration
}

func (c *Config) withDefaults() {
	if c.MaxPending <= 0 {
		c.MaxPending = 100
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.ItemDelay <= 0 {
		c.ItemDelay = 250 * time.Millisecond
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 5 * time.Second
	}
}

// Status is a point-in-time snapshot for status queries and the web surface.
type Status struct {
	Online     bool        `json:"online"`
	Processing bool        `json:"processing"`
	Pending    int         `json:"pendingCount"`
	Retrying   int         `json:"retryingCount"`
	Failed     int         `json:"failedCount"`
	Items      []Operation `json:"items"`
}

// Queue is the durable FIFO dispatcher. Construct one at startup with Open
// and share it by reference.
type Queue struct {
	api   backend.API
	store Storage
	log   *logrus.Logger
	cfg   Config

	mu         sync.Mutex
	ops        []Operation
	online     bool
	processing bool
	seq        uint64
	timer      *time.Timer
	closed     bool
}

// Open loads persisted operations and returns a queue in the offline state;
// the first SetOnline(true) kicks off processing.
func Open(api backend.API, store Storage, log *logrus.Logger, cfg Config) (*Queue, error) {
	cfg.withDefaults()
	ops, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("queue: load persisted operations: %w", err)
	}
	q := &Queue{api: api, store: store, log: log, cfg: cfg, ops: ops}
	for _, op := range ops {
		if op.Seq >= q.seq {
			q.seq = op.Seq + 1
		}
	}
	if n := len(ops); n > 0 {
		log.WithField("count", n).Info("queue: recovered persisted operations")
	}
	return q, nil
}

// Enqueue appends a mutation intent and persists it immediately. If the
// queue is online and idle, a processing pass starts in the background.
func (q *Queue) Enqueue(op Operation) (string, error) {
	q.mu.Lock()
	if q.pendingLocked() >= q.cfg.MaxPending {
		q.mu.Unlock()
		return "", ErrQueueFull
	}
	op.ID = uuid.NewString()
	op.Seq = q.seq
	q.seq++
	op.EnqueuedAt = time.Now()
	op.Status = OpPending
	op.Retries = 0
	op.LastError = ""

	if err := q.persistLocked(op); err != nil {
		q.mu.Unlock()
		return "", err
	}
	q.ops = append(q.ops, op)
	kick := q.online && !q.processing
	q.mu.Unlock()

	if kick {
		go q.ProcessQueue(context.Background())
	}
	return op.ID, nil
}

// persistLocked writes op to durable storage. On a capacity failure it
// prunes completed entries and retries exactly once.
func (q *Queue) persistLocked(op Operation) error {
	err := q.store.Put(op)
	if !errors.Is(err, ErrCapacity) {
		return err
	}
	q.log.Warn("queue: storage full, pruning completed items")
	for _, o := range q.ops {
		if o.Status == OpCompleted {
			_ = q.store.Delete(o.Seq)
		}
	}
	return q.store.Put(op)
}

// SetOnline records a connectivity transition. Going online triggers an
// immediate pass; going offline only suppresses new passes — queued items
// stay durable.
func (q *Queue) SetOnline(online bool) {
	q.mu.Lock()
	was := q.online
	q.online = online
	kick := online && !was && !q.processing && q.pendingLocked() > 0
	q.mu.Unlock()

	if was != online {
		q.log.WithField("online", online).Info("queue: connectivity changed")
	}
	if kick {
		go q.ProcessQueue(context.Background())
	}
}

// Online reports the current connectivity flag.
func (q *Queue) Online() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// ProcessQueue runs one processing pass: pending items are dispatched
// strictly in enqueue order, completed and permanently failed items are
// pruned from storage afterwards, and another pass is scheduled when pending
// items remain. Re-entrant calls while a pass is active are no-ops.
func (q *Queue) ProcessQueue(ctx context.Context) error {
	q.mu.Lock()
	if q.processing || !q.online || q.closed {
		q.mu.Unlock()
		return nil
	}
	q.processing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.processing = false
		q.mu.Unlock()
	}()

	// Each pending item gets exactly one attempt per pass; transient
	// failures wait for the backoff pass.
	q.mu.Lock()
	var batch []int
	for i, op := range q.ops {
		if op.Status == OpPending {
			batch = append(batch, i)
		}
	}
	q.mu.Unlock()

	first := true
	for _, idx := range batch {
		q.mu.Lock()
		if !q.online {
			q.mu.Unlock()
			break
		}
		op := q.ops[idx]
		q.mu.Unlock()
		if op.Status != OpPending {
			continue
		}

		if !first {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(q.cfg.ItemDelay):
			}
		}
		first = false

		err := q.dispatch(ctx, op)

		q.mu.Lock()
		if err == nil {
			q.ops[idx].Status = OpCompleted
			q.ops[idx].LastError = ""
		} else {
			q.ops[idx].Retries++
			q.ops[idx].LastError = err.Error()
			if q.ops[idx].Retries >= q.cfg.MaxRetries || !backend.IsRetryable(err) {
				q.ops[idx].Status = OpFailed
				q.log.WithError(err).WithField("op", op.ID).
					Warn("queue: operation permanently failed")
			}
		}
		_ = q.persistLocked(q.ops[idx])
		q.mu.Unlock()

		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}

	q.prune()

	q.mu.Lock()
	pending := q.pendingLocked()
	if pending > 0 && q.online && !q.closed {
		if q.timer != nil {
			q.timer.Stop()
		}
		q.timer = time.AfterFunc(q.cfg.RetryBackoff, func() {
			_ = q.ProcessQueue(context.Background())
		})
	}
	q.mu.Unlock()
	return nil
}

// dispatch invokes the backend mutation matching the operation kind.
func (q *Queue) dispatch(ctx context.Context, op Operation) error {
	switch op.Kind {
	case OpCreate:
		if op.Data == nil {
			return backend.Errf(backend.KindValidation, "create operation without data")
		}
		_, err := q.api.Create(ctx, *op.Data)
		return err
	case OpUpdate:
		if op.Patch == nil {
			return backend.Errf(backend.KindValidation, "update operation without patch")
		}
		_, err := q.api.Update(ctx, op.TargetID, *op.Patch)
		return err
	case OpDelete:
		return q.api.Delete(ctx, op.TargetID)
	case OpToggle:
		to := op.To
		_, err := q.api.Update(ctx, op.TargetID, booking.Patch{Status: &to})
		return err
	}
	return backend.Errf(backend.KindValidation, "unknown operation kind %q", op.Kind)
}

// prune drops completed and permanently failed items from durable storage.
// Completed items also leave the in-memory list; failed ones stay visible in
// Status until retried or the process restarts.
func (q *Queue) prune() {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.ops[:0]
	for _, op := range q.ops {
		switch op.Status {
		case OpCompleted:
			_ = q.store.Delete(op.Seq)
		case OpFailed:
			_ = q.store.Delete(op.Seq)
			kept = append(kept, op)
		default:
			kept = append(kept, op)
		}
	}
	q.ops = kept
}

// RetryFailed resets the retry counter on every item that has failed at
// least once and triggers a new pass (the manual "try again" path).
func (q *Queue) RetryFailed() {
	q.mu.Lock()
	touched := false
	for i := range q.ops {
		if q.ops[i].Retries > 0 {
			q.ops[i].Retries = 0
			q.ops[i].Status = OpPending
			q.ops[i].LastError = ""
			_ = q.persistLocked(q.ops[i])
			touched = true
		}
	}
	kick := touched && q.online && !q.processing
	q.mu.Unlock()

	if kick {
		go q.ProcessQueue(context.Background())
	}
}

// Snapshot returns the current queue status.
func (q *Queue) Snapshot() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	st := Status{
		Online:     q.online,
		Processing: q.processing,
		Items:      make([]Operation, len(q.ops)),
	}
	for i, op := range q.ops {
		st.Items[i] = op.clone()
	}
	for _, op := range q.ops {
		switch {
		case op.Status == OpFailed:
			st.Failed++
		case op.Status == OpPending && op.Retries > 0:
			st.Retrying++
			st.Pending++
		case op.Status == OpPending:
			st.Pending++
		}
	}
	return st
}

// Close stops any scheduled pass and closes the durable store.
func (q *Queue) Close() error {
	q.mu.Lock()
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
	}
	q.mu.Unlock()
	return q.store.Close()
}

func (q *Queue) pendingLocked() int {
	n := 0
	for _, op := range q.ops {
		if op.Status == OpPending {
			n++
		}
	}
	return n
}
