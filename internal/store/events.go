package store

import "github.com/example/charter-desk/internal/domain/booking"

// EventKind is the tagged-variant discriminator for subscription events.
type EventKind int

const (
	EventBulkUpdate EventKind = iota
	EventOptimisticApply
	EventOptimisticRollback
	EventCreated
	EventUpdated
	EventDeleted
	EventBatchComplete
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventBulkUpdate:
		return "bulk_update"
	case EventOptimisticApply:
		return "optimistic_apply"
	case EventOptimisticRollback:
		return "optimistic_rollback"
	case EventCreated:
		return "created"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	case EventBatchComplete:
		return "batch_complete"
	case EventCleared:
		return "cleared"
	}
	return "unknown"
}

// Event carries the payload for one state change. Reservation is set for
// per-reservation variants, Results for batch completion.
type Event struct {
	Kind        EventKind
	OperationID string
	Reservation *booking.Reservation
	Results     []BatchResult
}
