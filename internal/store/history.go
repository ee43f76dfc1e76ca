package store

import (
	"time"

	"github.com/example/charter-desk/internal/domain/booking"
)

// MutationKind names the four mutation entry points.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
	MutationMove   MutationKind = "move"
)

// histEntry records one committed mutation with enough state to invert it.
type histEntry struct {
	Kind   MutationKind
	At     time.Time
	Before *booking.Reservation // nil for create
	After  *booking.Reservation // nil for delete
}

// historyRing is a bounded LIFO of committed mutations. Pushing beyond
// capacity evicts the oldest entry.
type historyRing struct {
	buf   []histEntry
	head  int // index of the oldest entry
	count int
}

func newHistoryRing(capacity int) *historyRing {
	return &historyRing{buf: make([]histEntry, capacity)}
}

func (h *historyRing) push(e histEntry) {
	if h.count < len(h.buf) {
		h.buf[(h.head+h.count)%len(h.buf)] = e
		h.count++
		return
	}
	// full: overwrite the oldest slot and advance
	h.buf[h.head] = e
	h.head = (h.head + 1) % len(h.buf)
}

// pop removes and returns the most recent entry.
func (h *historyRing) pop() (histEntry, bool) {
	if h.count == 0 {
		return histEntry{}, false
	}
	h.count--
	return h.buf[(h.head+h.count)%len(h.buf)], true
}

func (h *historyRing) len() int { return h.count }
