package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// ErrCapacity signals the durable store refused a write for lack of room.
// The queue reacts by pruning completed entries and retrying once.
var ErrCapacity = errors.New("queue: storage capacity exceeded")

// Storage persists queue operations across restarts. Operations are keyed by
// sequence number so Load returns them in enqueue order.
type Storage interface {
	Put(op Operation) error
	Delete(seq uint64) error
	Load() ([]Operation, error)
	Close() error
}

const keyPrefix = "queue/op/"

func opKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

// BadgerStorage is the embedded durable store for queued mutations.
type BadgerStorage struct {
	db *badger.DB
}

// OpenStorage opens (or creates) the badger database at dir.
func OpenStorage(dir string) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil).WithSyncWrites(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("queue: open storage at %s: %w", dir, err)
	}
	return &BadgerStorage{db: db}, nil
}

// OpenInMemoryStorage is for tests: no disk I/O, no durability.
func OpenInMemoryStorage() (*BadgerStorage, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("queue: open in-memory storage: %w", err)
	}
	return &BadgerStorage{db: db}, nil
}

func (s *BadgerStorage) Put(op Operation) error {
	buf, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("queue: marshal operation %s: %w", op.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(opKey(op.Seq), buf)
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return ErrCapacity
	}
	return err
}

func (s *BadgerStorage) Delete(seq uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(opKey(seq))
	})
}

// Load returns every persisted operation in key (enqueue) order.
func (s *BadgerStorage) Load() ([]Operation, error) {
	var out []Operation
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var op Operation
				if err := json.Unmarshal(val, &op); err != nil {
					return fmt.Errorf("queue: corrupt operation at %s: %w", it.Item().Key(), err)
				}
				out = append(out, op)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStorage) Close() error {
	return s.db.Close()
}
