package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/autoheal/pkg/events"
	"github.com/cuemby/autoheal/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketInvocations   = []byte("invocations")
	bucketInvocationIDs = []byte("invocation_ids")
	bucketEvents        = []byte("events")
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the history database at path
func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketInvocations, bucketInvocationIDs, bucketEvents} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// timeKey orders records by time, then id. Zero-padded so byte order is time order.
func timeKey(t time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d/%s", t.UnixNano(), id))
}

// Invocation operations

// SaveInvocation stores or replaces an invocation record
func (s *BoltStore) SaveInvocation(record *types.InvocationRecord) error {
	if record.ID == "" {
		return fmt.Errorf("invocation record has no id")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}

		ids := tx.Bucket(bucketInvocationIDs)
		b := tx.Bucket(bucketInvocations)
		if old := ids.Get([]byte(record.ID)); old != nil {
			if err := b.Delete(old); err != nil {
				return err
			}
		}

		key := timeKey(record.StartedAt, record.ID)
		if err := b.Put(key, data); err != nil {
			return err
		}
		return ids.Put([]byte(record.ID), key)
	})
}

// GetInvocation returns the invocation with the given id
func (s *BoltStore) GetInvocation(id string) (*types.InvocationRecord, error) {
	var record types.InvocationRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketInvocationIDs).Get([]byte(id))
		if key == nil {
			return fmt.Errorf("invocation %s: %w", id, ErrNotFound)
		}
		data := tx.Bucket(bucketInvocations).Get(key)
		if data == nil {
			return fmt.Errorf("invocation %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListInvocations returns up to limit invocations, newest first. A limit
// of zero or less returns all of them.
func (s *BoltStore) ListInvocations(limit int) ([]*types.InvocationRecord, error) {
	var records []*types.InvocationRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return reverseEach(tx.Bucket(bucketInvocations), limit, func(v []byte) error {
			var record types.InvocationRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
			return nil
		})
	})
	return records, err
}

// Event operations

// SaveEvent appends an event
func (s *BoltStore) SaveEvent(event *events.Event) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketEvents).Put(timeKey(event.Timestamp, event.ID), data)
	})
}

// ListEvents returns up to limit events, newest first
func (s *BoltStore) ListEvents(limit int) ([]*events.Event, error) {
	var list []*events.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		return reverseEach(tx.Bucket(bucketEvents), limit, func(v []byte) error {
			var event events.Event
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}
			list = append(list, &event)
			return nil
		})
	})
	return list, err
}

// Prune removes invocations and events older than cutoff and returns how
// many entries were deleted
func (s *BoltStore) Prune(cutoff time.Time) (int, error) {
	removed := 0
	limit := timeKey(cutoff, "")
	err := s.db.Update(func(tx *bolt.Tx) error {
		ids := tx.Bucket(bucketInvocationIDs)
		for _, name := range [][]byte{bucketInvocations, bucketEvents} {
			b := tx.Bucket(name)
			var stale [][]byte
			c := b.Cursor()
			for k, v := c.First(); k != nil && bytes.Compare(k, limit) < 0; k, v = c.Next() {
				stale = append(stale, append([]byte(nil), k...))
				if bytes.Equal(name, bucketInvocations) {
					var record types.InvocationRecord
					if err := json.Unmarshal(v, &record); err == nil {
						if err := ids.Delete([]byte(record.ID)); err != nil {
							return err
						}
					}
				}
			}
			for _, k := range stale {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
			removed += len(stale)
		}
		return nil
	})
	return removed, err
}

func reverseEach(b *bolt.Bucket, limit int, fn func(v []byte) error) error {
	c := b.Cursor()
	n := 0
	for k, v := c.Last(); k != nil; k, v = c.Prev() {
		if limit > 0 && n >= limit {
			return nil
		}
		if err := fn(v); err != nil {
			return err
		}
		n++
	}
	return nil
}
