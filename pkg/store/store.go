// Package store persists signal values across runs in a bbolt database.
// A persistent signal behaves exactly like a plain signal; the store
// subscribes to it and writes every changed value through.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/tangle-tui/tangle/pkg/tangle"
)

// ErrNoValue is returned by Get when the key has no saved value.
var ErrNoValue = errors.New("no saved value")

// Store is a bbolt-backed value store.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger
}

// Open opens or creates the database at path. The file is locked for the
// lifetime of the store; Open fails after one second if another process
// holds it.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return &Store{db: db, logger: slog.Default().With("component", "store")}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get reads the raw value saved under bucket/key.
func (s *Store) Get(bucket, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return ErrNoValue
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNoValue
		}
		value = append([]byte(nil), v...)
		return nil
	})
	return value, err
}

// Put saves a raw value under bucket/key, creating the bucket if needed.
func (s *Store) Put(bucket, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

// Delete removes the value saved under bucket/key.
func (s *Store) Delete(bucket, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// PersistentSignal creates a signal whose value survives restarts. If a
// value is saved under bucket/key it becomes the signal's initial value;
// otherwise initial is used. Every subsequent changed write is saved as
// JSON. The returned stop function detaches the signal from the store.
func PersistentSignal[T any](s *Store, bucket, key string, initial T) (*tangle.Signal[T], func(), error) {
	return PersistentSignalOn(tangle.Default, s, bucket, key, initial)
}

// PersistentSignalOn is PersistentSignal on an explicit tracker.
func PersistentSignalOn[T any](tr *tangle.Tracker, s *Store, bucket, key string, initial T) (*tangle.Signal[T], func(), error) {
	raw, err := s.Get(bucket, key)
	switch {
	case err == nil:
		var saved T
		if err := json.Unmarshal(raw, &saved); err != nil {
			return nil, nil, fmt.Errorf("decode saved value %s/%s: %w", bucket, key, err)
		}
		initial = saved
	case errors.Is(err, ErrNoValue):
	default:
		return nil, nil, err
	}

	sig := tangle.NewSignalOn(tr, initial)
	stop := sig.Subscribe(func(v T) {
		raw, err := json.Marshal(v)
		if err != nil {
			s.logger.Error("encode persistent value failed", "bucket", bucket, "key", key, "error", err)
			return
		}
		if err := s.Put(bucket, key, raw); err != nil {
			s.logger.Error("save persistent value failed", "bucket", bucket, "key", key, "error", err)
		}
	})
	return sig, stop, nil
}
