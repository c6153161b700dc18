// Package storage persists room snapshots over BadgerDB: one key per
// room, value a JSON-encoded envelope carrying the update timestamp used
// by GC. Grounded on hailam-chessplay/internal/storage/storage.go's
// db.View/db.Update wrapper style, generalized from a handful of fixed
// keys to one key per room id.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/herohde/shogiserver/internal/room"
	"github.com/seekerror/logw"
)

const keyPrefix = "room:"

// record is the on-disk envelope: the update timestamp is kept outside
// the marshaled Snapshot so GC can filter stale keys without decoding
// every value's JSON body.
type record struct {
	UpdatedAtMillis int64           `json:"updatedAtMillis"`
	Data            json.RawMessage `json:"data"`
}

// Store wraps a single *badger.DB as the room snapshot store.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) a Badger database rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's own logger is noisy; the room/session path already logs via logw.

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open %v: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes roomID's snapshot, implementing room.Persister.
func (s *Store) Save(ctx context.Context, roomID string, snapshot room.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("storage: marshal snapshot for %v: %w", roomID, err)
	}
	rec := record{UpdatedAtMillis: time.Now().UnixMilli(), Data: data}
	recData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("storage: marshal record for %v: %w", roomID, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+roomID), recData)
	})
}

// Load reads roomID's snapshot. ok is false if no snapshot exists.
func (s *Store) Load(ctx context.Context, roomID string) (room.Snapshot, bool, error) {
	var snap room.Snapshot
	var found bool

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + roomID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var rec record
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			if err := json.Unmarshal(rec.Data, &snap); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return room.Snapshot{}, false, fmt.Errorf("storage: load %v: %w", roomID, err)
	}
	return snap, found, nil
}

// LoadAll enumerates every persisted room id and its snapshot, used to
// repopulate the in-memory room map at startup.
func (s *Store) LoadAll(ctx context.Context) (map[string]room.Snapshot, error) {
	ret := map[string]room.Snapshot{}

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			roomID := string(item.Key()[len(prefix):])

			err := item.Value(func(val []byte) error {
				var rec record
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				var snap room.Snapshot
				if err := json.Unmarshal(rec.Data, &snap); err != nil {
					return err
				}
				ret[roomID] = snap
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: load all: %w", err)
	}
	return ret, nil
}

// Delete removes roomID's persisted snapshot.
func (s *Store) Delete(ctx context.Context, roomID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + roomID))
	})
}

// GC deletes snapshots whose UpdatedAtMillis is older than maxAge, running
// once per interval until ctx is cancelled. isLive is consulted before
// deleting: a room with live sessions is never evicted even if its
// snapshot looks stale.
func (s *Store) GC(ctx context.Context, interval, maxAge time.Duration, isLive func(roomID string) bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx, maxAge, isLive)
		}
	}
}

func (s *Store) sweep(ctx context.Context, maxAge time.Duration, isLive func(roomID string) bool) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()

	var stale []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			roomID := string(item.Key()[len(prefix):])

			err := item.Value(func(val []byte) error {
				var rec record
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				if rec.UpdatedAtMillis < cutoff && !isLive(roomID) {
					stale = append(stale, roomID)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logw.Errorf(ctx, "storage GC scan failed: %v", err)
		return
	}

	for _, roomID := range stale {
		if err := s.Delete(ctx, roomID); err != nil {
			logw.Errorf(ctx, "storage GC delete %v failed: %v", roomID, err)
			continue
		}
		logw.Infof(ctx, "storage GC: evicted stale room %v", roomID)
	}
}
