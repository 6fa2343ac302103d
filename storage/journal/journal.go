// Package journal is a best-effort, badger-backed crash-diagnostic log:
// it records which profiles were dirty (unsaved) the last time the
// process observed them, and the content hash of each profile's last
// successful save. It is never authoritative — spec.md's no-ACID,
// in-memory-is-truth stance holds regardless of what the journal says;
// a Scheduler reads it when it loads a profile file (at startup, or when
// the directory watch hot-loads one) purely to log a warning about
// profiles that may have lost a debounced write when the process died.
package journal

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/brightfall/daymark/id"
)

// Journal wraps a single embedded badger database.
type Journal struct {
	db *badger.DB
}

// Open opens (creating if necessary) a journal database at path.
func Open(path string) (*Journal, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func dirtyKey(profile string) []byte {
	return []byte(id.JournalKey(profile) + "/dirty-since")
}

func hashKey(profile string) []byte {
	return []byte(id.JournalKey(profile) + "/last-hash")
}

// MarkDirty records that profile went dirty at the current time. Called
// right before a profile's save attempt, so a crash mid-write still
// leaves a trace of "this profile had a pending change".
func (j *Journal) MarkDirty(profile string) error {
	if j == nil {
		return nil
	}
	now := time.Now()
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(now.UnixNano()))
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dirtyKey(profile), buf)
	})
}

// MarkClean records contentHash as the hash of profile's just-written
// JSON and clears the pending-dirty marker.
func (j *Journal) MarkClean(profile string, contentHash uint64) error {
	if j == nil {
		return nil
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, contentHash)
	return j.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(hashKey(profile), buf); err != nil {
			return err
		}
		err := txn.Delete(dirtyKey(profile))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// PendingSince reports the timestamp profile went dirty, if a pending
// marker is still present (i.e. no MarkClean has happened since). Read
// each time the Scheduler loads a profile file.
func (j *Journal) PendingSince(profile string) (time.Time, bool) {
	if j == nil {
		return time.Time{}, false
	}
	var at time.Time
	found := false
	_ = j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dirtyKey(profile))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			at = time.Unix(0, int64(binary.BigEndian.Uint64(val)))
			found = true
			return nil
		})
	})
	return at, found
}
