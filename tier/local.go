package tier

import (
	"bytes"
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var localBucket = []byte("entries")

// Local is the client-persisted tier: a small embedded store used only
// when the process runs on the client side, so repeat visits skip the
// network entirely. It is purely advisory — the lowest-priority tier, with
// the host environment in charge of the file's lifetime and capacity.
type Local struct {
	db *bolt.DB
}

// NewLocal opens (or creates) the persisted store at path.
func NewLocal(path string) (*Local, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("client tier: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(localBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("client tier: %w", err)
	}
	return &Local{db: db}, nil
}

// Name returns "client".
func (l *Local) Name() string { return "client" }

// Get retrieves an entry. Unreadable bytes are treated as absent.
func (l *Local) Get(_ context.Context, key string) (Entry, bool, error) {
	var e Entry
	found := false
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(localBucket).Get([]byte(key))
		if b == nil {
			return nil
		}
		dec, err := decodeEntry(b)
		if err != nil {
			return nil
		}
		e = dec
		found = true
		return nil
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("client get: %w", err)
	}
	return e, found, nil
}

// Set stores an entry. Entries already stale at write time are not stored.
func (l *Local) Set(_ context.Context, key string, e Entry) error {
	if e.Expired(time.Now()) {
		return nil
	}
	err := l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(localBucket).Put([]byte(key), encodeEntry(e))
	})
	if err != nil {
		return fmt.Errorf("client set: %w", err)
	}
	return nil
}

// Delete removes an entry. Deleting a missing key is a no-op.
func (l *Local) Delete(_ context.Context, key string) error {
	err := l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(localBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("client delete: %w", err)
	}
	return nil
}

// ScanPrefix walks the bucket cursor from the prefix.
func (l *Local) ScanPrefix(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	p := []byte(prefix)
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(localBucket).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("client scan: %w", err)
	}
	return keys, nil
}

// Probe runs an empty read transaction to confirm the store is usable.
func (l *Local) Probe(context.Context) error {
	return l.db.View(func(*bolt.Tx) error { return nil })
}

// Close closes the underlying store.
func (l *Local) Close() error { return l.db.Close() }
