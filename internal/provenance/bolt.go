// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package provenance

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const recordsBucket = "records"

// lockTimeout bounds the wait for a database another process holds open
const lockTimeout = 2 * time.Second

// BoltStore persists store snapshots in an embedded bbolt database so that
// separate CLI invocations can share one session
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the database at path and ensures the
// bucket exists
func OpenBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("open session store %q: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recordsBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create session bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Save replaces the persisted snapshot with records
func (b *BoltStore) Save(records []MappingRecord) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(recordsBucket)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		bucket, err := tx.CreateBucket([]byte(recordsBucket))
		if err != nil {
			return err
		}
		for _, r := range records {
			value, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode record %s: %w", r.ID, err)
			}
			if err := bucket.Put(seqKey(r.Seq), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load returns the persisted records in creation order
func (b *BoltStore) Load() ([]MappingRecord, error) {
	var records []MappingRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(recordsBucket))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var r MappingRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			records = append(records, r)
			return nil
		})
	})
	return records, err
}

// SaveStore persists the current contents of s
func (b *BoltStore) SaveStore(s *Store) error {
	return b.Save(s.Records())
}

// LoadStore restores the persisted snapshot into s
func (b *BoltStore) LoadStore(s *Store) error {
	records, err := b.Load()
	if err != nil {
		return err
	}
	s.Restore(records)
	return nil
}

// Clear deletes every persisted record
func (b *BoltStore) Clear() error {
	return b.Save(nil)
}

// Close releases the database file
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// seqKey encodes big-endian so bbolt's byte ordering is creation order
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
