package cache

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
	bolt "go.etcd.io/bbolt"
)

// Store is a durable local mirror of revisions, one bbolt bucket per
// space. A nil *Store is valid and behaves as a cache that never has
// anything in it.
type Store struct {
	db *bolt.DB
}

// Open creates or opens a bbolt-backed cache rooted at dataDir. The
// database file is created on first use; buckets are created lazily per
// space in Put, since the set of spaces a replica will see is not known
// up front.
func Open(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "memory-cache.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database. Close on a nil *Store is a no-op.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func bucketName(space fact.Space) []byte {
	return []byte("space:" + string(space))
}

func entryKey(key address.FactKey) []byte {
	return []byte(string(key.Entity) + "\x00" + string(key.Type))
}

// Get returns the cached revision for (space, key), if present. A nil
// *Store always reports a miss.
func (s *Store) Get(space fact.Space, key address.FactKey) (fact.Revision, bool) {
	if s == nil {
		return fact.Revision{}, false
	}

	var rev fact.Revision
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(space))
		if b == nil {
			return nil
		}
		data := b.Get(entryKey(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &rev); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return fact.Revision{}, false
	}
	return rev, found
}

// Put persists revision for (space, key), overwriting any prior entry.
// Put on a nil *Store is a no-op, consistent with treating an absent
// cache as a cache that silently discards writes.
func (s *Store) Put(space fact.Space, key address.FactKey, revision fact.Revision) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(revision)
	if err != nil {
		return fmt.Errorf("cache: marshal revision for %s: %w", key.Entity, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(space))
		if err != nil {
			return err
		}
		return b.Put(entryKey(key), data)
	})
}

// PutAll persists a batch of revisions for space within a single bbolt
// transaction, used after a query or subscription snapshot lands a whole
// fact set at once.
func (s *Store) PutAll(space fact.Space, entries map[address.FactKey]fact.Revision) error {
	if s == nil || len(entries) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(space))
		if err != nil {
			return err
		}
		for key, revision := range entries {
			data, err := json.Marshal(revision)
			if err != nil {
				return fmt.Errorf("cache: marshal revision for %s: %w", key.Entity, err)
			}
			if err := b.Put(entryKey(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes any cached entry for (space, key). Delete on a nil
// *Store is a no-op.
func (s *Store) Delete(space fact.Space, key address.FactKey) error {
	if s == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(space))
		if b == nil {
			return nil
		}
		return b.Delete(entryKey(key))
	})
}

// Snapshot returns every cached entry for space. A nil *Store returns an
// empty, non-nil map.
func (s *Store) Snapshot(space fact.Space) (map[address.FactKey]fact.Revision, error) {
	out := make(map[address.FactKey]fact.Revision)
	if s == nil {
		return out, nil
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(space))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rev fact.Revision
			if err := json.Unmarshal(v, &rev); err != nil {
				return err
			}
			key, err := parseEntryKey(k)
			if err != nil {
				return err
			}
			out[key] = rev
			return nil
		})
	})
	return out, err
}

func parseEntryKey(raw []byte) (address.FactKey, error) {
	s := string(raw)
	for i := 0; i < len(s); i++ {
		if s[i] == '\x00' {
			return address.FactKey{Entity: fact.Entity(s[:i]), Type: fact.MediaType(s[i+1:])}, nil
		}
	}
	return address.FactKey{}, fmt.Errorf("cache: malformed entry key %q", raw)
}
