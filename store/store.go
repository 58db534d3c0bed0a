// Package store wraps a single bbolt file as the engine's persistent log.
// Database-level metadata (collection registry, user/db lists) lives in
// a root bucket; each collection gets its own distinct named bucket so
// collections never contend over key space and a dropped collection's
// tree can be removed as a unit. Store also implements a prefix-scan
// primitive bbolt does not expose directly.
package store

import (
	"bytes"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Well-known key prefixes used within a single bucket (root or
// per-collection).
const (
	DocumentPrefix   = ":document:"
	TTLPrefix        = ":ttl:"
	CollectionPrefix = ":collection:"
	DBListPrefix     = ":db-list:"
	DBUserPrefix     = ":db-user:"
)

// rootBucket holds database-level metadata: the collection registry and
// the db/user lists. Per-collection document and TTL data never lives
// here.
var rootBucket = []byte("flinch")

// collectionBucketPrefix namespaces per-collection bucket names so they
// cannot collide with rootBucket or each other.
const collectionBucketPrefix = "collection:"

// Store is a bbolt-backed key-value log scoped to a single bucket. The
// value returned by Open is scoped to the root bucket; Collection
// returns a Store scoped to a distinct named tree sharing the same
// underlying file.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open opens (creating if absent) the bbolt file at path and ensures the
// root bucket exists. The returned Store is scoped to the root bucket.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, bucket: rootBucket}, nil
}

// Collection returns a Store view scoped to the distinct named bucket
// for the given collection name, creating the bucket if it does not yet
// exist. The returned Store shares the underlying bbolt file; closing it
// has no effect, only the root Store's Close does.
func (s *Store) Collection(name string) (*Store, error) {
	bucket := []byte(collectionBucketPrefix + name)
	if err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		return nil, err
	}
	return &Store{db: s.db, bucket: bucket}, nil
}

// DropCollection removes the entire named bucket and everything in it.
// A no-op if the bucket does not exist.
func (s *Store) DropCollection(name string) error {
	bucket := []byte(collectionBucketPrefix + name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucket) == nil {
			return nil
		}
		return tx.DeleteBucket(bucket)
	})
}

// Close releases the underlying bbolt file. Only the Store returned by
// Open should be closed; Stores returned by Collection share the file.
func (s *Store) Close() error {
	if !bytes.Equal(s.bucket, rootBucket) {
		return nil
	}
	return s.db.Close()
}

// Put writes value under key.
func (s *Store) Put(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), value)
	})
}

// PutAny JSON-encodes value and writes it under key.
func (s *Store) PutAny(key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Put(key, b)
}

// Get reads the raw value at key.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// GetAny reads key and JSON-decodes it into target.
func (s *Store) GetAny(key string, target interface{}) (bool, error) {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return ok, err
	}
	return true, json.Unmarshal(v, target)
}

// Remove deletes key.
func (s *Store) Remove(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// KV is a single entry returned by Prefix.
type KV struct {
	Key   string
	Value []byte
}

// Prefix returns every entry whose key starts with prefix, ordered by
// bbolt's natural byte ordering of keys. bbolt has no native prefix scan,
// so this seeks to the first matching key and walks the cursor forward
// until the prefix no longer matches.
func (s *Store) Prefix(prefix string) ([]KV, error) {
	p := []byte(prefix)
	var out []KV
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			out = append(out, KV{Key: string(k), Value: append([]byte(nil), v...)})
		}
		return nil
	})
	return out, err
}

// Flush forces the log to stable storage.
func (s *Store) Flush() error {
	return s.db.Sync()
}
