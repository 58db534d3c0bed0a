// Package flinchdb implements the collection registry: a name-keyed map
// of collections sharing one on-disk log, booted from persisted
// :collection: metadata and mutated through Add/Using/Drop/Ls.
package flinchdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"flinch/collection"
	"flinch/document"
	"flinch/store"
)

// ErrDuplicateCollection is returned by Add when the name is already
// registered.
var ErrDuplicateCollection = errors.New("flinchdb: collection already exists")

// ErrNoSuchCollection is returned by Using and Drop for an unknown name.
var ErrNoSuchCollection = errors.New("flinchdb: no such collection")

// Database owns every collection backed by a single log.Store.
type Database struct {
	mu          sync.RWMutex
	log         *store.Store
	collections map[string]*collection.Collection
}

// Open opens the log at path and boots every previously registered
// collection found under the :collection: prefix. A collection whose
// persisted options fail to parse is logged (by the caller, via the
// returned boot errors) and skipped rather than aborting the whole
// database.
func Open(path string) (*Database, []error) {
	log, err := store.Open(path)
	if err != nil {
		return nil, []error{err}
	}

	db := &Database{log: log, collections: make(map[string]*collection.Collection)}

	entries, err := log.Prefix(store.CollectionPrefix)
	if err != nil {
		return db, []error{err}
	}

	var bootErrors []error
	for _, kv := range entries {
		var opts document.Options
		if err := json.Unmarshal(kv.Value, &opts); err != nil {
			bootErrors = append(bootErrors, fmt.Errorf("flinchdb: parse options for %s: %w", kv.Key, err))
			continue
		}
		tree, err := log.Collection(opts.Name)
		if err != nil {
			bootErrors = append(bootErrors, fmt.Errorf("flinchdb: open tree for %s: %w", opts.Name, err))
			continue
		}
		c, err := collection.New(uuid.NewString(), &opts, tree)
		if err != nil {
			bootErrors = append(bootErrors, fmt.Errorf("flinchdb: boot collection %s: %w", opts.Name, err))
			continue
		}
		db.collections[opts.Name] = c
	}

	return db, bootErrors
}

// Add creates and registers a new collection under opts.Name, persisting
// its options. Fails with ErrDuplicateCollection if the name is taken.
func (db *Database) Add(opts *document.Options) (*collection.Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.collections[opts.Name]; ok {
		return nil, ErrDuplicateCollection
	}

	tree, err := db.log.Collection(opts.Name)
	if err != nil {
		return nil, err
	}

	c, err := collection.New(uuid.NewString(), opts, tree)
	if err != nil {
		return nil, err
	}

	if err := db.log.PutAny(store.CollectionPrefix+opts.Name, opts); err != nil {
		c.Close()
		return nil, err
	}

	db.collections[opts.Name] = c
	return c, nil
}

// Using returns the named collection.
func (db *Database) Using(name string) (*collection.Collection, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	c, ok := db.collections[name]
	if !ok {
		return nil, ErrNoSuchCollection
	}
	return c, nil
}

// Drop empties, unregisters, and removes all persisted trace of the named
// collection.
func (db *Database) Drop(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.collections[name]
	if !ok {
		return ErrNoSuchCollection
	}

	c.Close()
	delete(db.collections, name)

	if err := db.log.DropCollection(name); err != nil {
		return err
	}

	return db.log.Remove(store.CollectionPrefix + name)
}

// Ls lists every registered collection name.
func (db *Database) Ls() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]string, 0, len(db.collections))
	for name := range db.collections {
		out = append(out, name)
	}
	return out
}

// Close stops every registered collection's background worker and
// releases the underlying log file so the path can be opened again.
func (db *Database) Close() {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, c := range db.collections {
		c.Close()
	}
	_ = db.log.Close()
}
