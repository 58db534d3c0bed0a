// Package hashindex maintains a unique-key to pointer map over a
// collection's declared index fields.
package hashindex

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"

	"flinch/document"
)

// Keyed is anything that can expose its hash-index projection.
type Keyed interface {
	Keys() []string
}

// DuplicateKeyError is returned by Put when a key is already mapped to any
// pointer, including the one being put. It carries the offending key.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return "hashindex: duplicate key " + e.Key
}

// Index is a sharded concurrent unique-key -> pointer map. Reads are
// wait-free; writes take the shard lock of the underlying concurrent map,
// matching the "per-shard locks" requirement.
type Index struct {
	kv cmap.ConcurrentMap[string, string]
	mu sync.Mutex // serializes Put's check-then-insert
}

// New creates an empty hash index.
func New() *Index {
	return &Index{kv: cmap.New[string]()}
}

// Put pre-checks every key in doc before inserting any of them, so the
// pre-check-then-insert sequence is linearizable from the caller's
// perspective: either all of doc's keys are free and all get inserted, or
// none are touched and DuplicateKeyError is returned.
func (idx *Index) Put(pointer string, doc Keyed) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	keys := doc.Keys()
	for _, k := range keys {
		if _, ok := idx.kv.Get(k); ok {
			return &DuplicateKeyError{Key: k}
		}
	}
	for _, k := range keys {
		idx.kv.Set(k, pointer)
	}
	return nil
}

// Delete removes every key in doc from the index.
func (idx *Index) Delete(doc Keyed) {
	for _, k := range doc.Keys() {
		idx.kv.Remove(k)
	}
}

// Get returns the pointer mapped to key, if any.
func (idx *Index) Get(key string) (string, bool) {
	return idx.kv.Get(key)
}

// Clear empties the index.
func (idx *Index) Clear() {
	idx.kv.Clear()
}

var _ Keyed = (*document.Document)(nil)
