// Package rangeindex maintains, for each declared range field, an ordered
// map from a string value to the set of pointers whose document has that
// field value, supporting inclusive bounded-range lookup.
package rangeindex

import (
	"sort"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"

	"flinch/document"
)

// Fielded is anything that can expose its range-field projection.
type Fielded interface {
	Fields() []document.Field
}

// Put inserts pointer under every {key, value} pair in doc.Fields().
func (idx *Index) Put(pointer string, doc Fielded) {
	for _, f := range doc.Fields() {
		idx.PutField(f.Key, f.Value, pointer)
	}
}

// Delete removes pointer from every {key, value} pair in doc.Fields().
func (idx *Index) Delete(pointer string, doc Fielded) {
	for _, f := range doc.Fields() {
		idx.DeleteField(f.Key, f.Value, pointer)
	}
}

// field-level tree: value -> set of pointers, guarded by its own mutex so
// inserts/deletes into a single field's tree don't contend across fields.
type tree struct {
	mu     sync.RWMutex
	values map[string]map[string]struct{}
}

func newTree() *tree {
	return &tree{values: make(map[string]map[string]struct{})}
}

// Index is a concurrent field-name -> ordered-value-tree map.
type Index struct {
	fields cmap.ConcurrentMap[string, *tree]
}

// New creates an empty range index.
func New() *Index {
	return &Index{fields: cmap.New[*tree]()}
}

func (idx *Index) treeFor(field string, create bool) (*tree, bool) {
	t, ok := idx.fields.Get(field)
	if !ok {
		if !create {
			return nil, false
		}
		t = newTree()
		idx.fields.Set(field, t)
	}
	return t, true
}

// PutField inserts pointer under field/value.
func (idx *Index) PutField(field, value, pointer string) {
	t, _ := idx.treeFor(field, true)
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.values[value]
	if !ok {
		set = make(map[string]struct{})
		t.values[value] = set
	}
	set[pointer] = struct{}{}
}

// DeleteField removes pointer from field/value.
func (idx *Index) DeleteField(field, value, pointer string) {
	t, ok := idx.treeFor(field, false)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if set, ok := t.values[value]; ok {
		delete(set, pointer)
	}
}

// Range returns the union of sets in the inclusive interval [from, to] for
// field, in the natural ascending string order of the matching values.
func (idx *Index) Range(field, from, to string) []string {
	t, ok := idx.treeFor(field, false)
	if !ok {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	values := make([]string, 0, len(t.values))
	for v := range t.values {
		if v >= from && v <= to {
			values = append(values, v)
		}
	}
	sort.Strings(values)

	var out []string
	for _, v := range values {
		for p := range t.values[v] {
			out = append(out, p)
		}
	}
	return out
}

// DeleteTree removes an entire field's tree.
func (idx *Index) DeleteTree(field string) {
	idx.fields.Remove(field)
}

// Clear empties the whole range index.
func (idx *Index) Clear() {
	idx.fields.Clear()
}
