// Package invertedindex maintains a token -> set-of-pointers map over
// whitespace-tokenized content, serving exact and substring ("w_find")
// search.
package invertedindex

import (
	"strings"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/errgroup"
)

// Index is a concurrent token -> set-of-pointers map.
type Index struct {
	kv cmap.ConcurrentMap[string, map[string]struct{}]
	mu sync.Mutex // guards read-modify-write of a token's set
}

// New creates an empty inverted index.
func New() *Index {
	return &Index{kv: cmap.New[map[string]struct{}]()}
}

// Put tokenizes content and inserts pointer into every token's set,
// creating the set if absent.
func (idx *Index) Put(pointer, content string) {
	for _, tok := range Tokenize(content) {
		idx.mu.Lock()
		set, ok := idx.kv.Get(tok)
		if !ok {
			set = make(map[string]struct{})
		}
		set[pointer] = struct{}{}
		idx.kv.Set(tok, set)
		idx.mu.Unlock()
	}
}

// Delete tokenizes content the same way and removes pointer from each
// token's set. Empty sets are retained.
func (idx *Index) Delete(pointer, content string) {
	for _, tok := range Tokenize(content) {
		idx.mu.Lock()
		if set, ok := idx.kv.Get(tok); ok {
			delete(set, pointer)
			idx.kv.Set(tok, set)
		}
		idx.mu.Unlock()
	}
}

func union(sets ...map[string]struct{}) []string {
	seen := make(map[string]struct{})
	for _, s := range sets {
		for p := range s {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	return out
}

// Find returns the union of exact-match token sets for words. Order of
// returned pointers is unspecified.
func (idx *Index) Find(words []string) []string {
	var sets []map[string]struct{}
	for _, w := range words {
		if set, ok := idx.kv.Get(strings.ToLower(w)); ok {
			sets = append(sets, set)
		}
	}
	return union(sets...)
}

// WFind performs a substring match: a stored token qualifies if it
// contains every word in words as a substring (lowercased). Evaluated in
// parallel over the token dictionary.
func (idx *Index) WFind(words []string) []string {
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}

	tokens := idx.kv.Keys()

	var mu sync.Mutex
	var matched []map[string]struct{}

	var g errgroup.Group
	const workers = 8
	chunk := (len(tokens) + workers - 1) / workers
	if chunk == 0 {
		chunk = 1
	}
	for start := 0; start < len(tokens); start += chunk {
		end := start + chunk
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]
		g.Go(func() error {
			var local []map[string]struct{}
			for _, tok := range batch {
				qualifies := true
				for _, w := range lower {
					if !strings.Contains(tok, w) {
						qualifies = false
						break
					}
				}
				if qualifies {
					if set, ok := idx.kv.Get(tok); ok {
						local = append(local, set)
					}
				}
			}
			if len(local) > 0 {
				mu.Lock()
				matched = append(matched, local...)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return union(matched...)
}

// Clear empties the index.
func (idx *Index) Clear() {
	idx.kv.Clear()
}
