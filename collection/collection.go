// Package collection composes the document adapter and its five secondary
// structures (hash index, inverted index, clips, range trees, TTL) plus
// the persistent log and the pub/sub hub into the single serialization
// point that makes a multi-structure document update appear atomic to any
// reader of its public API.
package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"flinch/clips"
	"flinch/document"
	"flinch/hashindex"
	"flinch/invertedindex"
	"flinch/rangeindex"
	"flinch/store"
	"flinch/ttl"
	"flinch/watchman"
)

// ErrNoSuchPointer is returned by operations that require an existing
// pointer.
var ErrNoSuchPointer = errors.New("collection: no such pointer")

// DuplicateKeyError is surfaced when a put's upsert-by-declared-key
// remediation itself fails to clear the conflicting key; per the
// put algorithm this should never happen and is treated as a fatal bug.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("collection: duplicate key %q survived upsert remediation", e.Key)
}

// entry is the value held in the primary document map: the raw object
// plus enough to reconstruct its document adapter view on delete.
type entry struct {
	pointer string
	doc     *document.Document
}

// shardCount controls the primary map's sharding for per-pointer
// serialization; each pointer hashes to exactly one shard's lock.
const shardCount = 32

type shard struct {
	mu   sync.RWMutex
	data map[string]entry
}

// Collection is the per-tenant document engine: one instance per named
// collection inside a database.
type Collection struct {
	name   string
	opts   *document.Options
	shards [shardCount]*shard

	hashIdx *hashindex.Index
	invIdx  *invertedindex.Index
	clips   *clips.Clips
	ranges  *rangeindex.Index
	ttl     *ttl.Scheduler
	hub     *watchman.Hub
	log     *store.Store

	id string
}

func shardFor(pointer string) int {
	var h uint32 = 2166136261
	for i := 0; i < len(pointer); i++ {
		h ^= uint32(pointer[i])
		h *= 16777619
	}
	return int(h % shardCount)
}

// New constructs a collection bound to log for persistence, reloading any
// previously persisted documents and TTLs before returning. id is an
// opaque identifier (typically a UUID) distinguishing this collection
// instance across process restarts.
func New(id string, opts *document.Options, log *store.Store) (*Collection, error) {
	c := &Collection{
		name:    opts.Name,
		opts:    opts,
		hashIdx: hashindex.New(),
		invIdx:  invertedindex.New(),
		clips:   clips.New(),
		ranges:  rangeindex.New(),
		ttl:     ttl.NewOwned(id),
		hub:     watchman.New(),
		log:     log,
		id:      id,
	}
	for i := range c.shards {
		c.shards[i] = &shard{data: make(map[string]entry)}
	}

	if err := c.boot(); err != nil {
		return nil, err
	}
	return c, nil
}

// ID returns the collection's opaque instance identifier.
func (c *Collection) ID() string { return c.id }

// boot re-ingests persisted documents and TTLs, wires the TTL-expiry
// subscription, and starts the TTL worker. Per the design, option parse
// failure is the caller's (database's) concern, not the collection's; a
// collection is only constructed once its options are already valid.
func (c *Collection) boot() error {
	docs, err := c.log.Prefix(store.DocumentPrefix)
	if err != nil {
		return err
	}
	for _, kv := range docs {
		pointer := kv.Key[len(store.DocumentPrefix):]
		if _, err := c.put(pointer, kv.Value, false); err != nil {
			return fmt.Errorf("collection %s: reingest %s: %w", c.name, pointer, err)
		}
	}

	ttls, err := c.log.Prefix(store.TTLPrefix)
	if err != nil {
		return err
	}
	for _, kv := range ttls {
		pointer := kv.Key[len(store.TTLPrefix):]
		var ts int64
		if err := json.Unmarshal(kv.Value, &ts); err != nil {
			continue
		}
		c.ttl.Push(ts, pointer)
	}

	ttl.Emitter.On(c.ttl.EventName(), func(payload ...interface{}) {
		e, ok := payload[0].(ttl.Entry)
		if !ok {
			return
		}
		_, _ = c.delete(e.Pointer, false)
	})
	c.ttl.Start()

	return nil
}

// Put inserts or upserts doc under pointer, returning the time taken.
// index_opts conflicts trigger upsert-by-declared-key: the prior holder
// of the conflicting key is deleted in full before the new document is
// inserted.
func (c *Collection) Put(pointer string, raw []byte) (time.Duration, error) {
	start := time.Now()
	if _, err := c.put(pointer, raw, true); err != nil {
		return time.Since(start), err
	}
	return time.Since(start), nil
}

// put is the internal insertion path shared by Put and boot reingestion.
// persist controls whether the document is re-written to the log (false
// during boot, since the entry is already on disk).
//
// Step 7 (the primary-map insert) runs before steps 3-6 (the projection
// updates), per the composite-update strategy that makes the update
// indivisible without a per-pointer lock spanning every structure: a
// reader consulting only the primary map never observes a phantom
// pointer in a secondary structure, because the map already holds the
// authoritative entry by the time any secondary structure is touched.
func (c *Collection) put(pointer string, raw []byte, persist bool) (*document.Document, error) {
	doc, err := document.New(raw, c.opts)
	if err != nil {
		return nil, err
	}

	if len(c.opts.IndexOpts) > 0 {
		if err := c.hashIdx.Put(pointer, doc); err != nil {
			var dup *hashindex.DuplicateKeyError
			if errors.As(err, &dup) {
				if oldPointer, ok := c.hashIdx.Get(dup.Key); ok {
					if _, derr := c.delete(oldPointer, true); derr != nil {
						return nil, derr
					}
				}
				if err := c.hashIdx.Put(pointer, doc); err != nil {
					var dup2 *hashindex.DuplicateKeyError
					if errors.As(err, &dup2) {
						return nil, &DuplicateKeyError{Key: dup2.Key}
					}
					return nil, err
				}
			} else {
				return nil, err
			}
		}
	}

	sh := c.shards[shardFor(pointer)]
	sh.mu.Lock()
	sh.data[pointer] = entry{pointer: pointer, doc: doc}
	sh.mu.Unlock()

	if len(c.opts.ViewOpts) > 0 {
		if name, ok := doc.Binding(); ok {
			c.clips.PutView(name, pointer)
		}
	}
	if len(c.opts.SearchOpts) > 0 {
		if content := doc.Content(); content != "" {
			c.invIdx.Put(pointer, content)
		}
	}
	if len(c.opts.ClipsOpts) > 0 {
		c.clips.Put(pointer, doc)
	}
	if len(c.opts.RangeOpts) > 0 {
		c.ranges.Put(pointer, doc)
	}

	if persist {
		if err := c.log.Put(store.DocumentPrefix+pointer, []byte(doc.String())); err != nil {
			return nil, err
		}
	}

	c.hub.Notify(watchman.Message{Kind: watchman.Insert, Pointer: pointer, Document: doc.Object})

	return doc, nil
}

// Delete removes pointer and every one of its projections, returning the
// time taken. A no-op (nil error) if pointer is absent.
func (c *Collection) Delete(pointer string) (time.Duration, error) {
	start := time.Now()
	_, err := c.delete(pointer, true)
	return time.Since(start), err
}

// delete is the internal removal path. removeTTL suppresses the TTL
// scheduler/record cleanup when the delete was itself triggered by TTL
// expiry (the entry is already gone from the scheduler by construction).
func (c *Collection) delete(pointer string, removeTTL bool) (*document.Document, error) {
	sh := c.shards[shardFor(pointer)]

	sh.mu.RLock()
	e, ok := sh.data[pointer]
	sh.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	c.hub.Notify(watchman.Message{Kind: watchman.Remove, Pointer: pointer})

	sh.mu.Lock()
	e, ok = sh.data[pointer]
	if ok {
		delete(sh.data, pointer)
	}
	sh.mu.Unlock()
	if !ok {
		return nil, nil
	}
	doc := e.doc

	c.hashIdx.Delete(doc)
	if name, ok := doc.Binding(); ok {
		c.clips.DeleteInner(name, pointer)
	}
	if content := doc.Content(); content != "" {
		c.invIdx.Delete(pointer, content)
	}
	c.clips.Delete(pointer, doc)
	c.ranges.Delete(pointer, doc)

	if err := c.log.Remove(store.DocumentPrefix + pointer); err != nil {
		return doc, err
	}

	if removeTTL {
		c.ttl.Remove(pointer)
		_ = c.log.Remove(store.TTLPrefix + pointer)
	}

	return doc, nil
}

// DeleteByRange deletes every document whose field has a value in the
// inclusive interval [from, to].
func (c *Collection) DeleteByRange(field, from, to string) (time.Duration, error) {
	start := time.Now()
	for _, p := range c.ranges.Range(field, from, to) {
		if _, err := c.delete(p, true); err != nil {
			return time.Since(start), err
		}
	}
	return time.Since(start), nil
}

// DeleteByClip deletes every document tagged with clip.
func (c *Collection) DeleteByClip(clip string) (time.Duration, error) {
	start := time.Now()
	for _, p := range c.clips.Get(clip) {
		if _, err := c.delete(p, true); err != nil {
			return time.Since(start), err
		}
	}
	return time.Since(start), nil
}

// Get returns the document at pointer, if present.
func (c *Collection) Get(pointer string) (map[string]interface{}, bool) {
	sh := c.shards[shardFor(pointer)]
	sh.mu.RLock()
	e, ok := sh.data[pointer]
	sh.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.doc.Object, true
}

// MultiGet returns every present document among pointers, in the input
// order, skipping absent ones.
func (c *Collection) MultiGet(pointers []string) []Item {
	out := make([]Item, 0, len(pointers))
	for _, p := range pointers {
		if obj, ok := c.Get(p); ok {
			out = append(out, Item{Pointer: p, Document: obj})
		}
	}
	return out
}

// GetIndex resolves key through the hash index to its owning document.
func (c *Collection) GetIndex(key string) (Item, bool) {
	pointer, ok := c.hashIdx.Get(key)
	if !ok {
		return Item{}, false
	}
	obj, ok := c.Get(pointer)
	if !ok {
		return Item{}, false
	}
	return Item{Pointer: pointer, Document: obj}, true
}

// Item pairs a pointer with its resolved document.
type Item struct {
	Pointer  string
	Document map[string]interface{}
}

func (c *Collection) itemsFor(pointers []string) []Item {
	out := make([]Item, 0, len(pointers))
	for _, p := range pointers {
		if obj, ok := c.Get(p); ok {
			out = append(out, Item{Pointer: p, Document: obj})
		}
	}
	return out
}

// FetchClip returns every document tagged with tag.
func (c *Collection) FetchClip(tag string) []Item {
	return c.itemsFor(c.clips.Get(tag))
}

// FetchView returns every document bound to view name.
func (c *Collection) FetchView(name string) []Item {
	return c.itemsFor(c.clips.GetView(name))
}

// FetchRange returns every document whose field has a value in the
// inclusive interval [from, to], in ascending value order.
func (c *Collection) FetchRange(field, from, to string) []Item {
	return c.itemsFor(c.ranges.Range(field, from, to))
}

// Search returns every document whose searchable content contains at
// least one word in query as an exact token.
func (c *Collection) Search(words []string) []Item {
	return c.itemsFor(c.invIdx.Find(words))
}

// LikeSearch returns every document whose searchable content contains a
// token that is a superstring of every word in query.
func (c *Collection) LikeSearch(words []string) []Item {
	return c.itemsFor(c.invIdx.WFind(words))
}

// PutTTL schedules pointer to expire at the given unix-epoch-seconds
// timestamp and persists the TTL record.
func (c *Collection) PutTTL(pointer string, epochSeconds int64) error {
	c.ttl.Push(epochSeconds, pointer)
	return c.log.PutAny(store.TTLPrefix+pointer, epochSeconds)
}

// Sub registers sender on the collection's broadcast hub.
func (c *Collection) Sub(sender string) (*watchman.Subscriber, error) {
	return c.hub.Reg(sender)
}

// Empty deletes every document in the collection.
func (c *Collection) Empty() error {
	for _, p := range c.pointers() {
		if _, err := c.delete(p, true); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of live documents.
func (c *Collection) Len() int {
	n := 0
	for _, sh := range c.shards {
		sh.mu.RLock()
		n += len(sh.data)
		sh.mu.RUnlock()
	}
	return n
}

// Iter returns every live (pointer, document) pair. Order is unspecified.
func (c *Collection) Iter() []Item {
	var out []Item
	for _, sh := range c.shards {
		sh.mu.RLock()
		for p, e := range sh.data {
			out = append(out, Item{Pointer: p, Document: e.doc.Object})
		}
		sh.mu.RUnlock()
	}
	return out
}

func (c *Collection) pointers() []string {
	var out []string
	for _, sh := range c.shards {
		sh.mu.RLock()
		for p := range sh.data {
			out = append(out, p)
		}
		sh.mu.RUnlock()
	}
	return out
}

// FlushBkp forces the collection's persisted state to stable storage.
func (c *Collection) FlushBkp() error {
	return c.log.Flush()
}

// Close stops the collection's background TTL worker. It does not touch
// persisted state.
func (c *Collection) Close() {
	c.ttl.Stop()
}
