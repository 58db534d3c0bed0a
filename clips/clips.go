// Package clips maintains a named-tag -> set-of-pointers map that serves
// both user-defined tags (from a document's Tokens projection) and view
// bindings, the latter stored under the reserved tag "view:<name>".
package clips

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// ViewPrefix namespaces view tags so they cannot collide with user clips.
const ViewPrefix = "view:"

// ViewTag returns the reserved tag name backing a view.
func ViewTag(name string) string {
	return ViewPrefix + name
}

// Tagged is anything that can expose its clip-tag projection.
type Tagged interface {
	Tokens() []string
}

// Clips is a concurrent tag -> set-of-pointers map.
type Clips struct {
	kv cmap.ConcurrentMap[string, map[string]struct{}]
	mu sync.Mutex
}

// New creates an empty clip map.
func New() *Clips {
	return &Clips{kv: cmap.New[map[string]struct{}]()}
}

func (c *Clips) add(tag, pointer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.kv.Get(tag)
	if !ok {
		set = make(map[string]struct{})
	}
	set[pointer] = struct{}{}
	c.kv.Set(tag, set)
}

func (c *Clips) remove(tag, pointer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.kv.Get(tag); ok {
		delete(set, pointer)
		c.kv.Set(tag, set)
	}
}

// Put tags pointer under every tag in doc.Tokens().
func (c *Clips) Put(pointer string, doc Tagged) {
	for _, tag := range doc.Tokens() {
		c.add(tag, pointer)
	}
}

// PutView tags pointer under the reserved view tag for name.
func (c *Clips) PutView(name, pointer string) {
	c.add(ViewTag(name), pointer)
}

// Delete removes pointer from every tag in doc.Tokens().
func (c *Clips) Delete(pointer string, doc Tagged) {
	for _, tag := range doc.Tokens() {
		c.remove(tag, pointer)
	}
}

// DeleteInner removes pointer from the reserved view tag for name.
func (c *Clips) DeleteInner(name, pointer string) {
	c.remove(ViewTag(name), pointer)
}

// DeleteClip removes an entire user clip.
func (c *Clips) DeleteClip(tag string) {
	c.kv.Remove(tag)
}

// DeleteView removes an entire view's tag.
func (c *Clips) DeleteView(name string) {
	c.kv.Remove(ViewTag(name))
}

func toSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// Get returns the pointers tagged with tag.
func (c *Clips) Get(tag string) []string {
	set, ok := c.kv.Get(tag)
	if !ok {
		return nil
	}
	return toSlice(set)
}

// GetView returns the pointers bound to view name.
func (c *Clips) GetView(name string) []string {
	return c.Get(ViewTag(name))
}

// Clear empties the clip map.
func (c *Clips) Clear() {
	c.kv.Clear()
}
