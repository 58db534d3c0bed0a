// Package watchman implements the pub/sub hub a collection broadcasts
// document inserts and removals through: a single-writer fan-out to any
// number of registered subscribers, each fed over its own buffered
// channel with a bounded per-send timeout so one slow subscriber cannot
// stall the broadcaster.
package watchman

import (
	"errors"
	"sync"
	"time"
)

// SendTimeout bounds how long a single subscriber delivery may block the
// broadcaster before that subscriber's copy of the message is dropped.
const SendTimeout = 5 * time.Second

// ErrDuplicateSender is returned by Reg when sender is already registered.
var ErrDuplicateSender = errors.New("watchman: sender already registered")

// Kind distinguishes the three message shapes a subscriber can observe.
type Kind int

const (
	// Subscribed is delivered exactly once, immediately after Reg
	// succeeds, carrying the subscriber's own sender name.
	Subscribed Kind = iota
	// Insert reports a document put into the collection.
	Insert
	// Remove reports a document removed from the collection.
	Remove
)

// Message is a single event delivered to a subscriber.
type Message struct {
	Kind     Kind
	Sender   string
	Pointer  string
	Document map[string]interface{}
}

// Subscriber is a single registered watcher of a collection's broadcasts.
type Subscriber struct {
	Sender string
	ch     chan Message
}

// C returns the channel the subscriber should range over to observe
// messages.
func (s *Subscriber) C() <-chan Message {
	return s.ch
}

// Hub is the collection-scoped broadcast point: one Reg per sender, one
// Notify fanning out to every currently registered subscriber.
type Hub struct {
	mu   sync.Mutex
	subs map[string]*Subscriber
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[string]*Subscriber)}
}

// Reg registers sender and returns its subscriber handle. A second Reg for
// the same sender name is rejected with ErrDuplicateSender; the existing
// registration is left untouched. The new subscriber immediately receives
// a Subscribed message naming itself.
func (h *Hub) Reg(sender string) (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sender]; ok {
		return nil, ErrDuplicateSender
	}
	sub := &Subscriber{Sender: sender, ch: make(chan Message, 32)}
	h.subs[sender] = sub
	sub.ch <- Message{Kind: Subscribed, Sender: sender}
	return sub, nil
}

// Unreg removes sender's registration and closes its channel.
func (h *Hub) Unreg(sender string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[sender]; ok {
		delete(h.subs, sender)
		close(sub.ch)
	}
}

// Len reports the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Notify fans msg out to every registered subscriber. Each delivery is
// bounded by SendTimeout; a subscriber that cannot keep up simply misses
// that message rather than blocking the other subscribers or the caller
// indefinitely.
func (h *Hub) Notify(msg Message) {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- msg:
		case <-time.After(SendTimeout):
		}
	}
}
