package event

import (
	"log"
	"runtime/debug"
	"strconv"
	"sync"
)

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine.
type Handler func(Event)

// entry pairs a subscription ID with its handler. Entries in a topic
// list stay in registration order.
type entry struct {
	id string
	fn Handler
}

// Bus fans events out to subscribed handlers so components can observe
// a run without referencing each other. Subscribing to "*" receives
// every event.
type Bus struct {
	mu      sync.RWMutex
	seq     uint64
	topics  map[string][]entry // event type -> handlers, registration order
	topicOf map[string]string  // subscription ID -> event type
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{
		topics:  make(map[string][]entry),
		topicOf: make(map[string]string),
	}
}

// Subscribe registers a handler for one event type and returns the
// subscription ID for Unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	id := "sub-" + strconv.FormatUint(b.seq, 10)
	b.topics[eventType] = append(b.topics[eventType], entry{id: id, fn: handler})
	b.topicOf[id] = eventType
	return id
}

// SubscribeAll registers a handler that receives every published event.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe("*", handler)
}

// Unsubscribe removes the subscription with the given ID and reports
// whether it existed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	topic, ok := b.topicOf[id]
	if !ok {
		return false
	}
	delete(b.topicOf, id)

	entries := b.topics[topic]
	for i := range entries {
		if entries[i].id == id {
			b.topics[topic] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
	return true
}

// Publish delivers the event to handlers subscribed to its type, then
// to wildcard handlers, each group in registration order. A panicking
// handler is recovered and logged and delivery continues.
func (b *Bus) Publish(event Event) {
	// Snapshot before dispatch so handlers can subscribe or unsubscribe
	// without deadlocking the bus.
	b.mu.RLock()
	pending := make([]Handler, 0, len(b.topics[event.EventType()])+len(b.topics["*"]))
	for _, e := range b.topics[event.EventType()] {
		pending = append(pending, e.fn)
	}
	for _, e := range b.topics["*"] {
		pending = append(pending, e.fn)
	}
	b.mu.RUnlock()

	for _, fn := range pending {
		dispatch(fn, event)
	}
}

// dispatch runs one handler, converting a panic into a logged error so
// the remaining handlers still see the event.
func dispatch(fn Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: handler for %s panicked: %v\n%s",
				event.EventType(), r, debug.Stack())
		}
	}()
	fn(event)
}

// Clear drops every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = make(map[string][]entry)
	b.topicOf = make(map[string]string)
}

// SubscriptionCount returns the number of active subscriptions across
// all event types.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topicOf)
}
