package bus

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
// Publish never blocks: a full subscriber loses the event and the loss is
// counted.
type Bus struct {
	mu       sync.RWMutex
	subs     map[int]*subscription
	watchers map[int]*watcher
	next     int
	dropped  atomic.Uint64
}

type watcher struct {
	namespace string
	fn        func(Event)
}

type subscription struct {
	namespace string
	ch        chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs:     make(map[int]*subscription),
		watchers: make(map[int]*watcher),
	}
}

// Publish sends an event to all subscribers whose namespace is a prefix of event.Kind.
// A nil bus drops everything, so components can run without one in tests.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, w := range b.watchers {
		if strings.HasPrefix(evt.Kind, w.namespace) {
			w.fn(evt)
		}
	}
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			select {
			case sub.ch <- evt:
			default:
				b.dropped.Add(1)
			}
		}
	}
}

// Emit publishes an event of the given kind stamped with the current time.
func (b *Bus) Emit(kind string, payload any) {
	b.Publish(Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// Subscribe returns a channel that receives events matching the given namespace prefix.
// An empty namespace matches every event.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Watch calls fn inline from Publish for every matching event, so nothing
// is ever dropped. fn runs under the bus read lock: it must not block or
// publish.
func (b *Bus) Watch(namespace string, fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.watchers[id] = &watcher{namespace: namespace, fn: fn}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.watchers, id)
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were lost to full subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
