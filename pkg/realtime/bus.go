// Package realtime is the in-process event bus behind live updates.
//
// Channels are named `library:{id}` for file, directory and share
// events and `user:{id}` for notifications. Each subscriber holds a
// bounded queue tied to one transport connection; publishers never
// block, so a stalled consumer loses events instead of stalling the
// writer. Delivery is best-effort at-most-once within the process and
// in publish order per subscriber.
package realtime

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is one bus message. Data must be JSON-serializable.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// LibraryChannel names the channel carrying a library's events.
func LibraryChannel(libraryID string) string {
	return "library:" + libraryID
}

// UserChannel names the channel carrying a user's notifications.
func UserChannel(userID string) string {
	return "user:" + userID
}

// Subscriber receives events for one channel on one connection.
type Subscriber struct {
	channel string
	queue   chan Event

	closeOnce sync.Once
}

// Events returns the receive side of the subscriber's queue. The
// channel closes when the subscriber is removed from the bus.
func (s *Subscriber) Events() <-chan Event {
	return s.queue
}

// Channel returns the channel name this subscriber is attached to.
func (s *Subscriber) Channel() string {
	return s.channel
}

const defaultQueueSize = 64

// Bus fans events out to per-channel subscriber sets.
type Bus struct {
	mu        sync.RWMutex
	channels  map[string]map[*Subscriber]struct{}
	queueSize int
	dropped   atomic.Uint64
}

// NewBus creates a bus. queueSize bounds each subscriber's backlog;
// zero or negative takes the default of 64.
func NewBus(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Bus{
		channels:  make(map[string]map[*Subscriber]struct{}),
		queueSize: queueSize,
	}
}

// Subscribe attaches a new subscriber to a channel.
func (b *Bus) Subscribe(channel string) *Subscriber {
	sub := &Subscriber{
		channel: channel,
		queue:   make(chan Event, b.queueSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.channels[channel]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.channels[channel] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches a subscriber and closes its queue. Safe to call
// more than once.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	if set, ok := b.channels[sub.channel]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.channels, sub.channel)
		}
	}
	b.mu.Unlock()

	sub.closeOnce.Do(func() {
		close(sub.queue)
	})
}

// Publish enqueues the event to every subscriber of the channel
// without blocking. Full queues drop the event for that subscriber.
func (b *Bus) Publish(channel, eventType string, data any) {
	event := Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.channels[channel] {
		select {
		case sub.queue <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many events were lost to full queues.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// SubscriberCount reports how many subscribers a channel has.
func (b *Bus) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}
