// Package events fans record change notifications out to in-process
// subscribers.
package events

import (
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeRecordCreated     = "record.created"
	TypeRecordUpdated     = "record.updated"
	TypeRecordDeleted     = "record.deleted"
	TypeCollectionChanged = "collection.changed"
)

// Event is one change notification. ID is empty for collection events.
type Event struct {
	Type       string `json:"type"`
	Collection string `json:"collection"`
	ID         string `json:"id,omitempty"`
}

// subscription is one subscriber channel and the collections it follows.
// An empty filter follows every collection.
type subscription struct {
	ch     chan Event
	filter map[string]struct{}
}

func (s subscription) wants(collection string) bool {
	if len(s.filter) == 0 {
		return true
	}
	_, ok := s.filter[collection]
	return ok
}

// Broker fans events out to subscribers. A single goroutine owns the
// subscriber set and the per-collection throttle state; the public methods
// talk to it over channels.
type Broker struct {
	throttle time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan Event
	publishCh     chan Event
	countCh       chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. A collection.changed event follows a record
// event at most once per throttle for each collection; a non-positive
// throttle means two seconds.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}

	b := &Broker{
		throttle:      throttle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan Event),
		publishCh:     make(chan Event, 256),
		countCh:       make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)

	subs := make(map[chan Event]subscription)
	lastChanged := make(map[string]time.Time)

	deliver := func(ev Event) {
		for _, sub := range subs {
			if !sub.wants(ev.Collection) {
				continue
			}
			select {
			case sub.ch <- ev:
			default:
				// Slow subscriber; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range subs {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			subs[sub.ch] = sub

		case ch := <-b.unsubscribeCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case ev := <-b.publishCh:
			deliver(ev)
			if ev.ID == "" {
				continue
			}
			if now := time.Now(); now.Sub(lastChanged[ev.Collection]) >= b.throttle {
				lastChanged[ev.Collection] = now
				deliver(Event{Type: TypeCollectionChanged, Collection: ev.Collection})
			}

		case resp := <-b.countCh:
			resp <- len(subs)
		}
	}
}

// Close stops the broker and closes every subscriber channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe returns a channel receiving events for the named collections,
// or for all collections when none are named. The channel is closed by
// Unsubscribe or Close.
func (b *Broker) Subscribe(collections ...string) chan Event {
	sub := subscription{ch: make(chan Event, 64)}
	if len(collections) > 0 {
		sub.filter = make(map[string]struct{}, len(collections))
		for _, c := range collections {
			sub.filter[c] = struct{}{}
		}
	}
	if b.closed.Load() {
		close(sub.ch)
		return sub.ch
	}

	select {
	case b.subscribeCh <- sub:
	case <-b.stopped:
		close(sub.ch)
	}
	return sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(ch chan Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// SubscriberCount returns the number of subscribers.
func (b *Broker) SubscriberCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues ev for delivery. Publishing after Close is a no-op.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- ev:
	case <-b.stopped:
	}
}

// PublishRecordEvent publishes a record change of kind "created", "updated"
// or "deleted" and ignores any other kind. It has the shape of
// index.EventCallback.
func (b *Broker) PublishRecordEvent(kind, collection, id string) {
	types := map[string]string{
		"created": TypeRecordCreated,
		"updated": TypeRecordUpdated,
		"deleted": TypeRecordDeleted,
	}
	typ, ok := types[kind]
	if !ok {
		return
	}
	b.Publish(Event{Type: typ, Collection: collection, ID: id})
}
