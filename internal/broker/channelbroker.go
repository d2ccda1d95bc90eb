// Package broker hands live progress channels from generation runs to stream subscribers.
package broker

import (
	"context"
	"sync"
)

type publication[TID comparable, TPayload any] struct {
	ID      TID
	Channel chan TPayload
}

type subscription[TID comparable, TPayload any] struct {
	ID      TID
	Channel chan chan TPayload
}

// ChannelBroker passes a channel with ID from producer to the first consumer.
// The subsequent consumers block until the producer is finished so that they
// can resolve the situation e.g. by reading the final state from the store.
//
// The producer is a generation run publishing its progress updates. The first
// consumer is the HTTP handler streaming them through SSE. The subsequent
// consumers are likely reconnects; for them it's better to wait for the run to
// finish and return the final state at the end.
type ChannelBroker[TID comparable, TPayload any] struct {
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	publish   chan publication[TID, TPayload]
	unpublish chan TID
	subscribe chan subscription[TID, TPayload]
}

// NewChannelBroker creates a new ChannelBroker. Run it with Start.
func NewChannelBroker[TID comparable, TPayload any]() *ChannelBroker[TID, TPayload] {
	return &ChannelBroker[TID, TPayload]{
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		publish:   make(chan publication[TID, TPayload]),
		unpublish: make(chan TID),
		subscribe: make(chan subscription[TID, TPayload]),
	}
}

// Start handles publish, unpublish and subscribe events until ctx is done or Stop is called, so it should be called
// in a goroutine. Once it returns, Subscribe hands out closed channels and Publish and Unpublish are no-ops.
func (b *ChannelBroker[TID, TPayload]) Start(ctx context.Context) {
	defer close(b.done)
	published := map[TID]chan TPayload{}
	// waiting holds the subscribers that came after the first one.
	waiting := map[TID][]chan chan TPayload{}
	taken := map[TID]bool{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stop:
			return

		case sub := <-b.subscribe:
			c, ok := published[sub.ID]
			switch {
			case !ok:
				// The producer is finished or hasn't started yet.
				close(sub.Channel)
			case !taken[sub.ID]:
				taken[sub.ID] = true
				sub.Channel <- c
			default:
				waiting[sub.ID] = append(waiting[sub.ID], sub.Channel)
			}

		case pub := <-b.publish:
			published[pub.ID] = pub.Channel
			taken[pub.ID] = false

		case id := <-b.unpublish:
			for _, sub := range waiting[id] {
				close(sub)
			}
			delete(published, id)
			delete(waiting, id)
			delete(taken, id)
		}
	}
}

// Stop the goroutine that handles the broker. It is safe to call more than once.
func (b *ChannelBroker[TID, TPayload]) Stop() {
	b.stopOnce.Do(func() { close(b.stop) })
}

// Subscribe to the channel with ID. The returned channel receives the published channel if this is the first
// subscriber. It is closed right away when nothing is published under ID, and closed once the producer unpublishes
// for every later subscriber.
func (b *ChannelBroker[TID, TPayload]) Subscribe(id TID) <-chan chan TPayload {
	channel := make(chan chan TPayload, 1)
	select {
	case b.subscribe <- subscription[TID, TPayload]{ID: id, Channel: channel}:
	case <-b.done:
		close(channel)
	}
	return channel
}

// Publish the channel with ID. The channel will be sent to the first subscriber.
func (b *ChannelBroker[TID, TPayload]) Publish(id TID, channel chan TPayload) {
	select {
	case b.publish <- publication[TID, TPayload]{ID: id, Channel: channel}:
	case <-b.done:
	}
}

// Unpublish the channel with ID and release the subscribers waiting for the producer to finish. The producer should
// close its channel before unpublishing.
func (b *ChannelBroker[TID, TPayload]) Unpublish(id TID) {
	select {
	case b.unpublish <- id:
	case <-b.done:
	}
}
