package progress

import "sync/atomic"

// Subscription is one observer's bounded view of a publisher.
type Subscription struct {
	publisher *Publisher
	events    chan Snapshot
	dropped   atomic.Int64
	closed    bool
}

func newSubscription(publisher *Publisher, bufferSize int) *Subscription {
	return &Subscription{publisher: publisher, events: make(chan Snapshot, bufferSize)}
}

// NewClosedSubscription delivers a single snapshot and closes; used when no run is active.
func NewClosedSubscription(snapshot Snapshot) *Subscription {
	subscription := newSubscription(nil, 1)
	subscription.offer(snapshot)
	subscription.closeLocked()
	return subscription
}

// Events returns the snapshot stream. It is closed after the terminal snapshot or Unsubscribe.
func (subscription *Subscription) Events() <-chan Snapshot {
	return subscription.events
}

// Dropped reports how many snapshots were discarded because the queue was full.
func (subscription *Subscription) Dropped() int64 {
	return subscription.dropped.Load()
}

// Unsubscribe detaches the subscription and closes its stream. It is safe to call more than once.
func (subscription *Subscription) Unsubscribe() {
	if subscription.publisher == nil {
		return
	}
	subscription.publisher.detach(subscription)
}

// offer enqueues without blocking, discarding the oldest pending snapshot when full.
// Callers hold the publisher mutex, so this is the only sender.
func (subscription *Subscription) offer(snapshot Snapshot) {
	if subscription.closed {
		return
	}
	for {
		select {
		case subscription.events <- snapshot:
			return
		default:
		}
		select {
		case <-subscription.events:
			subscription.dropped.Add(1)
		default:
		}
	}
}

func (subscription *Subscription) closeLocked() {
	if subscription.closed {
		return
	}
	subscription.closed = true
	close(subscription.events)
}
