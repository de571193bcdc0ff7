// Package events implements the NTS event bus: a single-producer,
// multi-consumer fan-out queue, grounded in nomad/stream's Topic/Event
// shape (see _examples/hashicorp-nomad/nomad/stream/event.go) but without
// nomad/stream's raft-index bookkeeping, which has no equivalent here — the
// registry is in-memory and unindexed by design (§1 Non-goals).
package events

import (
	"github.com/hashicorp/go-hclog"

	"github.com/nodetracker/nts/structs"
)

// Dispatcher is the collaborator interface NTS consumes for event
// publication (§6): asynchronous, and it never throws into the handler —
// Handle returns nothing and callers never check an error.
type Dispatcher interface {
	Handle(ev structs.Event)
}

// Broker is a fan-out Dispatcher: every subscriber channel receives every
// published event, in publish order. It never blocks the publisher for
// long — a slow subscriber only ever delays delivery to itself, via a
// bounded per-subscriber buffer; when that buffer is full the event being
// delivered is dropped for that subscriber (events already buffered are
// kept), matching §7's "event-publish failure is
// swallowed... dispatcher is responsible for durability."
type Broker struct {
	logger hclog.Logger

	subCh   chan subscriberOp
	eventCh chan structs.Event
	doneCh  chan struct{}
}

type subscriberOp struct {
	add    bool
	sub    chan structs.Event
}

const subscriberBuffer = 64

// NewBroker starts the fan-out goroutine and returns a ready Broker. Callers
// must call Stop when finished to release the goroutine.
func NewBroker(logger hclog.Logger) *Broker {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	b := &Broker{
		logger:  logger.Named("events"),
		subCh:   make(chan subscriberOp),
		eventCh: make(chan structs.Event, 256),
		doneCh:  make(chan struct{}),
	}
	go b.run()
	return b
}

// Handle implements Dispatcher. It never blocks the caller beyond enqueuing
// onto the broker's own buffered channel — the caller is a request handler
// and must not be made to wait on subscriber I/O.
func (b *Broker) Handle(ev structs.Event) {
	select {
	case b.eventCh <- ev:
	case <-b.doneCh:
	default:
		// Producer channel is saturated; drop rather than block the
		// handler. §7: event-publish failure is swallowed at the
		// handler boundary.
		b.logger.Warn("event queue full, dropping event", "topic", ev.Topic, "key", ev.Key)
	}
}

// Subscribe returns a channel that receives every event published from this
// point on. The returned cancel func must be called to unsubscribe.
func (b *Broker) Subscribe() (<-chan structs.Event, func()) {
	sub := make(chan structs.Event, subscriberBuffer)
	select {
	case b.subCh <- subscriberOp{add: true, sub: sub}:
	case <-b.doneCh:
	}
	cancel := func() {
		select {
		case b.subCh <- subscriberOp{add: false, sub: sub}:
		case <-b.doneCh:
		}
	}
	return sub, cancel
}

// Stop shuts the broker down; no further events are delivered.
func (b *Broker) Stop() {
	select {
	case <-b.doneCh:
	default:
		close(b.doneCh)
	}
}

func (b *Broker) run() {
	subs := make(map[chan structs.Event]struct{})
	for {
		select {
		case <-b.doneCh:
			return
		case op := <-b.subCh:
			if op.add {
				subs[op.sub] = struct{}{}
			} else {
				delete(subs, op.sub)
			}
		case ev := <-b.eventCh:
			for sub := range subs {
				select {
				case sub <- ev:
				default:
					// Drop the event for this one slow subscriber rather
					// than block fan-out to the others.
					b.logger.Warn("subscriber lagging, dropping event", "topic", ev.Topic)
				}
			}
		}
	}
}
