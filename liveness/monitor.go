// Package liveness implements the Liveness Monitor (§4.7): per-node TTL
// timers that fire a NodeEvent(EXPIRE) when a node goes quiet past its
// deadline. The Create/Get/StopAndRemove/TimerNum shape is grounded on
// _examples/hashicorp-nomad/nomad/lock/ttl_test.go, which exercises exactly
// that API against an (unretrieved) TTL timer map; §4.7 only specifies the
// three verbs NTS calls (register/unregister/receivedPing), so the timer
// bookkeeping underneath is this package's own design choice, made in the
// teacher's idiom.
package liveness

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/nodetracker/nts/structs"
)

// EventPublisher is the subset of nts/events.Dispatcher the monitor needs.
type EventPublisher interface {
	Handle(ev structs.Event)
}

type timerEntry struct {
	timer *time.Timer
}

// Monitor is the Liveness Monitor. Safe for concurrent use.
type Monitor struct {
	logger   hclog.Logger
	deadline time.Duration
	events   EventPublisher

	mu     sync.Mutex
	timers map[string]*timerEntry
}

// New constructs a Monitor with a fixed expiry deadline. deadline is the
// duration of silence after which a registered node is considered LOST.
func New(logger hclog.Logger, deadline time.Duration, events EventPublisher) *Monitor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Monitor{
		logger:   logger.Named("liveness"),
		deadline: deadline,
		events:   events,
		timers:   make(map[string]*timerEntry),
	}
}

// Register starts (or restarts) the deadline timer for id. Called on every
// registration and reconnect (§4.3 step 7).
func (m *Monitor) Register(id structs.NodeId) {
	m.reset(id)
}

// Unregister stops and removes id's timer, if any (§4.10, decommission
// drain, reconnect-with-replace).
func (m *Monitor) Unregister(id structs.NodeId) {
	key := id.String()
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.timers[key]; ok {
		e.timer.Stop()
		delete(m.timers, key)
	}
}

// ReceivedPing resets id's deadline timer. Called on every heartbeat
// accepted, including duplicates (§3 invariant: "lastPingAt is updated on
// every heartbeat accepted").
func (m *Monitor) ReceivedPing(id structs.NodeId) {
	m.reset(id)
}

// TimerNum reports how many nodes currently have a live timer, mirroring
// nomad/lock's TTLTimer.TimerNum for observability/tests.
func (m *Monitor) TimerNum() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// tracked reports whether id currently has a live timer.
func (m *Monitor) tracked(id structs.NodeId) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[id.String()]
	return ok
}

func (m *Monitor) reset(id structs.NodeId) {
	key := id.String()
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.timers[key]; ok {
		e.timer.Stop()
	}
	m.timers[key] = &timerEntry{
		timer: time.AfterFunc(m.deadline, func() { m.expire(id) }),
	}
}

func (m *Monitor) expire(id structs.NodeId) {
	m.mu.Lock()
	_, stillTracked := m.timers[id.String()]
	delete(m.timers, id.String())
	m.mu.Unlock()

	if !stillTracked {
		return
	}

	m.logger.Warn("node expired", "node_id", id.String())
	if m.events != nil {
		m.events.Handle(structs.Event{
			Topic: structs.TopicNodeEvent,
			Key:   id.String(),
			Payload: structs.NodeEventPayload{
				NodeID: id,
				Kind:   structs.NodeEventExpire,
			},
		})
	}
}
