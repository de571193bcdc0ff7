package liveness

import (
	"testing"
	"time"

	"github.com/shoenig/test/must"

	"github.com/nodetracker/nts/structs"
)

type captureDispatcher struct {
	events []structs.Event
}

func (c *captureDispatcher) Handle(ev structs.Event) {
	c.events = append(c.events, ev)
}

func TestMonitor_RegisterThenUnregister_StopsTimer(t *testing.T) {
	m := New(nil, time.Hour, nil)
	id := structs.NodeId{Host: "n1", Port: 1}

	m.Register(id)
	must.Eq(t, 1, m.TimerNum())

	m.Unregister(id)
	must.Eq(t, 0, m.TimerNum())
}

func TestMonitor_ReceivedPing_ResetsWithoutDuplicateTimer(t *testing.T) {
	m := New(nil, time.Hour, nil)
	id := structs.NodeId{Host: "n1", Port: 1}

	m.Register(id)
	m.ReceivedPing(id)
	must.Eq(t, 1, m.TimerNum())
}

func TestMonitor_Expire_PublishesNodeEvent(t *testing.T) {
	disp := &captureDispatcher{}
	m := New(nil, 10*time.Millisecond, disp)
	id := structs.NodeId{Host: "n1", Port: 1}

	m.Register(id)
	time.Sleep(50 * time.Millisecond)

	must.Eq(t, 0, m.TimerNum())
	must.Len(t, 1, disp.events)
	payload, ok := disp.events[0].Payload.(structs.NodeEventPayload)
	must.True(t, ok)
	must.Eq(t, structs.NodeEventExpire, payload.Kind)
}
