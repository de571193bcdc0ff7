package events

import (
	"testing"
	"time"

	"github.com/shoenig/test/must"

	"github.com/nodetracker/nts/structs"
)

func TestBroker_FansOutToAllSubscribers(t *testing.T) {
	b := NewBroker(nil)
	defer b.Stop()

	sub1, cancel1 := b.Subscribe()
	defer cancel1()
	sub2, cancel2 := b.Subscribe()
	defer cancel2()

	ev := structs.Event{Topic: structs.TopicNodeStatus, Key: "n1"}
	b.Handle(ev)

	select {
	case got := <-sub1:
		must.Eq(t, ev.Key, got.Key)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sub1")
	}
	select {
	case got := <-sub2:
		must.Eq(t, ev.Key, got.Key)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sub2")
	}
}

func TestBroker_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker(nil)
	defer b.Stop()

	sub, cancel := b.Subscribe()
	cancel()

	b.Handle(structs.Event{Topic: structs.TopicNodeStatus, Key: "n1"})

	select {
	case <-sub:
		t.Fatal("unexpected delivery after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_StopIsIdempotent(t *testing.T) {
	b := NewBroker(nil)
	b.Stop()
	b.Stop()
}
