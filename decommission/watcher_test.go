package decommission

import (
	"testing"

	"github.com/hashicorp/go-set/v3"
	"github.com/shoenig/test/must"

	"github.com/nodetracker/nts/structs"
)

func TestWatcher_NotReadyUntilUpdated(t *testing.T) {
	w := New(nil)
	id := structs.NodeId{Host: "n1", Port: 1}
	must.False(t, w.CheckReadyToBeDecommissioned(id))
}

func TestWatcher_ReadyWhenRunningAppsEmpty(t *testing.T) {
	w := New(nil)
	id := structs.NodeId{Host: "n1", Port: 1}
	rec := &structs.NodeRecord{ID: id, State: structs.NodeStateDecommissioning}

	w.Update(rec, set.New[string](0))
	must.True(t, w.CheckReadyToBeDecommissioned(id))
}

func TestWatcher_NotReadyWithRunningApps(t *testing.T) {
	w := New(nil)
	id := structs.NodeId{Host: "n1", Port: 1}
	rec := &structs.NodeRecord{ID: id, State: structs.NodeStateDecommissioning}

	w.Update(rec, set.From([]string{"app1"}))
	must.False(t, w.CheckReadyToBeDecommissioned(id))
}

func TestWatcher_UpdateClearsNonDecommissioningNode(t *testing.T) {
	w := New(nil)
	id := structs.NodeId{Host: "n1", Port: 1}
	rec := &structs.NodeRecord{ID: id, State: structs.NodeStateDecommissioning}
	w.Update(rec, set.New[string](0))
	must.True(t, w.CheckReadyToBeDecommissioned(id))

	rec.State = structs.NodeStateRunning
	w.Update(rec, set.New[string](0))
	must.False(t, w.CheckReadyToBeDecommissioned(id))
}

func TestWatcher_Remove(t *testing.T) {
	w := New(nil)
	id := structs.NodeId{Host: "n1", Port: 1}
	rec := &structs.NodeRecord{ID: id, State: structs.NodeStateDecommissioning}
	w.Update(rec, set.New[string](0))
	w.Remove(id)
	must.False(t, w.CheckReadyToBeDecommissioned(id))
}
