// Package decommission implements the Decommission Watcher (§4.8): a small
// state-machine adapter that decides when a DECOMMISSIONING node has
// drained enough to be safely removed. The IsDone/RemainingAllocs shape is
// grounded on the teacher's own node drainer,
// _examples/hashicorp-nomad/nomad/drainer/draining_node.go, adapted from
// "allocations on this node" to "running app ids reported by this node's
// last heartbeat" since NTS has no allocation table of its own (§1: the
// scheduler is an external collaborator).
package decommission

import (
	"sync"

	"github.com/hashicorp/go-set/v3"

	"github.com/nodetracker/nts/structs"
)

// Policy hooks let an operator narrow what "containers of interest" means
// beyond "any running app" — e.g. ignoring system/sidecar jobs the way the
// teacher's drainer ignores system jobs until last. Optional; nil means
// every running app id counts.
type Policy interface {
	HasContainersOfInterest(appIDs *set.Set[string]) bool
}

// Watcher tracks DECOMMISSIONING nodes and reports readiness.
type Watcher struct {
	policy Policy

	mu    sync.Mutex
	nodes map[string]*set.Set[string]
}

// New constructs a Watcher. policy may be nil.
func New(policy Policy) *Watcher {
	return &Watcher{
		policy: policy,
		nodes:  make(map[string]*set.Set[string]),
	}
}

// Update records the latest running-app-id set for a node, as reported on
// each heartbeat (§4.8: "update(record, remoteStatus) on each heartbeat").
// Nodes not in DECOMMISSIONING state are simply not tracked; calling Update
// for such a node removes any stale tracking entry.
func (w *Watcher) Update(record *structs.NodeRecord, runningAppIDs *set.Set[string]) {
	key := record.ID.String()
	w.mu.Lock()
	defer w.mu.Unlock()
	if record.State != structs.NodeStateDecommissioning {
		delete(w.nodes, key)
		return
	}
	if runningAppIDs == nil {
		runningAppIDs = set.New[string](0)
	}
	w.nodes[key] = runningAppIDs
}

// CheckReadyToBeDecommissioned reports whether id has drained (§4.8:
// "consulted only when the record is DECOMMISSIONING"). A node with no
// tracked entry (never updated, or already removed) is considered not
// ready — the caller only asks this question for nodes it knows are
// DECOMMISSIONING, so an absent entry means "we haven't seen a heartbeat
// from it yet in this state."
func (w *Watcher) CheckReadyToBeDecommissioned(id structs.NodeId) bool {
	w.mu.Lock()
	appIDs, ok := w.nodes[id.String()]
	w.mu.Unlock()
	if !ok {
		return false
	}
	if w.policy != nil {
		return !w.policy.HasContainersOfInterest(appIDs)
	}
	return appIDs.Empty()
}

// Remove stops tracking id, e.g. once it has been decommissioned or
// unregistered.
func (w *Watcher) Remove(id structs.NodeId) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.nodes, id.String())
}
