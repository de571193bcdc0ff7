// Package structs holds the wire-level and registry-level types shared by
// every NTS component: node identity, node records, resource shapes, and
// the request/response records for the three RPC verbs. Types here are
// plain data — no behavior that depends on a collaborator lives in this
// package, matching the teacher's own nomad/structs convention of keeping
// structs free of side-effecting methods.
package structs

import (
	"fmt"

	"github.com/hashicorp/go-set/v3"
)

// NodeId is the (host, port) pair that identifies a node agent. It is a
// value type: two NodeIds with equal fields are the same node.
type NodeId struct {
	Host string
	Port int
}

func (n NodeId) String() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

// NodeState is the lifecycle state of a NodeRecord.
type NodeState string

const (
	NodeStateNew             NodeState = "NEW"
	NodeStateRunning         NodeState = "RUNNING"
	NodeStateUnhealthy       NodeState = "UNHEALTHY"
	NodeStateDecommissioning NodeState = "DECOMMISSIONING"
	NodeStateDecommissioned  NodeState = "DECOMMISSIONED"
	NodeStateLost            NodeState = "LOST"
	NodeStateRebooted        NodeState = "REBOOTED"
	NodeStateShutdown        NodeState = "SHUTDOWN"
)

// TerminalNodeStates holds the states a NodeRecord never leaves.
var TerminalNodeStates = set.From([]NodeState{
	NodeStateDecommissioned,
	NodeStateLost,
	NodeStateShutdown,
})

// IsTerminal reports whether s is one of the terminal states.
func (s NodeState) IsTerminal() bool {
	return TerminalNodeStates.Contains(s)
}

// Resource is memory + vcores plus optional named extended resources
// (GPUs, custom countable resources). Matches §3's "memory MiB + vcores,
// optional extended resources".
type Resource struct {
	MemoryMB int64
	VCores   int32
	Extended map[string]int64
}

// Meets reports whether r satisfies the given minimum floors.
func (r Resource) Meets(minMemoryMB int64, minVCores int32) bool {
	return r.MemoryMB >= minMemoryMB && r.VCores >= minVCores
}

func (r Resource) Equal(o Resource) bool {
	if r.MemoryMB != o.MemoryMB || r.VCores != o.VCores {
		return false
	}
	if len(r.Extended) != len(o.Extended) {
		return false
	}
	for k, v := range r.Extended {
		if ov, ok := o.Extended[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// NodeRecord is the registry entry for one admitted node. It is mutated
// only under the registry's per-record critical section (see
// nts/registry); the NodeRecord itself holds no lock.
type NodeRecord struct {
	// identity
	ID               NodeId
	HTTPPort         int
	ResolvedRackPath string
	NMVersion        string

	// capacities
	TotalCapability      Resource
	PhysicalCapability   Resource
	CapabilityOverridden bool

	// state
	State NodeState

	// heartbeat bookkeeping
	LastResponseID          uint32
	LastResponse            *HeartbeatResponse
	LastPingAt              int64 // unix nanos, monotonic-ish wall clock
	UpdatedCapabilityPending bool

	// apps
	RunningAppIDs *set.Set[string]
}

// ResponseIDMask is the 31-bit mask response ids wrap around, per §3/§9.
const ResponseIDMask = 0x7fffffff

// NextResponseID advances id by exactly one, wrapping modulo ResponseIDMask.
func NextResponseID(id uint32) uint32 {
	return (id + 1) & ResponseIDMask
}

// Clone makes a shallow-safe copy of the record suitable for handing to a
// caller outside the registry's critical section. The RunningAppIDs set is
// copied; the LastResponse pointer is shared, since a cached response is
// treated as immutable once published.
func (n *NodeRecord) Clone() *NodeRecord {
	if n == nil {
		return nil
	}
	cp := *n
	if n.RunningAppIDs != nil {
		cp.RunningAppIDs = n.RunningAppIDs.Copy()
	}
	return &cp
}
