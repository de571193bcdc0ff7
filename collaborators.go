// Package nts ties every component together into the three request
// handlers (§4.3, §4.4, §4.10). It is the orchestration layer; all policy
// and state live in the subpackages (nts/registry, nts/admission, ...).
package nts

import (
	"net"

	"github.com/nodetracker/nts/structs"
)

// NodeLabelManager is consulted in distributed-labels mode (§4.9).
type NodeLabelManager interface {
	ReplaceLabelsOnNode(nodeID structs.NodeId, labels []string) error
}

// DelegatedNodeLabelsUpdater is consulted in delegated-centralized mode
// (§4.9); NTS never writes labels itself in this mode.
type DelegatedNodeLabelsUpdater interface {
	UpdateNodeLabels(nodeID structs.NodeId) error
}

// NodeAttributesManager backs the always-distributed attribute path (§4.9).
type NodeAttributesManager interface {
	GetAttributesForNode(host string) ([]structs.NodeAttribute, error)
	ReplaceNodeAttributes(prefix string, byHost map[string][]structs.NodeAttribute) error
}

// RackResolver backs admission's host-resolution check and registration's
// rack-path attachment (§4.2, §4.3).
type RackResolver interface {
	Resolve(host string) (net.IP, error)
	ResolveRack(host string) (rackPath string)
}

// NodesListManager backs admission's include/exclude check and the
// decommission-aware relaxation of it (§4.2).
type NodesListManager interface {
	IsValidNode(host string) bool
	IsGracefullyDecommissionableNode(record *structs.NodeRecord) bool
}

// ContainerFinishedNotifier is the app-attempt-facing sink for synthesized
// ContainerFinished events (§4.3 step 8). In NTS this is just the ordinary
// event bus — a dedicated interface is kept here because the source models
// it as a distinct collaborator (the scheduler's app-attempt object), and a
// real deployment may want to route it differently than the general event
// bus.
type ContainerFinishedNotifier interface {
	NotifyContainerFinished(appAttemptID, containerID string)
}

// ContainerQueuingLimitCalculator backs §4.4 step 13: an optional
// attachment to the heartbeat response; nil means the feature is disabled.
type ContainerQueuingLimitCalculator interface {
	CalculateLimit(record *structs.NodeRecord) *structs.ContainerQueuingLimit
}

// CollectorRegistry is the timeline-v2 collector bookkeeping collaborator
// used in §4.4 step 6. NTS owns the monotonic version counter
// (timelineCollectorVersion, §5) itself; this interface is only the
// per-app compare-and-set store.
type CollectorRegistry interface {
	// Register stamps unstamped entries with the given clusterEpoch and
	// version and applies the happens-before CAS per app, returning the
	// entries actually accepted.
	Register(clusterEpoch int64, nextVersion func() uint64, collectors []structs.AppCollectorInfo) []structs.AppCollectorInfo
}

// TokenCredentialSource backs §4.4 step 9: per-app system credentials,
// attached to every advancing heartbeat from a node with running apps.
// The agent's tokenSequenceNo is echoed back unchanged and is not compared
// against any server-side value.
type TokenCredentialSource interface {
	CredentialsForApps(appIDs []string) map[string][]byte
}
