package structs

// Action is the sole control channel back to a node agent.
type Action string

const (
	ActionNormal  Action = "NORMAL"
	ActionShutdown Action = "SHUTDOWN"
	ActionResync  Action = "RESYNC"
)

// ContainerStatus is the minimal shape NTS needs from a reported container:
// enough to recognize a completed AM master container (§4.3 step 8) and to
// let the Decommission Watcher and label/attribute code reason about
// "containers of interest" (§4.8).
type ContainerStatus struct {
	ContainerID     string
	AppAttemptID    string
	State           string // RUNNING | COMPLETE | ...
	IsAMContainer   bool
	MasterContainer bool
}

// LogAggregationReport is opaque to NTS; it is only ever forwarded.
type LogAggregationReport struct {
	AppID  string
	Status string
	Diagnostics string
}

// NodeStatus is the liveness/throughput signal an agent reports on every
// heartbeat; the pacing controller (§4.5) and decommission watcher (§4.8)
// both consume it.
type NodeStatus struct {
	NodeID     NodeId
	ResponseID uint32
	Containers []ContainerStatus
	Healthy    bool
	HealthReport string

	// PendingUpdateCount is the pacing signal: how many container status
	// changes are queued locally on the agent side and not yet reported.
	// A high count should speed up the next heartbeat; zero should allow
	// it to slow down. See nts/pacing.
	PendingUpdateCount int
}

// MasterKey is opaque key material; NTS never inspects Bytes.
type MasterKey struct {
	KeyID uint32
	Bytes []byte
}

// AppCollectorInfo is a per-application timeline-v2 collector registration.
type AppCollectorInfo struct {
	AppID     string
	Address   string
	Version   uint64
	ClusterEpoch int64
}

// ContainerQueuingLimit bounds how many containers a node may queue locally.
type ContainerQueuingLimit struct {
	MaxQueueLength int32
}

// RegisterRequest is the logical payload of the Register RPC (§4.3, §6).
type RegisterRequest struct {
	NodeID                 NodeId
	HTTPPort               int
	Capability             Resource
	PhysicalCapability     Resource
	NMVersion              string
	NodeStatus             NodeStatus
	ContainerStatuses      []ContainerStatus
	RunningAppIDs          []string
	NodeLabels             []string
	NodeAttributes         []NodeAttribute
	LogAggregationReports  []LogAggregationReport
}

// RegisterResponse is the logical payload of the Register RPC's reply.
type RegisterResponse struct {
	Action                       Action
	Diagnostics                  string
	ContainerTokenMasterKey      *MasterKey
	NMTokenMasterKey             *MasterKey
	Resource                     *Resource
	RMIdentifier                 int64
	RMVersion                    string
	AreNodeLabelsAcceptedByRM    bool
	AreNodeAttributesAcceptedByRM bool
}

// HeartbeatRequest is the logical payload of the Heartbeat RPC (§4.4, §6).
type HeartbeatRequest struct {
	NodeStatus                       NodeStatus
	NodeLabels                       []string
	NodeAttributes                   []NodeAttribute
	RegisteringCollectors            []AppCollectorInfo
	LastKnownContainerTokenMasterKeyID uint32
	LastKnownNMTokenMasterKeyID      uint32
	TokenSequenceNo                  int64
	LogAggregationReports            []LogAggregationReport
}

// HeartbeatResponse is the logical payload of the Heartbeat RPC's reply.
type HeartbeatResponse struct {
	ResponseID                    uint32
	Action                        Action
	Diagnostics                   string
	ContainerTokenMasterKey       *MasterKey
	NMTokenMasterKey              *MasterKey
	Resource                      *Resource
	NextHeartbeatInterval         int64 // milliseconds
	ContainerQueuingLimit         *ContainerQueuingLimit
	AppCollectors                 []AppCollectorInfo
	SystemCredentialsForApps      map[string][]byte
	TokenSequenceNo               int64
	AreNodeLabelsAcceptedByRM     bool
	AreNodeAttributesAcceptedByRM bool
}

// UnregisterRequest is the logical payload of the Unregister RPC (§4.10).
type UnregisterRequest struct {
	NodeID NodeId
}

// UnregisterResponse carries nothing; unregister is fire-and-confirm.
type UnregisterResponse struct{}
