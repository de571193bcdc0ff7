package structs

// NodeEventKind enumerates the standalone lifecycle events NTS publishes
// through NodeEvent (§2.7): REBOOTING, DECOMMISSION, SHUTDOWN, EXPIRE.
type NodeEventKind string

const (
	NodeEventRebooting    NodeEventKind = "REBOOTING"
	NodeEventDecommission NodeEventKind = "DECOMMISSION"
	NodeEventShutdown     NodeEventKind = "SHUTDOWN"
	NodeEventExpire       NodeEventKind = "EXPIRE"
)

// EventTopic mirrors nomad/stream's Topic: a coarse routing key an
// EventDispatcher subscriber filters on.
type EventTopic string

const (
	TopicNodeStarted        EventTopic = "NodeStarted"
	TopicNodeReconnect      EventTopic = "NodeReconnect"
	TopicNodeStatus         EventTopic = "NodeStatus"
	TopicNodeEvent          EventTopic = "NodeEvent"
	TopicNodeRemoved        EventTopic = "NodeRemoved"
	TopicContainerFinished  EventTopic = "ContainerFinished"
)

// Event is the single record type NTS ever puts on the event bus. Payload
// is one of the *Payload types below, keyed by Topic.
type Event struct {
	Topic   EventTopic
	Key     string // stringified NodeId, for routing/filtering
	Payload interface{}
}

// NodeStartedPayload backs TopicNodeStarted.
type NodeStartedPayload struct {
	NodeID                NodeId
	ContainerStatuses     []ContainerStatus
	RunningAppIDs         []string
	NodeStatus            NodeStatus
	LogAggregationReports []LogAggregationReport
}

// NodeReconnectPayload backs TopicNodeReconnect.
type NodeReconnectPayload struct {
	NodeID            NodeId
	Record            *NodeRecord
	RunningAppIDs     []string
	ContainerStatuses []ContainerStatus
}

// NodeStatusPayload backs TopicNodeStatus.
type NodeStatusPayload struct {
	NodeID                NodeId
	NodeStatus            NodeStatus
	LogAggregationReports []LogAggregationReport
}

// NodeEventPayload backs TopicNodeEvent.
type NodeEventPayload struct {
	NodeID NodeId
	Kind   NodeEventKind
}

// NodeRemovedPayload backs TopicNodeRemoved.
type NodeRemovedPayload struct {
	NodeID   NodeId
	OldState NodeState
}

// ContainerFinishedPayload backs TopicContainerFinished; it is synthesized
// for completed AM master containers when work-preserving recovery is
// disabled (§4.3 step 8).
type ContainerFinishedPayload struct {
	AppAttemptID string
	ContainerID  string
}
