package nts

import (
	"fmt"
	"net"
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-set/v3"
	"github.com/hashicorp/go-uuid"

	"github.com/nodetracker/nts/admission"
	"github.com/nodetracker/nts/structs"
)

// correlationID returns a best-effort request id for log correlation; an
// id-generation failure (entropy starvation) is not worth failing the
// request over, so the empty string is used instead.
func correlationID() string {
	id, _ := uuid.GenerateUUID()
	return id
}

// Node is the request-handler endpoint, grounded on
// _examples/hashicorp-nomad/nomad/node_endpoint.go's Node{srv *Server}
// shape: one small struct wrapping the server, with one method per RPC
// verb and a metrics.MeasureSince at the top of each.
type Node struct {
	srv *Server
}

// NewNode wraps srv for request handling.
func NewNode(srv *Server) *Node {
	return &Node{srv: srv}
}

// listsAdapter is the built-in NodesListManager backed by the config
// manager's own Lists snapshot, used whenever the server has no external
// NodesListManager collaborator wired (§6).
type listsAdapter struct {
	lists admission.Lists
}

func (a listsAdapter) IsValidNode(host string) bool { return a.lists.IsValidHost(host) }

func (a listsAdapter) IsGracefullyDecommissionableNode(r *structs.NodeRecord) bool {
	return r != nil && r.State == structs.NodeStateDecommissioning
}

func (n *Node) nodesList() NodesListManager {
	if n.srv.NodesList != nil {
		return n.srv.NodesList
	}
	return listsAdapter{lists: n.srv.Config.Snapshot().Lists}
}

func (n *Node) hostValidator() admission.HostValidator {
	nl := n.nodesList()
	return func(host string) bool { return nl.IsValidNode(host) }
}

// runningAppIDsFromContainers derives the "apps of interest" set the
// Decommission Watcher and registry track, from the containers a heartbeat
// or registration reports as still running (§4.8).
func runningAppIDsFromContainers(containers []structs.ContainerStatus) *set.Set[string] {
	out := set.New[string](len(containers))
	for _, c := range containers {
		if c.State == "RUNNING" {
			out.Insert(c.AppAttemptID)
		}
	}
	return out
}

// Register implements §4.3.
func (n *Node) Register(req *structs.RegisterRequest, remotePeerIP net.IP) (*structs.RegisterResponse, error) {
	defer metrics.MeasureSince([]string{"nts", "node", "register"}, time.Now())
	s := n.srv
	cfg := s.Config.Snapshot()
	reqID := correlationID()
	s.Logger.Debug("register request", "request_id", reqID, "node_id", req.NodeID.String())

	existing := s.Registry.Get(req.NodeID)
	decommissioning := existing != nil && existing.State == structs.NodeStateDecommissioning

	admReq := admission.Request{
		Host:              req.NodeID.Host,
		RemotePeerKnownIP: remotePeerIP != nil,
		ReportedVersion:   req.NMVersion,
		Capability:        req.Capability,
		Decommissioning:   decommissioning,
	}

	// step 1: admission policy, first failure wins.
	if r := admission.Check(cfg.AdmissionConfig(), s.RackResolver, n.hostValidator(), admReq); !r.Ok {
		metrics.IncrCounter([]string{"nts", "node", "register", "rejected"}, 1)
		s.Logger.Warn("register rejected by admission policy", "node_id", req.NodeID.String(), "reason", r.Diagnostic)
		return &structs.RegisterResponse{
			Action:       structs.ActionShutdown,
			Diagnostics:  r.Diagnostic,
			RMIdentifier: s.RMIdentifier(),
			RMVersion:    cfg.RMVersion,
		}, nil
	}

	// step 2: dynamic resource table override.
	capability := req.Capability
	var overrideResource *structs.Resource
	if entry, ok := s.DynResource.Lookup(req.NodeID); ok {
		capability = structs.Resource{MemoryMB: entry.MemoryMB, VCores: entry.VCores}
		overrideResource = &capability
	}

	// step 3: re-check minimum allocation against the possibly-overridden
	// capability.
	if !capability.Meets(cfg.MinAllocMB, cfg.MinAllocVCores) {
		diag := fmt.Sprintf(
			"overridden capability (%d MiB, %d vcores) is below the configured minimum (%d MiB, %d vcores)",
			capability.MemoryMB, capability.VCores, cfg.MinAllocMB, cfg.MinAllocVCores,
		)
		return &structs.RegisterResponse{
			Action:       structs.ActionShutdown,
			Diagnostics:  diag,
			RMIdentifier: s.RMIdentifier(),
			RMVersion:    cfg.RMVersion,
		}, nil
	}

	resp := &structs.RegisterResponse{
		Action:       structs.ActionNormal,
		RMIdentifier: s.RMIdentifier(),
		RMVersion:    cfg.RMVersion,
		Resource:     overrideResource,
	}

	// step 4: attach master keys.
	if s.ContainerTokenKeys != nil {
		resp.ContainerTokenMasterKey = s.ContainerTokenKeys.Current()
	}
	if s.NMTokenKeys != nil {
		resp.NMTokenMasterKey = s.NMTokenKeys.Current()
	}

	rackPath := ""
	if s.RackResolver != nil {
		rackPath = s.RackResolver.ResolveRack(req.NodeID.Host)
	}

	newRecord := &structs.NodeRecord{
		ID:                   req.NodeID,
		HTTPPort:             req.HTTPPort,
		ResolvedRackPath:     rackPath,
		NMVersion:            req.NMVersion,
		TotalCapability:      capability,
		PhysicalCapability:   req.PhysicalCapability,
		CapabilityOverridden: overrideResource != nil,
		State:                structs.NodeStateRunning,
		LastPingAt:           time.Now().UnixNano(),
		RunningAppIDs:        appIDSet(req.RunningAppIDs),
	}

	// step 5: fresh insert vs. reconnect.
	inserted, old := s.Registry.PutIfAbsent(newRecord)
	if inserted {
		s.Events.Handle(structs.Event{
			Topic: structs.TopicNodeStarted,
			Key:   req.NodeID.String(),
			Payload: structs.NodeStartedPayload{
				NodeID:                req.NodeID,
				ContainerStatuses:     req.ContainerStatuses,
				RunningAppIDs:         req.RunningAppIDs,
				NodeStatus:            req.NodeStatus,
				LogAggregationReports: req.LogAggregationReports,
			},
		})
	} else {
		s.Liveness.Unregister(req.NodeID)

		replace := len(req.RunningAppIDs) == 0 &&
			old.State != structs.NodeStateDecommissioning &&
			old.HTTPPort != req.HTTPPort

		if replace {
			metrics.IncrCounter([]string{"nts", "cluster", "nodes", string(old.State)}, -1)
			s.Events.Handle(structs.Event{
				Topic:   structs.TopicNodeRemoved,
				Key:     req.NodeID.String(),
				Payload: structs.NodeRemovedPayload{NodeID: req.NodeID, OldState: old.State},
			})
			if err := s.Registry.WithRecord(req.NodeID, func(*structs.NodeRecord) (*structs.NodeRecord, error) {
				return newRecord, nil
			}); err != nil {
				return nil, err
			}
			s.Events.Handle(structs.Event{
				Topic: structs.TopicNodeStarted,
				Key:   req.NodeID.String(),
				Payload: structs.NodeStartedPayload{
					NodeID:     req.NodeID,
					NodeStatus: req.NodeStatus,
				},
			})
		} else {
			var reconnected *structs.NodeRecord
			if err := s.Registry.WithRecord(req.NodeID, func(current *structs.NodeRecord) (*structs.NodeRecord, error) {
				if current == nil {
					reconnected = newRecord
					return newRecord, nil
				}
				updated := current.Clone()
				updated.LastResponseID = 0
				updated.LastResponse = nil
				updated.LastPingAt = time.Now().UnixNano()
				updated.HTTPPort = req.HTTPPort
				updated.TotalCapability = capability
				updated.CapabilityOverridden = overrideResource != nil
				updated.RunningAppIDs = appIDSet(req.RunningAppIDs)
				reconnected = updated
				return updated, nil
			}); err != nil {
				return nil, err
			}
			s.Events.Handle(structs.Event{
				Topic: structs.TopicNodeReconnect,
				Key:   req.NodeID.String(),
				Payload: structs.NodeReconnectPayload{
					NodeID:            req.NodeID,
					Record:            reconnected,
					RunningAppIDs:     req.RunningAppIDs,
					ContainerStatuses: req.ContainerStatuses,
				},
			})
		}
	}

	// step 6: clear cached nm-token key entries for this node.
	if s.NMTokenKeys != nil {
		s.NMTokenKeys.RemoveNodeKey(req.NodeID)
	}

	// step 7: re-register in liveness monitor.
	s.Liveness.Register(req.NodeID)

	// step 8: work-preserving recovery disabled -> synthesize
	// ContainerFinished for completed AM master containers.
	if !cfg.WorkPreservingRecovery {
		for _, c := range req.ContainerStatuses {
			if c.MasterContainer && c.State == "COMPLETE" {
				s.Events.Handle(structs.Event{
					Topic: structs.TopicContainerFinished,
					Key:   req.NodeID.String(),
					Payload: structs.ContainerFinishedPayload{
						AppAttemptID: c.AppAttemptID,
						ContainerID:  c.ContainerID,
					},
				})
				if s.ContainerFinished != nil {
					s.ContainerFinished.NotifyContainerFinished(c.AppAttemptID, c.ContainerID)
				}
			}
		}
	}

	// step 9: labels/attributes.
	prop := s.propagateLabelsAndAttributes(req.NodeID, req.NodeLabels, req.NodeAttributes)
	resp.AreNodeLabelsAcceptedByRM = prop.labelsAccepted
	resp.AreNodeAttributesAcceptedByRM = prop.attributesAccepted
	if prop.diagnostics != "" {
		resp.Diagnostics = prop.diagnostics
	}

	return resp, nil
}

// Heartbeat implements §4.4. The response-id arbitration, capability sync,
// and decommission-drain check all happen inside one WithRecord critical
// section so two concurrent heartbeats for the same node are strictly
// serialized into a single observed response-id sequence (§5).
func (n *Node) Heartbeat(req *structs.HeartbeatRequest) (*structs.HeartbeatResponse, error) {
	defer metrics.MeasureSince([]string{"nts", "node", "heartbeat"}, time.Now())
	s := n.srv
	cfg := s.Config.Snapshot()
	nodeID := req.NodeStatus.NodeID
	s.Logger.Debug("heartbeat request", "request_id", correlationID(), "node_id", nodeID.String(), "response_id", req.NodeStatus.ResponseID)

	existing := s.Registry.Get(nodeID)
	if existing == nil {
		return &structs.HeartbeatResponse{
			Action:      structs.ActionResync,
			Diagnostics: "node is not registered with this server",
		}, nil
	}

	// step 1: admission re-check; decommissioning nodes are exempt so a
	// node can still be told to shut down gracefully once excluded.
	if existing.State != structs.NodeStateDecommissioning {
		if validate := n.hostValidator(); validate != nil && !validate(nodeID.Host) {
			return &structs.HeartbeatResponse{
				Action:      structs.ActionShutdown,
				Diagnostics: fmt.Sprintf("host %q is no longer admitted", nodeID.Host),
			}, nil
		}
	}

	runningAppIDs := runningAppIDsFromContainers(req.NodeStatus.Containers)

	// step 2: liveness ping and decommission-watcher feed happen regardless
	// of response-id arbitration below — even a duplicate retransmit proves
	// the node is alive.
	s.Liveness.ReceivedPing(nodeID)
	s.Decommission.Update(existing, runningAppIDs)

	var resp *structs.HeartbeatResponse
	var advanced bool

	err := s.Registry.WithRecord(nodeID, func(current *structs.NodeRecord) (*structs.NodeRecord, error) {
		if current == nil {
			resp = &structs.HeartbeatResponse{
				Action:      structs.ActionResync,
				Diagnostics: "node is not registered with this server",
			}
			return nil, nil
		}

		rec := current.Clone()
		incoming := req.NodeStatus.ResponseID

		switch {
		case rec.LastResponse != nil && structs.NextResponseID(incoming) == rec.LastResponseID:
			// Duplicate retransmit: replay the cached response unchanged, but
			// lastPingAt still advances — the node proved it's alive (§3).
			rec.LastPingAt = time.Now().UnixNano()
			resp = rec.LastResponse
			return rec, nil

		case incoming != rec.LastResponseID:
			resp = &structs.HeartbeatResponse{
				ResponseID:  rec.LastResponseID,
				Action:      structs.ActionResync,
				Diagnostics: fmt.Sprintf("out of sync: agent response id %d, server has %d", incoming, rec.LastResponseID),
			}
			s.Events.Handle(structs.Event{
				Topic:   structs.TopicNodeEvent,
				Key:     nodeID.String(),
				Payload: structs.NodeEventPayload{NodeID: nodeID, Kind: structs.NodeEventRebooting},
			})
			return rec, nil
		}

		// incoming == rec.LastResponseID: advance.
		rec.LastResponseID = structs.NextResponseID(rec.LastResponseID)
		rec.LastPingAt = time.Now().UnixNano()
		rec.RunningAppIDs = runningAppIDs

		if rec.State == structs.NodeStateDecommissioning && s.Decommission.CheckReadyToBeDecommissioned(nodeID) {
			out := &structs.HeartbeatResponse{
				ResponseID:  rec.LastResponseID,
				Action:      structs.ActionShutdown,
				Diagnostics: "node has drained and is being decommissioned",
			}
			resp = out
			s.Events.Handle(structs.Event{
				Topic:   structs.TopicNodeEvent,
				Key:     nodeID.String(),
				Payload: structs.NodeEventPayload{NodeID: nodeID, Kind: structs.NodeEventDecommission},
			})
			// §4.4 step 5: unregister liveness and the decommission watcher
			// before dropping the record, or the liveness timer outlives it
			// and fires a spurious EXPIRE once defaultLivenessDeadline elapses.
			s.Liveness.Unregister(nodeID)
			s.Decommission.Remove(nodeID)
			// Terminal: drop the record rather than leave it DECOMMISSIONED
			// forever, matching §4.10's registry-removal discipline.
			return nil, nil
		}

		out := &structs.HeartbeatResponse{
			ResponseID: rec.LastResponseID,
			Action:     structs.ActionNormal,
		}

		interval := s.Pacing.NextInterval(cfg.Pacing, req.NodeStatus.PendingUpdateCount)
		out.NextHeartbeatInterval = interval.Milliseconds()

		if s.ContainerTokenKeys != nil {
			if next := s.ContainerTokenKeys.Next(); next != nil && next.KeyID != req.LastKnownContainerTokenMasterKeyID {
				out.ContainerTokenMasterKey = next
			}
		}
		if s.NMTokenKeys != nil {
			if next := s.NMTokenKeys.Next(); next != nil && next.KeyID != req.LastKnownNMTokenMasterKeyID {
				out.NMTokenMasterKey = next
			}
		}

		if s.Credentials != nil {
			if appIDs := rec.RunningAppIDs.Slice(); len(appIDs) > 0 {
				out.SystemCredentialsForApps = s.Credentials.CredentialsForApps(appIDs)
			}
		}
		out.TokenSequenceNo = req.TokenSequenceNo

		// capability sync: a live dynamic-resource override always wins;
		// otherwise flush a pending admin-triggered capability update once.
		if entry, ok := s.DynResource.Lookup(nodeID); ok {
			overridden := structs.Resource{MemoryMB: entry.MemoryMB, VCores: entry.VCores}
			if !overridden.Equal(rec.TotalCapability) {
				rec.TotalCapability = overridden
				rec.CapabilityOverridden = true
				out.Resource = &overridden
			}
		} else if rec.UpdatedCapabilityPending {
			cap := rec.TotalCapability
			out.Resource = &cap
			rec.UpdatedCapabilityPending = false
		}

		if s.QueuingLimit != nil {
			out.ContainerQueuingLimit = s.QueuingLimit.CalculateLimit(rec)
		}

		if cfg.TimelineV2Enabled && s.Collectors != nil && len(req.RegisteringCollectors) > 0 {
			out.AppCollectors = s.Collectors.Register(s.RMIdentifier(), s.NextCollectorVersion, req.RegisteringCollectors)
		}

		resp = out
		rec.LastResponse = out
		advanced = true
		return rec, nil
	})
	if err != nil {
		return nil, err
	}

	if advanced {
		s.Events.Handle(structs.Event{
			Topic: structs.TopicNodeStatus,
			Key:   nodeID.String(),
			Payload: structs.NodeStatusPayload{
				NodeID:                nodeID,
				NodeStatus:            req.NodeStatus,
				LogAggregationReports: req.LogAggregationReports,
			},
		})

		prop := s.propagateLabelsAndAttributes(nodeID, req.NodeLabels, req.NodeAttributes)
		resp.AreNodeLabelsAcceptedByRM = prop.labelsAccepted
		resp.AreNodeAttributesAcceptedByRM = prop.attributesAccepted
		if prop.diagnostics != "" {
			resp.Diagnostics = prop.diagnostics
		}
	}

	return resp, nil
}

// Unregister implements §4.10.
func (n *Node) Unregister(req *structs.UnregisterRequest) (*structs.UnregisterResponse, error) {
	defer metrics.MeasureSince([]string{"nts", "node", "unregister"}, time.Now())
	s := n.srv

	existing := s.Registry.Get(req.NodeID)
	if existing == nil {
		// idempotent: unknown node is a successful no-op.
		return &structs.UnregisterResponse{}, nil
	}

	s.Liveness.Unregister(req.NodeID)
	s.Decommission.Remove(req.NodeID)
	s.Registry.Delete(req.NodeID)

	s.Events.Handle(structs.Event{
		Topic: structs.TopicNodeEvent,
		Key:   req.NodeID.String(),
		Payload: structs.NodeEventPayload{
			NodeID: req.NodeID,
			Kind:   structs.NodeEventShutdown,
		},
	})

	return &structs.UnregisterResponse{}, nil
}
