package nts

import (
	"testing"

	"github.com/shoenig/test/must"

	"github.com/nodetracker/nts/admission"
	"github.com/nodetracker/nts/config"
	"github.com/nodetracker/nts/dynresource"
	"github.com/nodetracker/nts/pacing"
	"github.com/nodetracker/nts/structs"
)

func testBootstrap() config.Bootstrap {
	return config.Bootstrap{
		MinAllocMB:     256,
		MinAllocVCores: 1,
		MinVersion:     admission.None,
		RMVersion:      "1.0.0",
		LabelMode:      structs.LabelConfigDistributed,
		Pacing: pacing.Config{
			Default: pacing.DefaultInterval,
			Min:     pacing.DefaultInterval,
			Max:     pacing.DefaultInterval,
		},
	}
}

func testServer(t *testing.T) *Server {
	mgr := config.New(testBootstrap())
	srv, err := New(nil, mgr)
	must.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func basicRegisterRequest(host string, port int) *structs.RegisterRequest {
	return &structs.RegisterRequest{
		NodeID:     structs.NodeId{Host: host, Port: port},
		HTTPPort:   8080,
		Capability: structs.Resource{MemoryMB: 1024, VCores: 2},
		NMVersion:  "1.0.0",
	}
}

func TestRegister_HappyPath_InsertsAndPublishesNodeStarted(t *testing.T) {
	srv := testServer(t)
	node := NewNode(srv)
	sub, cancel := srv.Events.Subscribe()
	defer cancel()

	resp, err := node.Register(basicRegisterRequest("n1", 9999), nil)
	must.NoError(t, err)
	must.Eq(t, structs.ActionNormal, resp.Action)

	rec := srv.Registry.Get(structs.NodeId{Host: "n1", Port: 9999})
	must.NotNil(t, rec)
	must.Eq(t, structs.NodeStateRunning, rec.State)

	ev := <-sub
	must.Eq(t, structs.TopicNodeStarted, ev.Topic)
}

func TestRegister_RejectsBelowVersionFloor(t *testing.T) {
	boot := testBootstrap()
	boot.MinVersion = "2.0.0"
	mgr := config.New(boot)
	srv, err := New(nil, mgr)
	must.NoError(t, err)
	defer srv.Close()
	node := NewNode(srv)

	req := basicRegisterRequest("n1", 9999)
	req.NMVersion = "1.0.0"
	resp, err := node.Register(req, nil)
	must.NoError(t, err)
	must.Eq(t, structs.ActionShutdown, resp.Action)
}

func TestRegister_BelowMinAllocationIsRejected(t *testing.T) {
	srv := testServer(t)
	node := NewNode(srv)

	req := basicRegisterRequest("n1", 9999)
	req.Capability = structs.Resource{MemoryMB: 1, VCores: 1}
	resp, err := node.Register(req, nil)
	must.NoError(t, err)
	must.Eq(t, structs.ActionShutdown, resp.Action)
}

func TestRegister_DynamicResourceOverrideAttachedAndReChecked(t *testing.T) {
	srv := testServer(t)
	node := NewNode(srv)
	id := structs.NodeId{Host: "n1", Port: 9999}
	must.NoError(t, srv.DynResource.Update(map[string]dynresource.Entry{
		id.String(): {MemoryMB: 2048, VCores: 4},
	}))

	resp, err := node.Register(basicRegisterRequest("n1", 9999), nil)
	must.NoError(t, err)
	must.Eq(t, structs.ActionNormal, resp.Action)
	must.NotNil(t, resp.Resource)
	must.Eq(t, int64(2048), resp.Resource.MemoryMB)

	rec := srv.Registry.Get(id)
	must.Eq(t, int64(2048), rec.TotalCapability.MemoryMB)
}

func TestHeartbeat_UnknownNodeGetsResync(t *testing.T) {
	srv := testServer(t)
	node := NewNode(srv)

	req := &structs.HeartbeatRequest{NodeStatus: structs.NodeStatus{NodeID: structs.NodeId{Host: "ghost", Port: 1}}}
	resp, err := node.Heartbeat(req)
	must.NoError(t, err)
	must.Eq(t, structs.ActionResync, resp.Action)
}

func TestHeartbeat_AdvancesResponseID(t *testing.T) {
	srv := testServer(t)
	node := NewNode(srv)
	id := structs.NodeId{Host: "n1", Port: 9999}
	_, err := node.Register(basicRegisterRequest("n1", 9999), nil)
	must.NoError(t, err)

	resp, err := node.Heartbeat(&structs.HeartbeatRequest{NodeStatus: structs.NodeStatus{NodeID: id, ResponseID: 0}})
	must.NoError(t, err)
	must.Eq(t, structs.ActionNormal, resp.Action)
	must.Eq(t, uint32(1), resp.ResponseID)
}

func TestHeartbeat_DuplicateRetransmitReplaysCachedResponse(t *testing.T) {
	srv := testServer(t)
	node := NewNode(srv)
	id := structs.NodeId{Host: "n1", Port: 9999}
	_, err := node.Register(basicRegisterRequest("n1", 9999), nil)
	must.NoError(t, err)

	first, err := node.Heartbeat(&structs.HeartbeatRequest{NodeStatus: structs.NodeStatus{NodeID: id, ResponseID: 0}})
	must.NoError(t, err)
	must.Eq(t, uint32(1), first.ResponseID)

	// Agent retransmits its previous responseId (0) because it never saw
	// responseId 1 arrive.
	dup, err := node.Heartbeat(&structs.HeartbeatRequest{NodeStatus: structs.NodeStatus{NodeID: id, ResponseID: 0}})
	must.NoError(t, err)
	must.Eq(t, first.ResponseID, dup.ResponseID)
	must.Eq(t, structs.ActionNormal, dup.Action)
}

func TestHeartbeat_OutOfSyncTriggersResync(t *testing.T) {
	srv := testServer(t)
	node := NewNode(srv)
	id := structs.NodeId{Host: "n1", Port: 9999}
	_, err := node.Register(basicRegisterRequest("n1", 9999), nil)
	must.NoError(t, err)

	resp, err := node.Heartbeat(&structs.HeartbeatRequest{NodeStatus: structs.NodeStatus{NodeID: id, ResponseID: 99}})
	must.NoError(t, err)
	must.Eq(t, structs.ActionResync, resp.Action)
}

func TestHeartbeat_ResponseIDWrapsAtMask(t *testing.T) {
	srv := testServer(t)
	node := NewNode(srv)
	id := structs.NodeId{Host: "n1", Port: 9999}
	_, err := node.Register(basicRegisterRequest("n1", 9999), nil)
	must.NoError(t, err)

	must.NoError(t, srv.Registry.WithRecord(id, func(cur *structs.NodeRecord) (*structs.NodeRecord, error) {
		cur.LastResponseID = structs.ResponseIDMask
		return cur, nil
	}))

	resp, err := node.Heartbeat(&structs.HeartbeatRequest{NodeStatus: structs.NodeStatus{NodeID: id, ResponseID: structs.ResponseIDMask}})
	must.NoError(t, err)
	must.Eq(t, structs.ActionNormal, resp.Action)
	must.Eq(t, uint32(0), resp.ResponseID)
}

func TestUnregister_UnknownNodeIsNoop(t *testing.T) {
	srv := testServer(t)
	node := NewNode(srv)

	resp, err := node.Unregister(&structs.UnregisterRequest{NodeID: structs.NodeId{Host: "ghost", Port: 1}})
	must.NoError(t, err)
	must.NotNil(t, resp)
}

func TestUnregister_RemovesKnownNode(t *testing.T) {
	srv := testServer(t)
	node := NewNode(srv)
	id := structs.NodeId{Host: "n1", Port: 9999}
	_, err := node.Register(basicRegisterRequest("n1", 9999), nil)
	must.NoError(t, err)

	_, err = node.Unregister(&structs.UnregisterRequest{NodeID: id})
	must.NoError(t, err)
	must.Nil(t, srv.Registry.Get(id))
}

func TestRegister_ReconnectWithDifferentPortReplacesRecord(t *testing.T) {
	srv := testServer(t)
	node := NewNode(srv)

	_, err := node.Register(basicRegisterRequest("n1", 9999), nil)
	must.NoError(t, err)

	sub, cancel := srv.Events.Subscribe()
	defer cancel()

	req := basicRegisterRequest("n1", 9999)
	req.HTTPPort = 9091
	_, err = node.Register(req, nil)
	must.NoError(t, err)

	rec := srv.Registry.Get(structs.NodeId{Host: "n1", Port: 9999})
	must.NotNil(t, rec)
	must.Eq(t, 9091, rec.HTTPPort)

	removed := <-sub
	must.Eq(t, structs.TopicNodeRemoved, removed.Topic)
	removedPayload, ok := removed.Payload.(structs.NodeRemovedPayload)
	must.True(t, ok)
	must.Eq(t, structs.NodeStateRunning, removedPayload.OldState)

	started := <-sub
	must.Eq(t, structs.TopicNodeStarted, started.Topic)
}

func TestHeartbeat_DecommissionDrainPublishesShutdownAndRemovesLiveness(t *testing.T) {
	srv := testServer(t)
	node := NewNode(srv)
	id := structs.NodeId{Host: "n1", Port: 9999}

	_, err := node.Register(basicRegisterRequest("n1", 9999), nil)
	must.NoError(t, err)
	must.Eq(t, 1, srv.Liveness.TimerNum())

	must.NoError(t, srv.Registry.WithRecord(id, func(cur *structs.NodeRecord) (*structs.NodeRecord, error) {
		cur.State = structs.NodeStateDecommissioning
		return cur, nil
	}))

	sub, cancel := srv.Events.Subscribe()
	defer cancel()

	resp, err := node.Heartbeat(&structs.HeartbeatRequest{NodeStatus: structs.NodeStatus{NodeID: id, ResponseID: 0}})
	must.NoError(t, err)
	must.Eq(t, structs.ActionShutdown, resp.Action)

	ev := <-sub
	must.Eq(t, structs.TopicNodeEvent, ev.Topic)
	payload, ok := ev.Payload.(structs.NodeEventPayload)
	must.True(t, ok)
	must.Eq(t, structs.NodeEventDecommission, payload.Kind)

	must.Nil(t, srv.Registry.Get(id))
	must.Eq(t, 0, srv.Liveness.TimerNum())
}
