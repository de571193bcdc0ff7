package structs

import (
	"testing"

	"github.com/hashicorp/go-set/v3"
	"github.com/shoenig/test/must"
)

func TestNextResponseID_WrapsAtMask(t *testing.T) {
	must.Eq(t, uint32(1), NextResponseID(0))
	must.Eq(t, uint32(0), NextResponseID(ResponseIDMask))
}

func TestResource_Meets(t *testing.T) {
	r := Resource{MemoryMB: 1024, VCores: 2}
	must.True(t, r.Meets(512, 1))
	must.True(t, r.Meets(1024, 2))
	must.False(t, r.Meets(2048, 2))
	must.False(t, r.Meets(1024, 4))
}

func TestResource_Equal(t *testing.T) {
	a := Resource{MemoryMB: 1024, VCores: 2, Extended: map[string]int64{"gpu": 1}}
	b := Resource{MemoryMB: 1024, VCores: 2, Extended: map[string]int64{"gpu": 1}}
	c := Resource{MemoryMB: 1024, VCores: 2, Extended: map[string]int64{"gpu": 2}}
	must.True(t, a.Equal(b))
	must.False(t, a.Equal(c))
}

func TestNodeState_IsTerminal(t *testing.T) {
	must.True(t, NodeStateDecommissioned.IsTerminal())
	must.True(t, NodeStateLost.IsTerminal())
	must.True(t, NodeStateShutdown.IsTerminal())
	must.False(t, NodeStateRunning.IsTerminal())
}

func TestNodeRecord_CloneIsIndependent(t *testing.T) {
	rec := &NodeRecord{
		ID:            NodeId{Host: "n1", Port: 9999},
		RunningAppIDs: set.From([]string{"app1"}),
	}
	cp := rec.Clone()
	cp.RunningAppIDs.Insert("app2")

	must.False(t, rec.RunningAppIDs.Contains("app2"))
	must.True(t, cp.RunningAppIDs.Contains("app2"))
}
