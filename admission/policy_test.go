package admission

import (
	"errors"
	"net"
	"testing"

	"github.com/shoenig/test/must"

	"github.com/nodetracker/nts/structs"
)

type fakeResolver struct {
	ips map[string]net.IP
}

func (f fakeResolver) Resolve(host string) (net.IP, error) {
	if ip, ok := f.ips[host]; ok {
		return ip, nil
	}
	return nil, errors.New("no such host")
}

func baseConfig() Config {
	return Config{
		MinVersion:     None,
		RMVersion:      "1.2.0",
		MinAllocMB:     512,
		MinAllocVCores: 1,
	}
}

func TestCheck_VersionFloor_Rejects(t *testing.T) {
	cfg := baseConfig()
	cfg.MinVersion = "2.0.0"
	req := Request{Host: "n1", ReportedVersion: "1.9.0", Capability: structs.Resource{MemoryMB: 1024, VCores: 2}}
	r := Check(cfg, nil, nil, req)
	must.False(t, r.Ok)
}

func TestCheck_VersionFloor_EqualToRM(t *testing.T) {
	cfg := baseConfig()
	cfg.MinVersion = EqualToRM
	req := Request{Host: "n1", ReportedVersion: "1.2.0", Capability: structs.Resource{MemoryMB: 1024, VCores: 2}}
	r := Check(cfg, nil, nil, req)
	must.True(t, r.Ok)
}

func TestCheck_VersionFloor_None_SkipsCheck(t *testing.T) {
	cfg := baseConfig()
	cfg.MinVersion = None
	req := Request{Host: "n1", ReportedVersion: "not-a-version", Capability: structs.Resource{MemoryMB: 1024, VCores: 2}}
	r := Check(cfg, nil, nil, req)
	must.True(t, r.Ok)
}

func TestCheck_HostResolution_Rejects(t *testing.T) {
	cfg := baseConfig()
	cfg.HostResolutionEnabled = true
	req := Request{Host: "unknown-host", RemotePeerKnownIP: true, ReportedVersion: "1.2.0", Capability: structs.Resource{MemoryMB: 1024, VCores: 2}}
	r := Check(cfg, fakeResolver{ips: map[string]net.IP{}}, nil, req)
	must.False(t, r.Ok)
}

func TestCheck_HostResolution_SkippedWhenDisabled(t *testing.T) {
	cfg := baseConfig()
	cfg.HostResolutionEnabled = false
	req := Request{Host: "unknown-host", RemotePeerKnownIP: true, ReportedVersion: "1.2.0", Capability: structs.Resource{MemoryMB: 1024, VCores: 2}}
	r := Check(cfg, fakeResolver{ips: map[string]net.IP{}}, nil, req)
	must.True(t, r.Ok)
}

func TestCheck_Lists_ExcludedHostRejected(t *testing.T) {
	cfg := baseConfig()
	lists := NewLists(nil, []string{"bad-*"})
	req := Request{Host: "bad-node", ReportedVersion: "1.2.0", Capability: structs.Resource{MemoryMB: 1024, VCores: 2}}
	r := Check(cfg, nil, lists.IsValidHost, req)
	must.False(t, r.Ok)
}

func TestCheck_Lists_SkippedForDecommissioningNode(t *testing.T) {
	cfg := baseConfig()
	lists := NewLists(nil, []string{"bad-*"})
	req := Request{Host: "bad-node", ReportedVersion: "1.2.0", Capability: structs.Resource{MemoryMB: 1024, VCores: 2}, Decommissioning: true}
	r := Check(cfg, nil, lists.IsValidHost, req)
	must.True(t, r.Ok)
}

func TestCheck_MinAllocation_Rejects(t *testing.T) {
	cfg := baseConfig()
	req := Request{Host: "n1", ReportedVersion: "1.2.0", Capability: structs.Resource{MemoryMB: 128, VCores: 1}}
	r := Check(cfg, nil, nil, req)
	must.False(t, r.Ok)
}

func TestCheck_OrderIsFixed_VersionFailureWinsOverAllocation(t *testing.T) {
	cfg := baseConfig()
	cfg.MinVersion = "2.0.0"
	req := Request{Host: "n1", ReportedVersion: "1.0.0", Capability: structs.Resource{MemoryMB: 1, VCores: 1}}
	r := Check(cfg, nil, nil, req)
	must.False(t, r.Ok)
	must.StrContains(t, r.Diagnostic, "version")
}

func TestLists_EmptyIncludeMeansEveryoneAdmitted(t *testing.T) {
	lists := NewLists(nil, nil)
	must.True(t, lists.IsValidHost("anything"))
}

func TestLists_IncludeRestrictsToMatchingHosts(t *testing.T) {
	lists := NewLists([]string{"good-*"}, nil)
	must.True(t, lists.IsValidHost("good-node-1"))
	must.False(t, lists.IsValidHost("other-node"))
}

func TestCombineErrors(t *testing.T) {
	err := CombineErrors(errors.New("a"), nil, errors.New("b"))
	must.Error(t, err)
	must.StrContains(t, err.Error(), "a")
	must.StrContains(t, err.Error(), "b")
}
