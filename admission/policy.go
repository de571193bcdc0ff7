// Package admission implements the Admission Policy (§4.2): stateless
// predicates consulted by Register in fixed order, first failure wins.
package admission

import (
	"fmt"
	"net"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-set/v3"
	hcversion "github.com/hashicorp/go-version"
	"github.com/ryanuber/go-glob"

	"github.com/nodetracker/nts/structs"
)

// EqualToRM is the special minVersion sentinel that resolves to this
// server's own version (§4.2).
const EqualToRM = "EqualToRM"

// None disables the version floor entirely.
const None = "NONE"

// Lists is the include/exclude admission list (§4.2's "Include/exclude
// list"). Patterns support glob syntax via ryanuber/go-glob, matching the
// teacher's own dependency for the same purpose.
type Lists struct {
	Include *set.Set[string]
	Exclude *set.Set[string]
}

// NewLists builds a Lists from plain string slices.
func NewLists(include, exclude []string) Lists {
	return Lists{
		Include: set.From(include),
		Exclude: set.From(exclude),
	}
}

// IsValidHost reports whether host is admitted. An empty Include list means
// "no include restriction" (everyone not excluded is valid); Exclude always
// wins over Include.
func (l Lists) IsValidHost(host string) bool {
	if l.Exclude != nil {
		for _, pattern := range l.Exclude.Slice() {
			if glob.Glob(pattern, host) {
				return false
			}
		}
	}
	if l.Include == nil || l.Include.Empty() {
		return true
	}
	for _, pattern := range l.Include.Slice() {
		if glob.Glob(pattern, host) {
			return true
		}
	}
	return false
}

// Config is the set of checks' tunables, read once per admission pass from
// the config manager's snapshot.
type Config struct {
	MinVersion           string
	RMVersion            string
	HostResolutionEnabled bool
	MinAllocMB           int64
	MinAllocVCores       int32
}

// Resolver is the subset of NodesListManager/RackResolver admission needs:
// does this host resolve to a known address (§4.2's "Host resolution").
type Resolver interface {
	Resolve(host string) (net.IP, error)
}

// Request is the minimal shape admission needs out of a RegisterRequest.
type Request struct {
	Host               string
	RemotePeerKnownIP  bool
	ReportedVersion    string
	Capability         structs.Resource
	Decommissioning    bool
}

// Result is returned by Check: Ok is false iff a predicate failed, in which
// case Diagnostic explains which one and why (§4.2: "first failure wins,
// producing a SHUTDOWN response with a human-readable diagnostic").
type Result struct {
	Ok         bool
	Diagnostic string
}

func reject(format string, args ...interface{}) Result {
	return Result{Ok: false, Diagnostic: fmt.Sprintf(format, args...)}
}

var ok = Result{Ok: true}

// HostValidator is the include/exclude admission-list check (§4.2's
// "Include/exclude list"), normally backed by a NodesListManager
// collaborator (§6); Lists.IsValidHost is the built-in default when no
// external collaborator is wired.
type HostValidator func(host string) bool

// Check runs the four predicates in the fixed order §4.2's table specifies,
// returning on the first failure. validHost backs the third check; pass
// nil to skip it entirely (e.g. a caller that has already established the
// host is valid).
func Check(cfg Config, resolver Resolver, validHost HostValidator, req Request) Result {
	if r := checkVersionFloor(cfg, req); !r.Ok {
		return r
	}
	if r := checkHostResolution(cfg, resolver, req); !r.Ok {
		return r
	}
	if r := checkLists(validHost, req); !r.Ok {
		return r
	}
	if r := checkMinAllocation(cfg, req.Capability); !r.Ok {
		return r
	}
	return ok
}

func checkVersionFloor(cfg Config, req Request) Result {
	floor := cfg.MinVersion
	if floor == "" || floor == None {
		return ok
	}
	if floor == EqualToRM {
		floor = cfg.RMVersion
	}

	minV, err := hcversion.NewVersion(floor)
	if err != nil {
		return ok // an unparsable floor disables the check rather than rejecting everyone
	}
	reportedV, err := hcversion.NewVersion(req.ReportedVersion)
	if err != nil {
		return reject("node reported an unparsable version %q (required >= %s)", req.ReportedVersion, floor)
	}
	if reportedV.LessThan(minV) {
		return reject("node version %s is below the configured minimum %s", req.ReportedVersion, floor)
	}
	return ok
}

func checkHostResolution(cfg Config, resolver Resolver, req Request) Result {
	if !cfg.HostResolutionEnabled || resolver == nil {
		return ok
	}
	if !req.RemotePeerKnownIP {
		return ok
	}
	if _, err := resolver.Resolve(req.Host); err != nil {
		return reject("host %q does not resolve: %v", req.Host, err)
	}
	return ok
}

func checkLists(validHost HostValidator, req Request) Result {
	if req.Decommissioning {
		return ok
	}
	if validHost == nil {
		return ok
	}
	if !validHost(req.Host) {
		return reject("host %q is not in the admission include list or is excluded", req.Host)
	}
	return ok
}

func checkMinAllocation(cfg Config, capability structs.Resource) Result {
	if !capability.Meets(cfg.MinAllocMB, cfg.MinAllocVCores) {
		return reject(
			"reported capability (%d MiB, %d vcores) is below the configured minimum (%d MiB, %d vcores)",
			capability.MemoryMB, capability.VCores, cfg.MinAllocMB, cfg.MinAllocVCores,
		)
	}
	return ok
}

// CombineErrors aggregates independent validation failures into one error
// whose message joins them with "; ", skipping nil entries. It returns nil
// when every entry is nil.
func CombineErrors(errs ...error) error {
	var merr *multierror.Error
	for _, e := range errs {
		if e != nil {
			merr = multierror.Append(merr, e)
		}
	}
	if merr == nil {
		return nil
	}
	merr.ErrorFormat = func(es []error) string {
		msgs := make([]string, len(es))
		for i, e := range es {
			msgs[i] = e.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return merr.ErrorOrNil()
}
