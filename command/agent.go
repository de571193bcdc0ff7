package command

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"github.com/nodetracker/nts"
	"github.com/nodetracker/nts/config"
	"github.com/nodetracker/nts/keys"
	"github.com/nodetracker/nts/pacing"
	"github.com/nodetracker/nts/structs"
)

// AgentCommand boots a Server with the in-memory key stores and blocks
// until a termination signal arrives, matching the trap-and-wait shape the
// teacher's own long-running commands use (see
// _examples/hashicorp-nomad/command/debug.go's trap()).
type AgentCommand struct {
	Meta
}

func (c *AgentCommand) Name() string     { return "agent" }
func (c *AgentCommand) Synopsis() string { return "Run the node tracker service" }

func (c *AgentCommand) Help() string {
	helpText := `
Usage: ntsd agent [options]

  Starts the node tracker service: the registry, liveness monitor,
  decommission watcher, dynamic resource table, and event broker, seeded
  with bootstrap configuration. Runs until interrupted.

Options:

  -min-alloc-mb=<n>       Minimum admissible memory allocation, in MiB (default 512)
  -min-alloc-vcores=<n>   Minimum admissible vcore count (default 1)
  -min-version=<v>        Minimum admissible node agent version, "NONE" or "EqualToRM" (default NONE)
  -rm-version=<v>         This server's own version string (default "0.1.0")
  -label-mode=<mode>      DISTRIBUTED or DELEGATED_CENTRALIZED (default DISTRIBUTED)
  -host-resolution        Enable admission-time host resolution (default false)
  -timeline-v2            Enable timeline-v2 collector registration (default false)
  -etcd-addr=<addr>       Comma-separated etcd endpoints for hot-reload config (optional)
`
	return strings.TrimSpace(helpText)
}

func (c *AgentCommand) Run(args []string) int {
	var minAllocMB int64
	var minAllocVCores int
	var minVersion, rmVersion, labelMode, etcdAddr string
	var hostResolution, timelineV2 bool

	fs := c.Meta.FlagSet(c.Name())
	fs.Int64Var(&minAllocMB, "min-alloc-mb", 512, "")
	fs.IntVar(&minAllocVCores, "min-alloc-vcores", 1, "")
	fs.StringVar(&minVersion, "min-version", "NONE", "")
	fs.StringVar(&rmVersion, "rm-version", "0.1.0", "")
	fs.StringVar(&labelMode, "label-mode", string(structs.LabelConfigDistributed), "")
	fs.BoolVar(&hostResolution, "host-resolution", false, "")
	fs.BoolVar(&timelineV2, "timeline-v2", false, "")
	fs.StringVar(&etcdAddr, "etcd-addr", "", "")
	if err := fs.Parse(args); err != nil {
		c.Ui.Error(fmt.Sprintf("failed to parse flags: %v", err))
		return 1
	}

	boot := config.Bootstrap{
		MinAllocMB:            minAllocMB,
		MinAllocVCores:        int32(minAllocVCores),
		MinVersion:            minVersion,
		RMVersion:             rmVersion,
		HostResolutionEnabled: hostResolution,
		TimelineV2Enabled:     timelineV2,
		LabelMode:             structs.LabelConfigMode(labelMode),
		Pacing: pacing.Config{
			Default:        pacing.DefaultInterval,
			Min:            pacing.DefaultInterval,
			Max:            pacing.DefaultInterval,
			ScalingEnabled: false,
		},
	}

	logger := hclog.New(&hclog.LoggerOptions{Name: "ntsd", Level: hclog.Info})
	mgr := config.New(boot)

	srv, err := nts.New(logger, mgr)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("failed to start server: %v", err))
		return 1
	}
	defer srv.Close()

	srv.ContainerTokenKeys = keys.NewMemStore()
	srv.NMTokenKeys = keys.NewMemStore()

	if etcdAddr != "" {
		watcher, err := config.WatchEtcd(logger, mgr, config.EtcdWatchConfig{
			Endpoints:        strings.Split(etcdAddr, ","),
			PacingKey:        "nts/config/pacing",
			AdmissionKey:     "nts/config/admission",
			MinVersionKey:    "nts/config/min-version",
			DynResourceKey:   "nts/config/resources",
			DynResourceTable: srv.DynResource,
		})
		if err != nil {
			c.Ui.Error(fmt.Sprintf("failed to start etcd watcher: %v", err))
			return 1
		}
		defer watcher.Close()
	}

	c.Ui.Output(fmt.Sprintf("nts agent started, rmIdentifier=%d", srv.RMIdentifier()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-sigCh
	c.Ui.Output("nts agent shutting down")
	return 0
}
