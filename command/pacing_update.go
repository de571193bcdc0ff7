package command

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nodetracker/nts/pacing"
)

// PacingUpdateCommand pushes a new heartbeat pacing configuration to the
// etcd key every running agent's EtcdWatcher follows (§4.5, §6, §12).
type PacingUpdateCommand struct {
	Meta
}

func (c *PacingUpdateCommand) Name() string     { return "pacing update" }
func (c *PacingUpdateCommand) Synopsis() string { return "Replace the heartbeat pacing configuration" }

func (c *PacingUpdateCommand) Help() string {
	helpText := `
Usage: ntsd pacing update [options]

  Replaces the heartbeat pacing controller's configuration cluster-wide.
  Values failing §4.5's validation rules are corrected locally by every
  agent that applies the update; this command does not pre-validate.

Options:

  -etcd-addr=<addr>   Comma-separated etcd endpoints (required)
  -key=<key>          Etcd key to write (default "nts/config/pacing")
  -default=<dur>      Default heartbeat interval (default "10s")
  -min=<dur>          Minimum heartbeat interval (default "10s")
  -max=<dur>          Maximum heartbeat interval (default "10s")
  -speedup=<factor>   Speed-up factor applied when updates are pending (default 1.0)
  -slowdown=<factor>  Slow-down factor applied when idle (default 1.0)
  -scaling            Enable interval scaling (default false)
  -token=<token>      Admin bearer token; required when NTS_ADMIN_SECRET is set
`
	return strings.TrimSpace(helpText)
}

func (c *PacingUpdateCommand) Run(args []string) int {
	var etcdAddr, key, defaultStr, minStr, maxStr, token string
	var speedup, slowdown float64
	var scaling bool

	fs := c.Meta.FlagSet(c.Name())
	fs.StringVar(&etcdAddr, "etcd-addr", "", "")
	fs.StringVar(&key, "key", "nts/config/pacing", "")
	fs.StringVar(&defaultStr, "default", "10s", "")
	fs.StringVar(&minStr, "min", "10s", "")
	fs.StringVar(&maxStr, "max", "10s", "")
	fs.Float64Var(&speedup, "speedup", 1.0, "")
	fs.Float64Var(&slowdown, "slowdown", 1.0, "")
	fs.BoolVar(&scaling, "scaling", false, "")
	fs.StringVar(&token, "token", "", "")
	if err := fs.Parse(args); err != nil {
		c.Ui.Error(fmt.Sprintf("failed to parse flags: %v", err))
		return 1
	}
	if etcdAddr == "" {
		c.Ui.Error("-etcd-addr is required")
		return 1
	}
	if err := requireAdminToken(token); err != nil {
		c.Ui.Error(fmt.Sprintf("not authorized: %v", err))
		return 1
	}

	def, err := time.ParseDuration(defaultStr)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("invalid -default: %v", err))
		return 1
	}
	min, err := time.ParseDuration(minStr)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("invalid -min: %v", err))
		return 1
	}
	max, err := time.ParseDuration(maxStr)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("invalid -max: %v", err))
		return 1
	}

	cfg := pacing.Config{
		Default:        def,
		Min:            min,
		Max:            max,
		SpeedupFactor:  speedup,
		SlowdownFactor: slowdown,
		ScalingEnabled: scaling,
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("failed to encode pacing config: %v", err))
		return 1
	}

	if err := putEtcdKey(etcdAddr, key, payload); err != nil {
		c.Ui.Error(err.Error())
		return 1
	}

	c.Ui.Output("pacing configuration updated")
	return 0
}
