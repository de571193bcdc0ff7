package command

import (
	"fmt"
	"strings"
)

// MinVersionUpdateCommand pushes a new admission version floor to the etcd
// key every running agent's EtcdWatcher follows (§4.2, §6, §12).
type MinVersionUpdateCommand struct {
	Meta
}

func (c *MinVersionUpdateCommand) Name() string     { return "min-version update" }
func (c *MinVersionUpdateCommand) Synopsis() string { return "Replace the admission minimum version floor" }

func (c *MinVersionUpdateCommand) Help() string {
	helpText := `
Usage: ntsd min-version update [options]

  Replaces the admission policy's minimum-version floor cluster-wide. Use
  "NONE" to disable the check, or "EqualToRM" to require parity with each
  server's own version.

Options:

  -etcd-addr=<addr>  Comma-separated etcd endpoints (required)
  -key=<key>         Etcd key to write (default "nts/config/min-version")
  -value=<version>   The new floor (required)
  -token=<token>     Admin bearer token; required when NTS_ADMIN_SECRET is set
`
	return strings.TrimSpace(helpText)
}

func (c *MinVersionUpdateCommand) Run(args []string) int {
	var etcdAddr, key, value, token string

	fs := c.Meta.FlagSet(c.Name())
	fs.StringVar(&etcdAddr, "etcd-addr", "", "")
	fs.StringVar(&key, "key", "nts/config/min-version", "")
	fs.StringVar(&value, "value", "", "")
	fs.StringVar(&token, "token", "", "")
	if err := fs.Parse(args); err != nil {
		c.Ui.Error(fmt.Sprintf("failed to parse flags: %v", err))
		return 1
	}
	if etcdAddr == "" {
		c.Ui.Error("-etcd-addr is required")
		return 1
	}
	if value == "" {
		c.Ui.Error("-value is required")
		return 1
	}
	if err := requireAdminToken(token); err != nil {
		c.Ui.Error(fmt.Sprintf("not authorized: %v", err))
		return 1
	}

	if err := putEtcdKey(etcdAddr, key, []byte(value)); err != nil {
		c.Ui.Error(err.Error())
		return 1
	}

	c.Ui.Output(fmt.Sprintf("minimum version floor updated to %q", value))
	return 0
}
