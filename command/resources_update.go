package command

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nodetracker/nts/dynresource"
)

// ResourcesUpdateCommand pushes a replacement Dynamic Resource Table to the
// etcd key every running agent's EtcdWatcher follows (§4.6, §6, §12).
type ResourcesUpdateCommand struct {
	Meta
}

func (c *ResourcesUpdateCommand) Name() string     { return "resources update" }
func (c *ResourcesUpdateCommand) Synopsis() string { return "Replace the dynamic resource override table" }

func (c *ResourcesUpdateCommand) Help() string {
	helpText := `
Usage: ntsd resources update [options]

  Replaces the whole dynamic per-node capacity override table cluster-wide.

Options:

  -etcd-addr=<addr>  Comma-separated etcd endpoints (required)
  -key=<key>         Etcd key to write (default "nts/config/resources")
  -entry=<spec>      One override, "host:port=memoryMB,vcores"; may be repeated
  -token=<token>     Admin bearer token; required when NTS_ADMIN_SECRET is set
`
	return strings.TrimSpace(helpText)
}

func (c *ResourcesUpdateCommand) Run(args []string) int {
	var etcdAddr, key, token string
	var entries stringSliceFlag

	fs := c.Meta.FlagSet(c.Name())
	fs.StringVar(&etcdAddr, "etcd-addr", "", "")
	fs.StringVar(&key, "key", "nts/config/resources", "")
	fs.StringVar(&token, "token", "", "")
	fs.Var(&entries, "entry", "")
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

	table := make(map[string]dynresource.Entry, len(entries))
	for _, e := range entries {
		nodeID, rest, ok := strings.Cut(e, "=")
		if !ok {
			c.Ui.Error(fmt.Sprintf("malformed -entry %q, want host:port=memoryMB,vcores", e))
			return 1
		}
		memStr, vcoreStr, ok := strings.Cut(rest, ",")
		if !ok {
			c.Ui.Error(fmt.Sprintf("malformed -entry %q, want host:port=memoryMB,vcores", e))
			return 1
		}
		mem, err := strconv.ParseInt(memStr, 10, 64)
		if err != nil {
			c.Ui.Error(fmt.Sprintf("invalid memory value in -entry %q: %v", e, err))
			return 1
		}
		vcores, err := strconv.ParseInt(vcoreStr, 10, 32)
		if err != nil {
			c.Ui.Error(fmt.Sprintf("invalid vcore value in -entry %q: %v", e, err))
			return 1
		}
		table[nodeID] = dynresource.Entry{MemoryMB: mem, VCores: int32(vcores)}
	}

	payload, err := json.Marshal(table)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("failed to encode resource table: %v", err))
		return 1
	}

	if err := putEtcdKey(etcdAddr, key, payload); err != nil {
		c.Ui.Error(err.Error())
		return 1
	}

	c.Ui.Output(fmt.Sprintf("dynamic resource table updated: %d entries", len(table)))
	return 0
}
