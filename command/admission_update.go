package command

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/nodetracker/nts/config"
)

// adminSecretEnv names the environment variable an operator sets wherever
// admin tokens are issued or the update verbs are run; the update verbs
// check tokens in their own process. Unset, the admin
// verbs run unauthenticated — convenient for local/dev clusters, matching
// AdmissionUpdateCommand's own etcd-address flag having no default auth.
const adminSecretEnv = "NTS_ADMIN_SECRET"

// adminScope is the single scope every update verb requires.
const adminScope = "admin-write"

// requireAdminToken authorizes token against NTS_ADMIN_SECRET when that
// variable is set; it is a no-op when unset.
func requireAdminToken(token string) error {
	secret := os.Getenv(adminSecretEnv)
	if secret == "" {
		return nil
	}
	auth := config.NewAdminAuthenticator([]byte(secret), adminScope, 5)
	return auth.Authorize(token)
}

// admissionListsWire mirrors nts/config's own (unexported) wire shape for
// the admission-lists etcd key; kept duplicated here rather than exported
// from nts/config, since the CLI and the watcher are on opposite sides of
// the wire and shouldn't share Go types across that boundary.
type admissionListsWire struct {
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

// AdmissionUpdateCommand pushes a new include/exclude admission list to the
// etcd key every running agent's EtcdWatcher follows (§6, §12).
type AdmissionUpdateCommand struct {
	Meta
}

func (c *AdmissionUpdateCommand) Name() string     { return "admission update" }
func (c *AdmissionUpdateCommand) Synopsis() string { return "Replace the admission include/exclude lists" }

func (c *AdmissionUpdateCommand) Help() string {
	helpText := `
Usage: ntsd admission update [options]

  Replaces the admission policy's include/exclude host lists cluster-wide by
  writing to the configured etcd key.

Options:

  -etcd-addr=<addr>  Comma-separated etcd endpoints (required)
  -key=<key>         Etcd key to write (default "nts/config/admission")
  -include=<host>    Include-list glob pattern; may be repeated
  -exclude=<host>    Exclude-list glob pattern; may be repeated
  -token=<token>     Admin bearer token; required when NTS_ADMIN_SECRET is set
`
	return strings.TrimSpace(helpText)
}

func (c *AdmissionUpdateCommand) Run(args []string) int {
	var etcdAddr, key, token string
	var include, exclude stringSliceFlag

	fs := c.Meta.FlagSet(c.Name())
	fs.StringVar(&etcdAddr, "etcd-addr", "", "")
	fs.StringVar(&key, "key", "nts/config/admission", "")
	fs.StringVar(&token, "token", "", "")
	fs.Var(&include, "include", "")
	fs.Var(&exclude, "exclude", "")
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

	payload, err := json.Marshal(admissionListsWire{Include: include, Exclude: exclude})
	if err != nil {
		c.Ui.Error(fmt.Sprintf("failed to encode admission lists: %v", err))
		return 1
	}

	if err := putEtcdKey(etcdAddr, key, payload); err != nil {
		c.Ui.Error(err.Error())
		return 1
	}

	c.Ui.Output(fmt.Sprintf("admission lists updated: %d include, %d exclude", len(include), len(exclude)))
	return 0
}

// putEtcdKey is the shared write path every admin verb funnels through.
func putEtcdKey(addr, key string, value []byte) error {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   strings.Split(addr, ","),
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("connect to etcd: %w", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := cli.Put(ctx, key, string(value)); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

// stringSliceFlag implements flag.Value for a repeatable string flag.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return strings.Join(*s, ",") }
func (s *stringSliceFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}
