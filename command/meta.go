// Package command implements the cmd/ntsd CLI surface: one subcommand to
// run the agent in-process, and one subcommand per admin update verb listed
// in spec.md §6. Grounded on the teacher's command package shape
// (_examples/hashicorp-nomad/command/node_identity.go,
// command/node_pool_apply.go): a Meta embedded in every command, flag.FlagSet
// built per-command, github.com/posener/complete for flag/arg completion.
//
// spec.md §1 puts the RPC transport itself out of scope, so there is no
// admin RPC client here: the admin subcommands write straight to the same
// etcd keys nts/config.EtcdWatcher follows, which remains the single write
// path into a running fleet's configuration (§5, §10.3, §12).
package command

import (
	"flag"

	"github.com/hashicorp/cli"
	"github.com/posener/complete"
)

// Meta is embedded by every command, mirroring the teacher's own Meta.
type Meta struct {
	Ui cli.Ui
}

// FlagSet returns a flag.FlagSet with its usage output suppressed; commands
// report parse errors through Ui themselves.
func (m *Meta) FlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {}
	return fs
}

// AutocompleteFlags is the zero-value default; commands override it with
// their own flag set where completion is useful.
func (m *Meta) AutocompleteFlags() complete.Flags {
	return complete.Flags{}
}
