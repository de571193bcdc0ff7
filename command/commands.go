package command

import (
	"os"

	"github.com/hashicorp/cli"
	colorable "github.com/mattn/go-colorable"
)

// Commands returns the mapping of CLI commands for ntsd, mirroring the
// teacher's own Commands(meta, ui) factory map
// (_examples/hashicorp-nomad/command/commands.go).
func Commands(metaPtr *Meta) map[string]cli.CommandFactory {
	if metaPtr == nil {
		metaPtr = new(Meta)
	}
	meta := *metaPtr
	if meta.Ui == nil {
		meta.Ui = &cli.BasicUi{
			Reader:      os.Stdin,
			Writer:      colorable.NewColorableStdout(),
			ErrorWriter: colorable.NewColorableStderr(),
		}
	}

	return map[string]cli.CommandFactory{
		"agent": func() (cli.Command, error) {
			return &AgentCommand{Meta: meta}, nil
		},
		"admission update": func() (cli.Command, error) {
			return &AdmissionUpdateCommand{Meta: meta}, nil
		},
		"pacing update": func() (cli.Command, error) {
			return &PacingUpdateCommand{Meta: meta}, nil
		},
		"min-version update": func() (cli.Command, error) {
			return &MinVersionUpdateCommand{Meta: meta}, nil
		},
		"resources update": func() (cli.Command, error) {
			return &ResourcesUpdateCommand{Meta: meta}, nil
		},
		"admin issue-token": func() (cli.Command, error) {
			return &AdminIssueTokenCommand{Meta: meta}, nil
		},
	}
}
