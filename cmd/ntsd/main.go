// Command ntsd runs the node tracker service and its admin CLI verbs.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/cli"

	"github.com/nodetracker/nts/command"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	commands := command.Commands(nil)

	c := cli.NewCLI("ntsd", "0.1.0")
	c.Args = args
	c.Commands = commands
	c.HelpFunc = cli.BasicHelpFunc("ntsd")

	exitCode, err := c.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}
