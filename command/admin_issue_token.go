package command

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nodetracker/nts/config"
)

// AdminIssueTokenCommand mints a bearer token for the admin update verbs,
// signed with NTS_ADMIN_SECRET; the update verbs check the token against
// the same variable in their own environment. It exists so an operator
// never has to hand-construct a JWT
// to use admission/pacing/min-version/resources update.
type AdminIssueTokenCommand struct {
	Meta
}

func (c *AdminIssueTokenCommand) Name() string     { return "admin issue-token" }
func (c *AdminIssueTokenCommand) Synopsis() string { return "Mint a bearer token for the admin update verbs" }

func (c *AdminIssueTokenCommand) Help() string {
	helpText := `
Usage: ntsd admin issue-token [options]

  Mints a short-lived bearer token for the admission/pacing/min-version/
  resources update verbs, signed with NTS_ADMIN_SECRET.

Options:

  -ttl=<dur>  Token lifetime (default "1h")
`
	return strings.TrimSpace(helpText)
}

func (c *AdminIssueTokenCommand) Run(args []string) int {
	var ttlStr string

	fs := c.Meta.FlagSet(c.Name())
	fs.StringVar(&ttlStr, "ttl", "1h", "")
	if err := fs.Parse(args); err != nil {
		c.Ui.Error(fmt.Sprintf("failed to parse flags: %v", err))
		return 1
	}

	secret := os.Getenv(adminSecretEnv)
	if secret == "" {
		c.Ui.Error(fmt.Sprintf("%s is not set", adminSecretEnv))
		return 1
	}

	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("invalid -ttl: %v", err))
		return 1
	}

	auth := config.NewAdminAuthenticator([]byte(secret), adminScope, 5)
	token, err := auth.IssueToken(adminScope, ttl)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("failed to issue token: %v", err))
		return 1
	}

	c.Ui.Output(token)
	return 0
}
