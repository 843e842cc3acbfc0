// Command fintrack runs the personal finance ledger: the JSON API, the
// automation worker and one-off maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fintrack",
		Short: "Personal finance ledger with recurring automations",
		Long: `fintrack records income and expenses in a local SQLite ledger,
materializes recurring automations into transactions and serves the
ledger, dashboard and category data over a JSON API.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newAutomationsCmd(),
		newMigrateCmd(),
		newEventsCmd(),
	)
	return root
}
