// Command crossing runs intersection simulations and renders the route
// conflict graph.
package main

import (
	"fmt"
	"os"

	"github.com/anggasct/crossing/pkg/simulation"
	"github.com/spf13/cobra"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	// exitViolation signals a broken controller contract
	exitViolation = 2
)

func main() {
	os.Exit(execute(newRootCmd()))
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		if simulation.IsFatal(err) {
			return exitViolation
		}
		return exitFailure
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "crossing",
		Short: "Simulate traffic through a four-way intersection controller",
		Long: `crossing drives concurrent vehicles through an intersection controller
that admits a vehicle only when its route cannot collide with any vehicle
already inside, and audits that guarantee while the vehicles run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newGraphCmd())
	return root
}
