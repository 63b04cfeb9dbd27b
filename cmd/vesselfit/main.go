package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vesselfit",
		Short: "Pressure vessel fitness-for-service calculations with an audit trail",
		Long: `vesselfit computes required thickness, MAWP, corrosion rates and remaining
life for pressure vessel components, classifies them against the
configured status policy and records every result in a checksum-verified
audit trail.

Configuration is read from vesselfit.yml (override with VESSELFIT_CONFIG)
and environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newCalcCmd())
	root.AddCommand(newMaterialCmd())
	root.AddCommand(newAuditCmd())

	return root
}
