package root

import (
	"github.com/spf13/cobra"

	"github.com/lu-zero/portage-resolver/cmd/resolve"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "portage-resolver",
		Short: "Resolve Portage dependency metadata into an install plan",
		Long: `Resolves Portage-style package dependency metadata (atoms, slots,
USE flags, blockers) into a concrete, ordered installation plan.`,
	}

	// add sub-commands
	rootCmd.AddCommand(resolve.NewResolveCommand())

	return rootCmd
}
