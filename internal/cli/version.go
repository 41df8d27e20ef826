package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudkit/pkg/crudkit"
)

const modulePath = "github.com/mesh-intelligence/crudkit"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the crudkit version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "crudkit v%s\nmodule: %s\n", crudkit.Version, modulePath)
			return nil
		},
	}
}
