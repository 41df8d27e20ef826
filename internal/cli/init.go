package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudkit/pkg/crudkit"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration and open the local cache backend",
		Long:  "Write a default config.yaml if none exists, then open and close the configured\nkey/value backend so its data directory and schema are created.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kv, err := crudkit.OpenKV(a.cfg, a.logger)
			if err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			if err := kv.Close(); err != nil {
				return fmt.Errorf("finalize storage: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "crudkit initialized (%s backend, data dir %s)\n", a.cfg.Backend, a.cfg.DataDir)
			return nil
		},
	}
}
