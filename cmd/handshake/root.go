package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "handshake",
		Short: "Contract signing, workspace provisioning and milestone tracking for freelance deals",
		Long: `Handshake runs the contract-to-workspace service.

Configuration is read from the YAML file named by HANDSHAKE_CONFIG_PATH and
HANDSHAKE_* environment variables.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newReconcileCmd(),
		newTokenCmd(),
	)
	return root
}
