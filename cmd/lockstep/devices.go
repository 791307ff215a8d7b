package main

import (
	"github.com/spf13/cobra"
)

// NewDevicesCommand creates the devices command.
func NewDevicesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the devices of the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return writeDevices(cmd.OutOrStdout(), rootOpts.Format, s.registry)
		},
	}
}
