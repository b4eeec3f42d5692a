package cli

import (
	"github.com/spf13/cobra"
)

func newWarmCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Load the keyword indices from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			services, err := a.open(cmd)
			if err != nil {
				return err
			}
			if services.Warm == nil {
				return errNotConfigured
			}
			if err := services.Warm(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Indices warmed.")
			return nil
		},
	}
}
