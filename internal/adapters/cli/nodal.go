package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newNodalCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "nodal [well]",
		Short: "Extract a well trajectory and run nodal analysis on it",
		Long: `Extracts the trajectory of a well, then runs the configured nodal analysis
script (NODAL_SCRIPT) over it and prints the script's report.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			services, err := a.open(cmd)
			if err != nil {
				return err
			}
			if services.Nodal == nil {
				return errors.New("nodal analysis is not configured")
			}

			traj, err := extractTrajectory(cmd, services, args[0])
			if err != nil {
				return err
			}
			cmd.Printf("Running nodal analysis over %d points...\n", len(traj.Points))

			result, err := services.Nodal.Analyze(cmd.Context())
			if err != nil {
				return err
			}
			if !result.Succeeded {
				cmd.Println(result.Output)
				return fmt.Errorf("nodal analysis failed with exit code %d", result.ExitCode)
			}
			cmd.Println("Nodal analysis results:")
			cmd.Println()
			cmd.Println(result.Output)
			return nil
		},
	}
}
