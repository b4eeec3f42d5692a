package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/export"
)

func newTrajectoryCommand(a *app) *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "trajectory [well]",
		Short: "Extract a well trajectory and export it",
		Long: `Extracts the MD/TVD/ID survey table of a well from the indexed reports
and writes it as JSON or an Excel workbook.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			services, err := a.open(cmd)
			if err != nil {
				return err
			}
			writer, err := export.ForFormat(format)
			if err != nil {
				return err
			}

			well := args[0]
			traj, err := extractTrajectory(cmd, services, well)
			if err != nil {
				return err
			}

			if out == "" {
				out = fmt.Sprintf("trajectory_%s.%s", strings.ReplaceAll(well, " ", "_"), writer.Extension())
			}
			file, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := writer.Write(file, traj); err != nil {
				file.Close()
				return fmt.Errorf("write trajectory: %w", err)
			}
			if err := file.Close(); err != nil {
				return err
			}
			cmd.Printf("%d points (%s, confidence %.0f%%) written to %s\n",
				len(traj.Points), traj.Method, traj.Confidence*100, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "xlsx", "output format: json or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path")
	return cmd
}

// extractTrajectory runs an extract-mode question for the well and returns the
// trajectory it produced.
func extractTrajectory(cmd *cobra.Command, services *Services, well string) (domain.Trajectory, error) {
	answer, err := services.Query.Ask(cmd.Context(), domain.AskRequest{
		Question: fmt.Sprintf("Extract trajectory table from %s", well),
		Mode:     domain.ModeExtract,
		Well:     well,
	})
	if err != nil {
		return domain.Trajectory{}, err
	}
	traj, ok := services.Trajectories.LastTrajectory()
	if !ok || answer.Trajectory == nil || len(answer.Trajectory.Points) == 0 {
		cmd.Println(answer.Text)
		return domain.Trajectory{}, errors.New("no trajectory found")
	}
	return traj, nil
}
