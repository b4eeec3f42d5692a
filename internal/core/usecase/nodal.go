package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/core/ports"
)

const (
	defaultNodalTimeout = 60 * time.Second
	nodalStderrChars    = 500
)

var errNoTrajectory = errors.New("no trajectory data, extract a trajectory first")

type NodalUseCase struct {
	trajectories ports.TrajectoryService
	writer       ports.TrajectoryWriter
	runner       ports.NodalRunner
	timeout      time.Duration
}

func NewNodalUseCase(
	trajectories ports.TrajectoryService,
	writer ports.TrajectoryWriter,
	runner ports.NodalRunner,
	timeout time.Duration,
) *NodalUseCase {
	if timeout <= 0 {
		timeout = defaultNodalTimeout
	}
	return &NodalUseCase{
		trajectories: trajectories,
		writer:       writer,
		runner:       runner,
		timeout:      timeout,
	}
}

// Analyze feeds the last extracted trajectory to the nodal analysis script.
// A script that exits non-zero yields a failed result carrying the head of its stderr.
func (uc *NodalUseCase) Analyze(ctx context.Context) (*domain.NodalResult, error) {
	traj, ok := uc.trajectories.LastTrajectory()
	if !ok || len(traj.Points) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "nodal analysis", errNoTrajectory)
	}

	var input bytes.Buffer
	if err := uc.writer.Write(&input, traj); err != nil {
		return nil, fmt.Errorf("encode trajectory: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	started := time.Now()
	out, err := uc.runner.Run(runCtx, input.Bytes())
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, domain.WrapError(domain.ErrServiceUnavailable, "nodal analysis",
				fmt.Errorf("timed out after %s", uc.timeout))
		}
		return nil, err
	}

	result := &domain.NodalResult{
		Well:      traj.Well,
		Points:    len(traj.Points),
		Succeeded: out.ExitCode == 0,
		ExitCode:  out.ExitCode,
	}
	if result.Succeeded {
		result.Output = strings.TrimSpace(out.Stdout)
	} else {
		result.Output = truncateRunes(strings.TrimSpace(out.Stderr), nodalStderrChars)
	}

	slog.Info("nodal_analysis_finished",
		"well", traj.Well,
		"points", result.Points,
		"exit_code", out.ExitCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return result, nil
}
