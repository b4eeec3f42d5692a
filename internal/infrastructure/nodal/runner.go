// Package nodal runs the external nodal analysis script as a child process.
package nodal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

const (
	DefaultScript      = "nodal/NodalAnalysis.py"
	DefaultInterpreter = "python3"

	// waitDelay bounds how long a killed script's children may hold its output pipes.
	waitDelay = 2 * time.Second
)

// Runner writes the trajectory to a temporary file and invokes
// `<interpreter> <script> --input <file>`.
type Runner struct {
	script      string
	interpreter string
	tempDir     string
}

func NewRunner(script, interpreter, tempDir string) *Runner {
	if script == "" {
		script = DefaultScript
	}
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}
	return &Runner{script: script, interpreter: interpreter, tempDir: tempDir}
}

// Run returns the script's output. A non-zero exit is reported through ExitCode;
// errors are kept for a missing script or interpreter and for cancellation.
func (r *Runner) Run(ctx context.Context, trajectoryJSON []byte) (domain.CommandOutput, error) {
	if _, err := os.Stat(r.script); err != nil {
		return domain.CommandOutput{}, domain.WrapError(domain.ErrConfiguration, "nodal script",
			fmt.Errorf("%s not found: %w", r.script, err))
	}
	interpreter, err := exec.LookPath(r.interpreter)
	if err != nil {
		return domain.CommandOutput{}, domain.WrapError(domain.ErrConfiguration, "nodal interpreter", err)
	}

	input, err := os.CreateTemp(r.tempDir, "trajectory-*.json")
	if err != nil {
		return domain.CommandOutput{}, fmt.Errorf("create trajectory file: %w", err)
	}
	defer os.Remove(input.Name())
	if _, err := input.Write(trajectoryJSON); err != nil {
		input.Close()
		return domain.CommandOutput{}, fmt.Errorf("write trajectory file: %w", err)
	}
	if err := input.Close(); err != nil {
		return domain.CommandOutput{}, fmt.Errorf("close trajectory file: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, interpreter, r.script, "--input", input.Name())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.CommandOutput{}, fmt.Errorf("nodal script: %w", ctxErr)
	}
	out := domain.CommandOutput{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
	default:
		return domain.CommandOutput{}, fmt.Errorf("start nodal script: %w", err)
	}
	return out, nil
}
