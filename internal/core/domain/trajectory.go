package domain

// TrajectoryPoint is one survey station: measured depth, true vertical depth and inner diameter.
type TrajectoryPoint struct {
	MD  float64 `json:"md"`
	TVD float64 `json:"tvd"`
	ID  float64 `json:"id"`
}

type TrajectoryMethod string

const (
	TrajectoryNone  TrajectoryMethod = "none"
	TrajectoryRegex TrajectoryMethod = "regex"
	TrajectoryModel TrajectoryMethod = "model"
)

type Trajectory struct {
	Well         string            `json:"well,omitempty"`
	Points       []TrajectoryPoint `json:"points"`
	Confidence   float64           `json:"confidence"`
	SourceChunks int               `json:"source_chunks"`
	Method       TrajectoryMethod  `json:"method"`
}

// CommandOutput is what an external program printed and how it exited.
type CommandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// NodalResult is the outcome of running the nodal analysis script over the last
// extracted trajectory. A script that exits non-zero is reported here, not as an error.
type NodalResult struct {
	Well      string `json:"well,omitempty"`
	Points    int    `json:"points"`
	Succeeded bool   `json:"succeeded"`
	ExitCode  int    `json:"exit_code"`
	Output    string `json:"output"`
}
