package usecase

import (
	"context"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/core/ports"
)

const (
	trajectoryMinScore       = 3
	trajectoryCandidateLimit = 15
	trajectoryRowChunks      = 10
	trajectoryModelChunks    = 3
	trajectoryModelChars     = 800
	trajectoryPointLimit     = 100
	trajectoryMaxMD          = 5000.0
	inclinationThreshold     = 90.0
	defaultInnerDiameter     = 0.216
)

var trajectoryCues = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(measured\s+depth|MD|depth\s+\(m\))`),
	regexp.MustCompile(`(?i)(true\s+vertical\s+depth|TVD)`),
	regexp.MustCompile(`(?i)(inclination|azimuth|angle)`),
	regexp.MustCompile(`MD\s*TVD\s*(?:Incl|Inc|Angle)`),
	regexp.MustCompile(`\d{3,4}\.\d+\s+\d{3,4}\.\d+\s+\d+\.\d+`),
}

var (
	numericPair = regexp.MustCompile(`\d{3,4}\.?\d*\s+\d{3,4}\.?\d*`)
	tableRow    = regexp.MustCompile(`\|\s*(\d{1,4}\.?\d*)\s*\|\s*(\d{1,4}\.?\d*)\s*\|\s*(\d+\.?\d*)`)
	spacedRow   = regexp.MustCompile(`(?:^|\n)\s*(\d{3,4}\.?\d*)\s+(\d{3,4}\.?\d*)\s+(\d+\.?\d*)`)
)

type TrajectoryConfig struct {
	Model       string
	Timeout     time.Duration
	Temperature float64
	NumCtx      int
}

type TrajectoryUseCase struct {
	generator ports.TextGenerator
	cfg       TrajectoryConfig

	mu   sync.RWMutex
	last *domain.Trajectory
}

func NewTrajectoryUseCase(generator ports.TextGenerator, cfg TrajectoryConfig) *TrajectoryUseCase {
	return &TrajectoryUseCase{generator: generator, cfg: cfg}
}

// Extract harvests MD/TVD/ID survey points from the evidence. Rows are read with
// regular expressions first; the model is asked only when no row matched.
func (uc *TrajectoryUseCase) Extract(ctx context.Context, evidence []domain.Evidence) domain.Trajectory {
	candidates := detectTrajectoryChunks(evidence)
	if len(candidates) == 0 {
		return domain.Trajectory{Points: []domain.TrajectoryPoint{}, Method: domain.TrajectoryNone}
	}

	method := domain.TrajectoryRegex
	var points []domain.TrajectoryPoint
	for _, text := range trimCandidates(candidates, trajectoryRowChunks) {
		points = append(points, extractTrajectoryRows(text)...)
	}
	if len(points) == 0 {
		method = domain.TrajectoryModel
		points = uc.extractWithModel(ctx, candidates)
	}

	points = cleanTrajectory(points)
	if len(points) == 0 {
		method = domain.TrajectoryNone
	}
	traj := domain.Trajectory{
		Points:       points,
		Confidence:   math.Min(0.9, float64(len(points))/50.0),
		SourceChunks: len(candidates),
		Method:       method,
	}
	slog.Info("trajectory_extracted",
		"candidates", len(candidates),
		"points", len(points),
		"method", method,
	)
	return traj
}

// Remember retains the trajectory as the process-wide last result.
func (uc *TrajectoryUseCase) Remember(traj domain.Trajectory) {
	if len(traj.Points) == 0 {
		return
	}
	uc.mu.Lock()
	defer uc.mu.Unlock()
	cp := traj
	cp.Points = append([]domain.TrajectoryPoint(nil), traj.Points...)
	uc.last = &cp
}

func (uc *TrajectoryUseCase) LastTrajectory() (domain.Trajectory, bool) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	if uc.last == nil {
		return domain.Trajectory{}, false
	}
	cp := *uc.last
	cp.Points = append([]domain.TrajectoryPoint(nil), uc.last.Points...)
	return cp, true
}

// detectTrajectoryChunks scores every chunk on trajectory cues and returns the
// texts scoring at least 3, best first.
func detectTrajectoryChunks(evidence []domain.Evidence) []string {
	type scored struct {
		text  string
		score int
	}
	var out []scored
	for _, ev := range evidence {
		text := ev.Content()
		score := 0
		for _, cue := range trajectoryCues {
			if cue.MatchString(text) {
				score++
			}
		}
		if strings.ContainsAny(text, "|\t") {
			score += 2
		}
		score += min(len(numericPair.FindAllStringIndex(text, -1)), 5)
		if score >= trajectoryMinScore {
			out = append(out, scored{text: text, score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })

	texts := make([]string, 0, len(out))
	for _, s := range trimCandidates(out, trajectoryCandidateLimit) {
		texts = append(texts, s.text)
	}
	return texts
}

func extractTrajectoryRows(text string) []domain.TrajectoryPoint {
	var points []domain.TrajectoryPoint
	for _, re := range []*regexp.Regexp{tableRow, spacedRow} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if p, ok := parseTrajectoryRow(m[1], m[2], m[3]); ok {
				points = append(points, p)
			}
		}
	}
	return points
}

func parseTrajectoryRow(mdRaw, tvdRaw, thirdRaw string) (domain.TrajectoryPoint, bool) {
	md, err := strconv.ParseFloat(mdRaw, 64)
	if err != nil {
		return domain.TrajectoryPoint{}, false
	}
	tvd, err := strconv.ParseFloat(tvdRaw, 64)
	if err != nil {
		return domain.TrajectoryPoint{}, false
	}
	third, err := strconv.ParseFloat(thirdRaw, 64)
	if err != nil {
		return domain.TrajectoryPoint{}, false
	}
	// A third column of 90 or more is an inclination, not an inner diameter.
	id := third
	if third >= inclinationThreshold {
		id = 0
	}
	p := domain.TrajectoryPoint{MD: md, TVD: tvd, ID: id}
	return p, validTrajectoryPoint(p)
}

// validTrajectoryPoint holds for finite, non-negative values with TVD <= MD < 5000.
func validTrajectoryPoint(p domain.TrajectoryPoint) bool {
	for _, v := range []float64{p.MD, p.TVD, p.ID} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return p.TVD <= p.MD && p.MD < trajectoryMaxMD
}

func (uc *TrajectoryUseCase) extractWithModel(ctx context.Context, candidates []string) []domain.TrajectoryPoint {
	if uc.generator == nil {
		return nil
	}
	text, err := uc.generator.Generate(ctx, domain.GenerationRequest{
		Model:  uc.cfg.Model,
		Prompt: buildTrajectoryPrompt(candidates),
		Options: domain.GenerationOptions{
			Temperature: uc.cfg.Temperature,
			NumCtx:      uc.cfg.NumCtx,
		},
		Timeout:     uc.cfg.Timeout,
		MaxAttempts: 1,
	})
	if err != nil {
		slog.Warn("trajectory_model_failed", "model", uc.cfg.Model, "error", err)
		return nil
	}
	return parseTrajectoryCSV(text)
}

func buildTrajectoryPrompt(candidates []string) string {
	parts := make([]string, 0, trajectoryModelChunks)
	for _, text := range trimCandidates(candidates, trajectoryModelChunks) {
		parts = append(parts, truncateRunes(text, trajectoryModelChars))
	}

	var b strings.Builder
	b.WriteString("Extract trajectory data from the following well report.\n\n")
	b.WriteString("Find all MD (Measured Depth), TVD (True Vertical Depth), and ID (Inner Diameter) values.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(parts, "\n\n"))
	b.WriteString("\n\nReturn ONLY comma-separated values in format: MD,TVD,ID\n")
	b.WriteString("Example:\n")
	b.WriteString("1000.5,950.2,0.216\n")
	b.WriteString("2000.0,1850.3,0.216\n")
	return b.String()
}

// parseTrajectoryCSV reads "MD,TVD[,ID]" lines and skips anything unparsable or
// outside the point invariants.
func parseTrajectoryCSV(text string) []domain.TrajectoryPoint {
	var points []domain.TrajectoryPoint
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, ",") {
			continue
		}
		parts := strings.Split(strings.TrimSpace(line), ",")
		if len(parts) < 2 {
			continue
		}
		md, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			continue
		}
		tvd, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			continue
		}
		id := defaultInnerDiameter
		if len(parts) > 2 {
			id, err = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
			if err != nil {
				continue
			}
		}
		if p := (domain.TrajectoryPoint{MD: md, TVD: tvd, ID: id}); validTrajectoryPoint(p) {
			points = append(points, p)
		}
	}
	return points
}

// cleanTrajectory drops invalid points and duplicate (MD, TVD) pairs at 0.1 m
// resolution, sorts by MD and keeps a strictly increasing MD sequence.
func cleanTrajectory(points []domain.TrajectoryPoint) []domain.TrajectoryPoint {
	type key struct{ md, tvd float64 }
	seen := make(map[key]struct{}, len(points))
	deduped := make([]domain.TrajectoryPoint, 0, len(points))
	for _, p := range points {
		if !validTrajectoryPoint(p) {
			continue
		}
		k := key{md: roundTo(p.MD, 1), tvd: roundTo(p.TVD, 1)}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		deduped = append(deduped, p)
	}
	sort.SliceStable(deduped, func(i, j int) bool { return deduped[i].MD < deduped[j].MD })

	out := make([]domain.TrajectoryPoint, 0, len(deduped))
	prevMD := 0.0
	for _, p := range deduped {
		if p.MD > prevMD && p.TVD <= p.MD {
			out = append(out, p)
			prevMD = p.MD
		}
	}
	return trimCandidates(out, trajectoryPointLimit)
}

func roundTo(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
