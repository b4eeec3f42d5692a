// Package export renders trajectories for download.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/core/ports"
)

const (
	trajectorySheet = "Trajectory"
	summarySheet    = "Summary"

	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeJSON = "application/json"
)

// ForFormat returns the writer for "json" or "xlsx".
func ForFormat(format string) (ports.TrajectoryWriter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return JSONWriter{}, nil
	case "xlsx", "excel":
		return XLSXWriter{}, nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "trajectory export", fmt.Errorf("unknown format %q", format))
	}
}

type JSONWriter struct{}

func (JSONWriter) ContentType() string { return ContentTypeJSON }

func (JSONWriter) Extension() string { return "json" }

func (JSONWriter) Write(w io.Writer, traj domain.Trajectory) error {
	if traj.Points == nil {
		traj.Points = []domain.TrajectoryPoint{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(traj)
}

// XLSXWriter writes one sheet of MD/TVD/ID rows and a summary sheet.
type XLSXWriter struct{}

func (XLSXWriter) ContentType() string { return ContentTypeXLSX }

func (XLSXWriter) Extension() string { return "xlsx" }

func (XLSXWriter) Write(w io.Writer, traj domain.Trajectory) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", trajectorySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(trajectorySheet, "A1", &[]any{"MD (m)", "TVD (m)", "ID (m)"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, p := range traj.Points {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(trajectorySheet, cell, &[]any{p.MD, p.TVD, p.ID}); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	rows := [][]any{
		{"Well", traj.Well},
		{"Points", len(traj.Points)},
		{"Confidence", traj.Confidence},
		{"Source chunks", traj.SourceChunks},
		{"Method", string(traj.Method)},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
