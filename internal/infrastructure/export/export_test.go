package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

func sampleTrajectory() domain.Trajectory {
	return domain.Trajectory{
		Well: "HAG-GT-01",
		Points: []domain.TrajectoryPoint{
			{MD: 1000.5, TVD: 950.2, ID: 0.216},
			{MD: 1500, TVD: 1400.1, ID: 0},
		},
		Confidence:   0.04,
		SourceChunks: 3,
		Method:       domain.TrajectoryRegex,
	}
}

func TestXLSXWriterWritesRowsAndSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := (XLSXWriter{}).Write(&buf, sampleTrajectory()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(trajectorySheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "MD (m)" || rows[1][0] != "1000.5" || rows[2][1] != "1400.1" {
		t.Fatalf("unexpected rows: %v", rows)
	}

	well, err := f.GetCellValue(summarySheet, "B1")
	if err != nil || well != "HAG-GT-01" {
		t.Fatalf("unexpected summary well %q, %v", well, err)
	}
}

func TestJSONWriterEmitsEmptyPointsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONWriter{}).Write(&buf, domain.Trajectory{Method: domain.TrajectoryNone}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	points, ok := decoded["points"].([]any)
	if !ok || len(points) != 0 {
		t.Fatalf("expected empty points array, got %v", decoded["points"])
	}
}

func TestForFormat(t *testing.T) {
	w, err := ForFormat("XLSX")
	if err != nil || w.ContentType() != ContentTypeXLSX {
		t.Fatalf("ForFormat(xlsx) = %v, %v", w, err)
	}
	if _, err := ForFormat("csv"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
