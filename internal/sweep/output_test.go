package sweep

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/clearsky-data/gridfill"
)

func TestCSVWriter_SummaryAndRaw(t *testing.T) {
	o := Outcome{
		Combo:             Combo{Relax: 0.6, Tolerance: 1e-4},
		Grids:             2,
		ConvergedFraction: 0.5,
		MeanIterations:    51,
		StddevIterations:  69.296464,
		WorstResidual:     2.5e-1,
		ElapsedMillis:     12,
		Results: []gridfill.Result{
			{Iterations: 2, MaxResidual: 3e-5},
			{Iterations: 100, MaxResidual: 2.5e-1},
		},
	}

	var summary, raw bytes.Buffer
	w := NewCSVWriter(&summary, &raw)
	w.WriteHeaders()
	w.WriteOutcome(o)
	w.Flush()

	sRows, err := csv.NewReader(&summary).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse summary csv: %v", err)
	}
	if len(sRows) != 2 {
		t.Fatalf("expected header + 1 summary row, got %d rows", len(sRows))
	}
	if got := len(sRows[0]); got != 8 {
		t.Errorf("summary header has %d columns, want 8", got)
	}
	if sRows[1][0] != "0.600000" {
		t.Errorf("relax column = %q", sRows[1][0])
	}
	if sRows[1][3] != "0.5000" {
		t.Errorf("converged_fraction column = %q", sRows[1][3])
	}

	rRows, err := csv.NewReader(&raw).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse raw csv: %v", err)
	}
	if len(rRows) != 3 {
		t.Fatalf("expected header + 2 raw rows, got %d rows", len(rRows))
	}
	if got := len(rRows[0]); got != 6 {
		t.Errorf("raw header has %d columns, want 6", got)
	}
	if rRows[1][5] != "true" || rRows[2][5] != "false" {
		t.Errorf("converged flags = %q, %q", rRows[1][5], rRows[2][5])
	}
	if rRows[2][3] != "100" {
		t.Errorf("iterations column = %q", rRows[2][3])
	}
}

func TestWriteChart(t *testing.T) {
	outcomes := []Outcome{
		{Combo: Combo{Relax: 0.4, Tolerance: 1e-4}, Grids: 1, ConvergedFraction: 1, MeanIterations: 30},
		{Combo: Combo{Relax: 0.8, Tolerance: 1e-4}, Grids: 1, ConvergedFraction: 0.5, MeanIterations: 12},
	}

	var buf bytes.Buffer
	if err := WriteChart(&buf, outcomes); err != nil {
		t.Fatalf("WriteChart failed: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"Mean iterations", "Converged fraction", "r=0.40 t=1e-04"} {
		if !strings.Contains(html, want) {
			t.Errorf("chart output missing %q", want)
		}
	}
}

func TestWriteChart_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteChart(&buf, nil); err == nil {
		t.Error("expected error for empty outcomes, got nil")
	}
}
