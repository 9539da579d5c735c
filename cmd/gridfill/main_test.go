package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/google/go-cmp/cmp"

	"github.com/clearsky-data/gridfill"
	"github.com/clearsky-data/gridfill/internal/ncio"
	"github.com/clearsky-data/gridfill/internal/runlog"
)

const testSentinel = 1e20

// helper writing a two-slab test variable with sentinel holes
func writeTestFile(t *testing.T, path string) *ncio.Cube {
	t.Helper()
	data := sparse.ZerosDense(2, 6, 8)
	for k := range data.Elements {
		data.Elements[k] = math.Sin(0.3 * float64(k))
	}
	data.Set(testSentinel, 0, 2, 3)
	data.Set(testSentinel, 0, 3, 4)
	data.Set(testSentinel, 1, 1, 1)

	c := &ncio.Cube{
		Name: "sst",
		Dims: []string{"time", "latitude", "longitude"},
		Data: data,
		Attrs: map[string]interface{}{
			"_FillValue": []float64{testSentinel},
			"units":      "K",
		},
	}
	if err := ncio.WriteCube(path, c); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return c
}

func TestRunFillEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Logf("Testing directory: %s", dir)

	in := filepath.Join(dir, "sst.nc")
	out := filepath.Join(dir, "out.nc")
	db := filepath.Join(dir, "runs.db")
	heatmap := filepath.Join(dir, "field.png")
	report := filepath.Join(dir, "report.html")
	src := writeTestFile(t, in)

	opts := fillOptions{
		In:          in,
		Out:         out,
		Variable:    "sst",
		Params:      gridfill.Params{Relax: 0.6, Tolerance: 1e-6, MaxIterations: 500},
		DBPath:      db,
		HeatmapPath: heatmap,
		ReportPath:  report,
		Quiet:       true,
	}
	if err := runFill(opts); err != nil {
		t.Fatalf("runFill failed: %v", err)
	}

	filled, err := ncio.ReadCube(out, "sst")
	if err != nil {
		t.Fatalf("reading filled file: %v", err)
	}
	if diff := cmp.Diff(src.Dims, filled.Dims); diff != "" {
		t.Errorf("dimension mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(src.Data.Shape, filled.Data.Shape); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	if filled.Attrs["units"] != "K" {
		t.Errorf("units attribute lost, got %v", filled.Attrs["units"])
	}
	for k, v := range filled.Data.Elements {
		if v == testSentinel || math.IsNaN(v) {
			t.Fatalf("element %d still missing after fill: %v", k, v)
		}
		if src.Data.Elements[k] != testSentinel && v != src.Data.Elements[k] {
			t.Fatalf("valid element %d changed: %v != %v", k, v, src.Data.Elements[k])
		}
	}

	store, err := runlog.Open(db)
	if err != nil {
		t.Fatalf("opening run log: %v", err)
	}
	defer store.Close()
	runs, err := store.ListRuns(0)
	if err != nil {
		t.Fatalf("listing runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}
	run := runs[0]
	if run.Variable != "sst" || run.NLat != 6 || run.NLon != 8 || run.GridCount != 2 {
		t.Errorf("recorded run = %+v", run)
	}
	if run.ConvergedCount != 2 {
		t.Errorf("expected both grids converged, got %d", run.ConvergedCount)
	}
	records, err := store.GridRecords(run.RunID)
	if err != nil {
		t.Fatalf("reading grid records: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 grid records, got %d", len(records))
	}

	png, err := os.ReadFile(heatmap)
	if err != nil {
		t.Fatalf("reading heatmap: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("heatmap output is not a PNG")
	}
	html, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	for _, want := range []string{"Filled field", "Filled cells", "Iterations per grid"} {
		if !bytes.Contains(html, []byte(want)) {
			t.Errorf("report missing %q section", want)
		}
	}
}

func TestRunFillDerivesOutputPath(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "field.nc")
	writeTestFile(t, in)

	opts := fillOptions{In: in, Params: gridfill.DefaultParams(), Quiet: true}
	if err := runFill(opts); err != nil {
		t.Fatalf("runFill failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "field-filled.nc")); err != nil {
		t.Fatalf("derived output missing: %v", err)
	}
}

func TestRunFillSentinelOverride(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "field.nc")
	out := filepath.Join(dir, "out.nc")

	// Holes are marked -1, not the attribute value, so the fill must be
	// told explicitly.
	data := sparse.ZerosDense(5, 5)
	for k := range data.Elements {
		data.Elements[k] = 2
	}
	data.Set(-1, 2, 2)
	c := &ncio.Cube{Name: "v", Dims: []string{"y", "x"}, Data: data, Attrs: map[string]interface{}{}}
	if err := ncio.WriteCube(in, c); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	marker := -1.0
	opts := fillOptions{
		In:       in,
		Out:      out,
		Sentinel: &marker,
		Params:   gridfill.Params{Relax: 0.6, Tolerance: 1e-8, MaxIterations: 200},
		Quiet:    true,
	}
	if err := runFill(opts); err != nil {
		t.Fatalf("runFill failed: %v", err)
	}

	filled, err := ncio.ReadCube(out, "v")
	if err != nil {
		t.Fatalf("reading filled file: %v", err)
	}
	got := filled.Data.Get(2, 2)
	if math.Abs(got-2) > 1e-6 {
		t.Errorf("hole filled to %v, want about 2", got)
	}
}

func TestRunFillMissingInput(t *testing.T) {
	opts := fillOptions{In: "/nonexistent/field.nc", Quiet: true}
	if err := runFill(opts); err == nil {
		t.Fatal("expected error for a missing input file")
	}
}

func TestStackCount(t *testing.T) {
	cases := []struct {
		shape          []int
		latDim, lonDim int
		want           int
	}{
		{[]int{6, 8}, 0, 1, 1},
		{[]int{4, 6, 8}, 1, 2, 4},
		{[]int{2, 6, 8, 3}, 1, 2, 6},
	}
	for _, tc := range cases {
		if got := stackCount(tc.shape, tc.latDim, tc.lonDim); got != tc.want {
			t.Errorf("stackCount(%v, %d, %d) = %d, want %d", tc.shape, tc.latDim, tc.lonDim, got, tc.want)
		}
	}
}
