// Command gridfill fills the missing cells of a gridded NetCDF variable
// by relaxation and writes the completed field to a new file. Optionally
// it records the run in a SQLite log and renders a heatmap, a residual
// curve and an HTML report.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/clearsky-data/gridfill"
	"github.com/clearsky-data/gridfill/cube"
	"github.com/clearsky-data/gridfill/internal/config"
	"github.com/clearsky-data/gridfill/internal/ncio"
	"github.com/clearsky-data/gridfill/internal/render"
	"github.com/clearsky-data/gridfill/internal/runlog"
)

var (
	inFile        = flag.String("in", "", "Input NetCDF file (required)")
	outFile       = flag.String("out", "", "Output NetCDF file (defaults to <in>-filled.nc)")
	varName       = flag.String("var", "", "Variable to fill (default: first variable with at least two dimensions)")
	paramsFile    = flag.String("params", "", "Optional JSON settings file; explicit flags override it")
	relax         = flag.Float64("relax", gridfill.DefaultRelax, "Over-relaxation constant")
	tolerance     = flag.Float64("tolerance", gridfill.DefaultTolerance, "Convergence threshold on the largest residual")
	maxIterations = flag.Int("max-iterations", gridfill.DefaultMaxIterations, "Sweep cap per grid")
	cyclic        = flag.Bool("cyclic", false, "Wrap the longitude axis instead of reflecting it")
	initZonal     = flag.Bool("init-zonal", false, "Seed missing cells with zonal means instead of zeros")
	workers       = flag.Int("workers", 0, "Concurrent grids (0 = sequential)")
	sentinel      = flag.Float64("sentinel", defaultSentinel, "Missing-value marker (default: the _FillValue or missing_value attribute)")
	latName       = flag.String("lat-dim", "", "Latitude dimension name (default: second-to-last axis)")
	lonName       = flag.String("lon-dim", "", "Longitude dimension name (default: last axis)")
	dbPath        = flag.String("db", "", "Optional SQLite run log")
	reportPath    = flag.String("report", "", "Optional HTML report of the first filled grid")
	heatmapPath   = flag.String("heatmap", "", "Optional PNG heatmap of the first filled grid")
	residualsPath = flag.String("residuals", "", "Optional PNG residual curve (single-grid variables only)")
	quiet         = flag.Bool("quiet", false, "Suppress progress and per-grid convergence lines")
)

// defaultSentinel is the conventional ocean-model missing marker, used
// when the variable carries no missing-value attribute.
const defaultSentinel = 1e20

// fillOptions carries everything main resolves from flags and the
// optional params file.
type fillOptions struct {
	In, Out  string
	Variable string

	// LatDim and LonDim are dimension names; empty picks the last two
	// axes.
	LatDim, LonDim string

	// Sentinel overrides the file's missing-value attribute when set.
	Sentinel *float64

	Params gridfill.Params

	DBPath        string
	ReportPath    string
	HeatmapPath   string
	ResidualsPath string
	Quiet         bool
}

func main() {
	flag.Parse()

	if *inFile == "" {
		log.Fatal("input file is required (-in)")
	}

	cfg := config.EmptyFillConfig()
	if *paramsFile != "" {
		loaded, err := config.LoadFillConfig(*paramsFile)
		if err != nil {
			log.Fatalf("could not load %s: %v", *paramsFile, err)
		}
		cfg = loaded
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	opts := fillOptions{
		In:            *inFile,
		Out:           *outFile,
		Variable:      *varName,
		LatDim:        cfg.GetLatDim(),
		LonDim:        cfg.GetLonDim(),
		Params:        cfg.Params(),
		DBPath:        *dbPath,
		ReportPath:    *reportPath,
		HeatmapPath:   *heatmapPath,
		ResidualsPath: *residualsPath,
		Quiet:         *quiet,
	}
	if cfg.Sentinel != nil {
		v := *cfg.Sentinel
		opts.Sentinel = &v
	}

	// Explicit flags win over the params file.
	if set["relax"] {
		opts.Params.Relax = *relax
	}
	if set["tolerance"] {
		opts.Params.Tolerance = *tolerance
	}
	if set["max-iterations"] {
		opts.Params.MaxIterations = *maxIterations
	}
	if set["cyclic"] {
		opts.Params.Cyclic = *cyclic
	}
	if set["init-zonal"] {
		opts.Params.InitZonal = *initZonal
	}
	if set["workers"] {
		opts.Params.Workers = *workers
	}
	if set["sentinel"] {
		v := *sentinel
		opts.Sentinel = &v
	}
	if set["lat-dim"] {
		opts.LatDim = *latName
	}
	if set["lon-dim"] {
		opts.LonDim = *lonName
	}

	if err := runFill(opts); err != nil {
		log.Fatalf("gridfill: %v", err)
	}
}

// runFill is the whole pipeline after flag resolution: read, mask, fill,
// write, then the optional run log and render outputs. Failures of the
// optional outputs are warnings; only reading, filling or writing the
// field itself is fatal. Non-convergence is never an error.
func runFill(opts fillOptions) error {
	c, err := ncio.ReadCube(opts.In, opts.Variable)
	if err != nil {
		return err
	}
	latDim, lonDim, err := c.GridAxes(opts.LatDim, opts.LonDim)
	if err != nil {
		return err
	}

	sv := defaultSentinel
	if opts.Sentinel != nil {
		sv = *opts.Sentinel
	} else if attr, ok := c.Sentinel(); ok {
		sv = attr
	}

	mask := cube.MergeMasks(cube.SentinelMask(c.Data, sv), cube.NaNMask(c.Data))
	missing := 0
	for _, f := range mask {
		if f != 0 {
			missing++
		}
	}

	params := opts.Params
	params.Verbose = !opts.Quiet

	// A per-sweep residual trace is only meaningful for a single grid.
	var residuals []float64
	if opts.ResidualsPath != "" || opts.ReportPath != "" {
		if slices := stackCount(c.Data.Shape, latDim, lonDim); slices == 1 {
			params.Trace = func(_ int, maxResid float64) {
				residuals = append(residuals, maxResid)
			}
		} else if opts.ResidualsPath != "" {
			log.Printf("WARNING: residual curve needs a single-grid variable, %q has %d grids; skipping", c.Name, slices)
		}
	}

	if !opts.Quiet {
		log.Printf("filling %q in %s: %d of %d cells missing (sentinel %g)", c.Name, opts.In, missing, len(mask), sv)
	}

	start := time.Now()
	results, err := cube.Fill(c.Data, mask, latDim, lonDim, params)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	converged := 0
	sweeps := 0
	for _, r := range results {
		if r.Converged(params.Tolerance) {
			converged++
		}
		sweeps += r.Iterations
	}
	if !opts.Quiet {
		log.Printf("filled %d grids in %s: %d/%d converged, %d sweeps total",
			len(results), elapsed.Round(time.Millisecond), converged, len(results), sweeps)
	}

	out := opts.Out
	if out == "" {
		out = strings.TrimSuffix(opts.In, ".nc") + "-filled.nc"
	}
	if err := ncio.WriteCube(out, c); err != nil {
		return err
	}
	if !opts.Quiet {
		log.Printf("wrote %s", out)
	}

	if opts.DBPath != "" {
		recordRun(opts, c, latDim, lonDim, params, results, elapsed)
	}
	if opts.HeatmapPath != "" || opts.ReportPath != "" || opts.ResidualsPath != "" {
		renderOutputs(opts, c, mask, latDim, lonDim, params, results, residuals)
	}
	return nil
}

// stackCount is the number of (lat, lon) grids stacked along the other
// axes.
func stackCount(shape []int, latDim, lonDim int) int {
	n := 1
	for d, s := range shape {
		if d != latDim && d != lonDim {
			n *= s
		}
	}
	return n
}

// recordRun stores the run and its per-grid results in the SQLite log.
func recordRun(opts fillOptions, c *ncio.Cube, latDim, lonDim int, params gridfill.Params, results []gridfill.Result, elapsed time.Duration) {
	store, err := runlog.Open(opts.DBPath)
	if err != nil {
		log.Printf("WARNING: run log unavailable: %v", err)
		return
	}
	defer store.Close()

	run := &runlog.Run{
		Source:        opts.In,
		Variable:      c.Name,
		NLat:          c.Data.Shape[latDim],
		NLon:          c.Data.Shape[lonDim],
		ParamsJSON:    runlog.EncodeParams(params),
		ElapsedMillis: elapsed.Milliseconds(),
	}
	run.Summarise(results, params.Tolerance)
	if err := store.InsertRun(run); err != nil {
		log.Printf("WARNING: could not record run: %v", err)
		return
	}
	if err := store.InsertGridRecords(runlog.RecordsFromResults(run.RunID, results, params.Tolerance)); err != nil {
		log.Printf("WARNING: could not record per-grid results: %v", err)
		return
	}
	if !opts.Quiet {
		log.Printf("recorded run %s in %s", run.RunID, opts.DBPath)
	}
}

// renderOutputs writes whichever of the heatmap, residual curve and HTML
// report were requested, all derived from the first grid of the filled
// stack.
func renderOutputs(opts fillOptions, c *ncio.Cube, mask []uint8, latDim, lonDim int, params gridfill.Params, results []gridfill.Result, residuals []float64) {
	grids, masks, err := cube.Gather(c.Data, mask, latDim, lonDim)
	if err != nil {
		log.Printf("WARNING: could not gather grids for rendering: %v", err)
		return
	}
	if len(grids) == 0 {
		return
	}

	if opts.HeatmapPath != "" {
		title := fmt.Sprintf("%s (filled)", c.Name)
		if err := render.Heatmap(grids[0], title, opts.HeatmapPath); err != nil {
			log.Printf("WARNING: heatmap failed: %v", err)
		} else if !opts.Quiet {
			log.Printf("wrote %s", opts.HeatmapPath)
		}
	}

	if opts.ResidualsPath != "" && len(residuals) > 0 {
		title := fmt.Sprintf("%s convergence", c.Name)
		if err := render.ResidualCurve(residuals, params.Tolerance, title, opts.ResidualsPath); err != nil {
			log.Printf("WARNING: residual curve failed: %v", err)
		} else if !opts.Quiet {
			log.Printf("wrote %s", opts.ResidualsPath)
		}
	}

	if opts.ReportPath != "" {
		f, err := os.Create(opts.ReportPath)
		if err != nil {
			log.Printf("WARNING: report failed: %v", err)
			return
		}
		defer f.Close()
		data := render.ReportData{
			Title:     fmt.Sprintf("gridfill: %s", c.Name),
			Source:    opts.In,
			Variable:  c.Name,
			Grid:      grids[0],
			Mask:      masks[0],
			Residuals: residuals,
			Tolerance: params.Tolerance,
			Results:   results,
		}
		if err := render.WriteReport(f, data); err != nil {
			log.Printf("WARNING: report failed: %v", err)
		} else if !opts.Quiet {
			log.Printf("wrote %s", opts.ReportPath)
		}
	}
}
