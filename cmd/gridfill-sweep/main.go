// Command gridfill-sweep explores relaxation and tolerance combinations
// over one NetCDF variable. The variable is loaded and gathered once;
// every combination relaxes its own copies, so combinations are
// independent and the input file is never rewritten. Results go to CSV
// (summary per combination plus optional per-grid rows) and optionally
// to the SQLite run log and an HTML chart.
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"strings"

	"github.com/clearsky-data/gridfill"
	"github.com/clearsky-data/gridfill/cube"
	"github.com/clearsky-data/gridfill/internal/ncio"
	"github.com/clearsky-data/gridfill/internal/runlog"
	"github.com/clearsky-data/gridfill/internal/sweep"
)

var (
	inFile        = flag.String("in", "", "Input NetCDF file (required)")
	varName       = flag.String("var", "", "Variable to sweep (default: first variable with at least two dimensions)")
	relaxSpec     = flag.String("relax", "", "Relaxation values: comma list or min:max:step range (default 0.6)")
	toleranceSpec = flag.String("tolerance", "", "Tolerance values: comma list or min:max:step range (default 1e-4)")
	maxIterations = flag.Int("max-iterations", gridfill.DefaultMaxIterations, "Sweep cap per grid")
	cyclic        = flag.Bool("cyclic", false, "Wrap the longitude axis instead of reflecting it")
	initZonal     = flag.Bool("init-zonal", false, "Seed missing cells with zonal means instead of zeros")
	workers       = flag.Int("workers", 0, "Concurrent grids per combination (0 = sequential)")
	sentinel      = flag.Float64("sentinel", defaultSentinel, "Missing-value marker (default: the _FillValue or missing_value attribute)")
	latName       = flag.String("lat-dim", "", "Latitude dimension name (default: second-to-last axis)")
	lonName       = flag.String("lon-dim", "", "Longitude dimension name (default: last axis)")
	outFile       = flag.String("out", "", "Summary CSV file (default stdout)")
	rawFile       = flag.String("raw", "", "Per-grid CSV file (default <out>-raw.csv when -out is set)")
	dbPath        = flag.String("db", "", "Optional SQLite run log, one run per combination")
	chartPath     = flag.String("chart", "", "Optional HTML chart of the sweep")
)

const defaultSentinel = 1e20

func main() {
	flag.Parse()

	if *inFile == "" {
		log.Fatal("input file is required (-in)")
	}

	combos, err := sweep.Combos(*relaxSpec, *toleranceSpec)
	if err != nil {
		log.Fatalf("invalid sweep specification: %v", err)
	}

	c, err := ncio.ReadCube(*inFile, *varName)
	if err != nil {
		log.Fatalf("could not read input: %v", err)
	}
	latDim, lonDim, err := c.GridAxes(*latName, *lonName)
	if err != nil {
		log.Fatalf("could not resolve grid axes: %v", err)
	}

	sv := defaultSentinel
	if attr, ok := c.Sentinel(); ok {
		sv = attr
	}
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["sentinel"] {
		sv = *sentinel
	}

	mask := cube.MergeMasks(cube.SentinelMask(c.Data, sv), cube.NaNMask(c.Data))
	grids, masks, err := cube.Gather(c.Data, mask, latDim, lonDim)
	if err != nil {
		log.Fatalf("could not gather grids: %v", err)
	}
	log.Printf("sweeping %d combinations over %d grids of %q", len(combos), len(grids), c.Name)

	base := gridfill.Params{
		MaxIterations: *maxIterations,
		Cyclic:        *cyclic,
		InitZonal:     *initZonal,
		Workers:       *workers,
	}
	outcomes, err := sweep.Run(grids, masks, combos, base)
	if err != nil {
		log.Fatalf("sweep failed: %v", err)
	}

	summaryW, rawW, closeOutputs, err := openOutputs(*outFile, *rawFile)
	if err != nil {
		log.Fatalf("could not create output: %v", err)
	}
	defer closeOutputs()

	w := sweep.NewCSVWriter(summaryW, rawW)
	w.WriteHeaders()
	for _, o := range outcomes {
		w.WriteOutcome(o)
	}
	w.Flush()

	if *dbPath != "" {
		recordOutcomes(*dbPath, c, latDim, lonDim, base, outcomes)
	}

	if *chartPath != "" {
		f, err := os.Create(*chartPath)
		if err != nil {
			log.Printf("WARNING: chart failed: %v", err)
		} else {
			if err := sweep.WriteChart(f, outcomes); err != nil {
				log.Printf("WARNING: chart failed: %v", err)
			}
			f.Close()
		}
	}

	log.Printf("sweep complete: %d combinations", len(outcomes))
	if *outFile != "" {
		log.Printf("summary: %s", *outFile)
	}
}

// openOutputs resolves the CSV destinations. The summary goes to stdout
// unless a file is named; the per-grid rows go to an explicit file, to
// <out>-raw.csv next to a named summary, or nowhere.
func openOutputs(out, raw string) (io.Writer, io.Writer, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	var summaryW io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return nil, nil, closeAll, err
		}
		files = append(files, f)
		summaryW = f
	}

	var rawW io.Writer = io.Discard
	if raw == "" && out != "" {
		raw = strings.TrimSuffix(out, ".csv") + "-raw.csv"
	}
	if raw != "" {
		f, err := os.Create(raw)
		if err != nil {
			return nil, nil, closeAll, err
		}
		files = append(files, f)
		rawW = f
	}
	return summaryW, rawW, closeAll, nil
}

// recordOutcomes stores one run per combination, all sharing the sweep's
// source file and grid shape.
func recordOutcomes(path string, c *ncio.Cube, latDim, lonDim int, base gridfill.Params, outcomes []sweep.Outcome) {
	store, err := runlog.Open(path)
	if err != nil {
		log.Printf("WARNING: run log unavailable: %v", err)
		return
	}
	defer store.Close()

	recorded := 0
	for _, o := range outcomes {
		p := base
		p.Relax = o.Relax
		p.Tolerance = o.Tolerance
		run := &runlog.Run{
			Source:        *inFile,
			Variable:      c.Name,
			NLat:          c.Data.Shape[latDim],
			NLon:          c.Data.Shape[lonDim],
			ParamsJSON:    runlog.EncodeParams(p),
			ElapsedMillis: o.ElapsedMillis,
		}
		run.Summarise(o.Results, o.Tolerance)
		if err := store.InsertRun(run); err != nil {
			log.Printf("WARNING: could not record combination relax=%g tolerance=%g: %v", o.Relax, o.Tolerance, err)
			continue
		}
		if err := store.InsertGridRecords(runlog.RecordsFromResults(run.RunID, o.Results, o.Tolerance)); err != nil {
			log.Printf("WARNING: could not record per-grid results: %v", err)
			continue
		}
		recorded++
	}
	log.Printf("recorded %d runs in %s", recorded, path)
}
