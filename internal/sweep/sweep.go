// Package sweep evaluates solver parameter combinations against one input
// stack and reports per-combination convergence statistics. Parameter specs
// accept either comma-separated values or "min:max:step" ranges.
package sweep

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/clearsky-data/gridfill"
	"github.com/clearsky-data/gridfill/internal/monitoring"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// maxValues caps how many values one range spec may generate.
const maxValues = 10000

// Combo is one parameter combination to evaluate.
type Combo struct {
	Relax     float64
	Tolerance float64
}

// Outcome aggregates solver results for one combination across the stack.
type Outcome struct {
	Combo
	Grids             int
	ConvergedFraction float64
	MeanIterations    float64
	StddevIterations  float64
	WorstResidual     float64
	ElapsedMillis     int64
	Results           []gridfill.Result
}

// ParseParamList parses either a comma-separated list of floats or a
// "min:max:step" range specification. Range values are rounded to 1e-6;
// pass an explicit list for finer spacing. Empty input yields nil, nil.
func ParseParamList(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	if strings.Contains(s, ":") {
		min, max, step, err := parseRangeSpec(s)
		if err != nil {
			return nil, err
		}
		return generateRange(min, max, step)
	}
	return parseCSVFloats(s)
}

func parseRangeSpec(s string) (min, max, step float64, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}

	min, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid min value %q: %w", parts[0], err)
	}
	max, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid max value %q: %w", parts[1], err)
	}
	step, err = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid step value %q: %w", parts[2], err)
	}

	if step <= 0 {
		return 0, 0, 0, fmt.Errorf("step must be positive, got %g", step)
	}
	if min > max {
		return 0, 0, 0, fmt.Errorf("empty range %g:%g", min, max)
	}
	return min, max, step, nil
}

func generateRange(min, max, step float64) ([]float64, error) {
	count := int((max-min)/step) + 1
	if count < 0 || count > maxValues {
		return nil, fmt.Errorf("range %g:%g:%g would produce more than %d values", min, max, step, maxValues)
	}

	var out []float64
	// The step/1000 slack keeps the endpoint from falling out of the range
	// through float accumulation.
	for v := min; v <= max+step/1000; v += step {
		rounded := math.Round(v*1e6) / 1e6
		if rounded <= max {
			out = append(out, rounded)
		}
	}
	return out, nil
}

func parseCSVFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Combos expands relax and tolerance specs into their cartesian product,
// relax-major. An empty spec contributes the solver default.
func Combos(relaxSpec, tolSpec string) ([]Combo, error) {
	relaxes, err := ParseParamList(relaxSpec)
	if err != nil {
		return nil, fmt.Errorf("relax: %w", err)
	}
	if len(relaxes) == 0 {
		relaxes = []float64{gridfill.DefaultRelax}
	}

	tols, err := ParseParamList(tolSpec)
	if err != nil {
		return nil, fmt.Errorf("tolerance: %w", err)
	}
	if len(tols) == 0 {
		tols = []float64{gridfill.DefaultTolerance}
	}

	combos := make([]Combo, 0, len(relaxes)*len(tols))
	for _, r := range relaxes {
		for _, tol := range tols {
			combos = append(combos, Combo{Relax: r, Tolerance: tol})
		}
	}
	return combos, nil
}

// Run evaluates each combination against clones of the input grids, leaving
// the originals untouched. base supplies every parameter the combination
// does not override.
func Run(grids []*gridfill.Grid, masks []*gridfill.Mask, combos []Combo, base gridfill.Params) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(combos))
	for n, combo := range combos {
		params := base
		params.Relax = combo.Relax
		params.Tolerance = combo.Tolerance

		clones := make([]*gridfill.Grid, len(grids))
		for k, g := range grids {
			clones[k] = g.Clone()
		}

		start := time.Now()
		results, err := gridfill.SolveBatch(clones, masks, params)
		if err != nil {
			return nil, fmt.Errorf("combo relax=%g tolerance=%g: %w", combo.Relax, combo.Tolerance, err)
		}

		o := summarise(combo, results)
		o.ElapsedMillis = time.Since(start).Milliseconds()
		outcomes = append(outcomes, o)

		monitoring.Logf("[sweep] %d/%d relax=%.3f tolerance=%.1e converged=%.0f%% mean_iterations=%.1f worst_residual=%.3e",
			n+1, len(combos), combo.Relax, combo.Tolerance,
			o.ConvergedFraction*100, o.MeanIterations, o.WorstResidual)
	}
	return outcomes, nil
}

func summarise(combo Combo, results []gridfill.Result) Outcome {
	o := Outcome{Combo: combo, Grids: len(results), Results: results}
	if len(results) == 0 {
		return o
	}

	iters := make([]float64, len(results))
	residuals := make([]float64, len(results))
	converged := 0
	for k, res := range results {
		iters[k] = float64(res.Iterations)
		residuals[k] = res.MaxResidual
		if res.Converged(combo.Tolerance) {
			converged++
		}
	}

	o.ConvergedFraction = float64(converged) / float64(len(results))
	o.MeanIterations = stat.Mean(iters, nil)
	if len(iters) > 1 {
		o.StddevIterations = stat.StdDev(iters, nil)
	}
	o.WorstResidual = floats.Max(residuals)
	return o
}
