package gridfill

import "math"

// Reference solver parameters. Relaxation constants between 0.45 and 0.6
// are the usual working range for this scheme.
const (
	DefaultRelax         = 0.6
	DefaultTolerance     = 1e-4
	DefaultMaxIterations = 100
)

// Params controls one fill. The zero value is usable: nonpositive numeric
// fields fall back to the defaults above.
type Params struct {
	// Relax is the over-relaxation constant applied to each Laplacian
	// residual.
	Relax float64

	// Tolerance is the convergence threshold on the largest absolute
	// residual applied during one full sweep.
	Tolerance float64

	// MaxIterations caps the number of sweeps.
	MaxIterations int

	// Cyclic wraps the longitude (second) axis instead of reflecting it.
	// The latitude axis always reflects.
	Cyclic bool

	// InitZonal seeds missing cells with their row's mean of valid values
	// instead of zero.
	InitZonal bool

	// Workers bounds how many grids SolveBatch fills concurrently. Zero or
	// negative means sequential. Sweeps within one grid are always
	// sequential, so Workers never changes any output value.
	Workers int

	// Verbose makes SolveBatch log one convergence line per grid through
	// the monitoring package.
	Verbose bool

	// Trace, when non-nil, is called by Solve after every sweep with the
	// 1-based sweep number and that sweep's max residual. SolveBatch
	// honours it only for single-grid stacks; interleaved traces from
	// concurrent grids would be useless.
	Trace func(iteration int, maxResidual float64)
}

// DefaultParams returns the reference parameterisation: relax 0.6,
// tolerance 1e-4, at most 100 sweeps, non-cyclic, zero-seeded.
func DefaultParams() Params {
	return Params{Relax: DefaultRelax, Tolerance: DefaultTolerance, MaxIterations: DefaultMaxIterations}
}

func (p Params) normalise() Params {
	if p.Relax <= 0 {
		p.Relax = DefaultRelax
	}
	if p.Tolerance <= 0 {
		p.Tolerance = DefaultTolerance
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = DefaultMaxIterations
	}
	if p.Workers < 0 {
		p.Workers = 0
	}
	return p
}

// Result reports how one grid's relaxation went.
type Result struct {
	// Iterations is the number of sweeps performed. Zero means the mask
	// had no missing cells.
	Iterations int

	// MaxResidual is the largest absolute update applied during the final
	// sweep.
	MaxResidual float64
}

// Converged reports whether the fill ended at or below tolerance. Hitting
// the iteration cap with a residual above tolerance is the only way a
// fill ends non-converged; the grid still holds the best-effort values of
// the last sweep.
func (r Result) Converged(tolerance float64) bool {
	return r.MaxResidual <= tolerance
}

// Solve fills the masked cells of g in place and reports the sweeps used
// and the final sweep's max residual. Cells with a zero mask flag are
// never written. Validation runs before any mutation; if the mask flags
// nothing the grid is returned untouched with a zero Result.
// Non-convergence is reported through the Result, never as an error.
func Solve(g *Grid, m *Mask, p Params) (Result, error) {
	if err := validate(g, m); err != nil {
		return Result{}, err
	}
	p = p.normalise()
	if m.MissingCount() == 0 {
		return Result{}, nil
	}
	seedMissing(g, m, p.InitZonal)
	var res Result
	for res.Iterations < p.MaxIterations {
		res.MaxResidual = sweep(g, m, p.Relax, p.Cyclic)
		res.Iterations++
		if p.Trace != nil {
			p.Trace(res.Iterations, res.MaxResidual)
		}
		if res.MaxResidual <= p.Tolerance {
			break
		}
	}
	return res, nil
}

// seedMissing writes the initial guess into every masked cell: the row's
// mean over valid cells when zonal is set (zero for a row with no valid
// cells), otherwise zero. Runs exactly once, before the first sweep.
func seedMissing(g *Grid, m *Mask, zonal bool) {
	for i := 0; i < g.NLat; i++ {
		row := i * g.NLon
		seed := 0.0
		if zonal {
			sum := 0.0
			n := 0
			for j := 0; j < g.NLon; j++ {
				if m.Flags[row+j] == 0 {
					sum += g.Values[row+j]
					n++
				}
			}
			if n > 0 {
				seed = sum / float64(n)
			}
		}
		for j := 0; j < g.NLon; j++ {
			if m.Flags[row+j] != 0 {
				g.Values[row+j] = seed
			}
		}
	}
}

// sweep performs one Gauss-Seidel pass in row-major order and returns the
// largest absolute residual it applied. Updates land in the grid
// immediately, so cells later in the pass read already-relaxed values for
// neighbours visited earlier in the same pass. Double buffering would
// change the convergence behaviour and must not be introduced.
//
// The latitude axis reflects at both edges: row 0 reuses row 1 as its
// neighbour above, row nlat-1 reuses row nlat-2 below. The longitude axis
// reflects the same way unless cyclic, in which case columns 0 and nlon-1
// are adjacent.
func sweep(g *Grid, m *Mask, relax float64, cyclic bool) float64 {
	nlat, nlon := g.NLat, g.NLon
	maxResid := 0.0
	for i := 0; i < nlat; i++ {
		up := i - 1
		down := i + 1
		if i == 0 {
			up = 1
		}
		if i == nlat-1 {
			down = nlat - 2
		}
		row := i * nlon
		upRow := up * nlon
		downRow := down * nlon
		for j := 0; j < nlon; j++ {
			if m.Flags[row+j] == 0 {
				continue
			}
			left := j - 1
			right := j + 1
			if j == 0 {
				if cyclic {
					left = nlon - 1
				} else {
					left = 1
				}
			}
			if j == nlon-1 {
				if cyclic {
					right = 0
				} else {
					right = nlon - 2
				}
			}
			sum := g.Values[upRow+j] + g.Values[downRow+j] + g.Values[row+left] + g.Values[row+right]
			resid := relax * (0.25*sum - g.Values[row+j])
			g.Values[row+j] += resid
			if r := math.Abs(resid); r > maxResid {
				maxResid = r
			}
		}
	}
	return maxResid
}
