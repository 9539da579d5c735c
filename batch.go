package gridfill

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/clearsky-data/gridfill/internal/monitoring"
)

// SolveBatch fills every grid of a stack in place with shared parameters.
// grids[k] is filled against masks[k]; results[k] reports its convergence.
//
// The whole stack is validated first: equal slice lengths, every pair
// well formed, every grid sharing the first grid's shape. On a validation
// error no grid has been touched. Grids are otherwise independent; a grid
// that stops at the iteration cap is reported through its Result and
// never aborts the rest of the batch.
//
// With p.Workers > 1 grids are filled concurrently, at most Workers at a
// time. The arithmetic within each grid is unchanged, so the results are
// identical to a sequential run. p.Trace is honoured only for a
// single-grid stack; with more grids the interleaved callbacks would be
// meaningless, so it is dropped.
func SolveBatch(grids []*Grid, masks []*Mask, p Params) ([]Result, error) {
	if len(grids) != len(masks) {
		return nil, fmt.Errorf("%w: %d grids but %d masks", ErrBadShape, len(grids), len(masks))
	}
	if len(grids) == 0 {
		return nil, nil
	}
	nlat, nlon := grids[0].NLat, grids[0].NLon
	for k, g := range grids {
		if err := validate(g, masks[k]); err != nil {
			return nil, fmt.Errorf("grid %d: %w", k, err)
		}
		if g.NLat != nlat || g.NLon != nlon {
			return nil, fmt.Errorf("%w: grid %d is %dx%d, stack shape is %dx%d", ErrBadShape, k, g.NLat, g.NLon, nlat, nlon)
		}
	}

	p = p.normalise()
	if len(grids) > 1 {
		p.Trace = nil // per-sweep traces from concurrent grids would interleave
	}

	results := make([]Result, len(grids))
	solveOne := func(k int) error {
		r, err := Solve(grids[k], masks[k], p)
		if err != nil {
			return fmt.Errorf("grid %d: %w", k, err)
		}
		results[k] = r
		return nil
	}

	if p.Workers > 1 {
		var eg errgroup.Group
		eg.SetLimit(p.Workers)
		for k := range grids {
			eg.Go(func() error { return solveOne(k) })
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	} else {
		for k := range grids {
			if err := solveOne(k); err != nil {
				return nil, err
			}
		}
	}

	if p.Verbose {
		for k, r := range results {
			state := "converged"
			if !r.Converged(p.Tolerance) {
				state = "did not converge"
			}
			monitoring.Logf("[gridfill] grid %d relaxation %s (%d iterations, max residual %.3e)", k, state, r.Iterations, r.MaxResidual)
		}
	}
	return results, nil
}
