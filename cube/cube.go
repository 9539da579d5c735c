// Package cube applies the gridfill relaxation to N-dimensional data
// arrays. Callers pick which two axes form the (lat, lon) grid; every
// combination of the remaining axes is an independent 2-D slice that is
// gathered, filled and scattered back in place. Arrays use the
// sparse.DenseArray container common to gridded geoscience tooling.
package cube

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"

	"github.com/clearsky-data/gridfill"
)

// SentinelMask returns a flat mask aligned with a.Elements flagging every
// element exactly equal to sentinel.
func SentinelMask(a *sparse.DenseArray, sentinel float64) []uint8 {
	flags := make([]uint8, len(a.Elements))
	for k, v := range a.Elements {
		if v == sentinel {
			flags[k] = 1
		}
	}
	return flags
}

// NaNMask returns a flat mask aligned with a.Elements flagging every NaN
// element.
func NaNMask(a *sparse.DenseArray) []uint8 {
	flags := make([]uint8, len(a.Elements))
	for k, v := range a.Elements {
		if math.IsNaN(v) {
			flags[k] = 1
		}
	}
	return flags
}

// MergeMasks ORs any number of flat masks of equal length into a new one.
func MergeMasks(masks ...[]uint8) []uint8 {
	if len(masks) == 0 {
		return nil
	}
	out := make([]uint8, len(masks[0]))
	for _, m := range masks {
		for k, f := range m {
			if f != 0 {
				out[k] = 1
			}
		}
	}
	return out
}

// Fill relaxes every (latDim, lonDim) slice of a in place. mask is flat
// and aligned with a.Elements, nonzero meaning missing. Slices are
// enumerated in row-major order over the remaining axes; results[s]
// belongs to the s-th slice in that order. Params apply to every slice;
// Workers spreads slices across goroutines, Verbose logs one line per
// slice.
func Fill(a *sparse.DenseArray, mask []uint8, latDim, lonDim int, p gridfill.Params) ([]gridfill.Result, error) {
	grids, masks, bases, err := gather(a, mask, latDim, lonDim)
	if err != nil {
		return nil, err
	}
	results, err := gridfill.SolveBatch(grids, masks, p)
	if err != nil {
		return nil, err
	}
	scatter(a, grids, bases, latDim, lonDim)
	return results, nil
}

// Gather copies every (latDim, lonDim) slice of a out into independent
// grids paired with their mask flags, in the slice order Fill uses. The
// copies share no storage with a, so callers may relax them repeatedly
// (a parameter sweep, say) without disturbing the source array.
func Gather(a *sparse.DenseArray, mask []uint8, latDim, lonDim int) ([]*gridfill.Grid, []*gridfill.Mask, error) {
	grids, masks, _, err := gather(a, mask, latDim, lonDim)
	return grids, masks, err
}

// gather validates the axis selection and copies the slice stack out,
// remembering each slice's base offset for the scatter back.
func gather(a *sparse.DenseArray, mask []uint8, latDim, lonDim int) ([]*gridfill.Grid, []*gridfill.Mask, []int, error) {
	if a == nil {
		return nil, nil, nil, fmt.Errorf("%w: nil array", gridfill.ErrBadShape)
	}
	ndim := len(a.Shape)
	if ndim < 2 {
		return nil, nil, nil, fmt.Errorf("%w: array has %d dimensions, need at least 2", gridfill.ErrBadShape, ndim)
	}
	if latDim < 0 || latDim >= ndim || lonDim < 0 || lonDim >= ndim {
		return nil, nil, nil, fmt.Errorf("%w: grid axes (%d,%d) out of range for %d dimensions", gridfill.ErrBadShape, latDim, lonDim, ndim)
	}
	if latDim == lonDim {
		return nil, nil, nil, fmt.Errorf("%w: grid axes must differ, both are %d", gridfill.ErrBadShape, latDim)
	}
	if len(mask) != len(a.Elements) {
		return nil, nil, nil, fmt.Errorf("%w: mask has %d flags for %d elements", gridfill.ErrBadShape, len(mask), len(a.Elements))
	}

	nlat := a.Shape[latDim]
	nlon := a.Shape[lonDim]
	strides := rowMajorStrides(a.Shape)

	// Axes that index the stack of slices, in ascending order.
	var stackDims []int
	for d := 0; d < ndim; d++ {
		if d != latDim && d != lonDim {
			stackDims = append(stackDims, d)
		}
	}
	n := 1
	for _, d := range stackDims {
		n *= a.Shape[d]
	}

	grids := make([]*gridfill.Grid, n)
	masks := make([]*gridfill.Mask, n)
	bases := make([]int, n)
	coord := make([]int, len(stackDims))
	for s := 0; s < n; s++ {
		base := 0
		for c, d := range stackDims {
			base += coord[c] * strides[d]
		}
		bases[s] = base

		g := gridfill.NewGrid(nlat, nlon)
		m := gridfill.NewMask(nlat, nlon)
		for i := 0; i < nlat; i++ {
			row := base + i*strides[latDim]
			for j := 0; j < nlon; j++ {
				off := row + j*strides[lonDim]
				g.Values[i*nlon+j] = a.Elements[off]
				m.Flags[i*nlon+j] = mask[off]
			}
		}
		grids[s] = g
		masks[s] = m

		// Advance the odometer over the stack axes.
		for c := len(coord) - 1; c >= 0; c-- {
			coord[c]++
			if coord[c] < a.Shape[stackDims[c]] {
				break
			}
			coord[c] = 0
		}
	}
	return grids, masks, bases, nil
}

// scatter writes the relaxed grids back into their slice positions.
func scatter(a *sparse.DenseArray, grids []*gridfill.Grid, bases []int, latDim, lonDim int) {
	nlat := a.Shape[latDim]
	nlon := a.Shape[lonDim]
	strides := rowMajorStrides(a.Shape)
	for s, g := range grids {
		base := bases[s]
		for i := 0; i < nlat; i++ {
			row := base + i*strides[latDim]
			for j := 0; j < nlon; j++ {
				a.Elements[row+j*strides[lonDim]] = g.Values[i*nlon+j]
			}
		}
	}
}

// FillStack fills the common layouts without explicit axis numbers: a 2-D
// array is one (lat, lon) grid, a 3-D array is a stack of (lat, lon)
// grids along its first axis. Other ranks need Fill with explicit axes.
func FillStack(a *sparse.DenseArray, mask []uint8, p gridfill.Params) ([]gridfill.Result, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil array", gridfill.ErrBadShape)
	}
	switch len(a.Shape) {
	case 2:
		return Fill(a, mask, 0, 1, p)
	case 3:
		return Fill(a, mask, 1, 2, p)
	default:
		return nil, fmt.Errorf("%w: FillStack handles 2-D or 3-D arrays, got %d dimensions", gridfill.ErrBadShape, len(a.Shape))
	}
}

// rowMajorStrides returns the element stride of each axis for a row-major
// layout.
func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1
	for d := len(shape) - 1; d >= 0; d-- {
		strides[d] = s
		s *= shape[d]
	}
	return strides
}
