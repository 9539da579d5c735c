package gridfill

import (
	"errors"
	"fmt"
)

// ErrBadShape is returned when a grid or mask cannot be solved as given:
// a dimension below the 3-point stencil minimum, a grid/mask shape
// mismatch, a flat slice whose length disagrees with the declared shape,
// or a batch whose members do not share one shape. The returned error
// wraps ErrBadShape with the offending dimensions; match with errors.Is.
var ErrBadShape = errors.New("gridfill: invalid shape")

// validate checks a grid/mask pair without mutating either.
func validate(g *Grid, m *Mask) error {
	if g == nil || m == nil {
		return fmt.Errorf("%w: nil grid or mask", ErrBadShape)
	}
	if g.NLat < 3 || g.NLon < 3 {
		return fmt.Errorf("%w: grid is %dx%d, need at least 3 points on each axis", ErrBadShape, g.NLat, g.NLon)
	}
	if g.NLat != m.NLat || g.NLon != m.NLon {
		return fmt.Errorf("%w: grid is %dx%d but mask is %dx%d", ErrBadShape, g.NLat, g.NLon, m.NLat, m.NLon)
	}
	if len(g.Values) != g.NLat*g.NLon {
		return fmt.Errorf("%w: grid declares %dx%d but holds %d values", ErrBadShape, g.NLat, g.NLon, len(g.Values))
	}
	if len(m.Flags) != m.NLat*m.NLon {
		return fmt.Errorf("%w: mask declares %dx%d but holds %d flags", ErrBadShape, m.NLat, m.NLon, len(m.Flags))
	}
	return nil
}
