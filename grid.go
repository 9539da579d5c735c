package gridfill

import "math"

// Grid is a two dimensional scalar field stored as a flat row-major slice:
// element (i, j) lives at Values[i*NLon+j]. The solver mutates Values in
// place; the caller owns the backing slice before and after a call.
type Grid struct {
	NLat   int
	NLon   int
	Values []float64
}

// NewGrid allocates a zero-filled grid with the given dimensions.
func NewGrid(nlat, nlon int) *Grid {
	return &Grid{NLat: nlat, NLon: nlon, Values: make([]float64, nlat*nlon)}
}

// Idx converts (lat, lon) indices to the flat offset into Values.
func (g *Grid) Idx(i, j int) int { return i*g.NLon + j }

// At returns the value at (i, j).
func (g *Grid) At(i, j int) float64 { return g.Values[i*g.NLon+j] }

// Set stores v at (i, j).
func (g *Grid) Set(i, j int, v float64) { g.Values[i*g.NLon+j] = v }

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	c := &Grid{NLat: g.NLat, NLon: g.NLon, Values: make([]float64, len(g.Values))}
	copy(c.Values, g.Values)
	return c
}

// Mask marks which cells of a companion Grid are missing. A nonzero flag
// means the cell will be filled; cells with a zero flag are never written
// by the solver. The solver only ever reads a mask.
type Mask struct {
	NLat  int
	NLon  int
	Flags []uint8
}

// NewMask allocates an all-valid (nothing missing) mask.
func NewMask(nlat, nlon int) *Mask {
	return &Mask{NLat: nlat, NLon: nlon, Flags: make([]uint8, nlat*nlon)}
}

// Idx converts (lat, lon) indices to the flat offset into Flags.
func (m *Mask) Idx(i, j int) int { return i*m.NLon + j }

// SetMissing flags the cell at (i, j) as missing.
func (m *Mask) SetMissing(i, j int) { m.Flags[i*m.NLon+j] = 1 }

// Missing reports whether the cell at (i, j) is flagged missing.
func (m *Mask) Missing(i, j int) bool { return m.Flags[i*m.NLon+j] != 0 }

// MissingCount returns the number of flagged cells.
func (m *Mask) MissingCount() int {
	n := 0
	for _, f := range m.Flags {
		if f != 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	c := &Mask{NLat: m.NLat, NLon: m.NLon, Flags: make([]uint8, len(m.Flags))}
	copy(c.Flags, m.Flags)
	return c
}

// MaskSentinel builds a mask flagging every cell of g that exactly equals
// sentinel. Gridded geoscience data conventionally marks missing cells
// with 1e20 (or the float64 image of its float32 rounding).
func MaskSentinel(g *Grid, sentinel float64) *Mask {
	m := NewMask(g.NLat, g.NLon)
	for k, v := range g.Values {
		if v == sentinel {
			m.Flags[k] = 1
		}
	}
	return m
}

// MaskNaN builds a mask flagging every NaN cell of g.
func MaskNaN(g *Grid) *Mask {
	m := NewMask(g.NLat, g.NLon)
	for k, v := range g.Values {
		if math.IsNaN(v) {
			m.Flags[k] = 1
		}
	}
	return m
}
