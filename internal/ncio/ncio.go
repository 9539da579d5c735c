// Package ncio reads and writes gridded variables in NetCDF classic
// files. It converts between the on-disk representation (float32 or
// float64, sentinel-marked missing cells, named dimensions) and the
// in-memory sparse.DenseArray the fill operates on.
package ncio

import (
	"fmt"
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// retainedAttrs are the per-variable attributes carried through a
// read/fill/write round trip.
var retainedAttrs = []string{
	"_FillValue", "missing_value", "units", "long_name", "standard_name", "description",
}

// Cube is one gridded variable: its data, dimension names and the
// attributes worth carrying through a fill.
type Cube struct {
	Name  string
	Dims  []string
	Data  *sparse.DenseArray
	Attrs map[string]interface{}

	// Float32 records that the source variable stored single precision;
	// writing converts back so a filled file keeps its element type.
	Float32 bool
}

// Sentinel returns the missing-value marker recorded in the variable's
// attributes (_FillValue, then missing_value), if any. For float32
// sources the value is the float64 image of the stored float32, matching
// the converted data.
func (c *Cube) Sentinel() (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		if v, ok := numericAttr(c.Attrs[name]); ok {
			return v, true
		}
	}
	return 0, false
}

// GridAxes resolves the cube's grid axes. Empty names select the
// conventional layout, the last two axes as (lat, lon); anything else is
// looked up in Dims by name.
func (c *Cube) GridAxes(latName, lonName string) (latDim, lonDim int, err error) {
	ndim := len(c.Dims)
	if ndim < 2 {
		return 0, 0, fmt.Errorf("ncio: variable %q has %d dimensions, need at least 2", c.Name, ndim)
	}
	latDim, lonDim = ndim-2, ndim-1
	if latName != "" {
		if latDim = dimIndex(c.Dims, latName); latDim < 0 {
			return 0, 0, fmt.Errorf("ncio: variable %q has no dimension %q (have %v)", c.Name, latName, c.Dims)
		}
	}
	if lonName != "" {
		if lonDim = dimIndex(c.Dims, lonName); lonDim < 0 {
			return 0, 0, fmt.Errorf("ncio: variable %q has no dimension %q (have %v)", c.Name, lonName, c.Dims)
		}
	}
	return latDim, lonDim, nil
}

func dimIndex(dims []string, name string) int {
	for d, n := range dims {
		if n == name {
			return d
		}
	}
	return -1
}

// ReadCube loads one variable from a NetCDF classic file. An empty
// variable name selects the first variable with at least two dimensions.
func ReadCube(path, variable string) (*Cube, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ncio: %w", err)
	}
	defer fh.Close()

	f, err := cdf.Open(fh)
	if err != nil {
		return nil, fmt.Errorf("ncio: opening %s: %w", path, err)
	}

	if variable == "" {
		variable, err = defaultVariable(f)
		if err != nil {
			return nil, err
		}
	} else if !hasVariable(f, variable) {
		return nil, fmt.Errorf("ncio: %s has no variable %q (have %v)", path, variable, f.Header.Variables())
	}

	lengths := f.Header.Lengths(variable)
	n := 1
	for _, l := range lengths {
		if l == 0 {
			return nil, fmt.Errorf("ncio: variable %q uses a record dimension, which is not supported", variable)
		}
		n *= l
	}

	r := f.Reader(variable, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("ncio: reading %q: %w", variable, err)
	}

	c := &Cube{
		Name:  variable,
		Dims:  f.Header.Dimensions(variable),
		Data:  sparse.ZerosDense(lengths...),
		Attrs: map[string]interface{}{},
	}
	switch b := buf.(type) {
	case []float64:
		copy(c.Data.Elements, b)
	case []float32:
		c.Float32 = true
		for k, v := range b {
			c.Data.Elements[k] = float64(v)
		}
	default:
		return nil, fmt.Errorf("ncio: variable %q has unsupported element type %T", variable, buf)
	}

	for _, name := range retainedAttrs {
		if v := f.Header.GetAttribute(variable, name); v != nil {
			c.Attrs[name] = v
		}
	}
	return c, nil
}

// WriteCube creates path as a NetCDF classic file holding the cube's
// variable with its dimensions, retained attributes and original element
// type.
func WriteCube(path string, c *Cube) error {
	if c == nil || c.Data == nil {
		return fmt.Errorf("ncio: nil cube")
	}
	if len(c.Dims) != len(c.Data.Shape) {
		return fmt.Errorf("ncio: cube has %d dimension names for %d axes", len(c.Dims), len(c.Data.Shape))
	}
	n := 1
	for _, l := range c.Data.Shape {
		n *= l
	}
	if len(c.Data.Elements) != n {
		return fmt.Errorf("ncio: shape %v does not match %d elements", c.Data.Shape, len(c.Data.Elements))
	}

	h := cdf.NewHeader(c.Dims, c.Data.Shape)
	if c.Float32 {
		h.AddVariable(c.Name, c.Dims, []float32{0})
	} else {
		h.AddVariable(c.Name, c.Dims, []float64{0})
	}
	names := make([]string, 0, len(c.Attrs))
	for name := range c.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.AddAttribute(c.Name, name, c.Attrs[name])
	}
	h.Define()

	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ncio: %w", err)
	}
	defer fh.Close()

	f, err := cdf.Create(fh, h)
	if err != nil {
		return fmt.Errorf("ncio: creating %s: %w", path, err)
	}

	start := make([]int, len(c.Data.Shape))
	w := f.Writer(c.Name, start, f.Header.Lengths(c.Name))
	if c.Float32 {
		data32 := make([]float32, len(c.Data.Elements))
		for k, v := range c.Data.Elements {
			data32[k] = float32(v)
		}
		_, err = w.Write(data32)
	} else {
		data64 := make([]float64, len(c.Data.Elements))
		copy(data64, c.Data.Elements)
		_, err = w.Write(data64)
	}
	if err != nil {
		return fmt.Errorf("ncio: writing %q: %w", c.Name, err)
	}
	if err := cdf.UpdateNumRecs(fh); err != nil {
		return fmt.Errorf("ncio: finalising %s: %w", path, err)
	}
	return nil
}

// defaultVariable picks the first variable with a fillable rank.
func defaultVariable(f *cdf.File) (string, error) {
	for _, v := range f.Header.Variables() {
		if len(f.Header.Lengths(v)) >= 2 {
			return v, nil
		}
	}
	return "", fmt.Errorf("ncio: no variable with at least two dimensions")
}

func hasVariable(f *cdf.File, name string) bool {
	for _, v := range f.Header.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

// numericAttr extracts the first element of a numeric attribute value.
func numericAttr(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case []float64:
		if len(t) > 0 {
			return t[0], true
		}
	case []float32:
		if len(t) > 0 {
			return float64(t[0]), true
		}
	case []int32:
		if len(t) > 0 {
			return float64(t[0]), true
		}
	case []int16:
		if len(t) > 0 {
			return float64(t[0]), true
		}
	}
	return 0, false
}
