// Package gridfill fills missing values in two dimensional scalar grids by
// solving Poisson's equation over the masked cells with an iterative
// Gauss-Seidel relaxation scheme. It is intended for gridded geophysical
// data (satellite swaths with gaps, model output with land/ocean masks)
// where a smooth, physically plausible interpolation of the holes is
// wanted.
//
// Grids are (nlat, nlon) with the first axis treated as latitude and the
// second as longitude. The latitude axis reflects at its edges; the
// longitude axis either reflects or wraps cyclically depending on
// Params.Cyclic. Solve fills one grid in place, SolveBatch fills a stack
// of independent grids sharing one shape.
//
// The cube subpackage extends the same fill to N-dimensional arrays by
// selecting which two axes form the grid.
package gridfill
