package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// CSVWriter wraps csv.Writer with methods for sweep output. Summary gets
// one row per combination; Raw gets one row per grid per combination. Pass
// io.Discard for an output that is not wanted.
type CSVWriter struct {
	Summary *csv.Writer
	Raw     *csv.Writer
}

// NewCSVWriter creates a CSVWriter over the given summary and raw writers.
func NewCSVWriter(summary, raw io.Writer) *CSVWriter {
	return &CSVWriter{
		Summary: csv.NewWriter(summary),
		Raw:     csv.NewWriter(raw),
	}
}

// WriteHeaders writes the column headers to both outputs.
func (c *CSVWriter) WriteHeaders() {
	c.Summary.Write([]string{
		"relax", "tolerance", "grids", "converged_fraction",
		"mean_iterations", "stddev_iterations", "worst_residual", "elapsed_ms",
	})
	c.Raw.Write([]string{
		"relax", "tolerance", "grid_index", "iterations", "max_residual", "converged",
	})
}

// WriteOutcome writes the summary row and per-grid raw rows for one
// combination.
func (c *CSVWriter) WriteOutcome(o Outcome) {
	c.Summary.Write([]string{
		fmt.Sprintf("%.6f", o.Relax),
		fmt.Sprintf("%.3e", o.Tolerance),
		fmt.Sprintf("%d", o.Grids),
		fmt.Sprintf("%.4f", o.ConvergedFraction),
		fmt.Sprintf("%.6f", o.MeanIterations),
		fmt.Sprintf("%.6f", o.StddevIterations),
		fmt.Sprintf("%.3e", o.WorstResidual),
		fmt.Sprintf("%d", o.ElapsedMillis),
	})
	c.Summary.Flush()

	for k, res := range o.Results {
		c.Raw.Write([]string{
			fmt.Sprintf("%.6f", o.Relax),
			fmt.Sprintf("%.3e", o.Tolerance),
			fmt.Sprintf("%d", k),
			fmt.Sprintf("%d", res.Iterations),
			fmt.Sprintf("%.3e", res.MaxResidual),
			strconv.FormatBool(res.Converged(o.Tolerance)),
		})
	}
	c.Raw.Flush()
}

// Flush flushes both writers.
func (c *CSVWriter) Flush() {
	c.Summary.Flush()
	c.Raw.Flush()
}
