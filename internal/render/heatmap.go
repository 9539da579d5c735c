// Package render produces plots and HTML reports for filled grids: static
// PNG output through gonum/plot and interactive charts through go-echarts.
package render

import (
	"fmt"
	"image/color"

	"github.com/clearsky-data/gridfill"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// gridData adapts a Grid to the plotter.GridXYZ interface. Columns map to X
// and rows to Y, so latitude ascends with the vertical axis.
type gridData struct {
	g *gridfill.Grid
}

func (d *gridData) Dims() (c, r int)   { return d.g.NLon, d.g.NLat }
func (d *gridData) Z(c, r int) float64 { return d.g.At(r, c) }
func (d *gridData) X(c int) float64    { return float64(c) }
func (d *gridData) Y(r int) float64    { return float64(r) }

// Heatmap renders the grid as a PNG heat map at path. Render after filling:
// leftover sentinel values would stretch the palette across ten orders of
// magnitude.
func Heatmap(g *gridfill.Grid, title, path string) error {
	if g == nil || len(g.Values) == 0 {
		return fmt.Errorf("no grid to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Longitude index"
	p.Y.Label.Text = "Latitude index"

	p.Add(plotter.NewHeatMap(&gridData{g}, palette.Heat(12, 1)))

	if err := p.Save(10*vg.Inch, 7*vg.Inch, path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}

// ResidualCurve renders per-sweep maximum residuals as a PNG line plot with
// the convergence threshold overlaid.
func ResidualCurve(residuals []float64, tolerance float64, title, path string) error {
	if len(residuals) == 0 {
		return fmt.Errorf("no residuals to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Max residual"

	pts := make(plotter.XYs, len(residuals))
	for i, r := range residuals {
		pts[i] = plotter.XY{X: float64(i + 1), Y: r}
	}
	resLine, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	resLine.Width = vg.Points(1)
	p.Add(resLine)
	p.Legend.Add("max residual", resLine)

	if tolerance > 0 {
		tolLine, err := plotter.NewLine(plotter.XYs{
			{X: 1, Y: tolerance},
			{X: float64(len(residuals)), Y: tolerance},
		})
		if err != nil {
			return err
		}
		tolLine.Color = color.RGBA{R: 200, A: 255}
		tolLine.Width = vg.Points(1)
		tolLine.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(tolLine)
		p.Legend.Add("tolerance", tolLine)
	}

	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save residual curve: %w", err)
	}
	return nil
}
