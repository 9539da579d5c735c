package render

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/clearsky-data/gridfill"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// maxScatterPoints caps the scatter payload; larger grids are downsampled
// by stride to keep the report responsive in a browser.
const maxScatterPoints = 8000

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// ReportData carries everything the HTML report can show. Nil or empty
// fields drop the corresponding chart.
type ReportData struct {
	Title     string
	Source    string
	Variable  string
	Grid      *gridfill.Grid
	Mask      *gridfill.Mask
	Residuals []float64
	Tolerance float64
	Results   []gridfill.Result
}

// WriteReport renders an HTML report with interactive charts to w: the
// filled field coloured by value, the filled-cell overlay, the convergence
// curve, and per-grid iteration counts for stacks.
func WriteReport(w io.Writer, data ReportData) error {
	page := components.NewPage()
	if data.Title != "" {
		page.PageTitle = data.Title
	}

	if data.Grid != nil {
		page.AddCharts(fieldScatter(data))
		if data.Mask != nil {
			page.AddCharts(maskScatter(data))
		}
	}
	if len(data.Residuals) > 0 {
		page.AddCharts(residualLine(data))
	}
	if len(data.Results) > 1 {
		page.AddCharts(iterationsBar(data))
	}

	return page.Render(w)
}

// fieldScatter draws the grid as value-coloured points, downsampled by
// stride when the cell count exceeds maxScatterPoints.
func fieldScatter(data ReportData) *charts.Scatter {
	g := data.Grid
	total := g.NLat * g.NLon
	stride := 1
	if total > maxScatterPoints {
		stride = int(math.Ceil(float64(total) / float64(maxScatterPoints)))
	}

	points := make([]opts.ScatterData, 0, total/stride+1)
	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for idx := 0; idx < total; idx += stride {
		i, j := idx/g.NLon, idx%g.NLon
		v := g.Values[idx]
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
		points = append(points, opts.ScatterData{Value: []interface{}{j, i, v}})
	}
	if minVal > maxVal {
		minVal, maxVal = 0, 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Filled field", Subtitle: fmt.Sprintf("source=%s var=%s points=%d stride=%d", data.Source, data.Variable, len(points), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Longitude index", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latitude index", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(minVal),
			Max:        float32(maxVal),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("field", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter
}

// maskScatter overlays the cells the solver filled on top of the cells that
// arrived valid.
func maskScatter(data ReportData) *charts.Scatter {
	g, m := data.Grid, data.Mask
	total := g.NLat * g.NLon
	stride := 1
	if total > maxScatterPoints {
		stride = int(math.Ceil(float64(total) / float64(maxScatterPoints)))
	}

	var validPts, filledPts []opts.ScatterData
	for idx := 0; idx < total; idx += stride {
		i, j := idx/g.NLon, idx%g.NLon
		pt := opts.ScatterData{Value: []interface{}{j, i}}
		if m.Flags[idx] != 0 {
			filledPts = append(filledPts, pt)
		} else {
			validPts = append(validPts, pt)
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Filled cells", Subtitle: fmt.Sprintf("filled=%d of %d", m.MissingCount(), total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Longitude index", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latitude index", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("valid", validPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
	scatter.AddSeries("filled", filledPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}))
	return scatter
}

// residualLine plots the per-sweep maximum residual.
func residualLine(data ReportData) *charts.Line {
	x := make([]int, len(data.Residuals))
	vals := make([]opts.LineData, len(data.Residuals))
	for i, r := range data.Residuals {
		x[i] = i + 1
		vals[i] = opts.LineData{Value: r}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Convergence", Subtitle: fmt.Sprintf("tolerance=%.3e", data.Tolerance)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Iteration"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Max residual"}),
	)
	line.SetXAxis(x).AddSeries("max residual", vals)
	return line
}

// iterationsBar shows how hard each grid of a stack worked.
func iterationsBar(data ReportData) *charts.Bar {
	x := make([]string, len(data.Results))
	y := make([]opts.BarData, len(data.Results))
	for i, res := range data.Results {
		x[i] = strconv.Itoa(i)
		y[i] = opts.BarData{Value: res.Iterations}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Iterations per grid", Subtitle: fmt.Sprintf("grids=%d", len(data.Results))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries("iterations", y, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}
