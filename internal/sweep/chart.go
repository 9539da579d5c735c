package sweep

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteChart renders the sweep outcomes as an HTML page with interactive
// charts: mean iterations and converged fraction per combination.
func WriteChart(w io.Writer, outcomes []Outcome) error {
	if len(outcomes) == 0 {
		return fmt.Errorf("no outcomes to chart")
	}

	labels := make([]string, len(outcomes))
	iters := make([]opts.BarData, len(outcomes))
	fractions := make([]opts.LineData, len(outcomes))
	for i, o := range outcomes {
		labels[i] = fmt.Sprintf("r=%.2f t=%.0e", o.Relax, o.Tolerance)
		iters[i] = opts.BarData{Value: o.MeanIterations}
		fractions[i] = opts.LineData{Value: o.ConvergedFraction}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1100px", Height: "450px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mean iterations", Subtitle: fmt.Sprintf("combinations=%d", len(outcomes))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).AddSeries("mean iterations", iters,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1100px", Height: "450px"}),
		charts.WithTitleOpts(opts.Title{Title: "Converged fraction"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
	)
	line.SetXAxis(labels).AddSeries("converged fraction", fractions)

	page := components.NewPage()
	page.PageTitle = "gridfill sweep"
	page.AddCharts(bar, line)
	return page.Render(w)
}
