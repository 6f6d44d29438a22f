package monitor

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHTML writes a self-contained page with the trace overlay and a
// per-fiber residual chart.
func (o *Overlay) RenderHTML(w io.Writer) error {
	var points, synthesized, curves []opts.ScatterData
	for i, f := range o.Fibers {
		for k := range f.X {
			pt := opts.ScatterData{Value: []interface{}{f.X[k], f.Y[k], f.Label}}
			if f.Synthesized {
				synthesized = append(synthesized, pt)
			} else {
				points = append(points, pt)
			}
		}
		xs, ys := o.Curve(i)
		for k := range xs {
			curves = append(curves, opts.ScatterData{Value: []interface{}{xs[k], ys[k], f.Label}})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: o.Title, Subtitle: o.subtitle()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: o.Cols, Name: "Column", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: o.Rows, Name: "Row", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("trace", curves, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 1}))
	scatter.AddSeries("detected", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	scatter.AddSeries("synthesized", synthesized, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	residuals := o.Residuals()
	labels := make([]string, len(o.Fibers))
	bars := make([]opts.BarData, len(o.Fibers))
	for i, f := range o.Fibers {
		labels[i] = strconv.Itoa(f.Label)
		v := residuals[i]
		if math.IsNaN(v) {
			v = 0
		}
		bars[i] = opts.BarData{Value: v}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Fit residuals", Subtitle: "RMS rows per fiber"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).AddSeries("rms", bars)

	page := components.NewPage()
	page.AddCharts(scatter, bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render trace page: %w", err)
	}
	return nil
}
