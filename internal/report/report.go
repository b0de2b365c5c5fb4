// Package report renders HTML diagnostics for a processing run: the
// angle-response corrector curve and the per-stage backscatter components
// of the first ping.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/hydroline-data/swathproc/internal/backscatter"
)

// avgCurveChart plots the corrector offset against the bin center angle.
func avgCurveChart(table *backscatter.AngleGainTable) *charts.Line {
	x := make([]string, len(table.Angles))
	y := make([]opts.LineData, len(table.Angles))
	for k, edge := range table.Angles {
		center := edge + table.BinSize/2
		x[k] = fmt.Sprintf("%.1f", center)
		y[k] = opts.LineData{Value: table.Offsets[k]}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Angle-varying gain corrector",
			Subtitle: fmt.Sprintf("bin size %.1f deg, %d bins", table.BinSize, len(table.Angles)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Beam angle (deg)", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Offset (dB)", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x).AddSeries("offset", y)
	return line
}

// componentsChart overlays the recorded chain stages across the beam axis.
func componentsChart(comps []backscatter.Component) *charts.Line {
	beams := 0
	for _, c := range comps {
		if len(c.Row) > beams {
			beams = len(c.Row)
		}
	}
	if beams == 0 {
		beams = 2
	}
	x := make([]string, beams)
	for j := range x {
		x[j] = fmt.Sprintf("%d", j)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Backscatter correction stages", Subtitle: "first ping"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Beam", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "dB", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x)

	for _, c := range comps {
		y := make([]opts.LineData, beams)
		if c.Scalar != nil {
			for j := range y {
				y[j] = opts.LineData{Value: *c.Scalar}
			}
		} else {
			for j := range y {
				if j < len(c.Row) {
					y[j] = opts.LineData{Value: c.Row[j]}
				}
			}
		}
		line.AddSeries(c.Name, y)
	}
	return line
}

// WriteBackscatterReport renders the run's backscatter diagnostics to one
// HTML page under dir and returns the file path. Either argument may be
// nil/empty; the page carries whatever was recorded.
func WriteBackscatterReport(dir, label string, table *backscatter.AngleGainTable, comps []backscatter.Component) (string, error) {
	if table == nil && len(comps) == 0 {
		return "", fmt.Errorf("nothing to report: no corrector table and no recorded components")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Backscatter report %s", label)
	if table != nil {
		page.AddCharts(avgCurveChart(table))
	}
	if len(comps) > 0 {
		page.AddCharts(componentsChart(comps))
	}

	file := filepath.Join(dir, fmt.Sprintf("backscatter_report_%s.html", label))
	f, err := os.Create(file)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return file, nil
}
