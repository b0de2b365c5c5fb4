package backscatter

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// componentColors is a small fixed palette; the chain has at most six
// recorded terms.
var componentColors = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
}

// PlotComponents renders the recorded first-ping chain terms to a PNG under
// outputDir and returns the file path. Scalar terms are drawn as flat lines
// across the beam axis so every stage shows on one set of axes.
func PlotComponents(components []Component, outputDir, label string) (string, error) {
	if len(components) == 0 {
		return "", fmt.Errorf("no backscatter components were recorded")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create plot directory: %w", err)
	}

	beams := 0
	for _, c := range components {
		if len(c.Row) > beams {
			beams = len(c.Row)
		}
	}
	if beams == 0 {
		beams = 2
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Backscatter correction stages - first ping (%s)", label)
	p.X.Label.Text = "Beam"
	p.Y.Label.Text = "dB"

	for i, c := range components {
		var pts plotter.XYs
		if c.Scalar != nil {
			pts = plotter.XYs{
				{X: 0, Y: *c.Scalar},
				{X: float64(beams - 1), Y: *c.Scalar},
			}
		} else {
			pts = make(plotter.XYs, 0, len(c.Row))
			for j, v := range c.Row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				pts = append(pts, plotter.XY{X: float64(j), Y: v})
			}
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", err
		}
		line.Color = componentColors[i%len(componentColors)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(c.Name, line)
	}

	file := filepath.Join(outputDir, fmt.Sprintf("backscatter_components_%s.png", label))
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return "", fmt.Errorf("save component plot: %w", err)
	}
	return file, nil
}
