// MIT License
//
// Copyright (c) 2024 EASE lab
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package report

import (
	"fmt"
	"math"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/wcharczuk/go-chart"
	"github.com/wcharczuk/go-chart/drawing"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/vhive-serverless/btbench/sweep"
)

// YLabel is the y-axis label of every sweep chart.
const YLabel = "Average Access Time Per Branch"

// Series is one named sweep curve.
type Series struct {
	Name string
	X    []float64
	Y    []float64
}

// SeriesFromPoints converts sweep points to a series.
func SeriesFromPoints(name string, points []sweep.Point) Series {
	s := Series{
		Name: name,
		X:    make([]float64, len(points)),
		Y:    make([]float64, len(points)),
	}
	for i, p := range points {
		s.X[i] = float64(p.Param)
		s.Y[i] = p.Normalized
	}
	return s
}

// XLabel returns the x-axis label for an experiment.
func XLabel(e sweep.Experiment) string {
	if e == sweep.Associativity {
		return "Associativity"
	}
	return "Number of Branches"
}

// PlotSweep saves a line chart of one series as a PNG.
func PlotSweep(fileName, title, xLabel string, s Series) error {
	if len(s.X) == 0 {
		return errors.Errorf("series %q has no points", s.Name)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = YLabel
	p.Y.Min = 0
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(s.X))
	for i := range s.X {
		pts[i].X = s.X[i]
		pts[i].Y = s.Y[i]
	}

	if err := plotutil.AddLinePoints(p, s.Name, pts); err != nil {
		return errors.Wrap(err, "failed plotting data")
	}

	if err := p.Save(8*vg.Inch, 5*vg.Inch, fileName); err != nil {
		return errors.Wrapf(err, "failed saving plot %q", fileName)
	}

	log.Infof("Saved sweep plot %s", fileName)
	return nil
}

// PlotComparison overlays several series in one PNG chart.
func PlotComparison(fileName, xLabel string, series []Series) error {
	if len(series) == 0 {
		return errors.New("no series to plot")
	}

	var (
		xMin, xMax = math.Inf(1), math.Inf(-1)
		yMax       float64
		colors     = getStrokeColors()
		lines      = make([]chart.Series, 0, len(series))
	)
	for i, s := range series {
		if len(s.X) == 0 {
			return errors.Errorf("series %q has no points", s.Name)
		}
		for j := range s.X {
			xMin = math.Min(xMin, s.X[j])
			xMax = math.Max(xMax, s.X[j])
			yMax = math.Max(yMax, s.Y[j])
		}
		lines = append(lines, chart.ContinuousSeries{
			Name: s.Name,
			Style: chart.Style{
				Show:        true,
				StrokeWidth: 3,
				StrokeColor: colors[i%len(colors)],
			},
			XValues: s.X,
			YValues: s.Y,
		})
	}
	if xMin == xMax {
		xMax = xMin + 1
	}

	graph := chart.Chart{
		Background: chart.Style{
			Padding: chart.Box{
				Top: 30,
			},
		},
		XAxis: chart.XAxis{
			Name:      xLabel,
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
			Range: &chart.ContinuousRange{
				Min: xMin,
				Max: xMax,
			},
		},
		YAxis: chart.YAxis{
			Name:      YLabel,
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: yMax * 1.1,
			},
		},
		Series: lines,
	}
	graph.Elements = []chart.Renderable{
		chart.LegendThin(&graph),
	}

	pngFile, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "failed creating %q", fileName)
	}
	defer pngFile.Close()

	if err := graph.Render(chart.PNG, pngFile); err != nil {
		return errors.Wrap(err, "failed rendering chart")
	}

	log.Infof("Saved comparison plot of %d sweeps to %s", len(series), fileName)
	return nil
}

// Title builds a chart title from a sweep result.
func Title(r *sweep.Result) string {
	return fmt.Sprintf("BTB %s sweep (%s chain) on %s", r.Experiment, r.Variant, r.HostCPU)
}

func getStrokeColors() []drawing.Color {
	return []drawing.Color{
		{R: 2, G: 10, B: 55, A: 255},
		{R: 116, G: 62, B: 16, A: 255},
		{R: 0, G: 129, B: 65, A: 255},
		{R: 51, G: 139, B: 253, A: 255},
		{R: 94, G: 223, B: 251, A: 255},
		{R: 239, G: 255, B: 77, A: 255},
	}
}
