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

package main

import (
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vhive-serverless/btbench/report"
	"github.com/vhive-serverless/btbench/store"
	"github.com/vhive-serverless/btbench/sweep"
)

func newPlotCmd(a *app) *cobra.Command {
	var (
		overlay    string
		experiment string
		outDir     string
		dbPath     string
	)

	cmd := &cobra.Command{
		Use:   "plot <csv>... | plot --db <file> <run-id>...",
		Short: "Render charts from sweep CSV files or stored runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := sweep.ParseExperiment(experiment)
			if err != nil {
				return err
			}

			var series []report.Series
			if dbPath != "" {
				series, err = loadRuns(dbPath, args)
			} else {
				series, err = loadFiles(args)
			}
			if err != nil {
				return err
			}

			if overlay != "" {
				return report.PlotComparison(overlay, report.XLabel(exp), series)
			}
			return plotEach(args, series, exp, outDir, dbPath != "")
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&overlay, "overlay", "", "Draw all inputs into this one PNG instead of one chart each")
	fs.StringVar(&experiment, "experiment", sweep.Capacity.String(), "Experiment the inputs come from: capacity or assoc")
	fs.StringVar(&outDir, "out", "", "Directory for per-input charts (default: next to each csv, or the current directory)")
	fs.StringVar(&dbPath, "db", "", "Read the given run IDs from this SQLite database")
	return cmd
}

func loadFiles(files []string) ([]report.Series, error) {
	series := make([]report.Series, 0, len(files))
	for _, file := range files {
		points, err := report.LoadCSV(file)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		series = append(series, report.SeriesFromPoints(name, points))
	}
	return series, nil
}

func loadRuns(dbPath string, ids []string) ([]report.Series, error) {
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	series := make([]report.Series, 0, len(ids))
	for _, id := range ids {
		points, err := s.Points(id)
		if err != nil {
			return nil, err
		}
		series = append(series, report.SeriesFromPoints(id, points))
	}
	return series, nil
}

func plotEach(inputs []string, series []report.Series, exp sweep.Experiment, outDir string, fromDB bool) error {
	for i, s := range series {
		dir := outDir
		if dir == "" && !fromDB {
			dir = filepath.Dir(inputs[i])
		}
		fileName := filepath.Join(dir, s.Name+".png")
		if err := report.PlotSweep(fileName, s.Name, report.XLabel(exp), s); err != nil {
			return err
		}
	}

	log.Infof("Plotted %d sweeps", len(series))
	return nil
}
