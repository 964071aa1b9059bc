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
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vhive-serverless/btbench/config"
	"github.com/vhive-serverless/btbench/metrics"
	"github.com/vhive-serverless/btbench/report"
	"github.com/vhive-serverless/btbench/runner"
	"github.com/vhive-serverless/btbench/skeleton"
	"github.com/vhive-serverless/btbench/store"
	"github.com/vhive-serverless/btbench/sweep"
)

var dumper = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true}

// sweepFlags override config values when set on the command line.
type sweepFlags struct {
	compiler      string
	extraFlags    []string
	workDir       string
	skeleton      string
	variant       string
	start         int
	stop          int
	step          int
	padding       int
	chainLength   int
	paddingOffset int
	normalize     string
	repeats       int
	timeoutSec    int
	cpu           int
	csvPath       string
	failuresPath  string
	plotPath      string
	dbPath        string
	kneeFactor    float64
}

func newSweepCmd(a *app, exp sweep.Experiment) *cobra.Command {
	f := &sweepFlags{}
	def := config.Default()

	cmd := &cobra.Command{
		Use:  exp.String(),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.apply(cmd.Flags(), a.cfg, exp)
			return runSweep(cmd.Context(), a.cfg, exp, f.kneeFactor, cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.compiler, "compiler", def.Compiler, "C compiler driver")
	fs.StringSliceVar(&f.extraFlags, "cflags", nil, "Extra compiler flags appended to the fixed ones")
	fs.StringVar(&f.workDir, "workdir", def.WorkDir, "Directory for generated sources and binaries")
	fs.StringVar(&f.skeleton, "skeleton", "", "Skeleton file (default: built-in)")
	fs.StringVar(&f.variant, "variant", def.Variant, "Branch chain variant: labels or jumps")
	fs.StringVar(&f.normalize, "normalize", def.Normalize, "Normalization: branch or raw")
	fs.IntVar(&f.repeats, "repeats", def.Repeats, "Executions per point, the median is kept")
	fs.IntVar(&f.timeoutSec, "timeout", def.TimeoutSec, "Execution timeout in seconds")
	fs.IntVar(&f.cpu, "cpu", def.PinnedCPU, "Pin benchmark binaries to this CPU (-1: no pinning)")
	fs.StringVar(&f.csvPath, "csv", "", "Write param,value rows to this file")
	fs.StringVar(&f.failuresPath, "failures", "", "Write failed points to this file")
	fs.StringVar(&f.plotPath, "plot", "", "Save a PNG chart to this file")
	fs.StringVar(&f.dbPath, "db", "", "Store the run in this SQLite database")

	switch exp {
	case sweep.Capacity:
		cmd.Short = "Sweep the number of branches in the chain"
		fs.IntVar(&f.start, "start", def.CapacityRange.Start, "First branch count")
		fs.IntVar(&f.stop, "stop", def.CapacityRange.Stop, "Last branch count")
		fs.IntVar(&f.step, "step", def.CapacityRange.Step, "Branch count step")
		fs.IntVar(&f.padding, "padding", def.CapacityPadding, "No-ops between branch targets")
		fs.Float64Var(&f.kneeFactor, "knee-factor", 1.5, "Slowdown over baseline that marks the capacity knee")
	case sweep.Associativity:
		cmd.Short = "Sweep the spacing between branch targets"
		fs.IntVar(&f.start, "start", def.AssocRange.Start, "First associativity")
		fs.IntVar(&f.stop, "stop", def.AssocRange.Stop, "Last associativity")
		fs.IntVar(&f.step, "step", def.AssocRange.Step, "Associativity step")
		fs.IntVar(&f.chainLength, "chain-length", def.AssocChainLength, "Branches in the chain")
		fs.IntVar(&f.paddingOffset, "padding-offset", def.PaddingOffset,
			"Subtracted from the associativity to get the no-op count, tuned for the built-in skeletons")
	}
	return cmd
}

func (f *sweepFlags) apply(fs *pflag.FlagSet, cfg *config.Config, exp sweep.Experiment) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}

	set("compiler", func() { cfg.Compiler = f.compiler })
	set("cflags", func() { cfg.ExtraFlags = f.extraFlags })
	set("workdir", func() { cfg.WorkDir = f.workDir })
	set("skeleton", func() { cfg.Skeleton = f.skeleton })
	set("variant", func() { cfg.Variant = f.variant })
	set("normalize", func() { cfg.Normalize = f.normalize })
	set("repeats", func() { cfg.Repeats = f.repeats })
	set("timeout", func() { cfg.TimeoutSec = f.timeoutSec })
	set("cpu", func() { cfg.PinnedCPU = f.cpu })
	set("csv", func() { cfg.CSVPath = f.csvPath })
	set("failures", func() { cfg.FailuresPath = f.failuresPath })
	set("plot", func() { cfg.PlotPath = f.plotPath })
	set("db", func() { cfg.DBPath = f.dbPath })
	set("padding", func() { cfg.CapacityPadding = f.padding })
	set("chain-length", func() { cfg.AssocChainLength = f.chainLength })
	set("padding-offset", func() { cfg.PaddingOffset = f.paddingOffset })

	r := &cfg.CapacityRange
	if exp == sweep.Associativity {
		r = &cfg.AssocRange
	}
	set("start", func() { r.Start = f.start })
	set("stop", func() { r.Stop = f.stop })
	set("step", func() { r.Step = f.step })
}

func runSweep(ctx context.Context, cfg *config.Config, exp sweep.Experiment, kneeFactor float64, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Debugf("Effective config:\n%s", dumper.Sdump(cfg))

	variant, err := skeleton.ParseVariant(cfg.Variant)
	if err != nil {
		return err
	}

	skel := skeleton.Default(variant)
	if cfg.Skeleton != "" {
		if skel, err = skeleton.Load(cfg.Skeleton); err != nil {
			return err
		}
	}

	sc := sweep.Config{
		Experiment:    exp,
		Range:         cfg.Range(exp),
		Variant:       variant,
		Padding:       cfg.CapacityPadding,
		ChainLength:   cfg.AssocChainLength,
		PaddingOffset: cfg.PaddingOffset,
	}
	if cfg.Normalize == "raw" {
		sc.Normalize = sweep.Raw
	}

	r := runner.NewRunner(
		runner.WithCompiler(&runner.GCC{Path: cfg.Compiler, ExtraFlags: cfg.ExtraFlags}),
		runner.WithRepeats(cfg.Repeats),
		runner.WithTimeout(cfg.Timeout()),
		runner.WithCPU(cfg.PinnedCPU),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := sweep.NewController(skel, r, sc,
		sweep.WithWorkDir(cfg.WorkDir),
		sweep.WithObserver(func(p sweep.Point) {
			if err := report.WriteCSV(out, []sweep.Point{p}); err != nil {
				log.WithError(err).Warn("Failed to print point")
			}
		}),
	)

	result, runErr := ctrl.Run(ctx)
	if result == nil {
		return runErr
	}

	if err := emit(cfg, result, kneeFactor); err != nil {
		if runErr == nil {
			return err
		}
		log.WithError(err).Error("Failed to write results")
	}
	return runErr
}

// emit writes a possibly partial result to every configured output.
func emit(cfg *config.Config, result *sweep.Result, kneeFactor float64) error {
	if result.Cancelled {
		log.Warnf("Sweep was interrupted, emitting %d measured points", len(result.Points))
	}
	for _, f := range result.Failures {
		log.WithFields(log.Fields{"param": f.Param, "kind": f.Kind}).Errorf("Point failed: %s", f.Detail)
	}

	if cfg.CSVPath != "" {
		if err := report.SaveCSV(cfg.CSVPath, result.Points); err != nil {
			return err
		}
	}

	if cfg.FailuresPath != "" && len(result.Failures) > 0 {
		if err := saveFailures(cfg.FailuresPath, result.Failures); err != nil {
			return err
		}
	}

	exp, err := sweep.ParseExperiment(result.Experiment)
	if err != nil {
		return err
	}

	if cfg.PlotPath != "" && len(result.Points) > 0 {
		series := report.SeriesFromPoints(result.Experiment, result.Points)
		if err := report.PlotSweep(cfg.PlotPath, report.Title(result), report.XLabel(exp), series); err != nil {
			return err
		}
	}

	if cfg.DBPath != "" {
		s, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer s.Close()

		id, err := s.SaveResult(result)
		if err != nil {
			return err
		}
		log.Infof("Stored run %s in %s", id, cfg.DBPath)
	}

	return summarize(result, exp, kneeFactor)
}

func summarize(result *sweep.Result, exp sweep.Experiment, kneeFactor float64) error {
	if len(result.Points) == 0 {
		log.Warn("No points were measured")
		return nil
	}

	params := make([]int, len(result.Points))
	values := make([]float64, len(result.Points))
	for i, p := range result.Points {
		params[i] = p.Param
		values[i] = p.Normalized
	}

	summary, err := metrics.Summarize(values)
	if err != nil {
		return err
	}
	if err := metrics.PrintSummary(os.Stderr, map[string]metrics.Summary{result.Experiment: summary}); err != nil {
		return errors.Wrap(err, "failed to print summary")
	}

	if exp == sweep.Capacity {
		if knee, ok := metrics.Knee(params, values, kneeFactor); ok {
			log.Infof("Access time rises at %d branches on %s", knee, result.HostCPU)
		} else {
			log.Info("No capacity knee in the swept range")
		}
	}
	return nil
}

func saveFailures(path string, failures []sweep.Failure) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed creating %q", path)
	}
	defer f.Close()

	if err := report.WriteFailures(f, failures); err != nil {
		return err
	}
	return f.Close()
}
