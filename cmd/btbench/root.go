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
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vhive-serverless/btbench/config"
	"github.com/vhive-serverless/btbench/sweep"
)

// app holds state shared by all subcommands.
type app struct {
	configPath string
	debug      bool
	logOutput  io.Writer
	cfg        *config.Config
}

func newRootCmd(logOutput io.Writer) *cobra.Command {
	a := &app{logOutput: logOutput}

	root := &cobra.Command{
		Use:   "btbench",
		Short: "btbench characterizes the branch target buffer of the host CPU.",
		Long: `btbench generates C benchmarks with chains of taken branches, ` +
			`compiles and runs them, and reports the average cycles per branch ` +
			`across a sweep of chain lengths or target spacings.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to a JSON config file")
	pf.BoolVar(&a.debug, "dbg", false, "Enable debug logging")

	root.AddCommand(
		newSweepCmd(a, sweep.Capacity),
		newSweepCmd(a, sweep.Associativity),
		newPlotCmd(a),
		newRunsCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	// stdout carries result rows
	log.SetOutput(a.logOutput)

	if a.debug {
		log.SetLevel(log.DebugLevel)
		log.Debug("Debug logging is enabled")
		return nil
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	return nil
}
