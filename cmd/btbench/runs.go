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
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vhive-serverless/btbench/store"
)

func newRunsCmd(a *app) *cobra.Command {
	var (
		dbPath   string
		failures bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List sweep runs stored in a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				dbPath = a.cfg.DBPath
			}
			return listRuns(cmd.OutOrStdout(), dbPath, failures)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&dbPath, "db", "", "SQLite database (default: db_path from config)")
	fs.BoolVar(&failures, "failures", false, "Also print the failed points of every run")
	return cmd
}

func listRuns(w io.Writer, dbPath string, withFailures bool) error {
	if dbPath == "" {
		return errors.New("no database given")
	}

	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.Runs()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEXPERIMENT\tVARIANT\tHOST CPU\tSTARTED\tPOINTS\tFAILED\tCANCELLED")
	for _, run := range runs {
		points, err := s.Points(run.ID)
		if err != nil {
			return err
		}
		failed, err := s.Failures(run.ID)
		if err != nil {
			return err
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%t\n",
			run.ID, run.Experiment, run.Variant, run.HostCPU,
			run.Started.Format(time.RFC3339), len(points), len(failed), run.Cancelled)

		if withFailures {
			for _, f := range failed {
				fmt.Fprintf(tw, "\t%d\t%s\t%s\t\t\t\t\n", f.Param, f.Kind, f.Detail)
			}
		}
	}
	return tw.Flush()
}
