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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vhive-serverless/btbench/config"
	"github.com/vhive-serverless/btbench/report"
	"github.com/vhive-serverless/btbench/store"
	"github.com/vhive-serverless/btbench/sweep"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	var out, logs bytes.Buffer

	root := newRootCmd(&logs)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&logs)

	err := root.ExecuteContext(context.Background())
	return out.String(), logs.String(), err
}

func TestFlagsOverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"compiler": "clang", "repeats": 3}`), 0644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	cmd := newSweepCmd(&app{cfg: cfg}, sweep.Associativity)
	require.NoError(t, cmd.ParseFlags([]string{"--repeats", "7", "--start", "4", "--padding-offset", "3"}))

	// values as parsed into the command's own flag set
	f := &sweepFlags{repeats: 7, start: 4, paddingOffset: 3}
	f.apply(cmd.Flags(), cfg, sweep.Associativity)

	require.Equal(t, "clang", cfg.Compiler, "Unset flag replaced config value")
	require.Equal(t, 7, cfg.Repeats)
	require.Equal(t, 4, cfg.AssocRange.Start)
	require.Equal(t, 16, cfg.AssocRange.Stop)
	require.Equal(t, 3, cfg.PaddingOffset)
	require.Equal(t, 256, cfg.CapacityRange.Start)
}

func TestSweepCommandFailedCompiler(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "capacity.csv")
	failuresPath := filepath.Join(dir, "failures.csv")

	out, logs, err := execute(t, "capacity",
		"--compiler", "/bin/false",
		"--workdir", dir,
		"--start", "1", "--stop", "3", "--step", "1",
		"--csv", csvPath,
		"--failures", failuresPath,
	)
	require.NoError(t, err, "Point failures must not fail the command")
	require.Empty(t, out)
	require.Contains(t, logs, "Point failed")

	points, err := report.LoadCSV(csvPath)
	require.NoError(t, err)
	require.Empty(t, points)

	data, err := os.ReadFile(failuresPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "1,compile_failed,")
	require.Contains(t, string(data), "3,compile_failed,")
}

func TestSweepCommandInvalidRange(t *testing.T) {
	_, _, err := execute(t, "capacity", "--workdir", t.TempDir(), "--start", "10", "--stop", "1")
	require.Error(t, err)
}

func TestPlotCommand(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "labels.csv")
	second := filepath.Join(dir, "jumps.csv")
	points := []sweep.Point{{Param: 256, Normalized: 10}, {Param: 512, Normalized: 25}}
	require.NoError(t, report.SaveCSV(first, points))
	require.NoError(t, report.SaveCSV(second, points))

	_, _, err := execute(t, "plot", first, second)
	require.NoError(t, err, "Failed plotting files")
	require.FileExists(t, filepath.Join(dir, "labels.png"))
	require.FileExists(t, filepath.Join(dir, "jumps.png"))

	overlay := filepath.Join(dir, "compare.png")
	_, _, err = execute(t, "plot", "--overlay", overlay, first, second)
	require.NoError(t, err, "Failed plotting overlay")
	require.FileExists(t, overlay)
}

func TestStoredRuns(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "btbench.db")

	s, err := store.Open(dbPath)
	require.NoError(t, err)
	id, err := s.SaveResult(&sweep.Result{
		Experiment: "capacity",
		Variant:    "labels",
		Skeleton:   "capacity.c",
		HostCPU:    "Test CPU",
		Started:    time.Unix(1700000000, 0),
		Finished:   time.Unix(1700000060, 0),
		Points:     []sweep.Point{{Param: 256, Raw: 2560, Normalized: 10}, {Param: 768, Raw: 23040, Normalized: 30}},
		Failures:   []sweep.Failure{{Param: 512, Kind: "exec_failed", Detail: "timed out after 30s"}},
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	out, _, err := execute(t, "runs", "--db", dbPath, "--failures")
	require.NoError(t, err, "Failed listing runs")
	require.Contains(t, out, id)
	require.Contains(t, out, "Test CPU")
	require.Contains(t, out, "exec_failed")

	_, _, err = execute(t, "plot", "--db", dbPath, "--out", dir, id)
	require.NoError(t, err, "Failed plotting stored run")
	require.FileExists(t, filepath.Join(dir, id+".png"))

	_, _, err = execute(t, "plot", "--db", dbPath, "--out", dir, "missing")
	require.Error(t, err, "Run without points was plotted")
}
