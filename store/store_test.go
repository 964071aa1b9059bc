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

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vhive-serverless/btbench/sweep"
)

func testResult() *sweep.Result {
	started := time.Unix(1700000000, 0)
	return &sweep.Result{
		Experiment: "capacity",
		Variant:    "labels",
		Skeleton:   "capacity.c",
		HostCPU:    "Test CPU",
		Started:    started,
		Finished:   started.Add(time.Minute),
		Points: []sweep.Point{
			{Param: 768, Raw: 7680, Normalized: 10},
			{Param: 256, Raw: 2560, Normalized: 10},
		},
		Failures: []sweep.Failure{
			{Param: 512, Kind: "compile_failed", Detail: "error: bad asm"},
		},
	}
}

func TestSaveResult(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "btbench.db"))
	require.NoError(t, err, "Failed to open store")
	defer s.Close()

	id, err := s.SaveResult(testResult())
	require.NoError(t, err, "Failed to save result")
	require.NotEmpty(t, id)

	points, err := s.Points(id)
	require.NoError(t, err)
	require.Equal(t, []sweep.Point{
		{Param: 256, Raw: 2560, Normalized: 10},
		{Param: 768, Raw: 7680, Normalized: 10},
	}, points)

	failures, err := s.Failures(id)
	require.NoError(t, err)
	require.Equal(t, []sweep.Failure{{Param: 512, Kind: "compile_failed", Detail: "error: bad asm"}}, failures)

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, id, runs[0].ID)
	require.Equal(t, "Test CPU", runs[0].HostCPU)
	require.True(t, runs[0].Started.Equal(time.Unix(1700000000, 0)))
	require.False(t, runs[0].Cancelled)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "btbench.db")

	s, err := Open(path)
	require.NoError(t, err)
	first, err := s.SaveResult(testResult())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err, "Failed to reopen store")
	defer s.Close()

	second, err := s.SaveResult(testResult())
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestUnknownRun(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "btbench.db"))
	require.NoError(t, err)
	defer s.Close()

	points, err := s.Points("missing")
	require.NoError(t, err)
	require.Empty(t, points)
}
