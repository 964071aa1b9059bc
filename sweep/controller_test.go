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

package sweep

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vhive-serverless/btbench/runner"
	"github.com/vhive-serverless/btbench/skeleton"
)

const testSkeleton = "chain:\n<label>pad: <nop>\n"

// chainCompiler emits a script printing 10 cycles per chain link plus 10,
// and fails for every source whose name contains failOn.
type chainCompiler struct {
	failOn string
}

func (c *chainCompiler) Compile(ctx context.Context, srcPath, outPath string) (string, error) {
	if c.failOn != "" && strings.Contains(filepath.Base(srcPath), c.failOn) {
		return "error: injected failure", errors.New("exit status 1")
	}
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return "", err
	}
	cycles := (strings.Count(string(src), "JMP_LABEL(") + 1) * 10
	script := "#!/bin/sh\necho " + strconv.Itoa(cycles) + "\n"
	return "", os.WriteFile(outPath, []byte(script), 0755)
}

// fixedMeasurer returns the same raw count for every point.
type fixedMeasurer struct {
	raw    uint64
	labels []string
}

func (m *fixedMeasurer) Measure(ctx context.Context, workDir, source, label string) (uint64, error) {
	m.labels = append(m.labels, label)
	return m.raw, nil
}

func TestRangeValues(t *testing.T) {
	values, err := Range{Start: 256, Stop: 768, Step: 256}.Values()
	require.NoError(t, err)
	require.Equal(t, []int{256, 512, 768}, values)

	values, err = Range{Start: 2, Stop: 9, Step: 2}.Values()
	require.NoError(t, err)
	require.Equal(t, []int{2, 4, 6, 8}, values)

	_, err = Range{Start: 1, Stop: 2, Step: 0}.Values()
	require.EqualError(t, err, "range step 0 must be positive")

	_, err = Range{Start: 3, Stop: 2, Step: 1}.Values()
	require.EqualError(t, err, "range start 3 is greater than stop 2")

	values, err = Range{Start: math.MaxInt - 1, Stop: math.MaxInt, Step: 1}.Values()
	require.NoError(t, err)
	require.Equal(t, []int{math.MaxInt - 1, math.MaxInt}, values)

	values, err = Range{Start: math.MaxInt - 5, Stop: math.MaxInt, Step: 4}.Values()
	require.NoError(t, err)
	require.Equal(t, []int{math.MaxInt - 5, math.MaxInt - 1}, values)

	_, err = Range{Start: 0, Stop: math.MaxInt, Step: 1}.Values()
	require.Error(t, err, "Unbounded range was accepted")
}

func TestDerivePadding(t *testing.T) {
	padding, err := DerivePadding(8, DefaultPaddingOffset)
	require.NoError(t, err)
	require.Equal(t, 6, padding)

	padding, err = DerivePadding(2, DefaultPaddingOffset)
	require.NoError(t, err)
	require.Equal(t, 0, padding)

	_, err = DerivePadding(1, DefaultPaddingOffset)
	require.EqualError(t, err, "parameter 1: associativity must be at least 2")
}

func TestConfigParams(t *testing.T) {
	capacity := &Config{Experiment: Capacity, Padding: 2}
	p, err := capacity.Params(512)
	require.NoError(t, err)
	require.Equal(t, skeleton.Params{BranchCount: 512, PaddingCount: 2}, p)
	require.Equal(t, "btb_512_capacity", capacity.Label(512))

	assoc := &Config{Experiment: Associativity, ChainLength: 4096, PaddingOffset: 2}
	p, err = assoc.Params(8)
	require.NoError(t, err)
	require.Equal(t, skeleton.Params{BranchCount: 4096, PaddingCount: 6}, p)
	require.Equal(t, "btb_8_assoc", assoc.Label(8))
}

func TestNormalize(t *testing.T) {
	require.Equal(t, 10.0, PerParameter(1000, 100))
	require.Equal(t, 1000.0, Raw(1000, 100))
	require.Equal(t, 0.5, PerBranchCount(2000)(1000, 8))
	require.Equal(t, 0.0, PerParameter(1000, 0))
}

func TestRunSkipsFailedPoint(t *testing.T) {
	base := t.TempDir()
	r := runner.NewRunner(runner.WithCompiler(&chainCompiler{failOn: "btb_512_"}))
	cfg := Config{
		Experiment: Capacity,
		Range:      Range{Start: 256, Stop: 768, Step: 256},
		Normalize:  PerParameter,
	}

	c := NewController(skeleton.Parse("test", testSkeleton), r, cfg, WithWorkDir(base))
	result, err := c.Run(context.Background())
	require.NoError(t, err, "Sweep returned an error")

	require.Equal(t, []Point{
		{Param: 256, Raw: 2560, Normalized: 10},
		{Param: 768, Raw: 7680, Normalized: 10},
	}, result.Points)

	require.Len(t, result.Failures, 1)
	require.Equal(t, 512, result.Failures[0].Param)
	require.Equal(t, "compile_failed", result.Failures[0].Kind)
	require.Equal(t, "error: injected failure", result.Failures[0].Detail)

	require.Equal(t, "capacity", result.Experiment)
	require.False(t, result.Cancelled)
	require.False(t, result.Finished.Before(result.Started))

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	require.Empty(t, entries, "Working directory was not removed")
}

func TestRunAssociativity(t *testing.T) {
	m := &fixedMeasurer{raw: 4000}
	cfg := Config{
		Experiment:    Associativity,
		Range:         Range{Start: 1, Stop: 8, Step: 1},
		ChainLength:   400,
		PaddingOffset: DefaultPaddingOffset,
	}

	c := NewController(skeleton.Parse("test", testSkeleton), m, cfg, WithWorkDir(t.TempDir()))
	result, err := c.Run(context.Background())
	require.NoError(t, err, "Sweep returned an error")

	require.Len(t, result.Points, 7)
	for i, point := range result.Points {
		require.Equal(t, i+2, point.Param, "Points are out of order")
		require.Equal(t, 10.0, point.Normalized)
	}

	require.Len(t, result.Failures, 1)
	require.Equal(t, Failure{Param: 1, Kind: "precondition", Detail: "associativity must be at least 2", Err: result.Failures[0].Err}, result.Failures[0])
	require.NotContains(t, m.labels, "btb_1_assoc", "Rejected point reached the runner")
}

func TestRunTemplateFailure(t *testing.T) {
	m := &fixedMeasurer{raw: 1}
	cfg := Config{
		Experiment: Capacity,
		Range:      Range{Start: 1, Stop: 2, Step: 1},
		Padding:    2,
	}

	// padding without a <nop> slot cannot be rendered
	c := NewController(skeleton.Parse("test", "<label>"), m, cfg, WithWorkDir(t.TempDir()))
	result, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Points)
	require.Len(t, result.Failures, 2)
	require.Equal(t, "template", result.Failures[0].Kind)
	require.Empty(t, m.labels)
}

func TestRunCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := &fixedMeasurer{raw: 100}
	cfg := Config{Experiment: Capacity, Range: Range{Start: 1, Stop: 10, Step: 1}}

	c := NewController(skeleton.Parse("test", testSkeleton), m, cfg,
		WithWorkDir(t.TempDir()),
		WithObserver(func(p Point) {
			if p.Param == 2 {
				cancel()
			}
		}))

	result, err := c.Run(ctx)
	require.NoError(t, err)
	require.True(t, result.Cancelled)
	require.Len(t, result.Points, 2)
	require.Equal(t, []string{"btb_1_capacity", "btb_2_capacity"}, m.labels)
}

func TestRunUnwritableWorkDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	c := NewController(skeleton.Parse("test", testSkeleton), &fixedMeasurer{}, Config{
		Experiment: Capacity,
		Range:      Range{Start: 1, Stop: 1, Step: 1},
	}, WithWorkDir(file))

	_, err := c.Run(context.Background())
	require.Error(t, err, "Unusable working directory was not reported")
}

func TestRunInvalidConfig(t *testing.T) {
	c := NewController(skeleton.Parse("test", testSkeleton), &fixedMeasurer{}, Config{
		Experiment: Associativity,
		Range:      Range{Start: 2, Stop: 4, Step: 1},
	}, WithWorkDir(t.TempDir()))

	_, err := c.Run(context.Background())
	require.EqualError(t, err, "associativity sweep needs a chain length of at least 1, got 0")
}

func TestParseExperiment(t *testing.T) {
	e, err := ParseExperiment("associativity")
	require.NoError(t, err)
	require.Equal(t, Associativity, e)

	_, err = ParseExperiment("tag_bits")
	require.EqualError(t, err, `unknown experiment "tag_bits"`)
}
