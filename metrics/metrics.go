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

package metrics

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the normalized cycles of one sweep.
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Median float64
	Min    float64
	Max    float64
}

// Summarize computes summary statistics over values.
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, errors.New("no values to summarize")
	}

	s := Summary{Count: len(values)}
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		s.StdDev = 0
	}

	var err error
	if s.Median, err = stats.Median(values); err != nil {
		return Summary{}, errors.Wrap(err, "failed computing median")
	}
	if s.Min, err = stats.Min(values); err != nil {
		return Summary{}, errors.Wrap(err, "failed computing minimum")
	}
	if s.Max, err = stats.Max(values); err != nil {
		return Summary{}, errors.Wrap(err, "failed computing maximum")
	}

	return s, nil
}

// Knee returns the first parameter whose value exceeds factor times the
// lowest value seen before it. On a capacity sweep this is where the
// chain stops fitting in the BTB.
func Knee(params []int, values []float64, factor float64) (int, bool) {
	if len(params) != len(values) || len(values) < 2 {
		return 0, false
	}

	baseline := values[0]
	for i := 1; i < len(values); i++ {
		if values[i] > factor*baseline {
			return params[i], true
		}
		if values[i] < baseline {
			baseline = values[i]
		}
	}
	return 0, false
}

// PrintSummary writes summaries keyed by sweep name as a table.
func PrintSummary(w io.Writer, summaries map[string]Summary) error {
	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Strings(names)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Sweep    \tPoints\tMean    \tStdDev  \tMedian  \tMin     \tMax\n")
	for _, name := range names {
		s := summaries[name]
		fmt.Fprintf(bw, "%s    \t%6d\t%8.3f\t%8.3f\t%8.3f\t%8.3f\t%8.3f\n",
			name, s.Count, s.Mean, s.StdDev, s.Median, s.Min, s.Max)
	}
	return bw.Flush()
}
