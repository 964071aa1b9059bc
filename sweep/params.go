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
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/vhive-serverless/btbench/skeleton"
)

// DefaultPaddingOffset is the number of fixed addressing slots the
// built-in skeletons place before the first padding token. It was tuned
// empirically for those skeletons and is not a property of the hardware.
const DefaultPaddingOffset = 2

// MaxPoints is the largest number of points a single range may hold.
const MaxPoints = 1 << 20

// Experiment is the dimension a sweep varies.
type Experiment int

const (
	// Capacity varies the branch count (chain length).
	Capacity Experiment = iota
	// Associativity varies the padding between consecutive targets.
	Associativity
)

func (e Experiment) String() string {
	switch e {
	case Capacity:
		return "capacity"
	case Associativity:
		return "assoc"
	default:
		return fmt.Sprintf("Experiment(%d)", int(e))
	}
}

// ParseExperiment converts the textual form of an experiment.
func ParseExperiment(s string) (Experiment, error) {
	switch strings.ToLower(s) {
	case "capacity":
		return Capacity, nil
	case "assoc", "associativity":
		return Associativity, nil
	}
	return 0, errors.Errorf("unknown experiment %q", s)
}

// Range enumerates Start, Start+Step, ... up to and including Stop.
type Range struct {
	Start int `json:"start"`
	Stop  int `json:"stop"`
	Step  int `json:"step"`
}

// Values returns the parameters of r in ascending order.
func (r Range) Values() ([]int, error) {
	if r.Step <= 0 {
		return nil, errors.Errorf("range step %d must be positive", r.Step)
	}
	if r.Start > r.Stop {
		return nil, errors.Errorf("range start %d is greater than stop %d", r.Start, r.Stop)
	}

	// unsigned difference cannot overflow for Start <= Stop
	count := (uint64(r.Stop)-uint64(r.Start))/uint64(r.Step) + 1
	if count > MaxPoints {
		return nil, errors.Errorf("range has %d points, more than %d", count, MaxPoints)
	}

	values := make([]int, count)
	for i := range values {
		values[i] = r.Start + i*r.Step
	}
	return values, nil
}

// PreconditionError reports a parameter that cannot be turned into
// generation parameters. It is detected before rendering.
type PreconditionError struct {
	Param  int
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("parameter %d: %s", e.Param, e.Reason)
}

// DerivePadding returns the padding count for a requested associativity:
// assoc minus the skeleton's fixed slot offset.
func DerivePadding(assoc, offset int) (int, error) {
	if assoc < offset {
		return 0, &PreconditionError{
			Param:  assoc,
			Reason: fmt.Sprintf("associativity must be at least %d", offset),
		}
	}
	return assoc - offset, nil
}

// Params derives the generation parameters of one sweep point.
func (c *Config) Params(param int) (skeleton.Params, error) {
	switch c.Experiment {
	case Capacity:
		if param < 1 {
			return skeleton.Params{}, &PreconditionError{Param: param, Reason: "branch count must be at least 1"}
		}
		return skeleton.Params{BranchCount: param, PaddingCount: c.Padding}, nil
	case Associativity:
		padding, err := DerivePadding(param, c.PaddingOffset)
		if err != nil {
			return skeleton.Params{}, err
		}
		return skeleton.Params{BranchCount: c.ChainLength, PaddingCount: padding}, nil
	}
	return skeleton.Params{}, errors.Errorf("unknown experiment %v", c.Experiment)
}

// Label names the artifacts of one sweep point, e.g. btb_512_capacity.
func (c *Config) Label(param int) string {
	return fmt.Sprintf("btb_%d_%s", param, c.Experiment)
}
