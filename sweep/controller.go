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

// Package sweep enumerates an experiment's parameter range and measures
// one generated benchmark per point, strictly one point at a time.
package sweep

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/vhive-serverless/btbench/runner"
	"github.com/vhive-serverless/btbench/skeleton"
)

// Config describes one sweep.
type Config struct {
	Experiment Experiment
	Range      Range
	Variant    skeleton.Variant
	// Padding is the fixed no-op count of capacity sweeps.
	Padding int
	// ChainLength is the fixed branch count of associativity sweeps.
	ChainLength int
	// PaddingOffset is subtracted from the associativity to get the padding.
	PaddingOffset int
	// Normalize defaults to NormalizerFor(cfg).
	Normalize Normalizer
}

// Measurer compiles and runs one generated source in workDir.
type Measurer interface {
	Measure(ctx context.Context, workDir, source, label string) (uint64, error)
}

// Point is one successfully measured sweep point.
type Point struct {
	Param      int     `json:"param"`
	Raw        uint64  `json:"raw_cycles"`
	Normalized float64 `json:"normalized_cycles"`
}

// Failure is one sweep point that could not be measured.
type Failure struct {
	Param  int    `json:"param"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
	Err    error  `json:"-"`
}

// Result holds the points of a sweep in enumeration order and the
// points that failed.
type Result struct {
	Experiment string    `json:"experiment"`
	Variant    string    `json:"variant"`
	Skeleton   string    `json:"skeleton"`
	HostCPU    string    `json:"host_cpu"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Cancelled  bool      `json:"cancelled"`
	Points     []Point   `json:"points"`
	Failures   []Failure `json:"failures"`
}

// Controller runs sweeps.
type Controller struct {
	skel     *skeleton.Skeleton
	measurer Measurer
	cfg      Config
	workDir  string
	observer func(Point)
}

// Option configures a Controller.
type Option func(*Controller)

// WithWorkDir sets the directory under which every sweep creates its
// private working directory. Defaults to os.TempDir().
func WithWorkDir(dir string) Option {
	return func(c *Controller) {
		c.workDir = dir
	}
}

// WithObserver registers a callback invoked after every measured point.
func WithObserver(fn func(Point)) Option {
	return func(c *Controller) {
		c.observer = fn
	}
}

// NewController returns a controller sweeping cfg over skel.
func NewController(skel *skeleton.Skeleton, m Measurer, cfg Config, opts ...Option) *Controller {
	if cfg.Normalize == nil {
		cfg.Normalize = NormalizerFor(&cfg)
	}

	c := &Controller{
		skel:     skel,
		measurer: m,
		cfg:      cfg,
		workDir:  os.TempDir(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run measures every point of the configured range in ascending order.
// A point that fails is recorded in Result.Failures and the sweep goes
// on. Cancelling ctx stops the sweep at the next point boundary and the
// partial result is returned with Cancelled set. Only an invalid
// configuration or an unusable working directory makes Run return an
// error; the result measured so far is returned along with it.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	params, err := c.cfg.Range.Values()
	if err != nil {
		return nil, errors.Wrap(err, "invalid sweep range")
	}
	if c.cfg.Experiment == Associativity && c.cfg.ChainLength < 1 {
		return nil, errors.Errorf("associativity sweep needs a chain length of at least 1, got %d", c.cfg.ChainLength)
	}

	dir, err := c.acquireWorkDir()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).Warnf("Failed removing working directory %s", dir)
		}
	}()

	logger := log.WithFields(log.Fields{
		"experiment": c.cfg.Experiment.String(),
		"skeleton":   c.skel.Name(),
	})

	result := &Result{
		Experiment: c.cfg.Experiment.String(),
		Variant:    c.cfg.Variant.String(),
		Skeleton:   c.skel.Name(),
		HostCPU:    hostCPU(),
		Started:    time.Now(),
		Points:     make([]Point, 0, len(params)),
	}
	defer func() {
		result.Finished = time.Now()
	}()

	logger.Infof("Starting sweep over %d points in %s", len(params), dir)

	for _, param := range params {
		if ctx.Err() != nil {
			result.Cancelled = true
			logger.Warnf("Sweep cancelled before parameter %d", param)
			break
		}

		// a started point always runs to completion and cleanup
		point, err := c.runPoint(context.WithoutCancel(ctx), dir, param)
		if err != nil {
			failure, ok := newFailure(param, err)
			if !ok {
				return result, errors.Wrapf(err, "sweep aborted at parameter %d", param)
			}
			result.Failures = append(result.Failures, failure)
			logger.WithFields(log.Fields{"param": param, "kind": failure.Kind}).Warnf("Point failed: %v", err)
			continue
		}

		result.Points = append(result.Points, point)
		logger.WithFields(log.Fields{"param": param, "raw": point.Raw}).Debugf("Normalized cycles %.3f", point.Normalized)
		if c.observer != nil {
			c.observer(point)
		}
	}

	logger.Infof("Sweep finished: %d measured, %d failed", len(result.Points), len(result.Failures))

	return result, nil
}

func (c *Controller) runPoint(ctx context.Context, dir string, param int) (Point, error) {
	p, err := c.cfg.Params(param)
	if err != nil {
		return Point{}, err
	}

	source, err := c.skel.Render(p, c.cfg.Variant)
	if err != nil {
		return Point{}, err
	}

	raw, err := c.measurer.Measure(ctx, dir, source, c.cfg.Label(param))
	if err != nil {
		return Point{}, err
	}

	return Point{
		Param:      param,
		Raw:        raw,
		Normalized: c.cfg.Normalize(raw, param),
	}, nil
}

func (c *Controller) acquireWorkDir() (string, error) {
	if err := os.MkdirAll(c.workDir, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create working directory %q", c.workDir)
	}

	dir := filepath.Join(c.workDir, "btbench-"+uuid.New().String())
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "working directory %q is not writable", c.workDir)
	}
	return dir, nil
}

// newFailure classifies a per-point error. Errors of any other type are
// not point failures and abort the sweep.
func newFailure(param int, err error) (Failure, bool) {
	var (
		precondErr *PreconditionError
		tmplErr    *skeleton.TemplateError
		runErr     *runner.RunError
	)

	switch {
	case errors.As(err, &precondErr):
		return Failure{Param: param, Kind: "precondition", Detail: precondErr.Reason, Err: err}, true
	case errors.As(err, &tmplErr):
		return Failure{Param: param, Kind: "template", Detail: tmplErr.Error(), Err: err}, true
	case errors.As(err, &runErr):
		return Failure{Param: param, Kind: runErr.Kind.String(), Detail: runErr.Detail, Err: err}, true
	}
	return Failure{}, false
}
