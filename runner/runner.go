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

// Package runner compiles generated benchmark sources, executes the
// resulting binaries and parses the cycle count they print.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-multierror/multierror"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const defaultTimeout = 30 * time.Second

// waitDelay bounds how long Wait blocks on pipes held open by descendants
// of a killed process.
const waitDelay = 500 * time.Millisecond

var labelRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// Runner measures one generated source at a time. Executions of the
// compiled binaries are serialized even when a Runner is shared, since
// overlapping timing binaries disturb each other's branch predictors.
type Runner struct {
	compiler Compiler
	repeats  int
	timeout  time.Duration
	cpu      int
	execSlot *semaphore.Weighted
}

// Option configures a Runner.
type Option func(*Runner)

// WithCompiler sets the compiler, GCC with DefaultFlags otherwise.
func WithCompiler(c Compiler) Option {
	return func(r *Runner) {
		r.compiler = c
	}
}

// WithRepeats executes every compiled binary n times and reports the
// median cycle count.
func WithRepeats(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.repeats = n
		}
	}
}

// WithTimeout bounds the compilation and every execution of a benchmark.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithCPU pins the measured binary to the given CPU. Negative disables pinning.
func WithCPU(cpu int) Option {
	return func(r *Runner) {
		r.cpu = cpu
	}
}

// NewRunner returns a Runner with the given options applied.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		compiler: &GCC{},
		repeats:  1,
		timeout:  defaultTimeout,
		cpu:      -1,
		execSlot: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Artifacts returns the generated source and executable paths for label.
func Artifacts(workDir, label string) (string, string) {
	return filepath.Join(workDir, label+".c"), filepath.Join(workDir, label)
}

// Measure writes source to workDir, compiles and runs it, and returns the
// cycle count printed by the binary. Both artifacts are removed before
// Measure returns, whatever the outcome. Point failures are *RunError.
func (r *Runner) Measure(ctx context.Context, workDir, source, label string) (cycles uint64, err error) {
	if !labelRe.MatchString(label) {
		return 0, errors.Errorf("invalid artifact label %q", label)
	}

	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return 0, errors.Wrap(err, "failed to resolve working directory")
	}

	logger := log.WithFields(log.Fields{"label": label})
	srcPath, binPath := Artifacts(workDir, label)

	defer func() {
		cleanupErr := removeArtifacts(srcPath, binPath)
		if cleanupErr == nil {
			return
		}
		if err != nil {
			logger.WithError(cleanupErr).Warn("Failed removing artifacts")
			return
		}
		cycles, err = 0, errors.Wrapf(cleanupErr, "failed to remove artifacts of %s", label)
	}()

	return r.measure(ctx, srcPath, binPath, source, label)
}

func (r *Runner) measure(ctx context.Context, srcPath, binPath, source, label string) (uint64, error) {
	if err := os.WriteFile(srcPath, []byte(source), 0644); err != nil {
		return 0, errors.Wrapf(err, "failed to write %q", srcPath)
	}

	tStart := time.Now()
	compileCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	diag, err := r.compiler.Compile(compileCtx, srcPath, binPath)
	if err != nil {
		detail := strings.TrimSpace(diag)
		if compileCtx.Err() == context.DeadlineExceeded {
			detail = fmt.Sprintf("compile timed out after %s", r.timeout)
		}
		return 0, &RunError{Kind: CompileFailed, Label: label, Detail: detail, Err: err}
	}
	if _, err := os.Stat(binPath); err != nil {
		return 0, &RunError{Kind: CompileFailed, Label: label, Detail: "compiler produced no executable", Err: err}
	}
	log.WithFields(log.Fields{"label": label, "elapsed": time.Since(tStart)}).Debug("Compiled benchmark")

	samples := make([]float64, 0, r.repeats)
	for i := 0; i < r.repeats; i++ {
		out, err := r.execute(ctx, binPath, label)
		if err != nil {
			return 0, err
		}

		value, err := parseCycles(out)
		if err != nil {
			return 0, &RunError{Kind: BadOutput, Label: label, Detail: strings.TrimSpace(out), Err: err}
		}
		samples = append(samples, float64(value))
	}

	if len(samples) == 1 {
		return uint64(samples[0]), nil
	}

	median, err := stats.Median(samples)
	if err != nil {
		return 0, errors.Wrap(err, "failed computing median")
	}
	return uint64(math.Round(median)), nil
}

func (r *Runner) execute(ctx context.Context, binPath, label string) (string, error) {
	if err := r.execSlot.Acquire(ctx, 1); err != nil {
		return "", &RunError{Kind: ExecFailed, Label: label, Detail: "no execution slot", Err: err}
	}
	defer r.execSlot.Release(1)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binPath)
	cmd.Dir = filepath.Dir(binPath)
	cmd.WaitDelay = waitDelay
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Debugf("Benchmark command: %s", cmd)

	if err := startPinned(cmd, r.cpu); err != nil {
		return "", &RunError{Kind: ExecFailed, Label: label, Detail: "binary could not be started", Err: err}
	}

	if err := cmd.Wait(); err != nil {
		reason := strings.TrimSpace(stderr.String())
		if ctx.Err() == context.DeadlineExceeded {
			reason = fmt.Sprintf("timed out after %s", r.timeout)
		}
		return "", &RunError{Kind: ExecFailed, Label: label, Detail: reason, Err: err}
	}

	return stdout.String(), nil
}

func parseCycles(out string) (uint64, error) {
	fields := strings.Fields(out)
	if len(fields) != 1 {
		return 0, errors.Errorf("expected a single integer, got %d fields", len(fields))
	}
	return strconv.ParseUint(fields[0], 10, 64)
}

func removeArtifacts(paths ...string) error {
	var errs []error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return multierror.Of(errs...)
}
