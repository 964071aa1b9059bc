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

package runner

import "fmt"

// Kind tags the step of a measurement that failed.
type Kind int

const (
	// CompileFailed means the compiler rejected the generated source.
	CompileFailed Kind = iota + 1
	// ExecFailed means the binary crashed, timed out or could not start.
	ExecFailed
	// BadOutput means the binary did not print a single non-negative integer.
	BadOutput
)

func (k Kind) String() string {
	switch k {
	case CompileFailed:
		return "compile_failed"
	case ExecFailed:
		return "exec_failed"
	case BadOutput:
		return "bad_output"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// RunError is returned by Measure for a point that could not be measured.
// Detail holds the compiler diagnostics, the execution failure reason or
// the raw program output depending on Kind.
type RunError struct {
	Kind   Kind
	Label  string
	Detail string
	Err    error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Label, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Detail != "" {
		msg += fmt.Sprintf(" (%s)", e.Detail)
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}
