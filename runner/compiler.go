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

import (
	"bytes"
	"context"
	"os/exec"

	log "github.com/sirupsen/logrus"
)

// DefaultFlags keep the optimizer away from the measured branch chain:
// no auto-vectorization, native ISA, a fixed language standard and debug
// info for diagnosing failures.
var DefaultFlags = []string{
	"-fno-tree-vectorize",
	"-march=native",
	"-std=c11",
	"-g",
}

// Compiler turns a source file into an executable at outPath. On failure
// it returns the compiler diagnostics alongside the error.
type Compiler interface {
	Compile(ctx context.Context, srcPath, outPath string) (string, error)
}

// GCC invokes a gcc-compatible compiler driver.
type GCC struct {
	// Path of the driver, "gcc" if empty.
	Path string
	// ExtraFlags are appended after DefaultFlags.
	ExtraFlags []string
}

// Args returns the argument list passed to the driver.
func (g *GCC) Args(srcPath, outPath string) []string {
	args := make([]string, 0, len(DefaultFlags)+len(g.ExtraFlags)+3)
	args = append(args, DefaultFlags...)
	args = append(args, g.ExtraFlags...)
	return append(args, "-o", outPath, srcPath)
}

// Compile runs the driver and returns its combined output.
func (g *GCC) Compile(ctx context.Context, srcPath, outPath string) (string, error) {
	path := g.Path
	if path == "" {
		path = "gcc"
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, path, g.Args(srcPath, outPath)...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay
	log.Debugf("Compiler command: %s", cmd)

	err := cmd.Run()
	return out.String(), err
}
