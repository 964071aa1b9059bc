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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/vhive-serverless/btbench/sweep"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "gcc", cfg.Compiler)
	require.Equal(t, sweep.Range{Start: 256, Stop: 8192, Step: 256}, cfg.Range(sweep.Capacity))
	require.Equal(t, 2, cfg.CapacityPadding)
	require.Equal(t, sweep.DefaultPaddingOffset, cfg.PaddingOffset)
	require.Equal(t, -1, cfg.PinnedCPU)
	require.Equal(t, 30*time.Second, cfg.Timeout())
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"compiler": "clang",
		"extra_flags": ["-O2"],
		"assoc_range": {"start": 4, "stop": 32, "step": 4},
		"padding_offset": 3,
		"repeats": 5
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err, "Failed to load config")
	require.Equal(t, "clang", cfg.Compiler)
	require.Equal(t, []string{"-O2"}, cfg.ExtraFlags)
	require.Equal(t, sweep.Range{Start: 4, Stop: 32, Step: 4}, cfg.Range(sweep.Associativity))
	require.Equal(t, 3, cfg.PaddingOffset)
	require.Equal(t, 5, cfg.Repeats)
	// untouched fields keep their defaults
	require.Equal(t, "labels", cfg.Variant)
	require.Equal(t, 1024, cfg.AssocChainLength)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `{"repeats": `))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `{"repeats": 0}`))
	require.EqualError(t, errors.Cause(err), "repeats must be at least 1, got 0")

	_, err = LoadConfig(writeConfig(t, `{"normalize": "median"}`))
	require.Error(t, err)
}
