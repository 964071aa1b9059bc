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

// Normalizer turns a raw cycle count measured at param into the value
// reported for that point.
type Normalizer func(raw uint64, param int) float64

// PerParameter divides the raw cycles by the swept parameter. For
// capacity sweeps this is cycles per branch.
func PerParameter(raw uint64, param int) float64 {
	if param == 0 {
		return 0
	}
	return float64(raw) / float64(param)
}

// Raw reports the cycle count unchanged.
func Raw(raw uint64, _ int) float64 {
	return float64(raw)
}

// PerBranchCount divides by a fixed chain length, for sweeps whose
// parameter is not the branch count.
func PerBranchCount(branches int) Normalizer {
	return func(raw uint64, _ int) float64 {
		return PerParameter(raw, branches)
	}
}

// NormalizerFor picks the per-branch policy of an experiment.
func NormalizerFor(cfg *Config) Normalizer {
	if cfg.Experiment == Associativity {
		return PerBranchCount(cfg.ChainLength)
	}
	return PerParameter
}
