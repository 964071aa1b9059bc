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

// Package report emits sweep results as CSV rows and PNG charts.
package report

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/vhive-serverless/btbench/sweep"
)

// WriteCSV writes one headerless "param,normalized" row per point, in order.
func WriteCSV(w io.Writer, points []sweep.Point) error {
	cw := csv.NewWriter(w)
	for _, p := range points {
		record := []string{
			strconv.Itoa(p.Param),
			strconv.FormatFloat(p.Normalized, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "failed writing csv row")
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFailures writes one "param,kind,detail" row per failed point.
func WriteFailures(w io.Writer, failures []sweep.Failure) error {
	cw := csv.NewWriter(w)
	for _, f := range failures {
		if err := cw.Write([]string{strconv.Itoa(f.Param), f.Kind, f.Detail}); err != nil {
			return errors.Wrap(err, "failed writing csv row")
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses rows written by WriteCSV. Spaces after the comma are
// accepted. Raw cycle counts are not part of the format and read as zero.
func ReadCSV(r io.Reader) ([]sweep.Point, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed reading csv")
	}

	points := make([]sweep.Point, 0, len(records))
	for i, record := range records {
		param, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: bad parameter", i+1)
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: bad value", i+1)
		}
		points = append(points, sweep.Point{Param: param, Normalized: value})
	}
	return points, nil
}

// SaveCSV writes points to fileName.
func SaveCSV(fileName string, points []sweep.Point) error {
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "failed creating %q", fileName)
	}
	defer f.Close()

	if err := WriteCSV(f, points); err != nil {
		return err
	}
	return f.Close()
}

// LoadCSV reads points from fileName.
func LoadCSV(fileName string) ([]sweep.Point, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed opening %q", fileName)
	}
	defer f.Close()

	return ReadCSV(f)
}
