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

// Package store keeps sweep results in a SQLite database.
package store

import (
	"database/sql"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"

	"github.com/vhive-serverless/btbench/sweep"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		experiment TEXT NOT NULL,
		variant    TEXT NOT NULL,
		skeleton   TEXT NOT NULL,
		host_cpu   TEXT NOT NULL,
		started    INTEGER NOT NULL,
		finished   INTEGER NOT NULL,
		cancelled  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS points (
		run_id     TEXT NOT NULL REFERENCES runs(id),
		param      INTEGER NOT NULL,
		raw        INTEGER NOT NULL,
		normalized REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS failures (
		run_id TEXT NOT NULL REFERENCES runs(id),
		param  INTEGER NOT NULL,
		kind   TEXT NOT NULL,
		detail TEXT NOT NULL
	)`,
}

// Run is a stored sweep header.
type Run struct {
	ID         string
	Experiment string
	Variant    string
	Skeleton   string
	HostCPU    string
	Started    time.Time
	Finished   time.Time
	Cancelled  bool
}

// Store is a SQLite database of sweep runs.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %q", path)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to create tables in %q", path)
		}
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveResult stores r under a new run ID and returns the ID.
func (s *Store) SaveResult(r *sweep.Result) (string, error) {
	id := xid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		return "", errors.Wrap(err, "failed to begin transaction")
	}

	if err := insertResult(tx, id, r); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.WithError(rbErr).Warn("Failed to roll back transaction")
		}
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "failed to commit transaction")
	}

	log.Debugf("Stored run %s with %d points in %s", id, len(r.Points), s.path)
	return id, nil
}

func insertResult(tx *sql.Tx, id string, r *sweep.Result) error {
	_, err := tx.Exec(
		`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Experiment, r.Variant, r.Skeleton, r.HostCPU,
		r.Started.UnixNano(), r.Finished.UnixNano(), r.Cancelled,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert run")
	}

	pointStmt, err := tx.Prepare(`INSERT INTO points VALUES (?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare statement")
	}
	defer pointStmt.Close()

	for _, p := range r.Points {
		if _, err := pointStmt.Exec(id, p.Param, int64(p.Raw), p.Normalized); err != nil {
			return errors.Wrapf(err, "failed to insert point %d", p.Param)
		}
	}

	failureStmt, err := tx.Prepare(`INSERT INTO failures VALUES (?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare statement")
	}
	defer failureStmt.Close()

	for _, f := range r.Failures {
		if _, err := failureStmt.Exec(id, f.Param, f.Kind, f.Detail); err != nil {
			return errors.Wrapf(err, "failed to insert failure %d", f.Param)
		}
	}

	return nil
}

// Runs lists stored runs, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, experiment, variant, skeleton, host_cpu, started, finished, cancelled
		FROM runs ORDER BY started, id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			started, finished int64
		)
		err := rows.Scan(&run.ID, &run.Experiment, &run.Variant, &run.Skeleton,
			&run.HostCPU, &started, &finished, &run.Cancelled)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		run.Started = time.Unix(0, started)
		run.Finished = time.Unix(0, finished)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Points returns the points of a run in ascending parameter order.
func (s *Store) Points(runID string) ([]sweep.Point, error) {
	rows, err := s.db.Query(
		`SELECT param, raw, normalized FROM points WHERE run_id = ? ORDER BY param`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query points of run %s", runID)
	}
	defer rows.Close()

	var points []sweep.Point
	for rows.Next() {
		var (
			p   sweep.Point
			raw int64
		)
		if err := rows.Scan(&p.Param, &raw, &p.Normalized); err != nil {
			return nil, errors.Wrap(err, "failed to scan point")
		}
		p.Raw = uint64(raw)
		points = append(points, p)
	}
	return points, rows.Err()
}

// Failures returns the failed points of a run in ascending parameter order.
func (s *Store) Failures(runID string) ([]sweep.Failure, error) {
	rows, err := s.db.Query(
		`SELECT param, kind, detail FROM failures WHERE run_id = ? ORDER BY param`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query failures of run %s", runID)
	}
	defer rows.Close()

	var failures []sweep.Failure
	for rows.Next() {
		var f sweep.Failure
		if err := rows.Scan(&f.Param, &f.Kind, &f.Detail); err != nil {
			return nil, errors.Wrap(err, "failed to scan failure")
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}
