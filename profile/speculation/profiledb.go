// Copyright 2024 Fantom Foundation
// This file is part of Specula, a speculative block executor for Sonic
//
// Specula is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Specula is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Specula. If not, see <http://www.gnu.org/licenses/>.

// Package speculation records per-block statistics of speculative block
// execution in a SQLite database.
package speculation

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// bufferSize is the number of records kept in memory before they are written
	bufferSize = 1000

	insertSQL = `
INSERT INTO speculationprofile (
	block, numTx, workers, conflict, numConflicts, migrations, gasUsed, duration
) VALUES (
	?, ?, ?, ?, ?, ?, ?, ?
)
`

	createSQL = `
	PRAGMA journal_mode = MEMORY;
	CREATE TABLE IF NOT EXISTS speculationprofile (
	block INTEGER,
	numTx INTEGER,
	workers INTEGER,
	conflict BOOLEAN,
	numConflicts INTEGER,
	migrations INTEGER,
	gasUsed INTEGER,
	duration INTEGER);
`

	deleteSQL = `
	DELETE FROM speculationprofile
	WHERE block >= $1 AND block <= $2
`

	summarySQL = `
	SELECT COUNT(*), COALESCE(SUM(numTx), 0), COALESCE(SUM(conflict), 0), COALESCE(SUM(migrations), 0), COALESCE(SUM(duration), 0)
	FROM speculationprofile
`
)

// ProfileData is the speculation profile of a single block.
type ProfileData struct {
	Block        uint64
	NumTx        int
	Workers      int
	Conflict     bool
	NumConflicts int
	Migrations   int
	GasUsed      uint64
	Duration     time.Duration
}

// Summary aggregates all records of a profile database.
type Summary struct {
	Blocks     int64
	Txs        int64
	Conflicts  int64
	Migrations int64
	Duration   time.Duration
}

// ProfileDB is a database of ProfileData records. It is not thread safe.
type ProfileDB struct {
	sql    *sql.DB
	stmt   *sql.Stmt
	buffer []ProfileData
}

// NewProfileDB opens the profile database in the given file, creating the
// schema if needed.
func NewProfileDB(dbFile string) (*ProfileDB, error) {
	sqlDB, err := sql.Open("sqlite3", dbFile)
	if err != nil {
		return nil, err
	}
	if _, err = sqlDB.Exec(createSQL); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("cannot create profile schema; %w", err)
	}
	stmt, err := sqlDB.Prepare(insertSQL)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return &ProfileDB{
		sql:    sqlDB,
		stmt:   stmt,
		buffer: make([]ProfileData, 0, bufferSize),
	}, nil
}

// Close flushes all buffered records and closes the database.
func (db *ProfileDB) Close() error {
	defer func() {
		db.stmt.Close()
		db.sql.Close()
	}()
	return db.Flush()
}

// Add buffers a record. Once the buffer is full, the records are written to the database.
func (db *ProfileDB) Add(data ProfileData) error {
	db.buffer = append(db.buffer, data)
	if len(db.buffer) == cap(db.buffer) {
		if err := db.Flush(); err != nil {
			return fmt.Errorf("unable to flush profile data; %w", err)
		}
	}
	return nil
}

// Flush writes all buffered records inside a single transaction.
func (db *ProfileDB) Flush() error {
	tx, err := db.sql.Begin()
	if err != nil {
		return err
	}
	stmt := tx.Stmt(db.stmt)
	for _, data := range db.buffer {
		_, err := stmt.Exec(data.Block, data.NumTx, data.Workers, data.Conflict, data.NumConflicts, data.Migrations, data.GasUsed, data.Duration.Nanoseconds())
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	db.buffer = db.buffer[:0]
	return tx.Commit()
}

// DeleteByBlockRange deletes the records of the blocks in [first,last].
func (db *ProfileDB) DeleteByBlockRange(first, last uint64) (int64, error) {
	res, err := db.sql.Exec(deleteSQL, first, last)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Summarize aggregates all written records.
func (db *ProfileDB) Summarize() (Summary, error) {
	var res Summary
	var duration int64
	row := db.sql.QueryRow(summarySQL)
	if err := row.Scan(&res.Blocks, &res.Txs, &res.Conflicts, &res.Migrations, &duration); err != nil {
		return Summary{}, err
	}
	res.Duration = time.Duration(duration)
	return res, nil
}
