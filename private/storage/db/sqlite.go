// Copyright 2025 Open E-Line Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package db provides sqlite database helpers.
package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite" // sqlite driver
)

// Sqlite is a sqlite database handle with a single writer connection.
type Sqlite struct {
	*sql.DB
}

// NewSqlite opens a sqlite database at the given path. The connection pool is
// limited to one open connection to avoid write contention.
//
// Transactions started on this database are started in immediate mode, so
// that a locked database honors the busy timeout instead of failing with
// SQLITE_BUSY on transaction upgrade. The WAL journal mode is used so that
// readers do not block the writer and vice versa.
func NewSqlite(path string) (*Sqlite, error) {
	noFile, ok := strings.CutPrefix(path, "file:")

	connParams := make(url.Values)
	connParams.Add("_txlock", "immediate")
	connParams.Add("_pragma", "journal_mode(WAL)")
	connParams.Add("_pragma", "busy_timeout(1000)")
	connParams.Add("_pragma", "synchronous(NORMAL)")
	connParams.Add("_pragma", "foreign_keys(1)")
	if strings.Contains(noFile, ":memory:") || noFile == "" {
		return nil, fmt.Errorf("use an explicitly named database, got %q", path)
	}

	connURL := path + "?" + connParams.Encode()
	if !ok {
		connURL = "file:" + connURL
	}

	conn, err := sql.Open("sqlite", connURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	return &Sqlite{DB: conn}, nil
}

// Setup checks the schema version of the database and applies the schema if
// the database is new. A version mismatch with an existing database is an
// error; there is no migration support.
func (db *Sqlite) Setup(schema string, schemaVersion int) error {
	var existingVersion int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&existingVersion); err != nil {
		return fmt.Errorf("checking database schema version: %w", err)
	}
	switch {
	case existingVersion == 0:
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("writing schema version: %w", err)
		}
		return nil
	case existingVersion != schemaVersion:
		return fmt.Errorf("database schema version mismatch: expected %d, have %d",
			schemaVersion, existingVersion,
		)
	default:
		return nil
	}
}
