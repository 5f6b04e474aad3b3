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

// Package storage persists circuits across controller restarts. Circuits
// are stored as documents keyed by id; the indexed columns exist for
// listing and cleanup queries only.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/private/storage/db"
)

// SchemaVersion is the version of the circuit schema. A mismatch with an
// existing database is an error; there is no migration support.
const SchemaVersion = 1

// Schema is the SQL schema of the circuit store.
const Schema = `
CREATE TABLE circuits (
	evc_id TEXT NOT NULL PRIMARY KEY,
	name TEXT NOT NULL,
	archived INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL,
	data BLOB NOT NULL
);
CREATE INDEX idx_circuits_archived ON circuits(archived);
`

// Store is the sqlite circuit store.
type Store struct {
	db *db.Sqlite
}

// New opens the circuit store at the given path, creating the schema as
// needed.
func New(path string) (*Store, error) {
	sdb, err := db.NewSqlite(path)
	if err != nil {
		return nil, err
	}
	if err := sdb.Setup(Schema, SchemaVersion); err != nil {
		sdb.Close()
		return nil, err
	}
	return &Store{db: sdb}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert writes the circuit's current state.
func (s *Store) Upsert(ctx context.Context, c *circuit.EVC) error {
	rec := c.Record()
	raw, err := json.Marshal(rec)
	if err != nil {
		return db.NewInputDataError("encoding circuit", err, "evc_id", rec.ID)
	}
	archived := 0
	if rec.Archived {
		archived = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO circuits (evc_id, name, archived, updated_at, data)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(evc_id) DO UPDATE SET
		   name = excluded.name,
		   archived = excluded.archived,
		   updated_at = excluded.updated_at,
		   data = excluded.data`,
		rec.ID, rec.Name, archived, rec.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		raw,
	)
	if err != nil {
		return db.NewWriteError("upserting circuit", err, "evc_id", rec.ID)
	}
	return nil
}

// Get returns the stored record of one circuit. The second return value
// reports whether it exists.
func (s *Store) Get(ctx context.Context, id string) (circuit.Record, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM circuits WHERE evc_id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return circuit.Record{}, false, nil
	}
	if err != nil {
		return circuit.Record{}, false, db.NewReadError("reading circuit", err, "evc_id", id)
	}
	var rec circuit.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return circuit.Record{}, false, db.NewDataError("decoding circuit", err, "evc_id", id)
	}
	return rec, true, nil
}

// List returns the stored records, optionally including archived circuits.
func (s *Store) List(ctx context.Context, includeArchived bool) ([]circuit.Record, error) {
	query := "SELECT data FROM circuits"
	if !includeArchived {
		query += " WHERE archived = 0"
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, db.NewReadError("listing circuits", err)
	}
	defer rows.Close()
	var out []circuit.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, db.NewReadError("scanning circuit", err)
		}
		var rec circuit.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, db.NewDataError("decoding circuit", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, db.NewReadError("listing circuits", err)
	}
	return out, nil
}

// Delete removes a circuit from the store.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM circuits WHERE evc_id = ?", id)
	if err != nil {
		return db.NewWriteError("deleting circuit", err, "evc_id", id)
	}
	return nil
}
