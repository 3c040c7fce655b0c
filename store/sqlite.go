/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records in the sketches table of a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens the database at dsn and creates the sketches table if needed.
func NewSQLiteStore(ctx context.Context, dsn string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if dsn == ":memory:" {
		// each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	} else {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				logger.Warn("sqlite pragma failed", "pragma", pragma, "error", err)
			}
		}
	}
	s := &SQLiteStore{db: db, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("opened sqlite sketch store", "dsn", dsn)
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sketches (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			family TEXT NOT NULL,
			data BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS sketches_family ON sketches(family);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create sketches table: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying database, for example to run sketch SQL functions
// over stored images.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Put(ctx context.Context, r Record) error {
	r = stamp(r)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sketches(id, name, family, data, updated_at)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(id)
		DO UPDATE SET name=excluded.name, family=excluded.family, data=excluded.data, updated_at=excluded.updated_at`,
		r.ID, r.Name, r.Family, r.Data, r.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store sketch %s: %w", r.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	var updated int64
	if err := row.Scan(&r.ID, &r.Name, &r.Family, &r.Data, &updated); err != nil {
		return Record{}, err
	}
	r.UpdatedAt = time.Unix(0, updated).UTC()
	return r, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, family, data, updated_at FROM sketches WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load sketch %s: %w", id, err)
	}
	return r, nil
}

func (s *SQLiteStore) List(ctx context.Context, family string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, family, data, updated_at FROM sketches
		WHERE ? = '' OR family = ?
		ORDER BY id`, family, family)
	if err != nil {
		return nil, fmt.Errorf("failed to list sketches: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list sketches: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sketches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sketch %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
