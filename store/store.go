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

// Package store persists serialized sketches. Every backend implements Store;
// Open selects one from a Config.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNotFound is returned when no sketch has the requested id.
var ErrNotFound = errors.New("store: sketch not found")

// Record is one stored sketch. Data is the serialized sketch image.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Family    string    `json:"family"`
	Data      []byte    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r Record) clone() Record {
	r.Data = append([]byte(nil), r.Data...)
	return r
}

// Store is a catalog of serialized sketches keyed by id.
type Store interface {
	// Put inserts or replaces the record with r.ID. A zero UpdatedAt is set to now.
	Put(ctx context.Context, r Record) error
	Get(ctx context.Context, id string) (Record, error)
	// List returns the records of one family, or all records for "", ordered by id.
	List(ctx context.Context, family string) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Driver is one of "memory", "sqlite" or "redis".
	Driver string
	// DSN is the SQLite database path, ":memory:" for a private in-memory database.
	DSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Prefix is prepended to every Redis key.
	Prefix  string
	Timeout time.Duration
}

// Open creates the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case "", "memory":
		logger.Info("using in-memory sketch store")
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.DSN, logger)
	case "redis":
		return NewRedisStore(ctx, RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Database: cfg.RedisDB,
			Prefix:   cfg.Prefix,
			Timeout:  cfg.Timeout,
		}, logger)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func stamp(r Record) Record {
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	return r
}
