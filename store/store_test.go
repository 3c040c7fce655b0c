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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	a := Record{ID: uuid.NewString(), Name: "latency", Family: "countmin", Data: []byte{1, 2, 3}}
	b := Record{ID: uuid.NewString(), Name: "users", Family: "fm", Data: []byte{4, 5}}
	require.NoError(t, s.Put(ctx, a))
	require.NoError(t, s.Put(ctx, b))

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Name, got.Name)
	assert.Equal(t, a.Family, got.Family)
	assert.Equal(t, a.Data, got.Data)
	assert.False(t, got.UpdatedAt.IsZero())

	got.Data[0] = 99
	again, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, byte(1), again.Data[0])

	a.Data = []byte{7}
	a.UpdatedAt = time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	require.NoError(t, s.Put(ctx, a))
	got, err = s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, got.Data)
	assert.True(t, a.UpdatedAt.Equal(got.UpdatedAt))

	cms, err := s.List(ctx, "countmin")
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, r := range cms {
		ids[r.ID] = true
		assert.Equal(t, "countmin", r.Family)
	}
	assert.True(t, ids[a.ID])
	assert.False(t, ids[b.ID])

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 2)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}

	require.NoError(t, s.Delete(ctx, a.ID))
	_, err = s.Get(ctx, a.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Delete(ctx, a.ID), ErrNotFound))
	require.NoError(t, s.Delete(ctx, b.ID))
}

func TestMemoryStore(t *testing.T) {
	s, err := Open(context.Background(), Config{Driver: "memory"}, nil)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := Open(context.Background(), Config{Driver: "sqlite", DSN: ":memory:"}, slog.Default())
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sketches.db")
	s, err := NewSQLiteStore(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, Record{ID: "x", Name: "n", Family: "fm", Data: []byte{1}}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(ctx, path, slog.Default())
	require.NoError(t, err)
	defer s.Close()
	r, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, r.Data)
}

func TestSQLiteStoreLogsFailedPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-db")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("garbage!"), 512), 0o644))

	var logs bytes.Buffer
	_, err := NewSQLiteStore(context.Background(), path, slog.New(slog.NewTextHandler(&logs, nil)))
	assert.Error(t, err)
	assert.Contains(t, logs.String(), "sqlite pragma failed")
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("SKETCH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SKETCH_TEST_REDIS_ADDR not set")
	}
	s, err := Open(context.Background(), Config{
		Driver:    "redis",
		RedisAddr: addr,
		Prefix:    "sketches-test:" + uuid.NewString() + ":",
	}, slog.Default())
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "etcd"}, nil)
	assert.Error(t, err)
}
