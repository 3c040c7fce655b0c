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
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address  string
	Password string
	Database int
	// Prefix is prepended to all keys (e.g., "sketches:")
	Prefix string
	// Timeout for Redis operations
	Timeout time.Duration
}

// RedisStore keeps each record in a hash and indexes ids in one set per family.
type RedisStore struct {
	cfg    RedisConfig
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "sketches:"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to redis sketch store", "addr", cfg.Address, "prefix", cfg.Prefix)
	return &RedisStore{cfg: cfg, client: client, logger: logger}, nil
}

func (s *RedisStore) key(id string) string {
	return s.cfg.Prefix + "sketch:" + id
}

func (s *RedisStore) familyKey(family string) string {
	return s.cfg.Prefix + "family:" + family
}

func (s *RedisStore) allKey() string {
	return s.cfg.Prefix + "all"
}

func (s *RedisStore) Put(ctx context.Context, r Record) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	r = stamp(r)

	previous, err := s.client.HGet(ctx, s.key(r.ID), "family").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to store sketch %s: %w", r.ID, err)
	}

	pipe := s.client.TxPipeline()
	if previous != "" && previous != r.Family {
		pipe.SRem(ctx, s.familyKey(previous), r.ID)
	}
	pipe.HSet(ctx, s.key(r.ID),
		"name", r.Name,
		"family", r.Family,
		"data", r.Data,
		"updated_at", r.UpdatedAt.UnixNano(),
	)
	pipe.SAdd(ctx, s.familyKey(r.Family), r.ID)
	pipe.SAdd(ctx, s.allKey(), r.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store sketch %s: %w", r.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return s.load(ctx, id)
}

func (s *RedisStore) load(ctx context.Context, id string) (Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("failed to load sketch %s: %w", id, err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}
	updated, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("failed to decode sketch %s: %w", id, err)
	}
	return Record{
		ID:        id,
		Name:      fields["name"],
		Family:    fields["family"],
		Data:      []byte(fields["data"]),
		UpdatedAt: time.Unix(0, updated).UTC(),
	}, nil
}

func (s *RedisStore) List(ctx context.Context, family string) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	index := s.allKey()
	if family != "" {
		index = s.familyKey(family)
	}
	ids, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sketches: %w", err)
	}
	sort.Strings(ids)
	var out []Record
	for _, id := range ids {
		r, err := s.load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("removing stale sketch index entry", "id", id, "index", index)
			s.client.SRem(ctx, index, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	family, err := s.client.HGet(ctx, s.key(id), "family").Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete sketch %s: %w", id, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(id))
	pipe.SRem(ctx, s.familyKey(family), id)
	pipe.SRem(ctx, s.allKey(), id)
	_, err = pipe.Exec(ctx)
	return err
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
