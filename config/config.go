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

// Package config loads the YAML configuration shared by sketchd and sketchctl.
// Priority: defaults < file < environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/count"
	"github.com/streamsketch/sketches-go/fm"
	"github.com/streamsketch/sketches-go/store"
	"gopkg.in/yaml.v3"
)

// Config holds all sketch service configuration.
type Config struct {
	CountMin     CountMinConfig     `yaml:"countmin"`
	Distinct     DistinctConfig     `yaml:"distinct"`
	MostFrequent MostFrequentConfig `yaml:"mostfrequent"`
	Hash         HashConfig         `yaml:"hash"`
	Store        StoreConfig        `yaml:"store"`
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
}

// CountMinConfig shapes new frequency sketches.
type CountMinConfig struct {
	Depth      int   `yaml:"depth"`
	Width      int   `yaml:"width"`
	DomainBits int   `yaml:"domain_bits"` // 8 | 16 | 32 | 64
	MaxCount   int64 `yaml:"max_count"`
}

// DistinctConfig shapes new distinct count sketches.
type DistinctConfig struct {
	NumMaps    int `yaml:"num_maps"`
	BitmapBits int `yaml:"bitmap_bits"`
	Threshold  int `yaml:"threshold"`
}

// MostFrequentConfig shapes new most frequent values sketches.
type MostFrequentConfig struct {
	TopK  int `yaml:"top_k"`
	Depth int `yaml:"depth"`
	Width int `yaml:"width"`
}

// HashConfig selects the hash projector used by every sketch.
type HashConfig struct {
	Algorithm string `yaml:"algorithm"` // murmur3 | xxhash | md5
	Seed      uint64 `yaml:"seed"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver        string        `yaml:"driver"` // memory | sqlite | redis
	DSN           string        `yaml:"dsn"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Prefix        string        `yaml:"prefix"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ServerConfig for the HTTP server.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// LogConfig for the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		CountMin: CountMinConfig{
			Depth:      count.DefaultDepth,
			Width:      count.DefaultWidth,
			DomainBits: 64,
		},
		Distinct: DistinctConfig{
			NumMaps:    fm.DefaultNumMaps,
			BitmapBits: fm.DefaultBitmapBits,
			Threshold:  fm.DefaultThreshold,
		},
		MostFrequent: MostFrequentConfig{
			TopK:  count.DefaultTopK,
			Depth: count.DefaultDepth,
			Width: count.DefaultWidth,
		},
		Hash: HashConfig{
			Algorithm: common.ProjectorMurmur3.String(),
			Seed:      common.DefaultSeed,
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DSN:     "sketches.db",
			Prefix:  "sketches:",
			Timeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
			MaxBodyBytes: 32 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %v: %w", path, err, common.ErrConfig)
		}
	}
	cfg.loadEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnv applies SKETCH_* environment variables.
func (c *Config) loadEnv() {
	if v := os.Getenv("SKETCH_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SKETCH_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("SKETCH_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("SKETCH_REDIS_ADDR"); v != "" {
		c.Store.RedisAddr = v
	}
	if v := os.Getenv("SKETCH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks every section, building each sketch configuration once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Projector(); err != nil {
		errs = append(errs, fmt.Errorf("hash: %w", err))
	} else {
		cm, _ := c.CountMinConfig()
		if n := counterGrid(cm); n > int64(count.MaxDecodedCounters) {
			errs = append(errs, fmt.Errorf("countmin: %d counters could not be read back (limit %d): %w",
				n, count.MaxDecodedCounters, common.ErrConfig))
		} else if _, err := count.NewFrequencySketchFromConfig(cm); err != nil {
			errs = append(errs, fmt.Errorf("countmin: %w", err))
		}
		d, _ := c.DistinctConfig()
		if _, err := fm.NewDistinctCountSketchFromConfig(d); err != nil {
			errs = append(errs, fmt.Errorf("distinct: %w", err))
		}
		m, _ := c.MostFrequentConfig()
		if _, err := count.NewMostFrequentSketchFromConfig(m); err != nil {
			errs = append(errs, fmt.Errorf("mostfrequent: %w", err))
		}
	}
	switch c.Store.Driver {
	case "memory", "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("store: unknown driver %q: %w", c.Store.Driver, common.ErrConfig))
	}
	if c.Store.Driver == "redis" && c.Store.RedisAddr == "" {
		errs = append(errs, fmt.Errorf("store: redis driver needs redis_addr: %w", common.ErrConfig))
	}
	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server: empty addr: %w", common.ErrConfig))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log: unknown format %q: %w", c.Log.Format, common.ErrConfig))
	}
	return errors.Join(errs...)
}

// counterGrid returns the number of counters a sketch built from cm holds.
func counterGrid(cm count.Config) int64 {
	def := count.DefaultConfig()
	levels, depth, width := cm.DomainBits, cm.Depth, cm.Width
	if levels == 0 {
		levels = def.DomainBits
	}
	if depth == 0 {
		depth = def.Depth
	}
	if width == 0 {
		width = def.Width
	}
	return int64(levels) * int64(depth) * int64(width)
}

// Projector builds the configured hash projector.
func (c *Config) Projector() (common.HashProjector, error) {
	kind, err := common.ParseProjectorKind(c.Hash.Algorithm)
	if err != nil {
		return nil, err
	}
	return common.NewProjector(kind, c.Hash.Seed)
}

func (c *Config) CountMinConfig() (count.Config, error) {
	p, err := c.Projector()
	if err != nil {
		return count.Config{}, err
	}
	return count.Config{
		Depth:      c.CountMin.Depth,
		Width:      c.CountMin.Width,
		DomainBits: c.CountMin.DomainBits,
		MaxCount:   c.CountMin.MaxCount,
		Projector:  p,
	}, nil
}

func (c *Config) DistinctConfig() (fm.Config, error) {
	p, err := c.Projector()
	if err != nil {
		return fm.Config{}, err
	}
	return fm.Config{
		NumMaps:    c.Distinct.NumMaps,
		BitmapBits: c.Distinct.BitmapBits,
		Threshold:  c.Distinct.Threshold,
		Projector:  p,
	}, nil
}

func (c *Config) MostFrequentConfig() (count.MostFrequentConfig, error) {
	p, err := c.Projector()
	if err != nil {
		return count.MostFrequentConfig{}, err
	}
	return count.MostFrequentConfig{
		TopK:      c.MostFrequent.TopK,
		Depth:     c.MostFrequent.Depth,
		Width:     c.MostFrequent.Width,
		Projector: p,
	}, nil
}

func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Driver:        c.Store.Driver,
		DSN:           c.Store.DSN,
		RedisAddr:     c.Store.RedisAddr,
		RedisPassword: c.Store.RedisPassword,
		RedisDB:       c.Store.RedisDB,
		Prefix:        c.Store.Prefix,
		Timeout:       c.Store.Timeout,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unknown level %q: %w", s, common.ErrConfig)
	}
	return level, nil
}

// NewLogger builds the slog logger described by the log section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
