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

package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/streamsketch/sketches-go/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sketch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	p, err := cfg.Projector()
	require.NoError(t, err)
	assert.Equal(t, common.ProjectorMurmur3, p.Kind())
	assert.Equal(t, common.DefaultSeed, p.Seed())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
countmin:
  width: 256
  domain_bits: 32
distinct:
  threshold: 100
hash:
  algorithm: xxhash
  seed: 7
store:
  driver: memory
server:
  read_timeout: 5s
log:
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.CountMin.Width)
	assert.Equal(t, 8, cfg.CountMin.Depth)
	assert.Equal(t, 32, cfg.CountMin.DomainBits)
	assert.Equal(t, 100, cfg.Distinct.Threshold)
	assert.Equal(t, 256, cfg.Distinct.NumMaps)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	cm, err := cfg.CountMinConfig()
	require.NoError(t, err)
	assert.Equal(t, common.ProjectorXXHash, cm.Projector.Kind())
	assert.Equal(t, uint64(7), cm.Projector.Seed())
	assert.Equal(t, "memory", cfg.StoreConfig().Driver)

	var buf bytes.Buffer
	cfg.NewLogger(&buf).Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SKETCH_ADDR", ":9999")
	t.Setenv("SKETCH_STORE_DRIVER", "memory")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestValidateErrors(t *testing.T) {
	cases := map[string]string{
		"depth":     "countmin:\n  depth: 9\n",
		"domain":    "countmin:\n  domain_bits: 12\n",
		"grid":      "countmin:\n  width: 65536\n",
		"bitmap":    "distinct:\n  bitmap_bits: 100\n",
		"topk":      "mostfrequent:\n  top_k: -3\n",
		"hash":      "hash:\n  algorithm: sha1\n",
		"driver":    "store:\n  driver: etcd\n",
		"redis":     "store:\n  driver: redis\n",
		"log level": "log:\n  level: loud\n",
		"format":    "log:\n  format: xml\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.True(t, errors.Is(err, common.ErrConfig), err)
		})
	}
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(writeConfig(t, "countmin: [1, 2"))
	assert.True(t, errors.Is(err, common.ErrConfig))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
