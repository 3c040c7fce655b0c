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

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
countmin:
  domain_bits: 16
  width: 512
distinct:
  threshold: 64
mostfrequent:
  top_k: 3
store:
  driver: memory
`

type harness struct {
	t      *testing.T
	dir    string
	config string
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(testConfig), 0o644))
	return &harness{t: t, dir: dir, config: cfg}
}

func (h *harness) path(name string) string { return filepath.Join(h.dir, name) }

func (h *harness) write(name string, lines ...string) string {
	p := h.path(name)
	require.NoError(h.t, os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return p
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", h.config}, args...))
	err := root.Execute()
	return out.String(), err
}

func (h *harness) runJSON(args ...string) map[string]any {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err)
	var v map[string]any
	require.NoError(h.t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestBuildAndQueryCountMin(t *testing.T) {
	h := newHarness(t)
	in := h.write("values.txt", "1", "2", "2", "3", "3", "3", "10")
	out, err := h.run("build", "--family", "countmin", "--input", in, "--output", h.path("v.cms"), "--partitions", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote countmin sketch of 7 values")

	got := h.runJSON("query", "count", h.path("v.cms"), "--value", "3")
	assert.GreaterOrEqual(t, got["count"], float64(3))

	got = h.runJSON("query", "range", h.path("v.cms"), "--lo", "1", "--hi", "3")
	assert.GreaterOrEqual(t, got["count"], float64(6))

	_, err = h.run("query", "histogram", h.path("v.cms"), "--kind", "bogus")
	assert.Error(t, err)
}

func TestBuildRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	in := h.write("values.txt", "1", "two")
	_, err := h.run("build", "--family", "countmin", "--input", in, "--output", h.path("v.cms"))
	assert.Error(t, err)

	_, err = h.run("build", "--family", "nope", "--input", in, "--output", h.path("v.cms"))
	assert.Error(t, err)

	_, err = h.run("build", "--input", in)
	assert.Error(t, err, "output is required")
}

func TestBuildAndEstimateDistinct(t *testing.T) {
	h := newHarness(t)
	in := h.write("users.txt", "alice", "bob", "alice", "carol", "bob")
	_, err := h.run("build", "--family", "fm", "--input", in, "--output", h.path("u.fm"), "--partitions", "2")
	require.NoError(t, err)

	got := h.runJSON("query", "estimate", h.path("u.fm"))
	assert.Equal(t, float64(3), got["estimate"])
	assert.Equal(t, "exact", got["mode"])

	desc := h.runJSON("inspect", h.path("u.fm"))
	assert.Equal(t, float64(64), desc["threshold"])
}

func TestMergeFiles(t *testing.T) {
	h := newHarness(t)
	a := h.write("a.txt", "alice", "bob")
	b := h.write("b.txt", "bob", "carol", "dave")
	_, err := h.run("build", "--family", "fm", "--input", a, "--output", h.path("a.fm"))
	require.NoError(t, err)
	_, err = h.run("build", "--family", "fm", "--input", b, "--output", h.path("b.fm"))
	require.NoError(t, err)

	_, err = h.run("merge", h.path("a.fm"), h.path("b.fm"), "-o", h.path("ab.fm"))
	require.NoError(t, err)
	got := h.runJSON("query", "estimate", h.path("ab.fm"))
	assert.Equal(t, float64(4), got["estimate"])

	c := h.write("c.txt", "1", "2")
	_, err = h.run("build", "--family", "countmin", "--input", c, "--output", h.path("c.cms"))
	require.NoError(t, err)
	_, err = h.run("merge", h.path("a.fm"), h.path("c.cms"), "-o", h.path("bad"))
	assert.Error(t, err)
}

func TestTopValues(t *testing.T) {
	h := newHarness(t)
	in := h.write("words.txt", "a", "b", "a", "c", "a", "b", "d")
	_, err := h.run("build", "--family", "mfv", "--input", in, "--output", h.path("w.mfv"))
	require.NoError(t, err)

	out, err := h.run("query", "top", h.path("w.mfv"))
	require.NoError(t, err)
	var top []struct {
		Value string `json:"value"`
		Count int64  `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &top))
	require.NotEmpty(t, top)
	assert.Equal(t, "a", top[0].Value)
	assert.GreaterOrEqual(t, top[0].Count, int64(3))
}

func TestInspectRejectsGarbage(t *testing.T) {
	h := newHarness(t)
	p := h.write("junk", "not a sketch")
	_, err := h.run("inspect", p)
	assert.Error(t, err)
}

func TestSQL(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("sql", "SELECT fmsketch_dcount(x) AS n FROM (SELECT 1 AS x UNION ALL SELECT 2 UNION ALL SELECT 2)")
	require.NoError(t, err)
	assert.Equal(t, "n\n2\n", out)
}
