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

// sketchctl builds, queries, merges and inspects serialized sketch files.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/config"
	"github.com/streamsketch/sketches-go/internal"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalOptions struct {
	configPath string
}

func (g *globalOptions) load() (*config.Config, error) {
	return config.Load(g.configPath)
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:           "sketchctl",
		Short:         "Build, query, merge and inspect sketch files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML configuration file")

	root.AddCommand(
		newBuildCmd(g),
		newQueryCmd(),
		newMergeCmd(),
		newInspectCmd(),
		newSQLCmd(g),
	)
	return root
}

// readLines returns the non-empty lines of path, or of stdin for "-".
func readLines(in io.Reader, path string) ([]string, error) {
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}
	var lines []string
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

// familyOf reads the family name from a serialized sketch preamble.
func familyOf(data []byte) (string, error) {
	if len(data) < 3 {
		return "", fmt.Errorf("%d bytes is too short for a sketch: %w", len(data), common.ErrFormat)
	}
	name := internal.FamilyName(int(data[2]))
	if name == "unknown" {
		return "", fmt.Errorf("unknown sketch family %d: %w", data[2], common.ErrFormat)
	}
	return name, nil
}
