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
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/streamsketch/sketches-go/aggregate"
	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/count"
	"github.com/streamsketch/sketches-go/fm"
	"golang.org/x/sync/errgroup"
)

type buildOptions struct {
	family     string
	input      string
	output     string
	partitions int
}

func newBuildCmd(g *globalOptions) *cobra.Command {
	o := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a sketch from newline separated values",
		Long: `Build a sketch from a file with one value per line.

The input is split round-robin into partitions that are sketched
concurrently and merged, the same way a parallel aggregation would.

Examples:
  sketchctl build --family countmin --input latencies.txt --output latencies.cms
  sketchctl build --family fm --input users.txt --output users.fm --partitions 8
  cat words.txt | sketchctl build --family mfv --output words.mfv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, g)
		},
	}
	cmd.Flags().StringVarP(&o.family, "family", "f", "countmin", "Sketch family (countmin, fm, mfv)")
	cmd.Flags().StringVarP(&o.input, "input", "i", "-", "Input file path (use '-' for stdin)")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "Output sketch file path (required)")
	cmd.Flags().IntVarP(&o.partitions, "partitions", "p", 1, "Number of partitions sketched in parallel")
	cmd.MarkFlagRequired("output")
	return cmd
}

func (o *buildOptions) run(cmd *cobra.Command, g *globalOptions) error {
	if o.partitions < 1 {
		return fmt.Errorf("partitions must be positive, got %d", o.partitions)
	}
	cfg, err := g.load()
	if err != nil {
		return err
	}
	lines, err := readLines(cmd.InOrStdin(), o.input)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var data []byte
	switch o.family {
	case "countmin":
		cm, err := cfg.CountMinConfig()
		if err != nil {
			return err
		}
		values := make([]int64, len(lines))
		for i, line := range lines {
			if values[i], err = strconv.ParseInt(line, 10, 64); err != nil {
				return fmt.Errorf("line %d: %v: %w", i+1, err, common.ErrDomain)
			}
		}
		agg := aggregate.CountMinAggregate{Config: cm}
		state, err := buildPartitioned[*count.FrequencySketch, int64, []byte](ctx, agg, values, o.partitions)
		if err != nil {
			return err
		}
		data, err = agg.Final(state)
		if err != nil {
			return err
		}
	case "fm":
		d, err := cfg.DistinctConfig()
		if err != nil {
			return err
		}
		agg := aggregate.DistinctAggregate{Config: d}
		state, err := buildPartitioned[*fm.DistinctCountSketch, any, int64](ctx, agg, toAny(lines), o.partitions)
		if err != nil {
			return err
		}
		if data, err = agg.FinalSketch(state); err != nil {
			return err
		}
	case "mfv":
		m, err := cfg.MostFrequentConfig()
		if err != nil {
			return err
		}
		agg := aggregate.MostFrequentAggregate{Config: m}
		state, err := buildPartitioned[*count.MostFrequentSketch, any, []count.FrequentItem](ctx, agg, toAny(lines), o.partitions)
		if err != nil {
			return err
		}
		if data, err = agg.FinalSketch(state); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown sketch family %q: %w", o.family, common.ErrConfig)
	}

	if err := os.WriteFile(o.output, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s sketch of %d values to %s (%d bytes)\n", o.family, len(lines), o.output, len(data))
	return nil
}

func toAny(lines []string) []any {
	out := make([]any, len(lines))
	for i, l := range lines {
		out[i] = l
	}
	return out
}

// buildPartitioned folds each round-robin partition of values concurrently
// and reduces the partial states.
func buildPartitioned[S any, V any, R any](ctx context.Context, agg aggregate.Aggregate[S, V, R], values []V, parts int) (S, error) {
	chunks := make([][]V, parts)
	for i, v := range values {
		chunks[i%parts] = append(chunks[i%parts], v)
	}
	states := make([]S, parts)
	g, gctx := errgroup.WithContext(ctx)
	for i := range chunks {
		i := i
		g.Go(func() error {
			st, err := aggregate.Fold(gctx, agg, chunks[i])
			states[i] = st
			return err
		})
	}
	if err := g.Wait(); err != nil {
		var zero S
		return zero, err
	}
	return aggregate.Reduce(ctx, agg, states)
}
