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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/count"
	"github.com/streamsketch/sketches-go/fm"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadFrequencySketch(path string) (*count.FrequencySketch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return count.NewFrequencySketchFromSlice(data)
}

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query a serialized sketch file",
	}

	var value, lo, hi, min, max int64
	var p float64
	var buckets int
	var kind, item string

	countCmd := &cobra.Command{
		Use:   "count FILE",
		Short: "Estimated count of one value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			family, err := familyOf(data)
			if err != nil {
				return err
			}
			if family == "mfv" {
				s, err := count.NewMostFrequentSketchFromSlice(data)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"value": item, "count": s.Estimate([]byte(item))})
			}
			s, err := count.NewFrequencySketchFromSlice(data)
			if err != nil {
				return err
			}
			n, err := s.PointQuery(value)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"value": value, "count": n})
		},
	}
	countCmd.Flags().Int64Var(&value, "value", 0, "Integer value to count (countmin)")
	countCmd.Flags().StringVar(&item, "item", "", "Value to count (mfv)")

	rangeCmd := &cobra.Command{
		Use:   "range FILE",
		Short: "Estimated count of values in [lo, hi]",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadFrequencySketch(args[0])
			if err != nil {
				return err
			}
			n, err := s.RangeQuery(lo, hi)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"lo": lo, "hi": hi, "count": n})
		},
	}
	rangeCmd.Flags().Int64Var(&lo, "lo", 0, "Lower bound, inclusive")
	rangeCmd.Flags().Int64Var(&hi, "hi", 0, "Upper bound, inclusive")

	centileCmd := &cobra.Command{
		Use:   "centile FILE",
		Short: "Approximate value at a percentile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadFrequencySketch(args[0])
			if err != nil {
				return err
			}
			v, err := s.Centile(p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"p": p, "value": v})
		},
	}
	centileCmd.Flags().Float64Var(&p, "p", 50, "Percentile in (0, 100)")

	histogramCmd := &cobra.Command{
		Use:   "histogram FILE",
		Short: "Equal-width, explicit-width or equal-depth histogram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadFrequencySketch(args[0])
			if err != nil {
				return err
			}
			var hist []count.HistogramBucket
			switch kind {
			case "equal":
				hist, err = s.Histogram(buckets)
			case "width":
				hist, err = s.WidthHistogram(min, max, buckets)
			case "depth":
				hist, err = s.DepthHistogram(buckets)
			default:
				return fmt.Errorf("unknown histogram kind %q: %w", kind, common.ErrDomain)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), hist)
		},
	}
	histogramCmd.Flags().IntVar(&buckets, "buckets", 10, "Number of buckets")
	histogramCmd.Flags().StringVar(&kind, "kind", "equal", "Histogram kind (equal, width, depth)")
	histogramCmd.Flags().Int64Var(&min, "min", 0, "Lowest value (width)")
	histogramCmd.Flags().Int64Var(&max, "max", 0, "Highest value (width)")

	estimateCmd := &cobra.Command{
		Use:   "estimate FILE",
		Short: "Distinct count estimate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, err := fm.NewDistinctCountSketchFromSlice(data)
			if err != nil {
				return err
			}
			n, err := s.Estimate()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"estimate": n, "mode": s.Mode().String()})
		},
	}

	topCmd := &cobra.Command{
		Use:   "top FILE",
		Short: "Most frequent values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, err := count.NewMostFrequentSketchFromSlice(data)
			if err != nil {
				return err
			}
			type entry struct {
				Value string `json:"value"`
				Count int64  `json:"count"`
			}
			var out []entry
			for _, it := range s.Top() {
				out = append(out, entry{Value: string(it.Value), Count: it.Count})
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.AddCommand(countCmd, rangeCmd, centileCmd, histogramCmd, estimateCmd, topCmd)
	return cmd
}
