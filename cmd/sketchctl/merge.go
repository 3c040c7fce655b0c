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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/streamsketch/sketches-go/count"
	"github.com/streamsketch/sketches-go/fm"
)

func newMergeCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "merge A B",
		Short: "Merge two sketch files of the same family and shape",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			b, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			family, err := familyOf(a)
			if err != nil {
				return err
			}
			var merged []byte
			if family == "fm" {
				merged, err = fm.MergeSerialized(a, b)
			} else {
				merged, err = count.MergeSerialized(a, b)
			}
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, merged, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote merged %s sketch to %s (%d bytes)\n", family, output, len(merged))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output sketch file path (required)")
	cmd.MarkFlagRequired("output")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the header fields of a sketch file",
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
			if family == "fm" {
				d, err := fm.Describe(data)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), d)
			}
			d, err := count.Describe(data)
			if err != nil {
				return err
			}
			if !dump || family != "countmin" {
				return printJSON(cmd.OutOrStdout(), d)
			}
			s, err := count.NewFrequencySketchFromSlice(data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"header": d, "counters": s.Dump()})
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "Also list the non-zero counters of a countmin sketch")
	return cmd
}
