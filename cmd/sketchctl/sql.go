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
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/streamsketch/sketches-go/sqlhost"
)

func newSQLCmd(g *globalOptions) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "sql QUERY",
		Short: "Run SQL with the sketch functions against a SQLite database",
		Long: `Run a query against a SQLite database with the sketch aggregates
(cmsketch, fmsketch, fmsketch_dcount, mfvsketch_top_json) and query
functions (cmsketch_count, cmsketch_rangecount, cmsketch_centile, ...)
installed. Rows are printed tab separated.

Example:
  sketchctl sql --db events.db "SELECT fmsketch_dcount(user_id) FROM events"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			settings := sqlhost.Settings{}
			if settings.CountMin, err = cfg.CountMinConfig(); err != nil {
				return err
			}
			if settings.Distinct, err = cfg.DistinctConfig(); err != nil {
				return err
			}
			if settings.MostFrequent, err = cfg.MostFrequentConfig(); err != nil {
				return err
			}
			if err := sqlhost.Register(settings); err != nil {
				return err
			}

			db, err := sql.Open("sqlite", dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			db.SetMaxOpenConns(1)

			rows, err := db.QueryContext(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer rows.Close()
			cols, err := rows.Columns()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Join(cols, "\t"))
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			for rows.Next() {
				if err := rows.Scan(ptrs...); err != nil {
					return err
				}
				fields := make([]string, len(vals))
				for i, v := range vals {
					fields[i] = formatCell(v)
				}
				fmt.Fprintln(out, strings.Join(fields, "\t"))
			}
			return rows.Err()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", ":memory:", "SQLite database path")
	return cmd
}

// formatCell renders a SQL value; blobs are shown as base64 sketch images.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	}
	return fmt.Sprint(v)
}
