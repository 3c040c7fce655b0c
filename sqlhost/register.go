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

// Package sqlhost installs the sketch aggregates and query functions into the
// embedded SQLite engine of modernc.org/sqlite. Functions are registered
// process-wide and are visible on every connection opened afterwards.
package sqlhost

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/streamsketch/sketches-go/aggregate"
	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/count"
	"github.com/streamsketch/sketches-go/fm"
	"modernc.org/sqlite"
)

// Settings selects the sketch configurations new aggregates are created with.
type Settings struct {
	CountMin     count.Config
	Distinct     fm.Config
	MostFrequent count.MostFrequentConfig
}

var (
	registerOnce sync.Once
	registerErr  error
)

// Register installs the sketch functions. The engine keeps a single global
// function table, so only the first call takes effect and later calls return
// its result.
func Register(settings Settings) error {
	registerOnce.Do(func() {
		registerErr = register(settings)
	})
	return registerErr
}

func register(settings Settings) error {
	cm := aggregate.CountMinAggregate{Config: settings.CountMin}
	distinct := aggregate.DistinctAggregate{Config: settings.Distinct}
	mfv := aggregate.MostFrequentAggregate{Config: settings.MostFrequent}

	aggregates := map[string]func() sqlite.AggregateFunction{
		"cmsketch": func() sqlite.AggregateFunction {
			return &hostAggregate[*count.FrequencySketch, int64, []byte]{
				agg: cm, convert: toInt64, result: func(s *count.FrequencySketch) (driver.Value, error) { return cm.Final(s) },
			}
		},
		"fmsketch_dcount": func() sqlite.AggregateFunction {
			return &hostAggregate[*fm.DistinctCountSketch, any, int64]{
				agg: distinct, convert: toAny, result: func(s *fm.DistinctCountSketch) (driver.Value, error) { return distinct.Final(s) },
			}
		},
		"fmsketch": func() sqlite.AggregateFunction {
			return &hostAggregate[*fm.DistinctCountSketch, any, int64]{
				agg: distinct, convert: toAny, result: func(s *fm.DistinctCountSketch) (driver.Value, error) { return distinct.FinalSketch(s) },
			}
		},
		"mfvsketch_top_json": func() sqlite.AggregateFunction {
			return &hostAggregate[*count.MostFrequentSketch, any, []count.FrequentItem]{
				agg: mfv, convert: toAny, result: func(s *count.MostFrequentSketch) (driver.Value, error) {
					top, err := mfv.Final(s)
					if err != nil {
						return nil, err
					}
					return topJSON(top)
				},
			}
		},
	}
	for name, newAgg := range aggregates {
		newAgg := newAgg
		err :=sqlite.RegisterFunction(name, &sqlite.FunctionImpl{
			NArgs:         1,
			Deterministic: true,
			MakeAggregate: func(sqlite.FunctionContext) (sqlite.AggregateFunction, error) {
				return newAgg(), nil
			},
		})
		if err != nil {
			return fmt.Errorf("registering %s: %w", name, err)
		}
	}

	for _, fn := range scalarFunctions {
		if err := sqlite.RegisterDeterministicScalarFunction(fn.name, fn.nArgs, fn.fn); err != nil {
			return fmt.Errorf("registering %s: %w", fn.name, err)
		}
	}
	return nil
}

// hostAggregate adapts an aggregate.Aggregate to one SQL aggregate invocation.
// NULL inputs are skipped.
type hostAggregate[S any, V any, R any] struct {
	agg     aggregate.Aggregate[S, V, R]
	state   S
	convert func(driver.Value) (V, error)
	result  func(S) (driver.Value, error)
}

func (h *hostAggregate[S, V, R]) Step(_ *sqlite.FunctionContext, args []driver.Value) error {
	if args[0] == nil {
		return nil
	}
	v, err := h.convert(args[0])
	if err != nil {
		return err
	}
	h.state, err = h.agg.Transition(context.Background(), h.state, v)
	return err
}

func (h *hostAggregate[S, V, R]) WindowInverse(*sqlite.FunctionContext, []driver.Value) error {
	return fmt.Errorf("sketch aggregates cannot remove rows from a window frame: %w", common.ErrDomain)
}

func (h *hostAggregate[S, V, R]) WindowValue(*sqlite.FunctionContext) (driver.Value, error) {
	return h.result(h.state)
}

func (h *hostAggregate[S, V, R]) Final(*sqlite.FunctionContext) {}

func toAny(v driver.Value) (any, error) {
	return v, nil
}

func toInt64(v driver.Value) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int64(x), nil
		}
	}
	return 0, fmt.Errorf("%v (%T) is not an integer: %w", v, v, common.ErrDomain)
}

func toBlob(v driver.Value) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	}
	return nil, fmt.Errorf("%T is not a serialized sketch: %w", v, common.ErrFormat)
}

func toFloat64(v driver.Value) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("%v (%T) is not a number: %w", v, v, common.ErrDomain)
}

type topEntry struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

func topJSON(items []count.FrequentItem) (string, error) {
	entries := make([]topEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, topEntry{Value: string(it.Value), Count: it.Count})
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
