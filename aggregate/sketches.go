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

package aggregate

import (
	"context"

	"github.com/streamsketch/sketches-go/count"
	"github.com/streamsketch/sketches-go/fm"
)

// CountMinAggregate builds a FrequencySketch over integer values and finishes
// with its serialized image.
type CountMinAggregate struct {
	Config count.Config
}

func (a CountMinAggregate) Transition(ctx context.Context, state *count.FrequencySketch, value int64) (*count.FrequencySketch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if state == nil {
		var err error
		if state, err = count.NewFrequencySketchFromConfig(a.Config); err != nil {
			return nil, err
		}
	}
	if err := state.Insert(value); err != nil {
		return nil, err
	}
	return state, nil
}

func (a CountMinAggregate) Merge(x, y *count.FrequencySketch) (*count.FrequencySketch, error) {
	return count.MergeFrequencySketches(x, y)
}

// Final serializes state. An absent state finishes as an empty sketch.
func (a CountMinAggregate) Final(state *count.FrequencySketch) ([]byte, error) {
	if state == nil {
		var err error
		if state, err = count.NewFrequencySketchFromConfig(a.Config); err != nil {
			return nil, err
		}
	}
	return state.ToSlice(), nil
}

// DistinctAggregate counts distinct scalar values and finishes with the estimate.
type DistinctAggregate struct {
	Config fm.Config
}

func (a DistinctAggregate) Transition(ctx context.Context, state *fm.DistinctCountSketch, value any) (*fm.DistinctCountSketch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if state == nil {
		var err error
		if state, err = fm.NewDistinctCountSketchFromConfig(a.Config); err != nil {
			return nil, err
		}
	}
	if err := state.InsertValue(value); err != nil {
		return nil, err
	}
	return state, nil
}

func (a DistinctAggregate) Merge(x, y *fm.DistinctCountSketch) (*fm.DistinctCountSketch, error) {
	return fm.MergeDistinctCountSketches(x, y)
}

// Final returns the distinct count estimate, zero for an absent state.
func (a DistinctAggregate) Final(state *fm.DistinctCountSketch) (int64, error) {
	if state == nil {
		return 0, nil
	}
	return state.Estimate()
}

// FinalSketch serializes state for storage or a later merge.
func (a DistinctAggregate) FinalSketch(state *fm.DistinctCountSketch) ([]byte, error) {
	if state == nil {
		var err error
		if state, err = fm.NewDistinctCountSketchFromConfig(a.Config); err != nil {
			return nil, err
		}
	}
	return state.ToSlice(), nil
}

// MostFrequentAggregate tracks the most frequent scalar values and finishes
// with the top list.
type MostFrequentAggregate struct {
	Config count.MostFrequentConfig
}

func (a MostFrequentAggregate) Transition(ctx context.Context, state *count.MostFrequentSketch, value any) (*count.MostFrequentSketch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if state == nil {
		var err error
		if state, err = count.NewMostFrequentSketchFromConfig(a.Config); err != nil {
			return nil, err
		}
	}
	if err := state.InsertValue(value); err != nil {
		return nil, err
	}
	return state, nil
}

func (a MostFrequentAggregate) Merge(x, y *count.MostFrequentSketch) (*count.MostFrequentSketch, error) {
	return count.MergeMostFrequentSketches(x, y)
}

// Final returns the tracked values by descending count, none for an absent state.
func (a MostFrequentAggregate) Final(state *count.MostFrequentSketch) ([]count.FrequentItem, error) {
	if state == nil {
		return nil, nil
	}
	return state.Top(), nil
}

// FinalSketch serializes state for storage or a later merge.
func (a MostFrequentAggregate) FinalSketch(state *count.MostFrequentSketch) ([]byte, error) {
	if state == nil {
		var err error
		if state, err = count.NewMostFrequentSketchFromConfig(a.Config); err != nil {
			return nil, err
		}
	}
	return state.ToSlice(), nil
}

var (
	_ Aggregate[*count.FrequencySketch, int64, []byte]                = CountMinAggregate{}
	_ Aggregate[*fm.DistinctCountSketch, any, int64]                  = DistinctAggregate{}
	_ Aggregate[*count.MostFrequentSketch, any, []count.FrequentItem] = MostFrequentAggregate{}
)
