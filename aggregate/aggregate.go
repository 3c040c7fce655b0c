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

// Package aggregate exposes the sketches through the transition, merge and
// final steps a host aggregation engine drives. A nil state is the absent
// state: Transition creates a fresh sketch from it, Merge treats it as the
// identity and Final reports an empty result.
package aggregate

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Aggregate is implemented by every sketch aggregate. S is a pointer state
// type, V the input value type and R the final result type.
type Aggregate[S any, V any, R any] interface {
	// Transition folds value into state, creating the state if it is absent.
	Transition(ctx context.Context, state S, value V) (S, error)
	// Merge combines two partial states without modifying either.
	Merge(a, b S) (S, error)
	// Final produces the result for state.
	Final(state S) (R, error)
}

// Fold runs Transition over values in order, starting from the absent state.
func Fold[S any, V any, R any](ctx context.Context, agg Aggregate[S, V, R], values []V) (S, error) {
	var state S
	for _, v := range values {
		var err error
		if state, err = agg.Transition(ctx, state, v); err != nil {
			var zero S
			return zero, err
		}
	}
	return state, nil
}

// Reduce merges partial states pairwise as a balanced tree, running the merges
// of each level concurrently. The context is checked between levels. Reducing
// no states yields the absent state.
func Reduce[S any, V any, R any](ctx context.Context, agg Aggregate[S, V, R], states []S) (S, error) {
	var zero S
	if len(states) == 0 {
		return zero, nil
	}
	level := append([]S(nil), states...)
	for len(level) > 1 {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		next := make([]S, (len(level)+1)/2)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range next {
			i := i
			left := 2 * i
			if left+1 == len(level) {
				next[i] = level[left]
				continue
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				merged, err := agg.Merge(level[left], level[left+1])
				if err != nil {
					return err
				}
				next[i] = merged
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return zero, err
		}
		level = next
	}
	return level[0], nil
}
