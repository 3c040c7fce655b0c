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

package count

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/internal"
)

const (
	DefaultDepth = 8
	DefaultWidth = 1024

	// maxWidth is the number of distinct 16-bit hash slices.
	maxWidth = 1 << 16
)

// countMin is a stack of Count-Min counter grids, one grid of depth x width
// counters per level. Row r of a grid takes its column from the 16-bit slice
// at byte offset 2*r of the key digest.
type countMin struct {
	levels    int
	depth     int
	width     int
	maxCount  int64
	projector common.HashProjector
	counters  []int64 // [level][row][col]
}

func newCountMin(levels, depth, width int, maxCount int64, projector common.HashProjector) (*countMin, error) {
	if projector == nil {
		return nil, fmt.Errorf("nil hash projector: %w", common.ErrConfig)
	}
	if depth < 1 || 2*depth > projector.Size() {
		return nil, fmt.Errorf("depth %d needs %d digest bytes, projector has %d: %w",
			depth, 2*depth, projector.Size(), common.ErrConfig)
	}
	if width < 1 || width > maxWidth {
		return nil, fmt.Errorf("width %d is not in [1, %d]: %w", width, maxWidth, common.ErrConfig)
	}
	if levels < 1 || levels > 64 {
		return nil, fmt.Errorf("levels %d is not in [1, 64]: %w", levels, common.ErrConfig)
	}
	if maxCount < 1 {
		return nil, fmt.Errorf("max count must be positive, got %d: %w", maxCount, common.ErrConfig)
	}
	if levels*depth*width >= 1<<30 {
		return nil, fmt.Errorf("these parameters generate a sketch that exceeds 2^30 counters: %w", common.ErrConfig)
	}
	return &countMin{
		levels:    levels,
		depth:     depth,
		width:     width,
		maxCount:  maxCount,
		projector: projector,
		counters:  make([]int64, levels*depth*width),
	}, nil
}

func (c *countMin) clone() *countMin {
	counters := make([]int64, len(c.counters))
	copy(counters, c.counters)
	cp := *c
	cp.counters = counters
	return &cp
}

func (c *countMin) gridSize() int {
	return c.depth * c.width
}

// locations returns the counter index of each row for key at level.
func (c *countMin) locations(level int, key []byte, out []int) []int {
	out = out[:0]
	h := c.projector.Sum(key)
	base := level * c.gridSize()
	for row := 0; row < c.depth; row++ {
		col := int(binary.LittleEndian.Uint16(h[2*row:])) % c.width
		out = append(out, base+row*c.width+col)
	}
	return out
}

// estimate returns the minimum counter over the rows of key at level.
func (c *countMin) estimate(level int, key []byte) int64 {
	var buf [16]int
	estimate := int64(math.MaxInt64)
	for _, idx := range c.locations(level, key, buf[:0]) {
		estimate = internal.Min(estimate, c.counters[idx])
	}
	return estimate
}

// checkIncrement reports ErrCapacityExceeded if adding count at any of the
// given locations would pass maxCount.
func (c *countMin) checkIncrement(locs []int, count int64) error {
	for _, idx := range locs {
		if c.counters[idx] > c.maxCount-count {
			return fmt.Errorf("counter at %d holds %d, adding %d passes %d: %w",
				idx, c.counters[idx], count, c.maxCount, common.ErrCapacityExceeded)
		}
	}
	return nil
}

func (c *countMin) increment(locs []int, count int64) {
	for _, idx := range locs {
		c.counters[idx] += count
	}
}

func (c *countMin) compatible(other *countMin) error {
	if c.levels != other.levels || c.depth != other.depth || c.width != other.width {
		return fmt.Errorf("sketch shapes %dx%dx%d and %dx%dx%d differ: %w",
			c.levels, c.depth, c.width, other.levels, other.depth, other.width, common.ErrDimensionMismatch)
	}
	if c.projector.Kind() != other.projector.Kind() || c.projector.Seed() != other.projector.Seed() {
		return fmt.Errorf("sketches hash with %s/%d and %s/%d: %w",
			c.projector.Kind(), c.projector.Seed(), other.projector.Kind(), other.projector.Seed(),
			common.ErrDimensionMismatch)
	}
	if c.maxCount != other.maxCount {
		return fmt.Errorf("max counts %d and %d differ: %w", c.maxCount, other.maxCount, common.ErrDimensionMismatch)
	}
	return nil
}

// mergeFrom adds other's counters elementwise, saturating at maxCount.
func (c *countMin) mergeFrom(other *countMin) error {
	if err := c.compatible(other); err != nil {
		return err
	}
	for i, v := range other.counters {
		c.counters[i] = internal.SaturatingAdd(c.counters[i], v, c.maxCount)
	}
	return nil
}

func (c *countMin) isZero() bool {
	for _, v := range c.counters {
		if v != 0 {
			return false
		}
	}
	return true
}

// relativeError is the additive error of a point estimate as a fraction of the total count.
func (c *countMin) relativeError() float64 {
	return math.Exp(1.0) / float64(c.width)
}
