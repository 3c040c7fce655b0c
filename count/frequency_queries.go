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
	"fmt"
	"math"

	"github.com/streamsketch/sketches-go/common"
)

// HistogramBucket is one bucket of a histogram: the estimated number of values in [Lo, Hi].
type HistogramBucket struct {
	Lo    int64 `json:"lo"`
	Hi    int64 `json:"hi"`
	Count int64 `json:"count"`
}

// midpoint returns lo + (hi-lo)/2 without overflow.
func midpoint(lo, hi int64) int64 {
	return int64(uint64(lo) + (uint64(hi)-uint64(lo))/2)
}

// Centile returns the value at percentile p, 0 < p < 100, found by binary
// search over the domain on the fraction of the total count at or below each
// candidate. The candidate closest to p seen during the search is returned;
// among equally close candidates the latest one at or above p wins.
func (s *FrequencySketch) Centile(p float64) (int64, error) {
	if !(p > 0 && p < 100) {
		return 0, fmt.Errorf("percentile %v not in (0, 100): %w", p, common.ErrDomain)
	}
	total := s.rangeCount(s.domain.Min(), s.domain.Max())
	if total == 0 {
		return 0, fmt.Errorf("centile of an empty sketch: %w", common.ErrDomain)
	}
	return s.centile(p, total), nil
}

func (s *FrequencySketch) centile(p float64, total int64) int64 {
	target := p / 100
	lo, hi := s.domain.Min(), s.domain.Max()
	cur := midpoint(lo, hi)
	best, bestDist := cur, math.Inf(1)

	for step := 0; step <= s.domain.Bits() && uint64(hi)-uint64(lo) > 1; step++ {
		pct := float64(s.rangeCount(s.domain.Min(), cur)) / float64(total)
		if dist := math.Abs(pct - target); dist < bestDist || (dist == bestDist && pct >= target) {
			best, bestDist = cur, dist
		}
		if pct == target {
			break
		}
		if pct > target {
			hi = cur
		} else {
			lo = cur
		}
		cur = midpoint(lo, hi)
	}
	return best
}

// searchFirst returns the smallest m in [lo, hi] for which pred(m) holds,
// assuming pred is monotone, or hi if none does.
func searchFirst(lo, hi int64, pred func(int64) bool) int64 {
	for lo < hi {
		mid := midpoint(lo, hi)
		if pred(mid) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// Histogram returns up to buckets equal-width buckets spanning the smallest
// and largest values present in the sketch. The last bucket absorbs the remainder.
func (s *FrequencySketch) Histogram(buckets int) ([]HistogramBucket, error) {
	if buckets < 1 {
		return nil, fmt.Errorf("bucket count %d must be positive: %w", buckets, common.ErrDomain)
	}
	dMin, dMax := s.domain.Min(), s.domain.Max()
	total := s.rangeCount(dMin, dMax)
	if total == 0 {
		return nil, fmt.Errorf("histogram of an empty sketch: %w", common.ErrDomain)
	}
	lo := searchFirst(dMin, dMax, func(m int64) bool { return s.rangeCount(dMin, m) > 0 })
	hi := searchFirst(dMin, dMax, func(m int64) bool { return s.rangeCount(dMin, m) >= total })
	if hi < lo {
		hi = lo
	}
	return s.widthBuckets(lo, hi, buckets), nil
}

// WidthHistogram returns buckets equal-width buckets over [min, max].
func (s *FrequencySketch) WidthHistogram(min, max int64, buckets int) ([]HistogramBucket, error) {
	if buckets < 1 {
		return nil, fmt.Errorf("bucket count %d must be positive: %w", buckets, common.ErrDomain)
	}
	if min > max {
		return nil, fmt.Errorf("histogram bounds [%d, %d] are reversed: %w", min, max, common.ErrDomain)
	}
	if err := s.checkDomain(min); err != nil {
		return nil, err
	}
	if err := s.checkDomain(max); err != nil {
		return nil, err
	}
	return s.widthBuckets(min, max, buckets), nil
}

func (s *FrequencySketch) widthBuckets(min, max int64, buckets int) []HistogramBucket {
	span := uint64(max) - uint64(min)
	step := (span / uint64(buckets)) + (span%uint64(buckets)+1)/uint64(buckets)
	if step == 0 {
		step = 1
	}

	out := make([]HistogramBucket, 0, buckets)
	for i := 0; i < buckets; i++ {
		off := uint64(i) * step
		if off/step != uint64(i) || off > span {
			break
		}
		lo := int64(uint64(min) + off)
		hi := max
		if i < buckets-1 && span-off >= step {
			hi = int64(uint64(lo) + step - 1)
		}
		out = append(out, HistogramBucket{Lo: lo, Hi: hi, Count: s.rangeCount(lo, hi)})
		if hi == max {
			break
		}
	}
	return out
}

// DepthHistogram returns equi-depth buckets whose upper bounds are the
// centiles at multiples of max(trunc(100/buckets), 1) percent. The first bucket
// starts at the domain minimum and the last ends at the domain maximum.
func (s *FrequencySketch) DepthHistogram(buckets int) ([]HistogramBucket, error) {
	if buckets < 1 {
		return nil, fmt.Errorf("bucket count %d must be positive: %w", buckets, common.ErrDomain)
	}
	dMin, dMax := s.domain.Min(), s.domain.Max()
	total := s.rangeCount(dMin, dMax)
	if total == 0 {
		return nil, fmt.Errorf("histogram of an empty sketch: %w", common.ErrDomain)
	}

	step := 100 / buckets
	if step < 1 {
		step = 1
	}
	out := make([]HistogramBucket, 0, buckets)
	lo := dMin
	for i := 0; i < buckets; i++ {
		pct := (i + 1) * step
		hi := dMax
		if i < buckets-1 && pct < 100 {
			hi = s.centile(float64(pct), total)
			if hi < lo {
				hi = lo
			}
		}
		out = append(out, HistogramBucket{Lo: lo, Hi: hi, Count: s.rangeCount(lo, hi)})
		if hi == dMax {
			break
		}
		lo = hi + 1
	}
	return out, nil
}
