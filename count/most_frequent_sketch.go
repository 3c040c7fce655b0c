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
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/internal"
)

const DefaultTopK = 10

// FrequentItem is a tracked value and its estimated count.
type FrequentItem struct {
	Value []byte
	Count int64
}

// MostFrequentSketch tracks up to TopK values with the highest estimated
// counts, scored by a single-level Count-Min sketch.
type MostFrequentSketch struct {
	cm    *countMin
	topK  int
	items []FrequentItem
	total int64
	locs  []int
}

// NewMostFrequentSketch creates an empty sketch tracking topK values.
// WithDomainBits has no effect on this sketch.
func NewMostFrequentSketch(topK int, opts ...Option) (*MostFrequentSketch, error) {
	if topK < 1 || topK > math.MaxUint16 {
		return nil, fmt.Errorf("topK %d not in [1, %d]: %w", topK, math.MaxUint16, common.ErrConfig)
	}
	options := applyOptions(opts)
	cm, err := newCountMin(1, options.depth, options.width, options.maxCount, options.projector)
	if err != nil {
		return nil, err
	}
	return &MostFrequentSketch{cm: cm, topK: topK}, nil
}

func (s *MostFrequentSketch) TopK() int     { return s.topK }
func (s *MostFrequentSketch) Total() int64  { return s.total }
func (s *MostFrequentSketch) IsEmpty() bool { return s.total == 0 }
func (s *MostFrequentSketch) NumItems() int { return len(s.items) }

func (s *MostFrequentSketch) Clone() *MostFrequentSketch {
	items := make([]FrequentItem, len(s.items))
	for i, it := range s.items {
		items[i] = FrequentItem{Value: bytes.Clone(it.Value), Count: it.Count}
	}
	return &MostFrequentSketch{cm: s.cm.clone(), topK: s.topK, items: items, total: s.total}
}

func (s *MostFrequentSketch) find(value []byte) int {
	for i := range s.items {
		if bytes.Equal(s.items[i].Value, value) {
			return i
		}
	}
	return -1
}

// Insert counts one occurrence of value and updates the tracked values: a
// tracked value gets its new estimate, otherwise the value takes a free slot
// or replaces the first tracked value with a strictly smaller estimate.
func (s *MostFrequentSketch) Insert(value []byte) error {
	s.locs = s.cm.locations(0, value, s.locs)
	if err := s.cm.checkIncrement(s.locs, 1); err != nil {
		return err
	}
	s.cm.increment(s.locs, 1)
	s.total = internal.SaturatingAdd(s.total, 1, s.cm.maxCount)

	est := s.cm.estimate(0, value)
	if i := s.find(value); i >= 0 {
		s.items[i].Count = est
		return nil
	}
	if len(s.items) < s.topK {
		s.items = append(s.items, FrequentItem{Value: bytes.Clone(value), Count: est})
		return nil
	}
	for i := range s.items {
		if s.items[i].Count < est {
			s.items[i] = FrequentItem{Value: bytes.Clone(value), Count: est}
			break
		}
	}
	return nil
}

func (s *MostFrequentSketch) InsertString(value string) error {
	return s.Insert([]byte(value))
}

// InsertValue counts a scalar value encoded with common.ValueBytes.
func (s *MostFrequentSketch) InsertValue(value any) error {
	b, err := common.ValueBytes(value)
	if err != nil {
		return err
	}
	return s.Insert(b)
}

// Estimate returns the Count-Min estimate of value, tracked or not.
func (s *MostFrequentSketch) Estimate(value []byte) int64 {
	return s.cm.estimate(0, value)
}

func sortItems(items []FrequentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return bytes.Compare(items[i].Value, items[j].Value) < 0
	})
}

// Top returns copies of the tracked values, by count descending then value ascending.
func (s *MostFrequentSketch) Top() []FrequentItem {
	out := make([]FrequentItem, len(s.items))
	for i, it := range s.items {
		out[i] = FrequentItem{Value: bytes.Clone(it.Value), Count: it.Count}
	}
	sortItems(out)
	return out
}

// Merge combines other into s: the Count-Min counters are added, both lists
// are re-scored against the merged counters, and the TopK highest are kept.
// On equal counts values from s come first.
func (s *MostFrequentSketch) Merge(other *MostFrequentSketch) error {
	if s.topK != other.topK {
		return fmt.Errorf("topK %d and %d differ: %w", s.topK, other.topK, common.ErrDimensionMismatch)
	}
	if err := s.cm.compatible(other.cm); err != nil {
		return err
	}
	otherItems := other.Top()
	if err := s.cm.mergeFrom(other.cm); err != nil {
		return err
	}
	s.total = internal.SaturatingAdd(s.total, other.total, s.cm.maxCount)

	left := s.Top()
	for i := range left {
		left[i].Count = s.cm.estimate(0, left[i].Value)
	}
	for i := range otherItems {
		otherItems[i].Count = s.cm.estimate(0, otherItems[i].Value)
	}
	sortItems(left)
	sortItems(otherItems)

	merged := make([]FrequentItem, 0, s.topK)
	i, j := 0, 0
	for len(merged) < s.topK && (i < len(left) || j < len(otherItems)) {
		var next FrequentItem
		if i < len(left) && (j == len(otherItems) || left[i].Count >= otherItems[j].Count) {
			next = left[i]
			i++
		} else {
			next = otherItems[j]
			j++
		}
		if containsItem(merged, next.Value) {
			continue
		}
		merged = append(merged, next)
	}
	s.items = merged
	return nil
}

func containsItem(items []FrequentItem, value []byte) bool {
	for _, it := range items {
		if bytes.Equal(it.Value, value) {
			return true
		}
	}
	return false
}

// MergeMostFrequentSketches returns a new sketch combining a and b, leaving
// both untouched. A nil operand is the identity.
func MergeMostFrequentSketches(a, b *MostFrequentSketch) (*MostFrequentSketch, error) {
	switch {
	case a == nil && b == nil:
		return nil, nil
	case a == nil:
		return b.Clone(), nil
	case b == nil:
		return a.Clone(), nil
	}
	out := a.Clone()
	if err := out.Merge(b); err != nil {
		return nil, err
	}
	return out, nil
}
