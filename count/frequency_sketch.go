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

// Package count provides Count-Min based frequency sketches: FrequencySketch
// answers point, range, centile and histogram queries over a signed integer
// domain using one Count-Min grid per dyadic level, and MostFrequentSketch
// tracks the most frequent values of a stream.
package count

import (
	"fmt"
	"math"

	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/dyadic"
	"github.com/streamsketch/sketches-go/internal"
)

// frequencySketchOptions holds optional parameters for sketch construction.
type frequencySketchOptions struct {
	depth      int
	width      int
	domainBits int
	maxCount   int64
	projector  common.HashProjector
}

// Option is a functional option for configuring the Count-Min sketches.
type Option func(*frequencySketchOptions)

// WithDepth sets the number of hashed rows per level.
func WithDepth(depth int) Option {
	return func(opts *frequencySketchOptions) {
		opts.depth = depth
	}
}

// WithWidth sets the number of counters per row.
func WithWidth(width int) Option {
	return func(opts *frequencySketchOptions) {
		opts.width = width
	}
}

// WithDomainBits sets the bit width of the value domain: 8, 16, 32 or 64.
// One dyadic level is kept per bit.
func WithDomainBits(bits int) Option {
	return func(opts *frequencySketchOptions) {
		opts.domainBits = bits
	}
}

// WithMaxCount sets the largest value a counter may hold.
func WithMaxCount(maxCount int64) Option {
	return func(opts *frequencySketchOptions) {
		opts.maxCount = maxCount
	}
}

// WithProjector sets the hash projector.
func WithProjector(projector common.HashProjector) Option {
	return func(opts *frequencySketchOptions) {
		opts.projector = projector
	}
}

func applyOptions(opts []Option) *frequencySketchOptions {
	options := &frequencySketchOptions{
		depth:      DefaultDepth,
		width:      DefaultWidth,
		domainBits: 64,
		maxCount:   math.MaxInt64,
		projector:  common.DefaultProjector(),
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// FrequencySketch is a Count-Min sketch over a signed integer domain with one
// counter grid per dyadic level. Level l counts the prefixes value >> l, so a
// dyadic span of width 2^l is answered by a single point estimate at level l.
//
// A FrequencySketch is not safe for concurrent mutation.
type FrequencySketch struct {
	cm     *countMin
	domain dyadic.Domain
	total  int64
	locs   []int
}

// NewFrequencySketch creates an empty sketch. Defaults are 8 rows of 1024
// counters, a 64-bit domain, no counter limit below math.MaxInt64, and the
// default murmur3 projector.
func NewFrequencySketch(opts ...Option) (*FrequencySketch, error) {
	options := applyOptions(opts)
	domain, err := dyadic.NewDomain(options.domainBits)
	if err != nil {
		return nil, err
	}
	cm, err := newCountMin(domain.Bits(), options.depth, options.width, options.maxCount, options.projector)
	if err != nil {
		return nil, err
	}
	return &FrequencySketch{cm: cm, domain: domain}, nil
}

func (s *FrequencySketch) Depth() int                      { return s.cm.depth }
func (s *FrequencySketch) Width() int                      { return s.cm.width }
func (s *FrequencySketch) Levels() int                     { return s.cm.levels }
func (s *FrequencySketch) MaxCount() int64                 { return s.cm.maxCount }
func (s *FrequencySketch) Domain() dyadic.Domain           { return s.domain }
func (s *FrequencySketch) Projector() common.HashProjector { return s.cm.projector }

// Total returns the sum of all inserted counts, saturating at MaxCount.
func (s *FrequencySketch) Total() int64 {
	return s.total
}

func (s *FrequencySketch) IsEmpty() bool {
	return s.total == 0
}

// RelativeError returns e/width, the bound on the overcount of a point
// estimate as a fraction of Total.
func (s *FrequencySketch) RelativeError() float64 {
	return s.cm.relativeError()
}

// Clone returns a deep copy.
func (s *FrequencySketch) Clone() *FrequencySketch {
	return &FrequencySketch{cm: s.cm.clone(), domain: s.domain, total: s.total}
}

func (s *FrequencySketch) checkDomain(value int64) error {
	if !s.domain.Contains(value) {
		return fmt.Errorf("value %d outside [%d, %d]: %w", value, s.domain.Min(), s.domain.Max(), common.ErrDomain)
	}
	return nil
}

// Insert counts one occurrence of value.
func (s *FrequencySketch) Insert(value int64) error {
	return s.InsertWeighted(value, 1)
}

// InsertWeighted counts count occurrences of value. If any counter touched
// would pass MaxCount, nothing is updated and ErrCapacityExceeded is returned.
func (s *FrequencySketch) InsertWeighted(value int64, count int64) error {
	if err := s.checkDomain(value); err != nil {
		return err
	}
	if count < 0 {
		return fmt.Errorf("negative count %d: %w", count, common.ErrDomain)
	}
	if count == 0 {
		return nil
	}

	s.locs = s.locs[:0]
	for level := 0; level < s.cm.levels; level++ {
		key := common.Int64Bytes(value >> uint(level))
		s.locs = append(s.locs, s.cm.locations(level, key, nil)...)
	}
	if err := s.cm.checkIncrement(s.locs, count); err != nil {
		return err
	}
	s.cm.increment(s.locs, count)
	s.total = internal.SaturatingAdd(s.total, count, s.cm.maxCount)
	return nil
}

// PointQuery returns the estimated count of value. It never under-counts.
func (s *FrequencySketch) PointQuery(value int64) (int64, error) {
	if err := s.checkDomain(value); err != nil {
		return 0, err
	}
	return s.cm.estimate(0, common.Int64Bytes(value)), nil
}

// PointQueryAtLevel returns the estimated count of all values whose prefix at
// level is prefix, that is the values v with v >> level == prefix.
func (s *FrequencySketch) PointQueryAtLevel(prefix int64, level int) (int64, error) {
	if level < 0 || level >= s.cm.levels {
		return 0, fmt.Errorf("level %d of %d: %w", level, s.cm.levels, common.ErrIndex)
	}
	return s.cm.estimate(level, common.Int64Bytes(prefix)), nil
}

// UpperBound returns the point estimate plus the Count-Min additive error bound.
func (s *FrequencySketch) UpperBound(value int64) (int64, error) {
	est, err := s.PointQuery(value)
	if err != nil {
		return 0, err
	}
	return internal.SaturatingAdd(est, int64(s.RelativeError()*float64(s.total)), math.MaxInt64), nil
}

// RangeQuery returns the estimated number of values in [lo, hi] as the sum of
// one point estimate per dyadic span of the interval.
func (s *FrequencySketch) RangeQuery(lo, hi int64) (int64, error) {
	if err := s.checkDomain(lo); err != nil {
		return 0, err
	}
	if err := s.checkDomain(hi); err != nil {
		return 0, err
	}
	return s.rangeCount(lo, hi), nil
}

func (s *FrequencySketch) rangeCount(lo, hi int64) int64 {
	sum := int64(0)
	for _, span := range dyadic.Decompose(lo, hi) {
		est := s.cm.estimate(span.Level(), common.Int64Bytes(span.Prefix()))
		sum = internal.SaturatingAdd(sum, est, math.MaxInt64)
	}
	return sum
}

// Merge adds other's counts into s. Both sketches must share depth, width,
// levels, projector and MaxCount. Counters saturate at MaxCount.
func (s *FrequencySketch) Merge(other *FrequencySketch) error {
	if err := s.cm.compatible(other.cm); err != nil {
		return err
	}
	if err := s.cm.mergeFrom(other.cm); err != nil {
		return err
	}
	s.total = internal.SaturatingAdd(s.total, other.total, s.cm.maxCount)
	return nil
}

// MergeFrequencySketches returns a new sketch holding the counts of a and b,
// leaving both untouched. A nil operand is the identity.
func MergeFrequencySketches(a, b *FrequencySketch) (*FrequencySketch, error) {
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
