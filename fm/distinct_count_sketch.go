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

// Package fm implements a Flajolet-Martin distinct count sketch. A sketch keeps
// the distinct values exactly until a threshold is reached, then promotes once
// to NumMaps probabilistic bitmaps.
package fm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/internal"
	"github.com/streamsketch/sketches-go/sortasort"
)

const (
	DefaultNumMaps    = 256
	DefaultBitmapBits = 128
	DefaultThreshold  = 12 * 1024

	// phi is the Flajolet-Martin bias correction constant.
	phi = 0.77351

	// minDigestBytes is the digest prefix read to select a bitmap.
	minDigestBytes = 8
)

// Mode is the representation currently used by a sketch.
type Mode int

const (
	ModeExact Mode = iota
	ModeApproximate
)

func (m Mode) String() string {
	switch m {
	case ModeExact:
		return "exact"
	case ModeApproximate:
		return "approximate"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

type sketchOptions struct {
	numMaps    int
	bitmapBits int
	threshold  int
	projector  common.HashProjector
}

// Option is a functional option for configuring a DistinctCountSketch.
type Option func(*sketchOptions)

// WithNumMaps sets the number of bitmaps used once the sketch is approximate.
func WithNumMaps(numMaps int) Option {
	return func(opts *sketchOptions) {
		opts.numMaps = numMaps
	}
}

// WithBitmapBits sets the bitmap length, a multiple of 32 no wider than the projector digest.
func WithBitmapBits(bits int) Option {
	return func(opts *sketchOptions) {
		opts.bitmapBits = bits
	}
}

// WithThreshold sets the number of distinct values that triggers promotion.
func WithThreshold(threshold int) Option {
	return func(opts *sketchOptions) {
		opts.threshold = threshold
	}
}

// WithProjector sets the hash projector.
func WithProjector(projector common.HashProjector) Option {
	return func(opts *sketchOptions) {
		opts.projector = projector
	}
}

// state is either *exactState or *approximateState.
type state interface {
	mode() Mode
}

type exactState struct {
	values *sortasort.SortaSort
}

type approximateState struct {
	bitmaps internal.BitmapArray
}

func (*exactState) mode() Mode       { return ModeExact }
func (*approximateState) mode() Mode { return ModeApproximate }

// DistinctCountSketch estimates the number of distinct values in a stream.
// It is not safe for concurrent mutation.
type DistinctCountSketch struct {
	numMaps    int
	bitmapBits int
	threshold  int
	projector  common.HashProjector
	state      state
	promotions int
}

// NewDistinctCountSketch creates an empty sketch in exact mode. Defaults are
// 256 bitmaps of 128 bits, a threshold of 12288 values, and the default
// murmur3 projector.
func NewDistinctCountSketch(opts ...Option) (*DistinctCountSketch, error) {
	options := &sketchOptions{
		numMaps:    DefaultNumMaps,
		bitmapBits: DefaultBitmapBits,
		threshold:  DefaultThreshold,
		projector:  common.DefaultProjector(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := validate(options); err != nil {
		return nil, err
	}
	return &DistinctCountSketch{
		numMaps:    options.numMaps,
		bitmapBits: options.bitmapBits,
		threshold:  options.threshold,
		projector:  options.projector,
		state:      &exactState{values: sortasort.NewSortaSortWithDefault()},
	}, nil
}

func validate(o *sketchOptions) error {
	if o.projector == nil {
		return fmt.Errorf("nil hash projector: %w", common.ErrConfig)
	}
	if o.numMaps < 1 || o.numMaps > math.MaxUint16 {
		return fmt.Errorf("number of bitmaps %d not in [1, %d]: %w", o.numMaps, math.MaxUint16, common.ErrConfig)
	}
	if o.bitmapBits <= 0 || o.bitmapBits%32 != 0 {
		return fmt.Errorf("bitmap length %d is not a positive multiple of 32: %w", o.bitmapBits, common.ErrConfig)
	}
	if o.projector.Size() < minDigestBytes {
		return fmt.Errorf("%d-byte digest, at least %d bytes are needed to select a bitmap: %w",
			o.projector.Size(), minDigestBytes, common.ErrConfig)
	}
	if o.bitmapBits > 8*o.projector.Size() {
		return fmt.Errorf("bitmap length %d exceeds the %d-bit digest: %w", o.bitmapBits, 8*o.projector.Size(), common.ErrConfig)
	}
	if o.threshold < 1 || o.threshold > math.MaxUint32 {
		return fmt.Errorf("threshold %d must be positive: %w", o.threshold, common.ErrConfig)
	}
	return nil
}

func (s *DistinctCountSketch) NumMaps() int                    { return s.numMaps }
func (s *DistinctCountSketch) BitmapBits() int                 { return s.bitmapBits }
func (s *DistinctCountSketch) Threshold() int                  { return s.threshold }
func (s *DistinctCountSketch) Projector() common.HashProjector { return s.projector }
func (s *DistinctCountSketch) Mode() Mode                      { return s.state.mode() }

// Promotions returns how many times this sketch switched from exact to approximate.
func (s *DistinctCountSketch) Promotions() int {
	return s.promotions
}

// NumValues returns the number of distinct values held in exact mode, or -1
// once the sketch is approximate.
func (s *DistinctCountSketch) NumValues() int {
	switch st := s.state.(type) {
	case *exactState:
		return st.values.Len()
	case *approximateState:
		return -1
	}
	panic("unreachable")
}

func (s *DistinctCountSketch) IsEmpty() bool {
	return s.NumValues() == 0
}

// Clone returns a deep copy.
func (s *DistinctCountSketch) Clone() *DistinctCountSketch {
	cp := *s
	switch st := s.state.(type) {
	case *exactState:
		cp.state = &exactState{values: st.values.Clone()}
	case *approximateState:
		cp.state = &approximateState{bitmaps: st.bitmaps.Clone()}
	}
	return &cp
}

// Insert presents value to the sketch. Reaching the threshold in exact mode
// promotes the sketch, replaying every stored value into the bitmaps.
func (s *DistinctCountSketch) Insert(value []byte) error {
	switch st := s.state.(type) {
	case *exactState:
		if st.values.Insert(value) == sortasort.Inserted && st.values.Len() >= s.threshold {
			return s.promote()
		}
		return nil
	case *approximateState:
		return s.insertApproximate(st, s.projector.Sum(value))
	}
	panic("unreachable")
}

func (s *DistinctCountSketch) InsertString(value string) error {
	return s.Insert([]byte(value))
}

// InsertInt64 presents the decimal text of value.
func (s *DistinctCountSketch) InsertInt64(value int64) error {
	return s.Insert(common.Int64Bytes(value))
}

// InsertValue presents a scalar value encoded with common.ValueBytes.
func (s *DistinctCountSketch) InsertValue(value any) error {
	b, err := common.ValueBytes(value)
	if err != nil {
		return err
	}
	return s.Insert(b)
}

// InsertDigest presents a precomputed projector digest. A digest carries no
// value to keep, so an exact sketch is promoted first.
func (s *DistinctCountSketch) InsertDigest(digest []byte) error {
	if len(digest) != s.projector.Size() {
		return fmt.Errorf("digest of %d bytes, projector produces %d: %w", len(digest), s.projector.Size(), common.ErrFormat)
	}
	if s.Mode() == ModeExact {
		if err := s.promote(); err != nil {
			return err
		}
	}
	return s.insertApproximate(s.state.(*approximateState), digest)
}

// InsertHexDigest decodes a hex digest and presents it with InsertDigest.
func (s *DistinctCountSketch) InsertHexDigest(hexDigest string) error {
	digest, err := internal.HexDecode(hexDigest)
	if err != nil {
		return err
	}
	return s.InsertDigest(digest)
}

// insertApproximate picks a bitmap from the first 8 digest bytes and sets the
// bit, counted from the left, at the position of the lowest set bit of the
// last BitmapBits bits of the digest.
func (s *DistinctCountSketch) insertApproximate(st *approximateState, digest []byte) error {
	if len(digest) < minDigestBytes || len(digest) < s.bitmapBits/8 {
		return fmt.Errorf("digest of %d bytes is too short: %w", len(digest), common.ErrFormat)
	}
	index := int(binary.LittleEndian.Uint64(digest[:minDigestBytes]) % uint64(s.numMaps))
	r, err := internal.RightmostSetBitOffset(digest[len(digest)-s.bitmapBits/8:])
	if err != nil {
		return err
	}
	if r >= s.bitmapBits {
		r = s.bitmapBits - 1
	}
	return st.bitmaps.SetBitFromLeft(index, (s.bitmapBits-1)-r)
}

func (s *DistinctCountSketch) newApproximateState() (*approximateState, error) {
	bitmaps, err := internal.NewBitmapArray(s.numMaps, s.bitmapBits)
	if err != nil {
		return nil, err
	}
	return &approximateState{bitmaps: bitmaps}, nil
}

// promote replaces an exact state with bitmaps holding every stored value.
func (s *DistinctCountSketch) promote() error {
	st, ok := s.state.(*exactState)
	if !ok {
		return nil
	}
	next, err := s.newApproximateState()
	if err != nil {
		return err
	}
	err = st.values.Each(func(value []byte) error {
		return s.insertApproximate(next, s.projector.Sum(value))
	})
	if err != nil {
		return err
	}
	s.state = next
	s.promotions++
	return nil
}

// Estimate returns the exact count in exact mode, otherwise
// ceil(NumMaps/phi * 2^(S/NumMaps)) where S sums the leading run of ones of every bitmap.
func (s *DistinctCountSketch) Estimate() (int64, error) {
	switch st := s.state.(type) {
	case *exactState:
		return int64(st.values.Len()), nil
	case *approximateState:
		sum := 0
		for i := 0; i < s.numMaps; i++ {
			bitmap, err := st.bitmaps.Sketch(i)
			if err != nil {
				return 0, err
			}
			lz, err := internal.LeftmostZeroRunLength(bitmap)
			if err != nil {
				return 0, err
			}
			sum += lz
		}
		m := float64(s.numMaps)
		return int64(math.Ceil((m / phi) * math.Pow(2.0, float64(sum)/m))), nil
	}
	panic("unreachable")
}

func (s *DistinctCountSketch) compatible(other *DistinctCountSketch) error {
	if s.numMaps != other.numMaps || s.bitmapBits != other.bitmapBits || s.threshold != other.threshold {
		return fmt.Errorf("sketches %dx%d/%d and %dx%d/%d: %w",
			s.numMaps, s.bitmapBits, s.threshold, other.numMaps, other.bitmapBits, other.threshold,
			common.ErrDimensionMismatch)
	}
	if s.projector.Kind() != other.projector.Kind() || s.projector.Seed() != other.projector.Seed() {
		return fmt.Errorf("sketches hash with %s/%d and %s/%d: %w",
			s.projector.Kind(), s.projector.Seed(), other.projector.Kind(), other.projector.Seed(),
			common.ErrDimensionMismatch)
	}
	return nil
}

// Merge combines other into s. Two exact sketches are unioned and promoted
// only if the union reaches the threshold; otherwise exact operands are
// promoted and the bitmaps are ORed. other is not modified.
func (s *DistinctCountSketch) Merge(other *DistinctCountSketch) error {
	if err := s.compatible(other); err != nil {
		return err
	}
	mine, mineExact := s.state.(*exactState)
	theirs, theirsExact := other.state.(*exactState)

	if mineExact && theirsExact {
		big, small := mine.values, theirs.values
		if small.Len() > big.Len() {
			big, small = small, big
		}
		union := big.Clone()
		_ = small.Each(func(value []byte) error {
			union.Insert(value)
			return nil
		})
		s.state = &exactState{values: union}
		if union.Len() >= s.threshold {
			return s.promote()
		}
		return nil
	}

	src := other
	if theirsExact {
		src = other.Clone()
		if err := src.promote(); err != nil {
			return err
		}
	}
	if mineExact {
		if err := s.promote(); err != nil {
			return err
		}
	}
	dst := s.state.(*approximateState)
	next := &approximateState{bitmaps: dst.bitmaps.Clone()}
	if err := next.bitmaps.UnionWith(src.state.(*approximateState).bitmaps); err != nil {
		return err
	}
	s.state = next
	return nil
}

// MergeDistinctCountSketches returns a new sketch combining a and b, leaving
// both untouched. A nil operand is the identity.
func MergeDistinctCountSketches(a, b *DistinctCountSketch) (*DistinctCountSketch, error) {
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
