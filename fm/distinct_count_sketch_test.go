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

package fm

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"testing"

	"github.com/streamsketch/sketches-go/common"
	"github.com/stretchr/testify/assert"
)

func insertRange(t *testing.T, s *DistinctCountSketch, lo, hi int) {
	t.Helper()
	for i := lo; i < hi; i++ {
		assert.NoError(t, s.InsertString(fmt.Sprintf("value-%d", i)))
	}
}

func bitmapBytes(s *DistinctCountSketch) []byte {
	return s.state.(*approximateState).bitmaps.Bytes()
}

// fnv32Projector is a caller-supplied projector with a 4-byte digest.
type fnv32Projector struct{}

func (fnv32Projector) Sum(data []byte) []byte {
	h := fnv.New32a()
	h.Write(data)
	return h.Sum(nil)
}
func (fnv32Projector) Size() int                  { return 4 }
func (fnv32Projector) Kind() common.ProjectorKind { return 0 }
func (fnv32Projector) Seed() uint64               { return 0 }

func TestNewDistinctCountSketchDefaults(t *testing.T) {
	s, err := NewDistinctCountSketch()
	assert.NoError(t, err)
	assert.Equal(t, DefaultNumMaps, s.NumMaps())
	assert.Equal(t, DefaultBitmapBits, s.BitmapBits())
	assert.Equal(t, 12288, s.Threshold())
	assert.Equal(t, common.ProjectorMurmur3, s.Projector().Kind())
	assert.Equal(t, ModeExact, s.Mode())
	assert.True(t, s.IsEmpty())
	est, err := s.Estimate()
	assert.NoError(t, err)
	assert.Equal(t, int64(0), est)
}

func TestInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		opts []Option
	}{
		{"zero maps", []Option{WithNumMaps(0)}},
		{"too many maps", []Option{WithNumMaps(1 << 16)}},
		{"bits not multiple of 32", []Option{WithBitmapBits(40)}},
		{"bits wider than digest", []Option{WithBitmapBits(160)}},
		{"zero threshold", []Option{WithThreshold(0)}},
		{"nil projector", []Option{WithProjector(nil)}},
		{"digest shorter than 8 bytes", []Option{WithProjector(fnv32Projector{}), WithBitmapBits(32)}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewDistinctCountSketch(c.opts...)
			assert.True(t, errors.Is(err, common.ErrConfig), err)
		})
	}
}

func TestExactCount(t *testing.T) {
	s, err := NewDistinctCountSketch()
	assert.NoError(t, err)
	insertRange(t, s, 0, 1000)
	insertRange(t, s, 0, 500)

	assert.Equal(t, ModeExact, s.Mode())
	assert.Equal(t, 1000, s.NumValues())
	assert.Equal(t, 0, s.Promotions())
	est, err := s.Estimate()
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), est)
}

func TestInsertScalarValues(t *testing.T) {
	s, err := NewDistinctCountSketch()
	assert.NoError(t, err)
	assert.NoError(t, s.InsertInt64(42))
	assert.NoError(t, s.InsertValue(int32(42)))
	assert.NoError(t, s.InsertValue("42"))
	assert.NoError(t, s.InsertValue(true))
	assert.True(t, errors.Is(s.InsertValue(nil), common.ErrFormat))
	assert.Equal(t, 2, s.NumValues())
}

func TestPromotionAtThreshold(t *testing.T) {
	s, err := NewDistinctCountSketch(WithThreshold(100))
	assert.NoError(t, err)

	insertRange(t, s, 0, 99)
	insertRange(t, s, 0, 99)
	assert.Equal(t, ModeExact, s.Mode())
	assert.Equal(t, 99, s.NumValues())

	insertRange(t, s, 99, 100)
	assert.Equal(t, ModeApproximate, s.Mode())
	assert.Equal(t, 1, s.Promotions())
	assert.Equal(t, -1, s.NumValues())

	insertRange(t, s, 100, 5000)
	assert.Equal(t, 1, s.Promotions())

	// promoting replays exactly the stored values
	direct, err := NewDistinctCountSketch(WithThreshold(1))
	assert.NoError(t, err)
	insertRange(t, direct, 0, 5000)
	assert.Equal(t, ModeApproximate, direct.Mode())
	assert.Equal(t, bitmapBytes(direct), bitmapBytes(s))
}

func TestApproximateAccuracy(t *testing.T) {
	const n = 50000
	const trials = 5
	sum := 0.0
	for seed := uint64(1); seed <= trials; seed++ {
		s, err := NewDistinctCountSketch(WithProjector(common.NewMurmur3Projector(seed)))
		assert.NoError(t, err)
		insertRange(t, s, 0, n)
		assert.Equal(t, ModeApproximate, s.Mode())

		est, err := s.Estimate()
		assert.NoError(t, err)
		relErr := math.Abs(float64(est)-n) / n
		assert.Less(t, relErr, 0.2, "seed %d estimate %d", seed, est)
		sum += float64(est)
	}
	mean := sum / trials
	assert.InDelta(t, n, mean, 0.08*n)
}

func TestApproximateIgnoresDuplicates(t *testing.T) {
	s, err := NewDistinctCountSketch(WithThreshold(10))
	assert.NoError(t, err)
	insertRange(t, s, 0, 2000)
	before := append([]byte(nil), bitmapBytes(s)...)
	insertRange(t, s, 0, 2000)
	assert.Equal(t, before, bitmapBytes(s))
}

func TestInsertHexDigest(t *testing.T) {
	s, err := NewDistinctCountSketch()
	assert.NoError(t, err)
	assert.NoError(t, s.InsertString("kept"))

	digest := s.Projector().Sum([]byte("x"))
	assert.NoError(t, s.InsertHexDigest(hex.EncodeToString(digest)))
	assert.Equal(t, ModeApproximate, s.Mode())
	assert.Equal(t, 1, s.Promotions())

	ref, err := NewDistinctCountSketch(WithThreshold(1))
	assert.NoError(t, err)
	assert.NoError(t, ref.InsertString("kept"))
	assert.NoError(t, ref.InsertString("x"))
	assert.Equal(t, bitmapBytes(ref), bitmapBytes(s))

	assert.True(t, errors.Is(s.InsertHexDigest("abc"), common.ErrFormat))
	assert.True(t, errors.Is(s.InsertHexDigest("zz"), common.ErrFormat))
	assert.True(t, errors.Is(s.InsertHexDigest("abcd"), common.ErrFormat))
}

func TestMergeExactUnion(t *testing.T) {
	a, _ := NewDistinctCountSketch(WithThreshold(1000))
	b, _ := NewDistinctCountSketch(WithThreshold(1000))
	insertRange(t, a, 0, 50)
	insertRange(t, b, 25, 75)

	m, err := MergeDistinctCountSketches(a, b)
	assert.NoError(t, err)
	assert.Equal(t, ModeExact, m.Mode())
	assert.Equal(t, 75, m.NumValues())
	assert.Equal(t, 50, a.NumValues())
	assert.Equal(t, 50, b.NumValues())
}

func TestMergeExactReachingThreshold(t *testing.T) {
	a, _ := NewDistinctCountSketch(WithThreshold(100))
	b, _ := NewDistinctCountSketch(WithThreshold(100))
	insertRange(t, a, 0, 60)
	insertRange(t, b, 40, 100)

	assert.NoError(t, a.Merge(b))
	assert.Equal(t, ModeApproximate, a.Mode())
	assert.Equal(t, ModeExact, b.Mode())

	direct, _ := NewDistinctCountSketch(WithThreshold(1))
	insertRange(t, direct, 0, 100)
	assert.Equal(t, bitmapBytes(direct), bitmapBytes(a))
}

func TestMergeExactIsAssociative(t *testing.T) {
	build := func(lo, hi int) *DistinctCountSketch {
		s, err := NewDistinctCountSketch(WithThreshold(100))
		assert.NoError(t, err)
		insertRange(t, s, lo, hi)
		return s
	}
	a, b, c := build(0, 40), build(0, 40), build(40, 70)

	ab, err := MergeDistinctCountSketches(a, b)
	assert.NoError(t, err)
	left, err := MergeDistinctCountSketches(ab, c)
	assert.NoError(t, err)
	bc, err := MergeDistinctCountSketches(b, c)
	assert.NoError(t, err)
	right, err := MergeDistinctCountSketches(a, bc)
	assert.NoError(t, err)

	assert.Equal(t, ModeExact, left.Mode())
	assert.Equal(t, 70, left.NumValues())
	assert.Equal(t, left.ToSlice(), right.ToSlice())
}

func TestMergeMixedModes(t *testing.T) {
	build := func(lo, hi int) *DistinctCountSketch {
		s, err := NewDistinctCountSketch(WithThreshold(500))
		assert.NoError(t, err)
		insertRange(t, s, lo, hi)
		return s
	}
	a, b, c := build(0, 3000), build(2500, 2700), build(10000, 10400)
	assert.Equal(t, ModeApproximate, a.Mode())
	assert.Equal(t, ModeExact, b.Mode())

	ab, _ := MergeDistinctCountSketches(a, b)
	ba, _ := MergeDistinctCountSketches(b, a)
	assert.Equal(t, ab.ToSlice(), ba.ToSlice())

	abc, _ := MergeDistinctCountSketches(ab, c)
	bc, _ := MergeDistinctCountSketches(b, c)
	aBC, _ := MergeDistinctCountSketches(a, bc)
	assert.Equal(t, abc.ToSlice(), aBC.ToSlice())

	direct := build(0, 3000)
	insertRange(t, direct, 10000, 10400)
	assert.Equal(t, direct.ToSlice(), abc.ToSlice())
	assert.Equal(t, ModeExact, b.Mode())
}

func TestMergeIdentity(t *testing.T) {
	a, _ := NewDistinctCountSketch()
	insertRange(t, a, 0, 10)

	m, err := MergeDistinctCountSketches(nil, a)
	assert.NoError(t, err)
	assert.Equal(t, a.ToSlice(), m.ToSlice())
	m, err = MergeDistinctCountSketches(a, nil)
	assert.NoError(t, err)
	assert.Equal(t, a.ToSlice(), m.ToSlice())
	m, err = MergeDistinctCountSketches(nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, m)

	empty, _ := NewDistinctCountSketch()
	m, err = MergeDistinctCountSketches(a, empty)
	assert.NoError(t, err)
	assert.Equal(t, a.ToSlice(), m.ToSlice())
}

func TestMergeMismatch(t *testing.T) {
	a, _ := NewDistinctCountSketch()
	b, _ := NewDistinctCountSketch(WithNumMaps(64))
	c, _ := NewDistinctCountSketch(WithProjector(common.NewMurmur3Projector(7)))
	d, _ := NewDistinctCountSketch(WithProjector(common.NewXXHashProjector(common.DefaultSeed)))

	assert.True(t, errors.Is(a.Merge(b), common.ErrDimensionMismatch))
	assert.True(t, errors.Is(a.Merge(c), common.ErrDimensionMismatch))
	assert.True(t, errors.Is(a.Merge(d), common.ErrDimensionMismatch))
}

func TestSelfMerge(t *testing.T) {
	s, _ := NewDistinctCountSketch(WithThreshold(50))
	insertRange(t, s, 0, 500)
	before := s.ToSlice()
	assert.NoError(t, s.Merge(s))
	assert.Equal(t, before, s.ToSlice())
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "exact", ModeExact.String())
	assert.Equal(t, "approximate", ModeApproximate.String())
	assert.Equal(t, "Mode(7)", Mode(7).String())
}

func TestConfigRoundTrip(t *testing.T) {
	s, err := NewDistinctCountSketchFromConfig(Config{NumMaps: 16, Threshold: 5})
	assert.NoError(t, err)
	c := s.Config()
	assert.Equal(t, 16, c.NumMaps)
	assert.Equal(t, DefaultBitmapBits, c.BitmapBits)
	assert.Equal(t, 5, c.Threshold)

	again, err := NewDistinctCountSketchFromConfig(c)
	assert.NoError(t, err)
	assert.NoError(t, s.Merge(again))

	d, err := NewDistinctCountSketchFromConfig(DefaultConfig())
	assert.NoError(t, err)
	assert.Equal(t, DefaultThreshold, d.Threshold())
}

func TestShortDigestProjectorIsRejected(t *testing.T) {
	s, err := NewDistinctCountSketch(WithProjector(fnv32Projector{}), WithBitmapBits(32), WithThreshold(1))
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, common.ErrConfig), err)

	// a projector returning fewer bytes than it reports fails without panicking
	s, err = NewDistinctCountSketch(WithProjector(truncatingProjector{common.DefaultProjector()}), WithThreshold(1))
	assert.NoError(t, err)
	assert.NotPanics(t, func() {
		assert.True(t, errors.Is(s.InsertString("x"), common.ErrFormat))
	})
}

type truncatingProjector struct {
	common.HashProjector
}

func (p truncatingProjector) Sum(data []byte) []byte { return p.HashProjector.Sum(data)[:4] }
