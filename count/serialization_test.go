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
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/streamsketch/sketches-go/common"
	"github.com/stretchr/testify/assert"
)

func TestFrequencySketchSerialization(t *testing.T) {
	s, err := NewFrequencySketch(WithDomainBits(16), WithDepth(4), WithWidth(128),
		WithProjector(common.NewXXHashProjector(77)))
	assert.NoError(t, err)
	for i := int64(-50); i < 50; i++ {
		assert.NoError(t, s.InsertWeighted(i, i+51))
	}

	bytes := s.ToSlice()
	assert.Equal(t, preambleBytes+8*16*4*128, len(bytes))

	restored, err := NewFrequencySketchFromSlice(bytes)
	assert.NoError(t, err)
	assert.Equal(t, s.Total(), restored.Total())
	assert.Equal(t, s.Domain(), restored.Domain())
	assert.Equal(t, common.ProjectorXXHash, restored.Projector().Kind())
	assert.Equal(t, uint64(77), restored.Projector().Seed())
	for i := int64(-60); i < 60; i += 3 {
		want, _ := s.PointQuery(i)
		got, _ := restored.PointQuery(i)
		assert.Equal(t, want, got)
	}
	want, _ := s.RangeQuery(-20, 20)
	got, _ := restored.RangeQuery(-20, 20)
	assert.Equal(t, want, got)
}

func TestEmptyFrequencySketchSerialization(t *testing.T) {
	s, err := NewFrequencySketch()
	assert.NoError(t, err)
	bytes := s.ToSlice()
	assert.Len(t, bytes, preambleBytes)
	assert.True(t, isEmptyFlag(extractFlags(bytes)))

	assert.Equal(t, preambleBytes, 8*int(extractPreambleLongs(bytes)))

	restored, err := NewFrequencySketchFromSlice(bytes)
	assert.NoError(t, err)
	assert.True(t, restored.IsEmpty())
	assert.Equal(t, 64, restored.Levels())
}

func TestOversizedShapeIsRejectedBeforeAllocating(t *testing.T) {
	s, err := NewFrequencySketch()
	assert.NoError(t, err)
	empty := s.ToSlice()
	binary.LittleEndian.PutUint32(empty[widthOffset:], 65536)
	_, err = NewFrequencySketchFromSlice(empty)
	assert.True(t, errors.Is(err, common.ErrFormat), err)

	m, err := NewMostFrequentSketch(3)
	assert.NoError(t, err)
	assert.NoError(t, m.InsertString("a"))
	header := m.ToSlice()[:preambleBytes]
	binary.LittleEndian.PutUint32(header[widthOffset:], 4096)
	_, err = NewMostFrequentSketchFromSlice(header)
	assert.True(t, errors.Is(err, common.ErrFormat), err)
}

func TestFrequencySketchFromCorruptSlice(t *testing.T) {
	s, _ := NewFrequencySketch(WithDomainBits(8), WithWidth(16))
	assert.NoError(t, s.Insert(3))
	good := s.ToSlice()

	corrupt := func(mutate func(b []byte) []byte) error {
		b := append([]byte(nil), good...)
		_, err := NewFrequencySketchFromSlice(mutate(b))
		return err
	}
	testCases := []struct {
		name   string
		mutate func(b []byte) []byte
	}{
		{name: "short", mutate: func(b []byte) []byte { return b[:10] }},
		{name: "truncated payload", mutate: func(b []byte) []byte { return b[:len(b)-8] }},
		{name: "trailing bytes", mutate: func(b []byte) []byte { return append(b, 0) }},
		{name: "version", mutate: func(b []byte) []byte { b[serVerOffset] = 9; return b }},
		{name: "preamble longs", mutate: func(b []byte) []byte { b[preambleLongsOffset] = 3; return b }},
		{name: "family", mutate: func(b []byte) []byte { b[familyIDOffset] = 99; return b }},
		{name: "projector", mutate: func(b []byte) []byte { b[projectorOffset] = 0; return b }},
		{name: "levels", mutate: func(b []byte) []byte { b[levelsOffset] = 7; return b }},
		{name: "counter above max", mutate: func(b []byte) []byte {
			b[maxCountOffset] = 1
			for i := 1; i < 8; i++ {
				b[maxCountOffset+i] = 0
			}
			b[totalOffset] = 1
			b[payloadOffset] = 5
			return b
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, errors.Is(corrupt(tc.mutate), common.ErrFormat))
		})
	}
}

func TestMergeSerialized(t *testing.T) {
	a, _ := NewFrequencySketch(WithDomainBits(16), WithWidth(256))
	b, _ := NewFrequencySketch(WithDomainBits(16), WithWidth(256))
	assert.NoError(t, a.InsertWeighted(9, 4))
	assert.NoError(t, b.InsertWeighted(9, 6))

	merged, err := MergeSerialized(a.ToSlice(), b.ToSlice())
	assert.NoError(t, err)
	s, err := NewFrequencySketchFromSlice(merged)
	assert.NoError(t, err)
	est, _ := s.PointQuery(9)
	assert.Equal(t, int64(10), est)

	c, _ := NewFrequencySketch(WithDomainBits(16), WithWidth(512))
	_, err = MergeSerialized(a.ToSlice(), c.ToSlice())
	assert.True(t, errors.Is(err, common.ErrDimensionMismatch))

	m, _ := NewMostFrequentSketch(3, WithWidth(256))
	_, err = MergeSerialized(a.ToSlice(), m.ToSlice())
	assert.True(t, errors.Is(err, common.ErrDimensionMismatch))

	// a mismatched header is rejected even when the payload is missing
	header := c.ToSlice()[:preambleBytes]
	header[flagsOffset] = 0
	_, err = MergeSerialized(a.ToSlice(), header)
	assert.True(t, errors.Is(err, common.ErrDimensionMismatch))
}

func TestMostFrequentSerialization(t *testing.T) {
	s, _ := NewMostFrequentSketch(3, WithDepth(6))
	for i := 0; i < 12; i++ {
		assert.NoError(t, s.InsertString("hot"))
	}
	for i := 0; i < 4; i++ {
		assert.NoError(t, s.InsertString("warm"))
	}
	assert.NoError(t, s.Insert([]byte{}))

	restored, err := NewMostFrequentSketchFromSlice(s.ToSlice())
	assert.NoError(t, err)
	assert.Equal(t, s.Top(), restored.Top())
	assert.Equal(t, s.Total(), restored.Total())
	assert.Equal(t, s.Estimate([]byte("hot")), restored.Estimate([]byte("hot")))

	merged, err := MergeSerialized(s.ToSlice(), s.ToSlice())
	assert.NoError(t, err)
	m, err := NewMostFrequentSketchFromSlice(merged)
	assert.NoError(t, err)
	assert.Equal(t, "hot", string(m.Top()[0].Value))
	assert.GreaterOrEqual(t, m.Top()[0].Count, int64(24))

	_, err = NewFrequencySketchFromSlice(s.ToSlice())
	assert.True(t, errors.Is(err, common.ErrFormat))
}

func TestDescribe(t *testing.T) {
	s, _ := NewFrequencySketch(WithDomainBits(32), WithDepth(5), WithWidth(100), WithMaxCount(1000))
	assert.NoError(t, s.Insert(1))
	d, err := Describe(s.ToSlice())
	assert.NoError(t, err)
	assert.Equal(t, Description{
		Family:    "countmin",
		Levels:    32,
		Depth:     5,
		Width:     100,
		Projector: "murmur3",
		Seed:      common.DefaultSeed,
		MaxCount:  1000,
		Total:     1,
	}, d)
}

func TestBase64AndDump(t *testing.T) {
	s, _ := NewFrequencySketch(WithDomainBits(8), WithDepth(2), WithWidth(16))
	assert.NoError(t, s.Insert(7))

	decoded, err := base64.StdEncoding.DecodeString(s.Base64())
	assert.NoError(t, err)
	assert.Equal(t, s.ToSlice(), decoded)

	entries := s.Dump()
	assert.Len(t, entries, 8*2)
	for i, e := range entries {
		assert.Equal(t, int64(1), e.Count)
		assert.Equal(t, i/2, e.Level)
		assert.Equal(t, i%2, e.Row)
	}
}
