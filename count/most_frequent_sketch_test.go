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
	"errors"
	"fmt"
	"testing"

	"github.com/streamsketch/sketches-go/common"
	"github.com/stretchr/testify/assert"
)

func TestMostFrequentInsert(t *testing.T) {
	s, err := NewMostFrequentSketch(3)
	assert.NoError(t, err)

	for i := 0; i < 100; i++ {
		assert.NoError(t, s.InsertString("a"))
		if i < 50 {
			assert.NoError(t, s.InsertString("b"))
		}
		if i < 10 {
			assert.NoError(t, s.InsertString("c"))
		}
		assert.NoError(t, s.InsertString(fmt.Sprintf("single-%d", i)))
	}

	top := s.Top()
	assert.Len(t, top, 3)
	assert.Equal(t, "a", string(top[0].Value))
	assert.Equal(t, "b", string(top[1].Value))
	assert.Equal(t, "c", string(top[2].Value))
	assert.GreaterOrEqual(t, top[0].Count, int64(100))
	assert.GreaterOrEqual(t, top[1].Count, int64(50))
	assert.GreaterOrEqual(t, top[2].Count, int64(10))
	assert.Equal(t, int64(260), s.Total())
}

func TestMostFrequentLateHeavyHitter(t *testing.T) {
	s, err := NewMostFrequentSketch(2)
	assert.NoError(t, err)
	assert.NoError(t, s.InsertString("x"))
	assert.NoError(t, s.InsertString("y"))
	for i := 0; i < 5; i++ {
		assert.NoError(t, s.InsertString("z"))
	}
	top := s.Top()
	assert.Equal(t, "z", string(top[0].Value))
	assert.GreaterOrEqual(t, top[0].Count, int64(5))
}

func TestMostFrequentMerge(t *testing.T) {
	a, _ := NewMostFrequentSketch(2)
	b, _ := NewMostFrequentSketch(2)
	for i := 0; i < 30; i++ {
		assert.NoError(t, a.InsertString("x"))
	}
	for i := 0; i < 20; i++ {
		assert.NoError(t, a.InsertString("y"))
	}
	for i := 0; i < 40; i++ {
		assert.NoError(t, b.InsertString("z"))
	}
	for i := 0; i < 15; i++ {
		assert.NoError(t, b.InsertString("y"))
	}

	merged, err := MergeMostFrequentSketches(a, b)
	assert.NoError(t, err)
	top := merged.Top()
	assert.Len(t, top, 2)
	assert.Equal(t, "z", string(top[0].Value))
	assert.Equal(t, "y", string(top[1].Value))
	assert.GreaterOrEqual(t, top[1].Count, int64(35))
	assert.Equal(t, int64(105), merged.Total())

	// inputs are untouched
	assert.Equal(t, int64(50), a.Total())
	assert.Equal(t, "x", string(a.Top()[0].Value))
}

func TestMostFrequentMergeMismatch(t *testing.T) {
	a, _ := NewMostFrequentSketch(2)
	b, _ := NewMostFrequentSketch(3)
	assert.True(t, errors.Is(a.Merge(b), common.ErrDimensionMismatch))

	c, _ := NewMostFrequentSketch(2, WithWidth(32))
	assert.True(t, errors.Is(a.Merge(c), common.ErrDimensionMismatch))
}

func TestMostFrequentInvalidTopK(t *testing.T) {
	_, err := NewMostFrequentSketch(0)
	assert.True(t, errors.Is(err, common.ErrConfig))
}

func TestMostFrequentMergeIdentity(t *testing.T) {
	a, _ := NewMostFrequentSketch(4)
	assert.NoError(t, a.InsertString("q"))
	merged, err := MergeMostFrequentSketches(a, nil)
	assert.NoError(t, err)
	assert.Equal(t, a.Top(), merged.Top())

	empty, _ := NewMostFrequentSketch(4)
	merged, err = MergeMostFrequentSketches(empty, a)
	assert.NoError(t, err)
	assert.Equal(t, a.Top(), merged.Top())
}
