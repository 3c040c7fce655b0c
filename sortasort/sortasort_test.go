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

package sortasort

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/streamsketch/sketches-go/common"
	"github.com/stretchr/testify/assert"
)

func TestTryInsert(t *testing.T) {
	s, err := NewSortaSort(4, 64)
	assert.NoError(t, err)

	assert.Equal(t, Inserted, s.TryInsert([]byte("m")))
	assert.Equal(t, Inserted, s.TryInsert([]byte("a")))
	assert.Equal(t, AlreadyPresent, s.TryInsert([]byte("m")))
	assert.Equal(t, Inserted, s.TryInsert([]byte("z")))
	assert.Equal(t, Inserted, s.TryInsert([]byte("")))
	assert.Equal(t, 4, s.Len())

	// directory is full
	assert.Equal(t, InsufficientCapacity, s.TryInsert([]byte("q")))
	// duplicates are still detected when full
	assert.Equal(t, AlreadyPresent, s.TryInsert([]byte("a")))

	assert.Equal(t, [][]byte{{}, []byte("a"), []byte("m"), []byte("z")}, s.Values())
}

func TestStorageCapacity(t *testing.T) {
	s, err := NewSortaSort(16, 8)
	assert.NoError(t, err)
	assert.Equal(t, Inserted, s.TryInsert([]byte("abc")))
	assert.Equal(t, InsufficientCapacity, s.TryInsert([]byte("defghij")))
	assert.Equal(t, 1, s.Len())
}

func TestGrowPreservesEntries(t *testing.T) {
	s, err := NewSortaSort(2, 8)
	assert.NoError(t, err)
	assert.Equal(t, Inserted, s.TryInsert([]byte("b")))
	assert.Equal(t, Inserted, s.TryInsert([]byte("a")))
	before := s.Values()
	oldStorage := s.storage[:cap(s.storage)]

	s.Grow(100)
	assert.Equal(t, 4, s.DirectoryCapacity())
	assert.GreaterOrEqual(t, s.StorageCapacity(), 100)
	assert.Equal(t, before, s.Values())

	assert.Equal(t, Inserted, s.TryInsert([]byte("c")))
	// the old buffer was not written after the grow
	assert.Equal(t, []byte{0, 0, 0, 0}, oldStorage[4:])
}

func TestInsertGrows(t *testing.T) {
	s, err := NewSortaSort(1, 1)
	assert.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	expected := map[string]struct{}{}
	for i := 0; i < 5000; i++ {
		v := fmt.Sprintf("value-%d", rng.Intn(2000))
		_, seen := expected[v]
		res := s.Insert([]byte(v))
		if seen {
			assert.Equal(t, AlreadyPresent, res)
		} else {
			assert.Equal(t, Inserted, res)
		}
		expected[v] = struct{}{}
	}
	assert.Equal(t, len(expected), s.Len())

	values := s.Values()
	assert.True(t, sort.SliceIsSorted(values, func(i, j int) bool {
		return string(values[i]) < string(values[j])
	}))
	for v := range expected {
		assert.True(t, s.Contains([]byte(v)))
	}
	assert.False(t, s.Contains([]byte("missing")))
}

func TestAtAndEach(t *testing.T) {
	s := NewSortaSortWithDefault()
	for _, v := range []string{"c", "a", "b"} {
		s.Insert([]byte(v))
	}
	v, err := s.At(1)
	assert.NoError(t, err)
	assert.Equal(t, "b", string(v))

	_, err = s.At(3)
	assert.True(t, errors.Is(err, common.ErrIndex))

	var seen []string
	assert.NoError(t, s.Each(func(value []byte) error {
		seen = append(seen, string(value))
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "c"}, seen)

	stop := errors.New("stop")
	assert.Equal(t, stop, s.Each(func([]byte) error { return stop }))
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewSortaSortWithDefault()
	s.Insert([]byte("x"))
	c := s.Clone()
	c.Insert([]byte("y"))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, c.Len())
}

func TestInvalidCapacity(t *testing.T) {
	_, err := NewSortaSort(0, 10)
	assert.True(t, errors.Is(err, common.ErrConfig))
}
