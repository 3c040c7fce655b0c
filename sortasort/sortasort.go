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

// Package sortasort implements a growable, deduplicated, sorted list of
// variable-length values. It backs the exact mode of the distinct count sketch.
package sortasort

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/streamsketch/sketches-go/common"
)

// InsertResult is the outcome of TryInsert.
type InsertResult int

const (
	Inserted InsertResult = iota
	AlreadyPresent
	InsufficientCapacity
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyPresent:
		return "already present"
	case InsufficientCapacity:
		return "insufficient capacity"
	}
	return fmt.Sprintf("InsertResult(%d)", int(r))
}

const (
	DefaultDirectoryCapacity = 16
	DefaultStorageCapacity   = 256
)

// SortaSort stores each distinct value once, length-prefixed, in an
// append-only storage area. The directory holds storage offsets ordered by value.
// Capacities are explicit: growth allocates new buffers and copies, so buffers
// handed out before a grow are never written again.
type SortaSort struct {
	dir        []uint32
	storage    []byte
	dirCap     int
	storageCap int
}

// NewSortaSort creates an empty list with the given directory and storage capacities.
func NewSortaSort(dirCap, storageCap int) (*SortaSort, error) {
	if dirCap <= 0 || storageCap <= 0 {
		return nil, fmt.Errorf("capacities must be positive, got %d and %d: %w", dirCap, storageCap, common.ErrConfig)
	}
	return &SortaSort{
		dir:        make([]uint32, 0, dirCap),
		storage:    make([]byte, 0, storageCap),
		dirCap:     dirCap,
		storageCap: storageCap,
	}, nil
}

// NewSortaSortWithDefault creates an empty list with default capacities.
func NewSortaSortWithDefault() *SortaSort {
	s, _ := NewSortaSort(DefaultDirectoryCapacity, DefaultStorageCapacity)
	return s
}

func (s *SortaSort) Len() int               { return len(s.dir) }
func (s *SortaSort) DirectoryCapacity() int { return s.dirCap }
func (s *SortaSort) StorageCapacity() int   { return s.storageCap }
func (s *SortaSort) StorageUsed() int       { return len(s.storage) }

func (s *SortaSort) valueAt(offset uint32) []byte {
	n, w := binary.Uvarint(s.storage[offset:])
	start := int(offset) + w
	return s.storage[start : start+int(n)]
}

// search returns the directory position of value, or where it would be inserted.
func (s *SortaSort) search(value []byte) (int, bool) {
	idx := sort.Search(len(s.dir), func(i int) bool {
		return bytes.Compare(s.valueAt(s.dir[i]), value) >= 0
	})
	return idx, idx < len(s.dir) && bytes.Equal(s.valueAt(s.dir[idx]), value)
}

func recordSize(value []byte) int {
	var tmp [binary.MaxVarintLen64]byte
	return binary.PutUvarint(tmp[:], uint64(len(value))) + len(value)
}

// TryInsert adds value if it is not present and fits in the current capacity.
func (s *SortaSort) TryInsert(value []byte) InsertResult {
	idx, found := s.search(value)
	if found {
		return AlreadyPresent
	}
	if len(s.dir) >= s.dirCap || len(s.storage)+recordSize(value) > s.storageCap {
		return InsufficientCapacity
	}

	offset := uint32(len(s.storage))
	s.storage = binary.AppendUvarint(s.storage, uint64(len(value)))
	s.storage = append(s.storage, value...)

	s.dir = append(s.dir, 0)
	copy(s.dir[idx+1:], s.dir[idx:])
	s.dir[idx] = offset
	return Inserted
}

// Grow replaces the buffers with larger copies: at least double the directory,
// and at least double the storage plus room for extraBytes more.
func (s *SortaSort) Grow(extraBytes int) {
	dirCap := 2 * s.dirCap
	storageCap := 2 * s.storageCap
	if need := len(s.storage) + extraBytes + binary.MaxVarintLen64; storageCap < need {
		storageCap = need
	}

	dir := make([]uint32, len(s.dir), dirCap)
	copy(dir, s.dir)
	storage := make([]byte, len(s.storage), storageCap)
	copy(storage, s.storage)

	s.dir, s.storage = dir, storage
	s.dirCap, s.storageCap = dirCap, storageCap
}

// Insert adds value, growing as needed. It never returns InsufficientCapacity.
func (s *SortaSort) Insert(value []byte) InsertResult {
	for {
		res := s.TryInsert(value)
		if res != InsufficientCapacity {
			return res
		}
		s.Grow(recordSize(value))
	}
}

func (s *SortaSort) Contains(value []byte) bool {
	_, found := s.search(value)
	return found
}

// At returns the i-th smallest value. The slice aliases internal storage.
func (s *SortaSort) At(i int) ([]byte, error) {
	if i < 0 || i >= len(s.dir) {
		return nil, fmt.Errorf("value %d of %d: %w", i, len(s.dir), common.ErrIndex)
	}
	return s.valueAt(s.dir[i]), nil
}

// Values returns copies of all values in ascending order.
func (s *SortaSort) Values() [][]byte {
	out := make([][]byte, len(s.dir))
	for i, off := range s.dir {
		out[i] = bytes.Clone(s.valueAt(off))
	}
	return out
}

// Each calls fn for every value in ascending order. fn must not retain the slice.
func (s *SortaSort) Each(fn func(value []byte) error) error {
	for _, off := range s.dir {
		if err := fn(s.valueAt(off)); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy with the same capacities.
func (s *SortaSort) Clone() *SortaSort {
	dir := make([]uint32, len(s.dir), s.dirCap)
	copy(dir, s.dir)
	storage := make([]byte, len(s.storage), s.storageCap)
	copy(storage, s.storage)
	return &SortaSort{dir: dir, storage: storage, dirCap: s.dirCap, storageCap: s.storageCap}
}
