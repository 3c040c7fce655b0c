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

package internal

import (
	"errors"
	"testing"

	"github.com/streamsketch/sketches-go/common"
	"github.com/stretchr/testify/assert"
)

func TestRightmostSetBitOffset(t *testing.T) {
	testCases := []struct {
		name     string
		input    []byte
		expected int
	}{
		{name: "zero", input: []byte{0, 0, 0, 0}, expected: 32},
		{name: "wide zero", input: make([]byte, 16), expected: 128},
		{name: "all ones", input: []byte{0xff, 0xff, 0xff, 0xff}, expected: 0},
		{name: "lowest bit set", input: []byte{0, 0, 0, 1}, expected: 0},
		{name: "second lowest bit set", input: []byte{0, 0, 0, 2}, expected: 1},
		{name: "byte boundary 8", input: []byte{0, 0, 1, 0}, expected: 8},
		{name: "byte boundary 24", input: []byte{1, 0, 0, 0}, expected: 24},
		{name: "highest bit only", input: []byte{0x80, 0, 0, 0}, expected: 31},
		{name: "second word", input: []byte{0, 0, 0, 0, 0, 0x10, 0, 0}, expected: 20},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := RightmostSetBitOffset(tc.input)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestLeftmostZeroRunLength(t *testing.T) {
	testCases := []struct {
		name     string
		input    []byte
		expected int
	}{
		{name: "zero", input: []byte{0, 0, 0, 0}, expected: 0},
		{name: "all ones", input: []byte{0xff, 0xff, 0xff, 0xff}, expected: 32},
		{name: "highest bit only", input: []byte{0x80, 0, 0, 0}, expected: 1},
		{name: "seven ones", input: []byte{0xfe, 0, 0, 0}, expected: 7},
		{name: "ten ones", input: []byte{0xff, 0xc0, 0, 0}, expected: 10},
		{name: "leading zero", input: []byte{0x7f, 0xff, 0xff, 0xff}, expected: 0},
		{name: "gap", input: []byte{0xff, 0xff, 0xff, 0xfe, 0xff, 0xff, 0xff, 0xff}, expected: 31},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := LeftmostZeroRunLength(tc.input)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestBitStringLengthMustBeWords(t *testing.T) {
	_, err := RightmostSetBitOffset([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, common.ErrConfig))
	_, err = LeftmostZeroRunLength(nil)
	assert.True(t, errors.Is(err, common.ErrConfig))
}
