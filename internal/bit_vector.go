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
	"encoding/hex"
	"fmt"

	"github.com/streamsketch/sketches-go/common"
)

// BitmapArray is a packed array of equal-width big-endian bit strings.
// Sub-bitmap i occupies bytes [i*bitLen/8, (i+1)*bitLen/8).
type BitmapArray struct {
	bits        []byte
	numSketches int
	bitLen      int
}

// NewBitmapArray allocates numSketches zeroed bit strings of bitLen bits each.
func NewBitmapArray(numSketches, bitLen int) (BitmapArray, error) {
	if bitLen <= 0 || bitLen%(bitUnitBytes*8) != 0 {
		return BitmapArray{}, fmt.Errorf("bitmap length %d is not a positive multiple of 32: %w", bitLen, common.ErrConfig)
	}
	if numSketches <= 0 {
		return BitmapArray{}, fmt.Errorf("number of bitmaps must be positive, got %d: %w", numSketches, common.ErrConfig)
	}
	return BitmapArray{
		bits:        make([]byte, numSketches*bitLen/8),
		numSketches: numSketches,
		bitLen:      bitLen,
	}, nil
}

// WrapBitmapArray views raw bytes as a bitmap array without copying.
func WrapBitmapArray(bits []byte, numSketches, bitLen int) (BitmapArray, error) {
	if bitLen <= 0 || bitLen%(bitUnitBytes*8) != 0 {
		return BitmapArray{}, fmt.Errorf("bitmap length %d is not a positive multiple of 32: %w", bitLen, common.ErrConfig)
	}
	if numSketches <= 0 || len(bits) != numSketches*bitLen/8 {
		return BitmapArray{}, fmt.Errorf("%d bytes cannot hold %d bitmaps of %d bits: %w",
			len(bits), numSketches, bitLen, common.ErrFormat)
	}
	return BitmapArray{bits: bits, numSketches: numSketches, bitLen: bitLen}, nil
}

func (a BitmapArray) NumSketches() int { return a.numSketches }
func (a BitmapArray) BitLen() int      { return a.bitLen }
func (a BitmapArray) Bytes() []byte    { return a.bits }

// Sketch returns sub-bitmap i, sharing storage with the array.
func (a BitmapArray) Sketch(i int) ([]byte, error) {
	if i < 0 || i >= a.numSketches {
		return nil, fmt.Errorf("bitmap %d of %d: %w", i, a.numSketches, common.ErrIndex)
	}
	n := a.bitLen / 8
	return a.bits[i*n : (i+1)*n], nil
}

// Clone returns a deep copy.
func (a BitmapArray) Clone() BitmapArray {
	bits := make([]byte, len(a.bits))
	copy(bits, a.bits)
	return BitmapArray{bits: bits, numSketches: a.numSketches, bitLen: a.bitLen}
}

// SetBitFromLeft sets one bit of one sub-bitmap. The sub-bitmap is addressed
// from the left of the array; the bit is addressed from its right end, bit 0
// being the least significant bit of the last byte.
func (a BitmapArray) SetBitFromLeft(sketchIndex, bitIndexFromRight int) error {
	byteIdx, mask, err := a.locate(sketchIndex, bitIndexFromRight)
	if err != nil {
		return err
	}
	a.bits[byteIdx] |= mask
	return nil
}

// IsSetFromLeft reports a bit addressed as in SetBitFromLeft.
func (a BitmapArray) IsSetFromLeft(sketchIndex, bitIndexFromRight int) (bool, error) {
	byteIdx, mask, err := a.locate(sketchIndex, bitIndexFromRight)
	if err != nil {
		return false, err
	}
	return a.bits[byteIdx]&mask != 0, nil
}

func (a BitmapArray) locate(sketchIndex, bitIndexFromRight int) (int, byte, error) {
	if sketchIndex < 0 || sketchIndex >= a.numSketches {
		return 0, 0, fmt.Errorf("bitmap %d of %d: %w", sketchIndex, a.numSketches, common.ErrIndex)
	}
	if bitIndexFromRight < 0 || bitIndexFromRight >= a.bitLen {
		return 0, 0, fmt.Errorf("bit %d of %d: %w", bitIndexFromRight, a.bitLen, common.ErrIndex)
	}
	bytesPerSketch := a.bitLen / 8
	byteIdx := sketchIndex*bytesPerSketch + (bytesPerSketch - 1 - bitIndexFromRight/8)
	return byteIdx, byte(1) << (bitIndexFromRight % 8), nil
}

// UnionWith ORs source into the array. Both arrays must have the same shape.
func (a BitmapArray) UnionWith(source BitmapArray) error {
	if a.numSketches != source.numSketches || a.bitLen != source.bitLen {
		return fmt.Errorf("bitmaps %dx%d and %dx%d: %w",
			a.numSketches, a.bitLen, source.numSketches, source.bitLen, common.ErrDimensionMismatch)
	}
	for i := range a.bits {
		a.bits[i] |= source.bits[i]
	}
	return nil
}

// HexDecode decodes two hex digits per output byte, accepting either case.
func HexDecode(hexChars string) ([]byte, error) {
	if len(hexChars)%2 != 0 {
		return nil, fmt.Errorf("hex string has odd length %d: %w", len(hexChars), common.ErrFormat)
	}
	out, err := hex.DecodeString(hexChars)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, common.ErrFormat)
	}
	return out, nil
}
