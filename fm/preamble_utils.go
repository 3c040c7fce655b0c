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
	"encoding/binary"

	"github.com/streamsketch/sketches-go/internal"
)

const (
	preambleBytes = 24

	// Preamble field offsets
	preambleLongsOffset = 0
	serVerOffset        = 1
	familyIDOffset      = 2
	flagsOffset         = 3
	numMapsOffset       = 4
	bitmapBitsOffset    = 6
	thresholdOffset     = 8
	projectorOffset     = 12
	seedOffset          = 16
	payloadOffset       = 24

	serVer = 1

	// Flag masks
	emptyFlagMask       = 0x04
	approximateFlagMask = 0x08
)

func extractPreambleLongs(bytes []byte) uint8 {
	return bytes[preambleLongsOffset]
}

func extractSerVer(bytes []byte) uint8 {
	return bytes[serVerOffset]
}

func extractFamilyID(bytes []byte) uint8 {
	return bytes[familyIDOffset]
}

func extractFlags(bytes []byte) uint8 {
	return bytes[flagsOffset]
}

func extractNumMaps(bytes []byte) uint16 {
	return binary.LittleEndian.Uint16(bytes[numMapsOffset:])
}

func extractBitmapBits(bytes []byte) uint16 {
	return binary.LittleEndian.Uint16(bytes[bitmapBitsOffset:])
}

func extractThreshold(bytes []byte) uint32 {
	return binary.LittleEndian.Uint32(bytes[thresholdOffset:])
}

func extractProjector(bytes []byte) uint8 {
	return bytes[projectorOffset]
}

func extractSeed(bytes []byte) uint64 {
	return binary.LittleEndian.Uint64(bytes[seedOffset:])
}

func insertPreamble(bytes []byte, family internal.Family, flags uint8) {
	bytes[preambleLongsOffset] = uint8(family.PreLongs)
	bytes[serVerOffset] = serVer
	bytes[familyIDOffset] = uint8(family.Id)
	bytes[flagsOffset] = flags
}

func insertConfig(bytes []byte, s *DistinctCountSketch) {
	binary.LittleEndian.PutUint16(bytes[numMapsOffset:], uint16(s.numMaps))
	binary.LittleEndian.PutUint16(bytes[bitmapBitsOffset:], uint16(s.bitmapBits))
	binary.LittleEndian.PutUint32(bytes[thresholdOffset:], uint32(s.threshold))
	bytes[projectorOffset] = uint8(s.projector.Kind())
	binary.LittleEndian.PutUint64(bytes[seedOffset:], s.projector.Seed())
}

func isEmptyFlag(flags uint8) bool {
	return (flags & emptyFlagMask) != 0
}

func isApproximateFlag(flags uint8) bool {
	return (flags & approximateFlagMask) != 0
}
