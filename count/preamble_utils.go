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
	"encoding/binary"

	"github.com/streamsketch/sketches-go/internal"
)

const (
	preambleBytes = 40

	// Preamble field offsets
	preambleLongsOffset = 0
	serVerOffset        = 1
	familyIDOffset      = 2
	flagsOffset         = 3
	levelsOffset        = 4
	depthOffset         = 6
	widthOffset         = 8
	projectorOffset     = 12
	topKOffset          = 14
	seedOffset          = 16
	maxCountOffset      = 24
	totalOffset         = 32
	payloadOffset       = 40

	serVer = 1

	// Flag masks
	emptyFlagMask = 0x04
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

func extractLevels(bytes []byte) uint16 {
	return binary.LittleEndian.Uint16(bytes[levelsOffset:])
}

func extractDepth(bytes []byte) uint16 {
	return binary.LittleEndian.Uint16(bytes[depthOffset:])
}

func extractWidth(bytes []byte) uint32 {
	return binary.LittleEndian.Uint32(bytes[widthOffset:])
}

func extractProjector(bytes []byte) uint8 {
	return bytes[projectorOffset]
}

func extractTopK(bytes []byte) uint16 {
	return binary.LittleEndian.Uint16(bytes[topKOffset:])
}

func extractSeed(bytes []byte) uint64 {
	return binary.LittleEndian.Uint64(bytes[seedOffset:])
}

func extractMaxCount(bytes []byte) uint64 {
	return binary.LittleEndian.Uint64(bytes[maxCountOffset:])
}

func extractTotal(bytes []byte) uint64 {
	return binary.LittleEndian.Uint64(bytes[totalOffset:])
}

func insertPreamble(bytes []byte, family internal.Family, flags uint8) {
	bytes[preambleLongsOffset] = uint8(family.PreLongs)
	bytes[serVerOffset] = serVer
	bytes[familyIDOffset] = uint8(family.Id)
	bytes[flagsOffset] = flags
}

func insertShape(bytes []byte, cm *countMin) {
	binary.LittleEndian.PutUint16(bytes[levelsOffset:], uint16(cm.levels))
	binary.LittleEndian.PutUint16(bytes[depthOffset:], uint16(cm.depth))
	binary.LittleEndian.PutUint32(bytes[widthOffset:], uint32(cm.width))
	bytes[projectorOffset] = uint8(cm.projector.Kind())
	binary.LittleEndian.PutUint64(bytes[seedOffset:], cm.projector.Seed())
	binary.LittleEndian.PutUint64(bytes[maxCountOffset:], uint64(cm.maxCount))
}

func insertTopK(bytes []byte, topK uint16) {
	binary.LittleEndian.PutUint16(bytes[topKOffset:], topK)
}

func insertTotal(bytes []byte, total uint64) {
	binary.LittleEndian.PutUint64(bytes[totalOffset:], total)
}

func isEmptyFlag(flags uint8) bool {
	return (flags & emptyFlagMask) != 0
}
