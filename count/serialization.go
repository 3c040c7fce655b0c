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
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/dyadic"
	"github.com/streamsketch/sketches-go/internal"
)

// Description summarizes a serialized Count-Min image without decoding its counters.
type Description struct {
	Family    string `json:"family"`
	Empty     bool   `json:"empty"`
	Levels    int    `json:"levels"`
	Depth     int    `json:"depth"`
	Width     int    `json:"width"`
	Projector string `json:"projector"`
	Seed      uint64 `json:"seed"`
	MaxCount  int64  `json:"max_count"`
	Total     int64  `json:"total"`
	TopK      int    `json:"top_k,omitempty"`
}

type header struct {
	family    uint8
	flags     uint8
	levels    int
	depth     int
	width     int
	topK      int
	projector common.HashProjector
	maxCount  int64
	total     int64
}

func (h header) numCounters() int {
	return h.levels * h.depth * h.width
}

func readHeader(bytes []byte) (header, error) {
	if len(bytes) < preambleBytes {
		return header{}, fmt.Errorf("insufficient data: need at least %d bytes, got %d: %w",
			preambleBytes, len(bytes), common.ErrFormat)
	}
	if v := extractSerVer(bytes); v != serVer {
		return header{}, fmt.Errorf("unsupported serialization version: %d (expected %d): %w", v, serVer, common.ErrFormat)
	}
	fID := extractFamilyID(bytes)
	if int(fID) != internal.FamilyEnum.CountMin.Id && int(fID) != internal.FamilyEnum.MostFrequent.Id {
		return header{}, fmt.Errorf("family %d is not a Count-Min family: %w", fID, common.ErrFormat)
	}
	family, _ := internal.FamilyByID(int(fID))
	if pl := extractPreambleLongs(bytes); int(pl) != family.PreLongs {
		return header{}, fmt.Errorf("preamble longs %d, expected %d: %w", pl, family.PreLongs, common.ErrFormat)
	}
	projector, err := common.NewProjector(common.ProjectorKind(extractProjector(bytes)), extractSeed(bytes))
	if err != nil {
		return header{}, fmt.Errorf("invalid projector: %v: %w", err, common.ErrFormat)
	}
	maxCount, total := extractMaxCount(bytes), extractTotal(bytes)
	if maxCount > math.MaxInt64 || total > maxCount {
		return header{}, fmt.Errorf("max count %d, total %d: %w", maxCount, total, common.ErrFormat)
	}
	return header{
		family:    fID,
		flags:     extractFlags(bytes),
		levels:    int(extractLevels(bytes)),
		depth:     int(extractDepth(bytes)),
		width:     int(extractWidth(bytes)),
		topK:      int(extractTopK(bytes)),
		projector: projector,
		maxCount:  int64(maxCount),
		total:     int64(total),
	}, nil
}

// MaxDecodedCounters bounds the counter grid a serialized image may describe.
// An empty image is only a preamble, so without the bound a 40-byte input
// could request 64 levels of 8 rows by 65536 columns (256 MiB) on decode.
var MaxDecodedCounters = 1 << 24

// newCountMin allocates the counter grid described by h. The shape and, for a
// non-empty image, the payload length are checked before allocating.
func (h header) newCountMin(image []byte) (*countMin, error) {
	rows := uint64(h.levels) * uint64(h.depth)
	if limit := uint64(MaxDecodedCounters); rows > limit || rows*uint64(h.width) > limit {
		return nil, fmt.Errorf("%d levels x %d rows x %d columns exceed %d counters: %w",
			h.levels, h.depth, h.width, MaxDecodedCounters, common.ErrFormat)
	}
	if !isEmptyFlag(h.flags) {
		if need := payloadOffset + 8*h.numCounters(); len(image) < need {
			return nil, fmt.Errorf("insufficient data: need %d bytes, got %d: %w", need, len(image), common.ErrFormat)
		}
	}
	cm, err := newCountMin(h.levels, h.depth, h.width, h.maxCount, h.projector)
	if err != nil {
		return nil, fmt.Errorf("invalid sketch shape: %v: %w", err, common.ErrFormat)
	}
	return cm, nil
}

// readCounters decodes the counter payload starting at payloadOffset and
// returns the offset after it.
func readCounters(bytes []byte, cm *countMin) (int, error) {
	end := payloadOffset + 8*len(cm.counters)
	if len(bytes) < end {
		return 0, fmt.Errorf("insufficient data: need %d bytes, got %d: %w", end, len(bytes), common.ErrFormat)
	}
	for i := range cm.counters {
		v := binary.LittleEndian.Uint64(bytes[payloadOffset+8*i:])
		if v > uint64(cm.maxCount) {
			return 0, fmt.Errorf("counter %d holds %d above max %d: %w", i, v, cm.maxCount, common.ErrFormat)
		}
		cm.counters[i] = int64(v)
	}
	return end, nil
}

func appendCounters(out []byte, cm *countMin) []byte {
	for _, v := range cm.counters {
		out = binary.LittleEndian.AppendUint64(out, uint64(v))
	}
	return out
}

func serializeCountMin(cm *countMin, family internal.Family, topK int, total int64, empty bool) []byte {
	size := preambleBytes
	if !empty {
		size += 8 * len(cm.counters)
	}
	out := make([]byte, preambleBytes, size)
	flags := uint8(0)
	if empty {
		flags |= emptyFlagMask
	}
	insertPreamble(out, family, flags)
	insertShape(out, cm)
	insertTopK(out, uint16(topK))
	insertTotal(out, uint64(total))
	if empty {
		return out
	}
	return appendCounters(out, cm)
}

// ToSlice serializes the sketch. An empty sketch is written as its preamble only.
func (s *FrequencySketch) ToSlice() []byte {
	return serializeCountMin(s.cm, internal.FamilyEnum.CountMin, 0, s.total, s.IsEmpty() && s.cm.isZero())
}

// NewFrequencySketchFromSlice deserializes a sketch written by ToSlice.
// Images describing more than MaxDecodedCounters counters are rejected.
func NewFrequencySketchFromSlice(bytes []byte) (*FrequencySketch, error) {
	h, err := readHeader(bytes)
	if err != nil {
		return nil, err
	}
	if int(h.family) != internal.FamilyEnum.CountMin.Id {
		return nil, fmt.Errorf("family %d is not a frequency sketch: %w", h.family, common.ErrFormat)
	}
	domain, err := dyadic.NewDomain(h.levels)
	if err != nil {
		return nil, fmt.Errorf("invalid level count: %v: %w", err, common.ErrFormat)
	}
	cm, err := h.newCountMin(bytes)
	if err != nil {
		return nil, err
	}
	s := &FrequencySketch{cm: cm, domain: domain, total: h.total}
	if isEmptyFlag(h.flags) {
		if len(bytes) != preambleBytes {
			return nil, fmt.Errorf("empty sketch carries %d payload bytes: %w", len(bytes)-preambleBytes, common.ErrFormat)
		}
		return s, nil
	}
	end, err := readCounters(bytes, cm)
	if err != nil {
		return nil, err
	}
	if end != len(bytes) {
		return nil, fmt.Errorf("%d trailing bytes: %w", len(bytes)-end, common.ErrFormat)
	}
	return s, nil
}

// ToSlice serializes the sketch: preamble, counters, then the tracked values
// as a 32-bit count followed by (count, length, bytes) records.
func (s *MostFrequentSketch) ToSlice() []byte {
	empty := s.IsEmpty() && len(s.items) == 0 && s.cm.isZero()
	out := serializeCountMin(s.cm, internal.FamilyEnum.MostFrequent, s.topK, s.total, empty)
	if empty {
		return out
	}
	out = binary.LittleEndian.AppendUint32(out, uint32(len(s.items)))
	for _, it := range s.items {
		out = binary.LittleEndian.AppendUint64(out, uint64(it.Count))
		out = binary.AppendUvarint(out, uint64(len(it.Value)))
		out = append(out, it.Value...)
	}
	return out
}

// NewMostFrequentSketchFromSlice deserializes a sketch written by ToSlice.
func NewMostFrequentSketchFromSlice(b []byte) (*MostFrequentSketch, error) {
	h, err := readHeader(b)
	if err != nil {
		return nil, err
	}
	if int(h.family) != internal.FamilyEnum.MostFrequent.Id {
		return nil, fmt.Errorf("family %d is not a most frequent values sketch: %w", h.family, common.ErrFormat)
	}
	if h.levels != 1 || h.topK < 1 {
		return nil, fmt.Errorf("levels %d, topK %d: %w", h.levels, h.topK, common.ErrFormat)
	}
	cm, err := h.newCountMin(b)
	if err != nil {
		return nil, err
	}
	s := &MostFrequentSketch{cm: cm, topK: h.topK, total: h.total}
	if isEmptyFlag(h.flags) {
		return s, nil
	}
	pos, err := readCounters(b, cm)
	if err != nil {
		return nil, err
	}
	if len(b) < pos+4 {
		return nil, fmt.Errorf("missing item count: %w", common.ErrFormat)
	}
	n := int(binary.LittleEndian.Uint32(b[pos:]))
	pos += 4
	if n > s.topK {
		return nil, fmt.Errorf("%d items exceed topK %d: %w", n, s.topK, common.ErrFormat)
	}
	for i := 0; i < n; i++ {
		if len(b) < pos+8 {
			return nil, fmt.Errorf("item %d truncated: %w", i, common.ErrFormat)
		}
		cnt := binary.LittleEndian.Uint64(b[pos:])
		pos += 8
		l, w := binary.Uvarint(b[pos:])
		if w <= 0 || uint64(len(b)-pos-w) < l {
			return nil, fmt.Errorf("item %d truncated: %w", i, common.ErrFormat)
		}
		pos += w
		if cnt > uint64(cm.maxCount) {
			return nil, fmt.Errorf("item %d count %d above max: %w", i, cnt, common.ErrFormat)
		}
		s.items = append(s.items, FrequentItem{Value: bytes.Clone(b[pos : pos+int(l)]), Count: int64(cnt)})
		pos += int(l)
	}
	if pos != len(b) {
		return nil, fmt.Errorf("%d trailing bytes: %w", len(b)-pos, common.ErrFormat)
	}
	return s, nil
}

// Describe reads the preamble of a serialized Count-Min or most frequent values sketch.
func Describe(b []byte) (Description, error) {
	h, err := readHeader(b)
	if err != nil {
		return Description{}, err
	}
	return Description{
		Family:    internal.FamilyName(int(h.family)),
		Empty:     isEmptyFlag(h.flags),
		Levels:    h.levels,
		Depth:     h.depth,
		Width:     h.width,
		Projector: h.projector.Kind().String(),
		Seed:      h.projector.Seed(),
		MaxCount:  h.maxCount,
		Total:     h.total,
		TopK:      h.topK,
	}, nil
}

// MergeSerialized merges two serialized sketches of the same family and
// returns the serialized result. Headers are compared before any counter is read.
func MergeSerialized(a, b []byte) ([]byte, error) {
	ha, err := readHeader(a)
	if err != nil {
		return nil, err
	}
	hb, err := readHeader(b)
	if err != nil {
		return nil, err
	}
	if ha.family != hb.family {
		return nil, fmt.Errorf("families %s and %s: %w",
			internal.FamilyName(int(ha.family)), internal.FamilyName(int(hb.family)), common.ErrDimensionMismatch)
	}
	if !bytes.Equal(a[levelsOffset:totalOffset], b[levelsOffset:totalOffset]) {
		return nil, fmt.Errorf("shape %dx%dx%d/%d and %dx%dx%d/%d: %w",
			ha.levels, ha.depth, ha.width, ha.topK, hb.levels, hb.depth, hb.width, hb.topK, common.ErrDimensionMismatch)
	}

	if int(ha.family) == internal.FamilyEnum.CountMin.Id {
		sa, err := NewFrequencySketchFromSlice(a)
		if err != nil {
			return nil, err
		}
		sb, err := NewFrequencySketchFromSlice(b)
		if err != nil {
			return nil, err
		}
		if err := sa.Merge(sb); err != nil {
			return nil, err
		}
		return sa.ToSlice(), nil
	}
	ma, err := NewMostFrequentSketchFromSlice(a)
	if err != nil {
		return nil, err
	}
	mb, err := NewMostFrequentSketchFromSlice(b)
	if err != nil {
		return nil, err
	}
	if err := ma.Merge(mb); err != nil {
		return nil, err
	}
	return ma.ToSlice(), nil
}

// Base64 returns the serialized sketch in standard base64.
func (s *FrequencySketch) Base64() string {
	return base64.StdEncoding.EncodeToString(s.ToSlice())
}

// CounterEntry is one non-zero counter.
type CounterEntry struct {
	Level int   `json:"level"`
	Row   int   `json:"row"`
	Col   int   `json:"col"`
	Count int64 `json:"count"`
}

// Dump lists the non-zero counters in level, row, column order.
func (s *FrequencySketch) Dump() []CounterEntry {
	var out []CounterEntry
	grid := s.cm.gridSize()
	for i, v := range s.cm.counters {
		if v == 0 {
			continue
		}
		out = append(out, CounterEntry{
			Level: i / grid,
			Row:   (i % grid) / s.cm.width,
			Col:   i % s.cm.width,
			Count: v,
		})
	}
	return out
}
