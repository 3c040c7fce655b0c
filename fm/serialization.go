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
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/internal"
	"github.com/streamsketch/sketches-go/sortasort"
)

// Description summarizes a serialized distinct count sketch.
type Description struct {
	Family     string `json:"family"`
	Mode       string `json:"mode"`
	Empty      bool   `json:"empty"`
	NumMaps    int    `json:"num_maps"`
	BitmapBits int    `json:"bitmap_bits"`
	Threshold  int    `json:"threshold"`
	Projector  string `json:"projector"`
	Seed       uint64 `json:"seed"`
	NumValues  int    `json:"num_values,omitempty"`
}

// ToSlice serializes the sketch. Exact sketches carry a 32-bit value count
// followed by length-prefixed values in sorted order; approximate sketches
// carry the raw bitmaps.
func (s *DistinctCountSketch) ToSlice() []byte {
	flags := uint8(0)
	if s.IsEmpty() {
		flags |= emptyFlagMask
	}
	out := make([]byte, preambleBytes)
	switch st := s.state.(type) {
	case *exactState:
		insertPreamble(out, internal.FamilyEnum.FlajoletMartin, flags)
		insertConfig(out, s)
		if s.IsEmpty() {
			return out
		}
		out = binary.LittleEndian.AppendUint32(out, uint32(st.values.Len()))
		_ = st.values.Each(func(value []byte) error {
			out = binary.AppendUvarint(out, uint64(len(value)))
			out = append(out, value...)
			return nil
		})
	case *approximateState:
		insertPreamble(out, internal.FamilyEnum.FlajoletMartin, flags|approximateFlagMask)
		insertConfig(out, s)
		out = append(out, st.bitmaps.Bytes()...)
	}
	return out
}

// Base64 returns the serialized sketch in standard base64.
func (s *DistinctCountSketch) Base64() string {
	return base64.StdEncoding.EncodeToString(s.ToSlice())
}

func readConfig(b []byte) (*DistinctCountSketch, uint8, error) {
	if len(b) < preambleBytes {
		return nil, 0, fmt.Errorf("insufficient data: need at least %d bytes, got %d: %w",
			preambleBytes, len(b), common.ErrFormat)
	}
	if pl := extractPreambleLongs(b); int(pl) != internal.FamilyEnum.FlajoletMartin.PreLongs {
		return nil, 0, fmt.Errorf("preamble longs %d, expected %d: %w", pl, internal.FamilyEnum.FlajoletMartin.PreLongs, common.ErrFormat)
	}
	if v := extractSerVer(b); v != serVer {
		return nil, 0, fmt.Errorf("unsupported serialization version: %d (expected %d): %w", v, serVer, common.ErrFormat)
	}
	if fID := extractFamilyID(b); int(fID) != internal.FamilyEnum.FlajoletMartin.Id {
		return nil, 0, fmt.Errorf("family %d is not a distinct count sketch: %w", fID, common.ErrFormat)
	}
	projector, err := common.NewProjector(common.ProjectorKind(extractProjector(b)), extractSeed(b))
	if err != nil {
		return nil, 0, fmt.Errorf("invalid projector: %v: %w", err, common.ErrFormat)
	}
	s, err := NewDistinctCountSketch(
		WithNumMaps(int(extractNumMaps(b))),
		WithBitmapBits(int(extractBitmapBits(b))),
		WithThreshold(int(extractThreshold(b))),
		WithProjector(projector),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid sketch configuration: %v: %w", err, common.ErrFormat)
	}
	return s, extractFlags(b), nil
}

// NewDistinctCountSketchFromSlice deserializes a sketch written by ToSlice.
func NewDistinctCountSketchFromSlice(b []byte) (*DistinctCountSketch, error) {
	s, flags, err := readConfig(b)
	if err != nil {
		return nil, err
	}
	payload := b[payloadOffset:]

	if isApproximateFlag(flags) {
		bitmaps, err := internal.WrapBitmapArray(bytes.Clone(payload), s.numMaps, s.bitmapBits)
		if err != nil {
			return nil, err
		}
		s.state = &approximateState{bitmaps: bitmaps}
		return s, nil
	}

	if isEmptyFlag(flags) {
		if len(payload) != 0 {
			return nil, fmt.Errorf("empty sketch carries %d payload bytes: %w", len(payload), common.ErrFormat)
		}
		return s, nil
	}
	if len(payload) < 4 {
		return nil, fmt.Errorf("missing value count: %w", common.ErrFormat)
	}
	n := int(binary.LittleEndian.Uint32(payload))
	if n == 0 || n >= s.threshold {
		return nil, fmt.Errorf("exact sketch with %d values, threshold %d: %w", n, s.threshold, common.ErrFormat)
	}
	values := sortasort.NewSortaSortWithDefault()
	pos := 4
	for i := 0; i < n; i++ {
		l, w := binary.Uvarint(payload[pos:])
		if w <= 0 || uint64(len(payload)-pos-w) < l {
			return nil, fmt.Errorf("value %d truncated: %w", i, common.ErrFormat)
		}
		pos += w
		if values.Insert(payload[pos:pos+int(l)]) != sortasort.Inserted {
			return nil, fmt.Errorf("value %d repeated: %w", i, common.ErrFormat)
		}
		pos += int(l)
	}
	if pos != len(payload) {
		return nil, fmt.Errorf("%d trailing bytes: %w", len(payload)-pos, common.ErrFormat)
	}
	s.state = &exactState{values: values}
	return s, nil
}

// Describe reads a serialized distinct count sketch without decoding its bitmaps.
func Describe(b []byte) (Description, error) {
	s, flags, err := readConfig(b)
	if err != nil {
		return Description{}, err
	}
	d := Description{
		Family:     internal.FamilyName(internal.FamilyEnum.FlajoletMartin.Id),
		Mode:       ModeExact.String(),
		Empty:      isEmptyFlag(flags),
		NumMaps:    s.numMaps,
		BitmapBits: s.bitmapBits,
		Threshold:  s.threshold,
		Projector:  s.projector.Kind().String(),
		Seed:       s.projector.Seed(),
	}
	if isApproximateFlag(flags) {
		d.Mode = ModeApproximate.String()
	} else if len(b) >= payloadOffset+4 {
		d.NumValues = int(binary.LittleEndian.Uint32(b[payloadOffset:]))
	}
	return d, nil
}

// MergeSerialized merges two serialized sketches and returns the serialized
// result. Configurations are compared before either payload is decoded.
func MergeSerialized(a, b []byte) ([]byte, error) {
	sa, _, err := readConfig(a)
	if err != nil {
		return nil, err
	}
	sb, _, err := readConfig(b)
	if err != nil {
		return nil, err
	}
	if err := sa.compatible(sb); err != nil {
		return nil, err
	}
	if sa, err = NewDistinctCountSketchFromSlice(a); err != nil {
		return nil, err
	}
	if sb, err = NewDistinctCountSketchFromSlice(b); err != nil {
		return nil, err
	}
	if err := sa.Merge(sb); err != nil {
		return nil, err
	}
	return sa.ToSlice(), nil
}
