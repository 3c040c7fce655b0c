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

// Package dyadic decomposes integer intervals into canonical power-of-two aligned spans.
package dyadic

import (
	"fmt"
	"math"
	"sort"

	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/internal"
)

// Span is a dyadic interval [Lo, Hi]: its width is a power of two and Lo is a
// multiple of that width.
type Span struct {
	Lo int64
	Hi int64
}

// Width returns Hi-Lo+1. The widest span of a 64-bit domain is 2^63.
func (s Span) Width() uint64 {
	return uint64(s.Hi) - uint64(s.Lo) + 1
}

// Level returns log2 of the span width.
func (s Span) Level() int {
	return internal.FloorLog2(s.Width())
}

// Prefix returns the index of the span at its level, that is Lo shifted right
// by the level with sign extension.
func (s Span) Prefix() int64 {
	return s.Lo >> uint(s.Level())
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d]", s.Lo, s.Hi)
}

// Decompose returns the canonical dyadic spans covering [lo, hi], ordered by Lo.
// Each value of the interval is covered by exactly one span. An interval that
// crosses zero is first split at zero; then left-aligned blocks are preferred,
// right-aligned blocks next, and otherwise the interval is split at the block
// boundary it straddles.
func Decompose(lo, hi int64) []Span {
	if lo > hi {
		return nil
	}
	var spans []Span
	work := []Span{{Lo: lo, Hi: hi}}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		bot, top := cur.Lo, cur.Hi

		if bot == top {
			spans = append(spans, cur)
			continue
		}
		if bot < 0 && top >= 0 {
			work = append(work, Span{Lo: 0, Hi: top}, Span{Lo: bot, Hi: -1})
			continue
		}

		// same sign from here on, so the size fits in 63 bits
		size := uint64(top) - uint64(bot) + 1
		width := uint64(1) << uint(internal.FloorLog2(size))
		mask := width - 1

		switch {
		case uint64(bot)&mask == 0:
			end := int64(uint64(bot) + mask)
			spans = append(spans, Span{Lo: bot, Hi: end})
			if end < top {
				work = append(work, Span{Lo: end + 1, Hi: top})
			}
		case (uint64(top)+1)&mask == 0:
			start := int64(uint64(top) - mask)
			spans = append(spans, Span{Lo: start, Hi: top})
			if start > bot {
				work = append(work, Span{Lo: bot, Hi: start - 1})
			}
		default:
			boundary := int64(uint64(top) &^ mask)
			work = append(work, Span{Lo: boundary, Hi: top}, Span{Lo: bot, Hi: boundary - 1})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Lo < spans[j].Lo })
	return spans
}

// Domain is a signed integer value domain of 8, 16, 32 or 64 bits.
type Domain struct {
	bits int
}

func NewDomain(bits int) (Domain, error) {
	switch bits {
	case 8, 16, 32, 64:
		return Domain{bits: bits}, nil
	}
	return Domain{}, fmt.Errorf("domain width %d is not one of 8, 16, 32, 64: %w", bits, common.ErrConfig)
}

func (d Domain) Bits() int { return d.bits }

func (d Domain) Min() int64 {
	if d.bits == 64 {
		return math.MinInt64
	}
	return -(int64(1) << uint(d.bits-1))
}

func (d Domain) Max() int64 {
	if d.bits == 64 {
		return math.MaxInt64
	}
	return int64(1)<<uint(d.bits-1) - 1
}

func (d Domain) Contains(v int64) bool {
	return v >= d.Min() && v <= d.Max()
}
