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

// Package common holds the pieces shared by all sketches: the error taxonomy,
// the hash projectors that turn values into uniform bit strings, and value encoding.
package common

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/twmb/murmur3"
)

// DefaultSeed is the default seed value for the seeded projectors.
const DefaultSeed = uint64(9001)

// ProjectorKind identifies a built-in projector in serialized sketch headers.
type ProjectorKind uint8

const (
	ProjectorMurmur3 ProjectorKind = 1
	ProjectorXXHash  ProjectorKind = 2
	ProjectorMD5     ProjectorKind = 3
)

func (k ProjectorKind) String() string {
	switch k {
	case ProjectorMurmur3:
		return "murmur3"
	case ProjectorXXHash:
		return "xxhash"
	case ProjectorMD5:
		return "md5"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseProjectorKind maps a configuration name to a ProjectorKind.
func ParseProjectorKind(name string) (ProjectorKind, error) {
	switch name {
	case "murmur3", "":
		return ProjectorMurmur3, nil
	case "xxhash":
		return ProjectorXXHash, nil
	case "md5":
		return ProjectorMD5, nil
	}
	return 0, fmt.Errorf("unknown hash algorithm %q: %w", name, ErrConfig)
}

// HashProjector maps an arbitrary byte sequence to a deterministic, uniformly
// distributed bit string of Size() bytes.
type HashProjector interface {
	// Sum returns the digest of data. The returned slice is owned by the caller.
	Sum(data []byte) []byte

	// Size returns the digest width in bytes.
	Size() int

	Kind() ProjectorKind
	Seed() uint64
}

// NewProjector returns the built-in projector of the given kind.
// The seed is ignored by MD5.
func NewProjector(kind ProjectorKind, seed uint64) (HashProjector, error) {
	switch kind {
	case ProjectorMurmur3:
		return Murmur3Projector{seed: seed}, nil
	case ProjectorXXHash:
		return XXHashProjector{seed: seed}, nil
	case ProjectorMD5:
		return MD5Projector{}, nil
	}
	return nil, fmt.Errorf("unknown projector kind %d: %w", uint8(kind), ErrConfig)
}

// DefaultProjector returns a Murmur3 projector seeded with DefaultSeed.
func DefaultProjector() HashProjector {
	return Murmur3Projector{seed: DefaultSeed}
}

// Murmur3Projector produces the 128-bit murmur3 x64 digest.
type Murmur3Projector struct {
	seed uint64
}

func NewMurmur3Projector(seed uint64) Murmur3Projector {
	return Murmur3Projector{seed: seed}
}

func (p Murmur3Projector) Sum(data []byte) []byte {
	h1, h2 := murmur3.SeedSum128(p.seed, p.seed, data)
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out, h1)
	binary.LittleEndian.PutUint64(out[8:], h2)
	return out
}

func (p Murmur3Projector) Size() int           { return 16 }
func (p Murmur3Projector) Kind() ProjectorKind { return ProjectorMurmur3 }
func (p Murmur3Projector) Seed() uint64        { return p.seed }

// xxhashSecondSeed derives the seed of the upper half of an XXHash digest.
const xxhashSecondSeed = 0x9e3779b97f4a7c15

// XXHashProjector concatenates two independently seeded 64-bit xxhash digests.
type XXHashProjector struct {
	seed uint64
}

func NewXXHashProjector(seed uint64) XXHashProjector {
	return XXHashProjector{seed: seed}
}

func (p XXHashProjector) Sum(data []byte) []byte {
	out := make([]byte, 16)
	d := xxhash.NewWithSeed(p.seed)
	_, _ = d.Write(data)
	binary.LittleEndian.PutUint64(out, d.Sum64())
	d.ResetWithSeed(p.seed ^ xxhashSecondSeed)
	_, _ = d.Write(data)
	binary.LittleEndian.PutUint64(out[8:], d.Sum64())
	return out
}

func (p XXHashProjector) Size() int           { return 16 }
func (p XXHashProjector) Kind() ProjectorKind { return ProjectorXXHash }
func (p XXHashProjector) Seed() uint64        { return p.seed }

// MD5Projector reproduces the digest used by sketches built in SQL databases
// that hash with md5. It is not seeded.
type MD5Projector struct{}

func (MD5Projector) Sum(data []byte) []byte {
	sum := md5.Sum(data)
	return sum[:]
}

func (MD5Projector) Size() int           { return md5.Size }
func (MD5Projector) Kind() ProjectorKind { return ProjectorMD5 }
func (MD5Projector) Seed() uint64        { return 0 }
