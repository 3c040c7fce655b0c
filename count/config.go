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
	"math"

	"github.com/streamsketch/sketches-go/common"
)

// Config is an immutable description of a FrequencySketch. Zero fields take
// the defaults of NewFrequencySketch.
type Config struct {
	Depth      int
	Width      int
	DomainBits int
	MaxCount   int64
	Projector  common.HashProjector
}

// DefaultConfig returns the configuration NewFrequencySketch uses without options.
func DefaultConfig() Config {
	return Config{
		Depth:      DefaultDepth,
		Width:      DefaultWidth,
		DomainBits: 64,
		MaxCount:   math.MaxInt64,
		Projector:  common.DefaultProjector(),
	}
}

// Options converts the non-zero fields of c to functional options.
func (c Config) Options() []Option {
	var opts []Option
	if c.Depth != 0 {
		opts = append(opts, WithDepth(c.Depth))
	}
	if c.Width != 0 {
		opts = append(opts, WithWidth(c.Width))
	}
	if c.DomainBits != 0 {
		opts = append(opts, WithDomainBits(c.DomainBits))
	}
	if c.MaxCount != 0 {
		opts = append(opts, WithMaxCount(c.MaxCount))
	}
	if c.Projector != nil {
		opts = append(opts, WithProjector(c.Projector))
	}
	return opts
}

// NewFrequencySketchFromConfig creates an empty sketch described by c.
func NewFrequencySketchFromConfig(c Config) (*FrequencySketch, error) {
	return NewFrequencySketch(c.Options()...)
}

// MostFrequentConfig is an immutable description of a MostFrequentSketch.
type MostFrequentConfig struct {
	TopK      int
	Depth     int
	Width     int
	Projector common.HashProjector
}

func DefaultMostFrequentConfig() MostFrequentConfig {
	return MostFrequentConfig{
		TopK:      DefaultTopK,
		Depth:     DefaultDepth,
		Width:     DefaultWidth,
		Projector: common.DefaultProjector(),
	}
}

// NewMostFrequentSketchFromConfig creates an empty sketch described by c. A
// zero TopK selects DefaultTopK.
func NewMostFrequentSketchFromConfig(c MostFrequentConfig) (*MostFrequentSketch, error) {
	topK := c.TopK
	if topK == 0 {
		topK = DefaultTopK
	}
	return NewMostFrequentSketch(topK, Config{Depth: c.Depth, Width: c.Width, Projector: c.Projector}.Options()...)
}
