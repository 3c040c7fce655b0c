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
	"github.com/streamsketch/sketches-go/common"
)

// Config is an immutable description of a DistinctCountSketch. Zero fields
// take the defaults of NewDistinctCountSketch.
type Config struct {
	NumMaps    int
	BitmapBits int
	Threshold  int
	Projector  common.HashProjector
}

func DefaultConfig() Config {
	return Config{
		NumMaps:    DefaultNumMaps,
		BitmapBits: DefaultBitmapBits,
		Threshold:  DefaultThreshold,
		Projector:  common.DefaultProjector(),
	}
}

// Options converts the non-zero fields of c to functional options.
func (c Config) Options() []Option {
	var opts []Option
	if c.NumMaps != 0 {
		opts = append(opts, WithNumMaps(c.NumMaps))
	}
	if c.BitmapBits != 0 {
		opts = append(opts, WithBitmapBits(c.BitmapBits))
	}
	if c.Threshold != 0 {
		opts = append(opts, WithThreshold(c.Threshold))
	}
	if c.Projector != nil {
		opts = append(opts, WithProjector(c.Projector))
	}
	return opts
}

// Config returns the configuration of s.
func (s *DistinctCountSketch) Config() Config {
	return Config{NumMaps: s.numMaps, BitmapBits: s.bitmapBits, Threshold: s.threshold, Projector: s.projector}
}

// NewDistinctCountSketchFromConfig creates an empty sketch described by c.
func NewDistinctCountSketchFromConfig(c Config) (*DistinctCountSketch, error) {
	return NewDistinctCountSketch(c.Options()...)
}
