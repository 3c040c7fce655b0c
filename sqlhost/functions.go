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

package sqlhost

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/streamsketch/sketches-go/count"
	"github.com/streamsketch/sketches-go/fm"
	"modernc.org/sqlite"
)

type scalarFunction struct {
	name  string
	nArgs int32
	fn    func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error)
}

var scalarFunctions = []scalarFunction{
	{"cmsketch_count", 2, cmsketchCount},
	{"cmsketch_rangecount", 3, cmsketchRangeCount},
	{"cmsketch_centile", 2, cmsketchCentile},
	{"cmsketch_width_histogram_json", 4, cmsketchWidthHistogram},
	{"cmsketch_histogram_json", 2, cmsketchHistogram},
	{"cmsketch_depth_histogram_json", 2, cmsketchDepthHistogram},
	{"cmsketch_base64", 1, cmsketchBase64},
	{"cmsketch_merge", 2, cmsketchMerge},
	{"fmsketch_estimate", 1, fmsketchEstimate},
	{"fmsketch_merge", 2, fmsketchMerge},
}

func frequencySketchArg(v driver.Value) (*count.FrequencySketch, error) {
	b, err := toBlob(v)
	if err != nil {
		return nil, err
	}
	return count.NewFrequencySketchFromSlice(b)
}

// nullArgs reports whether any argument is NULL; the functions then return NULL.
func nullArgs(args []driver.Value) bool {
	for _, a := range args {
		if a == nil {
			return true
		}
	}
	return false
}

func cmsketchCount(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if nullArgs(args) {
		return nil, nil
	}
	s, err := frequencySketchArg(args[0])
	if err != nil {
		return nil, err
	}
	v, err := toInt64(args[1])
	if err != nil {
		return nil, err
	}
	return s.PointQuery(v)
}

func cmsketchRangeCount(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if nullArgs(args) {
		return nil, nil
	}
	s, err := frequencySketchArg(args[0])
	if err != nil {
		return nil, err
	}
	lo, err := toInt64(args[1])
	if err != nil {
		return nil, err
	}
	hi, err := toInt64(args[2])
	if err != nil {
		return nil, err
	}
	return s.RangeQuery(lo, hi)
}

func cmsketchCentile(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if nullArgs(args) {
		return nil, nil
	}
	s, err := frequencySketchArg(args[0])
	if err != nil {
		return nil, err
	}
	p, err := toFloat64(args[1])
	if err != nil {
		return nil, err
	}
	return s.Centile(p)
}

func histogramJSON(buckets []count.HistogramBucket, err error) (driver.Value, error) {
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(buckets)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func cmsketchWidthHistogram(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if nullArgs(args) {
		return nil, nil
	}
	s, err := frequencySketchArg(args[0])
	if err != nil {
		return nil, err
	}
	var bounds [3]int64
	for i := range bounds {
		if bounds[i], err = toInt64(args[i+1]); err != nil {
			return nil, err
		}
	}
	return histogramJSON(s.WidthHistogram(bounds[0], bounds[1], int(bounds[2])))
}

func cmsketchHistogram(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if nullArgs(args) {
		return nil, nil
	}
	s, err := frequencySketchArg(args[0])
	if err != nil {
		return nil, err
	}
	buckets, err := toInt64(args[1])
	if err != nil {
		return nil, err
	}
	return histogramJSON(s.Histogram(int(buckets)))
}

func cmsketchDepthHistogram(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if nullArgs(args) {
		return nil, nil
	}
	s, err := frequencySketchArg(args[0])
	if err != nil {
		return nil, err
	}
	buckets, err := toInt64(args[1])
	if err != nil {
		return nil, err
	}
	return histogramJSON(s.DepthHistogram(int(buckets)))
}

func cmsketchBase64(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if nullArgs(args) {
		return nil, nil
	}
	s, err := frequencySketchArg(args[0])
	if err != nil {
		return nil, err
	}
	return s.Base64(), nil
}

// cmsketchMerge merges two serialized sketches; a NULL operand is the identity.
func cmsketchMerge(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return mergeBlobs(args, count.MergeSerialized)
}

func fmsketchMerge(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return mergeBlobs(args, fm.MergeSerialized)
}

func mergeBlobs(args []driver.Value, merge func(a, b []byte) ([]byte, error)) (driver.Value, error) {
	switch {
	case args[0] == nil:
		return args[1], nil
	case args[1] == nil:
		return args[0], nil
	}
	a, err := toBlob(args[0])
	if err != nil {
		return nil, err
	}
	b, err := toBlob(args[1])
	if err != nil {
		return nil, err
	}
	return merge(a, b)
}

func fmsketchEstimate(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if nullArgs(args) {
		return nil, nil
	}
	b, err := toBlob(args[0])
	if err != nil {
		return nil, err
	}
	s, err := fm.NewDistinctCountSketchFromSlice(b)
	if err != nil {
		return nil, fmt.Errorf("fmsketch_estimate: %w", err)
	}
	return s.Estimate()
}
