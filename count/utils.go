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
	"fmt"
	"math"

	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/internal"
)

// maxSuggestedDepth is the number of 16-bit row slices in a 128-bit digest.
const maxSuggestedDepth = 8

// SuggestWidth returns the number of columns needed for the given relative error
// of point estimates, bounded by the 16-bit column slice.
func SuggestWidth(relativeError float64) (int, error) {
	if relativeError <= 0 {
		return 0, fmt.Errorf("relative error must be greater than 0.0: %w", common.ErrConfig)
	}
	return internal.Min(int(math.Ceil(math.Exp(1.0)/relativeError)), maxWidth), nil
}

// SuggestDepth returns the number of rows needed for the given confidence,
// bounded by what a 128-bit digest can address.
func SuggestDepth(confidence float64) (int, error) {
	if confidence < 0 || confidence >= 1.0 {
		return 0, fmt.Errorf("confidence must be in [0, 1.0): %w", common.ErrConfig)
	}
	return internal.Max(internal.Min(int(math.Ceil(math.Log(1.0/(1.0-confidence)))), maxSuggestedDepth), 1), nil
}
