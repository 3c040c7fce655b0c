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

package internal

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// SaturatingAdd returns a+b, clamped to limit. Both operands must lie in [0, limit].
func SaturatingAdd[T constraints.Integer](a, b, limit T) T {
	if b > limit-a {
		return limit
	}
	return a + b
}

// FloorLog2 returns floor(log2(n)) for n > 0, and 0 for n == 0.
func FloorLog2(n uint64) int {
	if n == 0 {
		return 0
	}
	return bits.Len64(n) - 1
}
