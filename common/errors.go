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

package common

import "errors"

// Error taxonomy shared by every sketch in this module. Callers match with errors.Is;
// call sites wrap these with fmt.Errorf to add context.
var (
	// ErrCapacityExceeded is returned when a counter would pass its representable maximum.
	ErrCapacityExceeded = errors.New("sketch: counter capacity exceeded")

	// ErrDimensionMismatch is returned when two sketches of different shape are combined.
	ErrDimensionMismatch = errors.New("sketch: dimension mismatch")

	// ErrDomain is returned for queries that have no answer, such as a centile of an empty sketch.
	ErrDomain = errors.New("sketch: value outside domain")

	ErrFormat = errors.New("sketch: malformed input")
	ErrIndex  = errors.New("sketch: index out of range")
	ErrConfig = errors.New("sketch: invalid configuration")
)
