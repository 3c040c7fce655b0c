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

import (
	"fmt"
	"math"
	"strconv"
)

// Int64Bytes returns the decimal text of v. Integer values are hashed through
// their text form so that digests match sketches built from SQL text output.
func Int64Bytes(v int64) []byte {
	return strconv.AppendInt(nil, v, 10)
}

// ValueBytes encodes a scalar value for hashing. Integers and floats use their
// shortest decimal text, strings and byte slices are used as is.
func ValueBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	case int:
		return Int64Bytes(int64(x)), nil
	case int32:
		return Int64Bytes(int64(x)), nil
	case int64:
		return Int64Bytes(x), nil
	case uint32:
		return strconv.AppendUint(nil, uint64(x), 10), nil
	case uint64:
		return strconv.AppendUint(nil, x, 10), nil
	case float64:
		if math.Trunc(x) == x && math.Abs(x) < 1<<53 {
			return Int64Bytes(int64(x)), nil
		}
		return strconv.AppendFloat(nil, x, 'g', -1, 64), nil
	case bool:
		return strconv.AppendBool(nil, x), nil
	case nil:
		return nil, fmt.Errorf("nil value: %w", ErrFormat)
	}
	return nil, fmt.Errorf("unsupported value type %T: %w", v, ErrFormat)
}
