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

// Family identifies a sketch type in serialized images. PreLongs is the
// preamble size in 8-byte words.
type Family struct {
	Id       int
	PreLongs int
}

type families struct {
	CountMin       Family
	FlajoletMartin Family
	MostFrequent   Family
}

var FamilyEnum = &families{
	CountMin: Family{
		Id:       18,
		PreLongs: 5,
	},
	FlajoletMartin: Family{
		Id:       22,
		PreLongs: 3,
	},
	MostFrequent: Family{
		Id:       23,
		PreLongs: 5,
	},
}

// FamilyByID looks up a family by its serialized id.
func FamilyByID(id int) (Family, bool) {
	for _, f := range []Family{FamilyEnum.CountMin, FamilyEnum.FlajoletMartin, FamilyEnum.MostFrequent} {
		if f.Id == id {
			return f, true
		}
	}
	return Family{}, false
}

// FamilyName returns a printable name for a family id.
func FamilyName(id int) string {
	switch id {
	case FamilyEnum.CountMin.Id:
		return "countmin"
	case FamilyEnum.FlajoletMartin.Id:
		return "fm"
	case FamilyEnum.MostFrequent.Id:
		return "mfv"
	}
	return "unknown"
}
