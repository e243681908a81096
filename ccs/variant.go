// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ccs

// VariantType classifies a called difference.
type VariantType uint8

const (
	SNP VariantType = iota
	Insertion
	Deletion
	Complex
)

var variantTypeNames = [...]string{
	SNP:       "SNP",
	Insertion: "INS",
	Deletion:  "DEL",
	Complex:   "COMPLEX",
}

func (t VariantType) String() string {
	if int(t) < len(variantTypeNames) {
		return variantTypeNames[t]
	}
	return "UNKNOWN"
}

// Variant is one difference between an aligned read and the reference.
//
// A caller fills Pos relative to the start of the alignment it was given and
// leaves RefName empty. NewAlignedRecord rebases Pos to an absolute, 0-based
// reference coordinate and stamps RefName.
type Variant struct {
	RefName string
	Pos     int
	Type    VariantType
	// RefBases and AltBases describe the change. For an insertion RefBases is
	// empty; for a deletion AltBases is empty.
	RefBases string
	AltBases string
	// Length is the number of bases inserted or deleted, 1 for a SNP.
	Length int
	// QV is the lowest read base quality supporting the call.
	QV int
	// AtEndOfAlignment is set when the variant lies close enough to either end
	// of the alignment that it may be an alignment artifact.
	AtEndOfAlignment bool
}
