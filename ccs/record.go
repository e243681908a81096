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

// Record is the unit delivered to output sinks: a read, plus its alignment
// and variants when the read was aligned.
//
// Alignment is nil when alignment was not requested or the read did not
// align. Variants is nil whenever Alignment is nil, and non-nil (possibly
// empty) otherwise. Variant positions are absolute reference coordinates.
type Record struct {
	Read      *Read
	Alignment *Alignment
	Variants  []Variant
}

// NewRecord returns a record for a read that was not aligned.
func NewRecord(read *Read) *Record {
	return &Record{Read: read}
}

// NewAlignedRecord returns a record for an aligned read. The variants must be
// in the caller's alignment-local coordinates; they are copied, shifted by
// aln.RefStart and stamped with aln.RefName. The input slice is not modified.
func NewAlignedRecord(read *Read, aln *Alignment, variants []Variant) *Record {
	if aln == nil {
		return NewRecord(read)
	}
	rebased := make([]Variant, len(variants))
	for i, v := range variants {
		v.Pos += aln.RefStart
		v.RefName = aln.RefName
		rebased[i] = v
	}
	return &Record{Read: read, Alignment: aln, Variants: rebased}
}

// Aligned reports whether the record carries an alignment.
func (r *Record) Aligned() bool { return r.Alignment != nil }
