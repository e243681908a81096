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

import (
	"github.com/grailbio/hts/sam"
)

// Strand is the orientation of an alignment relative to the reference.
type Strand uint8

const (
	// Forward means the read aligned as-is.
	Forward Strand = iota
	// Reverse means the reverse complement of the read aligned.
	Reverse
)

// String returns "+" or "-".
func (s Strand) String() string {
	if s == Reverse {
		return "-"
	}
	return "+"
}

// Alignment places a read against one reference sequence.
//
// Coordinates are 0-based and half-open. The query fields are expressed in
// reference orientation: for a Reverse alignment QuerySeq is the reverse
// complement of the read and QueryQual is reversed.
type Alignment struct {
	RefName string
	// RefStart is the offset of the first aligned reference base. Variant
	// positions reported by a caller are relative to it.
	RefStart int
	RefEnd   int
	Strand   Strand
	Score    int
	MapQ     int
	// Cigar covers the whole query, including soft clips.
	Cigar []sam.CigarOp
	// QueryStart and QueryEnd bound the non-clipped part of QuerySeq.
	QueryStart, QueryEnd int

	// RefSeq holds the reference bases in [RefStart, RefEnd).
	RefSeq    string
	QuerySeq  string
	QueryQual []byte
}

// RefLen returns the length of the aligned reference span.
func (a *Alignment) RefLen() int { return a.RefEnd - a.RefStart }

// CigarString renders the CIGAR in SAM text form, or "*" if it is empty.
func (a *Alignment) CigarString() string {
	if len(a.Cigar) == 0 {
		return "*"
	}
	return sam.Cigar(a.Cigar).String()
}
