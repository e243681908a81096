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

// Package align places CCS reads against a reference.
//
// Two aligners are provided. Index is a self-contained seed-and-extend
// aligner: it votes for a diagonal with reference k-mers and refines the
// winner with a banded local alignment. External delegates to an aligner
// binary (bwa mem by default) and parses its SAM output.
//
// Both are safe for concurrent use. The reference they hold is read-only
// after construction.
package align

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/ccscheck/ccs"
)

// Aligner aligns one read. A nil alignment with a nil error means the read
// does not align.
type Aligner interface {
	Align(read *ccs.Read) (*ccs.Alignment, error)
}

// BatchAligner aligns several reads at once. The result has one entry per
// read, nil for reads that do not align. An error applies to the whole batch.
type BatchAligner interface {
	Aligner
	AlignBatch(reads []*ccs.Read) ([]*ccs.Alignment, error)
}

// IsMissingDependency reports whether err means that a program or library
// the aligner needs could not be found.
func IsMissingDependency(err error) bool {
	return errors.Is(errors.Unavailable, err)
}

var complement [256]byte

func init() {
	for i := range complement {
		complement[i] = 'N'
	}
	complement['A'] = 'T'
	complement['C'] = 'G'
	complement['G'] = 'C'
	complement['T'] = 'A'
	complement['a'] = 'T'
	complement['c'] = 'G'
	complement['g'] = 'C'
	complement['t'] = 'A'
}

// ReverseComplement returns the reverse complement of seq. Bases other than
// ACGT become N.
func ReverseComplement(seq string) string {
	out := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		out[len(seq)-1-i] = complement[seq[i]]
	}
	return string(out)
}

func reverseQual(qual []byte) []byte {
	if qual == nil {
		return nil
	}
	out := make([]byte, len(qual))
	for i, q := range qual {
		out[len(qual)-1-i] = q
	}
	return out
}
