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

// Package variant calls variants from a single read alignment.
package variant

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/ccscheck/ccs"
	"github.com/grailbio/hts/sam"
)

// Opts configures a Caller.
type Opts struct {
	// EndWindow is the distance, in reference bases, from either end of the
	// alignment within which a variant is flagged AtEndOfAlignment.
	EndWindow int
}

// DefaultOpts is the default caller configuration.
var DefaultOpts = Opts{EndWindow: 5}

// Caller turns an alignment into the list of differences between the read
// and the reference. It is stateless and safe for concurrent use.
type Caller struct {
	opts Opts
}

// NewCaller creates a Caller.
func NewCaller(opts Opts) *Caller {
	return &Caller{opts: opts}
}

// UnknownQV is reported when the read carries no base qualities.
const UnknownQV = -1

// Call walks the CIGAR of aln over aln.RefSeq and aln.QuerySeq and returns
// the variants it finds, ordered by position. Positions are relative to
// aln.RefStart. Mismatches are SNPs (reads with N never differ), an I
// operation is an insertion placed at the following reference base, a D
// operation is a deletion, and an insertion directly next to a deletion is
// merged into one Complex variant.
//
// Call fails if the CIGAR does not agree with the sequence lengths.
func (c *Caller) Call(aln *ccs.Alignment) ([]ccs.Variant, error) {
	var (
		ref, query = aln.RefSeq, aln.QuerySeq
		qual       = aln.QueryQual
		qi, ri     int
		variants   []ccs.Variant
		// prevIndel is the index in variants of an indel that ends exactly
		// at the current position, or -1.
		prevIndel = -1
	)
	if qual != nil && len(qual) != len(query) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("read has %d bases but %d qualities", len(query), len(qual)))
	}
	minQV := func(start, end int) int {
		if qual == nil {
			return UnknownQV
		}
		if start < 0 {
			start = 0
		}
		if end > len(qual) {
			end = len(qual)
		}
		qv := UnknownQV
		for i := start; i < end; i++ {
			if q := int(qual[i]); qv == UnknownQV || q < qv {
				qv = q
			}
		}
		return qv
	}
	for _, op := range aln.Cigar {
		n := op.Len()
		t := op.Type()
		consume := t.Consumes()
		if qi+n*consume.Query > len(query) || ri+n*consume.Reference > len(ref) {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("cigar %s overruns query %d or reference %d bases",
				aln.CigarString(), len(query), len(ref)))
		}
		switch t {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i := 0; i < n; i++ {
				q, r := query[qi+i], ref[ri+i]
				if q == r || q == 'N' || r == 'N' {
					continue
				}
				variants = append(variants, ccs.Variant{
					Pos:      ri + i,
					Type:     ccs.SNP,
					RefBases: string(r),
					AltBases: string(q),
					Length:   1,
					QV:       minQV(qi+i, qi+i+1),
				})
			}
			prevIndel = -1
		case sam.CigarInsertion:
			alt := query[qi : qi+n]
			qv := minQV(qi, qi+n)
			if prevIndel >= 0 {
				mergeComplex(&variants[prevIndel], "", alt, qv)
			} else {
				variants = append(variants, ccs.Variant{
					Pos:      ri,
					Type:     ccs.Insertion,
					AltBases: alt,
					Length:   n,
					QV:       qv,
				})
				prevIndel = len(variants) - 1
			}
		case sam.CigarDeletion:
			del := ref[ri : ri+n]
			qv := minQV(qi-1, qi+1)
			if prevIndel >= 0 {
				mergeComplex(&variants[prevIndel], del, "", qv)
			} else {
				variants = append(variants, ccs.Variant{
					Pos:      ri,
					Type:     ccs.Deletion,
					RefBases: del,
					Length:   n,
					QV:       qv,
				})
				prevIndel = len(variants) - 1
			}
		default:
			prevIndel = -1
		}
		qi += n * consume.Query
		ri += n * consume.Reference
	}
	if qi != len(query) || ri != len(ref) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("cigar %s covers %d query and %d reference bases, want %d and %d",
			aln.CigarString(), qi, ri, len(query), len(ref)))
	}
	w := c.opts.EndWindow
	for i := range variants {
		v := &variants[i]
		v.AtEndOfAlignment = v.Pos < w || v.Pos+len(v.RefBases) > len(ref)-w
	}
	return variants, nil
}

// mergeComplex folds an adjacent insertion or deletion into v.
func mergeComplex(v *ccs.Variant, del, ins string, qv int) {
	v.Type = ccs.Complex
	v.RefBases += del
	v.AltBases += ins
	v.Length = len(v.RefBases)
	if len(v.AltBases) > v.Length {
		v.Length = len(v.AltBases)
	}
	if qv != UnknownQV && (v.QV == UnknownQV || qv < v.QV) {
		v.QV = qv
	}
}
