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

package variant

import (
	"testing"

	"github.com/grailbio/ccscheck/ccs"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func cigar(ops ...interface{}) []sam.CigarOp {
	var c []sam.CigarOp
	for i := 0; i < len(ops); i += 2 {
		c = append(c, sam.NewCigarOp(ops[i].(sam.CigarOpType), ops[i+1].(int)))
	}
	return c
}

func quals(s string) []byte {
	q := make([]byte, len(s))
	for i := range s {
		q[i] = s[i] - '0'
	}
	return q
}

func TestCallSNP(t *testing.T) {
	aln := &ccs.Alignment{
		RefStart:  1000,
		RefSeq:    "ACGTACGTACGTACGTACGT",
		QuerySeq:  "TTACGTACGTAGGTACGTACGTAA",
		QueryQual: quals("999999999993999999999999"),
		Cigar:     cigar(sam.CigarSoftClipped, 2, sam.CigarMatch, 20, sam.CigarSoftClipped, 2),
	}
	vs, err := NewCaller(DefaultOpts).Call(aln)
	assert.NoError(t, err)
	expect.EQ(t, vs, []ccs.Variant{{
		Pos:      9,
		Type:     ccs.SNP,
		RefBases: "C",
		AltBases: "G",
		Length:   1,
		QV:       3,
	}})

	rec := ccs.NewAlignedRecord(&ccs.Read{ID: "r"}, &ccs.Alignment{RefName: "chr1", RefStart: 1000}, vs)
	expect.EQ(t, rec.Variants[0].Pos, 1009)
	expect.EQ(t, rec.Variants[0].RefName, "chr1")
}

func TestCallIndels(t *testing.T) {
	// ref   ACGTACGTAC--GTACGTACGT
	// query ACGTA--TACTTGTACGTACGT
	aln := &ccs.Alignment{
		RefSeq:    "ACGTACGTACGTACGTACGT",
		QuerySeq:  "ACGTATACTTGTACGTACGT",
		QueryQual: quals("99999799949999999999"),
		Cigar: cigar(sam.CigarMatch, 5, sam.CigarDeletion, 2, sam.CigarMatch, 3,
			sam.CigarInsertion, 2, sam.CigarMatch, 10),
	}
	vs, err := NewCaller(DefaultOpts).Call(aln)
	assert.NoError(t, err)
	expect.EQ(t, vs, []ccs.Variant{
		{Pos: 5, Type: ccs.Deletion, RefBases: "CG", Length: 2, QV: 7},
		{Pos: 10, Type: ccs.Insertion, AltBases: "TT", Length: 2, QV: 4},
	})
}

func TestCallComplexAndEnds(t *testing.T) {
	aln := &ccs.Alignment{
		RefSeq:   "AACCGGTTAACCGGTT",
		QuerySeq: "AGCCGGTTATTTCCGGTT",
		Cigar: cigar(sam.CigarMatch, 9, sam.CigarDeletion, 1, sam.CigarInsertion, 3,
			sam.CigarMatch, 6),
	}
	vs, err := NewCaller(DefaultOpts).Call(aln)
	assert.NoError(t, err)
	expect.EQ(t, vs, []ccs.Variant{
		{Pos: 1, Type: ccs.SNP, RefBases: "A", AltBases: "G", Length: 1, QV: UnknownQV, AtEndOfAlignment: true},
		{Pos: 9, Type: ccs.Complex, RefBases: "A", AltBases: "TTT", Length: 3, QV: UnknownQV},
	})
	expect.EQ(t, vs[1].Type.String(), "COMPLEX")
}

func TestCallNoVariants(t *testing.T) {
	aln := &ccs.Alignment{
		RefSeq:   "ACGT",
		QuerySeq: "ACNT",
		Cigar:    cigar(sam.CigarMatch, 4),
	}
	vs, err := NewCaller(DefaultOpts).Call(aln)
	expect.NoError(t, err)
	expect.EQ(t, len(vs), 0)
}

func TestCallInconsistent(t *testing.T) {
	c := NewCaller(DefaultOpts)
	_, err := c.Call(&ccs.Alignment{RefSeq: "ACGT", QuerySeq: "ACGT", Cigar: cigar(sam.CigarMatch, 5)})
	expect.True(t, err != nil)
	_, err = c.Call(&ccs.Alignment{RefSeq: "ACGT", QuerySeq: "ACGT", Cigar: cigar(sam.CigarMatch, 3)})
	expect.True(t, err != nil)
	_, err = c.Call(&ccs.Alignment{RefSeq: "ACGT", QuerySeq: "ACGT", QueryQual: []byte{1}, Cigar: cigar(sam.CigarMatch, 4)})
	expect.True(t, err != nil)
}
