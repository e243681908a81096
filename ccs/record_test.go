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

package ccs_test

import (
	"math/rand"
	"testing"

	"github.com/grailbio/ccscheck/ccs"
	"github.com/grailbio/testutil/expect"
)

func TestNewRecordHasNoAlignment(t *testing.T) {
	r := ccs.NewRecord(&ccs.Read{ID: "m1/1/ccs", Seq: "ACGT"})
	expect.False(t, r.Aligned())
	expect.Nil(t, r.Alignment)
	expect.Nil(t, r.Variants)
	expect.EQ(t, r.Read.Len(), 4)
}

func TestNewAlignedRecordRebasesVariants(t *testing.T) {
	read := &ccs.Read{ID: "m1/2/ccs", Seq: "ACGTACGT"}
	aln := &ccs.Alignment{RefName: "chr1", RefStart: 1000, RefEnd: 1008}
	local := []ccs.Variant{{Pos: 5, Type: ccs.SNP, RefBases: "A", AltBases: "G", Length: 1}}

	r := ccs.NewAlignedRecord(read, aln, local)
	expect.True(t, r.Aligned())
	expect.EQ(t, len(r.Variants), 1)
	expect.EQ(t, r.Variants[0].Pos, 1005)
	expect.EQ(t, r.Variants[0].RefName, "chr1")
	// The caller's slice keeps its local coordinates.
	expect.EQ(t, local[0].Pos, 5)
	expect.EQ(t, local[0].RefName, "")
}

func TestNewAlignedRecordOffsetProperty(t *testing.T) {
	rnd := rand.New(rand.NewSource(0))
	for i := 0; i < 1000; i++ {
		start := rnd.Intn(1 << 30)
		n := rnd.Intn(8)
		local := make([]ccs.Variant, n)
		for j := range local {
			local[j].Pos = rnd.Intn(1 << 16)
		}
		aln := &ccs.Alignment{RefName: "chrX", RefStart: start}
		r := ccs.NewAlignedRecord(&ccs.Read{ID: "r"}, aln, local)
		expect.EQ(t, len(r.Variants), n)
		for j := range local {
			expect.EQ(t, r.Variants[j].Pos, local[j].Pos+start)
			expect.EQ(t, r.Variants[j].RefName, "chrX")
		}
	}
}

func TestNewAlignedRecordEmptyVariants(t *testing.T) {
	aln := &ccs.Alignment{RefName: "chr1", RefStart: 10}
	r := ccs.NewAlignedRecord(&ccs.Read{ID: "r"}, aln, nil)
	expect.True(t, r.Variants != nil)
	expect.EQ(t, len(r.Variants), 0)

	r = ccs.NewAlignedRecord(&ccs.Read{ID: "r"}, nil, nil)
	expect.False(t, r.Aligned())
	expect.Nil(t, r.Variants)
}

func TestVariantTypeString(t *testing.T) {
	expect.EQ(t, ccs.SNP.String(), "SNP")
	expect.EQ(t, ccs.Insertion.String(), "INS")
	expect.EQ(t, ccs.Deletion.String(), "DEL")
	expect.EQ(t, ccs.VariantType(42).String(), "UNKNOWN")
	expect.EQ(t, ccs.Reverse.String(), "-")
	expect.EQ(t, ccs.Forward.String(), "+")
}
