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

package ccsbam_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/ccscheck/encoding/ccsbam"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func newAux(t *testing.T, tag string, v interface{}) sam.Aux {
	aux, err := sam.NewAux(sam.NewTag(tag), v)
	assert.NoError(t, err)
	return aux
}

func writeBAM(t *testing.T, recs []*sam.Record) []byte {
	header, err := sam.NewHeader(nil, nil)
	assert.NoError(t, err)
	var buf bytes.Buffer
	w, err := bam.NewWriter(&buf, header, 1)
	assert.NoError(t, err)
	for _, r := range recs {
		assert.NoError(t, w.Write(r))
	}
	assert.NoError(t, w.Close())
	return buf.Bytes()
}

// noQual is how BAM stores a record without base qualities.
func noQual(n int) []byte {
	q := make([]byte, n)
	for i := range q {
		q[i] = 0xff
	}
	return q
}

func newRecord(t *testing.T, name, seq string, qual []byte, aux ...sam.Aux) *sam.Record {
	r, err := sam.NewRecord(name, nil, nil, -1, -1, 0, 255, nil, []byte(seq), qual, aux)
	assert.NoError(t, err)
	r.Flags = sam.Unmapped
	return r
}

func TestReadCCSBAM(t *testing.T) {
	data := writeBAM(t, []*sam.Record{
		newRecord(t, "m54006_160504_020705/4194372/ccs", "ACGTAC", []byte{30, 31, 32, 33, 34, 35},
			newAux(t, "zm", int32(4194372)),
			newAux(t, "np", int32(12)),
			newAux(t, "rq", float32(0.999)),
			newAux(t, "sn", []float32{7.5, 12.25, 6, 9}),
			newAux(t, "za", float32(-0.5)),
			newAux(t, "zs", []float32{-1, 0.25, 2})),
		newRecord(t, "plain", "TTT", noQual(3)),
	})

	r, err := ccsbam.NewReader(bytes.NewReader(data), ccsbam.Opts{})
	assert.NoError(t, err)
	assert.True(t, r.Scan())
	read := r.Read()
	expect.EQ(t, read.ID, "m54006_160504_020705/4194372/ccs")
	expect.EQ(t, read.Seq, "ACGTAC")
	expect.EQ(t, read.Qual, []byte{30, 31, 32, 33, 34, 35})
	expect.EQ(t, read.Movie, "m54006_160504_020705")
	expect.EQ(t, read.ZMW, int64(4194372))
	expect.EQ(t, read.NumPasses, 12)
	expect.EQ(t, read.ReadQuality, float32(0.999))
	expect.EQ(t, read.SNR, [4]float32{7.5, 12.25, 6, 9})
	expect.EQ(t, read.AvgZScore, float32(-0.5))
	expect.EQ(t, read.ZScores, []float32{-1, 0.25, 2})

	assert.True(t, r.Scan())
	read = r.Read()
	expect.EQ(t, read.ID, "plain")
	expect.EQ(t, read.ZMW, int64(-1))
	expect.EQ(t, read.Movie, "")
	expect.Nil(t, read.Qual)
	expect.False(t, read.HasSNR())

	expect.False(t, r.Scan())
	expect.NoError(t, r.Err())
	expect.NoError(t, r.Close())
}

func TestReadCCSBAMErrors(t *testing.T) {
	_, err := ccsbam.NewReader(bytes.NewReader([]byte("not a bam file")), ccsbam.Opts{})
	expect.True(t, err != nil)

	data := writeBAM(t, []*sam.Record{
		newRecord(t, "long", "ACGTACGTACGT", noQual(12)),
	})
	r, err := ccsbam.NewReader(bytes.NewReader(data), ccsbam.Opts{MaxSeqLen: 8})
	assert.NoError(t, err)
	expect.False(t, r.Scan())
	assert.True(t, r.Err() != nil)
	expect.True(t, strings.Contains(r.Err().Error(), "exceeds the limit"), r.Err())

	// The same record passes without the limit.
	r, err = ccsbam.NewReader(bytes.NewReader(data), ccsbam.Opts{})
	assert.NoError(t, err)
	assert.True(t, r.Scan())
	expect.Nil(t, r.Read().Qual)

	data = writeBAM(t, []*sam.Record{
		newRecord(t, "badsnr", "ACGT", noQual(4), newAux(t, "sn", []float32{1, 2})),
	})
	r, err = ccsbam.NewReader(bytes.NewReader(data), ccsbam.Opts{})
	assert.NoError(t, err)
	expect.False(t, r.Scan())
	assert.True(t, r.Err() != nil)
	expect.True(t, strings.Contains(r.Err().Error(), "SNR"), r.Err())
}
