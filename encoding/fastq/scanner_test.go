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

package fastq

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/ccscheck/ccs"
	"github.com/grailbio/testutil/expect"
)

const fq = `@m54006_160504_020705/4194372/ccs
ACGTTGCAAGGTCCATTGCA
+
IIIIIIIIIIIIIIIIIII#
@m54006_160504_020705/4194375/ccs
TTGACCAGTA
+
!!!!!IIIII
@m54006_160504_020705/4194378/ccs extra words
GGGGCCCCAAAATTTT
+
5555555555555555
`

func stringScanner(s string) *Scanner {
	return NewScanner(bytes.NewReader([]byte(s)), ScannerOpts{})
}

func scanErr(s string, opts ScannerOpts) error {
	scan := NewScanner(strings.NewReader(s), opts)
	var r Read
	for scan.Scan(&r) {
	}
	return scan.Err()
}

func TestFASTQ(t *testing.T) {
	s := stringScanner(fq)
	var r Read
	if !s.Scan(&r) {
		t.Fatal(s.Err())
	}
	first := Read{
		ID:   "@m54006_160504_020705/4194372/ccs",
		Seq:  "ACGTTGCAAGGTCCATTGCA",
		Unk:  "+",
		Qual: "IIIIIIIIIIIIIIIIIII#",
	}
	if got, want := r, first; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	var n int
	for s.Scan(&r) {
		n++
	}
	if got, want := n, 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := s.Err(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestBadFASTQ(t *testing.T) {
	if got, want := scanErr("12312#", ScannerOpts{}), ErrInvalid; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := scanErr("@1234\n123", ScannerOpts{}), ErrShort; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := scanErr("@1234\nACG\n+\nII\n", ScannerOpts{}), ErrInvalid; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := scanErr("@1234\nACGTACGTACGT\n+\nIIIIIIIIIIII\n", ScannerOpts{MaxSeqLen: 8}), ErrTooLong; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	expect.NoError(t, scanErr("@1234\nACGTACGT\n+\nIIIIIIII\n", ScannerOpts{BufferSize: 2, MaxSeqLen: 8}))
}

func TestWriter(t *testing.T) {
	var (
		s = stringScanner(fq)
		b = new(bytes.Buffer)
		w = NewWriter(b)
		r Read
	)
	for s.Scan(&r) {
		if err := w.Write(&r); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	if got, want := b.String(), fq; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestToCCS(t *testing.T) {
	s := stringScanner(fq)
	var r Read
	var names []string
	for s.Scan(&r) {
		c, err := ToCCS(&r)
		expect.NoError(t, err)
		names = append(names, c.ID)
		expect.EQ(t, c.Movie, "m54006_160504_020705")
		expect.EQ(t, len(c.Qual), len(c.Seq))
	}
	expect.NoError(t, s.Err())
	expect.EQ(t, names, []string{
		"m54006_160504_020705/4194372/ccs",
		"m54006_160504_020705/4194375/ccs",
		"m54006_160504_020705/4194378/ccs",
	})

	c, err := ToCCS(&Read{ID: "@m1/17/ccs", Seq: "acgt", Qual: "!#5I"})
	expect.NoError(t, err)
	expect.EQ(t, c.Seq, "ACGT")
	expect.EQ(t, c.Qual, []byte{0, 2, 20, 40})
	expect.EQ(t, c.ZMW, int64(17))

	_, err = ToCCS(&Read{ID: "@bad", Seq: "A", Qual: " "})
	expect.True(t, err != nil)
}

func TestParseMovieZMW(t *testing.T) {
	tests := []struct {
		name  string
		movie string
		zmw   int64
	}{
		{"m1/12/ccs", "m1", 12},
		{"m1/12", "m1", 12},
		{"m1/x/ccs", "", -1},
		{"plainname", "", -1},
		{"/12/ccs", "", -1},
	}
	for _, test := range tests {
		movie, zmw := ParseMovieZMW(test.name)
		expect.EQ(t, movie, test.movie, test.name)
		expect.EQ(t, zmw, test.zmw, test.name)
	}
}

func TestFromCCSRoundTrip(t *testing.T) {
	r, err := ToCCS(&Read{ID: "@m1/3/ccs", Seq: "ACGT", Unk: "+", Qual: "!#5I"})
	expect.NoError(t, err)
	back := FromCCS(r)
	expect.EQ(t, back, Read{ID: "@m1/3/ccs", Seq: "ACGT", Unk: "+", Qual: "!#5I"})

	var b bytes.Buffer
	expect.NoError(t, NewWriter(&b).WriteCCS(&ccs.Read{ID: "noqual", Seq: "AC"}))
	expect.EQ(t, b.String(), "@noqual\nAC\n+\n!!\n")
}
