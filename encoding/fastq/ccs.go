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
	"strconv"
	"strings"

	"github.com/grailbio/ccscheck/ccs"
	"github.com/pkg/errors"
)

// qualOffset is the Sanger/Illumina 1.8+ ASCII offset of phred scores.
const qualOffset = 33

// ToCCS converts a FASTQ read to a ccs.Read. Qualities are decoded to raw
// phred values. If the read name has the PacBio "movie/zmw/ccs" form, Movie
// and ZMW are filled from it.
func ToCCS(r *Read) (*ccs.Read, error) {
	name := r.Name()
	out := &ccs.Read{
		ID:  name,
		Seq: strings.ToUpper(r.Seq),
	}
	if len(r.Qual) > 0 {
		out.Qual = make([]byte, len(r.Qual))
		for i := 0; i < len(r.Qual); i++ {
			q := r.Qual[i]
			if q < qualOffset {
				return nil, errors.Errorf("read %s: quality character %q below '!' at position %d", name, q, i)
			}
			out.Qual[i] = q - qualOffset
		}
	}
	out.Movie, out.ZMW = ParseMovieZMW(name)
	return out, nil
}

// ParseMovieZMW splits a PacBio read name of the form "movie/zmw/..." into
// its movie name and hole number. It returns ("", -1) if the name does not
// have that form.
func ParseMovieZMW(name string) (string, int64) {
	parts := strings.SplitN(name, "/", 3)
	if len(parts) < 2 || parts[0] == "" {
		return "", -1
	}
	zmw, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", -1
	}
	return parts[0], zmw
}

// FromCCS converts a ccs.Read back to FASTQ form. Missing qualities are
// written as '!' (phred 0).
func FromCCS(r *ccs.Read) Read {
	qual := make([]byte, len(r.Seq))
	for i := range qual {
		q := byte(0)
		if i < len(r.Qual) {
			q = r.Qual[i]
		}
		qual[i] = q + qualOffset
	}
	return Read{
		ID:   "@" + r.ID,
		Seq:  r.Seq,
		Unk:  "+",
		Qual: string(qual),
	}
}
