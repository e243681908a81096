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

package sinks

import (
	"context"
	"fmt"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/ccscheck/ccs"
	"github.com/grailbio/hts/sam"
)

// MaxQV is the highest base quality tracked separately. Higher values are
// counted as MaxQV.
const MaxQV = 93

// QVCalibration compares the reported base qualities of aligned reads with
// the observed error rate against the reference. A mismatching or inserted
// base counts as an error; deletions are not attributed to any base.
type QVCalibration struct {
	t      *tsvFile
	bases  [MaxQV + 1]int64
	errors [MaxQV + 1]int64
}

// NewQVCalibration creates qv_calibration.tsv in dir. Rows are written by
// Finalize.
func NewQVCalibration(ctx context.Context, dir string, opts Opts) (*QVCalibration, error) {
	t, err := createTSV(ctx, dir, QVCalibrationFile, opts, "QV", "BASES", "ERRORS", "EMPIRICAL_QV")
	if err != nil {
		return nil, err
	}
	return &QVCalibration{t: t}, nil
}

func qvBucket(q byte) int {
	if q > MaxQV {
		return MaxQV
	}
	return int(q)
}

// Consume implements pipeline.Sink.
func (s *QVCalibration) Consume(rec *ccs.Record) error {
	a := rec.Alignment
	if a == nil || a.QueryQual == nil {
		return nil
	}
	query, ref, qual := a.QuerySeq, a.RefSeq, a.QueryQual
	if len(qual) != len(query) {
		return errors.E(errors.Invalid, fmt.Sprintf("read %s: %d bases, %d qualities", rec.Read.ID, len(query), len(qual)))
	}
	qi, ri := 0, 0
	for _, op := range a.Cigar {
		n := op.Len()
		c := op.Type().Consumes()
		if qi+n*c.Query > len(query) || ri+n*c.Reference > len(ref) {
			return errors.E(errors.Invalid, fmt.Sprintf("read %s: cigar %s overruns the alignment", rec.Read.ID, a.CigarString()))
		}
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i := 0; i < n; i++ {
				b := qvBucket(qual[qi+i])
				s.bases[b]++
				if q, r := query[qi+i], ref[ri+i]; q != r && q != 'N' && r != 'N' {
					s.errors[b]++
				}
			}
		case sam.CigarInsertion:
			for i := 0; i < n; i++ {
				b := qvBucket(qual[qi+i])
				s.bases[b]++
				s.errors[b]++
			}
		}
		qi += n * c.Query
		ri += n * c.Reference
	}
	return nil
}

// EmpiricalQV returns the phred-scaled error rate, with one pseudo-error
// and two pseudo-bases so that it is finite.
func EmpiricalQV(bases, errs int64) float64 {
	return -10 * math.Log10(float64(errs+1)/float64(bases+2))
}

// Finalize implements pipeline.Sink.
func (s *QVCalibration) Finalize() error {
	if s.t.closed {
		return s.t.closeErr
	}
	for q := range s.bases {
		if s.bases[q] == 0 {
			continue
		}
		s.t.writeInt(int64(q))
		s.t.writeInt(s.bases[q])
		s.t.writeInt(s.errors[q])
		s.t.writeFloat(EmpiricalQV(s.bases[q], s.errors[q]), 2)
		if err := s.t.endLine(); err != nil {
			s.t.close()
			return err
		}
	}
	return s.t.close()
}
