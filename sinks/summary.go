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

	"github.com/google/uuid"
	"github.com/grailbio/ccscheck/ccs"
	"github.com/minio/highwayhash"
)

var zeroKey [32]byte

// readHash hashes the read name and bases.
func readHash(r *ccs.Read, buf *[]byte) uint64 {
	*buf = append((*buf)[:0], r.ID...)
	*buf = append(*buf, 0)
	*buf = append(*buf, r.Seq...)
	return highwayhash.Sum64(*buf, zeroKey[:])
}

// Summary counts records, alignments, variants and bases, and writes the
// totals as KEY/VALUE rows on Finalize. Each run is tagged with a random
// UUID. READS_DIGEST xors the hashes of all reads, so two runs over the same
// input agree on it regardless of output order.
type Summary struct {
	t     *tsvFile
	runID uuid.UUID

	records, aligned, bases int64
	variants                [ccs.Complex + 1]int64
	digest                  uint64
	buf                     []byte
}

// NewSummary creates summary.tsv in dir.
func NewSummary(ctx context.Context, dir string, opts Opts) (*Summary, error) {
	t, err := createTSV(ctx, dir, SummaryFile, opts, "KEY", "VALUE")
	if err != nil {
		return nil, err
	}
	return &Summary{t: t, runID: uuid.New()}, nil
}

// RunID identifies the run in summary.tsv.
func (s *Summary) RunID() string { return s.runID.String() }

// Consume implements pipeline.Sink.
func (s *Summary) Consume(rec *ccs.Record) error {
	s.records++
	s.bases += int64(rec.Read.Len())
	s.digest ^= readHash(rec.Read, &s.buf)
	if rec.Aligned() {
		s.aligned++
	}
	for _, v := range rec.Variants {
		if int(v.Type) < len(s.variants) {
			s.variants[v.Type]++
		}
	}
	return nil
}

// Digest returns the READS_DIGEST value.
func (s *Summary) Digest() string { return fmt.Sprintf("%016x", s.digest) }

// Finalize implements pipeline.Sink.
func (s *Summary) Finalize() error {
	if s.t.closed {
		return s.t.closeErr
	}
	var nVariants int64
	for _, n := range s.variants {
		nVariants += n
	}
	s.t.w.WriteString("RUN_ID")
	s.t.w.WriteString(s.RunID())
	if err := s.t.endLine(); err != nil {
		s.t.close()
		return err
	}
	rows := []struct {
		key string
		val int64
	}{
		{"RECORDS", s.records},
		{"ALIGNED", s.aligned},
		{"BASES", s.bases},
		{"VARIANTS", nVariants},
		{"SNP", s.variants[ccs.SNP]},
		{"INS", s.variants[ccs.Insertion]},
		{"DEL", s.variants[ccs.Deletion]},
		{"COMPLEX", s.variants[ccs.Complex]},
	}
	for _, row := range rows {
		s.t.w.WriteString(row.key)
		s.t.writeInt(row.val)
		if err := s.t.endLine(); err != nil {
			s.t.close()
			return err
		}
	}
	s.t.w.WriteString("READS_DIGEST")
	s.t.w.WriteString(s.Digest())
	if err := s.t.endLine(); err != nil {
		s.t.close()
		return err
	}
	return s.t.close()
}
