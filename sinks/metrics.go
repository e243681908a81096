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
	"strconv"

	"github.com/grailbio/ccscheck/ccs"
)

func formatFloat32(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

// ZMWMetrics writes one row per record with the read metadata and, for
// aligned reads, the placement and the number of variants.
type ZMWMetrics struct {
	t *tsvFile
}

// NewZMWMetrics creates zmws.tsv in dir.
func NewZMWMetrics(ctx context.Context, dir string, opts Opts) (*ZMWMetrics, error) {
	t, err := createTSV(ctx, dir, ZMWMetricsFile, opts,
		"ID", "MOVIE", "ZMW", "LENGTH", "NUM_PASSES", "READ_QUALITY", "AVG_ZSCORE",
		"ALIGNED", "REF", "START", "END", "STRAND", "SCORE", "N_VARIANTS")
	if err != nil {
		return nil, err
	}
	return &ZMWMetrics{t: t}, nil
}

// Consume implements pipeline.Sink.
func (s *ZMWMetrics) Consume(rec *ccs.Record) error {
	r := rec.Read
	w := s.t.w
	w.WriteString(r.ID)
	s.t.writeOpt(r.Movie)
	s.t.writeInt(r.ZMW)
	s.t.writeInt(int64(r.Len()))
	s.t.writeInt(int64(r.NumPasses))
	w.WriteString(formatFloat32(r.ReadQuality))
	w.WriteString(formatFloat32(r.AvgZScore))
	if a := rec.Alignment; a != nil {
		w.WriteByte('1')
		w.WriteString(a.RefName)
		// 1-based, closed.
		s.t.writeInt(int64(a.RefStart + 1))
		s.t.writeInt(int64(a.RefEnd))
		w.WriteString(a.Strand.String())
		s.t.writeInt(int64(a.Score))
		s.t.writeInt(int64(len(rec.Variants)))
	} else {
		w.WriteByte('0')
		for i := 0; i < 6; i++ {
			w.WriteByte('.')
		}
	}
	return s.t.endLine()
}

// Finalize implements pipeline.Sink.
func (s *ZMWMetrics) Finalize() error { return s.t.close() }

// ZScores writes one row per subread z-score.
type ZScores struct {
	t *tsvFile
}

// NewZScores creates zscores.tsv in dir.
func NewZScores(ctx context.Context, dir string, opts Opts) (*ZScores, error) {
	t, err := createTSV(ctx, dir, ZScoresFile, opts, "MOVIE", "ZMW", "INDEX", "ZSCORE")
	if err != nil {
		return nil, err
	}
	return &ZScores{t: t}, nil
}

// Consume implements pipeline.Sink.
func (s *ZScores) Consume(rec *ccs.Record) error {
	r := rec.Read
	for i, z := range r.ZScores {
		s.t.writeOpt(r.Movie)
		s.t.writeInt(r.ZMW)
		s.t.writeInt(int64(i))
		s.t.w.WriteString(formatFloat32(z))
		if err := s.t.endLine(); err != nil {
			return err
		}
	}
	return nil
}

// Finalize implements pipeline.Sink.
func (s *ZScores) Finalize() error { return s.t.close() }

// SNR writes the per-channel signal to noise ratio of each read that has
// one.
type SNR struct {
	t *tsvFile
}

// NewSNR creates snrs.tsv in dir.
func NewSNR(ctx context.Context, dir string, opts Opts) (*SNR, error) {
	t, err := createTSV(ctx, dir, SNRFile, opts, "MOVIE", "ZMW", "SNR_A", "SNR_C", "SNR_G", "SNR_T")
	if err != nil {
		return nil, err
	}
	return &SNR{t: t}, nil
}

// Consume implements pipeline.Sink.
func (s *SNR) Consume(rec *ccs.Record) error {
	r := rec.Read
	if !r.HasSNR() {
		return nil
	}
	s.t.writeOpt(r.Movie)
	s.t.writeInt(r.ZMW)
	for _, v := range r.SNR {
		s.t.w.WriteString(formatFloat32(v))
	}
	return s.t.endLine()
}

// Finalize implements pipeline.Sink.
func (s *SNR) Finalize() error { return s.t.close() }
