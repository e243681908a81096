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

// Variants writes one row per called variant. Positions are 1-based.
type Variants struct {
	t *tsvFile
}

// NewVariants creates variants.tsv in dir.
func NewVariants(ctx context.Context, dir string, opts Opts) (*Variants, error) {
	t, err := createTSV(ctx, dir, VariantsFile, opts,
		"REF", "POS", "TYPE", "REF_BASES", "ALT_BASES", "LENGTH", "QV", "AT_END", "ZMW", "MOVIE", "ID")
	if err != nil {
		return nil, err
	}
	return &Variants{t: t}, nil
}

// Consume implements pipeline.Sink.
func (s *Variants) Consume(rec *ccs.Record) error {
	w := s.t.w
	for _, v := range rec.Variants {
		w.WriteString(v.RefName)
		s.t.writeInt(int64(v.Pos + 1))
		w.WriteString(v.Type.String())
		s.t.writeOpt(v.RefBases)
		s.t.writeOpt(v.AltBases)
		s.t.writeInt(int64(v.Length))
		s.t.writeInt(int64(v.QV))
		w.WriteString(strconv.FormatBool(v.AtEndOfAlignment))
		s.t.writeInt(rec.Read.ZMW)
		s.t.writeOpt(rec.Read.Movie)
		w.WriteString(rec.Read.ID)
		if err := s.t.endLine(); err != nil {
			return err
		}
	}
	return nil
}

// Finalize implements pipeline.Sink.
func (s *Variants) Finalize() error { return s.t.close() }
