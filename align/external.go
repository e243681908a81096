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

package align

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/ccscheck/ccs"
	"github.com/grailbio/ccscheck/encoding/fasta"
	"github.com/grailbio/ccscheck/encoding/fastq"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/lookpath"
)

// RefPlaceholder is replaced by ExternalOpts.RefPath in ExternalOpts.Args.
const RefPlaceholder = "{ref}"

// ExternalOpts configures an External aligner.
type ExternalOpts struct {
	// Binary is the aligner executable. A name without a slash is looked up
	// in $PATH.
	Binary string
	// Args are passed to Binary. The program must read one FASTQ record on
	// stdin and write SAM on stdout.
	Args []string
	// RefPath is the reference FASTA. For bwa, its index files must exist
	// next to it.
	RefPath string
}

// DefaultExternalOpts runs "bwa mem".
var DefaultExternalOpts = ExternalOpts{
	Binary: "bwa",
	Args:   []string{"mem", "-v", "0", RefPlaceholder, "-"},
}

// External aligns reads by running an aligner binary. Use AlignBatch to
// amortize the start-up cost over many reads.
type External struct {
	binary string
	args   []string
	ref    fasta.Fasta
}

var asTag = sam.NewTag("AS")

func resolveBinary(bin string) (string, error) {
	if bin == "" {
		return "", errors.E(errors.Invalid, "no aligner binary configured")
	}
	if strings.Contains(bin, "/") {
		if _, err := os.Stat(bin); err != nil {
			return "", errors.E(errors.Unavailable, fmt.Sprintf("aligner %s not found", bin), err)
		}
		return bin, nil
	}
	path, err := lookpath.Look(map[string]string{"PATH": os.Getenv("PATH")}, bin)
	if err != nil {
		return "", errors.E(errors.Unavailable, fmt.Sprintf("aligner %s not found in $PATH", bin), err)
	}
	return path, nil
}

// NewExternal resolves the aligner binary and loads the reference. A
// missing binary, or a bwa reference without its index, yields an error for
// which IsMissingDependency is true.
func NewExternal(ctx context.Context, opts ExternalOpts) (*External, error) {
	binary, err := resolveBinary(opts.Binary)
	if err != nil {
		return nil, err
	}
	if opts.RefPath == "" {
		return nil, errors.E(errors.Invalid, "external aligner needs a reference")
	}
	if filepath.Base(binary) == "bwa" {
		if _, err := os.Stat(opts.RefPath + ".bwt"); err != nil {
			return nil, errors.E(errors.Unavailable, fmt.Sprintf("bwa index for %s not found, run 'bwa index %s'", opts.RefPath, opts.RefPath), err)
		}
	}
	ref, err := fasta.Load(ctx, opts.RefPath)
	if err != nil {
		return nil, errors.E("load reference", err)
	}
	e := &External{binary: binary, ref: ref}
	for _, arg := range opts.Args {
		e.args = append(e.args, strings.Replace(arg, RefPlaceholder, opts.RefPath, -1))
	}
	return e, nil
}

// Align implements Aligner.
func (e *External) Align(read *ccs.Read) (*ccs.Alignment, error) {
	alns, err := e.AlignBatch([]*ccs.Read{read})
	if err != nil {
		return nil, err
	}
	return alns[0], nil
}

// AlignBatch implements BatchAligner. All reads go through one run of the
// binary, so the index is loaded once per batch. Output records are matched
// to reads by QNAME.
func (e *External) AlignBatch(reads []*ccs.Read) ([]*ccs.Alignment, error) {
	var in, out, stderr bytes.Buffer
	w := fastq.NewWriter(&in)
	for _, read := range reads {
		if err := w.WriteCCS(read); err != nil {
			return nil, err
		}
	}
	cmd := exec.Command(e.binary, e.args...)
	cmd.Stdin = &in
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.Error); ok {
			return nil, errors.E(errors.Unavailable, fmt.Sprintf("run %s", e.binary), err)
		}
		return nil, errors.E(fmt.Sprintf("%s failed: %s", e.binary, strings.TrimSpace(stderr.String())), err)
	}
	recs, err := primaryRecords(&out)
	if err != nil {
		return nil, errors.E(fmt.Sprintf("parse %s output", e.binary), err)
	}
	alns := make([]*ccs.Alignment, len(reads))
	for i, read := range reads {
		rec := recs[read.ID]
		if rec == nil {
			continue
		}
		if alns[i], err = e.toAlignment(rec); err != nil {
			return nil, err
		}
	}
	return alns, nil
}

// primaryRecords returns, for each QNAME, the first record that is neither
// secondary nor supplementary. Unmapped reads map to nil.
func primaryRecords(r io.Reader) (map[string]*sam.Record, error) {
	sr, err := sam.NewReader(r)
	if err != nil {
		return nil, err
	}
	recs := map[string]*sam.Record{}
	for {
		rec, err := sr.Read()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return nil, err
		}
		if rec.Flags&(sam.Secondary|sam.Supplementary) != 0 {
			continue
		}
		if _, ok := recs[rec.Name]; ok {
			continue
		}
		if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil {
			recs[rec.Name] = nil
			continue
		}
		recs[rec.Name] = rec
	}
}

func (e *External) toAlignment(rec *sam.Record) (*ccs.Alignment, error) {
	aln := &ccs.Alignment{
		RefName:  rec.Ref.Name(),
		RefStart: rec.Pos,
		RefEnd:   rec.End(),
		MapQ:     int(rec.MapQ),
		Cigar:    []sam.CigarOp(rec.Cigar),
		QuerySeq: string(rec.Seq.Expand()),
	}
	if rec.Flags&sam.Reverse != 0 {
		aln.Strand = ccs.Reverse
	}
	for _, q := range rec.Qual {
		if q != 0xff {
			aln.QueryQual = append([]byte(nil), rec.Qual...)
			break
		}
	}
	if as := rec.AuxFields.Get(asTag); as != nil {
		switch v := as.Value().(type) {
		case int8:
			aln.Score = int(v)
		case uint8:
			aln.Score = int(v)
		case int16:
			aln.Score = int(v)
		case uint16:
			aln.Score = int(v)
		case int32:
			aln.Score = int(v)
		case uint32:
			aln.Score = int(v)
		}
	}
	aln.QueryStart, aln.QueryEnd = 0, len(aln.QuerySeq)
	if n := len(aln.Cigar); n > 0 {
		if c := aln.Cigar[0]; c.Type() == sam.CigarSoftClipped {
			aln.QueryStart = c.Len()
		}
		if c := aln.Cigar[n-1]; n > 1 && c.Type() == sam.CigarSoftClipped {
			aln.QueryEnd -= c.Len()
		}
	}
	if aln.RefEnd > aln.RefStart {
		seq, err := e.ref.Get(aln.RefName, uint64(aln.RefStart), uint64(aln.RefEnd))
		if err != nil {
			return nil, err
		}
		aln.RefSeq = seq
	}
	return aln, nil
}
