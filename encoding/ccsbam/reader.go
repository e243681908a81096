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

// Package ccsbam reads unaligned PacBio circular consensus BAM files and
// converts each record into a ccs.Read, decoding the PacBio aux tags.
//
// Recognized tags:
//   zm  ZMW hole number
//   np  number of full passes
//   rq  predicted read accuracy
//   sn  per-channel SNR (A, C, G, T)
//   za  average subread z-score
//   zs  per-subread z-scores
package ccsbam

import (
	"bufio"
	"io"

	"github.com/grailbio/ccscheck/ccs"
	"github.com/grailbio/ccscheck/encoding/fastq"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

var (
	tagZMW       = sam.NewTag("zm")
	tagNumPasses = sam.NewTag("np")
	tagQuality   = sam.NewTag("rq")
	tagSNR       = sam.NewTag("sn")
	tagAvgZScore = sam.NewTag("za")
	tagZScores   = sam.NewTag("zs")
)

// missingQual is the BAM encoding of an absent quality string.
const missingQual = 0xff

// Opts configures a Reader.
type Opts struct {
	// BufferSize is the size of the read buffer placed in front of the BGZF
	// decoder. Zero means 4096.
	BufferSize int
	// MaxSeqLen rejects records whose sequence is longer. Zero disables the
	// check.
	MaxSeqLen int
	// Parallelism is the number of BGZF decompression goroutines. Zero means 1.
	Parallelism int
}

// Reader yields ccs.Reads from a BAM stream. Not thread-safe.
type Reader struct {
	opts Opts
	r    *bam.Reader
	read *ccs.Read
	err  error
	n    int
}

// NewReader parses the BAM header from in and returns a Reader positioned at
// the first record.
func NewReader(in io.Reader, opts Opts) (*Reader, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 4096
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	br, err := bam.NewReader(bufio.NewReaderSize(in, opts.BufferSize), opts.Parallelism)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse BAM header")
	}
	return &Reader{opts: opts, r: br}, nil
}

// Header returns the BAM header.
func (r *Reader) Header() *sam.Header { return r.r.Header() }

// Scan reads the next record. It returns false at the end of the stream or on
// error; Err distinguishes the two.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	rec, err := r.r.Read()
	if err != nil {
		if err != io.EOF {
			r.err = errors.Wrapf(err, "could not parse BAM record %d", r.n)
		} else {
			r.err = io.EOF
		}
		return false
	}
	r.n++
	if r.opts.MaxSeqLen > 0 && rec.Seq.Length > r.opts.MaxSeqLen {
		r.err = errors.Errorf("BAM record %s: sequence length %d exceeds the limit of %d",
			rec.Name, rec.Seq.Length, r.opts.MaxSeqLen)
		return false
	}
	if r.read, r.err = FromRecord(rec); r.err != nil {
		return false
	}
	return true
}

// Read returns the read produced by the last successful Scan.
func (r *Reader) Read() *ccs.Read { return r.read }

// Err returns the first error encountered, or nil at a clean end of stream.
func (r *Reader) Err() error {
	if r.err == io.EOF {
		return nil
	}
	return r.err
}

// Close releases the BGZF decoder.
func (r *Reader) Close() error {
	return r.r.Close()
}

// FromRecord converts one BAM record to a ccs.Read. The record is not
// retained.
func FromRecord(rec *sam.Record) (*ccs.Read, error) {
	read := &ccs.Read{
		ID:  rec.Name,
		Seq: string(rec.Seq.Expand()),
		ZMW: -1,
	}
	if len(rec.Qual) > 0 && rec.Qual[0] != missingQual {
		read.Qual = append([]byte(nil), rec.Qual...)
	}
	read.Movie, read.ZMW = fastq.ParseMovieZMW(rec.Name)

	var err error
	for _, aux := range rec.AuxFields {
		switch aux.Tag() {
		case tagZMW:
			var v int64
			if v, err = auxInt(aux); err == nil {
				read.ZMW = v
			}
		case tagNumPasses:
			var v int64
			if v, err = auxInt(aux); err == nil {
				read.NumPasses = int(v)
			}
		case tagQuality:
			read.ReadQuality, err = auxFloat(aux)
		case tagAvgZScore:
			read.AvgZScore, err = auxFloat(aux)
		case tagSNR:
			var v []float32
			if v, err = auxFloats(aux); err == nil {
				if len(v) != 4 {
					err = errors.Errorf("expect 4 SNR values, found %d", len(v))
				} else {
					copy(read.SNR[:], v)
				}
			}
		case tagZScores:
			read.ZScores, err = auxFloats(aux)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "BAM record %s: tag %s", rec.Name, aux.Tag())
		}
	}
	return read, nil
}

func auxInt(aux sam.Aux) (int64, error) {
	switch v := aux.Value().(type) {
	case int8:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	}
	return 0, errors.Errorf("not an integer: %v", aux)
}

func auxFloat(aux sam.Aux) (float32, error) {
	if v, ok := aux.Value().(float32); ok {
		return v, nil
	}
	if v, err := auxInt(aux); err == nil {
		return float32(v), nil
	}
	return 0, errors.Errorf("not a float: %v", aux)
}

func auxFloats(aux sam.Aux) ([]float32, error) {
	switch v := aux.Value().(type) {
	case []float32:
		return append([]float32(nil), v...), nil
	case []int8, []uint8, []int16, []uint16, []int32, []uint32:
		return nil, errors.Errorf("integer array where float array expected: %v", aux)
	}
	return nil, errors.Errorf("not a float array: %v", aux)
}
